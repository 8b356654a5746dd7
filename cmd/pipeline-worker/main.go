package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/meerkat-code/meerkat-abacus/pkg/alerts"
	"github.com/meerkat-code/meerkat-abacus/pkg/codes"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/config"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/database"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/kafka"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/logger"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"github.com/meerkat-code/meerkat-abacus/pkg/countryconfig"
	"github.com/meerkat-code/meerkat-abacus/pkg/ingest"
	"github.com/meerkat-code/meerkat-abacus/pkg/links"
	"github.com/meerkat-code/meerkat-abacus/pkg/locations"
	"github.com/meerkat-code/meerkat-abacus/pkg/observability/metrics"
	"github.com/meerkat-code/meerkat-abacus/pkg/pipeline"
)

func main() {
	logger.Init()
	metrics.Init()
	cfg := config.Load()

	country, err := countryconfig.Load(filepath.Join(cfg.ConfigDirectory, cfg.CountryConfigFile))
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load country config")
	}

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	locationRepo := locations.NewRepository(db)
	codesRepo := codes.NewRepository(db)
	linksRepo := links.NewRepository(db)
	alertRepo := alerts.NewRepository(db)
	failureLog := pipeline.NewFailureLog(db)

	tables := make(map[string]string, len(country.Tables))
	for _, table := range country.Tables {
		tables[table] = table
	}
	formTables := make(map[string]string, len(country.Tables))
	for form := range country.Tables {
		formTables[form] = country.TableName(form)
	}
	formStore := ingest.NewFormStore(db, formTables)

	for _, migrate := range []func() error{
		locationRepo.AutoMigrate,
		codesRepo.AutoMigrate,
		linksRepo.AutoMigrate,
		alertRepo.AutoMigrate,
		failureLog.AutoMigrate,
		formStore.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate tables")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog, locations and link definitions are loaded once and treated
	// as a read-only snapshot for the life of the worker.
	variableRows, err := codesRepo.LoadVariables(ctx)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load variables")
	}
	catalog, err := codes.LoadCatalog(variableRows)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to compile variable catalog")
	}
	index, err := locationRepo.LoadIndex(ctx)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load locations")
	}
	linksContent, err := os.ReadFile(filepath.Join(cfg.ConfigDirectory, country.LinksFile))
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to read links file")
	}
	defs, err := links.ParseLinksFile(linksContent)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to parse links file")
	}

	coder := codes.NewCoder(catalog, index, country.AlertData, country.UUIDField, country.DeviceField)
	notifier := alerts.NewNotifier(cfg.NotificationURL, catalog, index, database.GetRedis(), cfg.AlertDedupeTTL)
	engine := links.NewEngine(defs, links.NewTableSource(db, tables), linksRepo)

	worker, err := pipeline.New(country.Pipeline, pipeline.Deps{
		Country:    country,
		Coder:      coder,
		CodedSink:  codesRepo,
		Forms:      formStore,
		AlertSink:  alertRepo,
		Notifier:   notifier,
		LinkEngine: engine,
		Failures:   failureLog,
		Alerts:     &pipeline.AlertBuffer{},
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid pipeline configuration")
	}

	consumer := kafka.NewConsumer(cfg.RawDataTopic, cfg.KafkaGroupID)
	defer consumer.Close()

	go func() {
		err := consumer.Consume(ctx, func(ctx context.Context, batch models.RawBatch) error {
			survivors, err := worker.ProcessBatch(ctx, batch.Records)
			if err != nil {
				return err
			}
			logger.Log.WithFields(map[string]interface{}{
				"batch_id":  batch.ID,
				"received":  len(batch.Records),
				"survivors": len(survivors),
			}).Info("Processed batch")
			return nil
		})
		if err != nil && err != context.Canceled {
			logger.Log.WithError(err).Fatal("Consumer error")
		}
	}()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)
	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Pipeline worker started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down pipeline worker...")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}
	database.ClosePostgres()
	database.CloseRedis()

	logger.Log.Info("Pipeline worker stopped")
}
