package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

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
	"github.com/meerkat-code/meerkat-abacus/pkg/pipeline"
)

// The consumer owns initial setup: it prepares the database, imports the
// reference data (locations, variables, link definitions), acquires the
// initial form data from the configured source and feeds it to the pipeline
// worker, then keeps streaming new data.
func main() {
	logger.Init()
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

	logger.Log.Info("Importing locations")
	if err := ingest.ImportLocations(ctx, country, cfg.ConfigDirectory, locationRepo); err != nil {
		logger.Log.WithError(err).Fatal("failed to import locations")
	}
	logger.Log.Info("Importing variables")
	if err := ingest.ImportVariables(ctx, country, cfg.ConfigDirectory, codesRepo); err != nil {
		logger.Log.WithError(err).Fatal("failed to import variables")
	}
	logger.Log.Info("Importing link definitions")
	if _, err := ingest.ImportLinks(ctx, country, cfg.ConfigDirectory, linksRepo); err != nil {
		logger.Log.WithError(err).Fatal("failed to import link definitions")
	}

	index, err := locationRepo.LoadIndex(ctx)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to load locations")
	}

	producer := kafka.NewProducer(cfg.RawDataTopic)
	defer producer.Close()

	forms := make([]string, 0, len(country.Tables))
	for form := range country.Tables {
		forms = append(forms, form)
	}

	generator := ingest.NewGenerator(country, index)
	reader, err := initialReader(ctx, cfg, country, generator)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to prepare initial data source")
	}
	// Only rows not yet stored, from registered devices, get published.
	filtered := newRows(ctx, country, index, formStore, reader)

	logger.Log.WithField("source", cfg.InitialDataSource).Info("Publishing initial data")
	if err := ingest.PublishStationaryData(ctx, generatorFirst(generator, forms), filtered, producer, cfg.InitialDataSource, cfg.ConsumerBatch); err != nil {
		logger.Log.WithError(err).Fatal("failed to publish initial data")
	}

	go streamLoop(ctx, cfg, country, index, formStore, generator, producer, forms)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down consumer...")
	cancel()
	database.ClosePostgres()
	logger.Log.Info("Consumer stopped")
}

// initialReader wires the configured initial source to a per-form row
// reader. An unknown source is a deployment defect.
func initialReader(ctx context.Context, cfg *config.Config, country *countryconfig.CountryConfig, generator *ingest.Generator) (ingest.RowReader, error) {
	csvReader := func(form string) ([]models.Row, error) {
		return ingest.ReadCSV(filepath.Join(cfg.DataDirectory, country.TableName(form)+".csv"))
	}

	switch cfg.InitialDataSource {
	case "AWS_S3":
		downloader, err := ingest.NewDownloader(ctx, cfg.S3Region, cfg.S3Bucket)
		if err != nil {
			return nil, err
		}
		tables := make([]string, 0, len(country.Tables))
		for _, table := range country.Tables {
			tables = append(tables, table)
		}
		if err := downloader.DownloadFormData(ctx, tables, cfg.DataDirectory); err != nil {
			return nil, err
		}
		return csvReader, nil
	case "LOCAL_CSV":
		return csvReader, nil
	case "FAKE_DATA":
		// Generated rows are written through CSV so demo data survives
		// restarts and reads back the same way as real exports.
		for _, form := range generatorFirst(generator, nil) {
			rows, err := generator.Generate(form, cfg.FakeDataCount, false)
			if err != nil {
				return nil, err
			}
			if err := ingest.WriteCSV(filepath.Join(cfg.DataDirectory, country.TableName(form)+".csv"), rows); err != nil {
				return nil, err
			}
		}
		return csvReader, nil
	default:
		logger.Log.WithField("source", cfg.InitialDataSource).Fatal("invalid initial data source")
		return nil, nil
	}
}

// newRows wraps a reader with the intake filter: rows already stored are
// skipped by uuid, rows from unregistered devices are dropped, and the
// survivors are persisted before publishing.
func newRows(ctx context.Context, country *countryconfig.CountryConfig, index *locations.Index, store *ingest.FormStore, reader ingest.RowReader) ingest.RowReader {
	return func(form string) ([]models.Row, error) {
		rows, err := reader(form)
		if err != nil {
			return nil, err
		}
		registered := ingest.RegisteredDevices(country, index, form)
		return store.AddNew(ctx, form, rows, registered, country.UUIDField, country.DeviceField)
	}
}

// generatorFirst orders forms so case forms are handled before their
// follow-up forms; for non-fake sources the order is immaterial.
func generatorFirst(generator *ingest.Generator, fallback []string) []string {
	if forms := generator.Forms(); len(forms) > 0 {
		return forms
	}
	return fallback
}

func streamLoop(ctx context.Context, cfg *config.Config, country *countryconfig.CountryConfig, index *locations.Index, store *ingest.FormStore, generator *ingest.Generator, producer *kafka.Producer, forms []string) {
	switch cfg.StreamDataSource {
	case "AWS_S3":
		ticker := time.NewTicker(cfg.DataStreamInterval)
		defer ticker.Stop()
		csvReader := newRows(ctx, country, index, store, func(form string) ([]models.Row, error) {
			return ingest.ReadCSV(filepath.Join(cfg.DataDirectory, country.TableName(form)+".csv"))
		})
		tables := make([]string, 0, len(country.Tables))
		for _, table := range country.Tables {
			tables = append(tables, table)
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				downloader, err := ingest.NewDownloader(ctx, cfg.S3Region, cfg.S3Bucket)
				if err != nil {
					logger.Log.WithError(err).Error("failed to build s3 client")
					continue
				}
				if err := downloader.DownloadFormData(ctx, tables, cfg.DataDirectory); err != nil {
					logger.Log.WithError(err).Error("failed to refresh form data")
					continue
				}
				if err := ingest.PublishStationaryData(ctx, forms, csvReader, producer, cfg.StreamDataSource, cfg.ConsumerBatch); err != nil {
					logger.Log.WithError(err).Error("failed to publish refreshed data")
				}
			}
		}
	case "FAKE_DATA":
		ticker := time.NewTicker(cfg.FakeDataInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, form := range generator.Forms() {
					rows, err := generator.Generate(form, 10, true)
					if err != nil {
						logger.Log.WithError(err).Error("failed to generate fake data")
						continue
					}
					added, err := store.AddNew(ctx, form, rows, nil, country.UUIDField, country.DeviceField)
					if err != nil {
						logger.Log.WithError(err).Error("failed to store fake data")
						continue
					}
					records := make([]models.RawRecord, 0, len(added))
					for _, row := range added {
						records = append(records, models.RawRecord{Form: form, Data: row})
					}
					if err := producer.PublishBatch(ctx, "FAKE_DATA", records); err != nil {
						logger.Log.WithError(err).Error("failed to publish fake data")
					}
				}
			}
		}
	default:
		logger.Log.WithField("source", cfg.StreamDataSource).Info("No stream data source configured")
	}
}
