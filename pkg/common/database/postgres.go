package database

import (
	"fmt"
	"sync"
	"time"

	"github.com/meerkat-code/meerkat-abacus/pkg/common/config"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
)

func GetPostgres() (*gorm.DB, error) {
	var err error
	dbOnce.Do(func() {
		cfg := config.Load()
		dsn := fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			cfg.PostgresHost,
			cfg.PostgresUser,
			cfg.PostgresPassword,
			cfg.PostgresDB,
			cfg.PostgresPort,
			cfg.PostgresSSLMode,
		)

		// gorm's own logger would interleave plain-text SQL noise with
		// the JSON log stream, so it only reports slow queries.
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			logger.Log.WithError(err).Error("Failed to connect to PostgreSQL")
			return
		}

		if sqlDB, poolErr := db.DB(); poolErr == nil {
			sqlDB.SetMaxOpenConns(cfg.PostgresMaxOpenConns)
			sqlDB.SetMaxIdleConns(cfg.PostgresMaxIdleConns)
			sqlDB.SetConnMaxLifetime(time.Hour)
		}

		logger.Log.WithFields(map[string]interface{}{
			"host":     cfg.PostgresHost,
			"database": cfg.PostgresDB,
		}).Info("Connected to PostgreSQL")
	})

	return db, err
}

func ClosePostgres() error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
