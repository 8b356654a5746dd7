package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool: the pipeline worker is single-threaded per batch
	// but the link engine fans out table scans.
	PostgresMaxOpenConns int
	PostgresMaxIdleConns int

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers  []string
	KafkaGroupID  string
	RawDataTopic  string
	ConsumerBatch int

	// Data sources
	InitialDataSource  string // AWS_S3, LOCAL_CSV or FAKE_DATA
	StreamDataSource   string // AWS_S3, FAKE_DATA or NONE
	S3Bucket           string
	S3Region           string
	DataDirectory      string
	ConfigDirectory    string
	CountryConfigFile  string
	DataStreamInterval time.Duration
	FakeDataInterval   time.Duration
	FakeDataCount      int

	// Alerting
	NotificationURL string
	AlertDedupeTTL  time.Duration
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "abacus"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "abacus123"),
		PostgresDB:       getEnv("POSTGRES_DB", "abacus"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		PostgresMaxOpenConns: getIntEnv("POSTGRES_MAX_OPEN_CONNS", 20),
		PostgresMaxIdleConns: getIntEnv("POSTGRES_MAX_IDLE_CONNS", 5),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:  getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID:  getEnv("KAFKA_GROUP_ID", "meerkat-abacus"),
		RawDataTopic:  getEnv("RAW_DATA_TOPIC", "abacus-raw-data"),
		ConsumerBatch: getIntEnv("CONSUMER_BATCH_SIZE", 1000),

		InitialDataSource:  getEnv("INITIAL_DATA_SOURCE", "LOCAL_CSV"),
		StreamDataSource:   getEnv("STREAM_DATA_SOURCE", "NONE"),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Region:           getEnv("S3_REGION", "eu-west-1"),
		DataDirectory:      getEnv("DATA_DIRECTORY", "/var/lib/abacus/data/"),
		ConfigDirectory:    getEnv("CONFIG_DIRECTORY", "/etc/abacus/"),
		CountryConfigFile:  getEnv("COUNTRY_CONFIG", "country_config.yaml"),
		DataStreamInterval: getDuration("DATA_STREAM_INTERVAL", 5*time.Minute),
		FakeDataInterval:   getDuration("FAKE_DATA_INTERVAL", 1*time.Minute),
		FakeDataCount:      getIntEnv("FAKE_DATA_N", 500),

		NotificationURL: getEnv("NOTIFICATION_URL", ""),
		AlertDedupeTTL:  getDuration("ALERT_DEDUPE_TTL", 24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
