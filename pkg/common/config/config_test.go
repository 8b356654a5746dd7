package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.RawDataTopic != "abacus-raw-data" {
		t.Fatalf("unexpected topic: %q", cfg.RawDataTopic)
	}
	if cfg.PostgresMaxOpenConns != 20 || cfg.PostgresMaxIdleConns != 5 {
		t.Fatalf("unexpected pool defaults: open=%d idle=%d", cfg.PostgresMaxOpenConns, cfg.PostgresMaxIdleConns)
	}
	if cfg.ConsumerBatch != 1000 {
		t.Fatalf("unexpected batch size: %d", cfg.ConsumerBatch)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("POSTGRES_MAX_OPEN_CONNS", "50")
	t.Setenv("RAW_DATA_TOPIC", "abacus-test")
	cfg := Load()
	if cfg.PostgresMaxOpenConns != 50 {
		t.Fatalf("expected env override, got %d", cfg.PostgresMaxOpenConns)
	}
	if cfg.RawDataTopic != "abacus-test" {
		t.Fatalf("expected env override, got %q", cfg.RawDataTopic)
	}
}
