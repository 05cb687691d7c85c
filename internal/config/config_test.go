package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_PASSWORD", "pw")
	for _, key := range []string{"DATABASE_URL", "STORAGE_DRIVER", "EVENT_SINKS", "SERVER_HOST", "SERVER_PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Fatalf("expected memory driver, got %q", cfg.Storage.Driver)
	}
	if !reflect.DeepEqual(cfg.Events.Sinks, []string{SinkLog}) {
		t.Fatalf("expected log sink by default, got %v", cfg.Events.Sinks)
	}
	if cfg.Database.URL != "postgres://taskledger:pw@localhost:5432/taskledger?sslmode=disable" {
		t.Fatalf("unexpected database url %q", cfg.Database.URL)
	}
	if cfg.Address() != "0.0.0.0:8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORAGE_DRIVER", "Bolt")
	t.Setenv("EVENT_SINKS", " kafka, NATS ,,")
	t.Setenv("EVENT_RELAY_INTERVAL", "2")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "750ms")
	t.Setenv("RUN_MIGRATIONS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != DriverBolt {
		t.Fatalf("expected bolt driver, got %q", cfg.Storage.Driver)
	}
	if !reflect.DeepEqual(cfg.Events.Sinks, []string{SinkKafka, SinkNATS}) {
		t.Fatalf("unexpected sinks %v", cfg.Events.Sinks)
	}
	if !cfg.HasSink(SinkNATS) || cfg.HasSink(SinkRedis) {
		t.Fatalf("unexpected HasSink result")
	}
	if cfg.Events.RelayInterval != 2*time.Second {
		t.Fatalf("expected bare seconds to parse, got %v", cfg.Events.RelayInterval)
	}
	if cfg.Context.RequestTimeout != 750*time.Millisecond {
		t.Fatalf("expected duration to parse, got %v", cfg.Context.RequestTimeout)
	}
	if cfg.Migrations.Enabled {
		t.Fatalf("expected migrations disabled")
	}
}

func TestLoadRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{}},
		{"unknown driver", map[string]string{"JWT_SECRET": "x", "STORAGE_DRIVER": "mysql"}},
		{"unknown sink", map[string]string{"JWT_SECRET": "x", "EVENT_SINKS": "log,smtp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
