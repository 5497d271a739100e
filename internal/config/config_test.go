package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"CRM_STORE_BACKEND", "CRM_DATA_PATH", "CRM_REMINDER_HOUR",
		"CRM_SWEEP_INTERVAL_SECONDS", "CRM_TIMEZONE", "CRM_S3_USE_SSL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.StoreBackend != "" {
		t.Fatalf("StoreBackend = %q, want detection", cfg.StoreBackend)
	}
	if cfg.DataPath != "data/crm.db" {
		t.Fatalf("DataPath = %q", cfg.DataPath)
	}
	if cfg.ReminderHour != 9 {
		t.Fatalf("ReminderHour = %d, want 9", cfg.ReminderHour)
	}
	if cfg.SweepInterval != time.Hour {
		t.Fatalf("SweepInterval = %s, want 1h", cfg.SweepInterval)
	}
	if cfg.Location != time.Local {
		t.Fatalf("Location = %v, want Local", cfg.Location)
	}
	if cfg.S3UseSSL {
		t.Fatal("S3UseSSL should default to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CRM_STORE_BACKEND", "Redis")
	t.Setenv("CRM_REMINDER_HOUR", "8")
	t.Setenv("CRM_SWEEP_INTERVAL_SECONDS", "60")
	t.Setenv("CRM_TIMEZONE", "UTC")
	t.Setenv("CRM_S3_USE_SSL", "true")

	cfg := Load()
	if cfg.StoreBackend != "redis" {
		t.Fatalf("StoreBackend = %q, want redis", cfg.StoreBackend)
	}
	if cfg.ReminderHour != 8 {
		t.Fatalf("ReminderHour = %d", cfg.ReminderHour)
	}
	if cfg.SweepInterval != time.Minute {
		t.Fatalf("SweepInterval = %s", cfg.SweepInterval)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("Location = %v, want UTC", cfg.Location)
	}
	if !cfg.S3UseSSL {
		t.Fatal("S3UseSSL should be true")
	}
}

func TestGetenvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("CRM_TEST_INT", "nine")
	if got := getenvInt("CRM_TEST_INT", 9); got != 9 {
		t.Fatalf("getenvInt() = %d, want fallback", got)
	}
}
