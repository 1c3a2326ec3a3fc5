package config

import (
	"testing"
	"time"

	"github.com/MrSnakeDoc/connpane/internal/domain"
)

func expectPanic(t *testing.T, name string) {
	t.Helper()
	if r := recover(); r == nil {
		t.Errorf("%s should have panicked", name)
	}
}

func TestRequireEnv(t *testing.T) {
	t.Run("variable set", func(t *testing.T) {
		t.Setenv("TEST_VAR", "test_value")
		if got := requireEnv("TEST_VAR"); got != "test_value" {
			t.Errorf("requireEnv() = %v, want test_value", got)
		}
	})

	t.Run("variable not set", func(t *testing.T) {
		defer expectPanic(t, "requireEnv()")
		requireEnv("TEST_VAR_MISSING")
	})
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{name: "valid duration", value: "5s", def: time.Second, expected: 5 * time.Second},
		{name: "invalid duration uses default", value: "invalid", def: 10 * time.Second, expected: 10 * time.Second},
		{name: "missing variable uses default", value: "", def: 15 * time.Second, expected: 15 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			if got := mustDuration("TEST_DURATION", tt.def); got != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		def      bool
		expected bool
	}{
		{name: "true value", value: "true", def: false, expected: true},
		{name: "false value", value: "false", def: true, expected: false},
		{name: "invalid value uses default", value: "invalid", def: true, expected: true},
		{name: "missing variable uses default", value: "", def: false, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)
			if got := mustBool("TEST_BOOL", tt.def); got != tt.expected {
				t.Errorf("mustBool() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMustUnit(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv("TEST_UNIT", "")
		if got := mustUnit("TEST_UNIT", domain.UnitSeconds); got != domain.UnitSeconds {
			t.Errorf("mustUnit() = %v, want seconds", got)
		}
	})

	t.Run("milliseconds", func(t *testing.T) {
		t.Setenv("TEST_UNIT", "ms")
		if got := mustUnit("TEST_UNIT", domain.UnitSeconds); got != domain.UnitMilliseconds {
			t.Errorf("mustUnit() = %v, want milliseconds", got)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		t.Setenv("TEST_UNIT", "fortnights")
		defer expectPanic(t, "mustUnit()")
		mustUnit("TEST_UNIT", domain.UnitSeconds)
	})
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(` "a.example.com" , 'b.example.com',, c `)
	want := []string{"a.example.com", "b.example.com", "c"}
	if len(got) != len(want) {
		t.Fatalf("splitAndTrim() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitAndTrim()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if splitAndTrim("") != nil {
		t.Error("splitAndTrim(\"\") should be nil")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CONNPANE_CONNECTIONS_FILE", "/tmp/connections.yaml")
	t.Setenv("CONNPANE_REDIS_ADDR", "localhost:6379")
	t.Setenv("CONNPANE_REDIS_PASSWORD", "secret")
}

func TestLoad(t *testing.T) {
	setRequired(t)
	t.Setenv("CONNPANE_RETENTION", "720h")
	t.Setenv("CONNPANE_LAST_USED_UNIT", "milliseconds")
	t.Setenv("CONNPANE_ALLOWED_CIDRS", "10.0.0.0/8, 127.0.0.1")

	cfg := Load()

	if cfg.ConnectionsFile != "/tmp/connections.yaml" {
		t.Errorf("ConnectionsFile = %v", cfg.ConnectionsFile)
	}
	if cfg.ReloadInterval != 30*time.Second {
		t.Errorf("ReloadInterval = %v, want 30s", cfg.ReloadInterval)
	}
	if cfg.Retention != 720*time.Hour {
		t.Errorf("Retention = %v, want 720h", cfg.Retention)
	}
	if cfg.LastUsedUnit != domain.UnitMilliseconds {
		t.Errorf("LastUsedUnit = %v, want milliseconds", cfg.LastUsedUnit)
	}
	if len(cfg.AllowedCIDRS) != 2 {
		t.Errorf("AllowedCIDRS = %v, want 2 entries", cfg.AllowedCIDRS)
	}
	if cfg.AllowedHosts != nil {
		t.Errorf("AllowedHosts = %v, want nil", cfg.AllowedHosts)
	}
}

func TestLoadMissingConnectionsFile(t *testing.T) {
	setRequired(t)
	t.Setenv("CONNPANE_CONNECTIONS_FILE", "")

	defer expectPanic(t, "Load()")
	Load()
}

func TestLoadRequiresRedisPassword(t *testing.T) {
	setRequired(t)
	t.Setenv("CONNPANE_REDIS_PASSWORD", "")

	defer expectPanic(t, "Load()")
	Load()
}
