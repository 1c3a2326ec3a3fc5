package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/connpane/internal/domain"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	ConnectionsFile string              // registry file written by the connection-tracking backend
	ReloadInterval  time.Duration       // how often the registry file is re-read (default: 30s)
	PruneInterval   time.Duration       // how often stale connections are pruned (default: 1h)
	Retention       time.Duration       // drop connections unused for longer than this (0 = keep forever)
	LastUsedUnit    domain.LastUsedUnit // unit of last_used in backend payloads (default: seconds)

	// Ingest rate limiting (PUT/DELETE /connections)
	IngestBurst       int // tokens per client IP
	IngestRefillPerMn int // tokens regained per minute

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("CONNPANE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("CONNPANE_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("CONNPANE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("CONNPANE_PRETTY_LOG", true),

		// Connection registry
		ConnectionsFile: requireEnv("CONNPANE_CONNECTIONS_FILE"),
		ReloadInterval:  mustDuration("CONNPANE_RELOAD_INTERVAL", 30*time.Second),
		PruneInterval:   mustDuration("CONNPANE_PRUNE_INTERVAL", time.Hour),
		Retention:       mustDuration("CONNPANE_RETENTION", 0),
		LastUsedUnit:    mustUnit("CONNPANE_LAST_USED_UNIT", domain.UnitSeconds),

		IngestBurst:       getenvInt("CONNPANE_INGEST_BURST", 20),
		IngestRefillPerMn: getenvInt("CONNPANE_INGEST_REFILL_PER_MIN", 120),

		// Redis settings
		RedisAddr:             requireEnv("CONNPANE_REDIS_ADDR"),
		RedisUser:             getenv("CONNPANE_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("CONNPANE_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("CONNPANE_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("CONNPANE_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("CONNPANE_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("CONNPANE_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("CONNPANE_TRUST_PROXY", false),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: CONNPANE_REDIS_PASSWORD is required when CONNPANE_REDIS_PASSWORD_REQUIRED=true")
	}

	if cfg.ReloadInterval <= 0 {
		panic(fmt.Sprintf("❌ FATAL: CONNPANE_RELOAD_INTERVAL must be > 0, got %v", cfg.ReloadInterval))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// mustUnit panics on an unknown unit.
func mustUnit(key string, def domain.LastUsedUnit) domain.LastUsedUnit {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	u, err := domain.ParseLastUsedUnit(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid value for %s: %v", key, err))
	}
	return u
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
