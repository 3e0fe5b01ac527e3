package config

import (
	"strings"
	"time"
)

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"                    envDefault:"localhost"`
	Port     int    `env:"PORT"                    envDefault:"5432"`
	User     string `env:"USER"                    envDefault:"driveline"`
	Password string `env:"PASSWORD"                envDefault:"driveline"`
	Name     string `env:"NAME"                    envDefault:"driveline"`
	SSLMode  string `env:"SSL_MODE"                envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`

	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"     envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"     envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"  envDefault:"5m"`
	ConnectTimeout  time.Duration `env:"CONNECT_TIMEOUT"    envDefault:"5s"`
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`

	// IntakeKey is the list the chat-event handler pushes ingest requests onto.
	IntakeKey string `env:"INTAKE_KEY" envDefault:"driveline:intake"`

	// IntakePollTimeout bounds a single BRPOP so shutdown is observed promptly.
	IntakePollTimeout time.Duration `env:"INTAKE_POLL_TIMEOUT" envDefault:"5s"`

	// NameTTL is how long resolved context display names stay cached.
	NameTTL time.Duration `env:"NAME_TTL" envDefault:"10m"`
}

// Sanitize applies guardrails to Redis configuration values.
func (r *RedisConfig) Sanitize() {
	r.IntakeKey = strings.TrimSpace(r.IntakeKey)
	if r.IntakeKey == "" {
		r.IntakeKey = "driveline:intake"
	}
	if r.IntakePollTimeout < time.Second {
		r.IntakePollTimeout = time.Second
	}
	if r.NameTTL < time.Minute {
		r.NameTTL = time.Minute
	}
}
