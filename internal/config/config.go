// Package config loads the server's YAML configuration, following the
// teacher's config->env->default fallback layering.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration struct for the world/transport core.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	World     WorldConfig     `yaml:"world"`
	Store     StoreConfig     `yaml:"store"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Admin     AdminConfig     `yaml:"admin"`
}

// TransportConfig configures C4's listen address and wire-level budgets.
type TransportConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	MaxConnections    int           `yaml:"max_connections"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	ResendInterval    time.Duration `yaml:"resend_interval"`
	Window            int           `yaml:"window"`
	MTU               int           `yaml:"mtu"`
	AckCoalesceMs     int           `yaml:"ack_coalesce_ms"`
	ReassemblyTimeout time.Duration `yaml:"reassembly_timeout"`
}

// WorldConfig configures C7's cadence and the world's fixed starting point.
type WorldConfig struct {
	TickMs           int     `yaml:"tick_ms"`
	SnapshotSeconds  int     `yaml:"snapshot_seconds"`
	StartDistrict    uint8   `yaml:"start_district"`
	StartX           float64 `yaml:"start_x"`
	StartY           float64 `yaml:"start_y"`
	StartZ           float64 `yaml:"start_z"`
}

// StoreConfig configures C9's four backing connections.
type StoreConfig struct {
	MySQLDSN     string        `yaml:"mysql_dsn"`
	MongoURI     string        `yaml:"mongo_uri"`
	MongoDB      string        `yaml:"mongo_database"`
	RedisAddr    string        `yaml:"redis_addr"`
	RedisPass    string        `yaml:"redis_password"`
	RedisDB      int           `yaml:"redis_db"`
	RedisTTL     time.Duration `yaml:"redis_ttl"`
	DataDir      string        `yaml:"data_dir"`
}

// EventBusConfig configures the A/M boundary bus (§4.8, NATS JetStream).
type EventBusConfig struct {
	URL             string `yaml:"url"`
	Stream          string `yaml:"stream"`
	RetentionHours  int    `yaml:"retention_hours"`
	TicketSecret    string `yaml:"ticket_secret"`
}

// AdminConfig configures the ops-facing HTTP surface (healthz/metrics/debug).
type AdminConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Defaults returns the configuration matching §4's stated defaults
// (tick_ms=50, window=64, mtu=1200, reassembly_timeout=5s).
func Defaults() Config {
	return Config{
		Transport: TransportConfig{
			ListenAddr:        ":7778",
			MaxConnections:    4096,
			ConnectionTimeout: 30 * time.Second,
			PingInterval:      5 * time.Second,
			ResendInterval:    500 * time.Millisecond,
			Window:            64,
			MTU:               1200,
			AckCoalesceMs:     20,
			ReassemblyTimeout: 5 * time.Second,
		},
		World: WorldConfig{
			TickMs:          50,
			SnapshotSeconds: 60,
			StartDistrict:   1,
		},
		Store: StoreConfig{
			MySQLDSN:  "gameuser:gamepass123@tcp(localhost:3306)/mmocore?parseTime=true",
			MongoURI:  "mongodb://localhost:27017",
			MongoDB:   "mmocore",
			RedisAddr: "localhost:6379",
			RedisTTL:  5 * time.Minute,
			DataDir:   "./data",
		},
		EventBus: EventBusConfig{
			URL:            "nats://localhost:4222",
			Stream:         "auth.tickets",
			RetentionHours: 24,
		},
		Admin: AdminConfig{
			ListenAddr: ":2112",
		},
	}
}

// Load reads a YAML file at path, overlaying it onto Defaults(). If path is
// empty it falls back to the GAME_CONFIG environment variable; if that is
// also unset, Defaults() alone is returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("GAME_CONFIG")
	}
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Transport.ListenAddr = envOverride("GAME_TRANSPORT_ADDR", cfg.Transport.ListenAddr)
	cfg.Admin.ListenAddr = envOverride("GAME_ADMIN_ADDR", cfg.Admin.ListenAddr)
	cfg.EventBus.URL = envOverride("GAME_NATS_URL", cfg.EventBus.URL)
	cfg.Store.MySQLDSN = envOverride("GAME_MYSQL_DSN", cfg.Store.MySQLDSN)
	cfg.World.TickMs = envInt("GAME_TICK_MS", cfg.World.TickMs)

	return &cfg, nil
}

// envOverride returns the environment variable's value when set, else fall.
func envOverride(envVar, fall string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fall
}

// envInt reads an integer environment variable, returning fall on absence
// or parse failure. Like envOverride, Load applies it only after a YAML
// file has been read.
func envInt(envVar string, fall int) int {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fall
}
