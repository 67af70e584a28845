package config

import (
	"bytes"
	_ "embed"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	Log          LogConfig          `mapstructure:"log"`
	HTTP         HTTPConfig         `mapstructure:"http"`
	MySQL        DatabaseConfig     `mapstructure:"mysql"`
	ClickHouse   DatabaseConfig     `mapstructure:"clickhouse"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Rabbit       RabbitConfig       `mapstructure:"rabbit"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Dedup        DedupConfig        `mapstructure:"dedup"`
	Notifier     NotifierConfig     `mapstructure:"notifier"`
	Providers    []ProviderConfig   `mapstructure:"providers"`
}

// ---- Leaf structs ----

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type RabbitConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	Prefetch int    `mapstructure:"prefetch"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type OrchestratorConfig struct {
	Workers        int           `mapstructure:"workers"`
	RespawnDelay   time.Duration `mapstructure:"respawn_delay"`
	WorkerBinary   string        `mapstructure:"worker_binary"`    // empty = current executable
	WorkerLogLevel string        `mapstructure:"worker_log_level"` // passed through to spawned workers
}

type DedupConfig struct {
	Window     time.Duration `mapstructure:"window"`
	MaxEntries int           `mapstructure:"max_entries"`
}

type NotifierConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

type ProviderConfig struct {
	Name       string        `mapstructure:"name"`
	Enabled    bool          `mapstructure:"enabled"`
	BaseURL    string        `mapstructure:"base_url"`
	NotifyPath string        `mapstructure:"notify_path"`
	TimeoutMs  int           `mapstructure:"timeout_ms"`
	Breaker    BreakerConfig `mapstructure:"breaker"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env overrides (BANKSAGA_*).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		_ = v.MergeInConfig()
	}

	// env override (BANKSAGA_*)
	v.SetEnvPrefix("BANKSAGA")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
