// Package config 提供质量配置服务配置管理
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 质量配置服务配置
type Config struct {
	Service      ServiceConfig      `yaml:"service" json:"service"`
	Postgres     PostgresConfig     `yaml:"postgres" json:"postgres"`
	Redis        RedisConfig        `yaml:"redis" json:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka" json:"kafka"`
	Notification NotificationConfig `yaml:"notification" json:"notification"`
	BuiltIn      BuiltInConfig      `yaml:"builtin" json:"builtin"`
	Activation   ActivationConfig   `yaml:"activation" json:"activation"`
	Log          LogConfig          `yaml:"log" json:"log"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name     string `yaml:"name" json:"name"`
	HTTPPort int    `yaml:"http_port" json:"http_port"`
	Env      string `yaml:"env" json:"env"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host                   string `yaml:"host" json:"host"`
	Port                   int    `yaml:"port" json:"port"`
	Database               string `yaml:"database" json:"database"`
	User                   string `yaml:"user" json:"user"`
	Password               string `yaml:"password" json:"password"`
	MaxConnections         int    `yaml:"max_connections" json:"max_connections"`
	MaxIdleConns           int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" json:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `yaml:"auto_migrate" json:"auto_migrate"`
}

// DSN 返回连接串
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addresses []string `yaml:"addresses" json:"addresses"`
	Password  string   `yaml:"password" json:"password"`
	DB        int      `yaml:"db" json:"db"`
	PoolSize  int      `yaml:"pool_size" json:"pool_size"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Brokers  []string `yaml:"brokers" json:"brokers"`
	ClientID string   `yaml:"client_id" json:"client_id"`
}

// NotificationConfig 内置配置变更通知
type NotificationConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Topic   string `yaml:"topic" json:"topic"`
}

// BuiltInConfig 内置配置同步
type BuiltInConfig struct {
	DefinitionsFile string `yaml:"definitions_file" json:"definitions_file"`
	Cron            string `yaml:"cron" json:"cron"`
	SyncOnStartup   bool   `yaml:"sync_on_startup" json:"sync_on_startup"`
	Propagate       bool   `yaml:"propagate" json:"propagate"` // 同步后向子配置传播
	TimeoutSeconds  int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	LockTTLSeconds  int    `yaml:"lock_ttl_seconds" json:"lock_ttl_seconds"`
}

// Timeout 同步超时
func (c *BuiltInConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LockTTL 同步锁 TTL
func (c *BuiltInConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// ActivationConfig 规则激活配置
type ActivationConfig struct {
	BulkPageSize int `yaml:"bulk_page_size" json:"bulk_page_size"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// Load 读取 YAML 配置, 展开 ${VAR:default} 后填充默认值并校验
func Load(configPath string) (*Config, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(raw))), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configPath, err)
	}
	setDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

// expandEnvVars 环境变量为空时取默认值
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := envPattern.FindStringSubmatch(m)
		if v := os.Getenv(sub[1]); v != "" {
			return v
		}
		return sub[2]
	})
}

func (c *Config) validate() error {
	if c.Activation.BulkPageSize < 0 {
		return fmt.Errorf("activation.bulk_page_size must be positive, got %d", c.Activation.BulkPageSize)
	}
	if c.BuiltIn.LockTTLSeconds < c.BuiltIn.TimeoutSeconds {
		return fmt.Errorf("builtin.lock_ttl_seconds (%d) must not be shorter than builtin.timeout_seconds (%d)",
			c.BuiltIn.LockTTLSeconds, c.BuiltIn.TimeoutSeconds)
	}
	if c.Notification.Enabled && c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when notification is enabled")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "eidos-qprofile"
	}
	if cfg.Service.HTTPPort == 0 {
		cfg.Service.HTTPPort = 8080
	}
	if cfg.Service.Env == "" {
		cfg.Service.Env = "dev"
	}

	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.MaxConnections == 0 {
		cfg.Postgres.MaxConnections = 30
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 10
	}
	if cfg.Postgres.ConnMaxLifetimeMinutes == 0 {
		cfg.Postgres.ConnMaxLifetimeMinutes = 60
	}

	if len(cfg.Redis.Addresses) == 0 {
		cfg.Redis.Addresses = []string{"localhost:6379"}
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 50
	}

	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = cfg.Service.Name
	}
	if cfg.Notification.Topic == "" {
		cfg.Notification.Topic = "qprofile-builtin-changes"
	}

	if cfg.BuiltIn.Cron == "" {
		cfg.BuiltIn.Cron = "0 */10 * * * *" // 每10分钟
	}
	if cfg.BuiltIn.TimeoutSeconds == 0 {
		cfg.BuiltIn.TimeoutSeconds = 300
	}
	if cfg.BuiltIn.LockTTLSeconds == 0 {
		cfg.BuiltIn.LockTTLSeconds = 360
	}

	if cfg.Activation.BulkPageSize == 0 {
		cfg.Activation.BulkPageSize = 100
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}
