package main

import (
	"fmt"
	"os"
	"time"

	"kitarekayasa/internal/auth"
	"kitarekayasa/internal/challenge/service"
	"kitarekayasa/internal/common/cache"
	"kitarekayasa/internal/common/db"
	"kitarekayasa/internal/common/mq"
	"kitarekayasa/internal/common/storage"
	"kitarekayasa/internal/ratelimit"
	"kitarekayasa/internal/upload"
	userservice "kitarekayasa/internal/user/service"
	"kitarekayasa/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8080"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMultipartMemory = 32 << 20
	defaultEventsTopic     = "challenge.events"
	defaultUploadBucket    = "kitarekayasa"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	// MaxMultipartMemory bounds the in-memory part of multipart parsing; the rest spills to disk.
	MaxMultipartMemory int64 `yaml:"maxMultipartMemory"`
}

// KafkaSection enables the lifecycle event producer.
type KafkaSection struct {
	Enabled        bool `yaml:"enabled"`
	mq.KafkaConfig `yaml:",inline"`
}

// AuthConfig holds token and login settings.
type AuthConfig struct {
	auth.TokenConfig              `yaml:",inline"`
	userservice.AuthServiceConfig `yaml:",inline"`
}

// AppConfig holds the server configuration.
type AppConfig struct {
	Server    ServerConfig        `yaml:"server"`
	Logger    logger.Config       `yaml:"logger"`
	Database  db.MySQLConfig      `yaml:"database"`
	Redis     cache.RedisConfig   `yaml:"redis"`
	MinIO     storage.MinIOConfig `yaml:"minio"`
	Kafka     KafkaSection        `yaml:"kafka"`
	Auth      AuthConfig          `yaml:"auth"`
	Upload    upload.Config       `yaml:"upload"`
	Challenge service.Config      `yaml:"challenge"`
	RateLimit ratelimit.Config    `yaml:"rateLimit"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.MaxMultipartMemory == 0 {
		cfg.Server.MaxMultipartMemory = defaultMultipartMemory
	}
	if cfg.Upload.Bucket == "" {
		cfg.Upload.Bucket = defaultUploadBucket
	}
	if cfg.Challenge.EventsTopic == "" {
		cfg.Challenge.EventsTopic = defaultEventsTopic
	}

	if cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("auth.jwtSecret is required")
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis.addr is required")
	}
	if cfg.MinIO.Endpoint == "" {
		return nil, fmt.Errorf("minio.endpoint is required")
	}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}

	return &cfg, nil
}
