package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/wb-go/wbf/retry"
)

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Minio  MinioConfig
	Kafka  KafkaConfig
	Auth   AuthConfig
	Upload UploadConfig
	Retry  RetryConfig
}

type ServerConfig struct {
	Addr            string        `env:"SERVER_ADDR" env-default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" env-default:"60s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" env-default:"120s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" env-default:"90s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"15s"`
}

type DBConfig struct {
	Host            string        `env:"DB_HOST" env-default:"localhost"`
	Port            int           `env:"DB_PORT" env-default:"5432"`
	User            string        `env:"DB_USER" env-default:"postgres"`
	Password        string        `env:"DB_PASSWORD" env-default:"postgres"`
	Name            string        `env:"DB_NAME" env-default:"image_ingest"`
	SSLMode         string        `env:"DB_SSLMODE" env-default:"disable"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
}

type MinioConfig struct {
	Endpoint     string        `env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKey    string        `env:"MINIO_ACCESS_KEY" env-default:"minioadmin"`
	SecretKey    string        `env:"MINIO_SECRET_KEY" env-default:"minioadmin"`
	UseSSL       bool          `env:"MINIO_USE_SSL" env-default:"false"`
	Bucket       string        `env:"MINIO_BUCKET" env-default:"images"`
	MaxAttempts  int           `env:"MINIO_MAX_ATTEMPTS" env-default:"3"`
	WriteTimeout time.Duration `env:"MINIO_WRITE_TIMEOUT" env-default:"30s"`
}

type KafkaConfig struct {
	Brokers     []string `env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	EventsTopic string   `env:"KAFKA_EVENTS_TOPIC" env-default:"image-ingested"`
	Enabled     bool     `env:"KAFKA_ENABLED" env-default:"true"`
}

type AuthConfig struct {
	Secret string `env:"AUTH_SECRET" env-required:"true"`
}

type UploadConfig struct {
	ProcessTimeout    time.Duration `env:"UPLOAD_PROCESS_TIMEOUT" env-default:"60s"`
	SessionIdleWindow time.Duration `env:"UPLOAD_SESSION_IDLE_WINDOW" env-default:"30m"`
	SweepInterval     time.Duration `env:"UPLOAD_SWEEP_INTERVAL" env-default:"5m"`
}

type RetryConfig struct {
	Attempts int           `env:"RETRY_ATTEMPTS" env-default:"3"`
	Delay    time.Duration `env:"RETRY_DELAY" env-default:"500ms"`
	Backoff  float64       `env:"RETRY_BACKOFF" env-default:"2"`
}

func MustLoad() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from env: %w", err)
	}
	return cfg, nil
}

func (c *Config) DBDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name, c.DB.SSLMode)
}

func (c *Config) DefaultRetryStrategy() retry.Strategy {
	return retry.Strategy{
		Attempts: c.Retry.Attempts,
		Delay:    c.Retry.Delay,
		Backoff:  c.Retry.Backoff,
	}
}
