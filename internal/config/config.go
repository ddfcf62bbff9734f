package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	Env         string
	LogLevel    string
	LogFile     string

	HTTPAddr string
	GRPCAddr string

	MySQLDSN        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// DirectoryDriver selects the gorm dialector: mysql reuses the MySQL pool,
	// postgres and sqlite open DirectoryDSN.
	DirectoryDriver string
	DirectoryDSN    string

	// RedisAddr and RabbitURL are optional. Empty disables idempotency keys and
	// routes order events to the log.
	RedisAddr string
	RabbitURL string

	UploadDir     string
	SessionSecret string

	WorkerCount int
	QueueSize   int
}

// Load reads .env files when present and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Overload(".env", "../.env", "../../.env")
	return FromEnv()
}

func FromEnv() (Config, error) {
	var errs []error
	c := Config{
		ServiceName: str("SERVICE_NAME", "storefront"),
		Env:         str("APP_ENV", "dev"),
		LogLevel:    str("LOG_LEVEL", "info"),
		LogFile:     str("LOG_FILE", ""),

		HTTPAddr: str("HTTP_ADDR", ":3000"),
		GRPCAddr: str("GRPC_ADDR", ":50051"),

		MySQLDSN:        str("MYSQL_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true"),
		MaxOpenConns:    num("DB_MAX_OPEN_CONNS", 10, &errs),
		MaxIdleConns:    num("DB_MAX_IDLE_CONNS", 5, &errs),
		ConnMaxLifetime: dur("DB_CONN_MAX_LIFETIME", 5*time.Minute, &errs),

		DirectoryDriver: strings.ToLower(str("DIRECTORY_DRIVER", "mysql")),
		DirectoryDSN:    str("DIRECTORY_DSN", ""),

		RedisAddr: str("REDIS_ADDR", ""),
		RabbitURL: str("RABBITMQ_URL", ""),

		UploadDir:     str("UPLOAD_DIR", "./img"),
		SessionSecret: str("SESSION_SECRET", ""),

		WorkerCount: num("WORKER_COUNT", 4, &errs),
		QueueSize:   num("QUEUE_SIZE", 1000, &errs),
	}

	if c.MaxOpenConns <= 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.MaxOpenConns))
	}
	if c.WorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount))
	}
	if c.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("QUEUE_SIZE must not be negative, got %d", c.QueueSize))
	}
	switch c.DirectoryDriver {
	case "mysql":
	case "postgres", "sqlite":
		if c.DirectoryDSN == "" {
			errs = append(errs, fmt.Errorf("DIRECTORY_DSN is required for driver %s", c.DirectoryDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("DIRECTORY_DRIVER %q is not supported", c.DirectoryDriver))
	}
	if c.SessionSecret == "" {
		if c.Env == "prod" {
			errs = append(errs, errors.New("SESSION_SECRET is required in prod"))
		}
		c.SessionSecret = "dev-secret-change-me"
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func num(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func dur(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
