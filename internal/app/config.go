package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Поддерживаемые хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Режимы проверки паролей.
const (
	IdentityModeLocal = "local"
	IdentityModeMock  = "mock"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	JWTSecret string
	TokenTTL  time.Duration

	ProcessingDelay time.Duration
	CompletionDelay time.Duration

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	RedisAddr    string
	RoleCacheTTL time.Duration

	KafkaBrokers       string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	OutboxRetention       time.Duration
	OutboxCleanupInterval time.Duration

	IdentityMode string

	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:              ":8080",
		GRPCAddr:              ":50051",
		MetricsAddr:           ":9090",
		TokenTTL:              time.Hour,
		ProcessingDelay:       3 * time.Second,
		CompletionDelay:       3 * time.Second,
		StorageDriver:         StorageDriverMemory,
		PostgresAutoMigrate:   true,
		RoleCacheTTL:          time.Minute,
		OutboxPollInterval:    time.Second,
		OutboxBatchSize:       100,
		OutboxMaxAttempts:     3,
		OutboxRetryDelay:      50 * time.Millisecond,
		OutboxRetention:       24 * time.Hour,
		OutboxCleanupInterval: 10 * time.Minute,
		IdentityMode:          IdentityModeLocal,
		ShutdownTimeout:       10 * time.Second,
	}
}

// KafkaBrokerList разбирает список брокеров через запятую.
func (c Config) KafkaBrokerList() []string {
	var brokers []string
	for _, broker := range strings.Split(c.KafkaBrokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// Validate проверяет настройки, без которых сервис не стартует.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	switch c.IdentityMode {
	case IdentityModeLocal, IdentityModeMock:
	default:
		errs = append(errs, fmt.Errorf("unsupported identity mode %q", c.IdentityMode))
	}
	if c.ProcessingDelay < 0 || c.CompletionDelay < 0 {
		errs = append(errs, errors.New("lifecycle delays must be >= 0"))
	}
	if c.OutboxRetention < 0 || c.OutboxCleanupInterval < 0 {
		errs = append(errs, errors.New("outbox cleanup settings must be >= 0"))
	}
	if (c.BootstrapAdminEmail == "") != (c.BootstrapAdminPassword == "") {
		errs = append(errs, errors.New("bootstrap admin needs both email and password"))
	}
	return errors.Join(errs...)
}
