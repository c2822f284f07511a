package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/app"
	"github.com/vladislavdragonenkov/simpleshop/internal/version"
)

const (
	envLogLevel               = "SHOP_LOG_LEVEL"
	envLogFormat              = "SHOP_LOG_FORMAT"
	envHTTPAddr               = "SHOP_HTTP_ADDR"
	envGRPCAddr               = "SHOP_GRPC_ADDR"
	envMetricsAddr            = "SHOP_METRICS_ADDR"
	envJWTSecret              = "SHOP_JWT_SECRET"
	envTokenTTL               = "SHOP_TOKEN_TTL"
	envProcessingDelay        = "SHOP_PROCESSING_DELAY"
	envCompletionDelay        = "SHOP_COMPLETION_DELAY"
	envStorageDriver          = "SHOP_STORAGE_DRIVER"
	envPostgresDSN            = "SHOP_POSTGRES_DSN"
	envPostgresAutoMigrate    = "SHOP_POSTGRES_AUTO_MIGRATE"
	envRedisAddr              = "SHOP_REDIS_ADDR"
	envRoleCacheTTL           = "SHOP_ROLE_CACHE_TTL"
	envKafkaBrokers           = "SHOP_KAFKA_BROKERS"
	envOutboxPollInterval     = "SHOP_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize        = "SHOP_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts      = "SHOP_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay       = "SHOP_OUTBOX_RETRY_DELAY"
	envOutboxRetention        = "SHOP_OUTBOX_RETENTION"
	envOutboxCleanupInterval  = "SHOP_OUTBOX_CLEANUP_INTERVAL"
	envIdentityMode           = "SHOP_IDENTITY_MODE"
	envBootstrapAdminEmail    = "SHOP_BOOTSTRAP_ADMIN_EMAIL"
	envBootstrapAdminPassword = "SHOP_BOOTSTRAP_ADMIN_PASSWORD"
	envShutdownTimeout        = "SHOP_SHUTDOWN_TIMEOUT"
)

type envLookup func(string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if raw, ok := lookup(envLogFormat); ok && strings.EqualFold(strings.TrimSpace(raw), "json") {
		log.SetFormatter(&log.JSONFormatter{})
	}

	log.SetLevel(log.InfoLevel)
	if raw, ok := lookup(envLogLevel); ok && strings.TrimSpace(raw) != "" {
		level, err := log.ParseLevel(strings.TrimSpace(raw))
		if err != nil {
			log.WithError(err).Warnf("invalid %s, using info", envLogLevel)
			return
		}
		log.SetLevel(level)
	}
}

// readConfigFromEnv формирует конфигурацию; некорректные значения заменяются дефолтами с предупреждением.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("invalid %s=%q: %v, using default", key, raw, err))
	}

	readString := func(key string, dst *string) {
		if raw, ok := lookup(key); ok && strings.TrimSpace(raw) != "" {
			*dst = strings.TrimSpace(raw)
		}
	}
	readBool := func(key string, dst *bool) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		value, err := parseBool(raw)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = value
	}
	readInt := func(key string, dst *int) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		value, err := parseInt(raw, func(v int) bool { return v > 0 }, "must be > 0")
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = value
	}
	readDuration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		value, err := parseDuration(raw, valid, rule)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = value
	}
	positive := func(v time.Duration) bool { return v > 0 }
	nonNegative := func(v time.Duration) bool { return v >= 0 }

	readString(envHTTPAddr, &cfg.HTTPAddr)
	readString(envGRPCAddr, &cfg.GRPCAddr)
	readString(envMetricsAddr, &cfg.MetricsAddr)
	readString(envJWTSecret, &cfg.JWTSecret)
	readDuration(envTokenTTL, &cfg.TokenTTL, positive, "must be > 0")
	readDuration(envProcessingDelay, &cfg.ProcessingDelay, nonNegative, "must be >= 0")
	readDuration(envCompletionDelay, &cfg.CompletionDelay, nonNegative, "must be >= 0")

	readString(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	readString(envPostgresDSN, &cfg.PostgresDSN)
	readBool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	readString(envRedisAddr, &cfg.RedisAddr)
	readDuration(envRoleCacheTTL, &cfg.RoleCacheTTL, positive, "must be > 0")

	readString(envKafkaBrokers, &cfg.KafkaBrokers)
	readDuration(envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0")
	readInt(envOutboxBatchSize, &cfg.OutboxBatchSize)
	readInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts)
	readDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative, "must be >= 0")
	readDuration(envOutboxRetention, &cfg.OutboxRetention, positive, "must be > 0")
	readDuration(envOutboxCleanupInterval, &cfg.OutboxCleanupInterval, positive, "must be > 0")

	readString(envIdentityMode, &cfg.IdentityMode)
	cfg.IdentityMode = strings.ToLower(cfg.IdentityMode)
	readString(envBootstrapAdminEmail, &cfg.BootstrapAdminEmail)
	readString(envBootstrapAdminPassword, &cfg.BootstrapAdminPassword)
	readDuration(envShutdownTimeout, &cfg.ShutdownTimeout, positive, "must be > 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("unsupported bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func main() {
	setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version":      version.GetVersion(),
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("запускаем shop-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("shop-service остановлен")
}
