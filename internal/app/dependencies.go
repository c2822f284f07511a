package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/simpleshop/internal/health"
	"github.com/vladislavdragonenkov/simpleshop/internal/storage/memory"
	"github.com/vladislavdragonenkov/simpleshop/internal/storage/postgres"
	"github.com/vladislavdragonenkov/simpleshop/internal/storage/rediscache"
)

const healthCheckTimeout = 2 * time.Second

// runtimeDependencies содержит репозитории и проверки выбранного хранилища.
type runtimeDependencies struct {
	orders    domain.OrderRepository
	customers domain.CustomerRepository
	roles     domain.RoleRepository
	timeline  domain.TimelineRepository
	outbox    domain.OutboxRepository

	outboxPurger domain.OutboxPurger

	storageChecker healthcheck.Checker
	cacheChecker   healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies открывает хранилище и, если задан Redis, оборачивает роли кешем.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	var (
		deps    *runtimeDependencies
		closers []func() error
	)
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		outbox := memory.NewOutboxRepository()
		deps = &runtimeDependencies{
			orders:    memory.NewOrderRepository(),
			customers: memory.NewCustomerRepository(),
			roles:     memory.NewRoleRepository(),
			timeline:  memory.NewTimelineRepository(),
			outbox:    outbox,

			outboxPurger: outbox,
			storageChecker: healthcheck.NewSimpleChecker("storage", func() error {
				return nil
			}),
		}
		logger.Info("using in-memory storage")
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres dsn is required for postgres storage")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		deps = &runtimeDependencies{
			orders:         postgres.NewOrderRepository(store),
			customers:      postgres.NewCustomerRepository(store),
			roles:          postgres.NewRoleRepository(store),
			timeline:       postgres.NewTimelineRepository(store),
			outbox:         postgres.NewOutboxRepository(store),
			outboxPurger:   postgres.NewOutboxPurger(store),
			storageChecker: healthcheck.NewPingChecker("storage", healthCheckTimeout, store.Ping),
		}
		closers = append(closers, store.Close)
		logger.Info("using postgres storage")
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.RedisAddr != "" {
		client := rediscache.NewClient(cfg.RedisAddr)
		cache := rediscache.NewRoleCache(deps.roles, client,
			rediscache.WithTTL(cfg.RoleCacheTTL),
			rediscache.WithLogger(logger.WithField("layer", "role-cache")),
		)
		deps.roles = cache
		deps.cacheChecker = healthcheck.NewOptionalPingChecker("role-cache", healthCheckTimeout, cache.Ping)
		closers = append(closers, closeRedis(client))
		logger.WithField("addr", cfg.RedisAddr).Info("role cache enabled")
	}

	deps.closeFn = func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	return deps, nil
}

func closeRedis(client *redis.Client) func() error {
	return func() error {
		return client.Close()
	}
}

// registerCheckers добавляет проверки зависимостей в health handler.
func (d *runtimeDependencies) registerCheckers(handler *healthcheck.Handler) {
	if d.storageChecker != nil {
		handler.RegisterChecker("storage", d.storageChecker)
	}
	if d.cacheChecker != nil {
		handler.RegisterChecker("role-cache", d.cacheChecker)
	}
}
