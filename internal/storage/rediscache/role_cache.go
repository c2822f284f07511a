package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

const (
	defaultTTL       = 30 * time.Second
	defaultOpTimeout = 200 * time.Millisecond
	keyPrefix        = "shop:role:"
)

// Options задаёт параметры кеша ролей.
type Options struct {
	TTL       time.Duration
	OpTimeout time.Duration
	Logger    *log.Entry
}

// Option настраивает RoleCache.
type Option func(*Options)

// WithTTL задаёт время жизни записи в кеше.
func WithTTL(ttl time.Duration) Option {
	return func(opts *Options) {
		opts.TTL = ttl
	}
}

// WithOpTimeout ограничивает одно обращение к Redis.
func WithOpTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.OpTimeout = timeout
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// RoleCache кеширует роли в Redis поверх основного хранилища.
// Недоступность Redis не ломает проверку прав: запрос уходит в хранилище.
type RoleCache struct {
	next      domain.RoleRepository
	client    redis.UniversalClient
	ttl       time.Duration
	opTimeout time.Duration
	logger    *log.Entry
}

// NewClient создаёт клиента Redis без повторных попыток.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  defaultOpTimeout,
		ReadTimeout:  defaultOpTimeout,
		WriteTimeout: defaultOpTimeout,
		MaxRetries:   -1,
	})
}

// NewRoleCache оборачивает репозиторий ролей.
func NewRoleCache(next domain.RoleRepository, client redis.UniversalClient, options ...Option) *RoleCache {
	opts := Options{TTL: defaultTTL, OpTimeout: defaultOpTimeout}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = defaultOpTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "role-cache")
	}
	return &RoleCache{
		next:      next,
		client:    client,
		ttl:       opts.TTL,
		opTimeout: opts.OpTimeout,
		logger:    logger,
	}
}

func cacheKey(customerID string) string {
	return keyPrefix + customerID
}

// GetByCustomerID читает роль из кеша, при промахе из хранилища.
func (c *RoleCache) GetByCustomerID(customerID string) (domain.Role, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opTimeout)
	defer cancel()

	name, err := c.client.Get(ctx, cacheKey(customerID)).Result()
	switch {
	case err == nil:
		return domain.Role{CustomerID: customerID, Name: domain.RoleName(name)}, nil
	case errors.Is(err, redis.Nil):
	default:
		c.logger.WithError(err).WithField("customer_id", customerID).Debug("role cache read failed")
	}

	role, err := c.next.GetByCustomerID(customerID)
	if err != nil {
		return domain.Role{}, err
	}

	setCtx, setCancel := context.WithTimeout(context.Background(), c.opTimeout)
	defer setCancel()
	if err := c.client.Set(setCtx, cacheKey(customerID), string(role.Name), c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("customer_id", customerID).Debug("role cache write failed")
	}
	return role, nil
}

// Save сохраняет роль и сбрасывает кеш, чтобы повышение было видно сразу.
func (c *RoleCache) Save(role domain.Role) error {
	if err := c.next.Save(role); err != nil {
		return err
	}
	c.invalidate(role.CustomerID)
	return nil
}

// Delete удаляет роль и запись в кеше.
func (c *RoleCache) Delete(customerID string) error {
	err := c.next.Delete(customerID)
	c.invalidate(customerID)
	return err
}

func (c *RoleCache) invalidate(customerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opTimeout)
	defer cancel()
	if err := c.client.Del(ctx, cacheKey(customerID)).Err(); err != nil {
		c.logger.WithError(err).WithField("customer_id", customerID).Warn("role cache invalidation failed")
	}
}

// Ping проверяет доступность Redis для readiness-проверки.
func (c *RoleCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

var _ domain.RoleRepository = (*RoleCache)(nil)
