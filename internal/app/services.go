package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/auth"
	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
	"github.com/vladislavdragonenkov/simpleshop/internal/metrics"
	"github.com/vladislavdragonenkov/simpleshop/internal/service/customer"
	"github.com/vladislavdragonenkov/simpleshop/internal/service/identity"
	"github.com/vladislavdragonenkov/simpleshop/internal/service/lifecycle"
)

// services: прикладной слой, общий для HTTP и gRPC.
type services struct {
	tokens    *auth.TokenService
	engine    *lifecycle.Engine
	orders    *lifecycle.AuthorizedEngine
	customers *customer.Service
}

// buildServices связывает токены, политику, движок заказов и сервис клиентов.
func buildServices(cfg Config, deps *runtimeDependencies, logger *log.Entry) (*services, error) {
	authMetrics := metrics.NewAuthMetrics()

	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret),
		auth.WithTTL(cfg.TokenTTL),
		auth.WithTokenLogger(logger.WithField("component", "token-service")),
		auth.WithTokenMetrics(authMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("init token service: %w", err)
	}

	policy := auth.NewPolicy(deps.roles,
		auth.WithPolicyLogger(logger.WithField("component", "policy")),
		auth.WithPolicyMetrics(authMetrics),
	)

	engine := lifecycle.NewEngine(deps.orders, deps.customers,
		lifecycle.WithTimeline(deps.timeline),
		lifecycle.WithOutbox(deps.outbox),
		lifecycle.WithDelays(cfg.ProcessingDelay, cfg.CompletionDelay),
		lifecycle.WithLogger(logger.WithField("component", "lifecycle")),
		lifecycle.WithMetrics(metrics.NewLifecycleMetrics()),
	)

	customerOptions := []customer.Option{
		customer.WithOrderCleaner(engine),
		customer.WithOutbox(deps.outbox),
		customer.WithLogger(logger.WithField("component", "customer-service")),
		customer.WithMetrics(authMetrics),
	}
	if cfg.IdentityMode == IdentityModeMock {
		customerOptions = append(customerOptions, customer.WithIdentityProvider(identity.NewMockProvider()))
		logger.Warn("mock identity provider enabled, credentials live in memory only")
	}

	return &services{
		tokens:    tokens,
		engine:    engine,
		orders:    lifecycle.NewAuthorizedEngine(engine, policy),
		customers: customer.NewService(deps.customers, deps.roles, tokens, policy, customerOptions...),
	}, nil
}

// bootstrapAdmin создаёт первого администратора; повторный запуск ничего не меняет.
func bootstrapAdmin(ctx context.Context, cfg Config, customers *customer.Service, logger *log.Entry) error {
	if cfg.BootstrapAdminEmail == "" {
		return nil
	}

	admin, err := customers.RegisterAdmin(ctx, customer.RegisterInput{
		Username: "admin",
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
	})
	switch {
	case errors.Is(err, domain.ErrCustomerExists):
		logger.WithField("email", cfg.BootstrapAdminEmail).Info("bootstrap admin already exists")
		return nil
	case err != nil:
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	logger.WithField("customer_id", admin.CustomerID).Info("bootstrap admin created")
	return nil
}
