package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/auth"
	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
	"github.com/vladislavdragonenkov/simpleshop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/simpleshop/internal/metrics"
)

const (
	publicIDPrefix   = "CUS_"
	publicIDAttempts = 3
)

// Результаты входа для метрик.
const (
	loginSuccess  = "success"
	loginInvalid  = "invalid"
	loginInactive = "inactive"
	loginError    = "error"
)

// OrderCleaner удаляет заказы клиента вместе с ним.
type OrderCleaner interface {
	DeleteByCustomer(ctx context.Context, customerID string) error
}

// RegisterInput: данные регистрации клиента.
type RegisterInput struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// UpdateInput: изменяемые поля профиля; пустые значения не меняют профиль.
type UpdateInput struct {
	Username  string
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Options задаёт зависимости сервиса клиентов.
type Options struct {
	Identity domain.IdentityProvider
	Orders   OrderCleaner
	Outbox   domain.OutboxRepository
	Logger   *log.Entry
	Metrics  *metrics.AuthMetrics
	Clock    func() time.Time
}

// Option настраивает Service.
type Option func(*Options)

// WithIdentityProvider делегирует хранение паролей внешнему провайдеру.
func WithIdentityProvider(provider domain.IdentityProvider) Option {
	return func(opts *Options) {
		opts.Identity = provider
	}
}

// WithOrderCleaner задаёт удаление заказов при удалении клиента.
func WithOrderCleaner(orders OrderCleaner) Option {
	return func(opts *Options) {
		opts.Orders = orders
	}
}

// WithOutbox включает публикацию событий клиента.
func WithOutbox(repo domain.OutboxRepository) Option {
	return func(opts *Options) {
		opts.Outbox = repo
	}
}

// WithLogger задаёт logger сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики входа.
func WithMetrics(m *metrics.AuthMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

// Service управляет клиентами, их ролями и входом.
type Service struct {
	customers domain.CustomerRepository
	roles     domain.RoleRepository
	tokens    *auth.TokenService
	policy    *auth.Policy
	identity  domain.IdentityProvider
	orders    OrderCleaner
	outbox    domain.OutboxRepository
	logger    *log.Entry
	metrics   *metrics.AuthMetrics
	now       func() time.Time
}

// NewService создаёт сервис клиентов.
func NewService(
	customers domain.CustomerRepository,
	roles domain.RoleRepository,
	tokens *auth.TokenService,
	policy *auth.Policy,
	options ...Option,
) *Service {
	opts := Options{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "customer-service")
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		customers: customers,
		roles:     roles,
		tokens:    tokens,
		policy:    policy,
		identity:  opts.Identity,
		orders:    opts.Orders,
		outbox:    opts.Outbox,
		logger:    logger,
		metrics:   opts.Metrics,
		now:       clock,
	}
}

// Register создаёт клиента с ролью USER.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.Customer, error) {
	return s.register(ctx, in, domain.RoleUser)
}

// RegisterAdmin создаёт клиента сразу с ролью ADMIN. Используется для bootstrap.
func (s *Service) RegisterAdmin(ctx context.Context, in RegisterInput) (domain.Customer, error) {
	return s.register(ctx, in, domain.RoleAdmin)
}

func (s *Service) register(ctx context.Context, in RegisterInput, role domain.RoleName) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	email := domain.NormalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)
	switch {
	case email == "":
		return domain.Customer{}, domain.ErrEmailRequired
	case username == "":
		return domain.Customer{}, domain.ErrUsernameRequired
	case len(in.Password) < auth.MinPasswordLength:
		return domain.Customer{}, domain.ErrPasswordTooShort
	}

	if _, err := s.customers.GetByEmail(email); err == nil {
		return domain.Customer{}, domain.ErrCustomerExists
	} else if !errors.Is(err, domain.ErrCustomerNotFound) {
		return domain.Customer{}, fmt.Errorf("lookup email: %w", err)
	}

	publicID, err := s.newPublicID()
	if err != nil {
		return domain.Customer{}, err
	}

	now := s.now()
	customer := domain.Customer{
		CustomerID: publicID,
		Username:   username,
		FirstName:  strings.TrimSpace(in.FirstName),
		LastName:   strings.TrimSpace(in.LastName),
		Email:      email,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if s.identity != nil {
		ref, err := s.identity.CreateUser(domain.IdentityUser{
			Username:  customer.Username,
			Email:     customer.Email,
			FirstName: customer.FirstName,
			LastName:  customer.LastName,
			Password:  in.Password,
		})
		if err != nil {
			return domain.Customer{}, fmt.Errorf("create identity: %w", err)
		}
		customer.ExternalRef = ref
	} else {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return domain.Customer{}, err
		}
		customer.PasswordHash = hash
	}

	created, err := s.customers.Create(customer)
	if err != nil {
		s.rollbackIdentity(customer.ExternalRef)
		return domain.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	if err := s.roles.Save(domain.Role{CustomerID: created.CustomerID, Name: role}); err != nil {
		if delErr := s.customers.Delete(created.CustomerID); delErr != nil {
			s.logger.WithError(delErr).WithField("customer_id", created.CustomerID).Error("failed to rollback customer")
		}
		s.rollbackIdentity(created.ExternalRef)
		return domain.Customer{}, fmt.Errorf("assign role: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"customer_id": created.CustomerID,
		"role":        role,
	}).Info("customer registered")
	s.publish(created.CustomerID, kafka.EventTypeCustomerRegistered, role)
	return created, nil
}

// Login проверяет email и пароль и выпускает токен.
func (s *Service) Login(ctx context.Context, email, password string) (string, domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return "", domain.Customer{}, err
	}

	customer, err := s.customers.GetByEmail(domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			s.recordLogin(loginInvalid)
			return "", domain.Customer{}, domain.ErrInvalidCredentials
		}
		s.recordLogin(loginError)
		return "", domain.Customer{}, fmt.Errorf("lookup customer: %w", err)
	}
	if !customer.Active {
		s.recordLogin(loginInactive)
		return "", domain.Customer{}, domain.ErrCustomerInactive
	}

	if err := s.verifyPassword(customer, password); err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.recordLogin(loginInvalid)
		} else {
			s.recordLogin(loginError)
		}
		return "", domain.Customer{}, err
	}

	token, err := s.tokens.Issue(customer.CustomerID)
	if err != nil {
		s.recordLogin(loginError)
		return "", domain.Customer{}, err
	}
	s.recordLogin(loginSuccess)
	return token, customer, nil
}

// GetAs возвращает профиль владельцу или администратору.
func (s *Service) GetAs(ctx context.Context, requester, customerID string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}
	if err := s.policy.RequireAccess(customerID, requester); err != nil {
		return domain.Customer{}, err
	}
	return s.customers.GetByCustomerID(customerID)
}

// UpdateAs изменяет профиль; доступно владельцу или администратору.
func (s *Service) UpdateAs(ctx context.Context, requester, customerID string, in UpdateInput) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}
	if err := s.policy.RequireAccess(customerID, requester); err != nil {
		return domain.Customer{}, err
	}

	customer, err := s.customers.GetByCustomerID(customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	previous := customer

	if v := strings.TrimSpace(in.Username); v != "" {
		customer.Username = v
	}
	if v := strings.TrimSpace(in.FirstName); v != "" {
		customer.FirstName = v
	}
	if v := strings.TrimSpace(in.LastName); v != "" {
		customer.LastName = v
	}
	if email := domain.NormalizeEmail(in.Email); email != "" && email != customer.Email {
		other, err := s.customers.GetByEmail(email)
		switch {
		case err == nil && other.CustomerID != customer.CustomerID:
			return domain.Customer{}, domain.ErrCustomerExists
		case err != nil && !errors.Is(err, domain.ErrCustomerNotFound):
			return domain.Customer{}, fmt.Errorf("lookup email: %w", err)
		}
		customer.Email = email
	}

	if customer.UsesExternalIdentity() {
		if s.identity == nil {
			return domain.Customer{}, fmt.Errorf("%w: provider is not configured", domain.ErrIdentityProvider)
		}
		if in.Password != "" && len(in.Password) < auth.MinPasswordLength {
			return domain.Customer{}, domain.ErrPasswordTooShort
		}
	} else if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return domain.Customer{}, err
		}
		customer.PasswordHash = hash
	}

	// При отказе провайдера локальная запись откатывается к снимку previous.
	customer.UpdatedAt = s.now()
	saved, err := s.customers.Save(customer)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("save customer: %w", err)
	}

	if customer.UsesExternalIdentity() {
		if err := s.identity.UpdateUser(customer.ExternalRef, domain.IdentityUser{
			Username:  customer.Username,
			Email:     customer.Email,
			FirstName: customer.FirstName,
			LastName:  customer.LastName,
			Password:  in.Password,
		}); err != nil {
			s.restoreCustomer(previous)
			return domain.Customer{}, fmt.Errorf("update identity: %w", err)
		}
	}

	s.logger.WithField("customer_id", customerID).Info("customer updated")
	return saved, nil
}

// ListAs возвращает всех клиентов администратору.
func (s *Service) ListAs(ctx context.Context, requester string, limit int) ([]domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.policy.RequireAdmin(requester); err != nil {
		return nil, err
	}
	return s.customers.List(limit)
}

// DeleteAs удаляет клиента вместе с заказами и ролью. Только для администратора.
func (s *Service) DeleteAs(ctx context.Context, requester, customerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.policy.RequireAdmin(requester); err != nil {
		return err
	}

	customer, err := s.customers.GetByCustomerID(customerID)
	if err != nil {
		return err
	}
	if s.orders != nil {
		if err := s.orders.DeleteByCustomer(ctx, customerID); err != nil {
			return fmt.Errorf("delete customer orders: %w", err)
		}
	}
	if err := s.roles.Delete(customerID); err != nil && !errors.Is(err, domain.ErrRoleNotFound) {
		return fmt.Errorf("delete role: %w", err)
	}
	if err := s.customers.Delete(customerID); err != nil {
		return err
	}
	// Повторная очистка снимает заказы, оформленные во время удаления.
	if s.orders != nil {
		if err := s.orders.DeleteByCustomer(ctx, customerID); err != nil {
			s.logger.WithError(err).WithField("customer_id", customerID).Error("failed to clean orders of deleted customer")
		}
	}
	if customer.UsesExternalIdentity() && s.identity != nil {
		if err := s.identity.DeleteUser(customer.ExternalRef); err != nil {
			s.logger.WithError(err).WithField("customer_id", customerID).Warn("failed to delete identity account")
		}
	}

	s.logger.WithField("customer_id", customerID).Info("customer deleted")
	s.publish(customerID, kafka.EventTypeCustomerDeleted, "")
	return nil
}

// SetActiveAs блокирует или разблокирует клиента. Только для администратора.
func (s *Service) SetActiveAs(ctx context.Context, requester, customerID string, active bool) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}
	if err := s.policy.RequireAdmin(requester); err != nil {
		return domain.Customer{}, err
	}

	customer, err := s.customers.GetByCustomerID(customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer.Active == active {
		return customer, nil
	}
	previous := customer
	customer.Active = active
	customer.UpdatedAt = s.now()
	saved, err := s.customers.Save(customer)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("save customer: %w", err)
	}
	if customer.UsesExternalIdentity() && s.identity != nil {
		if err := s.identity.SetEnabled(customer.ExternalRef, active); err != nil {
			s.restoreCustomer(previous)
			return domain.Customer{}, fmt.Errorf("toggle identity: %w", err)
		}
	}

	eventType := kafka.EventTypeCustomerUnblocked
	if !active {
		eventType = kafka.EventTypeCustomerBlocked
	}
	s.logger.WithFields(log.Fields{
		"customer_id": customerID,
		"active":      active,
	}).Info("customer activity changed")
	s.publish(customerID, eventType, "")
	return saved, nil
}

// PromoteAs назначает клиенту роль ADMIN. Только для администратора.
// Повторное повышение не меняет роль и возвращает её как есть.
func (s *Service) PromoteAs(ctx context.Context, requester, customerID string) (domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return domain.Role{}, err
	}
	if err := s.policy.RequireAdmin(requester); err != nil {
		return domain.Role{}, err
	}

	role, err := s.roles.GetByCustomerID(customerID)
	if err != nil {
		return domain.Role{}, err
	}
	if role.IsAdmin() {
		return role, nil
	}

	role.Name = domain.RoleAdmin
	if err := s.roles.Save(role); err != nil {
		return domain.Role{}, fmt.Errorf("save role: %w", err)
	}
	s.logger.WithField("customer_id", customerID).Info("customer promoted to admin")
	s.publish(customerID, kafka.EventTypeCustomerPromoted, domain.RoleAdmin)
	return role, nil
}

// RoleAs возвращает роль клиента владельцу или администратору.
func (s *Service) RoleAs(ctx context.Context, requester, customerID string) (domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return domain.Role{}, err
	}
	if err := s.policy.RequireAccess(customerID, requester); err != nil {
		return domain.Role{}, err
	}
	return s.roles.GetByCustomerID(customerID)
}

func (s *Service) verifyPassword(customer domain.Customer, password string) error {
	if customer.UsesExternalIdentity() {
		if s.identity == nil {
			return fmt.Errorf("%w: provider is not configured", domain.ErrIdentityProvider)
		}
		return s.identity.VerifyPassword(customer.ExternalRef, password)
	}
	if customer.PasswordHash == "" {
		return domain.ErrInvalidCredentials
	}
	return auth.CheckPassword(customer.PasswordHash, password)
}

// newPublicID генерирует идентификатор вида CUS_ddMMyy_XXXXXXX.
func (s *Service) newPublicID() (string, error) {
	for attempt := 0; attempt < publicIDAttempts; attempt++ {
		id := FormatPublicID(s.now(), uuid.New())
		exists, err := s.customers.ExistsByCustomerID(id)
		if err != nil {
			return "", fmt.Errorf("check customer id: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("generate customer id: %w", domain.ErrCustomerExists)
}

// FormatPublicID собирает публичный идентификатор из даты и первых 7 hex-символов UUID.
func FormatPublicID(at time.Time, id uuid.UUID) string {
	hex := strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
	return publicIDPrefix + at.Format("020106") + "_" + hex[:7]
}

// restoreCustomer возвращает локальную запись к снимку после отказа внешнего провайдера.
func (s *Service) restoreCustomer(previous domain.Customer) {
	if _, err := s.customers.Save(previous); err != nil {
		s.logger.WithError(err).WithField("customer_id", previous.CustomerID).Error("failed to restore customer after identity failure")
	}
}

func (s *Service) rollbackIdentity(ref string) {
	if ref == "" || s.identity == nil {
		return
	}
	if err := s.identity.DeleteUser(ref); err != nil {
		s.logger.WithError(err).WithField("identity_ref", ref).Error("failed to rollback identity account")
	}
}

func (s *Service) recordLogin(result string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(result)
	}
}

func (s *Service) publish(customerID string, eventType kafka.EventType, role domain.RoleName) {
	if s.outbox == nil {
		return
	}
	payload, err := json.Marshal(kafka.CustomerEvent{
		EventType:  eventType,
		CustomerID: customerID,
		Role:       string(role),
		Timestamp:  s.now(),
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to marshal customer event")
		return
	}
	if _, err := s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: kafka.AggregateCustomer,
		AggregateID:   customerID,
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		s.logger.WithError(err).WithField("customer_id", customerID).Warn("failed to enqueue customer event")
	}
}
