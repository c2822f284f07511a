package auth

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
	"github.com/vladislavdragonenkov/simpleshop/internal/metrics"
)

// Decision: результат проверки доступа к ресурсу.
type Decision int

const (
	// Denied: запрашивающий не владелец и не администратор.
	Denied Decision = iota
	// Allowed: доступ разрешён.
	Allowed
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "denied"
}

// PolicyOptions задаёт параметры Policy.
type PolicyOptions struct {
	Logger  *log.Entry
	Metrics *metrics.AuthMetrics
}

// PolicyOption настраивает Policy.
type PolicyOption func(*PolicyOptions)

// WithPolicyLogger задаёт logger.
func WithPolicyLogger(logger *log.Entry) PolicyOption {
	return func(opts *PolicyOptions) {
		opts.Logger = logger
	}
}

// WithPolicyMetrics задаёт метрики решений.
func WithPolicyMetrics(m *metrics.AuthMetrics) PolicyOption {
	return func(opts *PolicyOptions) {
		opts.Metrics = m
	}
}

// Policy принимает решения о доступе: владелец ресурса или администратор.
type Policy struct {
	roles   domain.RoleRepository
	logger  *log.Entry
	metrics *metrics.AuthMetrics
}

// NewPolicy создаёт политику поверх хранилища ролей.
func NewPolicy(roles domain.RoleRepository, options ...PolicyOption) *Policy {
	opts := PolicyOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "authorization-policy")
	}
	return &Policy{roles: roles, logger: logger, metrics: opts.Metrics}
}

// IsAdmin сообщает, есть ли у клиента роль ADMIN. Отсутствие роли: не ошибка.
func (p *Policy) IsAdmin(customerID string) (bool, error) {
	role, err := p.roles.GetByCustomerID(customerID)
	if err != nil {
		if errors.Is(err, domain.ErrRoleNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup role for %s: %w", customerID, err)
	}
	return role.IsAdmin(), nil
}

// IsOwner сравнивает владельца ресурса с запрашивающим. Пустой subject сюда
// не доходит: транспорт отклоняет запрос без токена раньше.
func (p *Policy) IsOwner(resourceCustomerID, requesterID string) bool {
	return resourceCustomerID == requesterID
}

// Authorize разрешает доступ владельцу или администратору.
// Ошибка хранилища ролей возвращается как ошибка, а не как Denied.
func (p *Policy) Authorize(resourceCustomerID, requesterID string) (Decision, error) {
	if p.IsOwner(resourceCustomerID, requesterID) {
		p.record(Allowed)
		return Allowed, nil
	}
	admin, err := p.IsAdmin(requesterID)
	if err != nil {
		p.logger.WithError(err).WithField("requester", requesterID).Warn("role lookup failed")
		return Denied, err
	}
	decision := Denied
	if admin {
		decision = Allowed
	}
	p.record(decision)
	return decision, nil
}

// RequireAccess возвращает domain.ErrAccessDenied, если доступ не разрешён.
func (p *Policy) RequireAccess(resourceCustomerID, requesterID string) error {
	decision, err := p.Authorize(resourceCustomerID, requesterID)
	if err != nil {
		return err
	}
	if decision != Allowed {
		p.logger.WithFields(log.Fields{
			"owner":     resourceCustomerID,
			"requester": requesterID,
		}).Info("access denied")
		return domain.ErrAccessDenied
	}
	return nil
}

// RequireAdmin пропускает только администраторов.
func (p *Policy) RequireAdmin(requesterID string) error {
	admin, err := p.IsAdmin(requesterID)
	if err != nil {
		return err
	}
	if !admin {
		p.record(Denied)
		return domain.ErrAccessDenied
	}
	p.record(Allowed)
	return nil
}

func (p *Policy) record(decision Decision) {
	if p.metrics != nil {
		p.metrics.RecordDecision(decision.String())
	}
}
