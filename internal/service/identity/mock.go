package identity

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/simpleshop/internal/auth"
	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

type account struct {
	user         domain.IdentityUser
	passwordHash string
	enabled      bool
}

// MockProvider: in-memory провайдер учётных записей для локального запуска и тестов.
// Поля *Err позволяют смоделировать отказ внешнего сервиса.
type MockProvider struct {
	mu       sync.Mutex
	accounts map[string]*account

	CreateErr error
	UpdateErr error
	EnableErr error
	DeleteErr error

	CreateCalls int
	UpdateCalls int
	EnableCalls int
	DeleteCalls int
}

// NewMockProvider возвращает провайдер с успешным сценарием по умолчанию.
func NewMockProvider() *MockProvider {
	return &MockProvider{accounts: make(map[string]*account)}
}

// CreateUser заводит учётную запись и возвращает её ref.
func (m *MockProvider) CreateUser(user domain.IdentityUser) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if m.CreateErr != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIdentityProvider, m.CreateErr)
	}
	for _, acc := range m.accounts {
		if strings.EqualFold(acc.user.Email, user.Email) {
			return "", domain.ErrCustomerExists
		}
	}

	hash, err := auth.HashPassword(user.Password)
	if err != nil {
		return "", err
	}
	ref := uuid.NewString()
	user.Password = ""
	m.accounts[ref] = &account{user: user, passwordHash: hash, enabled: true}
	return ref, nil
}

// UpdateUser обновляет профиль; пустой пароль оставляет прежний.
func (m *MockProvider) UpdateUser(ref string, user domain.IdentityUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls++
	if m.UpdateErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrIdentityProvider, m.UpdateErr)
	}
	acc, ok := m.accounts[ref]
	if !ok {
		return fmt.Errorf("%w: unknown account %s", domain.ErrIdentityProvider, ref)
	}
	if user.Password != "" {
		hash, err := auth.HashPassword(user.Password)
		if err != nil {
			return err
		}
		acc.passwordHash = hash
	}
	user.Password = ""
	acc.user = user
	return nil
}

// SetEnabled включает или отключает учётную запись.
func (m *MockProvider) SetEnabled(ref string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.EnableCalls++
	if m.EnableErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrIdentityProvider, m.EnableErr)
	}
	acc, ok := m.accounts[ref]
	if !ok {
		return fmt.Errorf("%w: unknown account %s", domain.ErrIdentityProvider, ref)
	}
	acc.enabled = enabled
	return nil
}

// DeleteUser удаляет учётную запись; отсутствие записи не ошибка.
func (m *MockProvider) DeleteUser(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls++
	if m.DeleteErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrIdentityProvider, m.DeleteErr)
	}
	delete(m.accounts, ref)
	return nil
}

// VerifyPassword проверяет пароль включённой учётной записи.
func (m *MockProvider) VerifyPassword(ref, password string) error {
	m.mu.Lock()
	acc, ok := m.accounts[ref]
	var hash string
	enabled := false
	if ok {
		hash = acc.passwordHash
		enabled = acc.enabled
	}
	m.mu.Unlock()

	if !ok || !enabled {
		return domain.ErrInvalidCredentials
	}
	return auth.CheckPassword(hash, password)
}

// Enabled сообщает состояние учётной записи.
func (m *MockProvider) Enabled(ref string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[ref]
	return ok && acc.enabled
}

var _ domain.IdentityProvider = (*MockProvider)(nil)
