package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

// roleRepositoryInMemory хранит по одной роли на клиента.
type roleRepositoryInMemory struct {
	mu    sync.RWMutex
	roles map[string]domain.Role
}

// NewRoleRepository создаёт in-memory реализацию RoleRepository.
func NewRoleRepository() domain.RoleRepository {
	return &roleRepositoryInMemory{roles: make(map[string]domain.Role)}
}

func (r *roleRepositoryInMemory) GetByCustomerID(customerID string) (domain.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	role, ok := r.roles[customerID]
	if !ok {
		return domain.Role{}, domain.ErrRoleNotFound
	}
	return role, nil
}

func (r *roleRepositoryInMemory) Save(role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.roles[role.CustomerID] = role
	return nil
}

func (r *roleRepositoryInMemory) Delete(customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[customerID]; !ok {
		return domain.ErrRoleNotFound
	}
	delete(r.roles, customerID)
	return nil
}

var _ domain.RoleRepository = (*roleRepositoryInMemory)(nil)
