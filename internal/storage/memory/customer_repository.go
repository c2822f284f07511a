package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

// customerRepositoryInMemory хранит клиентов с индексами по customer_id и email.
type customerRepositoryInMemory struct {
	mu         sync.RWMutex
	nextID     int64
	items      map[int64]domain.Customer
	byPublicID map[string]int64
	byEmail    map[string]int64
}

// NewCustomerRepository создаёт in-memory реализацию CustomerRepository.
func NewCustomerRepository() domain.CustomerRepository {
	return &customerRepositoryInMemory{
		items:      make(map[int64]domain.Customer),
		byPublicID: make(map[string]int64),
		byEmail:    make(map[string]int64),
	}
}

// Create сохраняет клиента, проверяя уникальность customer_id и email.
func (r *customerRepositoryInMemory) Create(customer domain.Customer) (domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := domain.NormalizeEmail(customer.Email)
	if _, exists := r.byPublicID[customer.CustomerID]; exists {
		return domain.Customer{}, domain.ErrCustomerExists
	}
	if _, exists := r.byEmail[email]; exists {
		return domain.Customer{}, domain.ErrCustomerExists
	}

	r.nextID++
	customer.ID = r.nextID
	customer.Email = email
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	if customer.UpdatedAt.IsZero() {
		customer.UpdatedAt = customer.CreatedAt
	}
	r.items[customer.ID] = customer
	r.byPublicID[customer.CustomerID] = customer.ID
	r.byEmail[email] = customer.ID
	return customer, nil
}

// Get возвращает клиента по внутреннему ID.
func (r *customerRepositoryInMemory) Get(id int64) (domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	customer, ok := r.items[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

// GetByCustomerID возвращает клиента по публичному идентификатору.
func (r *customerRepositoryInMemory) GetByCustomerID(customerID string) (domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPublicID[customerID]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return r.items[id], nil
}

// GetByEmail ищет клиента по email без учёта регистра.
func (r *customerRepositoryInMemory) GetByEmail(email string) (domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return r.items[id], nil
}

// ExistsByCustomerID проверяет наличие клиента.
func (r *customerRepositoryInMemory) ExistsByCustomerID(customerID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byPublicID[customerID]
	return ok, nil
}

// List возвращает клиентов по возрастанию ID.
func (r *customerRepositoryInMemory) List(limit int) ([]domain.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Customer, 0, len(r.items))
	for _, customer := range r.items {
		result = append(result, customer)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Save перезаписывает изменяемые поля клиента.
func (r *customerRepositoryInMemory) Save(customer domain.Customer) (domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byPublicID[customer.CustomerID]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	current := r.items[id]

	email := domain.NormalizeEmail(customer.Email)
	if owner, taken := r.byEmail[email]; taken && owner != id {
		return domain.Customer{}, domain.ErrCustomerExists
	}
	delete(r.byEmail, current.Email)

	customer.ID = current.ID
	customer.Email = email
	customer.CreatedAt = current.CreatedAt
	customer.UpdatedAt = time.Now().UTC()
	r.items[id] = customer
	r.byEmail[email] = id
	return customer, nil
}

// Delete удаляет клиента по публичному идентификатору.
func (r *customerRepositoryInMemory) Delete(customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byPublicID[customerID]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	delete(r.byEmail, r.items[id].Email)
	delete(r.byPublicID, customerID)
	delete(r.items, id)
	return nil
}

var _ domain.CustomerRepository = (*customerRepositoryInMemory)(nil)
