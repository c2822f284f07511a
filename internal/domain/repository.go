package domain

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ и возвращает его с присвоенным ID и версией.
	Create(order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(id int64) (Order, error)
	// List возвращает все заказы с опциональным ограничением на количество.
	List(limit int) ([]Order, error)
	// ListByCustomer возвращает заказы клиента с опциональным ограничением на количество.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking и возвращает новую версию.
	Save(order Order) (Order, error)
	// Delete удаляет заказ или возвращает ErrOrderNotFound.
	Delete(id int64) error
}

// CustomerRepository описывает требования к хранилищу клиентов.
type CustomerRepository interface {
	// Create сохраняет клиента; ErrCustomerExists при совпадении email или customer_id.
	Create(customer Customer) (Customer, error)
	Get(id int64) (Customer, error)
	GetByCustomerID(customerID string) (Customer, error)
	GetByEmail(email string) (Customer, error)
	ExistsByCustomerID(customerID string) (bool, error)
	List(limit int) ([]Customer, error)
	// Save перезаписывает клиента целиком; ErrCustomerNotFound, если записи нет.
	Save(customer Customer) (Customer, error)
	Delete(customerID string) error
}

// RoleRepository хранит роли клиентов.
type RoleRepository interface {
	// GetByCustomerID возвращает роль или ErrRoleNotFound.
	GetByCustomerID(customerID string) (Role, error)
	// Save создаёт или заменяет роль клиента.
	Save(role Role) error
	Delete(customerID string) error
}
