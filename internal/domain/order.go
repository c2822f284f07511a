package domain

import (
	"strings"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusCreated: заказ только что оформлен клиентом.
	OrderStatusCreated OrderStatus = "CREATED"
	// OrderStatusUpdated: заказ изменён клиентом, цикл обработки начинается заново.
	OrderStatusUpdated OrderStatus = "UPDATED"
	// OrderStatusProcessing: заказ взят в обработку.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusCompleted: заказ выполнен, дальнейших переходов нет.
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

// ParseOrderStatus приводит строку к статусу без учёта регистра.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusUpdated, OrderStatusProcessing, OrderStatusCompleted:
		return true
	default:
		return false
	}
}

// Next возвращает следующий статус фонового цикла и false для терминального состояния.
func (s OrderStatus) Next() (OrderStatus, bool) {
	switch s {
	case OrderStatusCreated, OrderStatusUpdated:
		return OrderStatusProcessing, true
	case OrderStatusProcessing:
		return OrderStatusCompleted, true
	default:
		return "", false
	}
}

// CanTransitionTo сообщает, допустим ли фоновый переход из s в target.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	next, ok := s.Next()
	return ok && next == target
}

// IsTerminal сообщает, что заказ больше не меняет статус сам по себе.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted
}

// Order хранит состояние заказа клиента.
type Order struct {
	ID         int64
	CustomerID string
	Product    string
	Quantity   int32
	Status     OrderStatus
	// Version растёт на каждой записи и служит для optimistic locking.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if strings.TrimSpace(o.CustomerID) == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	return append(errs, ValidateOrderLine(o.Product, o.Quantity)...)
}

// ValidateOrderLine проверяет товар и количество позиции заказа.
func ValidateOrderLine(product string, quantity int32) []error {
	var errs []error
	if strings.TrimSpace(product) == "" {
		errs = append(errs, ErrProductRequired)
	}
	if quantity <= 0 {
		errs = append(errs, ErrQuantityInvalid)
	}
	return errs
}
