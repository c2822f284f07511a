package kafka

import (
	"strconv"
	"time"
)

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderPlaced        EventType = "order.placed"
	EventTypeOrderUpdated       EventType = "order.updated"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderDeleted       EventType = "order.deleted"

	// Customer события
	EventTypeCustomerRegistered EventType = "customer.registered"
	EventTypeCustomerBlocked    EventType = "customer.blocked"
	EventTypeCustomerUnblocked  EventType = "customer.unblocked"
	EventTypeCustomerDeleted    EventType = "customer.deleted"
	EventTypeCustomerPromoted   EventType = "customer.promoted"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "shop.order.events"
	TopicCustomerEvents  = "shop.customer.events"
	TopicDeadLetterQueue = "shop.dlq"
)

// Kafka headers сообщений, ушедших в DLQ
const (
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType  EventType `json:"event_type"`
	OrderID    int64     `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Product    string    `json:"product,omitempty"`
	Quantity   int32     `json:"quantity,omitempty"`
	Status     string    `json:"status,omitempty"`
	Version    int64     `json:"version,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// CustomerEvent представляет событие клиента
type CustomerEvent struct {
	EventType  EventType `json:"event_type"`
	CustomerID string    `json:"customer_id"`
	Role       string    `json:"role,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Key возвращает ключ партиционирования: события одного заказа идут в одну партицию.
func (e OrderEvent) Key() string {
	return strconv.FormatInt(e.OrderID, 10)
}
