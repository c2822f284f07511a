package grpcsvc

import (
	"time"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

// PlaceOrderRequest: запрос на оформление заказа. Пустой CustomerID означает «от своего имени».
type PlaceOrderRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
	Product    string `json:"product"`
	Quantity   int32  `json:"quantity"`
}

// UpdateOrderRequest: запрос на изменение заказа.
type UpdateOrderRequest struct {
	OrderID  int64  `json:"order_id"`
	Product  string `json:"product"`
	Quantity int32  `json:"quantity"`
}

// GetOrderRequest: запрос заказа по ID.
type GetOrderRequest struct {
	OrderID int64 `json:"order_id"`
}

// DeleteOrderRequest: запрос на удаление заказа.
type DeleteOrderRequest struct {
	OrderID int64 `json:"order_id"`
}

// ListOrdersRequest: запрос списка заказов.
type ListOrdersRequest struct {
	Limit int32 `json:"limit,omitempty"`
}

// Order: представление заказа в gRPC API.
type Order struct {
	ID         int64     `json:"id"`
	CustomerID string    `json:"customer_id"`
	Product    string    `json:"product"`
	Quantity   int32     `json:"quantity"`
	Status     string    `json:"status"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TimelineEvent: событие истории заказа.
type TimelineEvent struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

// OrderReply: ответ с одним заказом.
type OrderReply struct {
	Order    Order           `json:"order"`
	Timeline []TimelineEvent `json:"timeline,omitempty"`
}

// ListOrdersReply: ответ со списком заказов.
type ListOrdersReply struct {
	Orders []Order `json:"orders"`
}

// DeleteOrderReply: подтверждение удаления.
type DeleteOrderReply struct {
	OrderID int64 `json:"order_id"`
}

func toOrder(order domain.Order) Order {
	return Order{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Product:    order.Product,
		Quantity:   order.Quantity,
		Status:     string(order.Status),
		Version:    order.Version,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}
