package domain

import "time"

// Типы событий истории заказа.
const (
	TimelineOrderPlaced   = "order_placed"
	TimelineOrderUpdated  = "order_updated"
	TimelineStatusChanged = "status_changed"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  int64
	Type     string
	Reason   string
	Occurred time.Time
}
