package lifecycle

import (
	"encoding/json"
	"strconv"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
	"github.com/vladislavdragonenkov/simpleshop/internal/messaging/kafka"
)

const (
	eventOrderPlaced        = kafka.EventTypeOrderPlaced
	eventOrderUpdated       = kafka.EventTypeOrderUpdated
	eventOrderStatusChanged = kafka.EventTypeOrderStatusChanged
	eventOrderDeleted       = kafka.EventTypeOrderDeleted
)

// emit пишет событие в историю заказа и в outbox.
func (e *Engine) emit(order domain.Order, timelineType, reason string, eventType kafka.EventType) {
	if e.timeline != nil {
		event := domain.TimelineEvent{
			OrderID:  order.ID,
			Type:     timelineType,
			Reason:   reason,
			Occurred: order.UpdatedAt,
		}
		if err := e.timeline.Append(event); err != nil {
			e.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to append timeline event")
		} else if e.metrics != nil {
			e.metrics.RecordTimelineEvent()
		}
	}
	e.publish(order, eventType)
}

// publish ставит интеграционное событие заказа в outbox.
func (e *Engine) publish(order domain.Order, eventType kafka.EventType) {
	if e.outbox == nil {
		return
	}

	payload, err := json.Marshal(kafka.OrderEvent{
		EventType:  eventType,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Product:    order.Product,
		Quantity:   order.Quantity,
		Status:     string(order.Status),
		Version:    order.Version,
		Timestamp:  e.now(),
	})
	if err != nil {
		e.logger.WithError(err).WithField("order_id", order.ID).Error("failed to marshal order event")
		return
	}

	if _, err := e.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: kafka.AggregateOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     string(eventType),
		Payload:       payload,
	}); err != nil {
		e.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to enqueue order event")
		return
	}
	if e.metrics != nil {
		e.metrics.RecordOutboxEvent()
	}
}
