package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

// Типы агрегатов outbox и их топики.
const (
	AggregateOrder    = "order"
	AggregateCustomer = "customer"
)

// eventPublisher абстрагирует Producer для тестов.
type eventPublisher interface {
	PublishEvent(topic string, key string, event interface{}) error
}

// OutboxTopicPublisher публикует outbox-сообщения в Kafka, выбирая topic по типу агрегата.
type OutboxTopicPublisher struct {
	producer eventPublisher
	topics   map[string]string
	fallback string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer) *OutboxTopicPublisher {
	return newOutboxPublisher(producer)
}

func newOutboxPublisher(producer eventPublisher) *OutboxTopicPublisher {
	return &OutboxTopicPublisher{
		producer: producer,
		topics: map[string]string{
			AggregateOrder:    TopicOrderEvents,
			AggregateCustomer: TopicCustomerEvents,
		},
		fallback: TopicOrderEvents,
	}
}

// TopicForAggregate возвращает topic событий для типа агрегата.
func TopicForAggregate(aggregateType string) string {
	if aggregateType == AggregateCustomer {
		return TopicCustomerEvents
	}
	return TopicOrderEvents
}

// TopicFor возвращает topic для типа агрегата.
func (p *OutboxTopicPublisher) TopicFor(aggregateType string) string {
	if topic, ok := p.topics[aggregateType]; ok {
		return topic
	}
	return p.fallback
}

// Publish отправляет сообщение в виде JSON-конверта.
func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := struct {
		ID            string          `json:"id"`
		AggregateType string          `json:"aggregate_type"`
		AggregateID   string          `json:"aggregate_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		PublishedAt   time.Time       `json:"published_at"`
	}{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	return p.producer.PublishEvent(p.TopicFor(event.AggregateType), key, envelope)
}

// DLQPublisher отправляет сообщения, исчерпавшие попытки, в dead letter topic.
type DLQPublisher struct {
	producer *Producer
}

// NewDLQPublisher создаёт publisher для DLQ.
func NewDLQPublisher(producer *Producer) *DLQPublisher {
	return &DLQPublisher{producer: producer}
}

// Publish кладёт исходное сообщение в DLQ с заголовками причины.
func (p *DLQPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}
	return p.producer.PublishWithHeaders(TopicDeadLetterQueue, event.AggregateID, event.Payload, map[string]string{
		HeaderOriginalTopic: TopicForAggregate(event.AggregateType),
		HeaderErrorMessage:  "outbox publish attempts exhausted",
		HeaderFailedAt:      time.Now().UTC().Format(time.RFC3339),
	})
}

var (
	_ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
	_ domain.OutboxPublisher = (*DLQPublisher)(nil)
)
