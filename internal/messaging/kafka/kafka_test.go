package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

func newMockProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()
	mockProducer := mocks.NewSyncProducer(t, nil)
	return &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-producer-test"),
	}, mockProducer
}

func TestProducer_PublishEvent(t *testing.T) {
	producer, mockProducer := newMockProducer(t)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event OrderEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.OrderID != 42 || event.Status != "CREATED" {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	event := OrderEvent{EventType: EventTypeOrderPlaced, OrderID: 42, CustomerID: "CUS_1", Status: "CREATED", Timestamp: time.Now()}
	if err := producer.PublishEvent(TopicOrderEvents, event.Key(), event); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	producer, mockProducer := newMockProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	if err := producer.PublishEvent(TopicOrderEvents, "1", OrderEvent{OrderID: 1}); err == nil {
		t.Fatal("expected error, got nil")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	producer, mockProducer := newMockProducer(t)
	if err := producer.PublishEvent(TopicOrderEvents, "1", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	keys   []string
	err    error
}

func (r *recordingPublisher) PublishEvent(topic, key string, _ interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.keys = append(r.keys, key)
	return r.err
}

func TestOutboxPublisher_RoutesByAggregate(t *testing.T) {
	rec := &recordingPublisher{}
	publisher := newOutboxPublisher(rec)

	messages := []domain.OutboxMessage{
		{ID: "1", AggregateType: AggregateOrder, AggregateID: "42", Payload: []byte(`{}`)},
		{ID: "2", AggregateType: AggregateCustomer, AggregateID: "CUS_1", Payload: []byte(`{}`)},
		{ID: "3", AggregateType: "unknown", Payload: []byte(`{}`)},
	}
	for _, msg := range messages {
		if err := publisher.Publish(msg); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}

	wantTopics := []string{TopicOrderEvents, TopicCustomerEvents, TopicOrderEvents}
	for i, want := range wantTopics {
		if rec.topics[i] != want {
			t.Fatalf("message %d: expected topic %s, got %s", i, want, rec.topics[i])
		}
	}
	if rec.keys[2] != "3" {
		t.Fatalf("expected message id as fallback key, got %q", rec.keys[2])
	}
}

func TestOutboxPublisher_WithMockProducer(t *testing.T) {
	producer, mockProducer := newMockProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewOutboxPublisher(producer)
	err := publisher.Publish(domain.OutboxMessage{ID: "x", AggregateType: AggregateOrder, AggregateID: "1", Payload: []byte(`{}`)})
	if err == nil {
		t.Fatal("expected producer error")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_NotInitialized(t *testing.T) {
	var publisher *OutboxTopicPublisher
	if err := publisher.Publish(domain.OutboxMessage{}); err == nil {
		t.Fatal("expected error for nil publisher")
	}
	var dlq *DLQPublisher
	if err := dlq.Publish(domain.OutboxMessage{}); err == nil {
		t.Fatal("expected error for nil dlq publisher")
	}
}

func TestDLQPublisher_Headers(t *testing.T) {
	producer, mockProducer := newMockProducer(t)
	mockProducer.ExpectSendMessageAndSucceed()

	if err := NewDLQPublisher(producer).Publish(domain.OutboxMessage{ID: "x", AggregateType: AggregateOrder, AggregateID: "1", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("dlq publish failed: %v", err)
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

type mockConsumerGroup struct {
	consumeFn func(context.Context, []string, sarama.ConsumerGroupHandler) error
	errorsCh  chan error
}

func (m *mockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, topics, handler)
	}
	return nil
}

func (m *mockConsumerGroup) Errors() <-chan error { return m.errorsCh }

func (m *mockConsumerGroup) Close() error {
	close(m.errorsCh)
	return nil
}

func (m *mockConsumerGroup) Pause(map[string][]int32)  {}
func (m *mockConsumerGroup) Resume(map[string][]int32) {}
func (m *mockConsumerGroup) PauseAll()                 {}
func (m *mockConsumerGroup) ResumeAll()                {}

type mockSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (m *mockSession) Claims() map[string][]int32               { return nil }
func (m *mockSession) MemberID() string                         { return "member" }
func (m *mockSession) GenerationID() int32                      { return 1 }
func (m *mockSession) MarkOffset(string, int32, int64, string)  {}
func (m *mockSession) Commit()                                  {}
func (m *mockSession) ResetOffset(string, int32, int64, string) {}
func (m *mockSession) Context() context.Context                 { return m.ctx }
func (m *mockSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	m.marked = append(m.marked, msg)
}

type mockClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (m *mockClaim) Topic() string                            { return TopicOrderEvents }
func (m *mockClaim) Partition() int32                         { return 0 }
func (m *mockClaim) InitialOffset() int64                     { return 0 }
func (m *mockClaim) HighWaterMarkOffset() int64               { return 0 }
func (m *mockClaim) Messages() <-chan *sarama.ConsumerMessage { return m.messages }

func TestConsumerConsumeClaimMarksOnlyHandled(t *testing.T) {
	consumer := &Consumer{
		handler: func(_ context.Context, msg *sarama.ConsumerMessage) error {
			if string(msg.Value) == "bad" {
				return errors.New("cannot handle")
			}
			return nil
		},
		logger: log.WithField("test", "consumer"),
	}

	claim := &mockClaim{messages: make(chan *sarama.ConsumerMessage, 2)}
	claim.messages <- &sarama.ConsumerMessage{Value: []byte("good"), Offset: 1}
	claim.messages <- &sarama.ConsumerMessage{Value: []byte("bad"), Offset: 2}
	close(claim.messages)

	session := &mockSession{ctx: context.Background()}
	if err := consumer.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("consume claim: %v", err)
	}
	if len(session.marked) != 1 || session.marked[0].Offset != 1 {
		t.Fatalf("expected only handled message to be marked, got %+v", session.marked)
	}
}

func TestConsumerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	group := &mockConsumerGroup{
		errorsCh: make(chan error, 1),
		consumeFn: func(context.Context, []string, sarama.ConsumerGroupHandler) error {
			calls++
			cancel()
			return nil
		},
	}
	group.errorsCh <- errors.New("background error")

	consumer := &Consumer{
		consumer: group,
		topics:   []string{TopicOrderEvents},
		handler:  func(context.Context, *sarama.ConsumerMessage) error { return nil },
		logger:   log.WithField("test", "consumer"),
	}
	consumer.Start(ctx)
	<-ctx.Done()
	if err := consumer.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if calls == 0 {
		t.Fatal("expected consume call")
	}
}

func TestNewProducerAndConsumerRejectUnreachableBrokers(t *testing.T) {
	if _, err := NewProducer([]string{"127.0.0.1:1"}, "test"); err == nil {
		t.Fatal("expected producer error")
	}
	if _, err := NewConsumer([]string{"127.0.0.1:1"}, "group", []string{TopicOrderEvents}, false, nil); err == nil {
		t.Fatal("expected consumer error")
	}
}

func TestTopicForAggregate(t *testing.T) {
	tests := []struct {
		aggregate string
		want      string
	}{
		{aggregate: AggregateOrder, want: TopicOrderEvents},
		{aggregate: AggregateCustomer, want: TopicCustomerEvents},
		{aggregate: "unknown", want: TopicOrderEvents},
	}
	for _, tt := range tests {
		if got := TopicForAggregate(tt.aggregate); got != tt.want {
			t.Fatalf("TopicForAggregate(%q) = %q, want %q", tt.aggregate, got, tt.want)
		}
	}
}
