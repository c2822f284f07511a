package memory

import (
	"testing"
	"time"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

func TestOutboxRepository_EnqueueAndPull(t *testing.T) {
	repo := NewOutboxRepository()

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "1",
		EventType:     "OrderStatusChanged",
		Payload:       []byte(`{"status":"PROCESSING"}`),
	}

	saved, err := repo.Enqueue(msg)
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated id")
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending message, got %d", len(pending))
	}
	if pending[0].ID != saved.ID {
		t.Fatalf("expected same message id, got %s", pending[0].ID)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 1 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	repo := NewOutboxRepository()

	saved, err := repo.Enqueue(domain.OutboxMessage{AggregateType: "order"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := repo.MarkSent(saved.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if len(repo.AllPending()) != 0 {
		t.Fatal("sent message must leave pending set")
	}

	if err := repo.MarkFailed(saved.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if err := repo.MarkFailed("missing"); err == nil {
		t.Fatal("expected error for missing record")
	}
}

func TestOutboxRepository_PurgeSent(t *testing.T) {
	repo := NewOutboxRepository()

	var sent []string
	for i := 0; i < 3; i++ {
		msg, err := repo.Enqueue(domain.OutboxMessage{AggregateType: "order"})
		if err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		if i < 2 {
			if err := repo.MarkSent(msg.ID); err != nil {
				t.Fatalf("mark sent failed: %v", err)
			}
			sent = append(sent, msg.ID)
		}
	}

	if deleted, _ := repo.PurgeSent(time.Now().UTC().Add(-time.Hour), 10); deleted != 0 {
		t.Fatalf("fresh messages must survive, deleted %d", deleted)
	}

	deleted, err := repo.PurgeSent(time.Now().UTC().Add(time.Second), 1)
	if err != nil || deleted != 1 {
		t.Fatalf("expected 1 deleted with limit 1, got %d %v", deleted, err)
	}
	deleted, _ = repo.PurgeSent(time.Now().UTC().Add(time.Second), 10)
	if deleted != 1 {
		t.Fatalf("expected the second sent message to be purged, got %d", deleted)
	}
	if repo.Len() != 1 || len(repo.AllPending()) != 1 {
		t.Fatalf("pending message must be kept, len=%d", repo.Len())
	}
}
