package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

func TestCustomerAndRoleRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	customers := NewCustomerRepository(store)
	roles := NewRoleRepository(store)

	alice := seedCustomer(t, store, "CUS_010125_AAAAAAA", "Alice@Example.com")
	if alice.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", alice.Email)
	}

	if _, err := customers.Create(domain.Customer{CustomerID: "CUS_other", Username: "x", Email: "alice@example.com"}); !errors.Is(err, domain.ErrCustomerExists) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}

	exists, err := customers.ExistsByCustomerID(alice.CustomerID)
	if err != nil || !exists {
		t.Fatalf("expected customer to exist: %v %v", exists, err)
	}

	alice.Active = false
	saved, err := customers.Save(alice)
	if err != nil {
		t.Fatalf("save customer: %v", err)
	}
	if saved.Active {
		t.Fatal("expected blocked customer")
	}

	if _, err := roles.GetByCustomerID(alice.CustomerID); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
	if err := roles.Save(domain.Role{CustomerID: alice.CustomerID, Name: domain.RoleUser}); err != nil {
		t.Fatalf("save role: %v", err)
	}
	if err := roles.Save(domain.Role{CustomerID: alice.CustomerID, Name: domain.RoleAdmin}); err != nil {
		t.Fatalf("promote role: %v", err)
	}
	role, err := roles.GetByCustomerID(alice.CustomerID)
	if err != nil || role.Name != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %+v %v", role, err)
	}
	if err := roles.Save(domain.Role{CustomerID: "CUS_missing", Name: domain.RoleUser}); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound for orphan role, got %v", err)
	}

	if err := customers.Delete(alice.CustomerID); err != nil {
		t.Fatalf("delete customer: %v", err)
	}
	if _, err := roles.GetByCustomerID(alice.CustomerID); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("role must cascade with customer, got %v", err)
	}
}

func TestOrderRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	seedCustomer(t, store, "CUS_010125_BBBBBBB", "bob@example.com")

	now := time.Now().UTC().Round(time.Microsecond)
	created, err := repo.Create(domain.Order{
		CustomerID: "CUS_010125_BBBBBBB",
		Product:    "mouse",
		Quantity:   2,
		Status:     domain.OrderStatusCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if created.ID == 0 || created.Version != 1 {
		t.Fatalf("unexpected created order %+v", created)
	}

	if _, err := repo.Create(domain.Order{CustomerID: "CUS_missing", Product: "x", Quantity: 1, Status: domain.OrderStatusCreated}); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}

	created.Status = domain.OrderStatusProcessing
	saved, err := repo.Save(created)
	if err != nil {
		t.Fatalf("save order: %v", err)
	}
	if saved.Version != 2 || saved.Status != domain.OrderStatusProcessing {
		t.Fatalf("unexpected saved order %+v", saved)
	}

	if _, err := repo.Save(created); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict on stale save, got %v", err)
	}

	listed, err := repo.ListByCustomer("CUS_010125_BBBBBBB", 0)
	if err != nil || len(listed) != 1 {
		t.Fatalf("unexpected list result %+v %v", listed, err)
	}

	if err := repo.Delete(created.ID); err != nil {
		t.Fatalf("delete order: %v", err)
	}
	saved.Status = domain.OrderStatusCompleted
	if _, err := repo.Save(saved); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound after delete, got %v", err)
	}
	if err := repo.Delete(created.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on second delete, got %v", err)
	}
}

func TestTimelineAndOutboxRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	timeline := NewTimelineRepository(store)
	outbox := NewOutboxRepository(store)

	base := time.Now().UTC().Round(time.Microsecond)
	for i, status := range []string{"CREATED", "PROCESSING"} {
		if err := timeline.Append(domain.TimelineEvent{
			OrderID:  42,
			Type:     domain.TimelineStatusChanged,
			Reason:   status,
			Occurred: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("append timeline: %v", err)
		}
	}
	events, err := timeline.List(42)
	if err != nil || len(events) != 2 || events[0].Reason != "CREATED" {
		t.Fatalf("unexpected timeline %+v %v", events, err)
	}
	if err := timeline.DeleteByOrder(42); err != nil {
		t.Fatalf("delete timeline: %v", err)
	}

	msg, err := outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "42",
		EventType:     "OrderPlaced",
		Payload:       []byte(`{"id":42}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	stats, err := outbox.Stats()
	if err != nil || stats.PendingCount != 1 {
		t.Fatalf("unexpected stats %+v %v", stats, err)
	}
	if err := outbox.MarkSent(msg.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	pending, err := outbox.PullPending(0)
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected empty backlog, got %+v %v", pending, err)
	}
	if err := outbox.MarkFailed("missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish, got %v", err)
	}

	purged, err := NewOutboxPurger(store).PurgeSent(time.Now().UTC().Add(time.Minute), 10)
	if err != nil || purged != 1 {
		t.Fatalf("expected 1 purged message, got %d %v", purged, err)
	}
}
