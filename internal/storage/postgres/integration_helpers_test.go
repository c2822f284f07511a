package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

// openPostgresStoreForIntegrationTest открывает базу из SHOP_POSTGRES_TEST_DSN,
// применяет миграции и очищает таблицы. Без DSN тест пропускается.
func openPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx, `
		TRUNCATE TABLE outbox_messages, timeline_events, orders, roles, customers
		RESTART IDENTITY CASCADE
	`); err != nil {
		t.Fatalf("truncate integration tables: %v", err)
	}
	return store
}

func openRawPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("SHOP_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("SHOP_POSTGRES_TEST_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not available for integration tests: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func seedCustomer(t *testing.T, store *Store, publicID, email string) domain.Customer {
	t.Helper()

	customer, err := NewCustomerRepository(store).Create(domain.Customer{
		CustomerID:   publicID,
		Username:     "user-" + publicID,
		Email:        email,
		PasswordHash: "hash",
		Active:       true,
	})
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	return customer
}
