package rediscache

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
	"github.com/vladislavdragonenkov/simpleshop/internal/storage/memory"
)

func unreachableClient() *redis.Client {
	return NewClient("127.0.0.1:1")
}

func TestRoleCacheFallsBackToStoreWhenRedisIsDown(t *testing.T) {
	store := memory.NewRoleRepository()
	cache := NewRoleCache(store, unreachableClient(), WithOpTimeout(50*time.Millisecond))

	if err := cache.Save(domain.Role{CustomerID: "CUS_1", Name: domain.RoleAdmin}); err != nil {
		t.Fatalf("save: %v", err)
	}
	role, err := cache.GetByCustomerID("CUS_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if role.Name != domain.RoleAdmin {
		t.Fatalf("unexpected role %s", role.Name)
	}

	if _, err := cache.GetByCustomerID("CUS_missing"); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
	if err := cache.Delete("CUS_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := cache.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error for unreachable redis")
	}
}

func TestRoleCacheWithRedis(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("SHOP_REDIS_TEST_ADDR"))
	if addr == "" {
		t.Skip("SHOP_REDIS_TEST_ADDR is not set")
	}
	client := NewClient(addr)
	t.Cleanup(func() { _ = client.Close() })
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis is not available: %v", err)
	}

	store := memory.NewRoleRepository()
	cache := NewRoleCache(store, client, WithTTL(time.Minute))
	customerID := "CUS_cache_" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = client.Del(context.Background(), cacheKey(customerID)).Err() })

	if err := cache.Save(domain.Role{CustomerID: customerID, Name: domain.RoleUser}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := cache.GetByCustomerID(customerID); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	cached, err := client.Get(context.Background(), cacheKey(customerID)).Result()
	if err != nil || cached != string(domain.RoleUser) {
		t.Fatalf("expected cached role, got %q %v", cached, err)
	}

	if err := cache.Save(domain.Role{CustomerID: customerID, Name: domain.RoleAdmin}); err != nil {
		t.Fatalf("promote: %v", err)
	}
	role, err := cache.GetByCustomerID(customerID)
	if err != nil || role.Name != domain.RoleAdmin {
		t.Fatalf("promotion must invalidate cache, got %+v %v", role, err)
	}
}
