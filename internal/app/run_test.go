package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/vladislavdragonenkov/simpleshop/internal/storage/memory"
)

func testConfig(t *testing.T) (Config, int, int) {
	t.Helper()

	httpPort := findFreePort(t)
	grpcPort := findFreePort(t)

	cfg := DefaultConfig()
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", httpPort)
	cfg.GRPCAddr = fmt.Sprintf("127.0.0.1:%d", grpcPort)
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.JWTSecret = "run-test-secret"
	cfg.ProcessingDelay = time.Hour
	cfg.CompletionDelay = time.Hour
	cfg.ShutdownTimeout = 50 * time.Millisecond
	cfg.BootstrapAdminEmail = "root@example.com"
	cfg.BootstrapAdminPassword = "root-password"
	return cfg, httpPort, grpcPort
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestRun_ServesAPIAndStopsGracefully(t *testing.T) {
	cfg, httpPort, grpcPort := testConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, cfg) }()

	waitForPort(t, httpPort)
	waitForPort(t, grpcPort)

	body, _ := json.Marshal(map[string]string{"email": cfg.BootstrapAdminEmail, "password": cfg.BootstrapAdminPassword})
	resp, err := http.Post(fmt.Sprintf("http://127.0.0.1:%d/auth/login", httpPort), "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected bootstrap admin login to succeed, got %d", resp.StatusCode)
	}

	conn, err := grpc.NewClient(cfg.GRPCAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial grpc: %v", err)
	}
	defer conn.Close()

	healthCtx, healthCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer healthCancel()
	health, err := healthpb.NewHealthClient(conn).Check(healthCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("grpc health check failed: %v", err)
	}
	if health.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected grpc health status %s", health.GetStatus())
	}

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestBuildServices_BootstrapAdminIsIdempotent(t *testing.T) {
	cfg, _, _ := testConfig(t)
	cfg.IdentityMode = IdentityModeMock

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "bootstrap"))
	if err != nil {
		t.Fatalf("init dependencies: %v", err)
	}
	svc, err := buildServices(cfg, deps, log.WithField("test", "bootstrap"))
	if err != nil {
		t.Fatalf("build services: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := bootstrapAdmin(context.Background(), cfg, svc.customers, log.WithField("test", "bootstrap")); err != nil {
			t.Fatalf("bootstrap attempt %d failed: %v", i+1, err)
		}
	}

	token, admin, err := svc.customers.Login(context.Background(), cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
	if err != nil {
		t.Fatalf("login as bootstrap admin: %v", err)
	}
	if token == "" || admin.ExternalRef == "" {
		t.Fatalf("expected token and external identity, got token=%q admin=%+v", token, admin)
	}
	role, err := deps.roles.GetByCustomerID(admin.CustomerID)
	if err != nil || !role.IsAdmin() {
		t.Fatalf("expected admin role, got %+v (%v)", role, err)
	}

	customers, err := deps.customers.List(10)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers) != 1 {
		t.Fatalf("expected exactly one customer after repeated bootstrap, got %d", len(customers))
	}

	if pending := deps.outbox.(*memory.OutboxRepository).AllPending(); len(pending) != 1 {
		t.Fatalf("expected one registration event, got %d", len(pending))
	}
}
