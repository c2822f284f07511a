package customer

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/auth"
	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
	"github.com/vladislavdragonenkov/simpleshop/internal/metrics"
	"github.com/vladislavdragonenkov/simpleshop/internal/service/identity"
	"github.com/vladislavdragonenkov/simpleshop/internal/storage/memory"
)

type stubOrderCleaner struct {
	deleted []string
	err     error
	// onDelete вызывается при каждой очистке до записи вызова.
	onDelete func(call int)
}

func (s *stubOrderCleaner) DeleteByCustomer(_ context.Context, customerID string) error {
	if s.onDelete != nil {
		s.onDelete(len(s.deleted))
	}
	s.deleted = append(s.deleted, customerID)
	return s.err
}

type fixture struct {
	svc       *Service
	customers domain.CustomerRepository
	roles     domain.RoleRepository
	tokens    *auth.TokenService
	outbox    *memory.OutboxRepository
	orders    *stubOrderCleaner
}

func newFixture(t *testing.T, options ...Option) fixture {
	t.Helper()

	registry := prometheus.NewRegistry()
	authMetrics := metrics.NewAuthMetricsWithRegisterer(registry)
	tokens, err := auth.NewTokenService([]byte("test-secret"), auth.WithTokenMetrics(authMetrics))
	if err != nil {
		t.Fatalf("token service: %v", err)
	}

	f := fixture{
		customers: memory.NewCustomerRepository(),
		roles:     memory.NewRoleRepository(),
		tokens:    tokens,
		outbox:    memory.NewOutboxRepository(),
		orders:    &stubOrderCleaner{},
	}
	logger := log.New()
	logger.SetLevel(log.PanicLevel)

	policy := auth.NewPolicy(f.roles, auth.WithPolicyMetrics(authMetrics))
	opts := append([]Option{
		WithOrderCleaner(f.orders),
		WithOutbox(f.outbox),
		WithMetrics(authMetrics),
		WithLogger(logger.WithField("component", "test")),
	}, options...)
	f.svc = NewService(f.customers, f.roles, tokens, policy, opts...)
	return f
}

func (f fixture) register(t *testing.T, email string) domain.Customer {
	t.Helper()
	customer, err := f.svc.Register(context.Background(), RegisterInput{
		Username: "user",
		Email:    email,
		Password: "password-1",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return customer
}

func (f fixture) registerAdmin(t *testing.T) domain.Customer {
	t.Helper()
	admin, err := f.svc.RegisterAdmin(context.Background(), RegisterInput{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "admin-password",
	})
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	return admin
}

func TestFormatPublicID(t *testing.T) {
	at := time.Date(2025, time.March, 7, 10, 0, 0, 0, time.UTC)
	id := uuid.MustParse("3fa85f64-5717-4562-b3fc-2c963f66afa6")

	if got := FormatPublicID(at, id); got != "CUS_070325_3FA85F6" {
		t.Fatalf("unexpected public id %q", got)
	}
}

func TestService_Register(t *testing.T) {
	f := newFixture(t)

	customer := f.register(t, " Alice@Example.com ")
	if !regexp.MustCompile(`^CUS_\d{6}_[0-9A-F]{7}$`).MatchString(customer.CustomerID) {
		t.Fatalf("unexpected public id format %q", customer.CustomerID)
	}
	if customer.Email != "alice@example.com" {
		t.Fatalf("email must be normalized, got %q", customer.Email)
	}
	if customer.PasswordHash == "" || customer.PasswordHash == "password-1" {
		t.Fatal("password must be stored as bcrypt hash")
	}
	if !customer.Active {
		t.Fatal("new customer must be active")
	}

	role, err := f.roles.GetByCustomerID(customer.CustomerID)
	if err != nil {
		t.Fatalf("role lookup failed: %v", err)
	}
	if role.Name != domain.RoleUser {
		t.Fatalf("expected USER role, got %s", role.Name)
	}
	if pending := f.outbox.AllPending(); len(pending) != 1 || pending[0].EventType != "customer.registered" {
		t.Fatalf("expected customer.registered event, got %+v", pending)
	}
}

func TestService_Register_Validation(t *testing.T) {
	f := newFixture(t)
	f.register(t, "taken@example.com")

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{name: "missing email", in: RegisterInput{Username: "u", Password: "password-1"}, want: domain.ErrEmailRequired},
		{name: "missing username", in: RegisterInput{Email: "x@example.com", Password: "password-1"}, want: domain.ErrUsernameRequired},
		{name: "short password", in: RegisterInput{Username: "u", Email: "x@example.com", Password: "short"}, want: domain.ErrPasswordTooShort},
		{name: "duplicate email", in: RegisterInput{Username: "u", Email: "TAKEN@example.com", Password: "password-1"}, want: domain.ErrCustomerExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Register(context.Background(), tt.in); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestService_Login(t *testing.T) {
	f := newFixture(t)
	customer := f.register(t, "bob@example.com")

	token, got, err := f.svc.Login(context.Background(), "BOB@example.com", "password-1")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if got.CustomerID != customer.CustomerID {
		t.Fatalf("unexpected customer %q", got.CustomerID)
	}
	if err := f.tokens.Validate(token, customer.CustomerID); err != nil {
		t.Fatalf("issued token is invalid: %v", err)
	}

	if _, _, err := f.svc.Login(context.Background(), "bob@example.com", "wrong-password"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := f.svc.Login(context.Background(), "nobody@example.com", "password-1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown email must look like bad credentials, got %v", err)
	}
}

func TestService_Login_BlockedCustomer(t *testing.T) {
	f := newFixture(t)
	admin := f.registerAdmin(t)
	customer := f.register(t, "carol@example.com")

	if _, err := f.svc.SetActiveAs(context.Background(), admin.CustomerID, customer.CustomerID, false); err != nil {
		t.Fatalf("block failed: %v", err)
	}
	if _, _, err := f.svc.Login(context.Background(), "carol@example.com", "password-1"); !errors.Is(err, domain.ErrCustomerInactive) {
		t.Fatalf("expected ErrCustomerInactive, got %v", err)
	}

	if _, err := f.svc.SetActiveAs(context.Background(), admin.CustomerID, customer.CustomerID, true); err != nil {
		t.Fatalf("unblock failed: %v", err)
	}
	if _, _, err := f.svc.Login(context.Background(), "carol@example.com", "password-1"); err != nil {
		t.Fatalf("login after unblock failed: %v", err)
	}
}

func TestService_ExternalIdentity(t *testing.T) {
	provider := identity.NewMockProvider()
	f := newFixture(t, WithIdentityProvider(provider))
	admin := f.registerAdmin(t)

	customer := f.register(t, "dave@example.com")
	if customer.ExternalRef == "" {
		t.Fatal("expected external reference")
	}
	if customer.PasswordHash != "" {
		t.Fatal("password hash must not be stored for external identity")
	}

	if _, _, err := f.svc.Login(context.Background(), "dave@example.com", "password-1"); err != nil {
		t.Fatalf("login via provider failed: %v", err)
	}

	if _, err := f.svc.UpdateAs(context.Background(), customer.CustomerID, customer.CustomerID, UpdateInput{Password: "rotated-pass"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if _, _, err := f.svc.Login(context.Background(), "dave@example.com", "rotated-pass"); err != nil {
		t.Fatalf("login with rotated password failed: %v", err)
	}

	if _, err := f.svc.SetActiveAs(context.Background(), admin.CustomerID, customer.CustomerID, false); err != nil {
		t.Fatalf("block failed: %v", err)
	}
	if provider.Enabled(customer.ExternalRef) {
		t.Fatal("provider account must be disabled on block")
	}

	if err := f.svc.DeleteAs(context.Background(), admin.CustomerID, customer.CustomerID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if provider.DeleteCalls != 1 {
		t.Fatalf("expected provider delete, got %d calls", provider.DeleteCalls)
	}
}

func TestService_Register_ProviderFailure(t *testing.T) {
	provider := identity.NewMockProvider()
	provider.CreateErr = errors.New("directory down")
	f := newFixture(t, WithIdentityProvider(provider))

	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "e", Email: "e@example.com", Password: "password-1"})
	if !errors.Is(err, domain.ErrIdentityProvider) {
		t.Fatalf("expected ErrIdentityProvider, got %v", err)
	}
	if _, err := f.customers.GetByEmail("e@example.com"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("customer must not be stored, got %v", err)
	}
}

func TestService_UpdateAs(t *testing.T) {
	f := newFixture(t)
	owner := f.register(t, "owner@example.com")
	stranger := f.register(t, "stranger@example.com")

	updated, err := f.svc.UpdateAs(context.Background(), owner.CustomerID, owner.CustomerID, UpdateInput{
		FirstName: "Olga",
		Email:     "new-owner@example.com",
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.FirstName != "Olga" || updated.Email != "new-owner@example.com" {
		t.Fatalf("unexpected profile: %+v", updated)
	}
	if updated.CustomerID != owner.CustomerID {
		t.Fatal("public id must not change")
	}

	if _, err := f.svc.UpdateAs(context.Background(), stranger.CustomerID, owner.CustomerID, UpdateInput{FirstName: "Eve"}); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if _, err := f.svc.UpdateAs(context.Background(), owner.CustomerID, owner.CustomerID, UpdateInput{Email: "stranger@example.com"}); !errors.Is(err, domain.ErrCustomerExists) {
		t.Fatalf("expected ErrCustomerExists, got %v", err)
	}

	current, err := f.customers.GetByCustomerID(owner.CustomerID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.FirstName != "Olga" {
		t.Fatalf("denied update mutated profile: %+v", current)
	}
}

func TestService_AdminOnlyOperations(t *testing.T) {
	f := newFixture(t)
	admin := f.registerAdmin(t)
	user := f.register(t, "frank@example.com")
	ctx := context.Background()

	if _, err := f.svc.ListAs(ctx, user.CustomerID, 0); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied on list, got %v", err)
	}
	if _, err := f.svc.PromoteAs(ctx, user.CustomerID, user.CustomerID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied on self-promotion, got %v", err)
	}
	if _, err := f.svc.SetActiveAs(ctx, user.CustomerID, admin.CustomerID, false); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied on block, got %v", err)
	}
	if err := f.svc.DeleteAs(ctx, user.CustomerID, admin.CustomerID); !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied on delete, got %v", err)
	}

	all, err := f.svc.ListAs(ctx, admin.CustomerID, 0)
	if err != nil {
		t.Fatalf("admin list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(all))
	}
}

func TestService_PromoteAs(t *testing.T) {
	f := newFixture(t)
	admin := f.registerAdmin(t)
	user := f.register(t, "grace@example.com")
	ctx := context.Background()

	role, err := f.svc.PromoteAs(ctx, admin.CustomerID, user.CustomerID)
	if err != nil {
		t.Fatalf("promote failed: %v", err)
	}
	if !role.IsAdmin() {
		t.Fatalf("expected ADMIN, got %s", role.Name)
	}
	again, err := f.svc.PromoteAs(ctx, admin.CustomerID, user.CustomerID)
	if err != nil || !again.IsAdmin() {
		t.Fatalf("repeated promotion must be a no-op, got %v %v", again, err)
	}

	got, err := f.svc.RoleAs(ctx, user.CustomerID, user.CustomerID)
	if err != nil {
		t.Fatalf("role lookup failed: %v", err)
	}
	if !got.IsAdmin() {
		t.Fatalf("expected stored ADMIN role, got %s", got.Name)
	}
	if _, err := f.svc.PromoteAs(ctx, admin.CustomerID, "CUS_MISSING"); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestService_DeleteAs(t *testing.T) {
	f := newFixture(t)
	admin := f.registerAdmin(t)
	user := f.register(t, "heidi@example.com")
	ctx := context.Background()

	if err := f.svc.DeleteAs(ctx, admin.CustomerID, user.CustomerID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(f.orders.deleted) != 2 || f.orders.deleted[0] != user.CustomerID || f.orders.deleted[1] != user.CustomerID {
		t.Fatalf("orders were not cleaned: %+v", f.orders.deleted)
	}
	if _, err := f.customers.GetByCustomerID(user.CustomerID); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("customer still present: %v", err)
	}
	if _, err := f.roles.GetByCustomerID(user.CustomerID); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("role still present: %v", err)
	}
	if err := f.svc.DeleteAs(ctx, admin.CustomerID, user.CustomerID); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound on repeated delete, got %v", err)
	}
}

func TestService_DeleteAs_OrderCleanupFailureKeepsCustomer(t *testing.T) {
	f := newFixture(t)
	admin := f.registerAdmin(t)
	user := f.register(t, "ivan@example.com")
	f.orders.err = errors.New("store unavailable")

	if err := f.svc.DeleteAs(context.Background(), admin.CustomerID, user.CustomerID); err == nil {
		t.Fatal("expected error")
	}
	if _, err := f.customers.GetByCustomerID(user.CustomerID); err != nil {
		t.Fatalf("customer must be kept on failure: %v", err)
	}
}

func TestService_DeleteAs_RemovesOrdersPlacedDuringDeletion(t *testing.T) {
	f := newFixture(t)
	admin := f.registerAdmin(t)
	user := f.register(t, "judy@example.com")

	orders := memory.NewOrderRepository()
	f.orders.onDelete = func(call int) {
		if call == 0 {
			if _, err := orders.Create(domain.Order{CustomerID: user.CustomerID, Product: "Lamp", Quantity: 1, Status: domain.OrderStatusCreated}); err != nil {
				t.Fatalf("create order: %v", err)
			}
			return
		}
		list, err := orders.ListByCustomer(user.CustomerID, 0)
		if err != nil {
			t.Fatalf("list orders: %v", err)
		}
		for _, order := range list {
			if err := orders.Delete(order.ID); err != nil {
				t.Fatalf("delete order: %v", err)
			}
		}
	}

	if err := f.svc.DeleteAs(context.Background(), admin.CustomerID, user.CustomerID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	left, err := orders.ListByCustomer(user.CustomerID, 0)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("orders of deleted customer left behind: %+v", left)
	}
}

func TestService_UpdateAs_IdentityFailureRestoresProfile(t *testing.T) {
	provider := identity.NewMockProvider()
	f := newFixture(t, WithIdentityProvider(provider))
	customer := f.register(t, "kate@example.com")

	provider.UpdateErr = errors.New("directory down")
	_, err := f.svc.UpdateAs(context.Background(), customer.CustomerID, customer.CustomerID, UpdateInput{
		FirstName: "Katya",
		Email:     "katya@example.com",
	})
	if !errors.Is(err, domain.ErrIdentityProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}

	current, err := f.customers.GetByCustomerID(customer.CustomerID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.FirstName != customer.FirstName || current.Email != "kate@example.com" {
		t.Fatalf("local profile diverged from provider: %+v", current)
	}
	if _, err := f.customers.GetByEmail("katya@example.com"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("new email must not stay reserved, got %v", err)
	}
}

func TestService_SetActiveAs_IdentityFailureKeepsState(t *testing.T) {
	provider := identity.NewMockProvider()
	f := newFixture(t, WithIdentityProvider(provider))
	admin := f.registerAdmin(t)
	customer := f.register(t, "leo@example.com")

	provider.EnableErr = errors.New("directory down")
	if _, err := f.svc.SetActiveAs(context.Background(), admin.CustomerID, customer.CustomerID, false); !errors.Is(err, domain.ErrIdentityProvider) {
		t.Fatalf("expected provider error, got %v", err)
	}

	current, err := f.customers.GetByCustomerID(customer.CustomerID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !current.Active {
		t.Fatal("customer must stay active when provider rejects the block")
	}
	if !provider.Enabled(customer.ExternalRef) {
		t.Fatal("provider account must stay enabled")
	}
}
