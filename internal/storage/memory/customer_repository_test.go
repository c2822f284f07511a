package memory_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
	"github.com/vladislavdragonenkov/simpleshop/internal/storage/memory"
)

func newCustomer(publicID, email string) domain.Customer {
	return domain.Customer{
		CustomerID: publicID,
		Username:   "user-" + publicID,
		Email:      email,
		Active:     true,
	}
}

func TestCustomerRepository_CreateAndLookup(t *testing.T) {
	repo := memory.NewCustomerRepository()

	created, err := repo.Create(newCustomer("CUS_1", "Alice@Example.com"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}

	byEmail, err := repo.GetByEmail("alice@example.COM")
	if err != nil {
		t.Fatalf("get by email failed: %v", err)
	}
	if byEmail.CustomerID != "CUS_1" {
		t.Fatalf("unexpected customer %q", byEmail.CustomerID)
	}

	exists, err := repo.ExistsByCustomerID("CUS_1")
	if err != nil || !exists {
		t.Fatalf("expected customer to exist, got %v %v", exists, err)
	}

	if _, err := repo.GetByCustomerID("CUS_missing"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestCustomerRepository_UniqueConstraints(t *testing.T) {
	repo := memory.NewCustomerRepository()
	if _, err := repo.Create(newCustomer("CUS_1", "alice@example.com")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := repo.Create(newCustomer("CUS_2", "ALICE@example.com")); !errors.Is(err, domain.ErrCustomerExists) {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
	if _, err := repo.Create(newCustomer("CUS_1", "other@example.com")); !errors.Is(err, domain.ErrCustomerExists) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestCustomerRepository_SaveAndDelete(t *testing.T) {
	repo := memory.NewCustomerRepository()
	created, err := repo.Create(newCustomer("CUS_1", "alice@example.com"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := repo.Create(newCustomer("CUS_2", "bob@example.com")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	created.Email = "bob@example.com"
	if _, err := repo.Save(created); !errors.Is(err, domain.ErrCustomerExists) {
		t.Fatalf("expected email conflict, got %v", err)
	}

	created.Email = "alice.new@example.com"
	created.Active = false
	saved, err := repo.Save(created)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if saved.Active {
		t.Fatal("expected inactive customer")
	}
	if _, err := repo.GetByEmail("alice@example.com"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("old email must be released, got %v", err)
	}

	if err := repo.Delete("CUS_1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := repo.Delete("CUS_1"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}

	list, err := repo.List(0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].CustomerID != "CUS_2" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestRoleRepository(t *testing.T) {
	repo := memory.NewRoleRepository()

	if _, err := repo.GetByCustomerID("CUS_1"); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
	if err := repo.Save(domain.Role{CustomerID: "CUS_1", Name: domain.RoleUser}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := repo.Save(domain.Role{CustomerID: "CUS_1", Name: domain.RoleAdmin}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	role, err := repo.GetByCustomerID("CUS_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if role.Name != domain.RoleAdmin {
		t.Fatalf("expected single replaced role, got %s", role.Name)
	}
	if err := repo.Delete("CUS_1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := repo.Delete("CUS_1"); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}
