package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

type roleRepository struct {
	db *sql.DB
}

// NewRoleRepository создаёт PostgreSQL-реализацию RoleRepository.
func NewRoleRepository(store *Store) domain.RoleRepository {
	return &roleRepository{db: store.DB()}
}

func (r *roleRepository) GetByCustomerID(customerID string) (domain.Role, error) {
	ctx, cancel := opContext()
	defer cancel()

	role := domain.Role{CustomerID: customerID}
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT name FROM roles WHERE customer_id = $1`, customerID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Role{}, domain.ErrRoleNotFound
		}
		return domain.Role{}, fmt.Errorf("select role: %w", err)
	}
	role.Name = domain.RoleName(name)
	return role, nil
}

func (r *roleRepository) Save(role domain.Role) error {
	ctx, cancel := opContext()
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO roles (customer_id, name) VALUES ($1, $2)
		ON CONFLICT (customer_id) DO UPDATE SET name = EXCLUDED.name
	`, role.CustomerID, string(role.Name))
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrCustomerNotFound
		}
		return fmt.Errorf("upsert role: %w", err)
	}
	return nil
}

func (r *roleRepository) Delete(customerID string) error {
	ctx, cancel := opContext()
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE customer_id = $1`, customerID)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrRoleNotFound
	}
	return nil
}

var _ domain.RoleRepository = (*roleRepository)(nil)
