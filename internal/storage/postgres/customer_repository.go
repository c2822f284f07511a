package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

const customerColumns = `id, customer_id, username, first_name, last_name, email,
	password_hash, external_ref, active, created_at, updated_at`

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{db: store.DB()}
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID, &c.CustomerID, &c.Username, &c.FirstName, &c.LastName, &c.Email,
		&c.PasswordHash, &c.ExternalRef, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *customerRepository) Create(customer domain.Customer) (domain.Customer, error) {
	ctx, cancel := opContext()
	defer cancel()

	now := time.Now().UTC()
	created, err := scanCustomer(r.db.QueryRowContext(ctx, `
		INSERT INTO customers (
			customer_id, username, first_name, last_name, email,
			password_hash, external_ref, active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		RETURNING `+customerColumns,
		customer.CustomerID, customer.Username, customer.FirstName, customer.LastName,
		domain.NormalizeEmail(customer.Email), customer.PasswordHash, customer.ExternalRef,
		customer.Active, now,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Customer{}, domain.ErrCustomerExists
		}
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return created, nil
}

func (r *customerRepository) Get(id int64) (domain.Customer, error) {
	return r.getBy(`id = $1`, id)
}

func (r *customerRepository) GetByCustomerID(customerID string) (domain.Customer, error) {
	return r.getBy(`customer_id = $1`, customerID)
}

func (r *customerRepository) GetByEmail(email string) (domain.Customer, error) {
	return r.getBy(`email = $1`, domain.NormalizeEmail(email))
}

func (r *customerRepository) getBy(where string, arg any) (domain.Customer, error) {
	ctx, cancel := opContext()
	defer cancel()

	customer, err := scanCustomer(r.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) ExistsByCustomerID(customerID string) (bool, error) {
	ctx, cancel := opContext()
	defer cancel()

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM customers WHERE customer_id = $1)`, customerID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check customer exists: %w", err)
	}
	return exists, nil
}

func (r *customerRepository) List(limit int) ([]domain.Customer, error) {
	ctx, cancel := opContext()
	defer cancel()

	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY id`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+` LIMIT $1`, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer rows: %w", err)
	}
	return customers, nil
}

func (r *customerRepository) Save(customer domain.Customer) (domain.Customer, error) {
	ctx, cancel := opContext()
	defer cancel()

	saved, err := scanCustomer(r.db.QueryRowContext(ctx, `
		UPDATE customers
		SET username = $1,
		    first_name = $2,
		    last_name = $3,
		    email = $4,
		    password_hash = $5,
		    external_ref = $6,
		    active = $7,
		    updated_at = $8
		WHERE customer_id = $9
		RETURNING `+customerColumns,
		customer.Username, customer.FirstName, customer.LastName,
		domain.NormalizeEmail(customer.Email), customer.PasswordHash, customer.ExternalRef,
		customer.Active, time.Now().UTC(), customer.CustomerID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		if isUniqueViolation(err) {
			return domain.Customer{}, domain.ErrCustomerExists
		}
		return domain.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	return saved, nil
}

func (r *customerRepository) Delete(customerID string) error {
	ctx, cancel := opContext()
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE customer_id = $1`, customerID)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
