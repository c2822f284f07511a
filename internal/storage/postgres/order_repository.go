package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
)

const orderColumns = `id, customer_id, product, quantity, status, version, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order  domain.Order
		status string
	)
	if err := row.Scan(
		&order.ID, &order.CustomerID, &order.Product, &order.Quantity,
		&status, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	return order, nil
}

func (r *orderRepository) Create(order domain.Order) (domain.Order, error) {
	ctx, cancel := opContext()
	defer cancel()

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}

	created, err := scanOrder(r.db.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, product, quantity, status, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,1,$5,$6)
		RETURNING `+orderColumns,
		order.CustomerID, order.Product, order.Quantity, string(order.Status),
		order.CreatedAt, order.UpdatedAt,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Order{}, domain.ErrCustomerNotFound
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return created, nil
}

func (r *orderRepository) Get(id int64) (domain.Order, error) {
	ctx, cancel := opContext()
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) List(limit int) ([]domain.Order, error) {
	ctx, cancel := opContext()
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY id`
	if limit > 0 {
		return r.query(ctx, query+` LIMIT $1`, limit)
	}
	return r.query(ctx, query)
}

func (r *orderRepository) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	ctx, cancel := opContext()
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY id`
	if limit > 0 {
		return r.query(ctx, query+` LIMIT $2`, customerID, limit)
	}
	return r.query(ctx, query, customerID)
}

func (r *orderRepository) query(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return orders, nil
}

// Save обновляет заказ только если версия в базе совпадает с переданной.
func (r *orderRepository) Save(order domain.Order) (domain.Order, error) {
	ctx, cancel := opContext()
	defer cancel()

	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}

	saved, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET product = $1,
		    quantity = $2,
		    status = $3,
		    version = version + 1,
		    updated_at = $4
		WHERE id = $5
		  AND version = $6
		RETURNING `+orderColumns,
		order.Product, order.Quantity, string(order.Status), order.UpdatedAt,
		order.ID, order.Version,
	))
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	exists, err := r.exists(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	if !exists {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return domain.Order{}, domain.ErrOrderVersionConflict
}

func (r *orderRepository) Delete(id int64) error {
	ctx, cancel := opContext()
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) exists(ctx context.Context, id int64) (bool, error) {
	var found int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

var _ domain.OrderRepository = (*orderRepository)(nil)
