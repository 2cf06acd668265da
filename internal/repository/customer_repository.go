package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vms-inventory/internal/database"
	"vms-inventory/internal/domain"
)

var ErrCustomerNotFound = errors.New("customer not found")

// CustomerRepository defines the interface for customer data access
type CustomerRepository interface {
	EnsureExists(ctx context.Context, customer *domain.Customer) (bool, error)
	FindByID(ctx context.Context, id int64) (*domain.Customer, error)
}

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository creates a new instance of CustomerRepository
func NewCustomerRepository(db *sql.DB) CustomerRepository {
	return &customerRepository{db: db}
}

// EnsureExists inserts the customer unless its ID is already known.
// It reports whether a new row was created.
func (r *customerRepository) EnsureExists(ctx context.Context, customer *domain.Customer) (bool, error) {
	query := `
		INSERT INTO customers (id, name, warehouse_name, warehouse_address)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := database.Conn(ctx, r.db).ExecContext(
		ctx,
		query,
		customer.ID,
		customer.Name,
		customer.WarehouseName,
		customer.WarehouseAddress,
	)
	if err != nil {
		return false, fmt.Errorf("failed to ensure customer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// FindByID retrieves a customer by ID
func (r *customerRepository) FindByID(ctx context.Context, id int64) (*domain.Customer, error) {
	query := `
		SELECT id, name, warehouse_name, warehouse_address, created_at
		FROM customers
		WHERE id = $1
	`

	c := &domain.Customer{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.WarehouseName,
		&c.WarehouseAddress,
		&c.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to find customer by ID: %w", err)
	}

	return c, nil
}
