package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vms-inventory/internal/database"
	"vms-inventory/internal/domain"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductAlreadyExists = errors.New("an active product with this name, description, size and category already exists")
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	FindActiveByLine(ctx context.Context, name, description, size, category string) (*domain.Product, error)
	AdjustStock(ctx context.Context, id int64, delta int) error
	SoftDelete(ctx context.Context, id int64) error
	GetStock(ctx context.Context, id int64) (*domain.ProductStock, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, description, size, color, category, unit_price, current_stock, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }, product *domain.Product) error {
	return row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Size,
		&product.Color,
		&product.Category,
		&product.UnitPrice,
		&product.CurrentStock,
		&product.IsActive,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
}

// Create inserts a new active product and fills in its generated ID
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (name, description, size, color, category, unit_price, current_stock, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id, is_active, created_at, updated_at
	`

	err := database.Conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		product.Name,
		product.Description,
		product.Size,
		product.Color,
		product.Category,
		product.UnitPrice,
		product.CurrentStock,
	).Scan(&product.ID, &product.IsActive, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrProductAlreadyExists
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update rewrites the descriptive attributes of an active product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, size = $4, color = $5, category = $6,
		    unit_price = $7, updated_at = NOW()
		WHERE id = $1 AND is_active
		RETURNING updated_at
	`

	err := database.Conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Size,
		product.Color,
		product.Category,
		product.UnitPrice,
	).Scan(&product.UpdatedAt)

	if err != nil {
		if err == sql.ErrNoRows {
			return ErrProductNotFound
		}
		if isUniqueViolation(err) {
			return ErrProductAlreadyExists
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	return nil
}

// FindByID retrieves a product, active or not
func (r *productRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product := &domain.Product{}
	err := scanProduct(database.Conn(ctx, r.db).QueryRowContext(ctx, query, id), product)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindActiveByLine retrieves the active product identified by its line attributes
func (r *productRepository) FindActiveByLine(ctx context.Context, name, description, size, category string) (*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE name = $1 AND description = $2 AND size = $3 AND category = $4 AND is_active
	`

	product := &domain.Product{}
	err := scanProduct(database.Conn(ctx, r.db).QueryRowContext(ctx, query, name, description, size, category), product)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by line: %w", err)
	}

	return product, nil
}

// AdjustStock adds delta to the stock counter of an active product
func (r *productRepository) AdjustStock(ctx context.Context, id int64, delta int) error {
	query := `
		UPDATE products
		SET current_stock = current_stock + $2, updated_at = NOW()
		WHERE id = $1 AND is_active
	`

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust product stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// SoftDelete marks an active product inactive
func (r *productRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// GetStock retrieves an active product with its number of available variants
func (r *productRepository) GetStock(ctx context.Context, id int64) (*domain.ProductStock, error) {
	query := `
		SELECT p.id, p.name, p.description, p.size, p.color, p.category, p.unit_price,
		       p.current_stock, p.is_active, p.created_at, p.updated_at,
		       COUNT(pv.id) FILTER (WHERE pv.is_available)
		FROM products p
		LEFT JOIN product_variants pv ON pv.product_id = p.id
		WHERE p.id = $1 AND p.is_active
		GROUP BY p.id
	`

	stock := &domain.ProductStock{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&stock.ID,
		&stock.Name,
		&stock.Description,
		&stock.Size,
		&stock.Color,
		&stock.Category,
		&stock.UnitPrice,
		&stock.CurrentStock,
		&stock.IsActive,
		&stock.CreatedAt,
		&stock.UpdatedAt,
		&stock.AvailableQuantity,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product stock: %w", err)
	}

	return stock, nil
}
