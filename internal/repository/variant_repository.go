package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vms-inventory/internal/database"
	"vms-inventory/internal/domain"
)

var (
	ErrVariantNotFound  = errors.New("variant not found")
	ErrDuplicateBarcode = errors.New("barcode already exists")
)

// VariantRepository defines the interface for product variant data access
type VariantRepository interface {
	CreateBatch(ctx context.Context, variants []*domain.ProductVariant) error
	FindByID(ctx context.Context, id int64) (*domain.ProductVariant, error)
	SelectAvailableForUpdate(ctx context.Context, productID int64, limit int) ([]domain.AllocatedVariant, error)
	MarkUnavailable(ctx context.Context, ids []int64) ([]int64, error)
	CountAvailable(ctx context.Context, productID int64) (int, error)
	ListByProduct(ctx context.Context, productID int64) ([]*domain.ProductVariant, error)
}

type variantRepository struct {
	db *sql.DB
}

// NewVariantRepository creates a new instance of VariantRepository
func NewVariantRepository(db *sql.DB) VariantRepository {
	return &variantRepository{db: db}
}

// insertChunkRows keeps a multi-row insert well under the 65535 bind
// parameter limit of the extended protocol
const insertChunkRows = 5000

// CreateBatch inserts available variants, one statement per chunk of
// insertChunkRows. Run it inside a transaction to keep the batch atomic.
func (r *variantRepository) CreateBatch(ctx context.Context, variants []*domain.ProductVariant) error {
	for start := 0; start < len(variants); start += insertChunkRows {
		end := start + insertChunkRows
		if end > len(variants) {
			end = len(variants)
		}
		if err := r.insertChunk(ctx, variants[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *variantRepository) insertChunk(ctx context.Context, variants []*domain.ProductVariant) error {
	if len(variants) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO product_variants (barcode, product_code, product_id, is_available) VALUES `)
	args := make([]interface{}, 0, len(variants)*3)
	for i, v := range variants {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d, TRUE)", i*3+1, i*3+2, i*3+3)
		args = append(args, v.Barcode, v.ProductCode, v.ProductID)
	}
	sb.WriteString(` RETURNING id, created_at`)

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, sb.String(), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBarcode
		}
		return fmt.Errorf("failed to create variants: %w", err)
	}
	defer rows.Close()

	// RETURNING preserves VALUES order for a single multi-row insert
	i := 0
	for rows.Next() {
		if i >= len(variants) {
			break
		}
		if err := rows.Scan(&variants[i].ID, &variants[i].CreatedAt); err != nil {
			return fmt.Errorf("failed to scan variant: %w", err)
		}
		variants[i].IsAvailable = true
		i++
	}

	if err := rows.Err(); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateBarcode
		}
		return fmt.Errorf("error iterating variants: %w", err)
	}

	return nil
}

// FindByID retrieves a variant by its ID
func (r *variantRepository) FindByID(ctx context.Context, id int64) (*domain.ProductVariant, error) {
	query := `
		SELECT id, barcode, product_code, product_id, is_available, created_at
		FROM product_variants
		WHERE id = $1
	`

	v := &domain.ProductVariant{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&v.ID,
		&v.Barcode,
		&v.ProductCode,
		&v.ProductID,
		&v.IsAvailable,
		&v.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrVariantNotFound
		}
		return nil, fmt.Errorf("failed to find variant by ID: %w", err)
	}

	return v, nil
}

// SelectAvailableForUpdate locks up to limit available variants of a product
// in ascending ID order. Rows locked by other transactions are skipped, so the
// result may be shorter than limit while stock is being contended.
func (r *variantRepository) SelectAvailableForUpdate(ctx context.Context, productID int64, limit int) ([]domain.AllocatedVariant, error) {
	query := `
		SELECT pv.id, pv.product_id, pv.barcode, pv.product_code, p.name, p.category, p.color, p.size
		FROM product_variants pv
		JOIN products p ON p.id = pv.product_id
		WHERE pv.product_id = $1 AND pv.is_available
		ORDER BY pv.id ASC
		LIMIT $2
		FOR UPDATE OF pv SKIP LOCKED
	`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select available variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.AllocatedVariant
	for rows.Next() {
		var v domain.AllocatedVariant
		err := rows.Scan(
			&v.VariantID,
			&v.ProductID,
			&v.Barcode,
			&v.ProductCode,
			&v.ProductName,
			&v.Category,
			&v.Color,
			&v.Size,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}

	return variants, nil
}

// MarkUnavailable flips the given variants to unavailable and returns the IDs
// that were actually claimed. Variants already unavailable are left out.
func (r *variantRepository) MarkUnavailable(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		UPDATE product_variants
		SET is_available = FALSE
		WHERE id = ANY($1) AND is_available
		RETURNING id
	`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to mark variants unavailable: %w", err)
	}
	defer rows.Close()

	claimed := make([]int64, 0, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan variant id: %w", err)
		}
		claimed = append(claimed, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claimed variants: %w", err)
	}

	return claimed, nil
}

// CountAvailable returns the number of available variants of a product
func (r *variantRepository) CountAvailable(ctx context.Context, productID int64) (int, error) {
	query := `SELECT COUNT(*) FROM product_variants WHERE product_id = $1 AND is_available`

	var count int
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, productID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count available variants: %w", err)
	}

	return count, nil
}

// ListByProduct retrieves all variants of a product ordered by ID
func (r *variantRepository) ListByProduct(ctx context.Context, productID int64) ([]*domain.ProductVariant, error) {
	query := `
		SELECT id, barcode, product_code, product_id, is_available, created_at
		FROM product_variants
		WHERE product_id = $1
		ORDER BY id ASC
	`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list variants: %w", err)
	}
	defer rows.Close()

	var variants []*domain.ProductVariant
	for rows.Next() {
		v := &domain.ProductVariant{}
		if err := rows.Scan(&v.ID, &v.Barcode, &v.ProductCode, &v.ProductID, &v.IsAvailable, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		variants = append(variants, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating variants: %w", err)
	}

	return variants, nil
}
