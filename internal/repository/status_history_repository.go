package repository

import (
	"context"
	"database/sql"
	"fmt"

	"vms-inventory/internal/database"
	"vms-inventory/internal/domain"
)

// StatusHistoryRepository stores the append-only order status log
type StatusHistoryRepository interface {
	Append(ctx context.Context, change *domain.StatusChange) error
	ListByOrder(ctx context.Context, orderID int64) ([]domain.StatusChange, error)
}

type statusHistoryRepository struct {
	db *sql.DB
}

// NewStatusHistoryRepository creates a new instance of StatusHistoryRepository
func NewStatusHistoryRepository(db *sql.DB) StatusHistoryRepository {
	return &statusHistoryRepository{db: db}
}

func (r *statusHistoryRepository) Append(ctx context.Context, change *domain.StatusChange) error {
	query := `
		INSERT INTO order_status_history (order_id, from_status, to_status, event_id, changed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := database.Conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		change.OrderID,
		string(change.From),
		string(change.To),
		change.EventID,
		change.ChangedAt,
	).Scan(&change.ID)
	if err != nil {
		return fmt.Errorf("failed to append status change: %w", err)
	}

	return nil
}

func (r *statusHistoryRepository) ListByOrder(ctx context.Context, orderID int64) ([]domain.StatusChange, error) {
	query := `
		SELECT id, order_id, from_status, to_status, event_id, changed_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id ASC
	`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	defer rows.Close()

	changes := []domain.StatusChange{}
	for rows.Next() {
		var c domain.StatusChange
		var from, to string
		if err := rows.Scan(&c.ID, &c.OrderID, &from, &to, &c.EventID, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status change: %w", err)
		}
		c.From = domain.OrderStatus(from)
		c.To = domain.OrderStatus(to)
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status history: %w", err)
	}

	return changes, nil
}
