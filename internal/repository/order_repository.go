package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vms-inventory/internal/database"
	"vms-inventory/internal/domain"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderRepository defines the interface for purchase order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.PurchaseOrder) error
	FindByID(ctx context.Context, id int64) (*domain.PurchaseOrder, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*domain.PurchaseOrder, error)
	Details(ctx context.Context, orderID int64) ([]domain.PurchaseOrderDetail, error)
	UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, statusDate time.Time) error
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.OrderSummary, error)
	PendingLines(ctx context.Context) ([]domain.OrderLineSummary, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts the order header and all of its lines.
// Callers wrap it in a transaction so the order is stored as one unit.
func (r *orderRepository) Create(ctx context.Context, order *domain.PurchaseOrder) error {
	conn := database.Conn(ctx, r.db)

	query := `
		INSERT INTO purchase_orders (customer_id, order_date, status, status_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := conn.QueryRowContext(
		ctx,
		query,
		order.CustomerID,
		order.OrderDate,
		order.Status,
		order.StatusDate,
	).Scan(&order.ID)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	detailQuery := `
		INSERT INTO purchase_order_details (order_id, product_id, order_quantity, expected_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	for i := range order.Details {
		d := &order.Details[i]
		d.OrderID = order.ID
		err := conn.QueryRowContext(ctx, detailQuery, d.OrderID, d.ProductID, d.OrderQuantity, d.ExpectedDate).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("failed to create order detail: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) findOne(ctx context.Context, query string, id int64) (*domain.PurchaseOrder, error) {
	order := &domain.PurchaseOrder{}
	var status string
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.CustomerID,
		&order.OrderDate,
		&status,
		&order.StatusDate,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}
	order.Status = domain.OrderStatus(status)

	return order, nil
}

// FindByID retrieves an order header without its lines
func (r *orderRepository) FindByID(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	return r.findOne(ctx, `
		SELECT id, customer_id, order_date, status, status_date
		FROM purchase_orders
		WHERE id = $1
	`, id)
}

// FindByIDForUpdate retrieves an order header and locks its row until the
// enclosing transaction ends. Concurrent transitions on the same order wait here.
func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	return r.findOne(ctx, `
		SELECT id, customer_id, order_date, status, status_date
		FROM purchase_orders
		WHERE id = $1
		FOR UPDATE
	`, id)
}

// Details retrieves the lines of an order in insertion order
func (r *orderRepository) Details(ctx context.Context, orderID int64) ([]domain.PurchaseOrderDetail, error) {
	query := `
		SELECT id, order_id, product_id, order_quantity, expected_date
		FROM purchase_order_details
		WHERE order_id = $1
		ORDER BY id ASC
	`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order details: %w", err)
	}
	defer rows.Close()

	var details []domain.PurchaseOrderDetail
	for rows.Next() {
		var d domain.PurchaseOrderDetail
		if err := rows.Scan(&d.ID, &d.OrderID, &d.ProductID, &d.OrderQuantity, &d.ExpectedDate); err != nil {
			return nil, fmt.Errorf("failed to scan order detail: %w", err)
		}
		details = append(details, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order details: %w", err)
	}

	return details, nil
}

// UpdateStatus overwrites the order status and its timestamp
func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, statusDate time.Time) error {
	query := `UPDATE purchase_orders SET status = $2, status_date = $3 WHERE id = $1`

	result, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id, string(status), statusDate)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// ListByStatus retrieves the orders currently in status, ordered by ID
func (r *orderRepository) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.OrderSummary, error) {
	query := `
		SELECT id, order_date, status_date, customer_id
		FROM purchase_orders
		WHERE status = $1
		ORDER BY id ASC
	`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list orders by status: %w", err)
	}
	defer rows.Close()

	orders := []domain.OrderSummary{}
	for rows.Next() {
		var o domain.OrderSummary
		if err := rows.Scan(&o.ID, &o.OrderDate, &o.StatusDate, &o.CustomerID); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}

// PendingLines retrieves every line of every Pending order with product and customer details
func (r *orderRepository) PendingLines(ctx context.Context) ([]domain.OrderLineSummary, error) {
	query := `
		SELECT po.id, p.id, p.name, p.size, p.category, pod.order_quantity,
		       p.unit_price * pod.order_quantity, c.name, c.warehouse_address
		FROM purchase_orders po
		JOIN purchase_order_details pod ON pod.order_id = po.id
		JOIN products p ON p.id = pod.product_id
		JOIN customers c ON c.id = po.customer_id
		WHERE po.status = $1
		ORDER BY po.id ASC, pod.id ASC
	`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, string(domain.OrderStatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending order lines: %w", err)
	}
	defer rows.Close()

	lines := []domain.OrderLineSummary{}
	for rows.Next() {
		var l domain.OrderLineSummary
		err := rows.Scan(
			&l.OrderID,
			&l.ProductID,
			&l.ProductName,
			&l.Size,
			&l.Category,
			&l.Quantity,
			&l.TotalPrice,
			&l.CustomerName,
			&l.WarehouseAddress,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order lines: %w", err)
	}

	return lines, nil
}
