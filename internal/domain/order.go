package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle status of a purchase order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusRejected  OrderStatus = "Rejected"
	OrderStatusToShip    OrderStatus = "To Ship"
	OrderStatusShipped   OrderStatus = "Shipped"
)

// Valid reports whether s is one of the known statuses
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusRejected, OrderStatusToShip, OrderStatusShipped:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusRejected || s == OrderStatusShipped
}

// Customer is the ordering party; created lazily on first order
type Customer struct {
	ID               int64     `json:"customerID" db:"id"`
	Name             string    `json:"customerName" db:"name"`
	WarehouseName    string    `json:"warehouseName" db:"warehouse_name"`
	WarehouseAddress string    `json:"warehouseAddress" db:"warehouse_address"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}

// PurchaseOrder is mutated only through lifecycle transitions and never deleted
type PurchaseOrder struct {
	ID         int64                 `json:"orderID" db:"id"`
	CustomerID int64                 `json:"customerID" db:"customer_id"`
	OrderDate  time.Time             `json:"orderDate" db:"order_date"`
	Status     OrderStatus           `json:"orderStatus" db:"status"`
	StatusDate time.Time             `json:"statusDate" db:"status_date"`
	Details    []PurchaseOrderDetail `json:"products,omitempty"`
}

// PurchaseOrderDetail is an immutable order line
type PurchaseOrderDetail struct {
	ID            int64     `json:"-" db:"id"`
	OrderID       int64     `json:"orderID" db:"order_id"`
	ProductID     int64     `json:"productID" db:"product_id"`
	OrderQuantity int       `json:"quantity" db:"order_quantity"`
	ExpectedDate  time.Time `json:"expectedDate" db:"expected_date"`
}

// OrderSummary is the row returned by status listings
type OrderSummary struct {
	ID         int64     `json:"orderID"`
	OrderDate  time.Time `json:"orderDate"`
	StatusDate time.Time `json:"statusDate"`
	CustomerID int64     `json:"customerID"`
}

// OrderLineSummary describes one line of a pending order for review
type OrderLineSummary struct {
	OrderID          int64           `json:"orderID"`
	ProductID        int64           `json:"productID"`
	ProductName      string          `json:"productName"`
	Size             string          `json:"size"`
	Category         string          `json:"category"`
	Quantity         int             `json:"quantity"`
	TotalPrice       decimal.Decimal `json:"totalPrice"`
	CustomerName     string          `json:"customerName"`
	WarehouseAddress string          `json:"warehouseAddress"`
}

// StatusChange is one entry of the append-only order status log.
// From is empty for the creation entry.
type StatusChange struct {
	ID        int64       `json:"-" db:"id"`
	OrderID   int64       `json:"orderID" db:"order_id"`
	From      OrderStatus `json:"fromStatus" db:"from_status"`
	To        OrderStatus `json:"toStatus" db:"to_status"`
	EventID   uuid.UUID   `json:"eventID" db:"event_id"`
	ChangedAt time.Time   `json:"changedAt" db:"changed_at"`
}
