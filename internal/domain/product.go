package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents one active product line (name, description, size, category)
type Product struct {
	ID           int64           `json:"productID" db:"id"`
	Name         string          `json:"productName" db:"name"`
	Description  string          `json:"productDescription" db:"description"`
	Size         string          `json:"size" db:"size"`
	Color        string          `json:"color" db:"color"`
	Category     string          `json:"category" db:"category"`
	UnitPrice    decimal.Decimal `json:"unitPrice" db:"unit_price"`
	CurrentStock int             `json:"currentStock" db:"current_stock"`
	IsActive     bool            `json:"isActive" db:"is_active"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}

// ProductVariant is a single physical, barcoded unit of a product.
// Once IsAvailable is false it never becomes true again.
type ProductVariant struct {
	ID          int64     `json:"variantID" db:"id"`
	Barcode     string    `json:"barcode" db:"barcode"`
	ProductCode string    `json:"productCode" db:"product_code"`
	ProductID   int64     `json:"productID" db:"product_id"`
	IsAvailable bool      `json:"isAvailable" db:"is_available"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// AllocatedVariant is a variant selected for an order line, joined with the
// product attributes the counterpart system needs.
type AllocatedVariant struct {
	VariantID   int64  `json:"-"`
	ProductID   int64  `json:"-"`
	Barcode     string `json:"barcode"`
	ProductCode string `json:"productCode"`
	ProductName string `json:"productName"`
	Category    string `json:"category"`
	Color       string `json:"color"`
	Size        string `json:"size"`
}

// ProductStock is a product with its count of available variants
type ProductStock struct {
	Product
	AvailableQuantity int `json:"availableQuantity"`
}
