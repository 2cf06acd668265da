package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidOrder      = errors.New("invalid order")
	ErrInvalidProduct    = errors.New("invalid product")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrOrderNotFound     = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrVariantNotFound   = errors.New("variant not found")
	ErrProductExists     = errors.New("product already exists")
	ErrStoreFailure      = errors.New("store failure")
)

// Shortfall reports one product an allocation could not satisfy
type Shortfall struct {
	ProductID int64 `json:"productID"`
	Required  int   `json:"required"`
	Available int   `json:"available"`
}

// InsufficientStockError lists every short product of a failed allocation
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Shortfalls))
	for i, s := range e.Shortfalls {
		parts[i] = fmt.Sprintf("product %d (required %d, available %d)", s.ProductID, s.Required, s.Available)
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrStoreFailure, op, err)
}

func invalidOrder(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidOrder, fmt.Sprintf(format, args...))
}

func invalidProduct(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidProduct, fmt.Sprintf(format, args...))
}
