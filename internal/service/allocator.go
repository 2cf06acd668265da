package service

import (
	"context"

	"vms-inventory/internal/domain"
	"vms-inventory/internal/repository"
)

// LineRequest asks for quantity units of one product
type LineRequest struct {
	ProductID int64
	Quantity  int
}

// VariantAllocator reserves physical units for order lines.
// It must be called with a transactional context; the selected rows stay
// locked until that transaction ends.
type VariantAllocator interface {
	// Reserve selects quantity available variants of productID in ascending ID order.
	// Units locked by a concurrent transaction are skipped rather than waited
	// for, so under contention it can return *InsufficientStockError even though
	// enough stock exists once that transaction ends. Callers may retry.
	Reserve(ctx context.Context, productID int64, quantity int) ([]domain.AllocatedVariant, error)
	// ReserveLines reserves every line or none. Lines for the same product are
	// merged. It fails transiently under contention the same way Reserve does.
	ReserveLines(ctx context.Context, lines []LineRequest) ([]domain.AllocatedVariant, error)
	// Consume marks reserved variants unavailable for good
	Consume(ctx context.Context, variants []domain.AllocatedVariant) error
}

type variantAllocator struct {
	variants repository.VariantRepository
}

// NewVariantAllocator creates a VariantAllocator over the variant store
func NewVariantAllocator(variants repository.VariantRepository) VariantAllocator {
	return &variantAllocator{variants: variants}
}

func (a *variantAllocator) Reserve(ctx context.Context, productID int64, quantity int) ([]domain.AllocatedVariant, error) {
	return a.ReserveLines(ctx, []LineRequest{{ProductID: productID, Quantity: quantity}})
}

func (a *variantAllocator) ReserveLines(ctx context.Context, lines []LineRequest) ([]domain.AllocatedVariant, error) {
	merged := mergeLines(lines)

	var (
		reserved   []domain.AllocatedVariant
		shortfalls []Shortfall
	)
	for _, line := range merged {
		selected, err := a.variants.SelectAvailableForUpdate(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, storeFailure("select variants", err)
		}

		if len(selected) < line.Quantity {
			shortfalls = append(shortfalls, Shortfall{
				ProductID: line.ProductID,
				Required:  line.Quantity,
				Available: len(selected),
			})
			continue
		}

		reserved = append(reserved, selected...)
	}

	if len(shortfalls) > 0 {
		return nil, &InsufficientStockError{Shortfalls: shortfalls}
	}

	return reserved, nil
}

func (a *variantAllocator) Consume(ctx context.Context, variants []domain.AllocatedVariant) error {
	if len(variants) == 0 {
		return nil
	}

	ids := make([]int64, len(variants))
	for i, v := range variants {
		ids[i] = v.VariantID
	}

	claimed, err := a.variants.MarkUnavailable(ctx, ids)
	if err != nil {
		return storeFailure("consume variants", err)
	}

	if len(claimed) == len(ids) {
		return nil
	}

	// another writer consumed some of the units; report what was left per product
	got := make(map[int64]bool, len(claimed))
	for _, id := range claimed {
		got[id] = true
	}

	var (
		order      []int64
		required   = make(map[int64]int)
		obtainable = make(map[int64]int)
	)
	for _, v := range variants {
		if _, seen := required[v.ProductID]; !seen {
			order = append(order, v.ProductID)
		}
		required[v.ProductID]++
		if got[v.VariantID] {
			obtainable[v.ProductID]++
		}
	}

	var shortfalls []Shortfall
	for _, productID := range order {
		if obtainable[productID] < required[productID] {
			shortfalls = append(shortfalls, Shortfall{
				ProductID: productID,
				Required:  required[productID],
				Available: obtainable[productID],
			})
		}
	}

	return &InsufficientStockError{Shortfalls: shortfalls}
}

// mergeLines sums quantities per product keeping first-seen order.
// Selecting the same product twice in one transaction would return the same rows.
func mergeLines(lines []LineRequest) []LineRequest {
	index := make(map[int64]int, len(lines))
	merged := make([]LineRequest, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged
}
