package repository

import (
	"context"
	"errors"
	"testing"

	"vms-inventory/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// Feature: vms-inventory, Property 1: Product creation preserves attributes
func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, size string, cents int64, stock int) bool {
			product := &domain.Product{
				Name:         name + " " + uuid.NewString(),
				Description:  "property product",
				Size:         size,
				Color:        "Blue",
				Category:     "Trousers",
				UnitPrice:    decimal.New(cents, -2),
				CurrentStock: stock,
			}

			if err := repo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			retrieved, err := repo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if retrieved.Name != product.Name || retrieved.Size != product.Size {
				t.Logf("FAIL: Attribute mismatch. Expected %s/%s, got %s/%s", product.Name, product.Size, retrieved.Name, retrieved.Size)
				return false
			}

			if !retrieved.UnitPrice.Equal(product.UnitPrice) {
				t.Logf("FAIL: Price mismatch. Expected %s, got %s", product.UnitPrice, retrieved.UnitPrice)
				return false
			}

			if retrieved.CurrentStock != stock {
				t.Logf("FAIL: Stock mismatch. Expected %d, got %d", stock, retrieved.CurrentStock)
				return false
			}

			if !retrieved.IsActive {
				t.Logf("FAIL: New product should be active")
				return false
			}

			return true
		},
		gen.Identifier(),
		gen.OneConstOf("S", "M", "L", "XL"),
		gen.Int64Range(0, 10000000),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

func TestProductRepository_ActiveLineIsUnique(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	line := func() *domain.Product {
		return &domain.Product{
			Name:        "Line Tee",
			Description: "unique line " + t.Name(),
			Size:        "L",
			Category:    "Shirts",
			UnitPrice:   decimal.NewFromInt(10),
		}
	}

	first := line()
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Failed to create product: %v", err)
	}

	if err := repo.Create(ctx, line()); !errors.Is(err, ErrProductAlreadyExists) {
		t.Fatalf("Expected ErrProductAlreadyExists, got %v", err)
	}

	found, err := repo.FindActiveByLine(ctx, first.Name, first.Description, first.Size, first.Category)
	if err != nil {
		t.Fatalf("Failed to find active line: %v", err)
	}
	if found.ID != first.ID {
		t.Errorf("Expected product %d, got %d", first.ID, found.ID)
	}

	if err := repo.SoftDelete(ctx, first.ID); err != nil {
		t.Fatalf("Failed to soft delete: %v", err)
	}

	if err := repo.SoftDelete(ctx, first.ID); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Expected ErrProductNotFound on second delete, got %v", err)
	}

	// an inactive row no longer blocks the line
	if err := repo.Create(ctx, line()); err != nil {
		t.Fatalf("Expected re-creation after soft delete to succeed, got %v", err)
	}
}

func TestProductRepository_StockAndAvailability(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	variantRepo := NewVariantRepository(testDB)
	ctx := context.Background()

	product := seedProduct(t, 4)

	if err := productRepo.AdjustStock(ctx, product.ID, 3); err != nil {
		t.Fatalf("Failed to adjust stock: %v", err)
	}

	variants, err := variantRepo.ListByProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("Failed to list variants: %v", err)
	}
	if _, err := variantRepo.MarkUnavailable(ctx, []int64{variants[0].ID}); err != nil {
		t.Fatalf("Failed to mark variant unavailable: %v", err)
	}

	stock, err := productRepo.GetStock(ctx, product.ID)
	if err != nil {
		t.Fatalf("Failed to get stock: %v", err)
	}

	if stock.CurrentStock != 7 {
		t.Errorf("Expected current stock 7, got %d", stock.CurrentStock)
	}
	if stock.AvailableQuantity != 3 {
		t.Errorf("Expected 3 available variants, got %d", stock.AvailableQuantity)
	}

	if _, err := productRepo.GetStock(ctx, -1); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_UpdateRejectsMissingProduct(t *testing.T) {
	repo := NewProductRepository(testDB)

	err := repo.Update(context.Background(), &domain.Product{ID: -1, Name: "ghost", UnitPrice: decimal.Zero})
	if !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Expected ErrProductNotFound, got %v", err)
	}
}
