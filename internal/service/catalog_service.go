package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vms-inventory/internal/database"
	"vms-inventory/internal/domain"
	"vms-inventory/internal/repository"
)

// MaxUnitsPerRequest caps the variants one create or restock may add
const MaxUnitsPerRequest = 100_000

// ProductInput holds the descriptive attributes of a product line
type ProductInput struct {
	Name        string
	Description string
	Size        string
	Color       string
	Category    string
	UnitPrice   decimal.Decimal
}

// CatalogService manages products and their physical variants
type CatalogService interface {
	CreateProduct(ctx context.Context, input ProductInput, quantity int) (*domain.ProductStock, error)
	AddQuantity(ctx context.Context, productID int64, quantity int) (*domain.ProductStock, error)
	UpdateProduct(ctx context.Context, productID int64, input ProductInput) (*domain.Product, error)
	SoftDeleteProduct(ctx context.Context, productID int64) error
	DeleteVariant(ctx context.Context, variantID int64) error
	GetProduct(ctx context.Context, productID int64) (*domain.ProductStock, error)
	ListVariants(ctx context.Context, productID int64) ([]*domain.ProductVariant, error)
}

type catalogService struct {
	products  repository.ProductRepository
	variants  repository.VariantRepository
	txManager database.TxManager
	codes     CodeGenerator
	logger    *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	products repository.ProductRepository,
	variants repository.VariantRepository,
	txManager database.TxManager,
	codes CodeGenerator,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		products:  products,
		variants:  variants,
		txManager: txManager,
		codes:     codes,
		logger:    logger,
	}
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return invalidProduct("name is required")
	}
	if strings.TrimSpace(in.Category) == "" {
		return invalidProduct("category is required")
	}
	if in.UnitPrice.IsNegative() {
		return invalidProduct("unit price must not be negative")
	}
	return nil
}

// CreateProduct stores a new active product line with quantity fresh variants
func (s *catalogService) CreateProduct(ctx context.Context, input ProductInput, quantity int) (*domain.ProductStock, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, invalidProduct("quantity must not be negative")
	}
	if quantity > MaxUnitsPerRequest {
		return nil, invalidProduct("quantity must not exceed %d", MaxUnitsPerRequest)
	}

	var stock *domain.ProductStock
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := s.products.FindActiveByLine(ctx, input.Name, input.Description, input.Size, input.Category)
		if err == nil {
			return ErrProductExists
		}
		if !errors.Is(err, repository.ErrProductNotFound) {
			return storeFailure("check product line", err)
		}

		product := &domain.Product{
			Name:         input.Name,
			Description:  input.Description,
			Size:         input.Size,
			Color:        input.Color,
			Category:     input.Category,
			UnitPrice:    input.UnitPrice,
			CurrentStock: quantity,
		}
		if err := s.products.Create(ctx, product); err != nil {
			if errors.Is(err, repository.ErrProductAlreadyExists) {
				return ErrProductExists
			}
			return storeFailure("create product", err)
		}

		if err := s.createVariants(ctx, product.ID, quantity); err != nil {
			return err
		}

		stock = &domain.ProductStock{Product: *product, AvailableQuantity: quantity}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.Int64("product_id", stock.ID),
		zap.String("name", stock.Name),
		zap.Int("quantity", quantity),
	)
	return stock, nil
}

// AddQuantity creates quantity new variants of an active product
func (s *catalogService) AddQuantity(ctx context.Context, productID int64, quantity int) (*domain.ProductStock, error) {
	if quantity <= 0 || quantity > MaxUnitsPerRequest {
		return nil, invalidProduct("quantity must be between 1 and %d", MaxUnitsPerRequest)
	}

	var stock *domain.ProductStock
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.products.AdjustStock(ctx, productID, quantity); err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return ErrProductNotFound
			}
			return storeFailure("adjust stock", err)
		}

		if err := s.createVariants(ctx, productID, quantity); err != nil {
			return err
		}

		var err error
		stock, err = s.products.GetStock(ctx, productID)
		if err != nil {
			return storeFailure("read stock", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Product quantity added",
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int("available", stock.AvailableQuantity),
	)
	return stock, nil
}

func (s *catalogService) createVariants(ctx context.Context, productID int64, quantity int) error {
	if quantity == 0 {
		return nil
	}

	variants := make([]*domain.ProductVariant, quantity)
	for i := range variants {
		barcode, err := s.codes.Barcode()
		if err != nil {
			return err
		}
		productCode, err := s.codes.ProductCode()
		if err != nil {
			return err
		}
		variants[i] = &domain.ProductVariant{
			Barcode:     barcode,
			ProductCode: productCode,
			ProductID:   productID,
		}
	}

	if err := s.variants.CreateBatch(ctx, variants); err != nil {
		return storeFailure("create variants", err)
	}
	return nil
}

// UpdateProduct rewrites the attributes of an active product
func (s *catalogService) UpdateProduct(ctx context.Context, productID int64, input ProductInput) (*domain.Product, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	var product *domain.Product
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		product, err = s.products.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return ErrProductNotFound
			}
			return storeFailure("find product", err)
		}
		if !product.IsActive {
			return ErrProductNotFound
		}

		other, err := s.products.FindActiveByLine(ctx, input.Name, input.Description, input.Size, input.Category)
		switch {
		case err == nil && other.ID != productID:
			return ErrProductExists
		case err != nil && !errors.Is(err, repository.ErrProductNotFound):
			return storeFailure("check product line", err)
		}

		product.Name = input.Name
		product.Description = input.Description
		product.Size = input.Size
		product.Color = input.Color
		product.Category = input.Category
		product.UnitPrice = input.UnitPrice

		if err := s.products.Update(ctx, product); err != nil {
			switch {
			case errors.Is(err, repository.ErrProductAlreadyExists):
				return ErrProductExists
			case errors.Is(err, repository.ErrProductNotFound):
				return ErrProductNotFound
			}
			return storeFailure("update product", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return product, nil
}

// SoftDeleteProduct deactivates a product. Its variants stay as they are.
func (s *catalogService) SoftDeleteProduct(ctx context.Context, productID int64) error {
	if err := s.products.SoftDelete(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		return storeFailure("soft delete product", err)
	}

	s.logger.Info("Product deactivated", zap.Int64("product_id", productID))
	return nil
}

// DeleteVariant permanently withdraws one unit from allocation
func (s *catalogService) DeleteVariant(ctx context.Context, variantID int64) error {
	return s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.variants.FindByID(ctx, variantID); err != nil {
			if errors.Is(err, repository.ErrVariantNotFound) {
				return ErrVariantNotFound
			}
			return storeFailure("find variant", err)
		}

		claimed, err := s.variants.MarkUnavailable(ctx, []int64{variantID})
		if err != nil {
			return storeFailure("delete variant", err)
		}
		if len(claimed) == 0 {
			return fmt.Errorf("%w: variant %d is no longer available", ErrVariantNotFound, variantID)
		}

		s.logger.Info("Variant deleted", zap.Int64("variant_id", variantID))
		return nil
	})
}

// GetProduct returns an active product with its available unit count
func (s *catalogService) GetProduct(ctx context.Context, productID int64) (*domain.ProductStock, error) {
	stock, err := s.products.GetStock(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, storeFailure("read stock", err)
	}
	return stock, nil
}

func (s *catalogService) ListVariants(ctx context.Context, productID int64) ([]*domain.ProductVariant, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	variants, err := s.variants.ListByProduct(ctx, productID)
	if err != nil {
		return nil, storeFailure("list variants", err)
	}
	return variants, nil
}
