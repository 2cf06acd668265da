package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vms-inventory/internal/domain"
	"vms-inventory/internal/middleware"
	"vms-inventory/internal/service"
)

// ProductRequest holds the attributes of a product line
type ProductRequest struct {
	Name        string          `json:"productName" validate:"required,max=255"`
	Description string          `json:"productDescription"`
	Size        string          `json:"size" validate:"max=32"`
	Color       string          `json:"color" validate:"max=50"`
	Category    string          `json:"category" validate:"required,max=64"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// CreateProductRequest creates a product line with its initial units
type CreateProductRequest struct {
	ProductRequest
	Quantity int `json:"quantity" validate:"gte=0,lte=100000"`
}

// AddQuantityRequest restocks an existing product
type AddQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0,lte=100000"`
}

// ProductDetails is a product with its variants
type ProductDetails struct {
	*domain.ProductStock
	Variants []*domain.ProductVariant `json:"variants"`
}

func (p ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:        p.Name,
		Description: p.Description,
		Size:        p.Size,
		Color:       p.Color,
		Category:    p.Category,
		UnitPrice:   p.UnitPrice,
	}
}

// ProductHandler exposes the catalog over HTTP
type ProductHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes registers the catalog routes. Writes require writeMiddleware.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler, writeMiddleware ...func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/{productID}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(writeMiddleware...)
			r.Post("/", h.CreateProduct)
			r.Put("/{productID}", h.UpdateProduct)
			r.Post("/{productID}/quantity", h.AddQuantity)
			r.Delete("/{productID}", h.DeleteProduct)
			r.Delete("/variants/{variantID}", h.DeleteVariant)
		})
	})
}

func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	stock, err := h.catalog.CreateProduct(r.Context(), req.input(), req.Quantity)
	if err != nil {
		respondServiceError(w, h.logger, "create product", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, stock)
}

// GetProduct returns a product, its available count and its variants
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	stock, err := h.catalog.GetProduct(r.Context(), productID)
	if err != nil {
		respondServiceError(w, h.logger, "get product", err)
		return
	}

	variants, err := h.catalog.ListVariants(r.Context(), productID)
	if err != nil {
		respondServiceError(w, h.logger, "list variants", err)
		return
	}
	if variants == nil {
		variants = []*domain.ProductVariant{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductDetails{ProductStock: stock, Variants: variants})
}

func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), productID, req.input())
	if err != nil {
		respondServiceError(w, h.logger, "update product", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// AddQuantity creates new units of an existing product
func (h *ProductHandler) AddQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	var req AddQuantityRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	stock, err := h.catalog.AddQuantity(r.Context(), productID, req.Quantity)
	if err != nil {
		respondServiceError(w, h.logger, "add quantity", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, stock)
}

func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	if err := h.catalog.SoftDeleteProduct(r.Context(), productID); err != nil {
		respondServiceError(w, h.logger, "delete product", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteVariant permanently withdraws one unit
func (h *ProductHandler) DeleteVariant(w http.ResponseWriter, r *http.Request) {
	variantID, ok := pathID(w, r, "variantID")
	if !ok {
		return
	}

	if err := h.catalog.DeleteVariant(r.Context(), variantID); err != nil {
		respondServiceError(w, h.logger, "delete variant", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
