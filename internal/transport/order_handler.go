package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vms-inventory/internal/domain"
	"vms-inventory/internal/middleware"
	"vms-inventory/internal/service"
)

// ReceiveOrderRequest is a purchase order submitted by a customer
type ReceiveOrderRequest struct {
	CustomerID       int64              `json:"customerID" validate:"required,gt=0"`
	CustomerName     string             `json:"customerName" validate:"max=255"`
	WarehouseName    string             `json:"warehouseName" validate:"max=255"`
	WarehouseAddress string             `json:"warehouseAddress"`
	OrderDate        Date               `json:"orderDate"`
	Products         []OrderLineRequest `json:"products" validate:"required,min=1,dive"`
}

// OrderLineRequest is one requested product line
type OrderLineRequest struct {
	ProductID    int64 `json:"productID" validate:"required,gt=0"`
	Quantity     int   `json:"quantity" validate:"required,gt=0,lte=1000000"`
	ExpectedDate Date  `json:"expectedDate"`
}

// ConfirmOrderRequest carries the confirmation decision
type ConfirmOrderRequest struct {
	OrderStatus domain.OrderStatus `json:"orderStatus"`
}

// OrderHandler exposes the order lifecycle over HTTP
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// RegisterRoutes registers the order routes. Every route requires a caller;
// transitions additionally pass through transitionMiddleware.
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler, transitionMiddleware ...func(http.Handler) http.Handler) {
	r.Route("/vms/orders", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/", h.ListByStatus)
		r.Get("/confirmed", h.listStatus(domain.OrderStatusConfirmed))
		r.Get("/toship", h.listStatus(domain.OrderStatusToShip))
		r.Get("/shipped", h.listStatus(domain.OrderStatusShipped))
		r.Get("/pending/lines", h.PendingLines)
		r.Get("/{orderID}", h.GetOrder)
		r.Get("/{orderID}/history", h.History)

		r.Group(func(r chi.Router) {
			r.Use(transitionMiddleware...)
			r.Post("/", h.Receive)
			r.Put("/{orderID}/confirm", h.Confirm)
			r.Put("/{orderID}/toship", h.MarkToShip)
			r.Put("/{orderID}/ship", h.Ship)
		})
	})
}

// Receive handles a new purchase order
func (h *OrderHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req ReceiveOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Order validation failed", zap.Error(err))
		if errs := middleware.FormatValidationErrors(err); len(errs) > 0 {
			middleware.RespondWithErrorCode(w, http.StatusBadRequest, CodeInvalidOrder, "validation failed",
				map[string]interface{}{"validation_errors": errs})
			return
		}
		middleware.RespondWithDecodeError(w, err)
		return
	}

	input := service.ReceiveOrderInput{
		CustomerID:       req.CustomerID,
		CustomerName:     req.CustomerName,
		WarehouseName:    req.WarehouseName,
		WarehouseAddress: req.WarehouseAddress,
		OrderDate:        req.OrderDate.Time,
		Lines:            make([]service.OrderLineInput, len(req.Products)),
	}
	for i, line := range req.Products {
		input.Lines[i] = service.OrderLineInput{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			ExpectedDate: line.ExpectedDate.Time,
		}
	}

	order, err := h.orders.Receive(r.Context(), input)
	if err != nil {
		respondServiceError(w, h.logger, "receive order", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// Confirm handles the confirm or reject decision on a pending order
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	var req ConfirmOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	result, err := h.orders.Confirm(r.Context(), orderID, req.OrderStatus)
	if err != nil {
		respondServiceError(w, h.logger, "confirm order", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) MarkToShip(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	result, err := h.orders.MarkToShip(r.Context(), orderID)
	if err != nil {
		respondServiceError(w, h.logger, "mark order to ship", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Ship allocates and hands over the units of a To Ship order
func (h *OrderHandler) Ship(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	result, err := h.orders.Ship(r.Context(), orderID)
	if err != nil {
		respondServiceError(w, h.logger, "ship order", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		respondServiceError(w, h.logger, "get order", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// ListByStatus handles GET /vms/orders?status=<status>
func (h *OrderHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, domain.OrderStatus(r.URL.Query().Get("status")))
}

func (h *OrderHandler) listStatus(status domain.OrderStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.respondList(w, r, status)
	}
}

func (h *OrderHandler) respondList(w http.ResponseWriter, r *http.Request, status domain.OrderStatus) {
	orders, err := h.orders.ListByStatus(r.Context(), status)
	if err != nil {
		respondServiceError(w, h.logger, "list orders", err)
		return
	}
	if orders == nil {
		orders = []domain.OrderSummary{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}

	changes, err := h.orders.History(r.Context(), orderID)
	if err != nil {
		respondServiceError(w, h.logger, "order history", err)
		return
	}
	if changes == nil {
		changes = []domain.StatusChange{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, changes)
}

// PendingLines lists every line of every pending order for review
func (h *OrderHandler) PendingLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.orders.PendingLines(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "pending order lines", err)
		return
	}
	if lines == nil {
		lines = []domain.OrderLineSummary{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, lines)
}
