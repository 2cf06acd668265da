package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"vms-inventory/internal/domain"
	"vms-inventory/internal/middleware"
	"vms-inventory/internal/service"
)

// fakeOrders records the last call and returns the configured result
type fakeOrders struct {
	received  *service.ReceiveOrderInput
	decision  domain.OrderStatus
	listed    domain.OrderStatus
	calledID  int64
	order     *domain.PurchaseOrder
	result    *service.TransitionResult
	summaries []domain.OrderSummary
	history   []domain.StatusChange
	lines     []domain.OrderLineSummary
	err       error
}

func (f *fakeOrders) Receive(ctx context.Context, input service.ReceiveOrderInput) (*domain.PurchaseOrder, error) {
	f.received = &input
	return f.order, f.err
}

func (f *fakeOrders) Confirm(ctx context.Context, orderID int64, decision domain.OrderStatus) (*service.TransitionResult, error) {
	f.calledID, f.decision = orderID, decision
	return f.result, f.err
}

func (f *fakeOrders) MarkToShip(ctx context.Context, orderID int64) (*service.TransitionResult, error) {
	f.calledID = orderID
	return f.result, f.err
}

func (f *fakeOrders) Ship(ctx context.Context, orderID int64) (*service.TransitionResult, error) {
	f.calledID = orderID
	return f.result, f.err
}

func (f *fakeOrders) Get(ctx context.Context, orderID int64) (*domain.PurchaseOrder, error) {
	f.calledID = orderID
	return f.order, f.err
}

func (f *fakeOrders) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.OrderSummary, error) {
	f.listed = status
	return f.summaries, f.err
}

func (f *fakeOrders) History(ctx context.Context, orderID int64) ([]domain.StatusChange, error) {
	f.calledID = orderID
	return f.history, f.err
}

func (f *fakeOrders) PendingLines(ctx context.Context) ([]domain.OrderLineSummary, error) {
	return f.lines, f.err
}

type fakeCatalog struct {
	input    service.ProductInput
	quantity int
	calledID int64
	stock    *domain.ProductStock
	product  *domain.Product
	variants []*domain.ProductVariant
	err      error
}

func (f *fakeCatalog) CreateProduct(ctx context.Context, input service.ProductInput, quantity int) (*domain.ProductStock, error) {
	f.input, f.quantity = input, quantity
	return f.stock, f.err
}

func (f *fakeCatalog) AddQuantity(ctx context.Context, productID int64, quantity int) (*domain.ProductStock, error) {
	f.calledID, f.quantity = productID, quantity
	return f.stock, f.err
}

func (f *fakeCatalog) UpdateProduct(ctx context.Context, productID int64, input service.ProductInput) (*domain.Product, error) {
	f.calledID, f.input = productID, input
	return f.product, f.err
}

func (f *fakeCatalog) SoftDeleteProduct(ctx context.Context, productID int64) error {
	f.calledID = productID
	return f.err
}

func (f *fakeCatalog) DeleteVariant(ctx context.Context, variantID int64) error {
	f.calledID = variantID
	return f.err
}

func (f *fakeCatalog) GetProduct(ctx context.Context, productID int64) (*domain.ProductStock, error) {
	f.calledID = productID
	return f.stock, f.err
}

func (f *fakeCatalog) ListVariants(ctx context.Context, productID int64) ([]*domain.ProductVariant, error) {
	return f.variants, f.err
}

// passThrough stands in for AuthMiddleware
func passThrough(next http.Handler) http.Handler { return next }

func newTestRouter(orders service.OrderService, catalog service.CatalogService) http.Handler {
	r := chi.NewRouter()
	NewOrderHandler(orders, zap.NewNop()).RegisterRoutes(r, passThrough)
	NewProductHandler(catalog, zap.NewNop()).RegisterRoutes(r, passThrough)
	return r
}

func doRequest(h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var response middleware.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("response is not an error envelope: %v (%s)", err, w.Body.String())
	}
	return response.Error.Code
}
