package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vms-inventory/internal/domain"
	"vms-inventory/internal/events"
	"vms-inventory/internal/notifier"
	"vms-inventory/internal/repository"
)

// memState is the full contents of the in-memory store
type memState struct {
	products  map[int64]domain.Product
	variants  map[int64]domain.ProductVariant
	customers map[int64]domain.Customer
	orders    map[int64]domain.PurchaseOrder
	details   map[int64][]domain.PurchaseOrderDetail
	history   []domain.StatusChange
	nextID    int64
}

func (s memState) clone() memState {
	c := memState{
		products:  make(map[int64]domain.Product, len(s.products)),
		variants:  make(map[int64]domain.ProductVariant, len(s.variants)),
		customers: make(map[int64]domain.Customer, len(s.customers)),
		orders:    make(map[int64]domain.PurchaseOrder, len(s.orders)),
		details:   make(map[int64][]domain.PurchaseOrderDetail, len(s.details)),
		history:   append([]domain.StatusChange(nil), s.history...),
		nextID:    s.nextID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.variants {
		c.variants[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.details {
		c.details[k] = append([]domain.PurchaseOrderDetail(nil), v...)
	}
	return c
}

// memStore is an in-memory inventory store. Transactions are serialized and
// roll back to a snapshot on error, which stands in for row locking. Like
// database/sql, a transaction whose context is done by commit time rolls back.
type memStore struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state memState

	failUpdateStatus error
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		products:  map[int64]domain.Product{},
		variants:  map[int64]domain.ProductVariant{},
		customers: map[int64]domain.Customer{},
		orders:    map[int64]domain.PurchaseOrder{},
		details:   map[int64][]domain.PurchaseOrderDetail{},
	}}
}

func (m *memStore) id() int64 {
	m.state.nextID++
	return m.state.nextID
}

type memTxKey struct{}

func (m *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	err := fn(context.WithValue(ctx, memTxKey{}, true))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) repos() OrderRepositories {
	return OrderRepositories{
		Orders:    memOrders{m},
		Customers: memCustomers{m},
		Products:  memProducts{m},
		History:   memHistory{m},
	}
}

// seedProduct adds an active product with n available variants
func (m *memStore) seedProduct(name string, n int, price string) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := domain.Product{
		ID:           m.id(),
		Name:         name,
		Size:         "M",
		Color:        "Black",
		Category:     "Shoes",
		UnitPrice:    decimal.RequireFromString(price),
		CurrentStock: n,
		IsActive:     true,
	}
	m.state.products[p.ID] = p
	for i := 0; i < n; i++ {
		v := domain.ProductVariant{ID: m.id(), Barcode: uuid.NewString(), ProductCode: "PC", ProductID: p.ID, IsAvailable: true}
		m.state.variants[v.ID] = v
	}
	return p
}

func (m *memStore) seedOrder(customerID int64, status domain.OrderStatus, lines map[int64]int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.customers[customerID]; !ok {
		m.state.customers[customerID] = domain.Customer{ID: customerID, Name: "Seeded"}
	}
	o := domain.PurchaseOrder{ID: m.id(), CustomerID: customerID, OrderDate: time.Now(), Status: status, StatusDate: time.Now()}
	m.state.orders[o.ID] = o

	productIDs := make([]int64, 0, len(lines))
	for id := range lines {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })
	for _, pid := range productIDs {
		m.state.details[o.ID] = append(m.state.details[o.ID], domain.PurchaseOrderDetail{
			ID: m.id(), OrderID: o.ID, ProductID: pid, OrderQuantity: lines[pid], ExpectedDate: time.Now(),
		})
	}
	return o.ID
}

func (m *memStore) status(orderID int64) domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.orders[orderID].Status
}

func (m *memStore) available(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.state.variants {
		if v.ProductID == productID && v.IsAvailable {
			n++
		}
	}
	return n
}

func (m *memStore) historyOf(orderID int64) []domain.StatusChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StatusChange
	for _, c := range m.state.history {
		if c.OrderID == orderID {
			out = append(out, c)
		}
	}
	return out
}

type memProducts struct{ m *memStore }

func (r memProducts) Create(ctx context.Context, product *domain.Product) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.state.products {
		if p.IsActive && p.Name == product.Name && p.Description == product.Description && p.Size == product.Size && p.Category == product.Category {
			return repository.ErrProductAlreadyExists
		}
	}
	product.ID = r.m.id()
	product.IsActive = true
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	r.m.state.products[product.ID] = *product
	return nil
}

func (r memProducts) Update(ctx context.Context, product *domain.Product) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.state.products[product.ID]
	if !ok || !p.IsActive {
		return repository.ErrProductNotFound
	}
	r.m.state.products[product.ID] = *product
	return nil
}

func (r memProducts) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.state.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (r memProducts) FindActiveByLine(ctx context.Context, name, description, size, category string) (*domain.Product, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.state.products {
		if p.IsActive && p.Name == name && p.Description == description && p.Size == size && p.Category == category {
			found := p
			return &found, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (r memProducts) AdjustStock(ctx context.Context, id int64, delta int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.state.products[id]
	if !ok || !p.IsActive {
		return repository.ErrProductNotFound
	}
	p.CurrentStock += delta
	r.m.state.products[id] = p
	return nil
}

func (r memProducts) SoftDelete(ctx context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.state.products[id]
	if !ok || !p.IsActive {
		return repository.ErrProductNotFound
	}
	p.IsActive = false
	r.m.state.products[id] = p
	return nil
}

func (r memProducts) GetStock(ctx context.Context, id int64) (*domain.ProductStock, error) {
	p, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, repository.ErrProductNotFound
	}
	return &domain.ProductStock{Product: *p, AvailableQuantity: r.m.available(id)}, nil
}

type memVariants struct{ m *memStore }

func (r memVariants) CreateBatch(ctx context.Context, variants []*domain.ProductVariant) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	seen := map[string]bool{}
	for _, v := range r.m.state.variants {
		seen[v.Barcode] = true
	}
	for _, v := range variants {
		if seen[v.Barcode] {
			return repository.ErrDuplicateBarcode
		}
		seen[v.Barcode] = true
	}
	for _, v := range variants {
		v.ID = r.m.id()
		v.IsAvailable = true
		r.m.state.variants[v.ID] = *v
	}
	return nil
}

func (r memVariants) FindByID(ctx context.Context, id int64) (*domain.ProductVariant, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	v, ok := r.m.state.variants[id]
	if !ok {
		return nil, repository.ErrVariantNotFound
	}
	return &v, nil
}

func (r memVariants) SelectAvailableForUpdate(ctx context.Context, productID int64, limit int) ([]domain.AllocatedVariant, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var ids []int64
	for id, v := range r.m.state.variants {
		if v.ProductID == productID && v.IsAvailable {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}

	p := r.m.state.products[productID]
	out := make([]domain.AllocatedVariant, 0, len(ids))
	for _, id := range ids {
		v := r.m.state.variants[id]
		out = append(out, domain.AllocatedVariant{
			VariantID:   v.ID,
			ProductID:   v.ProductID,
			Barcode:     v.Barcode,
			ProductCode: v.ProductCode,
			ProductName: p.Name,
			Category:    p.Category,
			Color:       p.Color,
			Size:        p.Size,
		})
	}
	return out, nil
}

func (r memVariants) MarkUnavailable(ctx context.Context, ids []int64) ([]int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var claimed []int64
	for _, id := range ids {
		v, ok := r.m.state.variants[id]
		if ok && v.IsAvailable {
			v.IsAvailable = false
			r.m.state.variants[id] = v
			claimed = append(claimed, id)
		}
	}
	return claimed, nil
}

func (r memVariants) CountAvailable(ctx context.Context, productID int64) (int, error) {
	return r.m.available(productID), nil
}

func (r memVariants) ListByProduct(ctx context.Context, productID int64) ([]*domain.ProductVariant, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.ProductVariant
	for _, v := range r.m.state.variants {
		if v.ProductID == productID {
			found := v
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memCustomers struct{ m *memStore }

func (r memCustomers) EnsureExists(ctx context.Context, customer *domain.Customer) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.state.customers[customer.ID]; ok {
		return false, nil
	}
	r.m.state.customers[customer.ID] = *customer
	return true, nil
}

func (r memCustomers) FindByID(ctx context.Context, id int64) (*domain.Customer, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.state.customers[id]
	if !ok {
		return nil, repository.ErrCustomerNotFound
	}
	return &c, nil
}

type memOrders struct{ m *memStore }

func (r memOrders) Create(ctx context.Context, order *domain.PurchaseOrder) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	order.ID = r.m.id()
	header := *order
	header.Details = nil
	r.m.state.orders[order.ID] = header
	for i := range order.Details {
		order.Details[i].ID = r.m.id()
		order.Details[i].OrderID = order.ID
	}
	r.m.state.details[order.ID] = append([]domain.PurchaseOrderDetail(nil), order.Details...)
	return nil
}

func (r memOrders) FindByID(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	o, ok := r.m.state.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (r memOrders) FindByIDForUpdate(ctx context.Context, id int64) (*domain.PurchaseOrder, error) {
	return r.FindByID(ctx, id)
}

func (r memOrders) Details(ctx context.Context, orderID int64) ([]domain.PurchaseOrderDetail, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return append([]domain.PurchaseOrderDetail(nil), r.m.state.details[orderID]...), nil
}

func (r memOrders) UpdateStatus(ctx context.Context, id int64, status domain.OrderStatus, statusDate time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failUpdateStatus != nil {
		return r.m.failUpdateStatus
	}
	o, ok := r.m.state.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	o.StatusDate = statusDate
	r.m.state.orders[id] = o
	return nil
}

func (r memOrders) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.OrderSummary, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []domain.OrderSummary{}
	for _, o := range r.m.state.orders {
		if o.Status == status {
			out = append(out, domain.OrderSummary{ID: o.ID, OrderDate: o.OrderDate, StatusDate: o.StatusDate, CustomerID: o.CustomerID})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memOrders) PendingLines(ctx context.Context) ([]domain.OrderLineSummary, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []domain.OrderLineSummary{}
	for _, o := range r.m.state.orders {
		if o.Status != domain.OrderStatusPending {
			continue
		}
		c := r.m.state.customers[o.CustomerID]
		for _, d := range r.m.state.details[o.ID] {
			p := r.m.state.products[d.ProductID]
			out = append(out, domain.OrderLineSummary{
				OrderID:          o.ID,
				ProductID:        p.ID,
				ProductName:      p.Name,
				Size:             p.Size,
				Category:         p.Category,
				Quantity:         d.OrderQuantity,
				TotalPrice:       p.UnitPrice.Mul(decimal.NewFromInt(int64(d.OrderQuantity))),
				CustomerName:     c.Name,
				WarehouseAddress: c.WarehouseAddress,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

type memHistory struct{ m *memStore }

func (r memHistory) Append(ctx context.Context, change *domain.StatusChange) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	change.ID = r.m.id()
	r.m.state.history = append(r.m.state.history, *change)
	return nil
}

func (r memHistory) ListByOrder(ctx context.Context, orderID int64) ([]domain.StatusChange, error) {
	return r.m.historyOf(orderID), nil
}

type notifyCall struct {
	endpoint string
	eventID  uuid.UUID
	payload  interface{}
}

// fakeNotifier fails the first failures calls, then acknowledges
type fakeNotifier struct {
	mu       sync.Mutex
	calls    []notifyCall
	failures int
}

func (f *fakeNotifier) Notify(ctx context.Context, endpoint string, eventID uuid.UUID, payload interface{}) (*notifier.RemoteAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{endpoint: endpoint, eventID: eventID, payload: payload})
	if f.failures > 0 {
		f.failures--
		return nil, errors.Join(notifier.ErrRemoteUnavailable, errors.New("connection refused"))
	}
	return &notifier.RemoteAck{StatusCode: 200, Status: "success"}, nil
}

// hangUpNotifier acknowledges and then cancels the caller's context, the way
// a client disconnecting mid-request does
type hangUpNotifier struct {
	*fakeNotifier
	hangUp context.CancelFunc
}

func (n *hangUpNotifier) Notify(ctx context.Context, endpoint string, eventID uuid.UUID, payload interface{}) (*notifier.RemoteAck, error) {
	ack, err := n.fakeNotifier.Notify(ctx, endpoint, eventID, payload)
	n.hangUp()
	return ack, err
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderStatusChanged
	err    error
}

func (p *recordingPublisher) PublishStatusChanged(ctx context.Context, event events.OrderStatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }
