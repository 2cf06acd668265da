package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"vms-inventory/internal/config"
	"vms-inventory/internal/database"
	"vms-inventory/internal/domain"
	"vms-inventory/internal/events"
	"vms-inventory/internal/notifier"
	"vms-inventory/internal/repository"
)

// DefaultExpectedLeadTime is added to the order date when a line has no expected date
const DefaultExpectedLeadTime = 7 * 24 * time.Hour

// MaxLineQuantity caps the units a single order line may request
const MaxLineQuantity = 1_000_000

const (
	publishTimeout = 5 * time.Second
	// workSlack covers the store round trips around the remote call
	workSlack = 10 * time.Second
)

// Endpoints are the counterpart system paths notified by each transition
type Endpoints struct {
	Confirm string
	ToShip  string
	Ship    string
}

// EndpointsFromConfig reads the transition paths from cfg
func EndpointsFromConfig(cfg config.IMSConfig) Endpoints {
	return Endpoints{
		Confirm: cfg.ConfirmPath,
		ToShip:  cfg.ToShipPath,
		Ship:    cfg.ShipPath,
	}
}

// OrderRepositories groups the stores the lifecycle controller touches
type OrderRepositories struct {
	Orders    repository.OrderRepository
	Customers repository.CustomerRepository
	Products  repository.ProductRepository
	History   repository.StatusHistoryRepository
}

// ReceiveOrderInput is a new purchase order as submitted by a customer
type ReceiveOrderInput struct {
	CustomerID       int64
	CustomerName     string
	WarehouseName    string
	WarehouseAddress string
	OrderDate        time.Time
	Lines            []OrderLineInput
}

// OrderLineInput is one requested product line. A zero ExpectedDate defaults
// to the order date plus DefaultExpectedLeadTime.
type OrderLineInput struct {
	ProductID    int64
	Quantity     int
	ExpectedDate time.Time
}

// TransitionResult is returned by every committed transition
type TransitionResult struct {
	OrderID   int64                     `json:"orderID"`
	Status    domain.OrderStatus        `json:"status"`
	RemoteAck *notifier.RemoteAck       `json:"remoteAck,omitempty"`
	Variants  []domain.AllocatedVariant `json:"variants,omitempty"`
}

// OrderService is the order lifecycle controller
type OrderService interface {
	Receive(ctx context.Context, input ReceiveOrderInput) (*domain.PurchaseOrder, error)
	Confirm(ctx context.Context, orderID int64, decision domain.OrderStatus) (*TransitionResult, error)
	MarkToShip(ctx context.Context, orderID int64) (*TransitionResult, error)
	Ship(ctx context.Context, orderID int64) (*TransitionResult, error)
	Get(ctx context.Context, orderID int64) (*domain.PurchaseOrder, error)
	ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.OrderSummary, error)
	History(ctx context.Context, orderID int64) ([]domain.StatusChange, error)
	PendingLines(ctx context.Context) ([]domain.OrderLineSummary, error)
}

type orderService struct {
	repos     OrderRepositories
	txManager database.TxManager
	allocator VariantAllocator
	notifier  notifier.Notifier
	endpoints Endpoints
	publisher events.Publisher
	tracer    trace.Tracer
	logger    *zap.Logger
	budget    time.Duration
	now       func() time.Time
}

// NewOrderService creates a new instance of OrderService. remoteBudget is the
// longest a remote notification may take, retries included; write operations
// run detached from the caller for that long plus a fixed slack.
func NewOrderService(
	repos OrderRepositories,
	txManager database.TxManager,
	allocator VariantAllocator,
	n notifier.Notifier,
	endpoints Endpoints,
	publisher events.Publisher,
	tracer trace.Tracer,
	logger *zap.Logger,
	remoteBudget time.Duration,
) OrderService {
	return &orderService{
		repos:     repos,
		txManager: txManager,
		allocator: allocator,
		notifier:  n,
		endpoints: endpoints,
		publisher: publisher,
		tracer:    tracer,
		logger:    logger,
		budget:    remoteBudget,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type statusPayload struct {
	OrderID     int64              `json:"orderID"`
	OrderStatus domain.OrderStatus `json:"orderStatus"`
}

type shipmentPayload struct {
	OrderID     int64                     `json:"orderID"`
	OrderStatus domain.OrderStatus        `json:"orderStatus"`
	Variants    []domain.AllocatedVariant `json:"variants"`
}

// Receive validates and stores a new Pending order with all of its lines
func (s *orderService) Receive(ctx context.Context, input ReceiveOrderInput) (*domain.PurchaseOrder, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService.Receive",
		trace.WithAttributes(attribute.Int64("customer.id", input.CustomerID)))
	defer span.End()

	if input.CustomerID <= 0 {
		return nil, s.fail(span, invalidOrder("customer reference is required"))
	}
	if len(input.Lines) == 0 {
		return nil, s.fail(span, invalidOrder("at least one product line is required"))
	}
	for i, line := range input.Lines {
		if line.ProductID <= 0 {
			return nil, s.fail(span, invalidOrder("line %d: product is required", i+1))
		}
		if line.Quantity <= 0 {
			return nil, s.fail(span, invalidOrder("line %d: quantity must be positive", i+1))
		}
		if line.Quantity > MaxLineQuantity {
			return nil, s.fail(span, invalidOrder("line %d: quantity must not exceed %d", i+1, MaxLineQuantity))
		}
	}

	now := s.now()
	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = now
	}

	order := &domain.PurchaseOrder{
		CustomerID: input.CustomerID,
		OrderDate:  orderDate,
		Status:     domain.OrderStatusPending,
		StatusDate: now,
		Details:    make([]domain.PurchaseOrderDetail, len(input.Lines)),
	}
	for i, line := range input.Lines {
		expected := line.ExpectedDate
		if expected.IsZero() {
			expected = orderDate.Add(DefaultExpectedLeadTime)
		}
		order.Details[i] = domain.PurchaseOrderDetail{
			ProductID:     line.ProductID,
			OrderQuantity: line.Quantity,
			ExpectedDate:  expected,
		}
	}

	ctx, cancel := s.detach(ctx)
	defer cancel()

	eventID := uuid.New()
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		created, err := s.repos.Customers.EnsureExists(ctx, &domain.Customer{
			ID:               input.CustomerID,
			Name:             input.CustomerName,
			WarehouseName:    input.WarehouseName,
			WarehouseAddress: input.WarehouseAddress,
		})
		if err != nil {
			return storeFailure("ensure customer", err)
		}
		if created {
			s.logger.Info("Customer created", zap.Int64("customer_id", input.CustomerID))
		}

		for _, d := range order.Details {
			product, err := s.repos.Products.FindByID(ctx, d.ProductID)
			if err != nil {
				if errors.Is(err, repository.ErrProductNotFound) {
					return invalidOrder("product %d does not exist", d.ProductID)
				}
				return storeFailure("find product", err)
			}
			if !product.IsActive {
				return invalidOrder("product %d is no longer active", d.ProductID)
			}
		}

		if err := s.repos.Orders.Create(ctx, order); err != nil {
			return storeFailure("create order", err)
		}

		return s.appendHistory(ctx, order.ID, "", domain.OrderStatusPending, eventID, now)
	})
	if err != nil {
		s.logger.Warn("Order rejected", zap.Int64("customer_id", input.CustomerID), zap.Error(err))
		return nil, s.fail(span, err)
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID))
	span.SetStatus(codes.Ok, "")
	s.logger.Info("Order received",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", order.CustomerID),
		zap.Int("lines", len(order.Details)),
	)
	s.publish(ctx, eventID, order.ID, "", domain.OrderStatusPending, now)

	return order, nil
}

// Confirm moves a Pending order to Confirmed or Rejected. Confirming first
// checks that every line can be allocated; nothing is consumed.
func (s *orderService) Confirm(ctx context.Context, orderID int64, decision domain.OrderStatus) (*TransitionResult, error) {
	if decision != domain.OrderStatusConfirmed && decision != domain.OrderStatusRejected {
		return nil, invalidOrder("order status must be %q or %q", domain.OrderStatusConfirmed, domain.OrderStatusRejected)
	}

	return s.transition(ctx, "confirm", orderID, domain.OrderStatusPending, decision,
		func(ctx context.Context, order *domain.PurchaseOrder, eventID uuid.UUID) (*stepOutcome, error) {
			if decision == domain.OrderStatusConfirmed {
				lines, err := s.lineRequests(ctx, order.ID)
				if err != nil {
					return nil, err
				}
				if _, err := s.allocator.ReserveLines(ctx, lines); err != nil {
					return nil, err
				}
			}

			ack, err := s.notifier.Notify(ctx, s.endpoints.Confirm, eventID, statusPayload{
				OrderID:     order.ID,
				OrderStatus: decision,
			})
			if err != nil {
				return nil, err
			}

			return &stepOutcome{ack: ack}, nil
		})
}

// MarkToShip moves a Confirmed order to To Ship. The status change and the
// remote notification commit together or not at all.
func (s *orderService) MarkToShip(ctx context.Context, orderID int64) (*TransitionResult, error) {
	return s.transition(ctx, "toShip", orderID, domain.OrderStatusConfirmed, domain.OrderStatusToShip,
		func(ctx context.Context, order *domain.PurchaseOrder, eventID uuid.UUID) (*stepOutcome, error) {
			ack, err := s.notifier.Notify(ctx, s.endpoints.ToShip, eventID, statusPayload{
				OrderID:     order.ID,
				OrderStatus: domain.OrderStatusToShip,
			})
			if err != nil {
				return nil, err
			}

			return &stepOutcome{ack: ack}, nil
		})
}

// Ship allocates units for every line, sends them to the counterpart system
// and consumes them once it acknowledges.
func (s *orderService) Ship(ctx context.Context, orderID int64) (*TransitionResult, error) {
	return s.transition(ctx, "ship", orderID, domain.OrderStatusToShip, domain.OrderStatusShipped,
		func(ctx context.Context, order *domain.PurchaseOrder, eventID uuid.UUID) (*stepOutcome, error) {
			lines, err := s.lineRequests(ctx, order.ID)
			if err != nil {
				return nil, err
			}
			if len(lines) == 0 {
				return nil, invalidOrder("order %d has no product lines", order.ID)
			}

			variants, err := s.allocator.ReserveLines(ctx, lines)
			if err != nil {
				return nil, err
			}

			ack, err := s.notifier.Notify(ctx, s.endpoints.Ship, eventID, shipmentPayload{
				OrderID:     order.ID,
				OrderStatus: domain.OrderStatusShipped,
				Variants:    variants,
			})
			if err != nil {
				return nil, err
			}

			if err := s.allocator.Consume(ctx, variants); err != nil {
				return nil, err
			}

			return &stepOutcome{ack: ack, variants: variants}, nil
		})
}

type stepOutcome struct {
	ack      *notifier.RemoteAck
	variants []domain.AllocatedVariant
}

type transitionStep func(ctx context.Context, order *domain.PurchaseOrder, eventID uuid.UUID) (*stepOutcome, error)

// transition runs one lifecycle edge in a single transaction. The order row
// stays locked from the status check until commit, remote call included.
func (s *orderService) transition(ctx context.Context, name string, orderID int64, from, to domain.OrderStatus, step transitionStep) (*TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, "OrderService."+name,
		trace.WithAttributes(
			attribute.Int64("order.id", orderID),
			attribute.String("order.from_status", string(from)),
			attribute.String("order.to_status", string(to)),
		))
	defer span.End()

	ctx, cancel := s.detach(ctx)
	defer cancel()

	eventID := uuid.New()
	var (
		outcome   *stepOutcome
		changedAt time.Time
	)

	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		order, err := s.repos.Orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNotFound) {
				return ErrOrderNotFound
			}
			return storeFailure("lock order", err)
		}

		if order.Status != from {
			return fmt.Errorf("%w: cannot %s order %d in status %q", ErrIllegalTransition, name, orderID, order.Status)
		}

		outcome, err = step(ctx, order, eventID)
		if err != nil {
			return err
		}

		changedAt = s.now()
		if err := s.repos.Orders.UpdateStatus(ctx, orderID, to, changedAt); err != nil {
			return storeFailure("update order status", err)
		}

		return s.appendHistory(ctx, orderID, from, to, eventID, changedAt)
	})
	if err != nil {
		if outcome != nil {
			// the counterpart acknowledged but the local change did not commit
			s.logger.Error("Order transition failed after remote acknowledgement, counterpart may be ahead",
				zap.Int64("order_id", orderID),
				zap.String("transition", name),
				zap.String("event_id", eventID.String()),
				zap.Int("variants", len(outcome.variants)),
				zap.Error(err),
			)
		} else {
			s.logger.Warn("Order transition failed",
				zap.Int64("order_id", orderID),
				zap.String("transition", name),
				zap.Error(err),
			)
		}
		return nil, s.fail(span, err)
	}

	span.SetStatus(codes.Ok, "")
	s.logger.Info("Order transition committed",
		zap.Int64("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("variants", len(outcome.variants)),
		zap.String("event_id", eventID.String()),
	)
	s.publish(ctx, eventID, orderID, from, to, changedAt)

	return &TransitionResult{
		OrderID:   orderID,
		Status:    to,
		RemoteAck: outcome.ack,
		Variants:  outcome.variants,
	}, nil
}

// detach keeps ctx values but drops its cancellation, so a client hanging up
// cannot roll back a change the counterpart system has already accepted.
func (s *orderService) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.budget+workSlack)
}

func (s *orderService) lineRequests(ctx context.Context, orderID int64) ([]LineRequest, error) {
	details, err := s.repos.Orders.Details(ctx, orderID)
	if err != nil {
		return nil, storeFailure("load order lines", err)
	}

	lines := make([]LineRequest, len(details))
	for i, d := range details {
		lines[i] = LineRequest{ProductID: d.ProductID, Quantity: d.OrderQuantity}
	}
	return lines, nil
}

func (s *orderService) appendHistory(ctx context.Context, orderID int64, from, to domain.OrderStatus, eventID uuid.UUID, at time.Time) error {
	err := s.repos.History.Append(ctx, &domain.StatusChange{
		OrderID:   orderID,
		From:      from,
		To:        to,
		EventID:   eventID,
		ChangedAt: at,
	})
	if err != nil {
		return storeFailure("append status history", err)
	}
	return nil
}

// publish announces a committed change. Failures are logged and never undo the commit.
func (s *orderService) publish(ctx context.Context, eventID uuid.UUID, orderID int64, from, to domain.OrderStatus, at time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := s.publisher.PublishStatusChanged(ctx, events.OrderStatusChanged{
		EventID:    eventID,
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		OccurredAt: at,
	})
	if err != nil {
		s.logger.Error("Failed to publish order event",
			zap.Int64("order_id", orderID),
			zap.String("event_id", eventID.String()),
			zap.Error(err),
		)
	}
}

func (s *orderService) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Get retrieves an order with its lines
func (s *orderService) Get(ctx context.Context, orderID int64) (*domain.PurchaseOrder, error) {
	order, err := s.repos.Orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, storeFailure("find order", err)
	}

	details, err := s.repos.Orders.Details(ctx, orderID)
	if err != nil {
		return nil, storeFailure("load order lines", err)
	}
	order.Details = details

	return order, nil
}

// ListByStatus returns the orders currently in status ordered by ID
func (s *orderService) ListByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.OrderSummary, error) {
	if !status.Valid() {
		return nil, invalidOrder("unknown order status %q", status)
	}

	orders, err := s.repos.Orders.ListByStatus(ctx, status)
	if err != nil {
		return nil, storeFailure("list orders", err)
	}
	return orders, nil
}

// History returns the status log of an order, oldest first
func (s *orderService) History(ctx context.Context, orderID int64) ([]domain.StatusChange, error) {
	if _, err := s.repos.Orders.FindByID(ctx, orderID); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, storeFailure("find order", err)
	}

	changes, err := s.repos.History.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, storeFailure("list status history", err)
	}
	return changes, nil
}

func (s *orderService) PendingLines(ctx context.Context) ([]domain.OrderLineSummary, error) {
	lines, err := s.repos.Orders.PendingLines(ctx)
	if err != nil {
		return nil, storeFailure("list pending lines", err)
	}
	return lines, nil
}
