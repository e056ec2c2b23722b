package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/solera/storefront-api/internal/dto"
	"github.com/solera/storefront-api/internal/events"
	"github.com/solera/storefront-api/internal/model"
	"github.com/solera/storefront-api/internal/repository"
)

var (
	ErrEmptyOrder        = errors.New("no items in order")
	ErrOrderNotFound     = repository.ErrOrderNotFound
	ErrForbidden         = errors.New("access denied")
	ErrInvalidStatus     = errors.New("invalid order status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStockConflict     = errors.New("stock conflict, please retry")
)

// maxCreateAttempts bounds internal retries on serialization failures and
// deadlocks before the conflict surfaces to the caller.
const maxCreateAttempts = 3

// Requester identifies who is asking. Owner checks compare UserID; admins
// pass every ownership check.
type Requester struct {
	UserID int64
	Role   string
}

func (r Requester) Admin() bool { return r.Role == "admin" }

func (r Requester) canAccess(order *model.Order) bool {
	return r.Admin() || order.UserID == r.UserID
}

// EventPublisher is satisfied by events.Publisher. A nil publisher disables
// eventing; publish failures are logged, never returned.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, routingKey string, event model.OrderEvent) error
}

type OrderService struct {
	txRunner    repository.TxRunner
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	txnRepo     repository.TransactionRepository
	publisher   EventPublisher
	log         *slog.Logger
}

func NewOrderService(
	txRunner repository.TxRunner,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	txnRepo repository.TransactionRepository,
	publisher EventPublisher,
	log *slog.Logger,
) *OrderService {
	return &OrderService{
		txRunner:    txRunner,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		txnRepo:     txnRepo,
		publisher:   publisher,
		log:         log,
	}
}

// Create places an order: stock validation, the order row, the per-product
// stock decrements, and the sale ledger entry all commit in one transaction.
// If any step fails, nothing is applied.
func (s *OrderService) Create(ctx context.Context, userID int64, req dto.CreateOrderRequest) (*model.Order, error) {
	if len(req.OrderItems) == 0 {
		return nil, ErrEmptyOrder
	}
	if !req.ItemsPrice.Add(req.TaxPrice).Add(req.ShippingPrice).Equal(req.TotalPrice) {
		return nil, fmt.Errorf("%w: totalPrice must equal itemsPrice + taxPrice + shippingPrice", ErrValidation)
	}

	var order *model.Order
	var err error
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		order, err = s.createOnce(ctx, userID, req)
		if err == nil || !isTransient(err) {
			break
		}
		s.log.Warn("order creation hit a transient conflict, retrying",
			"user_id", userID, "attempt", attempt, "error", err)
	}
	if err != nil {
		if isTransient(err) {
			return nil, fmt.Errorf("%w: %v", ErrStockConflict, err)
		}
		return nil, err
	}

	s.publish(ctx, events.OrderCreated, order)
	return order, nil
}

func (s *OrderService) createOnce(ctx context.Context, userID int64, req dto.CreateOrderRequest) (*model.Order, error) {
	// Two requests reserving overlapping products lock rows in the same
	// ascending id order, so they queue instead of deadlocking.
	quantities := make(map[int64]int)
	names := make(map[int64]string)
	for _, item := range req.OrderItems {
		quantities[item.ProductID] += item.Quantity
		if names[item.ProductID] == "" {
			names[item.ProductID] = item.Name
		}
	}
	productIDs := make([]int64, 0, len(quantities))
	for id := range quantities {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	order := &model.Order{
		UserID: userID,
		ShippingAddress: model.ShippingAddress{
			Street:  req.ShippingAddress.Street,
			City:    req.ShippingAddress.City,
			State:   req.ShippingAddress.State,
			ZipCode: req.ShippingAddress.ZipCode,
			Country: req.ShippingAddress.Country,
		},
		PaymentMethod: req.PaymentMethod,
		ItemsPrice:    req.ItemsPrice,
		TaxPrice:      req.TaxPrice,
		ShippingPrice: req.ShippingPrice,
		TotalPrice:    req.TotalPrice,
		Status:        model.OrderStatusPending,
	}
	if order.ShippingAddress.Country == "" {
		order.ShippingAddress.Country = "Colombia"
	}

	err := s.txRunner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		// Lock and validate every product before writing anything, so a
		// multi-item order that fails on a later item reserves nothing.
		products := make(map[int64]*model.Product, len(productIDs))
		for _, id := range productIDs {
			product, err := s.productRepo.GetForUpdate(ctx, tx, id)
			if err != nil {
				return err
			}
			if product == nil || !product.IsActive {
				name := names[id]
				if name == "" {
					name = fmt.Sprintf("#%d", id)
				}
				return fmt.Errorf("%w: product %s", repository.ErrProductNotFound, name)
			}
			if product.Stock < quantities[id] {
				return fmt.Errorf("%w for %s: available %d",
					repository.ErrInsufficientStock, product.Name, product.Stock)
			}
			products[id] = product
		}

		order.Items = buildItemSnapshots(req.OrderItems, products)

		if err := s.orderRepo.Insert(ctx, tx, order); err != nil {
			return err
		}

		for _, id := range productIDs {
			if err := s.productRepo.ReserveStock(ctx, tx, id, quantities[id]); err != nil {
				return err
			}
		}

		sale := &model.Transaction{
			Type:            model.TransactionIncome,
			Category:        "sale",
			Amount:          order.TotalPrice,
			Description:     fmt.Sprintf("Sale - order #%d", order.ID),
			Reference:       fmt.Sprintf("ORDER-%d", order.ID),
			OrderID:         &order.ID,
			UserID:          userID,
			TransactionDate: time.Now(),
		}
		return s.txnRepo.Insert(ctx, tx, sale)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// buildItemSnapshots freezes what was sold. Name, price, and image fall back
// to the catalog row when the request leaves them blank; the snapshot is what
// cancellation restores from, regardless of later catalog edits.
func buildItemSnapshots(items []dto.OrderItemRequest, products map[int64]*model.Product) []model.OrderItem {
	snapshots := make([]model.OrderItem, 0, len(items))
	for _, item := range items {
		snap := model.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Size:      item.Size,
			Color:     item.Color,
			Image:     item.Image,
		}
		if p := products[item.ProductID]; p != nil {
			if snap.Name == "" {
				snap.Name = p.Name
			}
			if snap.Price.IsZero() {
				snap.Price = p.Price
			}
			if snap.Image == "" && len(p.Images) > 0 {
				snap.Image = p.Images[0]
			}
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots
}

func (s *OrderService) Get(ctx context.Context, orderID int64, requester Requester) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !requester.canAccess(order) {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListMine(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.orderRepo.ListByUserID(ctx, userID)
}

func (s *OrderService) ListAll(ctx context.Context, req dto.ListOrdersRequest) ([]model.Order, int, error) {
	if req.Status != "" && !model.OrderStatus(req.Status).Valid() {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}
	return s.orderRepo.List(ctx, repository.OrderFilter{
		Status: req.Status,
		IsPaid: req.IsPaid,
		Limit:  req.Limit,
		Offset: (req.Page - 1) * req.Limit,
	})
}

// UpdateStatus is the admin transition entry point. Moving to processing or
// shipped implies payment: nothing ships unpaid, so those transitions set
// isPaid as a side effect. Cancellation goes through Cancel so stock is
// restored exactly once.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, requester Requester, req dto.UpdateOrderStatusRequest) (*model.Order, error) {
	status := model.OrderStatus(req.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}
	if status == model.OrderStatusCancelled {
		return s.Cancel(ctx, orderID, requester)
	}

	var order *model.Order
	err := s.txRunner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		order, err = s.orderRepo.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}

		now := time.Now()
		switch status {
		case model.OrderStatusPending:
			if order.Status != model.OrderStatusPending {
				return fmt.Errorf("%w: cannot move %s order back to pending", ErrInvalidTransition, order.Status)
			}
		case model.OrderStatusProcessing, model.OrderStatusShipped:
			switch order.Status {
			case model.OrderStatusPending, model.OrderStatusProcessing, model.OrderStatusShipped:
			default:
				return fmt.Errorf("%w: %s order cannot move to %s", ErrInvalidTransition, order.Status, status)
			}
			order.Status = status
			if !order.IsPaid {
				order.IsPaid = true
				order.PaidAt = &now
			}
		case model.OrderStatusDelivered:
			order.Status = status
			order.IsDelivered = true
			order.DeliveredAt = &now
			if !order.IsPaid {
				order.IsPaid = true
				order.PaidAt = &now
			}
		}
		if req.Notes != "" {
			order.Notes = req.Notes
		}
		return s.orderRepo.UpdateState(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.OrderStatusChanged, order)
	return order, nil
}

// Cancel flips the order to cancelled and puts every reserved unit back on
// the shelf. The status write and the restores commit together; a delivered
// or already-cancelled order is rejected, so stock is never restored twice.
// No compensating ledger entry is written: refunds are handled out of band.
func (s *OrderService) Cancel(ctx context.Context, orderID int64, requester Requester) (*model.Order, error) {
	var order *model.Order
	err := s.txRunner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		order, err = s.orderRepo.GetForUpdate(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if !requester.canAccess(order) {
			return ErrForbidden
		}
		if order.IsDelivered {
			return fmt.Errorf("%w: delivered orders cannot be cancelled", ErrInvalidTransition)
		}
		if order.Status == model.OrderStatusCancelled {
			return fmt.Errorf("%w: order is already cancelled", ErrInvalidTransition)
		}

		order.Status = model.OrderStatusCancelled
		if err := s.orderRepo.UpdateState(ctx, tx, order); err != nil {
			return err
		}

		for _, item := range order.Items {
			if err := s.productRepo.ReleaseStock(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.OrderCancelled, order)
	return order, nil
}

// MarkPaid records a payment confirmation. It is deliberately separate from
// UpdateStatus: payment can arrive before anything ships, and confirming it
// must not move the order through the state machine.
func (s *OrderService) MarkPaid(ctx context.Context, orderID int64, requester Requester, req dto.PayOrderRequest) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !requester.canAccess(order) {
		return nil, ErrForbidden
	}

	now := time.Now()
	order.IsPaid = true
	order.PaidAt = &now
	order.PaymentResult = &model.PaymentResult{
		ID:           req.ID,
		Status:       req.Status,
		UpdateTime:   req.UpdateTime,
		EmailAddress: req.EmailAddress,
	}
	if err := s.orderRepo.MarkPaid(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) publish(ctx context.Context, routingKey string, order *model.Order) {
	if s.publisher == nil {
		return
	}
	event := model.OrderEvent{OrderID: order.ID, UserID: order.UserID, Status: string(order.Status)}
	if err := s.publisher.PublishOrderEvent(ctx, routingKey, event); err != nil {
		s.log.Warn("publish order event", "routing_key", routingKey, "order_id", order.ID, "error", err)
	}
}

// isTransient reports whether err is a serialization failure or deadlock
// worth retrying.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
