package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solera/storefront-api/internal/model"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderFilter struct {
	Status string
	IsPaid *bool
	Limit  int
	Offset int
}

type OrderRepository interface {
	Insert(ctx context.Context, tx pgx.Tx, order *model.Order) error
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*model.Order, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int, error)
	UpdateState(ctx context.Context, tx pgx.Tx, order *model.Order) error
	MarkPaid(ctx context.Context, order *model.Order) error
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

const orderColumns = `id, user_id, items, shipping_street, shipping_city, shipping_state,
	shipping_zip_code, shipping_country, payment_method, payment_result, items_price,
	tax_price, shipping_price, total_price, is_paid, paid_at, is_delivered, delivered_at,
	status, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	err := row.Scan(
		&o.ID, &o.UserID, &o.Items,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.ZipCode, &o.ShippingAddress.Country,
		&o.PaymentMethod, &o.PaymentResult, &o.ItemsPrice, &o.TaxPrice,
		&o.ShippingPrice, &o.TotalPrice, &o.IsPaid, &o.PaidAt, &o.IsDelivered,
		&o.DeliveredAt, &o.Status, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}

func (r *pgOrderRepo) Insert(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `INSERT INTO orders
		(user_id, items, shipping_street, shipping_city, shipping_state, shipping_zip_code,
		 shipping_country, payment_method, payment_result, items_price, tax_price,
		 shipping_price, total_price, is_paid, paid_at, is_delivered, delivered_at,
		 status, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,NOW(),NOW())
		RETURNING id, created_at, updated_at`
	err := tx.QueryRow(ctx, query,
		order.UserID, order.Items,
		order.ShippingAddress.Street, order.ShippingAddress.City, order.ShippingAddress.State,
		order.ShippingAddress.ZipCode, order.ShippingAddress.Country,
		order.PaymentMethod, order.PaymentResult, order.ItemsPrice, order.TaxPrice,
		order.ShippingPrice, order.TotalPrice, order.IsPaid, order.PaidAt,
		order.IsDelivered, order.DeliveredAt, order.Status, order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetForUpdate locks the order row so concurrent transitions (two cancels, a
// cancel racing a delivery) serialize instead of both applying.
func (r *pgOrderRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*model.Order, error) {
	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	return scanOrder(row)
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (r *pgOrderRepo) List(ctx context.Context, filter OrderFilter) ([]model.Order, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != "" {
		where = append(where, "status = "+arg(filter.Status))
	}
	if filter.IsPaid != nil {
		where = append(where, "is_paid = "+arg(*filter.IsPaid))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM orders WHERE "+whereClause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM orders WHERE %s ORDER BY created_at DESC LIMIT %s OFFSET %s",
		orderColumns, whereClause, arg(filter.Limit), arg(filter.Offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	return orders, total, rows.Err()
}

// UpdateState persists the mutable lifecycle fields: status, the paid and
// delivered markers, and notes.
func (r *pgOrderRepo) UpdateState(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	err := tx.QueryRow(ctx,
		`UPDATE orders SET status=$2, is_paid=$3, paid_at=$4, is_delivered=$5,
		 delivered_at=$6, notes=$7, updated_at=NOW() WHERE id=$1 RETURNING updated_at`,
		order.ID, order.Status, order.IsPaid, order.PaidAt,
		order.IsDelivered, order.DeliveredAt, order.Notes,
	).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("update order state: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) MarkPaid(ctx context.Context, order *model.Order) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE orders SET is_paid=TRUE, paid_at=$2, payment_result=$3, updated_at=NOW()
		 WHERE id=$1 RETURNING updated_at`,
		order.ID, order.PaidAt, order.PaymentResult,
	).Scan(&order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("mark order paid: %w", err)
	}
	return nil
}
