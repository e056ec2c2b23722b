package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solera/storefront-api/internal/model"
)

var ErrTransactionNotFound = errors.New("transaction not found")

type TransactionFilter struct {
	Type      string
	Category  string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

type TransactionRepository interface {
	Insert(ctx context.Context, tx pgx.Tx, txn *model.Transaction) error
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]model.Transaction, int, error)
	ListByDateRange(ctx context.Context, start, end *time.Time) ([]model.Transaction, error)
	Update(ctx context.Context, txn *model.Transaction) error
	Delete(ctx context.Context, id int64) error
}

type pgTransactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepository(pool *pgxpool.Pool) TransactionRepository {
	return &pgTransactionRepo{pool: pool}
}

const transactionColumns = `id, type, category, amount, description, reference,
	order_id, user_id, transaction_date, notes, created_at, updated_at`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	t := &model.Transaction{}
	err := row.Scan(
		&t.ID, &t.Type, &t.Category, &t.Amount, &t.Description, &t.Reference,
		&t.OrderID, &t.UserID, &t.TransactionDate, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

// Insert appends a ledger entry within tx. The sale entry written during
// order creation rides the same transaction as the stock decrement, so a
// failed append rolls back the whole order.
func (r *pgTransactionRepo) Insert(ctx context.Context, tx pgx.Tx, txn *model.Transaction) error {
	query := `INSERT INTO transactions
		(type, category, amount, description, reference, order_id, user_id,
		 transaction_date, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
		RETURNING id, created_at, updated_at`
	err := tx.QueryRow(ctx, query,
		txn.Type, txn.Category, txn.Amount, txn.Description, txn.Reference,
		txn.OrderID, txn.UserID, txn.TransactionDate, txn.Notes,
	).Scan(&txn.ID, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *pgTransactionRepo) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

func (r *pgTransactionRepo) List(ctx context.Context, filter TransactionFilter) ([]model.Transaction, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Type != "" {
		where = append(where, "type = "+arg(filter.Type))
	}
	if filter.Category != "" {
		where = append(where, "category = "+arg(filter.Category))
	}
	if filter.StartDate != nil {
		where = append(where, "transaction_date >= "+arg(*filter.StartDate))
	}
	if filter.EndDate != nil {
		where = append(where, "transaction_date <= "+arg(*filter.EndDate))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM transactions WHERE "+whereClause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM transactions WHERE %s ORDER BY transaction_date DESC LIMIT %s OFFSET %s",
		transactionColumns, whereClause, arg(filter.Limit), arg(filter.Offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, total, rows.Err()
}

// ListByDateRange feeds the financial summary. Bounds are inclusive and
// open-ended when nil.
func (r *pgTransactionRepo) ListByDateRange(ctx context.Context, start, end *time.Time) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE ($1::timestamptz IS NULL OR transaction_date >= $1)
		   AND ($2::timestamptz IS NULL OR transaction_date <= $2)`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions by date: %w", err)
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

func (r *pgTransactionRepo) Update(ctx context.Context, txn *model.Transaction) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE transactions SET type=$2, category=$3, amount=$4, description=$5,
		 reference=$6, order_id=$7, transaction_date=$8, notes=$9, updated_at=NOW()
		 WHERE id=$1 RETURNING updated_at`,
		txn.ID, txn.Type, txn.Category, txn.Amount, txn.Description,
		txn.Reference, txn.OrderID, txn.TransactionDate, txn.Notes,
	).Scan(&txn.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTransactionNotFound
		}
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

// Delete removes a ledger entry. Deliberately no cascade: deleting an entry
// never touches the order or stock it referenced.
func (r *pgTransactionRepo) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrTransactionNotFound
	}
	return nil
}
