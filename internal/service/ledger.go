package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/solera/storefront-api/internal/dto"
	"github.com/solera/storefront-api/internal/model"
	"github.com/solera/storefront-api/internal/repository"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrTransactionNotFound = repository.ErrTransactionNotFound
)

// LedgerService owns the financial transaction log and the aggregated
// summary. Sale entries arrive through the order service; everything here is
// the manual admin surface plus reporting.
type LedgerService struct {
	txRunner repository.TxRunner
	txnRepo  repository.TransactionRepository
}

func NewLedgerService(txRunner repository.TxRunner, txnRepo repository.TransactionRepository) *LedgerService {
	return &LedgerService{txRunner: txRunner, txnRepo: txnRepo}
}

func (s *LedgerService) Create(ctx context.Context, userID int64, req dto.CreateTransactionRequest) (*model.Transaction, error) {
	txnType := model.TransactionType(req.Type)
	if err := validateEntry(txnType, req.Category, req.Amount, req.Description); err != nil {
		return nil, err
	}

	transactionDate := time.Now()
	if req.TransactionDate != "" {
		parsed, err := parseDate(req.TransactionDate)
		if err != nil {
			return nil, err
		}
		transactionDate = parsed
	}

	txn := &model.Transaction{
		Type:            txnType,
		Category:        req.Category,
		Amount:          req.Amount,
		Description:     req.Description,
		Reference:       req.Reference,
		OrderID:         req.OrderID,
		UserID:          userID,
		TransactionDate: transactionDate,
		Notes:           req.Notes,
	}
	err := s.txRunner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.txnRepo.Insert(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *LedgerService) Get(ctx context.Context, id int64) (*model.Transaction, error) {
	txn, err := s.txnRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}
	return txn, nil
}

func (s *LedgerService) List(ctx context.Context, req dto.ListTransactionsRequest) ([]model.Transaction, int, error) {
	if req.Type != "" && req.Type != string(model.TransactionIncome) && req.Type != string(model.TransactionExpense) {
		return nil, 0, fmt.Errorf("%w: unknown type %q", ErrValidation, req.Type)
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		return nil, 0, err
	}
	return s.txnRepo.List(ctx, repository.TransactionFilter{
		Type:      req.Type,
		Category:  req.Category,
		StartDate: start,
		EndDate:   end,
		Limit:     req.Limit,
		Offset:    (req.Page - 1) * req.Limit,
	})
}

func (s *LedgerService) Update(ctx context.Context, id int64, req dto.UpdateTransactionRequest) (*model.Transaction, error) {
	txn, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Type != nil {
		txn.Type = model.TransactionType(*req.Type)
	}
	if req.Category != nil {
		txn.Category = *req.Category
	}
	if req.Amount != nil {
		txn.Amount = *req.Amount
	}
	if req.Description != nil {
		txn.Description = *req.Description
	}
	if req.Reference != nil {
		txn.Reference = *req.Reference
	}
	if req.OrderID != nil {
		txn.OrderID = req.OrderID
	}
	if req.TransactionDate != nil {
		parsed, err := parseDate(*req.TransactionDate)
		if err != nil {
			return nil, err
		}
		txn.TransactionDate = parsed
	}
	if req.Notes != nil {
		txn.Notes = *req.Notes
	}

	if err := validateEntry(txn.Type, txn.Category, txn.Amount, txn.Description); err != nil {
		return nil, err
	}
	if err := s.txnRepo.Update(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// Delete removes a ledger entry. The order and stock it referenced are left
// untouched.
func (s *LedgerService) Delete(ctx context.Context, id int64) error {
	return s.txnRepo.Delete(ctx, id)
}

// Summary aggregates the ledger over an inclusive date window. All
// arithmetic stays in decimal; a period with no income reports a margin of
// zero rather than dividing by it.
func (s *LedgerService) Summary(ctx context.Context, startDate, endDate string) (*dto.FinancialSummaryResponse, error) {
	start, end, err := parseDateRange(startDate, endDate)
	if err != nil {
		return nil, err
	}

	transactions, err := s.txnRepo.ListByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	totalIncome := decimal.Zero
	totalExpenses := decimal.Zero
	incomeByCategory := make(map[string]decimal.Decimal)
	expensesByCategory := make(map[string]decimal.Decimal)

	for _, t := range transactions {
		switch t.Type {
		case model.TransactionIncome:
			totalIncome = totalIncome.Add(t.Amount)
			incomeByCategory[t.Category] = incomeByCategory[t.Category].Add(t.Amount)
		case model.TransactionExpense:
			totalExpenses = totalExpenses.Add(t.Amount)
			expensesByCategory[t.Category] = expensesByCategory[t.Category].Add(t.Amount)
		}
	}

	netProfit := totalIncome.Sub(totalExpenses)
	profitMargin := decimal.Zero
	if totalIncome.IsPositive() {
		profitMargin = netProfit.Div(totalIncome).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return &dto.FinancialSummaryResponse{
		TotalIncome:        totalIncome,
		TotalExpenses:      totalExpenses,
		NetProfit:          netProfit,
		ProfitMargin:       profitMargin,
		IncomeByCategory:   incomeByCategory,
		ExpensesByCategory: expensesByCategory,
		TransactionCount:   len(transactions),
		Period:             dto.SummaryPeriod{StartDate: startDate, EndDate: endDate},
	}, nil
}

func validateEntry(t model.TransactionType, category string, amount decimal.Decimal, description string) error {
	if t != model.TransactionIncome && t != model.TransactionExpense {
		return fmt.Errorf("%w: unknown type %q", ErrValidation, t)
	}
	if !model.ValidCategory(t, category) {
		return fmt.Errorf("%w: category %q is not valid for type %s", ErrValidation, category, t)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	if description == "" {
		return fmt.Errorf("%w: description is required", ErrValidation)
	}
	return nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrValidation, value)
}

func parseDateRange(startDate, endDate string) (*time.Time, *time.Time, error) {
	var start, end *time.Time
	if startDate != "" {
		t, err := parseDate(startDate)
		if err != nil {
			return nil, nil, err
		}
		start = &t
	}
	if endDate != "" {
		t, err := parseDate(endDate)
		if err != nil {
			return nil, nil, err
		}
		// A bare date means "through the end of that day".
		if len(endDate) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		end = &t
	}
	return start, end, nil
}
