package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/solera/storefront-api/internal/model"
	"github.com/solera/storefront-api/internal/repository"
)

// mockTxRunner runs the callback without a real transaction. Rollback
// semantics are covered by the repository integration tests; here the
// interesting part is the orchestration order.
type mockTxRunner struct{}

func (mockTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

type mockProductRepo struct {
	products map[int64]*model.Product
	nextID   int64
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: make(map[int64]*model.Product), nextID: 1}
}

func (m *mockProductRepo) add(p model.Product) *model.Product {
	if p.ID == 0 {
		p.ID = m.nextID
	}
	if p.ID >= m.nextID {
		m.nextID = p.ID + 1
	}
	m.products[p.ID] = &p
	return &p
}

func (m *mockProductRepo) Create(_ context.Context, _ pgx.Tx, product *model.Product) error {
	product.ID = m.nextID
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	m.nextID++
	stored := *product
	m.products[product.ID] = &stored
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*model.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) GetForUpdate(ctx context.Context, _ pgx.Tx, id int64) (*model.Product, error) {
	return m.GetByID(ctx, id)
}

func (m *mockProductRepo) List(_ context.Context, _ repository.ProductFilter) ([]model.Product, int, error) {
	var out []model.Product
	for _, p := range m.products {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *mockProductRepo) Update(_ context.Context, _ pgx.Tx, product *model.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	stored := *product
	m.products[product.ID] = &stored
	return nil
}

func (m *mockProductRepo) SoftDelete(_ context.Context, id int64) error {
	p, ok := m.products[id]
	if !ok || !p.IsActive {
		return repository.ErrProductNotFound
	}
	p.IsActive = false
	return nil
}

func (m *mockProductRepo) Categories(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, p := range m.products {
		if p.IsActive && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockProductRepo) ReserveStock(_ context.Context, _ pgx.Tx, productID int64, quantity int) error {
	p, ok := m.products[productID]
	if !ok || !p.IsActive {
		return fmt.Errorf("%w: product %d", repository.ErrProductNotFound, productID)
	}
	if p.Stock < quantity {
		return fmt.Errorf("%w for %s: available %d", repository.ErrInsufficientStock, p.Name, p.Stock)
	}
	p.Stock -= quantity
	p.InStock = p.Stock > 0
	return nil
}

func (m *mockProductRepo) ReleaseStock(_ context.Context, _ pgx.Tx, productID int64, quantity int) error {
	if p, ok := m.products[productID]; ok {
		p.Stock += quantity
		p.InStock = true
	}
	return nil
}

type mockOrderRepo struct {
	orders map[int64]*model.Order
	nextID int64
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[int64]*model.Order), nextID: 1}
}

func (m *mockOrderRepo) add(o model.Order) *model.Order {
	if o.ID == 0 {
		o.ID = m.nextID
	}
	if o.ID >= m.nextID {
		m.nextID = o.ID + 1
	}
	m.orders[o.ID] = &o
	return &o
}

func (m *mockOrderRepo) Insert(_ context.Context, _ pgx.Tx, order *model.Order) error {
	order.ID = m.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	m.nextID++
	stored := *order
	m.orders[order.ID] = &stored
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id int64) (*model.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) GetForUpdate(ctx context.Context, _ pgx.Tx, id int64) (*model.Order, error) {
	return m.GetByID(ctx, id)
}

func (m *mockOrderRepo) ListByUserID(_ context.Context, userID int64) ([]model.Order, error) {
	var out []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrderRepo) List(_ context.Context, filter repository.OrderFilter) ([]model.Order, int, error) {
	var matched []model.Order
	for _, o := range m.orders {
		if filter.Status != "" && string(o.Status) != filter.Status {
			continue
		}
		if filter.IsPaid != nil && o.IsPaid != *filter.IsPaid {
			continue
		}
		matched = append(matched, *o)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *mockOrderRepo) UpdateState(_ context.Context, _ pgx.Tx, order *model.Order) error {
	if _, ok := m.orders[order.ID]; !ok {
		return repository.ErrOrderNotFound
	}
	stored := *order
	m.orders[order.ID] = &stored
	return nil
}

func (m *mockOrderRepo) MarkPaid(_ context.Context, order *model.Order) error {
	stored, ok := m.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	stored.IsPaid = true
	stored.PaidAt = order.PaidAt
	stored.PaymentResult = order.PaymentResult
	return nil
}

type mockTransactionRepo struct {
	transactions []*model.Transaction
	nextID       int64
	insertErr    error
}

func newMockTransactionRepo() *mockTransactionRepo {
	return &mockTransactionRepo{nextID: 1}
}

func (m *mockTransactionRepo) Insert(_ context.Context, _ pgx.Tx, txn *model.Transaction) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	txn.ID = m.nextID
	txn.CreatedAt = time.Now()
	txn.UpdatedAt = txn.CreatedAt
	m.nextID++
	stored := *txn
	m.transactions = append(m.transactions, &stored)
	return nil
}

func (m *mockTransactionRepo) GetByID(_ context.Context, id int64) (*model.Transaction, error) {
	for _, t := range m.transactions {
		if t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockTransactionRepo) List(_ context.Context, filter repository.TransactionFilter) ([]model.Transaction, int, error) {
	var matched []model.Transaction
	for _, t := range m.transactions {
		if filter.Type != "" && string(t.Type) != filter.Type {
			continue
		}
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if filter.StartDate != nil && t.TransactionDate.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && t.TransactionDate.After(*filter.EndDate) {
			continue
		}
		matched = append(matched, *t)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].TransactionDate.After(matched[j].TransactionDate)
	})
	total := len(matched)
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *mockTransactionRepo) ListByDateRange(_ context.Context, start, end *time.Time) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, t := range m.transactions {
		if start != nil && t.TransactionDate.Before(*start) {
			continue
		}
		if end != nil && t.TransactionDate.After(*end) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockTransactionRepo) Update(_ context.Context, txn *model.Transaction) error {
	for i, t := range m.transactions {
		if t.ID == txn.ID {
			stored := *txn
			m.transactions[i] = &stored
			return nil
		}
	}
	return repository.ErrTransactionNotFound
}

func (m *mockTransactionRepo) Delete(_ context.Context, id int64) error {
	for i, t := range m.transactions {
		if t.ID == id {
			m.transactions = append(m.transactions[:i], m.transactions[i+1:]...)
			return nil
		}
	}
	return repository.ErrTransactionNotFound
}

type mockPublisher struct {
	events []publishedEvent
}

type publishedEvent struct {
	routingKey string
	event      model.OrderEvent
}

func (m *mockPublisher) PublishOrderEvent(_ context.Context, routingKey string, event model.OrderEvent) error {
	m.events = append(m.events, publishedEvent{routingKey: routingKey, event: event})
	return nil
}

type mockUserRepo struct {
	users  map[int64]*model.User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]*model.User), nextID: 1}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	user.ID = m.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.nextID++
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}
