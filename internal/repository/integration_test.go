package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solera/storefront-api/internal/model"
)

func TestUserRepo_CreateAndGetByEmail(t *testing.T) {
	cleanupAll(t)

	repo := NewUserRepository(testPool)
	ctx := context.Background()

	user := createTestUser(t, "ana@example.com")
	assert.NotZero(t, user.ID)

	found, err := repo.GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.True(t, found.IsActive)

	missing, err := repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProductRepo_CRUD(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	runner := NewTxRunner(testPool)
	ctx := context.Background()

	product := &model.Product{
		Name: "Camisa Oxford", Description: "Camisa de algodón",
		Price: decimal.RequireFromString("25.00"),
		Category: "hombre", Subcategory: "camisas",
		Sizes:  []string{"S", "M", "L"},
		Colors: []model.Color{{Name: "Azul", Hex: "#1e40af"}},
		Tags:   []string{"clasico"},
		Stock:  10, InStock: true, IsActive: true,
	}
	err := runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.Create(ctx, tx, product)
	})
	require.NoError(t, err)
	assert.NotZero(t, product.ID)

	found, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Camisa Oxford", found.Name)
	assert.True(t, found.Price.Equal(decimal.RequireFromString("25.00")))
	// JSONB round trip
	assert.Equal(t, []string{"S", "M", "L"}, found.Sizes)
	require.Len(t, found.Colors, 1)
	assert.Equal(t, "#1e40af", found.Colors[0].Hex)

	found.Name = "Camisa Oxford Slim"
	err = runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.Update(ctx, tx, found)
	})
	require.NoError(t, err)

	updated, _ := repo.GetByID(ctx, product.ID)
	assert.Equal(t, "Camisa Oxford Slim", updated.Name)

	require.NoError(t, repo.SoftDelete(ctx, product.ID))
	gone, err := repo.GetByID(ctx, product.ID)
	require.NoError(t, err)
	require.NotNil(t, gone)
	assert.False(t, gone.IsActive)

	assert.ErrorIs(t, repo.SoftDelete(ctx, product.ID), ErrProductNotFound)
}

func TestProductRepo_ListFilters(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	runner := NewTxRunner(testPool)
	ctx := context.Background()

	seed := []*model.Product{
		{Name: "Blusa", Description: "d", Price: decimal.NewFromInt(30), Category: "mujer", Subcategory: "camisas", Stock: 5, InStock: true, IsActive: true},
		{Name: "Gorra Unisex", Description: "d", Price: decimal.NewFromInt(12), Category: "mixta", Subcategory: "gorras", Stock: 5, InStock: true, IsActive: true},
		{Name: "Pantalón", Description: "d", Price: decimal.NewFromInt(45), Category: "hombre", Subcategory: "pantalones", Stock: 0, InStock: false, IsActive: true},
	}
	err := runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, p := range seed {
			if err := repo.Create(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	// a gendered listing includes mixed-audience products
	products, total, err := repo.List(ctx, ProductFilter{Category: "mujer", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	names := []string{products[0].Name, products[1].Name}
	assert.Contains(t, names, "Blusa")
	assert.Contains(t, names, "Gorra Unisex")

	inStock := true
	_, total, err = repo.List(ctx, ProductFilter{InStock: &inStock, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	min := decimal.NewFromInt(40)
	_, total, err = repo.List(ctx, ProductFilter{MinPrice: &min, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, total, err = repo.List(ctx, ProductFilter{Search: "gorra", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	categories, err := repo.Categories(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mujer", "mixta", "hombre"}, categories)
}

func TestProductRepo_ReserveStock(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	runner := NewTxRunner(testPool)
	ctx := context.Background()

	product := createTestProduct(t, "Zapatos", decimal.NewFromInt(60), 5)

	err := runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.ReserveStock(ctx, tx, product.ID, 3)
	})
	require.NoError(t, err)

	after, _ := repo.GetByID(ctx, product.ID)
	assert.Equal(t, 2, after.Stock)
	assert.True(t, after.InStock)

	err = runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.ReserveStock(ctx, tx, product.ID, 3)
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Zapatos")
	assert.Contains(t, err.Error(), "available 2")

	// draining the stock flips in_stock off
	err = runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.ReserveStock(ctx, tx, product.ID, 2)
	})
	require.NoError(t, err)
	drained, _ := repo.GetByID(ctx, product.ID)
	assert.Equal(t, 0, drained.Stock)
	assert.False(t, drained.InStock)

	err = runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.ReserveStock(ctx, tx, 99999, 1)
	})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestProductRepo_ReleaseStock(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	runner := NewTxRunner(testPool)
	ctx := context.Background()

	product := createTestProduct(t, "Medias", decimal.NewFromInt(5), 0)

	err := runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.ReleaseStock(ctx, tx, product.ID, 4)
	})
	require.NoError(t, err)

	after, _ := repo.GetByID(ctx, product.ID)
	assert.Equal(t, 4, after.Stock)
	assert.True(t, after.InStock)

	// releasing against a vanished product is a no-op, not an error
	err = runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.ReleaseStock(ctx, tx, 99999, 1)
	})
	assert.NoError(t, err)
}

// Many goroutines race to reserve one unit each from a small stock. Exactly
// stock-many must win and the column must never go negative.
func TestProductRepo_ReserveStock_Concurrent(t *testing.T) {
	cleanupAll(t)

	repo := NewProductRepository(testPool)
	runner := NewTxRunner(testPool)

	const stock = 5
	const contenders = 20
	product := createTestProduct(t, "Edición Limitada", decimal.NewFromInt(99), stock)

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = runner.WithinTx(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
				return repo.ReserveStock(ctx, tx, product.ID, 1)
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInsufficientStock)
		}
	}
	assert.Equal(t, stock, succeeded)

	final, err := repo.GetByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, final.Stock)
	assert.GreaterOrEqual(t, final.Stock, 0)
}

func TestOrderRepo_InsertAndGet(t *testing.T) {
	cleanupAll(t)

	repo := NewOrderRepository(testPool)
	runner := NewTxRunner(testPool)
	ctx := context.Background()

	user := createTestUser(t, "buyer@example.com")
	product := createTestProduct(t, "Camisa", decimal.NewFromInt(20), 10)

	order := &model.Order{
		UserID: user.ID,
		Items: []model.OrderItem{{
			ProductID: product.ID, Name: "Camisa", Quantity: 2,
			Price: decimal.RequireFromString("20.00"), Size: "M",
		}},
		ShippingAddress: model.ShippingAddress{
			Street: "Calle 10 #5-32", City: "Medellín", State: "Antioquia",
			ZipCode: "050001", Country: "Colombia",
		},
		PaymentMethod: model.PaymentMethodCard,
		ItemsPrice:    decimal.RequireFromString("40.00"),
		TaxPrice:      decimal.RequireFromString("7.60"),
		ShippingPrice: decimal.Zero,
		TotalPrice:    decimal.RequireFromString("47.60"),
		Status:        model.OrderStatusPending,
	}
	err := runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.Insert(ctx, tx, order)
	})
	require.NoError(t, err)
	assert.NotZero(t, order.ID)

	found, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.UserID)
	assert.Equal(t, model.OrderStatusPending, found.Status)
	assert.True(t, found.TotalPrice.Equal(decimal.RequireFromString("47.60")))
	assert.Equal(t, "Medellín", found.ShippingAddress.City)
	// item snapshot JSONB round trip
	require.Len(t, found.Items, 1)
	assert.Equal(t, product.ID, found.Items[0].ProductID)
	assert.Equal(t, 2, found.Items[0].Quantity)
	assert.Equal(t, "M", found.Items[0].Size)
	assert.True(t, found.Items[0].Price.Equal(decimal.RequireFromString("20.00")))

	missing, err := repo.GetByID(ctx, 99999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderRepo_StateAndPayment(t *testing.T) {
	cleanupAll(t)

	repo := NewOrderRepository(testPool)
	runner := NewTxRunner(testPool)
	ctx := context.Background()

	user := createTestUser(t, "state@example.com")
	order := &model.Order{
		UserID: user.ID,
		Items:  []model.OrderItem{{ProductID: 1, Name: "X", Quantity: 1, Price: decimal.NewFromInt(10)}},
		ShippingAddress: model.ShippingAddress{
			Street: "s", City: "c", State: "st", ZipCode: "z", Country: "Colombia",
		},
		PaymentMethod: model.PaymentMethodCash,
		ItemsPrice:    decimal.NewFromInt(10), TotalPrice: decimal.NewFromInt(10),
		Status: model.OrderStatusPending,
	}
	err := runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.Insert(ctx, tx, order)
	})
	require.NoError(t, err)

	now := time.Now()
	order.Status = model.OrderStatusShipped
	order.IsPaid = true
	order.PaidAt = &now
	order.Notes = "left at the front desk"
	err = runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.UpdateState(ctx, tx, order)
	})
	require.NoError(t, err)

	found, _ := repo.GetByID(ctx, order.ID)
	assert.Equal(t, model.OrderStatusShipped, found.Status)
	assert.True(t, found.IsPaid)
	require.NotNil(t, found.PaidAt)
	assert.Equal(t, "left at the front desk", found.Notes)

	found.PaymentResult = &model.PaymentResult{
		ID: "PAY-9", Status: "COMPLETED", EmailAddress: "buyer@example.com",
	}
	require.NoError(t, repo.MarkPaid(ctx, found))

	paid, _ := repo.GetByID(ctx, order.ID)
	require.NotNil(t, paid.PaymentResult)
	assert.Equal(t, "PAY-9", paid.PaymentResult.ID)
}

func TestOrderRepo_Listing(t *testing.T) {
	cleanupAll(t)

	repo := NewOrderRepository(testPool)
	runner := NewTxRunner(testPool)
	ctx := context.Background()

	alice := createTestUser(t, "alice@example.com")
	bob := createTestUser(t, "bob@example.com")

	insert := func(userID int64, status model.OrderStatus, paid bool) {
		order := &model.Order{
			UserID: userID,
			Items:  []model.OrderItem{{ProductID: 1, Name: "X", Quantity: 1, Price: decimal.NewFromInt(5)}},
			ShippingAddress: model.ShippingAddress{
				Street: "s", City: "c", State: "st", ZipCode: "z", Country: "Colombia",
			},
			PaymentMethod: model.PaymentMethodCash,
			ItemsPrice:    decimal.NewFromInt(5), TotalPrice: decimal.NewFromInt(5),
			Status: status, IsPaid: paid,
		}
		require.NoError(t, runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
			return repo.Insert(ctx, tx, order)
		}))
	}
	insert(alice.ID, model.OrderStatusPending, false)
	insert(alice.ID, model.OrderStatusShipped, true)
	insert(bob.ID, model.OrderStatusPending, true)

	mine, err := repo.ListByUserID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, total, err := repo.List(ctx, OrderFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)

	paid := true
	pendingPaid, total, err := repo.List(ctx, OrderFilter{Status: "pending", IsPaid: &paid, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, pendingPaid, 1)
	assert.Equal(t, bob.ID, pendingPaid[0].UserID)
}

func TestTransactionRepo_CRUD(t *testing.T) {
	cleanupAll(t)

	repo := NewTransactionRepository(testPool)
	runner := NewTxRunner(testPool)
	ctx := context.Background()

	user := createTestUser(t, "admin@example.com")

	txn := &model.Transaction{
		Type: model.TransactionExpense, Category: "marketing",
		Amount: decimal.RequireFromString("120.50"), Description: "Instagram campaign",
		UserID: user.ID, TransactionDate: time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	err := runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return repo.Insert(ctx, tx, txn)
	})
	require.NoError(t, err)
	assert.NotZero(t, txn.ID)

	found, err := repo.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Amount.Equal(decimal.RequireFromString("120.50")))

	found.Amount = decimal.RequireFromString("99.99")
	found.Notes = "renegotiated"
	require.NoError(t, repo.Update(ctx, found))

	updated, _ := repo.GetByID(ctx, txn.ID)
	assert.True(t, updated.Amount.Equal(decimal.RequireFromString("99.99")))
	assert.Equal(t, "renegotiated", updated.Notes)

	require.NoError(t, repo.Delete(ctx, txn.ID))
	gone, err := repo.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	assert.ErrorIs(t, repo.Delete(ctx, txn.ID), ErrTransactionNotFound)
}

func TestTransactionRepo_DateRange(t *testing.T) {
	cleanupAll(t)

	repo := NewTransactionRepository(testPool)
	runner := NewTxRunner(testPool)
	ctx := context.Background()

	user := createTestUser(t, "ledger@example.com")

	dates := []time.Time{
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	err := runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, d := range dates {
			txn := &model.Transaction{
				Type: model.TransactionIncome, Category: "sale",
				Amount: decimal.NewFromInt(10), Description: "Sale",
				UserID: user.ID, TransactionDate: d,
			}
			if err := repo.Insert(ctx, tx, txn); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 5, 31, 23, 59, 59, 0, time.UTC)

	windowed, err := repo.ListByDateRange(ctx, &start, &end)
	require.NoError(t, err)
	assert.Len(t, windowed, 1)

	all, err := repo.ListByDateRange(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	fromMay, err := repo.ListByDateRange(ctx, &start, nil)
	require.NoError(t, err)
	assert.Len(t, fromMay, 2)
}

// An error anywhere inside the transaction leaves no trace: no order row, no
// stock movement, no ledger entry.
func TestTxRunner_RollsBackEverything(t *testing.T) {
	cleanupAll(t)

	orderRepo := NewOrderRepository(testPool)
	productRepo := NewProductRepository(testPool)
	txnRepo := NewTransactionRepository(testPool)
	runner := NewTxRunner(testPool)
	ctx := context.Background()

	user := createTestUser(t, "rollback@example.com")
	product := createTestProduct(t, "Camisa", decimal.NewFromInt(20), 10)

	boom := errors.New("boom")
	err := runner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		order := &model.Order{
			UserID: user.ID,
			Items:  []model.OrderItem{{ProductID: product.ID, Name: "Camisa", Quantity: 2, Price: decimal.NewFromInt(20)}},
			ShippingAddress: model.ShippingAddress{
				Street: "s", City: "c", State: "st", ZipCode: "z", Country: "Colombia",
			},
			PaymentMethod: model.PaymentMethodCard,
			ItemsPrice:    decimal.NewFromInt(40), TotalPrice: decimal.NewFromInt(40),
			Status: model.OrderStatusPending,
		}
		if err := orderRepo.Insert(ctx, tx, order); err != nil {
			return err
		}
		if err := productRepo.ReserveStock(ctx, tx, product.ID, 2); err != nil {
			return err
		}
		if err := txnRepo.Insert(ctx, tx, &model.Transaction{
			Type: model.TransactionIncome, Category: "sale",
			Amount: decimal.NewFromInt(40), Description: "Sale",
			UserID: user.ID, TransactionDate: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, total, err := orderRepo.List(ctx, OrderFilter{Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)

	untouched, _ := productRepo.GetByID(ctx, product.ID)
	assert.Equal(t, 10, untouched.Stock)

	entries, err := txnRepo.ListByDateRange(ctx, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
