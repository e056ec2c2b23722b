package repository

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/solera/storefront-api/internal/model"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		fmt.Println("TEST_DATABASE_URL not set, skipping integration tests")
		os.Exit(0)
	}

	var err error
	testPool, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to test database: %v\n", err)
		os.Exit(1)
	}
	defer testPool.Close()

	code := m.Run()
	os.Exit(code)
}

func cleanupTable(t *testing.T, tables ...string) {
	t.Helper()
	for _, table := range tables {
		_, err := testPool.Exec(context.Background(), fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Fatalf("failed to cleanup table %s: %v", table, err)
		}
	}
}

func cleanupAll(t *testing.T) {
	t.Helper()
	cleanupTable(t, "transactions", "orders", "products", "users")
}

func createTestUser(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name: "Test User", Email: email, Password: "hashed", Role: "customer", IsActive: true,
	}
	require.NoError(t, NewUserRepository(testPool).Create(context.Background(), user))
	return user
}

func createTestProduct(t *testing.T, name string, price decimal.Decimal, stock int) *model.Product {
	t.Helper()
	product := &model.Product{
		Name: name, Description: "test product", Price: price,
		Category: "hombre", Subcategory: "camisas",
		Stock: stock, InStock: stock > 0, IsActive: true,
	}
	err := NewTxRunner(testPool).WithinTx(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		return NewProductRepository(testPool).Create(ctx, tx, product)
	})
	require.NoError(t, err)
	return product
}
