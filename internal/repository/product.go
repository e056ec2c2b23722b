package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/solera/storefront-api/internal/model"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type ProductFilter struct {
	Category    string
	Subcategory string
	Featured    *bool
	OnSale      *bool
	InStock     *bool
	Search      string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	Sort        string
	Limit       int
	Offset      int
}

type ProductRepository interface {
	Create(ctx context.Context, tx pgx.Tx, product *model.Product) error
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*model.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]model.Product, int, error)
	Update(ctx context.Context, tx pgx.Tx, product *model.Product) error
	SoftDelete(ctx context.Context, id int64) error
	Categories(ctx context.Context) ([]string, error)
	ReserveStock(ctx context.Context, tx pgx.Tx, productID int64, quantity int) error
	ReleaseStock(ctx context.Context, tx pgx.Tx, productID int64, quantity int) error
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

const productColumns = `id, name, description, price, original_price, sale_price,
	category, subcategory, images, sizes, colors, tags, stock, in_stock, featured,
	on_sale, discount, rating, num_reviews, brand, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	p := &model.Product{}
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.OriginalPrice, &p.SalePrice,
		&p.Category, &p.Subcategory, &p.Images, &p.Sizes, &p.Colors, &p.Tags,
		&p.Stock, &p.InStock, &p.Featured, &p.OnSale, &p.Discount, &p.Rating,
		&p.NumReviews, &p.Brand, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

func (r *pgProductRepo) Create(ctx context.Context, tx pgx.Tx, product *model.Product) error {
	query := `INSERT INTO products
		(name, description, price, original_price, sale_price, category, subcategory,
		 images, sizes, colors, tags, stock, in_stock, featured, on_sale, discount,
		 rating, num_reviews, brand, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,NOW(),NOW())
		RETURNING id, created_at, updated_at`
	err := tx.QueryRow(ctx, query,
		product.Name, product.Description, product.Price, product.OriginalPrice,
		product.SalePrice, product.Category, product.Subcategory, product.Images,
		product.Sizes, product.Colors, product.Tags, product.Stock, product.InStock,
		product.Featured, product.OnSale, product.Discount, product.Rating,
		product.NumReviews, product.Brand, product.IsActive,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// GetForUpdate locks the product row for the remainder of the transaction.
// Callers lock rows in ascending id order to avoid deadlocks between
// overlapping multi-item orders.
func (r *pgProductRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (*model.Product, error) {
	row := tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
	return scanProduct(row)
}

func (r *pgProductRepo) List(ctx context.Context, filter ProductFilter) ([]model.Product, int, error) {
	where := []string{"is_active"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch filter.Category {
	case "":
	case model.CategoryWomen, model.CategoryMen:
		// mixed-audience products show up in both gendered listings
		where = append(where, fmt.Sprintf("category IN (%s, %s)",
			arg(filter.Category), arg(model.CategoryMixed)))
	default:
		where = append(where, "category = "+arg(filter.Category))
	}
	if filter.Subcategory != "" {
		where = append(where, "subcategory = "+arg(filter.Subcategory))
	}
	if filter.Featured != nil {
		where = append(where, "featured = "+arg(*filter.Featured))
	}
	if filter.OnSale != nil {
		where = append(where, "on_sale = "+arg(*filter.OnSale))
	}
	if filter.InStock != nil {
		where = append(where, "in_stock = "+arg(*filter.InStock))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, fmt.Sprintf("(name ILIKE %s OR description ILIKE %s)", p, p))
	}
	if filter.MinPrice != nil {
		where = append(where, "price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		where = append(where, "price <= "+arg(*filter.MaxPrice))
	}

	orderBy := "created_at DESC"
	switch filter.Sort {
	case "price_asc":
		orderBy = "price ASC"
	case "price_desc":
		orderBy = "price DESC"
	case "name_asc":
		orderBy = "name ASC"
	case "name_desc":
		orderBy = "name DESC"
	case "newest", "":
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM products WHERE "+whereClause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM products WHERE %s ORDER BY %s LIMIT %s OFFSET %s",
		productColumns, whereClause, orderBy, arg(filter.Limit), arg(filter.Offset))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	return products, total, rows.Err()
}

func (r *pgProductRepo) Update(ctx context.Context, tx pgx.Tx, product *model.Product) error {
	query := `UPDATE products SET
		name=$2, description=$3, price=$4, original_price=$5, sale_price=$6,
		category=$7, subcategory=$8, images=$9, sizes=$10, colors=$11, tags=$12,
		stock=$13, in_stock=$14, featured=$15, on_sale=$16, discount=$17,
		brand=$18, is_active=$19, updated_at=NOW()
		WHERE id=$1 RETURNING updated_at`
	err := tx.QueryRow(ctx, query,
		product.ID, product.Name, product.Description, product.Price,
		product.OriginalPrice, product.SalePrice, product.Category, product.Subcategory,
		product.Images, product.Sizes, product.Colors, product.Tags, product.Stock,
		product.InStock, product.Featured, product.OnSale, product.Discount,
		product.Brand, product.IsActive,
	).Scan(&product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (r *pgProductRepo) SoftDelete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx,
		`UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("soft delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *pgProductRepo) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT category FROM products WHERE is_active ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ReserveStock decrements stock by quantity. The check and the write are a
// single conditional UPDATE so two concurrent reservations can never both
// succeed past the available stock; the stock >= quantity guard is what keeps
// the column non-negative.
func (r *pgProductRepo) ReserveStock(ctx context.Context, tx pgx.Tx, productID int64, quantity int) error {
	ct, err := tx.Exec(ctx,
		`UPDATE products SET stock = stock - $2, in_stock = (stock - $2 > 0), updated_at = NOW()
		 WHERE id = $1 AND is_active AND stock >= $2`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	// Distinguish a missing/inactive product from a stock shortage.
	var name string
	var stock int
	var active bool
	err = tx.QueryRow(ctx,
		`SELECT name, stock, is_active FROM products WHERE id = $1`, productID,
	).Scan(&name, &stock, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: product %d", ErrProductNotFound, productID)
		}
		return fmt.Errorf("check stock: %w", err)
	}
	if !active {
		return fmt.Errorf("%w: product %s", ErrProductNotFound, name)
	}
	return fmt.Errorf("%w for %s: available %d", ErrInsufficientStock, name, stock)
}

// ReleaseStock returns quantity to the shelf. A missing product is tolerated:
// a cancelled order must not fail because the catalog row disappeared.
func (r *pgProductRepo) ReleaseStock(ctx context.Context, tx pgx.Tx, productID int64, quantity int) error {
	_, err := tx.Exec(ctx,
		`UPDATE products SET stock = stock + $2, in_stock = TRUE, updated_at = NOW() WHERE id = $1`,
		productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}
