package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/solera/storefront-api/internal/dto"
	"github.com/solera/storefront-api/internal/model"
	"github.com/solera/storefront-api/internal/repository"
)

var ErrProductNotFound = repository.ErrProductNotFound

const productCacheTTL = 60 * time.Second

// CatalogService manages products. Stock purchases leave a trace in the
// ledger: creating a product with a cost basis, or raising its stock later,
// records an inventory expense in the same transaction as the catalog write.
type CatalogService struct {
	txRunner    repository.TxRunner
	productRepo repository.ProductRepository
	txnRepo     repository.TransactionRepository
	redisClient *redis.Client
}

func NewCatalogService(
	txRunner repository.TxRunner,
	productRepo repository.ProductRepository,
	txnRepo repository.TransactionRepository,
	redisClient *redis.Client,
) *CatalogService {
	return &CatalogService{
		txRunner:    txRunner,
		productRepo: productRepo,
		txnRepo:     txnRepo,
		redisClient: redisClient,
	}
}

func (s *CatalogService) Create(ctx context.Context, adminID int64, req dto.CreateProductRequest) (*model.Product, error) {
	if req.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}

	product := &model.Product{
		Name:          req.Name,
		Description:   req.Description,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		SalePrice:     req.SalePrice,
		Category:      req.Category,
		Subcategory:   req.Subcategory,
		Images:        req.Images,
		Sizes:         req.Sizes,
		Colors:        req.Colors,
		Tags:          req.Tags,
		Stock:         req.Stock,
		InStock:       req.Stock > 0,
		Featured:      req.Featured,
		OnSale:        req.OnSale,
		Discount:      req.Discount,
		Brand:         req.Brand,
		IsActive:      true,
	}

	err := s.txRunner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.productRepo.Create(ctx, tx, product); err != nil {
			return err
		}
		if product.OriginalPrice != nil && product.Stock > 0 {
			return s.recordInventoryExpense(ctx, tx, adminID, product, product.Stock,
				fmt.Sprintf("Inventory purchase - %s", product.Name),
				fmt.Sprintf("Initial stock: %d units at %s each", product.Stock, product.OriginalPrice))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *CatalogService) Get(ctx context.Context, id int64) (*model.Product, error) {
	cacheKey := fmt.Sprintf("product:%d", id)

	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, cacheKey).Result(); err == nil {
			product := &model.Product{}
			if json.Unmarshal([]byte(cached), product) == nil {
				return product, nil
			}
		}
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil || !product.IsActive {
		return nil, ErrProductNotFound
	}

	if s.redisClient != nil {
		if data, err := json.Marshal(product); err == nil {
			s.redisClient.Set(ctx, cacheKey, data, productCacheTTL)
		}
	}
	return product, nil
}

func (s *CatalogService) List(ctx context.Context, req dto.ListProductsRequest) ([]model.Product, int, error) {
	filter := repository.ProductFilter{
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Featured:    req.Featured,
		OnSale:      req.OnSale,
		InStock:     req.InStock,
		Search:      req.Search,
		Sort:        req.Sort,
		Limit:       req.Limit,
		Offset:      (req.Page - 1) * req.Limit,
	}
	if req.MinPrice != "" {
		min, err := decimal.NewFromString(req.MinPrice)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: invalid minPrice %q", ErrValidation, req.MinPrice)
		}
		filter.MinPrice = &min
	}
	if req.MaxPrice != "" {
		max, err := decimal.NewFromString(req.MaxPrice)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: invalid maxPrice %q", ErrValidation, req.MaxPrice)
		}
		filter.MaxPrice = &max
	}
	return s.productRepo.List(ctx, filter)
}

func (s *CatalogService) Update(ctx context.Context, adminID, id int64, req dto.UpdateProductRequest) (*model.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	oldStock := product.Stock
	applyProductUpdate(product, req)

	err = s.txRunner.WithinTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.productRepo.Update(ctx, tx, product); err != nil {
			return err
		}
		// A stock increase with a known cost basis is a restock purchase.
		added := product.Stock - oldStock
		if added > 0 && product.OriginalPrice != nil {
			return s.recordInventoryExpense(ctx, tx, adminID, product, added,
				fmt.Sprintf("Inventory restock - %s", product.Name),
				fmt.Sprintf("Stock added: %d units at %s each", added, product.OriginalPrice))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, id)
	return product, nil
}

// Delete soft-deletes: the row stays so order snapshots and ledger references
// keep resolving.
func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	if err := s.productRepo.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.invalidateCache(ctx, id)
	return nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	return s.productRepo.Categories(ctx)
}

func (s *CatalogService) recordInventoryExpense(ctx context.Context, tx pgx.Tx, adminID int64, product *model.Product, units int, description, notes string) error {
	cost := product.OriginalPrice.Mul(decimal.NewFromInt(int64(units)))
	return s.txnRepo.Insert(ctx, tx, &model.Transaction{
		Type:            model.TransactionExpense,
		Category:        "inventory",
		Amount:          cost,
		Description:     description,
		Reference:       fmt.Sprintf("PRODUCT-%d", product.ID),
		UserID:          adminID,
		TransactionDate: time.Now(),
		Notes:           notes,
	})
}

func (s *CatalogService) invalidateCache(ctx context.Context, id int64) {
	if s.redisClient != nil {
		s.redisClient.Del(ctx, fmt.Sprintf("product:%d", id))
	}
}

func applyProductUpdate(product *model.Product, req dto.UpdateProductRequest) {
	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.OriginalPrice != nil {
		product.OriginalPrice = req.OriginalPrice
	}
	if req.SalePrice != nil {
		product.SalePrice = req.SalePrice
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Subcategory != nil {
		product.Subcategory = *req.Subcategory
	}
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.Sizes != nil {
		product.Sizes = req.Sizes
	}
	if req.Colors != nil {
		product.Colors = req.Colors
	}
	if req.Tags != nil {
		product.Tags = req.Tags
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
		product.InStock = *req.Stock > 0
	}
	if req.Featured != nil {
		product.Featured = *req.Featured
	}
	if req.OnSale != nil {
		product.OnSale = *req.OnSale
	}
	if req.Discount != nil {
		product.Discount = *req.Discount
	}
	if req.Brand != nil {
		product.Brand = *req.Brand
	}
}
