package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solera/storefront-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// --- Product ---

type CreateProductRequest struct {
	Name          string           `json:"name" binding:"required,max=100"`
	Description   string           `json:"description" binding:"required,max=2000"`
	Price         decimal.Decimal  `json:"price" binding:"required"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	SalePrice     *decimal.Decimal `json:"salePrice"`
	Category      string           `json:"category" binding:"required,oneof=mujer hombre mixta"`
	Subcategory   string           `json:"subcategory" binding:"required,oneof=camisas pantalones zapatos accesorios gorras medias descuentos"`
	Images        []string         `json:"images"`
	Sizes         []string         `json:"sizes"`
	Colors        []model.Color    `json:"colors"`
	Tags          []string         `json:"tags"`
	Stock         int              `json:"stock" binding:"min=0"`
	Featured      bool             `json:"featured"`
	OnSale        bool             `json:"onSale"`
	Discount      int              `json:"discount" binding:"min=0,max=100"`
	Brand         string           `json:"brand"`
}

type UpdateProductRequest struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice"`
	SalePrice     *decimal.Decimal `json:"salePrice"`
	Category      *string          `json:"category" binding:"omitempty,oneof=mujer hombre mixta"`
	Subcategory   *string          `json:"subcategory" binding:"omitempty,oneof=camisas pantalones zapatos accesorios gorras medias descuentos"`
	Images        []string         `json:"images"`
	Sizes         []string         `json:"sizes"`
	Colors        []model.Color    `json:"colors"`
	Tags          []string         `json:"tags"`
	Stock         *int             `json:"stock" binding:"omitempty,min=0"`
	Featured      *bool            `json:"featured"`
	OnSale        *bool            `json:"onSale"`
	Discount      *int             `json:"discount" binding:"omitempty,min=0,max=100"`
	Brand         *string          `json:"brand"`
}

type ListProductsRequest struct {
	Page        int    `form:"page,default=1" binding:"min=1"`
	Limit       int    `form:"limit,default=12" binding:"min=1,max=100"`
	Category    string `form:"category"`
	Subcategory string `form:"subcategory"`
	Featured    *bool  `form:"featured"`
	OnSale      *bool  `form:"onSale"`
	InStock     *bool  `form:"inStock"`
	Search      string `form:"search"`
	MinPrice    string `form:"minPrice"`
	MaxPrice    string `form:"maxPrice"`
	Sort        string `form:"sort"`
}

type ProductResponse struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"originalPrice,omitempty"`
	SalePrice     *decimal.Decimal `json:"salePrice,omitempty"`
	Category      string           `json:"category"`
	Subcategory   string           `json:"subcategory"`
	Images        []string         `json:"images"`
	Sizes         []string         `json:"sizes"`
	Colors        []model.Color    `json:"colors"`
	Tags          []string         `json:"tags"`
	Stock         int              `json:"stock"`
	InStock       bool             `json:"inStock"`
	Featured      bool             `json:"featured"`
	OnSale        bool             `json:"onSale"`
	Discount      int              `json:"discount"`
	Rating        decimal.Decimal  `json:"rating"`
	NumReviews    int              `json:"numReviews"`
	Brand         string           `json:"brand,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Page     int               `json:"page"`
	Pages    int               `json:"pages"`
	Total    int               `json:"total"`
}

// --- Order ---

type OrderItemRequest struct {
	ProductID int64           `json:"product" binding:"required"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Image     string          `json:"image"`
}

type ShippingAddressRequest struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	ZipCode string `json:"zipCode" binding:"required"`
	Country string `json:"country"`
}

type CreateOrderRequest struct {
	OrderItems      []OrderItemRequest     `json:"orderItems"`
	ShippingAddress ShippingAddressRequest `json:"shippingAddress" binding:"required"`
	PaymentMethod   string                 `json:"paymentMethod" binding:"required,oneof=card paypal cash"`
	ItemsPrice      decimal.Decimal        `json:"itemsPrice"`
	TaxPrice        decimal.Decimal        `json:"taxPrice"`
	ShippingPrice   decimal.Decimal        `json:"shippingPrice"`
	TotalPrice      decimal.Decimal        `json:"totalPrice"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

type PayOrderRequest struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"update_time"`
	EmailAddress string `json:"email_address"`
}

type ListOrdersRequest struct {
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=20" binding:"min=1,max=100"`
	Status string `form:"status"`
	IsPaid *bool  `form:"isPaid"`
}

type OrderResponse struct {
	ID              int64                 `json:"id"`
	UserID          int64                 `json:"userId"`
	OrderItems      []model.OrderItem     `json:"orderItems"`
	ShippingAddress model.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                `json:"paymentMethod"`
	PaymentResult   *model.PaymentResult  `json:"paymentResult,omitempty"`
	ItemsPrice      decimal.Decimal       `json:"itemsPrice"`
	TaxPrice        decimal.Decimal       `json:"taxPrice"`
	ShippingPrice   decimal.Decimal       `json:"shippingPrice"`
	TotalPrice      decimal.Decimal       `json:"totalPrice"`
	IsPaid          bool                  `json:"isPaid"`
	PaidAt          *time.Time            `json:"paidAt,omitempty"`
	IsDelivered     bool                  `json:"isDelivered"`
	DeliveredAt     *time.Time            `json:"deliveredAt,omitempty"`
	Status          model.OrderStatus     `json:"status"`
	Notes           string                `json:"notes,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Page   int             `json:"page"`
	Pages  int             `json:"pages"`
	Total  int             `json:"total"`
}

// --- Transactions ---

type CreateTransactionRequest struct {
	Type            string          `json:"type" binding:"required,oneof=income expense"`
	Category        string          `json:"category" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Description     string          `json:"description" binding:"required"`
	Reference       string          `json:"reference"`
	OrderID         *int64          `json:"orderId"`
	TransactionDate string          `json:"transactionDate"`
	Notes           string          `json:"notes"`
}

type UpdateTransactionRequest struct {
	Type            *string          `json:"type" binding:"omitempty,oneof=income expense"`
	Category        *string          `json:"category"`
	Amount          *decimal.Decimal `json:"amount"`
	Description     *string          `json:"description"`
	Reference       *string          `json:"reference"`
	OrderID         *int64           `json:"orderId"`
	TransactionDate *string          `json:"transactionDate"`
	Notes           *string          `json:"notes"`
}

type ListTransactionsRequest struct {
	Page      int    `form:"page,default=1" binding:"min=1"`
	Limit     int    `form:"limit,default=50" binding:"min=1,max=200"`
	Type      string `form:"type"`
	Category  string `form:"category"`
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
}

type TransactionResponse struct {
	ID              int64                 `json:"id"`
	Type            model.TransactionType `json:"type"`
	Category        string                `json:"category"`
	Amount          decimal.Decimal       `json:"amount"`
	Description     string                `json:"description"`
	Reference       string                `json:"reference,omitempty"`
	OrderID         *int64                `json:"orderId,omitempty"`
	UserID          int64                 `json:"userId"`
	TransactionDate time.Time             `json:"transactionDate"`
	Notes           string                `json:"notes,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Page         int                   `json:"page"`
	Pages        int                   `json:"pages"`
	Total        int                   `json:"total"`
}

type SummaryPeriod struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

type FinancialSummaryResponse struct {
	TotalIncome        decimal.Decimal            `json:"totalIncome"`
	TotalExpenses      decimal.Decimal            `json:"totalExpenses"`
	NetProfit          decimal.Decimal            `json:"netProfit"`
	ProfitMargin       decimal.Decimal            `json:"profitMargin"`
	IncomeByCategory   map[string]decimal.Decimal `json:"incomeByCategory"`
	ExpensesByCategory map[string]decimal.Decimal `json:"expensesByCategory"`
	TransactionCount   int                        `json:"transactionCount"`
	Period             SummaryPeriod              `json:"period"`
}
