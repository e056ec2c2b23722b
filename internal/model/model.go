package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        int64
	Name      string
	Email     string
	Password  string
	Role      string
	Phone     string
	Address   string
	City      string
	Country   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Product categories and subcategories accepted by the catalog.
const (
	CategoryWomen = "mujer"
	CategoryMen   = "hombre"
	CategoryMixed = "mixta"
)

var ValidSubcategories = []string{
	"camisas", "pantalones", "zapatos", "accesorios", "gorras", "medias", "descuentos",
}

type Color struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	OriginalPrice *decimal.Decimal // cost basis, feeds inventory expense entries
	SalePrice     *decimal.Decimal
	Category      string
	Subcategory   string
	Images        []string
	Sizes         []string
	Colors        []Color
	Tags          []string
	Stock         int
	InStock       bool
	Featured      bool
	OnSale        bool
	Discount      int
	Rating        decimal.Decimal
	NumReviews    int
	Brand         string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

const (
	PaymentMethodCard   = "card"
	PaymentMethodPaypal = "paypal"
	PaymentMethodCash   = "cash"
)

// OrderItem is a snapshot taken at checkout. Later catalog edits must not
// change what an order says it sold, so nothing here references live product
// data beyond the id.
type OrderItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Size      string          `json:"size,omitempty"`
	Color     string          `json:"color,omitempty"`
	Image     string          `json:"image,omitempty"`
}

type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// PaymentResult is the opaque record handed back by the payment provider.
type PaymentResult struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	UpdateTime   string `json:"updateTime,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

type Order struct {
	ID              int64
	UserID          int64
	Items           []OrderItem
	ShippingAddress ShippingAddress
	PaymentMethod   string
	PaymentResult   *PaymentResult
	ItemsPrice      decimal.Decimal
	TaxPrice        decimal.Decimal
	ShippingPrice   decimal.Decimal
	TotalPrice      decimal.Decimal
	IsPaid          bool
	PaidAt          *time.Time
	IsDelivered     bool
	DeliveredAt     *time.Time
	Status          OrderStatus
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

var (
	IncomeCategories  = []string{"sale", "refund", "other_income"}
	ExpenseCategories = []string{
		"inventory", "shipping", "marketing", "salary", "rent", "utilities", "other_expense",
	}
)

func ValidCategory(t TransactionType, category string) bool {
	var set []string
	switch t {
	case TransactionIncome:
		set = IncomeCategories
	case TransactionExpense:
		set = ExpenseCategories
	default:
		return false
	}
	for _, c := range set {
		if c == category {
			return true
		}
	}
	return false
}

// Transaction is a ledger entry. Sale entries are appended inside the order
// creation transaction; everything else is recorded by an admin.
type Transaction struct {
	ID              int64
	Type            TransactionType
	Category        string
	Amount          decimal.Decimal
	Description     string
	Reference       string
	OrderID         *int64
	UserID          int64
	TransactionDate time.Time
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderEvent struct {
	OrderID int64  `json:"order_id"`
	UserID  int64  `json:"user_id"`
	Status  string `json:"status"`
}
