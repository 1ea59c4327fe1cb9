// Package model defines the core domain types shared across the sales engine.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Immutable reference data keyed by SKU.
type Product struct {
	SKU           string          `json:"sku" yaml:"sku" db:"sku" validate:"required"`
	Name          string          `json:"name,omitempty" yaml:"name,omitempty" db:"name"`
	Category      string          `json:"category,omitempty" yaml:"category,omitempty" db:"category"`
	PurchasePrice decimal.Decimal `json:"purchase_price" yaml:"purchase_price" db:"purchase_price" validate:"dgte=0"`
	SalePrice     decimal.Decimal `json:"sale_price" yaml:"sale_price" db:"sale_price" validate:"dgte=0"` // catalog list price
}

// Seller is a salesperson. Name is rendered as "first last".
type Seller struct {
	ID        string `json:"id" yaml:"id" db:"id" validate:"required"`
	FirstName string `json:"first_name" yaml:"first_name" db:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name" db:"last_name"`
	StartDate string `json:"start_date,omitempty" yaml:"start_date,omitempty" db:"start_date"`
	Position  string `json:"position,omitempty" yaml:"position,omitempty" db:"position"`
}

// FullName returns the display name used in reports.
func (s Seller) FullName() string {
	return s.FirstName + " " + s.LastName
}

// Customer is carried with the dataset but not used by the analysis.
type Customer struct {
	ID        string `json:"id" yaml:"id" db:"id"`
	FirstName string `json:"first_name" yaml:"first_name" db:"first_name"`
	LastName  string `json:"last_name" yaml:"last_name" db:"last_name"`
	Phone     string `json:"phone,omitempty" yaml:"phone,omitempty" db:"phone"`
	Email     string `json:"email,omitempty" yaml:"email,omitempty" db:"email"`
}

// PurchaseItem is one line of a receipt.
type PurchaseItem struct {
	SKU       string          `json:"sku" yaml:"sku" db:"sku" validate:"required"`
	Quantity  int             `json:"quantity" yaml:"quantity" db:"quantity" validate:"gte=1"`
	SalePrice decimal.Decimal `json:"sale_price" yaml:"sale_price" db:"sale_price" validate:"dgte=0"`
	Discount  decimal.Decimal `json:"discount" yaml:"discount" db:"discount" validate:"dgte=0,dlte=100"` // percent
}

// PurchaseRecord is one checkout event. Immutable once ingested.
type PurchaseRecord struct {
	ReceiptID     string          `json:"receipt_id,omitempty" yaml:"receipt_id,omitempty" db:"receipt_id"`
	Date          string          `json:"date,omitempty" yaml:"date,omitempty" db:"date"`
	SellerID      string          `json:"seller_id" yaml:"seller_id" db:"seller_id" validate:"required"`
	CustomerID    string          `json:"customer_id,omitempty" yaml:"customer_id,omitempty" db:"customer_id"`
	Items         []PurchaseItem  `json:"items" yaml:"items" validate:"dive"`
	TotalAmount   decimal.Decimal `json:"total_amount" yaml:"total_amount" db:"total_amount"`
	TotalDiscount decimal.Decimal `json:"total_discount" yaml:"total_discount" db:"total_discount"`
}

// Dataset is a snapshot of everything the report is computed from.
type Dataset struct {
	Customers       []Customer       `json:"customers" yaml:"customers"`
	Products        []Product        `json:"products" yaml:"products" validate:"dive"`
	Sellers         []Seller         `json:"sellers" yaml:"sellers" validate:"required,min=1,dive"`
	PurchaseRecords []PurchaseRecord `json:"purchase_records" yaml:"purchase_records" validate:"dive"`
}

// ProductQuantity is one entry of a seller's top-products list.
type ProductQuantity struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// SellerReport is the externally visible per-seller result. Money fields
// are rounded to two decimal places.
type SellerReport struct {
	SellerID    string            `json:"seller_id"`
	Name        string            `json:"name"`
	Revenue     decimal.Decimal   `json:"revenue"`
	Profit      decimal.Decimal   `json:"profit"`
	SalesCount  int               `json:"sales_count"`
	TopProducts []ProductQuantity `json:"top_products"`
	Bonus       decimal.Decimal   `json:"bonus"`
}

// Report wraps one pipeline run for transport. Sellers are in rank order.
type Report struct {
	ID          string         `json:"report_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Sellers     []SellerReport `json:"sellers"`
}
