package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleMerchant Role = "MERCHANT"
	RoleCustomer Role = "CUSTOMER"
)

func (r Role) Valid() bool {
	return r == RoleMerchant || r == RoleCustomer
}

type OrderType string

const (
	TypePickup   OrderType = "PICKUP"
	TypeDelivery OrderType = "DELIVERY"
)

// User is the session identity. Merchant attributes are empty for customers.
type User struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Role         Role     `json:"role"`
	StoreName    string   `json:"storeName,omitempty"`
	IsOpen       bool     `json:"isOpen"`
	BasePrepTime int      `json:"basePrepTime,omitempty"` // minutes
	OpeningTime  string   `json:"openingTime,omitempty"`  // HH:mm, shift 1
	ClosingTime  string   `json:"closingTime,omitempty"`
	OpeningTime2 string   `json:"openingTime2,omitempty"` // HH:mm, shift 2
	ClosingTime2 string   `json:"closingTime2,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
	Currency     string   `json:"currency,omitempty"`
}

// Product carries a denormalized copy of its merchant's display fields.
type Product struct {
	ID                 string          `json:"id"`
	MerchantID         string          `json:"merchantId"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	Stock              int             `json:"stock"`
	Description        string          `json:"description"`
	Category           string          `json:"category"`
	PrepTimeAdjustment int             `json:"prepTimeAdjustment"`
	ImageURL           string          `json:"imageUrl"`

	MerchantName     string   `json:"merchantName,omitempty"`
	MerchantOpening  string   `json:"merchantOpening,omitempty"`
	MerchantClosing  string   `json:"merchantClosing,omitempty"`
	MerchantOpening2 string   `json:"merchantOpening2,omitempty"`
	MerchantClosing2 string   `json:"merchantClosing2,omitempty"`
	MerchantLat      *float64 `json:"merchantLat,omitempty"`
	MerchantLng      *float64 `json:"merchantLng,omitempty"`
	Currency         string   `json:"currency,omitempty"`
}

// Order snapshots product name and price at creation; later product edits do
// not flow back into existing orders.
type Order struct {
	ID               string          `json:"id"`
	CustomerID       string          `json:"customerId"`
	MerchantID       string          `json:"merchantId"`
	ProductID        string          `json:"productId"`
	ProductName      string          `json:"productName"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	Currency         string          `json:"currency,omitempty"`
	Status           Status          `json:"status"`
	EstimatedMinutes int             `json:"estimatedMinutes"`
	CreatedAt        time.Time       `json:"createdAt"`
	Type             OrderType       `json:"type"`
}
