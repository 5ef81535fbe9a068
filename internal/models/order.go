package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OrderStatus defines possible order statuses
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Order mirrors a marketplace order on the supplier side. Terminal once
// delivered or cancelled.
type Order struct {
	ID        uint `gorm:"primaryKey" json:"id"`
	AccountID uint `gorm:"index;not null" json:"accountId"`

	// Marketplace-side order id and supplier-side order key
	MarketOrderID string `gorm:"uniqueIndex;not null" json:"marketOrderId"`
	OrderKey      string `gorm:"index" json:"orderKey"`

	Status OrderStatus `gorm:"default:pending;index" json:"status"`

	// Amounts in currency minimum unit
	ShippingFee int64 `gorm:"default:0" json:"shippingFee"`
	TotalPrice  int64 `json:"totalPrice"`

	// Shipping
	TrackingNumber  string     `json:"trackingNumber,omitempty"`
	ShippingCompany string     `json:"shippingCompany,omitempty"`
	ShippedAt       *time.Time `json:"shippedAt,omitempty"`

	RecipientInfo datatypes.JSON `gorm:"type:jsonb" json:"recipientInfo,omitempty"`
	Note          string         `gorm:"type:text" json:"note,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Items   []OrderItem      `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Account *SupplierAccount `gorm:"foreignKey:AccountID" json:"-"`
}

// TableName specifies the table name
func (Order) TableName() string {
	return "orders"
}

// IsTerminal reports whether the order reached a final state
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled
}

// ComputeTotal returns the invariant total: sum of line prices plus shipping fee
func (o *Order) ComputeTotal() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.UnitPrice * int64(it.Quantity)
	}
	return total + o.ShippingFee
}

// OrderItem is one line of an order
type OrderItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"index;not null" json:"orderId"`

	ItemKey     string `gorm:"index;not null" json:"itemKey"`
	ProductName string `gorm:"not null" json:"productName"`
	Quantity    int    `gorm:"not null" json:"quantity"`
	UnitPrice   int64  `gorm:"not null" json:"unitPrice"`

	OptionInfo datatypes.JSON `gorm:"type:jsonb" json:"optionInfo,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name
func (OrderItem) TableName() string {
	return "order_items"
}
