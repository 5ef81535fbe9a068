package market

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sellerbridge/sellerbridge/internal/normalize"
)

// PublishResult reports the per-item outcome of one listing publish
type PublishResult struct {
	Accepted []string          `json:"accepted"`
	Rejected map[string]string `json:"rejected"` // item key -> reason
	DryRun   bool              `json:"dryRun"`
}

// MarketOrderLine is one line of a marketplace order
type MarketOrderLine struct {
	ItemKey     string `json:"itemKey"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unitPrice"`
}

// MarketOrder is a customer order observed on the marketplace
type MarketOrder struct {
	OrderID     string            `json:"orderId"`
	Status      string            `json:"status"`
	Lines       []MarketOrderLine `json:"lines"`
	ShippingFee int64             `json:"shippingFee"`
	Recipient   json.RawMessage   `json:"recipient,omitempty"`
	OrderedAt   time.Time         `json:"orderedAt"`
}

// Credentials identifies one marketplace seller account
type Credentials struct {
	AccessKey string
	SecretKey string
	VendorID  string
}

// Adapter is the uniform interface to one downstream marketplace.
// Publish with dryRun=true performs all validation but makes no remote
// mutating call.
type Adapter interface {
	Publish(ctx context.Context, creds Credentials, items []normalize.NormalizedItem, dryRun bool) (*PublishResult, error)
	FetchOrders(ctx context.Context, creds Credentials, since time.Time) ([]MarketOrder, error)
	UpdateShipment(ctx context.Context, creds Credentials, orderID, trackingNumber, carrier string) error
	CancelOrder(ctx context.Context, creds Credentials, orderID string) error
}
