package supplier

import (
	"context"
	"encoding/json"
	"time"
)

// RawItem is one upstream SKU exactly as the supplier reports it, before
// normalization.
type RawItem struct {
	Key           string          `json:"key"`
	Name          string          `json:"name"`
	Brand         string          `json:"brand,omitempty"`
	CategoryName  string          `json:"categoryName"`
	Cost          int64           `json:"cost"`
	StockQuantity int             `json:"stockQuantity"`
	Options       []RawOption     `json:"options,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

// RawOption is one purchasable variant of a raw item
type RawOption struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// CategoryNode is one node of the supplier category tree
type CategoryNode struct {
	Key      string         `json:"key"`
	Name     string         `json:"name"`
	Children []CategoryNode `json:"children,omitempty"`
}

// OrderLine is one line of a supplier-side order request
type OrderLine struct {
	ItemKey  string `json:"itemKey"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

// PlaceOrderRequest asks the supplier to fulfil a mirrored marketplace order
type PlaceOrderRequest struct {
	Lines     []OrderLine            `json:"lines"`
	Recipient map[string]interface{} `json:"recipient"`
	Note      string                 `json:"note,omitempty"`
}

// OrderStatusInfo is the supplier's view of one order
type OrderStatusInfo struct {
	OrderKey        string     `json:"orderKey"`
	Status          string     `json:"status"`
	TrackingNumber  string     `json:"trackingNumber,omitempty"`
	ShippingCompany string     `json:"shippingCompany,omitempty"`
	ShippedAt       *time.Time `json:"shippedAt,omitempty"`
}

// Authenticator issues supplier API tokens. Split out so the token store
// does not depend on the full adapter surface.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}

// Adapter is the uniform interface to one upstream supplier's API.
// Implementations return partial results with per-item error annotations
// rather than failing a whole batch when only some keys are invalid.
type Adapter interface {
	Authenticator

	// FetchItems returns the resolvable items plus a key -> reason map for
	// the ones the supplier rejected.
	FetchItems(ctx context.Context, token string, keys []string) ([]RawItem, map[string]string, error)

	// FetchItemPage walks the supplier catalog; an empty cursor starts from
	// the beginning, an empty returned cursor means the last page.
	FetchItemPage(ctx context.Context, token, cursor string, limit int) ([]RawItem, string, error)

	FetchCategories(ctx context.Context, token string) ([]CategoryNode, error)

	PlaceOrder(ctx context.Context, token string, req PlaceOrderRequest) (string, error)
	FetchOrder(ctx context.Context, token, orderKey string) (*OrderStatusInfo, error)
	CancelOrder(ctx context.Context, token, orderKey string) error
}
