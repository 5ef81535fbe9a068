package coupang

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sellerbridge/sellerbridge/internal/apperrors"
	"github.com/sellerbridge/sellerbridge/internal/market"
	"github.com/sellerbridge/sellerbridge/internal/normalize"
)

const (
	productPath  = "/v2/providers/seller_api/apis/api/v1/marketplace/seller-products"
	orderPath    = "/v2/providers/seller_api/apis/api/v1/marketplace/orders"
	shipmentPath = "/v2/providers/seller_api/apis/api/v1/marketplace/orders/%s/shipment"
	cancelPath   = "/v2/providers/seller_api/apis/api/v1/marketplace/orders/%s/cancel"
)

// Config holds Coupang client settings
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// Client talks to the Coupang seller REST API with signed requests
type Client struct {
	baseURL    string
	maxRetries int
	baseDelay  time.Duration
	httpClient *http.Client

	// nowMs is swappable for signature tests
	nowMs func() int64
}

// NewClient creates a new Coupang client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	baseDelay := cfg.BaseDelay
	if baseDelay == 0 {
		baseDelay = 2 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		httpClient: &http.Client{Timeout: timeout},
		nowMs:      func() int64 { return time.Now().UnixMilli() },
	}
}

// request runs one signed REST call with bounded retry on transient failures
func (c *Client) request(ctx context.Context, creds market.Credentials, method, path string, query url.Values, payload interface{}, out interface{}) error {
	body := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = string(data)
	}

	queryString := query.Encode()
	fullURL := c.baseURL + path
	if queryString != "" {
		fullURL += "?" + queryString
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			log.Printf("🔁 Marketplace retry %d/%d after %v", attempt, c.maxRetries, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bytes.NewReader([]byte(body)))
		if err != nil {
			return err
		}

		timestamp := c.nowMs()
		req.Header.Set("Content-Type", "application/json;charset=UTF-8")
		req.Header.Set("Authorization", "CoupangAPIV2 "+creds.AccessKey)
		req.Header.Set("X-Coupang-API-Version", "1")
		req.Header.Set("X-Coupang-Signature", sign(creds.SecretKey, method, path, queryString, body, timestamp))
		req.Header.Set("X-Coupang-Timestamp", fmt.Sprintf("%d", timestamp))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return &apperrors.AuthenticationFailed{
				Account: creds.VendorID,
				Err:     fmt.Errorf("marketplace rejected credentials (status %d)", resp.StatusCode),
			}
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("marketplace returned status %d", resp.StatusCode)
			continue
		case resp.StatusCode >= 400:
			// Raw upstream bodies are logged, never relayed to users
			log.Printf("❌ Marketplace error (%d): %s", resp.StatusCode, string(respBody))
			return fmt.Errorf("marketplace rejected the request (status %d)", resp.StatusCode)
		}

		if out != nil {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to unmarshal response: %w", err)
			}
		}
		return nil
	}

	return &apperrors.MarketUnavailable{Err: lastErr}
}

// validateListing runs the local pre-flight checks used for both dry runs
// and real publishes.
func validateListing(item normalize.NormalizedItem) string {
	switch {
	case item.Name == "":
		return "missing_name"
	case item.SalePrice <= 0:
		return "non_positive_price"
	case item.CategoryKey == "":
		return "missing_category"
	}
	return ""
}

// listingPayload mirrors the marketplace product-create body
type listingPayload struct {
	SellerProductName string `json:"sellerProductName"`
	VendorID          string `json:"vendorId"`
	CategoryKey       string `json:"categoryKey"`
	Brand             string `json:"brand,omitempty"`
	SalePrice         int64  `json:"salePrice"`
	OriginalPrice     int64  `json:"originalPrice"`
	StockQuantity     int    `json:"stockQuantity"`
	ExternalVendorSku string `json:"externalVendorSku"`
}

// Publish pushes listings to the marketplace. dryRun performs all
// validation but makes no remote mutating call.
func (c *Client) Publish(ctx context.Context, creds market.Credentials, items []normalize.NormalizedItem, dryRun bool) (*market.PublishResult, error) {
	result := &market.PublishResult{
		Accepted: make([]string, 0, len(items)),
		Rejected: make(map[string]string),
		DryRun:   dryRun,
	}

	for _, item := range items {
		if reason := validateListing(item); reason != "" {
			result.Rejected[item.Key] = reason
			continue
		}

		if dryRun {
			result.Accepted = append(result.Accepted, item.Key)
			continue
		}

		payload := listingPayload{
			SellerProductName: item.Name,
			VendorID:          creds.VendorID,
			CategoryKey:       item.CategoryKey,
			Brand:             item.Brand,
			SalePrice:         item.SalePrice,
			OriginalPrice:     item.SalePrice,
			StockQuantity:     item.StockQuantity,
			ExternalVendorSku: item.Key,
		}

		err := c.request(ctx, creds, http.MethodPost, productPath, nil, payload, nil)
		if err != nil {
			// Context expiry and transient outages abort the batch so the
			// caller can retry it
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			if apperrors.IsRetryable(err) || apperrors.CodeOf(err) == apperrors.CodeAuthFailed {
				return result, err
			}
			result.Rejected[item.Key] = "listing_rejected"
			continue
		}
		result.Accepted = append(result.Accepted, item.Key)
	}

	return result, nil
}

// orderPayload mirrors the marketplace order shape
type orderPayload struct {
	OrderID     string          `json:"orderId"`
	Status      string          `json:"status"`
	ShippingFee int64           `json:"shippingPrice"`
	OrderedAt   time.Time       `json:"orderedAt"`
	Receiver    json.RawMessage `json:"receiver"`
	OrderItems  []struct {
		ExternalVendorSku string `json:"externalVendorSku"`
		ProductName       string `json:"sellerProductName"`
		ShippingCount     int    `json:"shippingCount"`
		SalesPrice        int64  `json:"salesPrice"`
	} `json:"orderItems"`
}

// FetchOrders lists marketplace orders created since the given time
func (c *Client) FetchOrders(ctx context.Context, creds market.Credentials, since time.Time) ([]market.MarketOrder, error) {
	query := url.Values{}
	query.Set("vendorId", creds.VendorID)
	query.Set("createdAtFrom", since.UTC().Format(time.RFC3339))

	var response struct {
		Data []orderPayload `json:"data"`
	}
	if err := c.request(ctx, creds, http.MethodGet, orderPath, query, nil, &response); err != nil {
		return nil, err
	}

	orders := make([]market.MarketOrder, 0, len(response.Data))
	for _, o := range response.Data {
		order := market.MarketOrder{
			OrderID:     o.OrderID,
			Status:      o.Status,
			ShippingFee: o.ShippingFee,
			Recipient:   o.Receiver,
			OrderedAt:   o.OrderedAt,
		}
		for _, it := range o.OrderItems {
			order.Lines = append(order.Lines, market.MarketOrderLine{
				ItemKey:     it.ExternalVendorSku,
				ProductName: it.ProductName,
				Quantity:    it.ShippingCount,
				UnitPrice:   it.SalesPrice,
			})
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// UpdateShipment reports tracking info back to the marketplace
func (c *Client) UpdateShipment(ctx context.Context, creds market.Credentials, orderID, trackingNumber, carrier string) error {
	payload := map[string]string{
		"vendorId":        creds.VendorID,
		"trackingNumber":  trackingNumber,
		"shippingCompany": carrier,
	}
	return c.request(ctx, creds, http.MethodPut, fmt.Sprintf(shipmentPath, orderID), nil, payload, nil)
}

// CancelOrder cancels a marketplace order
func (c *Client) CancelOrder(ctx context.Context, creds market.Credentials, orderID string) error {
	payload := map[string]string{"vendorId": creds.VendorID}
	return c.request(ctx, creds, http.MethodPost, fmt.Sprintf(cancelPath, orderID), nil, payload, nil)
}

var _ market.Adapter = (*Client)(nil)
