package ownerclan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sellerbridge/sellerbridge/internal/apperrors"
	"github.com/sellerbridge/sellerbridge/internal/supplier"
)

// Config holds OwnerClan client settings
type Config struct {
	APIURL     string
	AuthURL    string
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// Client talks to the OwnerClan seller GraphQL API
type Client struct {
	apiURL     string
	authURL    string
	maxRetries int
	baseDelay  time.Duration
	httpClient *http.Client
}

// NewClient creates a new OwnerClan client
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
		apiURL:     cfg.APIURL,
		authURL:    cfg.AuthURL,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// graphQLRequest represents a GraphQL request
type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// graphQLResponse represents a GraphQL response
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

type graphQLError struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

// Authenticate issues a seller JWT from the auth endpoint
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	payload := map[string]string{
		"service":  "ownerclan",
		"userType": "seller",
		"username": username,
		"password": password,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &apperrors.SupplierUnavailable{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &apperrors.SupplierUnavailable{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ Supplier auth rejected (%d): %s", resp.StatusCode, string(respBody))
		return "", &apperrors.AuthenticationFailed{
			Account: username,
			Err:     fmt.Errorf("auth endpoint returned status %d", resp.StatusCode),
		}
	}

	// The auth endpoint answers with the raw JWT body
	token := strings.TrimSpace(string(respBody))
	if strings.HasPrefix(token, "eyJ") {
		return token, nil
	}

	// Fall back to a JSON envelope
	var envelope struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.AccessToken != "" {
		return envelope.AccessToken, nil
	}

	return "", &apperrors.AuthenticationFailed{
		Account: username,
		Err:     fmt.Errorf("auth endpoint returned an unrecognized token payload"),
	}
}

// execute runs one GraphQL query with bounded retry on transient failures
func (c *Client) execute(ctx context.Context, token, query string, variables map[string]interface{}, out interface{}) error {
	reqBody := graphQLRequest{Query: query, Variables: variables}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<(attempt-1))
			log.Printf("🔁 Supplier retry %d/%d after %v", attempt, c.maxRetries, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return &apperrors.AuthenticationFailed{
				Err: fmt.Errorf("supplier rejected token (status %d)", resp.StatusCode),
			}
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("supplier returned status %d", resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("supplier returned status %d: %s", resp.StatusCode, string(body))
		}

		var gqlResp graphQLResponse
		if err := json.Unmarshal(body, &gqlResp); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}

		if len(gqlResp.Errors) > 0 {
			messages := make([]string, len(gqlResp.Errors))
			for i, e := range gqlResp.Errors {
				messages[i] = e.Message
			}
			return fmt.Errorf("graphQL errors: %s", strings.Join(messages, "; "))
		}

		if out != nil {
			if err := json.Unmarshal(gqlResp.Data, out); err != nil {
				return fmt.Errorf("failed to unmarshal data: %w", err)
			}
		}
		return nil
	}

	return &apperrors.SupplierUnavailable{Err: lastErr}
}

// itemPayload mirrors the GraphQL item shape
type itemPayload struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Model    string `json:"model"`
	Category struct {
		Name string `json:"name"`
	} `json:"category"`
	Price   int64 `json:"price"`
	Options []struct {
		Price            int64 `json:"price"`
		Quantity         int   `json:"quantity"`
		OptionAttributes []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"optionAttributes"`
	} `json:"options"`
}

func (p *itemPayload) toRawItem() supplier.RawItem {
	item := supplier.RawItem{
		Key:          p.Key,
		Name:         p.Name,
		Brand:        p.Model,
		CategoryName: p.Category.Name,
		Cost:         p.Price,
	}
	for _, o := range p.Options {
		opt := supplier.RawOption{Price: o.Price, Quantity: o.Quantity}
		if len(o.OptionAttributes) > 0 {
			opt.Name = o.OptionAttributes[0].Name
			opt.Value = o.OptionAttributes[0].Value
		}
		item.Options = append(item.Options, opt)
		item.StockQuantity += o.Quantity
	}
	if raw, err := json.Marshal(p); err == nil {
		item.Raw = raw
	}
	return item
}

// FetchItems resolves items by key, annotating unresolvable keys instead
// of failing the batch.
func (c *Client) FetchItems(ctx context.Context, token string, keys []string) ([]supplier.RawItem, map[string]string, error) {
	items := make([]supplier.RawItem, 0, len(keys))
	itemErrors := make(map[string]string)

	for _, key := range keys {
		var result struct {
			Item *itemPayload `json:"item"`
		}
		err := c.execute(ctx, token, queryItem, map[string]interface{}{"key": key}, &result)
		if err != nil {
			// Context expiry, transient outages and auth failures abort the
			// batch; only invalid keys are annotated.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return items, itemErrors, err
			}
			if apperrors.IsRetryable(err) || apperrors.CodeOf(err) == apperrors.CodeAuthFailed {
				return items, itemErrors, err
			}
			itemErrors[key] = "item_lookup_failed"
			continue
		}
		if result.Item == nil {
			itemErrors[key] = "item_not_found"
			continue
		}
		items = append(items, result.Item.toRawItem())
	}

	return items, itemErrors, nil
}

// FetchItemPage walks the full catalog with cursor pagination
func (c *Client) FetchItemPage(ctx context.Context, token, cursor string, limit int) ([]supplier.RawItem, string, error) {
	variables := map[string]interface{}{"first": limit}
	if cursor != "" {
		variables["after"] = cursor
	}

	var result struct {
		AllItems struct {
			Edges []struct {
				Node   itemPayload `json:"node"`
				Cursor string      `json:"cursor"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool   `json:"hasNextPage"`
				EndCursor   string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"allItems"`
	}

	if err := c.execute(ctx, token, queryItemPage, variables, &result); err != nil {
		return nil, "", err
	}

	items := make([]supplier.RawItem, 0, len(result.AllItems.Edges))
	for _, edge := range result.AllItems.Edges {
		node := edge.Node
		items = append(items, node.toRawItem())
	}

	next := ""
	if result.AllItems.PageInfo.HasNextPage {
		next = result.AllItems.PageInfo.EndCursor
	}
	return items, next, nil
}

// FetchCategories returns the supplier category tree
func (c *Client) FetchCategories(ctx context.Context, token string) ([]supplier.CategoryNode, error) {
	var result struct {
		Categories []supplier.CategoryNode `json:"categories"`
	}
	if err := c.execute(ctx, token, queryCategories, nil, &result); err != nil {
		return nil, err
	}
	return result.Categories, nil
}

// PlaceOrder creates a supplier-side order and returns its order key
func (c *Client) PlaceOrder(ctx context.Context, token string, req supplier.PlaceOrderRequest) (string, error) {
	products := make([]map[string]interface{}, 0, len(req.Lines))
	for _, line := range req.Lines {
		products = append(products, map[string]interface{}{
			"itemKey":  line.ItemKey,
			"quantity": line.Quantity,
			"price":    line.Price,
		})
	}

	var result struct {
		CreateOrder struct {
			Key string `json:"key"`
		} `json:"createOrder"`
	}
	err := c.execute(ctx, token, mutationCreateOrder, map[string]interface{}{
		"input": map[string]interface{}{
			"products":  products,
			"recipient": req.Recipient,
			"note":      req.Note,
		},
	}, &result)
	if err != nil {
		return "", err
	}
	if result.CreateOrder.Key == "" {
		return "", fmt.Errorf("supplier did not return an order key")
	}
	return result.CreateOrder.Key, nil
}

// FetchOrder returns the supplier's view of one order
func (c *Client) FetchOrder(ctx context.Context, token, orderKey string) (*supplier.OrderStatusInfo, error) {
	var result struct {
		Order *struct {
			Key             string `json:"key"`
			Status          string `json:"status"`
			TrackingNumber  string `json:"trackingNumber"`
			ShippingCompany string `json:"shippingCompany"`
			ShippedDate     string `json:"shippedDate"`
		} `json:"order"`
	}
	if err := c.execute(ctx, token, queryOrder, map[string]interface{}{"key": orderKey}, &result); err != nil {
		return nil, err
	}
	if result.Order == nil {
		return nil, fmt.Errorf("order %s not found at supplier", orderKey)
	}

	info := &supplier.OrderStatusInfo{
		OrderKey:        result.Order.Key,
		Status:          result.Order.Status,
		TrackingNumber:  result.Order.TrackingNumber,
		ShippingCompany: result.Order.ShippingCompany,
	}
	if result.Order.ShippedDate != "" {
		if ts, err := time.Parse(time.RFC3339, result.Order.ShippedDate); err == nil {
			info.ShippedAt = &ts
		}
	}
	return info, nil
}

// CancelOrder requests a supplier-side cancellation
func (c *Client) CancelOrder(ctx context.Context, token, orderKey string) error {
	var result struct {
		CancelOrder struct {
			Key string `json:"key"`
		} `json:"cancelOrder"`
	}
	return c.execute(ctx, token, mutationCancelOrder, map[string]interface{}{"key": orderKey}, &result)
}

var _ supplier.Adapter = (*Client)(nil)
