package coupang

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sellerbridge/sellerbridge/internal/apperrors"
	"github.com/sellerbridge/sellerbridge/internal/market"
	"github.com/sellerbridge/sellerbridge/internal/normalize"
)

func testClient(url string) *Client {
	c := NewClient(Config{
		BaseURL:    url,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
	})
	c.nowMs = func() int64 { return 1700000000000 }
	return c
}

func testCreds() market.Credentials {
	return market.Credentials{AccessKey: "AK", SecretKey: "SK", VendorID: "V1"}
}

func validItem(key string) normalize.NormalizedItem {
	return normalize.NormalizedItem{
		Key:           key,
		Name:          "Wool Scarf",
		CategoryKey:   "fashion",
		SupplierCost:  1000,
		SalePrice:     1300,
		MarginRate:    0.3,
		StockQuantity: 5,
	}
}

func TestRequestSignsEveryCall(t *testing.T) {
	var gotAuth, gotSig, gotTS string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotSig = r.Header.Get("X-Coupang-Signature")
		gotTS = r.Header.Get("X-Coupang-Timestamp")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.Publish(context.Background(), testCreds(), []normalize.NormalizedItem{validItem("A")}, false)
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if gotAuth != "CoupangAPIV2 AK" {
		t.Errorf("Authorization = %q, want CoupangAPIV2 AK", gotAuth)
	}
	if len(gotSig) != 64 {
		t.Errorf("signature header length = %d, want 64", len(gotSig))
	}
	if gotTS != "1700000000000" {
		t.Errorf("timestamp header = %q, want 1700000000000", gotTS)
	}
}

func TestPublishDryRunMakesNoRemoteCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(server.URL)
	items := []normalize.NormalizedItem{
		validItem("A"),
		{Key: "B", CategoryKey: "fashion", SalePrice: 100}, // missing name
		{Key: "C", Name: "Thing", CategoryKey: "fashion"},  // non-positive price
	}

	result, err := client.Publish(context.Background(), testCreds(), items, true)
	if err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("dry run made %d remote calls, want 0", calls)
	}
	if !result.DryRun {
		t.Error("result not flagged as dry run")
	}
	if len(result.Accepted) != 1 || result.Accepted[0] != "A" {
		t.Errorf("accepted = %v, want [A]", result.Accepted)
	}
	if result.Rejected["B"] != "missing_name" {
		t.Errorf("rejection for B = %q, want missing_name", result.Rejected["B"])
	}
	if result.Rejected["C"] != "non_positive_price" {
		t.Errorf("rejection for C = %q, want non_positive_price", result.Rejected["C"])
	}
}

func TestRequestRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := testClient(server.URL)
	result, err := client.Publish(context.Background(), testCreds(), []normalize.NormalizedItem{validItem("A")}, false)
	if err != nil {
		t.Fatalf("Publish returned error after retries: %v", err)
	}
	if len(result.Accepted) != 1 {
		t.Errorf("accepted = %v, want [A]", result.Accepted)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("made %d calls, want 3", calls)
	}
}

func TestRequestRejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := testClient(server.URL)
	_, err := client.Publish(context.Background(), testCreds(), []normalize.NormalizedItem{validItem("A")}, false)
	if err == nil {
		t.Fatal("expected error for rejected credentials")
	}
	if code := apperrors.CodeOf(err); code != apperrors.CodeAuthFailed {
		t.Errorf("error code = %s, want %s", code, apperrors.CodeAuthFailed)
	}
}

func TestPublishPropagatesExpiredContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	client := testClient(server.URL)
	result, err := client.Publish(ctx, testCreds(), []normalize.NormalizedItem{validItem("A")}, false)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if result != nil && result.Rejected["A"] != "" {
		t.Errorf("deadline expiry was folded into a per-item rejection: %v", result.Rejected)
	}
}

func TestFetchOrders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("vendorId") != "V1" {
			t.Errorf("vendorId query = %q, want V1", r.URL.Query().Get("vendorId"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{
					"orderId":       "ORD-1",
					"status":        "ACCEPT",
					"shippingPrice": 3000,
					"orderedAt":     time.Now().UTC().Format(time.RFC3339),
					"receiver":      map[string]string{"name": "Kim"},
					"orderItems": []map[string]interface{}{
						{"externalVendorSku": "A", "sellerProductName": "Wool Scarf", "shippingCount": 2, "salesPrice": 1300},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := testClient(server.URL)
	orders, err := client.FetchOrders(context.Background(), testCreds(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("FetchOrders returned error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(orders))
	}

	order := orders[0]
	if order.OrderID != "ORD-1" {
		t.Errorf("order id = %s, want ORD-1", order.OrderID)
	}
	if order.ShippingFee != 3000 {
		t.Errorf("shipping fee = %d, want 3000", order.ShippingFee)
	}
	if len(order.Lines) != 1 || order.Lines[0].ItemKey != "A" || order.Lines[0].Quantity != 2 {
		t.Errorf("lines = %+v, want one line for A x2", order.Lines)
	}
}
