package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sellerbridge/sellerbridge/internal/apperrors"
	"github.com/sellerbridge/sellerbridge/internal/config"
	"github.com/sellerbridge/sellerbridge/internal/market"
	"github.com/sellerbridge/sellerbridge/internal/models"
	"github.com/sellerbridge/sellerbridge/internal/normalize"
	"github.com/sellerbridge/sellerbridge/internal/supplier"
	"github.com/sellerbridge/sellerbridge/internal/tasks"
)

// fakeProgress records task-side reporting without a tracker
type fakeProgress struct {
	cancelled   atomic.Bool
	total       int
	processed   int
	result      interface{}
	onProcessed func(n int)
}

func (p *fakeProgress) ID() string              { return "task-test" }
func (p *fakeProgress) Cancelled() bool         { return p.cancelled.Load() }
func (p *fakeProgress) SetTotal(total int)      { p.total = total }
func (p *fakeProgress) SetResult(v interface{}) { p.result = v }
func (p *fakeProgress) AddProcessed(n int) {
	p.processed += n
	if p.onProcessed != nil {
		p.onProcessed(n)
	}
}

// fakeStore is an in-memory stand-in for the gorm-backed batch storage
type fakeStore struct {
	mu        sync.Mutex
	histories []*models.SyncHistory
	products  map[string]*models.Product
	synced    map[string]bool
	failed    map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: make(map[string]*models.Product),
		synced:   make(map[string]bool),
		failed:   make(map[string]string),
	}
}

func (f *fakeStore) CreateHistory(h *models.SyncHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h.ID = int64(len(f.histories) + 1)
	f.histories = append(f.histories, h)
	return nil
}

func (f *fakeStore) SaveHistory(h *models.SyncHistory) error { return nil }

func (f *fakeStore) UpsertProduct(p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ItemKey] = p
	return nil
}

func (f *fakeStore) MarkProductSynced(accountID uint, itemKey string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synced[itemKey] = true
}

func (f *fakeStore) MarkProductFailed(accountID uint, itemKey, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[itemKey] = reason
}

func (f *fakeStore) TouchAccountSync(accountID uint) {}

type fakeTokens struct{}

func (f *fakeTokens) GetValidToken(ctx context.Context, accountID uint) (*models.SupplierToken, error) {
	return &models.SupplierToken{AccountID: accountID, Value: "tok"}, nil
}

// fakeSupplier resolves every requested key unless fetchErr is set
type fakeSupplier struct {
	mu         sync.Mutex
	fetchCalls int
	fetchErr   error
}

func (f *fakeSupplier) Authenticate(ctx context.Context, username, password string) (string, error) {
	return "tok", nil
}

func (f *fakeSupplier) FetchItems(ctx context.Context, token string, keys []string) ([]supplier.RawItem, map[string]string, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, nil, f.fetchErr
	}
	items := make([]supplier.RawItem, 0, len(keys))
	for _, key := range keys {
		items = append(items, supplier.RawItem{
			Key:           key,
			Name:          "Item " + key,
			CategoryName:  "Fashion & Apparel",
			Cost:          1000,
			StockQuantity: 3,
		})
	}
	return items, map[string]string{}, nil
}

func (f *fakeSupplier) FetchItemPage(ctx context.Context, token, cursor string, limit int) ([]supplier.RawItem, string, error) {
	return nil, "", nil
}

func (f *fakeSupplier) FetchCategories(ctx context.Context, token string) ([]supplier.CategoryNode, error) {
	return nil, nil
}

func (f *fakeSupplier) PlaceOrder(ctx context.Context, token string, req supplier.PlaceOrderRequest) (string, error) {
	return "", nil
}

func (f *fakeSupplier) FetchOrder(ctx context.Context, token, orderKey string) (*supplier.OrderStatusInfo, error) {
	return nil, nil
}

func (f *fakeSupplier) CancelOrder(ctx context.Context, token, orderKey string) error { return nil }

// fakeMarket accepts every valid listing after the first `failures`
// Publish calls, which fail with a retryable outage.
type fakeMarket struct {
	mu       sync.Mutex
	calls    int
	failures int
}

func (f *fakeMarket) Publish(ctx context.Context, creds market.Credentials, items []normalize.NormalizedItem, dryRun bool) (*market.PublishResult, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if n <= f.failures {
		return nil, &apperrors.MarketUnavailable{Err: errors.New("upstream 503")}
	}
	result := &market.PublishResult{Rejected: map[string]string{}, DryRun: dryRun}
	for _, item := range items {
		result.Accepted = append(result.Accepted, item.Key)
	}
	return result, nil
}

func (f *fakeMarket) FetchOrders(ctx context.Context, creds market.Credentials, since time.Time) ([]market.MarketOrder, error) {
	return nil, nil
}

func (f *fakeMarket) UpdateShipment(ctx context.Context, creds market.Credentials, orderID, trackingNumber, carrier string) error {
	return nil
}

func (f *fakeMarket) CancelOrder(ctx context.Context, creds market.Credentials, orderID string) error {
	return nil
}

func newTestOrchestrator(sup supplier.Adapter, mkt market.Adapter, st store) *Orchestrator {
	return &Orchestrator{
		store:    st,
		tokens:   &fakeTokens{},
		supplier: sup,
		market:   mkt,
		cats:     normalize.NewCategoryMapper(map[string]string{"fashion": "Fashion & Apparel"}),
		cfg: &config.SyncConfig{
			DefaultMarginRate: 0.3,
			MinMarginRate:     0.1,
			MaxMarginRate:     0.5,
			BatchSize:         50,
			WorkerCount:       5,
			MaxRetries:        3,
			RetryBaseDelay:    time.Millisecond,
		},
	}
}

func testAccount() *models.SupplierAccount {
	return &models.SupplierAccount{
		ID:              1,
		AccountName:     "main",
		Username:        "seller",
		MarketAccessKey: "AK",
		MarketSecretKey: "SK",
		MarketVendorID:  "V1",
		IsActive:        true,
		SyncEnabled:     true,
	}
}

func itemKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("K%03d", i)
	}
	return keys
}

func TestProcessBatchPartialOutcome(t *testing.T) {
	st := newFakeStore()
	o := newTestOrchestrator(&fakeSupplier{}, &fakeMarket{}, st)

	raws := make([]supplier.RawItem, 0, 50)
	for i := 0; i < 50; i++ {
		raw := supplier.RawItem{
			Key:           fmt.Sprintf("K%03d", i),
			Name:          fmt.Sprintf("Item %03d", i),
			CategoryName:  "Fashion & Apparel",
			Cost:          1000,
			StockQuantity: 3,
		}
		if i == 7 {
			raw.Name = "" // malformed item in an otherwise valid batch
		}
		raws = append(raws, raw)
	}

	succeeded, failed := o.processBatch(context.Background(), &fakeProgress{}, testAccount(), 0, models.SyncTypeIngest, raws, nil, 0.3, false)
	if succeeded != 49 || failed != 1 {
		t.Fatalf("succeeded/failed = %d/%d, want 49/1", succeeded, failed)
	}

	if len(st.histories) != 1 {
		t.Fatalf("got %d history rows, want 1", len(st.histories))
	}
	hist := st.histories[0]
	if hist.Status != models.BatchPartiallySucceeded {
		t.Errorf("batch status = %s, want %s", hist.Status, models.BatchPartiallySucceeded)
	}
	if hist.SuccessCount != 49 || hist.FailureCount != 1 {
		t.Errorf("counts = %d/%d, want 49/1", hist.SuccessCount, hist.FailureCount)
	}
	if hist.ErrorMap["K007"] != apperrors.CodeValidation {
		t.Errorf("error map entry for K007 = %v, want %s", hist.ErrorMap["K007"], apperrors.CodeValidation)
	}

	if len(st.products) != 49 {
		t.Errorf("catalog has %d products, want 49 (malformed item never upserted)", len(st.products))
	}
	if !st.synced["K000"] || st.synced["K007"] {
		t.Errorf("sync flags wrong: K000=%v K007=%v", st.synced["K000"], st.synced["K007"])
	}
	if st.failed["K007"] != apperrors.CodeValidation {
		t.Errorf("failure reason for K007 = %q, want %s", st.failed["K007"], apperrors.CodeValidation)
	}
}

func TestPublishBatchRetriesTransientOutage(t *testing.T) {
	st := newFakeStore()
	mkt := &fakeMarket{failures: 2}
	o := newTestOrchestrator(&fakeSupplier{}, mkt, st)

	items := []normalize.NormalizedItem{{
		Key: "K1", Name: "Item", CategoryKey: "fashion",
		SupplierCost: 1000, SalePrice: 1300, MarginRate: 0.3, StockQuantity: 1,
	}}
	succeeded, failed := o.publishBatch(context.Background(), &fakeProgress{}, testAccount(), 0, models.SyncTypePublish, items, nil, false)
	if succeeded != 1 || failed != 0 {
		t.Fatalf("succeeded/failed = %d/%d, want 1/0", succeeded, failed)
	}
	if mkt.calls != 3 {
		t.Errorf("publish calls = %d, want 3 (two outages then success)", mkt.calls)
	}

	hist := st.histories[0]
	if hist.Status != models.BatchSucceeded {
		t.Errorf("batch status = %s, want %s", hist.Status, models.BatchSucceeded)
	}
	if hist.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", hist.RetryCount)
	}
}

func TestPublishBatchExhaustsRetries(t *testing.T) {
	st := newFakeStore()
	o := newTestOrchestrator(&fakeSupplier{}, &fakeMarket{failures: 100}, st)

	items := []normalize.NormalizedItem{{
		Key: "K1", Name: "Item", CategoryKey: "fashion",
		SupplierCost: 1000, SalePrice: 1300, MarginRate: 0.3, StockQuantity: 1,
	}}
	succeeded, failed := o.publishBatch(context.Background(), &fakeProgress{}, testAccount(), 0, models.SyncTypePublish, items, nil, false)
	if succeeded != 0 || failed != 1 {
		t.Fatalf("succeeded/failed = %d/%d, want 0/1", succeeded, failed)
	}
	hist := st.histories[0]
	if hist.Status != models.BatchFailed {
		t.Errorf("batch status = %s, want %s", hist.Status, models.BatchFailed)
	}
	if hist.ErrorMap["K1"] != apperrors.CodeMarketDown {
		t.Errorf("error map entry = %v, want %s", hist.ErrorMap["K1"], apperrors.CodeMarketDown)
	}
}

func TestKeyedIngestCancelBetweenBatches(t *testing.T) {
	st := newFakeStore()
	sup := &fakeSupplier{}
	o := newTestOrchestrator(sup, &fakeMarket{}, st)

	h := &fakeProgress{}
	h.onProcessed = func(int) { h.cancelled.Store(true) }

	err := o.runKeyedIngest(context.Background(), h, testAccount(), IngestRequest{
		AccountID: 1,
		ItemKeys:  itemKeys(100),
	})
	if !errors.Is(err, tasks.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
	if sup.fetchCalls != 1 {
		t.Errorf("fetch calls = %d, want 1 (cancel observed at the batch boundary)", sup.fetchCalls)
	}

	// The finished batch's record stays intact
	if len(st.histories) != 1 {
		t.Fatalf("got %d history rows, want 1", len(st.histories))
	}
	if st.histories[0].Status != models.BatchSucceeded {
		t.Errorf("prior batch status = %s, want %s", st.histories[0].Status, models.BatchSucceeded)
	}

	summary, ok := h.result.(*Summary)
	if !ok {
		t.Fatalf("result = %T, want *Summary", h.result)
	}
	if summary.Submitted != 50 || summary.Batches != 1 {
		t.Errorf("summary = %+v, want 50 submitted across 1 batch", summary)
	}
}

func TestKeyedIngestStopsAtDeadline(t *testing.T) {
	st := newFakeStore()
	sup := &fakeSupplier{fetchErr: context.DeadlineExceeded}
	o := newTestOrchestrator(sup, &fakeMarket{}, st)

	err := o.runKeyedIngest(context.Background(), &fakeProgress{}, testAccount(), IngestRequest{
		AccountID: 1,
		ItemKeys:  itemKeys(150),
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
	if sup.fetchCalls != 1 {
		t.Errorf("fetch calls = %d, want 1 (no further batches after the deadline)", sup.fetchCalls)
	}
	if len(st.histories) != 0 {
		t.Errorf("got %d history rows, want 0 (deadline is not a per-item failure)", len(st.histories))
	}
}

func TestChunkSplitsEvenly(t *testing.T) {
	keys := make([]string, 120)
	for i := range keys {
		keys[i] = string(rune('a' + i%26))
	}

	batches := chunk(keys, 50)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	if len(batches[0]) != 50 || len(batches[1]) != 50 || len(batches[2]) != 20 {
		t.Errorf("batch sizes = %d/%d/%d, want 50/50/20", len(batches[0]), len(batches[1]), len(batches[2]))
	}
}

func TestChunkPreservesOrder(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e"}
	batches := chunk(keys, 2)

	var flat []string
	for _, b := range batches {
		flat = append(flat, b...)
	}
	for i, key := range keys {
		if flat[i] != key {
			t.Fatalf("order changed at %d: %v", i, flat)
		}
	}
}

func TestChunkEmptyInput(t *testing.T) {
	if batches := chunk(nil, 50); len(batches) != 0 {
		t.Errorf("chunk(nil) = %v, want no batches", batches)
	}
}

func TestSummaryAggregation(t *testing.T) {
	s := &Summary{}
	s.add(50, 0)
	s.add(49, 1)

	if s.Submitted != 100 {
		t.Errorf("submitted = %d, want 100", s.Submitted)
	}
	if s.Succeeded != 99 || s.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 99/1", s.Succeeded, s.Failed)
	}
	if s.Batches != 2 {
		t.Errorf("batches = %d, want 2", s.Batches)
	}
	if s.SuccessRate != 0.99 {
		t.Errorf("success rate = %v, want 0.99", s.SuccessRate)
	}
}
