package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/sellerbridge/sellerbridge/internal/ai"
	"github.com/sellerbridge/sellerbridge/internal/apperrors"
	"github.com/sellerbridge/sellerbridge/internal/config"
	"github.com/sellerbridge/sellerbridge/internal/database"
	"github.com/sellerbridge/sellerbridge/internal/market"
	"github.com/sellerbridge/sellerbridge/internal/models"
	"github.com/sellerbridge/sellerbridge/internal/normalize"
	"github.com/sellerbridge/sellerbridge/internal/supplier"
	"github.com/sellerbridge/sellerbridge/internal/tasks"
	"github.com/sellerbridge/sellerbridge/internal/token"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Orchestrator drives the ingest -> normalize -> publish pipeline for one
// supplier/marketplace account pair.
type Orchestrator struct {
	db       *database.DB
	store    store
	tokens   tokenSource
	supplier supplier.Adapter
	market   market.Adapter
	tracker  *tasks.Tracker
	cats     *normalize.CategoryMapper
	ai       *ai.Categorizer // nil when GEMINI_API_KEY is unset
	cfg      *config.SyncConfig
}

// New creates an orchestrator
func New(db *database.DB, tokens *token.Store, sup supplier.Adapter, mkt market.Adapter, tracker *tasks.Tracker, cats *normalize.CategoryMapper, categorizer *ai.Categorizer, cfg *config.SyncConfig) *Orchestrator {
	return &Orchestrator{
		db:       db,
		store:    &gormStore{db: db},
		tokens:   tokens,
		supplier: sup,
		market:   mkt,
		tracker:  tracker,
		cats:     cats,
		ai:       categorizer,
		cfg:      cfg,
	}
}

// IngestRequest describes one bulk ingest submission
type IngestRequest struct {
	AccountID  uint     `json:"account_id"`
	ItemKeys   []string `json:"item_keys,omitempty"`
	MarginRate float64  `json:"margin_rate,omitempty"`
	DryRun     bool     `json:"dry_run,omitempty"`
}

// Summary is the aggregate result stored on the task once it finishes
type Summary struct {
	Submitted   int     `json:"submitted"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	Batches     int     `json:"batches"`
	SuccessRate float64 `json:"success_rate"`
	DryRun      bool    `json:"dry_run,omitempty"`
}

func (s *Summary) add(succeeded, failed int) {
	s.Succeeded += succeeded
	s.Failed += failed
	s.Submitted += succeeded + failed
	s.Batches++
	if s.Submitted > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.Submitted)
	}
}

// SubmitIngest registers a keyed bulk ingest task and returns its id
func (o *Orchestrator) SubmitIngest(req IngestRequest) (string, error) {
	if len(req.ItemKeys) == 0 {
		return "", apperrors.NewValidationError("item_keys", "at least one item key is required")
	}
	account, err := o.loadAccount(req.AccountID)
	if err != nil {
		return "", err
	}
	return o.tracker.Submit(models.TaskKindBulkIngest, req, func(ctx context.Context, h *tasks.Handle) error {
		return o.runKeyedIngest(ctx, h, account, req)
	})
}

// SubmitCollection registers a full catalog walk of the supplier account
func (o *Orchestrator) SubmitCollection(accountID uint, marginRate float64, dryRun bool) (string, error) {
	account, err := o.loadAccount(accountID)
	if err != nil {
		return "", err
	}
	req := IngestRequest{AccountID: accountID, MarginRate: marginRate, DryRun: dryRun}
	return o.tracker.Submit(models.TaskKindCollection, req, func(ctx context.Context, h *tasks.Handle) error {
		return o.runCollection(ctx, h, account, req)
	})
}

// SubmitPriceUpdate registers a task that recomputes sale prices for the
// account's stored products under a new margin rate and republishes them.
func (o *Orchestrator) SubmitPriceUpdate(accountID uint, marginRate float64) (string, error) {
	account, err := o.loadAccount(accountID)
	if err != nil {
		return "", err
	}
	bounds := o.bounds()
	if marginRate < bounds.Min {
		return "", apperrors.NewValidationError("margin_rate", apperrors.CodeMarginBelowFloor)
	}
	if marginRate > bounds.Max {
		marginRate = bounds.Max
	}
	payload := map[string]interface{}{"account_id": accountID, "margin_rate": marginRate}
	return o.tracker.Submit(models.TaskKindPriceUpdate, payload, func(ctx context.Context, h *tasks.Handle) error {
		return o.runPriceUpdate(ctx, h, account, marginRate)
	})
}

func (o *Orchestrator) loadAccount(accountID uint) (*models.SupplierAccount, error) {
	var account models.SupplierAccount
	if err := o.db.First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewValidationError("account_id", "account not found")
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, apperrors.NewValidationError("account_id", "account is deactivated")
	}
	if !account.SyncEnabled {
		return nil, apperrors.NewValidationError("account_id", "sync is disabled for this account")
	}
	return &account, nil
}

func (o *Orchestrator) bounds() normalize.Bounds {
	return normalize.Bounds{
		Min:     o.cfg.MinMarginRate,
		Max:     o.cfg.MaxMarginRate,
		Default: o.cfg.DefaultMarginRate,
	}
}

func (o *Orchestrator) credentials(account *models.SupplierAccount) market.Credentials {
	return market.Credentials{
		AccessKey: account.MarketAccessKey,
		SecretKey: account.MarketSecretKey,
		VendorID:  account.MarketVendorID,
	}
}

func (o *Orchestrator) marginFor(account *models.SupplierAccount, requested float64) float64 {
	if requested != 0 {
		return requested
	}
	if account.DefaultMarginRate != 0 {
		return account.DefaultMarginRate
	}
	return o.cfg.DefaultMarginRate
}

// runKeyedIngest processes an explicit key list in fixed-size batches
func (o *Orchestrator) runKeyedIngest(ctx context.Context, h progress, account *models.SupplierAccount, req IngestRequest) error {
	tok, err := o.tokens.GetValidToken(ctx, account.ID)
	if err != nil {
		return err
	}

	h.SetTotal(len(req.ItemKeys))
	margin := o.marginFor(account, req.MarginRate)
	summary := &Summary{DryRun: req.DryRun}

	for seq, keys := range chunk(req.ItemKeys, o.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			h.SetResult(summary)
			return err
		}
		if h.Cancelled() {
			h.SetResult(summary)
			return tasks.ErrCancelled
		}

		raws, failures, err := o.supplier.FetchItems(ctx, tok.Value, keys)
		if err != nil {
			// Bad credentials and an exceeded deadline would fail every
			// further batch the same way, so stop here.
			if apperrors.CodeOf(err) == apperrors.CodeAuthFailed ||
				errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				h.SetResult(summary)
				return err
			}
			failures = make(map[string]string, len(keys))
			for _, key := range keys {
				failures[key] = apperrors.CodeOf(err)
			}
			raws = nil
		}

		s, f := o.processBatch(ctx, h, account, seq, models.SyncTypeIngest, raws, failures, margin, req.DryRun)
		summary.add(s, f)
		h.AddProcessed(s + f)
	}

	o.finishAccountSync(account.ID)
	h.SetResult(summary)
	return nil
}

// runCollection walks the supplier catalog page by page. The total is
// unknown until the walk ends, so progress reports a count without a
// denominator until then.
func (o *Orchestrator) runCollection(ctx context.Context, h progress, account *models.SupplierAccount, req IngestRequest) error {
	tok, err := o.tokens.GetValidToken(ctx, account.ID)
	if err != nil {
		return err
	}

	margin := o.marginFor(account, req.MarginRate)
	summary := &Summary{DryRun: req.DryRun}

	cursor := ""
	for seq := 0; ; seq++ {
		if err := ctx.Err(); err != nil {
			h.SetResult(summary)
			return err
		}
		if h.Cancelled() {
			h.SetResult(summary)
			return tasks.ErrCancelled
		}

		raws, next, err := o.supplier.FetchItemPage(ctx, tok.Value, cursor, o.cfg.BatchSize)
		if err != nil {
			h.SetResult(summary)
			return err
		}
		if len(raws) == 0 {
			break
		}

		s, f := o.processBatch(ctx, h, account, seq, models.SyncTypeIngest, raws, nil, margin, req.DryRun)
		summary.add(s, f)
		h.AddProcessed(s + f)

		if next == "" {
			break
		}
		cursor = next
	}

	h.SetTotal(summary.Submitted)
	o.finishAccountSync(account.ID)
	h.SetResult(summary)
	return nil
}

// runPriceUpdate recomputes sale prices from stored supplier costs and
// republishes the affected listings.
func (o *Orchestrator) runPriceUpdate(ctx context.Context, h progress, account *models.SupplierAccount, margin float64) error {
	var products []models.Product
	if err := o.db.
		Where("account_id = ? AND active = ?", account.ID, true).
		Order("id ASC").
		Find(&products).Error; err != nil {
		return err
	}

	h.SetTotal(len(products))
	summary := &Summary{}

	for seq, batch := range chunkProducts(products, o.cfg.BatchSize) {
		if err := ctx.Err(); err != nil {
			h.SetResult(summary)
			return err
		}
		if h.Cancelled() {
			h.SetResult(summary)
			return tasks.ErrCancelled
		}

		items := make([]normalize.NormalizedItem, 0, len(batch))
		for i := range batch {
			p := &batch[i]
			p.MarginRate = margin
			p.SalePrice = normalize.SalePrice(p.SupplierCost, margin)
			items = append(items, normalize.NormalizedItem{
				Key:           p.ItemKey,
				Name:          p.Name,
				Brand:         p.Brand,
				CategoryKey:   p.CategoryKey,
				SupplierCost:  p.SupplierCost,
				SalePrice:     p.SalePrice,
				MarginRate:    margin,
				StockQuantity: p.StockQuantity,
			})
		}

		s, f := o.publishBatch(ctx, h, account, seq, models.SyncTypePublish, items, nil, false)
		for i := range batch {
			o.db.Model(&models.Product{}).
				Where("id = ?", batch[i].ID).
				Updates(map[string]interface{}{
					"margin_rate": margin,
					"sale_price":  batch[i].SalePrice,
				})
		}
		summary.add(s, f)
		h.AddProcessed(s + f)
	}

	o.finishAccountSync(account.ID)
	h.SetResult(summary)
	return nil
}

// itemResult is one item's outcome, kept at its submission index so the
// batch record preserves input order.
type itemResult struct {
	key  string
	item *normalize.NormalizedItem
	err  error
}

// processBatch normalizes one batch on a bounded worker pool, upserts the
// products and publishes the valid ones. Returns (succeeded, failed).
func (o *Orchestrator) processBatch(ctx context.Context, h progress, account *models.SupplierAccount, seq int, syncType models.SyncType, raws []supplier.RawItem, fetchFailures map[string]string, margin float64, dryRun bool) (int, int) {
	bounds := o.bounds()
	results := make([]itemResult, len(raws))

	var wg sync.WaitGroup
	sem := make(chan struct{}, o.cfg.WorkerCount)
	for i := range raws {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			raw := raws[idx]
			o.resolveCategory(ctx, raw.CategoryName)
			item, err := normalize.Normalize(raw, margin, bounds, o.cats)
			results[idx] = itemResult{key: raw.Key, item: item, err: err}
		}(i)
	}
	wg.Wait()

	items := make([]normalize.NormalizedItem, 0, len(raws))
	rejections := make(map[string]string, len(fetchFailures))
	for key, reason := range fetchFailures {
		rejections[key] = reason
	}
	for _, r := range results {
		if r.err != nil {
			rejections[r.key] = apperrors.CodeOf(r.err)
			continue
		}
		o.upsertProduct(account.ID, *r.item, raws)
		items = append(items, *r.item)
	}

	return o.publishBatch(ctx, h, account, seq, syncType, items, rejections, dryRun)
}

// resolveCategory registers an alias for an unknown supplier category
// before normalization runs, keeping Normalize itself deterministic. The
// AI suggester is best effort; on any failure the item lands in the
// uncategorized bucket.
func (o *Orchestrator) resolveCategory(ctx context.Context, supplierName string) {
	if supplierName == "" || o.cats.Known(supplierName) || o.ai == nil {
		return
	}
	key, err := o.ai.SuggestCategory(ctx, supplierName, o.cats.Keys())
	if err != nil {
		log.Printf("⚠️  Category suggestion failed for %q: %v", supplierName, err)
		return
	}
	if key != "" {
		o.cats.AddAlias(supplierName, key)
		o.persistAlias(supplierName, key)
		log.Printf("🤖 Mapped supplier category %q -> %s", supplierName, key)
	}
}

// persistAlias stores a learned supplier-name alias on its category row so
// the mapping survives restarts.
func (o *Orchestrator) persistAlias(alias, key string) {
	var cat models.Category
	if err := o.db.Where("key = ?", key).First(&cat).Error; err != nil {
		return
	}

	var aliases []string
	if len(cat.Aliases) > 0 {
		if err := json.Unmarshal(cat.Aliases, &aliases); err != nil {
			aliases = nil
		}
	}
	for _, a := range aliases {
		if a == alias {
			return
		}
	}
	aliases = append(aliases, alias)

	if data, err := json.Marshal(aliases); err == nil {
		o.db.Model(&cat).Update("aliases", datatypes.JSON(data))
	}
}

// publishBatch pushes one batch of normalized items to the marketplace
// with bounded retry, then records the batch outcome. Items accepted on an
// earlier attempt are not re-sent.
func (o *Orchestrator) publishBatch(ctx context.Context, h progress, account *models.SupplierAccount, seq int, syncType models.SyncType, items []normalize.NormalizedItem, rejections map[string]string, dryRun bool) (int, int) {
	started := time.Now().UTC()
	history := &models.SyncHistory{
		AccountID:  account.ID,
		TaskID:     h.ID(),
		SyncType:   syncType,
		BatchSeq:   seq,
		Status:     models.BatchRunning,
		MaxRetries: o.cfg.MaxRetries,
		StartedAt:  started,
	}
	if err := o.store.CreateHistory(history); err != nil {
		log.Printf("Failed to create sync history for task %s batch %d: %v", h.ID(), seq, err)
	}

	if rejections == nil {
		rejections = make(map[string]string)
	}
	accepted := make(map[string]bool, len(items))
	creds := o.credentials(account)
	pending := items

	for attempt := 0; attempt <= o.cfg.MaxRetries && len(pending) > 0; attempt++ {
		if attempt > 0 {
			history.RetryCount = attempt
			delay := o.cfg.RetryBaseDelay * time.Duration(1<<(attempt-1))
			log.Printf("🔁 Retrying batch %d of task %s (attempt %d/%d) after %v", seq, h.ID(), attempt, o.cfg.MaxRetries, delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				for _, item := range pending {
					rejections[item.Key] = apperrors.CodeTimeout
				}
				break
			}
		}

		result, err := o.market.Publish(ctx, creds, pending, dryRun)
		if result != nil {
			for _, key := range result.Accepted {
				accepted[key] = true
			}
			for key, reason := range result.Rejected {
				rejections[key] = reason
			}
		}
		if err == nil || !apperrors.IsRetryable(err) {
			if err != nil {
				for _, item := range pending {
					if !accepted[item.Key] {
						if _, rejected := rejections[item.Key]; !rejected {
							rejections[item.Key] = apperrors.CodeOf(err)
						}
					}
				}
			}
			break
		}

		// Transient outage: keep only items that neither succeeded nor
		// were rejected outright.
		remaining := pending[:0]
		for _, item := range pending {
			if accepted[item.Key] {
				continue
			}
			if _, rejected := rejections[item.Key]; rejected {
				continue
			}
			remaining = append(remaining, item)
		}
		pending = remaining

		if attempt == o.cfg.MaxRetries {
			for _, item := range pending {
				rejections[item.Key] = apperrors.CodeOf(err)
			}
		}
	}

	succeeded := len(accepted)
	failed := len(rejections)
	o.recordOutcomes(account.ID, accepted, rejections, dryRun)
	o.finalizeBatch(history, succeeded, failed, rejections)
	return succeeded, failed
}

// upsertProduct writes the normalized item into the local catalog keyed
// by (account, item key).
func (o *Orchestrator) upsertProduct(accountID uint, item normalize.NormalizedItem, raws []supplier.RawItem) {
	product := models.Product{
		AccountID:     accountID,
		ItemKey:       item.Key,
		Name:          item.Name,
		Brand:         item.Brand,
		CategoryKey:   item.CategoryKey,
		SupplierCost:  item.SupplierCost,
		SalePrice:     item.SalePrice,
		MarginRate:    item.MarginRate,
		StockQuantity: item.StockQuantity,
		Active:        true,
		SyncStatus:    models.SyncStatusPending,
	}
	for _, raw := range raws {
		if raw.Key == item.Key && len(raw.Raw) > 0 {
			product.RawData = datatypes.JSON(raw.Raw)
			break
		}
	}

	if err := o.store.UpsertProduct(&product); err != nil {
		log.Printf("Failed to upsert product %s for account %d: %v", item.Key, accountID, err)
	}
}

// recordOutcomes flips product sync status after a publish attempt. Dry
// runs leave the catalog untouched beyond the initial upsert.
func (o *Orchestrator) recordOutcomes(accountID uint, accepted map[string]bool, rejections map[string]string, dryRun bool) {
	if dryRun {
		return
	}
	now := time.Now().UTC()
	for key := range accepted {
		o.store.MarkProductSynced(accountID, key, now)
	}
	for key, reason := range rejections {
		o.store.MarkProductFailed(accountID, key, reason)
	}
}

func (o *Orchestrator) finalizeBatch(history *models.SyncHistory, succeeded, failed int, rejections map[string]string) {
	now := time.Now().UTC()
	history.SuccessCount = succeeded
	history.FailureCount = failed
	history.CompletedAt = &now
	history.DurationMs = int(now.Sub(history.StartedAt).Milliseconds())

	switch {
	case failed == 0:
		history.Status = models.BatchSucceeded
	case succeeded == 0:
		history.Status = models.BatchFailed
	default:
		history.Status = models.BatchPartiallySucceeded
	}

	if len(rejections) > 0 {
		errorMap := make(models.JSONB, len(rejections))
		for key, reason := range rejections {
			errorMap[key] = reason
		}
		history.ErrorMap = errorMap
	}

	if err := o.store.SaveHistory(history); err != nil {
		log.Printf("Failed to finalize sync history %d: %v", history.ID, err)
	}
}

func (o *Orchestrator) finishAccountSync(accountID uint) {
	o.store.TouchAccountSync(accountID)
}

// History lists batch records, newest first, optionally scoped to one
// account or task.
func (o *Orchestrator) History(accountID uint, taskID string, limit int) ([]models.SyncHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	query := o.db.Order("started_at DESC, batch_seq ASC").Limit(limit)
	if accountID != 0 {
		query = query.Where("account_id = ?", accountID)
	}
	if taskID != "" {
		query = query.Where("task_id = ?", taskID)
	}
	var out []models.SyncHistory
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// TestConnection verifies the account's supplier credentials by forcing a
// token fetch and reports marketplace credential presence.
func (o *Orchestrator) TestConnection(ctx context.Context, accountID uint) (map[string]interface{}, error) {
	account, err := o.loadAccount(accountID)
	if err != nil {
		return nil, err
	}

	out := map[string]interface{}{"account_id": account.ID}
	tok, err := o.tokens.GetValidToken(ctx, account.ID)
	if err != nil {
		out["supplier"] = "failed"
		out["error"] = err.Error()
		return out, err
	}
	out["supplier"] = "ok"
	out["token_expires_at"] = tok.ExpiresAt

	if account.MarketAccessKey == "" || account.MarketSecretKey == "" {
		out["market"] = "missing_credentials"
	} else {
		out["market"] = "configured"
	}
	return out, nil
}

func chunk(keys []string, size int) [][]string {
	if size <= 0 {
		size = 50
	}
	var out [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[start:end])
	}
	return out
}

func chunkProducts(products []models.Product, size int) [][]models.Product {
	if size <= 0 {
		size = 50
	}
	var out [][]models.Product
	for start := 0; start < len(products); start += size {
		end := start + size
		if end > len(products) {
			end = len(products)
		}
		out = append(out, products[start:end])
	}
	return out
}
