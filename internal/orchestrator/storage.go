package orchestrator

import (
	"context"
	"time"

	"github.com/sellerbridge/sellerbridge/internal/database"
	"github.com/sellerbridge/sellerbridge/internal/models"
	"gorm.io/gorm/clause"
)

// tokenSource issues valid supplier tokens for outbound calls
type tokenSource interface {
	GetValidToken(ctx context.Context, accountID uint) (*models.SupplierToken, error)
}

// progress is the task-side surface the pipeline reports through.
// *tasks.Handle implements it.
type progress interface {
	ID() string
	Cancelled() bool
	SetTotal(total int)
	AddProcessed(n int)
	SetResult(v interface{})
}

// store is the persistence surface of the batch engine, split out from
// the gorm layer so the pipeline can run against an in-memory double.
type store interface {
	CreateHistory(h *models.SyncHistory) error
	SaveHistory(h *models.SyncHistory) error
	UpsertProduct(p *models.Product) error
	MarkProductSynced(accountID uint, itemKey string, at time.Time)
	MarkProductFailed(accountID uint, itemKey, reason string)
	TouchAccountSync(accountID uint)
}

type gormStore struct {
	db *database.DB
}

func (g *gormStore) CreateHistory(h *models.SyncHistory) error { return g.db.Create(h).Error }

func (g *gormStore) SaveHistory(h *models.SyncHistory) error { return g.db.Save(h).Error }

// UpsertProduct writes one catalog row keyed by (account, item key)
func (g *gormStore) UpsertProduct(p *models.Product) error {
	return g.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "brand", "category_key", "supplier_cost", "sale_price",
			"margin_rate", "stock_quantity", "active", "sync_status", "raw_data", "updated_at",
		}),
	}).Create(p).Error
}

func (g *gormStore) MarkProductSynced(accountID uint, itemKey string, at time.Time) {
	g.db.Model(&models.Product{}).
		Where("account_id = ? AND item_key = ?", accountID, itemKey).
		Updates(map[string]interface{}{
			"sync_status":    models.SyncStatusSynced,
			"sync_error":     "",
			"last_synced_at": at,
		})
}

func (g *gormStore) MarkProductFailed(accountID uint, itemKey, reason string) {
	g.db.Model(&models.Product{}).
		Where("account_id = ? AND item_key = ?", accountID, itemKey).
		Updates(map[string]interface{}{
			"sync_status": models.SyncStatusFailed,
			"sync_error":  reason,
		})
}

func (g *gormStore) TouchAccountSync(accountID uint) {
	g.db.Model(&models.SupplierAccount{}).
		Where("id = ?", accountID).
		Update("last_sync_at", time.Now().UTC())
}
