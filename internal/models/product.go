package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SyncStatus defines possible product sync states
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// Product is the canonical representation of one upstream SKU. Created
// during ingestion, mutated by normalization and re-sync, logically
// retired (Active=false) when delisted.
type Product struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	AccountID uint   `gorm:"index:idx_account_item,unique;not null" json:"accountId"`
	ItemKey   string `gorm:"index:idx_account_item,unique;not null" json:"itemKey"`

	Name        string `gorm:"not null" json:"name"`
	Brand       string `json:"brand,omitempty"`
	CategoryKey string `gorm:"index" json:"categoryKey"`

	// Prices in currency minimum unit (KRW won)
	SupplierCost int64   `json:"supplierCost"`
	SalePrice    int64   `json:"salePrice"`
	MarginRate   float64 `json:"marginRate"`

	StockQuantity int  `gorm:"default:0" json:"stockQuantity"`
	Active        bool `gorm:"default:true" json:"active"`

	SyncStatus   SyncStatus `gorm:"default:pending;index" json:"syncStatus"`
	SyncError    string     `gorm:"type:text" json:"syncError,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`

	// Raw supplier payload kept for reprocessing
	RawData datatypes.JSON `gorm:"type:jsonb" json:"rawData,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Account *SupplierAccount `gorm:"foreignKey:AccountID" json:"-"`
}

// TableName specifies the table name
func (Product) TableName() string {
	return "products"
}

// Category maps free-text supplier category names to a canonical key
type Category struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Key  string `gorm:"uniqueIndex;not null" json:"key"`
	Name string `gorm:"not null" json:"name"`

	// Supplier-side names that resolve to this category
	Aliases datatypes.JSON `gorm:"type:jsonb" json:"aliases,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name
func (Category) TableName() string {
	return "categories"
}
