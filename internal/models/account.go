package models

import (
	"time"

	"gorm.io/gorm"
)

// SupplierAccount identifies one set of credentials for one upstream
// supplier. Soft-deactivated while orders still reference it, never
// hard-deleted.
type SupplierAccount struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	AccountName string `gorm:"index;not null" json:"accountName"`
	Username    string `gorm:"not null" json:"username"`
	// AES-256-GCM encrypted, hex encoded. Never serialized.
	PasswordEncrypted string `gorm:"not null" json:"-"`

	// Marketplace credentials
	MarketAccessKey string `json:"-"`
	MarketSecretKey string `json:"-"`
	MarketVendorID  string `json:"marketVendorId,omitempty"`

	// Pricing
	DefaultMarginRate float64 `gorm:"default:0.3" json:"defaultMarginRate"`

	// Sync state
	SyncEnabled bool       `gorm:"default:true" json:"syncEnabled"`
	IsActive    bool       `gorm:"default:true" json:"isActive"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	LastSyncAt  *time.Time `json:"lastSyncAt,omitempty"`

	// Usage counters, mutated on every outbound API call
	TotalRequests      int `gorm:"default:0" json:"totalRequests"`
	SuccessfulRequests int `gorm:"default:0" json:"successfulRequests"`
	FailedRequests     int `gorm:"default:0" json:"failedRequests"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (SupplierAccount) TableName() string {
	return "supplier_accounts"
}

// SupplierToken belongs to exactly one SupplierAccount. An expired token
// is replaced, never reused.
type SupplierToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"accountId"`
	Value     string    `gorm:"type:text;not null" json:"-"`
	IssuedAt  time.Time `gorm:"not null" json:"issuedAt"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expiresAt"`

	CreatedAt time.Time `json:"createdAt"`

	Account *SupplierAccount `gorm:"foreignKey:AccountID" json:"-"`
}

// TableName specifies the table name
func (SupplierToken) TableName() string {
	return "supplier_tokens"
}

// ValidAt reports whether the token may still be used at the given time
func (t *SupplierToken) ValidAt(now time.Time) bool {
	return t.Value != "" && now.Before(t.ExpiresAt)
}

// Valid reports whether the token may be used right now
func (t *SupplierToken) Valid() bool {
	return t.ValidAt(time.Now())
}
