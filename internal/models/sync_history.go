package models

import (
	"time"

	"gorm.io/gorm"
)

// SyncType classifies what a sync attempt covered
type SyncType string

const (
	SyncTypeIngest  SyncType = "ingest"
	SyncTypePublish SyncType = "publish"
	SyncTypeOrders  SyncType = "orders"
)

// BatchStatus defines possible batch outcomes
type BatchStatus string

const (
	BatchQueued             BatchStatus = "queued"
	BatchRunning            BatchStatus = "running"
	BatchSucceeded          BatchStatus = "succeeded"
	BatchPartiallySucceeded BatchStatus = "partially_succeeded"
	BatchFailed             BatchStatus = "failed"
)

// SyncHistory records one synchronization attempt for a batch of items.
// Updated in place until it reaches a terminal status, then immutable.
type SyncHistory struct {
	ID        int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID uint     `gorm:"index;not null" json:"accountId"`
	TaskID    string   `gorm:"index" json:"taskId,omitempty"`
	SyncType  SyncType `gorm:"not null;index" json:"syncType"`
	BatchSeq  int      `gorm:"default:0" json:"batchSeq"`

	Status       BatchStatus `gorm:"not null;index" json:"status"`
	SuccessCount int         `gorm:"default:0" json:"successCount"`
	FailureCount int         `gorm:"default:0" json:"failureCount"`

	// item key -> reason code for every item that failed the batch
	ErrorMap JSONB `gorm:"type:jsonb" json:"errorMap"`

	RetryCount int `gorm:"default:0" json:"retryCount"`
	MaxRetries int `gorm:"default:3" json:"maxRetries"`

	StartedAt   time.Time  `gorm:"not null" json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	DurationMs  int        `gorm:"default:0" json:"durationMs"`

	CreatedAt time.Time      `json:"-"`
	UpdatedAt time.Time      `json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name
func (SyncHistory) TableName() string {
	return "sync_history"
}

// IsTerminal reports whether the record reached a final status
func (s *SyncHistory) IsTerminal() bool {
	switch s.Status {
	case BatchSucceeded, BatchPartiallySucceeded, BatchFailed:
		return true
	}
	return false
}

// SuccessRate returns the fraction of items that synced successfully
func (s *SyncHistory) SuccessRate() float64 {
	total := s.SuccessCount + s.FailureCount
	if total == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(total)
}
