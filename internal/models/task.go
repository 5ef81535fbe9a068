package models

import (
	"time"

	"gorm.io/datatypes"
)

// TaskState defines the task state machine:
// pending -> running -> {completed | failed | cancelled}
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// TaskKind classifies asynchronous bulk operations
type TaskKind string

const (
	TaskKindBulkIngest  TaskKind = "bulk_ingest"
	TaskKindCollection  TaskKind = "collection"
	TaskKindOrderRelay  TaskKind = "order_relay"
	TaskKindPriceUpdate TaskKind = "price_update"
)

// Task is one record per asynchronous bulk operation. Retained until
// explicit cleanup.
type Task struct {
	ID    string    `gorm:"primaryKey;type:uuid" json:"id"`
	Kind  TaskKind  `gorm:"not null;index" json:"kind"`
	State TaskState `gorm:"default:pending;index" json:"state"`

	// Progress: Total is nil until the first page of items is fetched,
	// then fixed. Processed only increases.
	Processed int  `gorm:"default:0" json:"processed"`
	Total     *int `json:"total"`

	Payload    datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	Result     datatypes.JSON `gorm:"type:jsonb" json:"result,omitempty"`
	Error      string         `gorm:"type:text" json:"error,omitempty"`
	ReasonCode string         `json:"reasonCode,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"-"`
}

// TableName specifies the table name
func (Task) TableName() string {
	return "tasks"
}

// IsTerminal reports whether the task reached a final state. A task never
// transitions out of a terminal state.
func (t *Task) IsTerminal() bool {
	switch t.State {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	}
	return false
}

// CanTransition validates a state change against the task state machine
func (t *Task) CanTransition(to TaskState) bool {
	if t.IsTerminal() {
		return false
	}
	switch t.State {
	case TaskPending:
		return to == TaskRunning || to == TaskCancelled || to == TaskFailed
	case TaskRunning:
		return to == TaskCompleted || to == TaskFailed || to == TaskCancelled
	}
	return false
}

// Percent returns percent-complete, or -1 when total is unknown
func (t *Task) Percent() float64 {
	if t.Total == nil || *t.Total == 0 {
		return -1
	}
	return float64(t.Processed) / float64(*t.Total) * 100
}
