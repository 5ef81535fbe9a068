package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sellerbridge/sellerbridge/internal/apperrors"
	"github.com/sellerbridge/sellerbridge/internal/config"
	"github.com/sellerbridge/sellerbridge/internal/database"
	"github.com/sellerbridge/sellerbridge/internal/models"
	"github.com/sellerbridge/sellerbridge/internal/websocket"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrCancelled is returned by task functions that observed cancellation
var ErrCancelled = errors.New("task cancelled")

// Func is the body of one asynchronous bulk operation. It must check
// h.Cancelled() between batches and return ErrCancelled when set.
type Func func(ctx context.Context, h *Handle) error

type job struct {
	id string
	fn Func
}

// Tracker registers long-running bulk operations, executes them on a
// bounded worker pool and exposes their observable state.
type Tracker struct {
	db  *database.DB
	hub *websocket.Hub
	cfg *config.SyncConfig

	queue   chan *job
	flags   sync.Map // task ID -> *atomic.Bool (cooperative cancel flag)
	stop    chan struct{}
	wg      sync.WaitGroup
	started atomic.Bool
}

// NewTracker creates a task tracker
func NewTracker(db *database.DB, hub *websocket.Hub, cfg *config.SyncConfig) *Tracker {
	return &Tracker{
		db:    db,
		hub:   hub,
		cfg:   cfg,
		queue: make(chan *job, 256),
		stop:  make(chan struct{}),
	}
}

// Start launches the worker pool
func (t *Tracker) Start() {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < t.cfg.WorkerCount; i++ {
		t.wg.Add(1)
		go t.worker(i)
	}
	log.Printf("⚙️  Task tracker started (%d workers)", t.cfg.WorkerCount)
}

// Stop drains the pool; queued-but-unstarted jobs stay pending in the
// database and are recovered on the next boot.
func (t *Tracker) Stop() {
	close(t.stop)
	t.wg.Wait()
	log.Println("🛑 Task tracker stopped")
}

// Submit registers a bulk operation and enqueues it. Returns immediately
// with the task id; the caller never blocks on execution.
func (t *Tracker) Submit(kind models.TaskKind, payload interface{}, fn Func) (string, error) {
	task := &models.Task{
		ID:    uuid.New().String(),
		Kind:  kind,
		State: models.TaskPending,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return "", fmt.Errorf("failed to marshal task payload: %w", err)
		}
		task.Payload = datatypes.JSON(data)
	}

	if err := t.db.Create(task).Error; err != nil {
		return "", err
	}

	t.flags.Store(task.ID, &atomic.Bool{})

	select {
	case t.queue <- &job{id: task.ID, fn: fn}:
	default:
		// Queue saturated: fail fast instead of blocking the caller
		t.finalize(task.ID, models.TaskFailed, "task queue is full", "queue_full", nil)
		return "", errors.New("task queue is full")
	}

	t.broadcast(websocket.EventTaskUpdate, task.ID)
	return task.ID, nil
}

// Cancel marks a task cancelled. Cooperative: a running task keeps its
// in-flight network calls and stops at the next batch boundary.
func (t *Tracker) Cancel(taskID string) error {
	var task models.Task
	if err := t.db.First(&task, "id = ?", taskID).Error; err != nil {
		return err
	}
	if task.IsTerminal() {
		return fmt.Errorf("task %s already %s", taskID, task.State)
	}

	if flag, ok := t.flags.Load(taskID); ok {
		flag.(*atomic.Bool).Store(true)
	}

	// A pending task has no worker to observe the flag; finalize directly
	if task.State == models.TaskPending {
		t.finalize(taskID, models.TaskCancelled, "", "", nil)
	}
	return nil
}

// Get returns one task
func (t *Tracker) Get(taskID string) (*models.Task, error) {
	var task models.Task
	if err := t.db.First(&task, "id = ?", taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns tasks, newest first, optionally filtered by state
func (t *Tracker) List(state models.TaskState, limit int) ([]models.Task, error) {
	if limit <= 0 {
		limit = 100
	}
	query := t.db.Order("created_at DESC").Limit(limit)
	if state != "" {
		query = query.Where("state = ?", state)
	}
	var out []models.Task
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Cleanup purges terminal tasks past the age threshold and returns how
// many were removed.
func (t *Tracker) Cleanup(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result := t.db.
		Where("state IN ?", []models.TaskState{models.TaskCompleted, models.TaskFailed, models.TaskCancelled}).
		Where("completed_at < ?", cutoff).
		Delete(&models.Task{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("🧹 Cleaned up %d finished tasks", result.RowsAffected)
	}
	return result.RowsAffected, nil
}

// RecoverInterrupted marks tasks found running (or pending) at startup as
// failed. They must not silently vanish; re-submission is cheap because
// progress is committed per batch.
func (t *Tracker) RecoverInterrupted() error {
	now := time.Now().UTC()
	result := t.db.Model(&models.Task{}).
		Where("state IN ?", []models.TaskState{models.TaskPending, models.TaskRunning}).
		Updates(map[string]interface{}{
			"state":        models.TaskFailed,
			"error":        "interrupted by restart",
			"reason_code":  "interrupted",
			"completed_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		log.Printf("⚠️  Marked %d interrupted tasks as failed", result.RowsAffected)
	}
	return nil
}

func (t *Tracker) worker(n int) {
	defer t.wg.Done()
	for {
		select {
		case <-t.stop:
			return
		case j := <-t.queue:
			t.run(j)
		}
	}
}

func (t *Tracker) run(j *job) {
	var task models.Task
	if err := t.db.First(&task, "id = ?", j.id).Error; err != nil {
		log.Printf("Task %s vanished before execution: %v", j.id, err)
		return
	}
	if task.IsTerminal() {
		// Cancelled while still queued
		return
	}

	now := time.Now().UTC()
	if err := t.db.Model(&models.Task{}).
		Where("id = ? AND state = ?", j.id, models.TaskPending).
		Updates(map[string]interface{}{"state": models.TaskRunning, "started_at": now}).Error; err != nil {
		log.Printf("Failed to start task %s: %v", j.id, err)
		return
	}
	t.broadcast(websocket.EventTaskUpdate, j.id)

	flag, _ := t.flags.LoadOrStore(j.id, &atomic.Bool{})
	handle := &Handle{taskID: j.id, tracker: t, cancelled: flag.(*atomic.Bool)}

	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.TaskTimeout)
	defer cancel()

	err := j.fn(ctx, handle)
	t.flags.Delete(j.id)

	switch {
	case err == nil:
		if handle.Cancelled() {
			t.finalize(j.id, models.TaskCancelled, "", "", nil)
			return
		}
		t.finalize(j.id, models.TaskCompleted, "", "", handle.result)
	case errors.Is(err, ErrCancelled):
		t.finalize(j.id, models.TaskCancelled, "", "", handle.result)
	case errors.Is(err, context.DeadlineExceeded):
		timeoutErr := &apperrors.TimeoutError{What: fmt.Sprintf("task %s", j.id)}
		t.finalize(j.id, models.TaskFailed, timeoutErr.Error(), apperrors.CodeTimeout, handle.result)
	default:
		t.finalize(j.id, models.TaskFailed, err.Error(), apperrors.CodeOf(err), handle.result)
	}
}

// finalize moves a task into a terminal state, guarded by the state
// machine: a task never transitions out of a terminal state.
func (t *Tracker) finalize(taskID string, state models.TaskState, errMsg, reasonCode string, result interface{}) {
	var task models.Task
	if err := t.db.First(&task, "id = ?", taskID).Error; err != nil {
		return
	}
	if !task.CanTransition(state) {
		return
	}

	updates := map[string]interface{}{
		"state":        state,
		"completed_at": time.Now().UTC(),
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	if reasonCode != "" {
		updates["reason_code"] = reasonCode
	}
	if result != nil {
		if data, err := json.Marshal(result); err == nil {
			updates["result"] = datatypes.JSON(data)
		}
	}

	if err := t.db.Model(&models.Task{}).Where("id = ?", taskID).Updates(updates).Error; err != nil {
		log.Printf("Failed to finalize task %s: %v", taskID, err)
		return
	}

	event := websocket.EventTaskCompleted
	if state == models.TaskFailed {
		event = websocket.EventTaskError
	}
	t.broadcast(event, taskID)
}

func (t *Tracker) broadcast(eventType, taskID string) {
	if t.hub == nil {
		return
	}
	if task, err := t.Get(taskID); err == nil {
		t.hub.Broadcast(eventType, task)
	}
}

// Handle is the task-side view given to a running Func
type Handle struct {
	taskID    string
	tracker   *Tracker
	cancelled *atomic.Bool
	result    interface{}
}

// ID returns the task id
func (h *Handle) ID() string { return h.taskID }

// Cancelled reports the cooperative cancel flag. Checked between batches,
// never mid-item.
func (h *Handle) Cancelled() bool { return h.cancelled.Load() }

// SetTotal fixes the progress denominator. Only the first call wins:
// total is unknown until the first page of items is fetched, then fixed.
func (h *Handle) SetTotal(total int) {
	h.tracker.db.Model(&models.Task{}).
		Where("id = ? AND total IS NULL", h.taskID).
		Update("total", total)
	h.tracker.broadcast(websocket.EventSyncProgress, h.taskID)
}

// AddProcessed advances the monotonically increasing progress counter
func (h *Handle) AddProcessed(n int) {
	if n <= 0 {
		return
	}
	h.tracker.db.Model(&models.Task{}).
		Where("id = ?", h.taskID).
		UpdateColumn("processed", gorm.Expr("processed + ?", n))
	h.tracker.broadcast(websocket.EventSyncProgress, h.taskID)
}

// SetResult records the payload stored on the task once it finishes
func (h *Handle) SetResult(v interface{}) { h.result = v }
