package models

import (
	"testing"
	"time"
)

func TestOrderComputeTotal(t *testing.T) {
	order := Order{
		ShippingFee: 3000,
		Items: []OrderItem{
			{ItemKey: "A", Quantity: 2, UnitPrice: 1300},
			{ItemKey: "B", Quantity: 1, UnitPrice: 5000},
		},
	}
	if got := order.ComputeTotal(); got != 10600 {
		t.Errorf("ComputeTotal() = %d, want 10600", got)
	}
}

func TestOrderTerminalStates(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled} {
		order := Order{Status: status}
		if !order.IsTerminal() {
			t.Errorf("status %s should be terminal", status)
		}
	}
	for _, status := range []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped} {
		order := Order{Status: status}
		if order.IsTerminal() {
			t.Errorf("status %s should not be terminal", status)
		}
	}
}

func TestTaskStateMachine(t *testing.T) {
	pending := Task{State: TaskPending}
	if !pending.CanTransition(TaskRunning) {
		t.Error("pending -> running should be allowed")
	}
	if !pending.CanTransition(TaskCancelled) {
		t.Error("pending -> cancelled should be allowed")
	}
	if pending.CanTransition(TaskCompleted) {
		t.Error("pending -> completed should be rejected")
	}

	running := Task{State: TaskRunning}
	for _, to := range []TaskState{TaskCompleted, TaskFailed, TaskCancelled} {
		if !running.CanTransition(to) {
			t.Errorf("running -> %s should be allowed", to)
		}
	}
	if running.CanTransition(TaskPending) {
		t.Error("running -> pending should be rejected")
	}
}

func TestTaskTerminalStatesAreImmutable(t *testing.T) {
	for _, terminal := range []TaskState{TaskCompleted, TaskFailed, TaskCancelled} {
		task := Task{State: terminal}
		if !task.IsTerminal() {
			t.Errorf("%s should be terminal", terminal)
		}
		for _, to := range []TaskState{TaskPending, TaskRunning, TaskCompleted, TaskFailed, TaskCancelled} {
			if task.CanTransition(to) {
				t.Errorf("%s -> %s should be rejected", terminal, to)
			}
		}
	}
}

func TestTaskPercent(t *testing.T) {
	task := Task{Processed: 25}
	if got := task.Percent(); got != -1 {
		t.Errorf("Percent() without total = %v, want -1", got)
	}

	total := 50
	task.Total = &total
	if got := task.Percent(); got != 50 {
		t.Errorf("Percent() = %v, want 50", got)
	}
}

func TestSyncHistorySuccessRate(t *testing.T) {
	h := SyncHistory{SuccessCount: 49, FailureCount: 1}
	if got := h.SuccessRate(); got != 0.98 {
		t.Errorf("SuccessRate() = %v, want 0.98", got)
	}

	empty := SyncHistory{}
	if got := empty.SuccessRate(); got != 0 {
		t.Errorf("SuccessRate() on empty record = %v, want 0", got)
	}
}

func TestSupplierTokenValidity(t *testing.T) {
	now := time.Now()
	tok := SupplierToken{Value: "eyJ...", IssuedAt: now, ExpiresAt: now.Add(30 * 24 * time.Hour)}

	if !tok.ValidAt(now.Add(29 * 24 * time.Hour)) {
		t.Error("token should still be valid the day before expiry")
	}
	if tok.ValidAt(now.Add(31 * 24 * time.Hour)) {
		t.Error("token should be invalid after expiry")
	}

	empty := SupplierToken{ExpiresAt: now.Add(time.Hour)}
	if empty.ValidAt(now) {
		t.Error("token without a value should never be valid")
	}
}
