package handlers

import (
	"net/http"
	"time"

	"github.com/sellerbridge/sellerbridge/internal/models"
)

// dashboardStats aggregates catalog, account, order and task counters
// plus the last day's batch success rate for the dashboard landing page.
func (r *Router) dashboardStats(w http.ResponseWriter, req *http.Request) {
	var (
		totalProducts, activeProducts, syncedProducts, failedProducts int64
		totalAccounts, activeAccounts                                 int64
		totalOrders, pendingOrders, shippedOrders                     int64
		runningTasks, pendingTasks                                    int64
	)

	r.db.Model(&models.Product{}).Count(&totalProducts)
	r.db.Model(&models.Product{}).Where("active = ?", true).Count(&activeProducts)
	r.db.Model(&models.Product{}).Where("sync_status = ?", models.SyncStatusSynced).Count(&syncedProducts)
	r.db.Model(&models.Product{}).Where("sync_status = ?", models.SyncStatusFailed).Count(&failedProducts)

	r.db.Model(&models.SupplierAccount{}).Count(&totalAccounts)
	r.db.Model(&models.SupplierAccount{}).Where("is_active = ?", true).Count(&activeAccounts)

	r.db.Model(&models.Order{}).Count(&totalOrders)
	r.db.Model(&models.Order{}).Where("status = ?", models.OrderStatusPending).Count(&pendingOrders)
	r.db.Model(&models.Order{}).Where("status = ?", models.OrderStatusShipped).Count(&shippedOrders)

	r.db.Model(&models.Task{}).Where("state = ?", models.TaskRunning).Count(&runningTasks)
	r.db.Model(&models.Task{}).Where("state = ?", models.TaskPending).Count(&pendingTasks)

	var recent struct {
		Succeeded int64
		Failed    int64
	}
	dayAgo := time.Now().UTC().Add(-24 * time.Hour)
	r.db.Model(&models.SyncHistory{}).
		Where("started_at > ?", dayAgo).
		Select("COALESCE(SUM(success_count), 0) AS succeeded, COALESCE(SUM(failure_count), 0) AS failed").
		Scan(&recent)

	successRate := 0.0
	if total := recent.Succeeded + recent.Failed; total > 0 {
		successRate = float64(recent.Succeeded) / float64(total)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"products": map[string]int64{
			"total":  totalProducts,
			"active": activeProducts,
			"synced": syncedProducts,
			"failed": failedProducts,
		},
		"accounts": map[string]int64{
			"total":  totalAccounts,
			"active": activeAccounts,
		},
		"orders": map[string]int64{
			"total":   totalOrders,
			"pending": pendingOrders,
			"shipped": shippedOrders,
		},
		"tasks": map[string]int64{
			"running": runningTasks,
			"pending": pendingTasks,
		},
		"sync24h": map[string]interface{}{
			"succeeded":   recent.Succeeded,
			"failed":      recent.Failed,
			"successRate": successRate,
		},
		"lastUpdated": time.Now().UTC(),
	})
}
