package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sellerbridge/sellerbridge/internal/models"
)

// listTasks returns tracked tasks, optionally filtered by state
func (r *Router) listTasks(w http.ResponseWriter, req *http.Request) {
	limit := 100
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	result, err := r.tracker.List(models.TaskState(req.URL.Query().Get("state")), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list tasks")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// getTask returns one task
func (r *Router) getTask(w http.ResponseWriter, req *http.Request) {
	task, err := r.tracker.Get(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// cancelTask requests cooperative cancellation of a task
func (r *Router) cancelTask(w http.ResponseWriter, req *http.Request) {
	taskID := mux.Vars(req)["id"]
	if err := r.tracker.Cancel(taskID); err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"taskId": taskID,
		"status": "cancellation_requested",
	})
}

// cleanupTasks purges finished tasks older than the given age (hours)
func (r *Router) cleanupTasks(w http.ResponseWriter, req *http.Request) {
	age := 24 * time.Hour
	if raw := req.URL.Query().Get("older_than_hours"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			age = time.Duration(n) * time.Hour
		}
	}

	removed, err := r.tracker.Cleanup(age)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to clean up tasks")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}
