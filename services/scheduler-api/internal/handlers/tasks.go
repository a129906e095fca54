package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mzivlin/timecraft/services/scheduler-api/internal/model"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/outbox"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/storage"
)

const (
	minTaskDuration = 5
	maxTaskDuration = 480
)

type TaskHandler struct {
	repo       *storage.TaskRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewTaskHandler(repo *storage.TaskRepository, outboxRepo *outbox.Repository, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{repo: repo, outboxRepo: outboxRepo, logger: logger}
}

type createTaskRequest struct {
	Title       string `json:"title"`
	DurationMin int    `json:"durationMin"`
	Category    string `json:"category"`
	Notes       string `json:"notes"`
}

type taskItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	DurationMin int    `json:"durationMin"`
	Category    string `json:"category,omitempty"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func (h *TaskHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or POST")
	}
}

func (h *TaskHandler) Item(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use DELETE")
		return
	}
	h.delete(w, r)
}

func (h *TaskHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, "invalid json body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeValidationError(w, "title is required")
		return
	}
	if req.DurationMin < minTaskDuration || req.DurationMin > maxTaskDuration {
		writeValidationError(w, "durationMin must be between 5 and 480")
		return
	}

	task := &model.Task{
		ID:          newID("t"),
		UserID:      UserID(r.Context()),
		Title:       req.Title,
		DurationMin: req.DurationMin,
		Category:    strings.TrimSpace(req.Category),
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   time.Now().UTC(),
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.Create(ctx, tx, task); err != nil {
		h.logger.Error("task create failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create task")
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "task",
		AggregateID:   task.ID,
		EventType:     "scheduler.task.created.v1",
		Payload:       taskPayload(task),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to write outbox event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to commit")
		return
	}

	writeJSON(w, http.StatusCreated, taskToItem(task))
}

func (h *TaskHandler) list(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.repo.List(r.Context(), UserID(r.Context()))
	if err != nil {
		h.logger.Error("task list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list tasks")
		return
	}
	items := make([]taskItem, 0, len(tasks))
	for i := range tasks {
		items = append(items, taskToItem(&tasks[i]))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *TaskHandler) delete(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if taskID == "" {
		writeValidationError(w, "task id is required")
		return
	}

	ctx := r.Context()
	task, err := h.repo.Get(ctx, UserID(ctx), taskID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to load task")
		return
	}

	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	deleted, err := h.repo.Delete(ctx, tx, UserID(ctx), taskID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to delete task")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "not_found", "task not found")
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "task",
		AggregateID:   task.ID,
		EventType:     "scheduler.task.deleted.v1",
		Payload:       taskPayload(&task),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to write outbox event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to commit")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func taskToItem(task *model.Task) taskItem {
	return taskItem{
		ID:          task.ID,
		Title:       task.Title,
		DurationMin: task.DurationMin,
		Category:    task.Category,
		Notes:       task.Notes,
		CreatedAt:   formatISO(task.CreatedAt),
	}
}

func taskPayload(task *model.Task) []byte {
	payload, _ := json.Marshal(map[string]any{
		"task_id":      task.ID,
		"user_id":      task.UserID,
		"title":        task.Title,
		"duration_min": task.DurationMin,
		"category":     task.Category,
	})
	return payload
}
