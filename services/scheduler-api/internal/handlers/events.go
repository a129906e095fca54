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

// maxEventDuration guards against fat-finger ranges; nobody books a
// single 13-hour block through this API.
const maxEventDuration = 12 * time.Hour

type EventHandler struct {
	repo       *storage.EventRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewEventHandler(repo *storage.EventRepository, outboxRepo *outbox.Repository, logger *slog.Logger) *EventHandler {
	return &EventHandler{repo: repo, outboxRepo: outboxRepo, logger: logger}
}

type createEventRequest struct {
	Title     string `json:"title"`
	StartISO  string `json:"startISO"`
	EndISO    string `json:"endISO"`
	Immutable bool   `json:"immutable"`
	Source    string `json:"source"`
}

type updateEventRequest struct {
	Title     *string `json:"title"`
	StartISO  *string `json:"startISO"`
	EndISO    *string `json:"endISO"`
	Immutable *bool   `json:"immutable"`
}

type eventItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartISO  string `json:"startISO"`
	EndISO    string `json:"endISO"`
	Immutable bool   `json:"immutable"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// Collection dispatches /api/v1/events.
func (h *EventHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or POST")
	}
}

// Item dispatches /api/v1/events/{id}.
func (h *EventHandler) Item(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use PUT or DELETE")
	}
}

func (h *EventHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, "invalid json body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeValidationError(w, "title is required")
		return
	}
	start, end, ok := parseEventTimes(w, req.StartISO, req.EndISO)
	if !ok {
		return
	}

	evt := &model.Event{
		ID:        newID("ev"),
		UserID:    UserID(r.Context()),
		Title:     req.Title,
		StartTime: start,
		EndTime:   end,
		Immutable: req.Immutable,
		Source:    strings.TrimSpace(req.Source),
		CreatedAt: time.Now().UTC(),
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.Create(ctx, tx, evt); err != nil {
		h.logger.Error("event create failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to create event")
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "event",
		AggregateID:   evt.ID,
		EventType:     "scheduler.event.created.v1",
		Payload:       eventPayload(evt),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to write outbox event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to commit")
		return
	}

	writeJSON(w, http.StatusCreated, eventToItem(evt))
}

func (h *EventHandler) list(w http.ResponseWriter, r *http.Request) {
	fromStr := strings.TrimSpace(r.URL.Query().Get("from"))
	toStr := strings.TrimSpace(r.URL.Query().Get("to"))
	if fromStr == "" || toStr == "" {
		writeValidationError(w, "from and to are required")
		return
	}
	from, err := parseISO(fromStr)
	if err != nil {
		writeValidationError(w, "invalid from: "+err.Error())
		return
	}
	to, err := parseISO(toStr)
	if err != nil {
		writeValidationError(w, "invalid to: "+err.Error())
		return
	}
	if !to.After(from) {
		writeValidationError(w, "to must be after from")
		return
	}

	events, err := h.repo.ListOverlapping(r.Context(), UserID(r.Context()), from, to)
	if err != nil {
		h.logger.Error("event list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to list events")
		return
	}

	items := make([]eventItem, 0, len(events))
	for i := range events {
		items = append(items, eventToItem(&events[i]))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *EventHandler) update(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	if eventID == "" {
		writeValidationError(w, "event id is required")
		return
	}
	var req updateEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, "invalid json body")
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	evt, err := h.repo.GetForUpdate(ctx, tx, UserID(ctx), eventID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to load event")
		return
	}
	if evt.Immutable {
		writeError(w, http.StatusConflict, "conflict", "immutable events cannot be modified")
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			writeValidationError(w, "title cannot be empty")
			return
		}
		evt.Title = title
	}
	startISO, endISO := formatISO(evt.StartTime), formatISO(evt.EndTime)
	if req.StartISO != nil {
		startISO = *req.StartISO
	}
	if req.EndISO != nil {
		endISO = *req.EndISO
	}
	if req.StartISO != nil || req.EndISO != nil {
		start, end, ok := parseEventTimes(w, startISO, endISO)
		if !ok {
			return
		}
		evt.StartTime, evt.EndTime = start, end
	}
	if req.Immutable != nil {
		evt.Immutable = *req.Immutable
	}

	if err := h.repo.Update(ctx, tx, &evt); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to update event")
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "event",
		AggregateID:   evt.ID,
		EventType:     "scheduler.event.updated.v1",
		Payload:       eventPayload(&evt),
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to write outbox event")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to commit")
		return
	}

	writeJSON(w, http.StatusOK, eventToItem(&evt))
}

func (h *EventHandler) delete(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	if eventID == "" {
		writeValidationError(w, "event id is required")
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	evt, err := h.repo.GetForUpdate(ctx, tx, UserID(ctx), eventID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "event not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to load event")
		return
	}
	if evt.Immutable {
		writeError(w, http.StatusConflict, "conflict", "immutable events cannot be deleted")
		return
	}

	if _, err := h.repo.Delete(ctx, tx, UserID(ctx), eventID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to delete event")
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "event",
		AggregateID:   evt.ID,
		EventType:     "scheduler.event.deleted.v1",
		Payload:       eventPayload(&evt),
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

// parseEventTimes validates the shared start/end rules and writes the
// validation response itself on failure.
func parseEventTimes(w http.ResponseWriter, startISO, endISO string) (time.Time, time.Time, bool) {
	start, err := parseISO(startISO)
	if err != nil {
		writeValidationError(w, "invalid startISO: "+err.Error())
		return time.Time{}, time.Time{}, false
	}
	end, err := parseISO(endISO)
	if err != nil {
		writeValidationError(w, "invalid endISO: "+err.Error())
		return time.Time{}, time.Time{}, false
	}
	if !end.After(start) {
		writeValidationError(w, "endISO must be after startISO")
		return time.Time{}, time.Time{}, false
	}
	if end.Sub(start) > maxEventDuration {
		writeValidationError(w, "event duration cannot exceed 12 hours")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func eventToItem(evt *model.Event) eventItem {
	return eventItem{
		ID:        evt.ID,
		Title:     evt.Title,
		StartISO:  formatISO(evt.StartTime),
		EndISO:    formatISO(evt.EndTime),
		Immutable: evt.Immutable,
		Source:    evt.Source,
		CreatedAt: formatISO(evt.CreatedAt),
	}
}

func eventPayload(evt *model.Event) []byte {
	payload, _ := json.Marshal(map[string]any{
		"event_id":  evt.ID,
		"user_id":   evt.UserID,
		"title":     evt.Title,
		"start":     formatISO(evt.StartTime),
		"end":       formatISO(evt.EndTime),
		"immutable": evt.Immutable,
		"source":    evt.Source,
	})
	return payload
}
