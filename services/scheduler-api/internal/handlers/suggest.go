package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/mzivlin/timecraft/services/scheduler-api/internal/engine"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/interval"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/model"
)

// maxSuggestRange bounds the availability day walk.
const maxSuggestRange = 92 * 24 * time.Hour

// AvailabilitySource and BusySource are the storage seams the suggestion
// endpoints read through; the pgx repositories satisfy them.
type AvailabilitySource interface {
	Get(ctx context.Context, userID string) (model.Availability, error)
}

type BusySource interface {
	ListOverlapping(ctx context.Context, userID string, start, end time.Time) ([]model.Event, error)
}

type SuggestHandler struct {
	avail  AvailabilitySource
	events BusySource
	logger *slog.Logger
	now    func() time.Time
}

func NewSuggestHandler(avail AvailabilitySource, events BusySource, logger *slog.Logger) *SuggestHandler {
	return &SuggestHandler{avail: avail, events: events, logger: logger, now: time.Now}
}

type suggestOptions struct {
	StepMin      int    `json:"stepMin"`
	SnapMin      int    `json:"snapMin"`
	NotBeforeISO string `json:"notBeforeISO"`
	ResultCap    int    `json:"resultCap"`
}

type suggestRequest struct {
	DurationMin int            `json:"durationMin"`
	FromISO     string         `json:"fromISO"`
	ToISO       string         `json:"toISO"`
	Options     suggestOptions `json:"options"`
}

type suggestionItem struct {
	StartISO string  `json:"startISO"`
	EndISO   string  `json:"endISO"`
	Score    float64 `json:"score"`
}

type suggestResponse struct {
	Suggestions []suggestionItem `json:"suggestions"`
}

func (h *SuggestHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var req suggestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, "invalid json body")
		return
	}
	if req.DurationMin < minTaskDuration || req.DurationMin > maxTaskDuration {
		writeValidationError(w, "durationMin must be between 5 and 480")
		return
	}
	from, err := parseISO(req.FromISO)
	if err != nil {
		writeValidationError(w, "invalid fromISO: "+err.Error())
		return
	}
	to, err := parseISO(req.ToISO)
	if err != nil {
		writeValidationError(w, "invalid toISO: "+err.Error())
		return
	}
	if !to.After(from) {
		writeValidationError(w, "toISO must be after fromISO")
		return
	}
	if to.Sub(from) > maxSuggestRange {
		writeValidationError(w, "range cannot exceed 92 days")
		return
	}

	// Suggestions never start in the past: the floor is now, pushed later
	// when the caller supplies notBeforeISO.
	now := h.now().UTC().Truncate(time.Second)
	notBefore := now
	if req.Options.NotBeforeISO != "" {
		parsed, err := parseISO(req.Options.NotBeforeISO)
		if err != nil {
			writeValidationError(w, "invalid notBeforeISO: "+err.Error())
			return
		}
		if parsed.After(notBefore) {
			notBefore = parsed
		}
	}
	if req.Options.StepMin < 0 || req.Options.SnapMin < 0 || req.Options.ResultCap < 0 {
		writeValidationError(w, "options must be non-negative")
		return
	}

	ctx := r.Context()
	userID := UserID(ctx)

	av, err := h.avail.Get(ctx, userID)
	if err != nil {
		h.logger.Error("availability fetch failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load availability")
		return
	}
	busy, err := h.busyIntervals(ctx, userID, from, to)
	if err != nil {
		h.logger.Error("event fetch failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load events")
		return
	}

	candidates, err := engine.Suggest(
		templateFromModel(av),
		busy,
		from, to,
		time.Duration(req.DurationMin)*time.Minute,
		engine.Options{
			Step:      time.Duration(req.Options.StepMin) * time.Minute,
			Snap:      time.Duration(req.Options.SnapMin) * time.Minute,
			NotBefore: notBefore,
			ResultCap: req.Options.ResultCap,
		},
	)
	if err != nil {
		if errors.Is(err, engine.ErrValidation) {
			writeValidationError(w, err.Error())
			return
		}
		h.logger.Error("suggestion failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "suggestion failed")
		return
	}

	items := make([]suggestionItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, suggestionItem{
			StartISO: formatISO(c.Start),
			EndISO:   formatISO(c.End),
			Score:    c.Score,
		})
	}
	writeJSON(w, http.StatusOK, suggestResponse{Suggestions: items})
}

type checkRequest struct {
	StartISO string `json:"startISO"`
	EndISO   string `json:"endISO"`
}

type conflictBody struct {
	StartISO string `json:"startISO"`
	EndISO   string `json:"endISO"`
}

type checkResponse struct {
	Free     bool          `json:"free"`
	Conflict *conflictBody `json:"conflict,omitempty"`
}

func (h *SuggestHandler) Check(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, "invalid json body")
		return
	}
	start, err := parseISO(req.StartISO)
	if err != nil {
		writeValidationError(w, "invalid startISO: "+err.Error())
		return
	}
	end, err := parseISO(req.EndISO)
	if err != nil {
		writeValidationError(w, "invalid endISO: "+err.Error())
		return
	}
	if !end.After(start) {
		writeValidationError(w, "endISO must be after startISO")
		return
	}

	ctx := r.Context()
	busy, err := h.busyIntervals(ctx, UserID(ctx), start, end)
	if err != nil {
		h.logger.Error("event fetch failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load events")
		return
	}

	result, err := engine.CheckConflict(interval.Interval{Start: start, End: end}, busy)
	if err != nil {
		if errors.Is(err, engine.ErrValidation) {
			writeValidationError(w, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "conflict check failed")
		return
	}

	resp := checkResponse{Free: result.Free}
	if result.Conflict != nil {
		resp.Conflict = &conflictBody{
			StartISO: formatISO(result.Conflict.Start),
			EndISO:   formatISO(result.Conflict.End),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SuggestHandler) busyIntervals(ctx context.Context, userID string, from, to time.Time) ([]interval.Interval, error) {
	events, err := h.events.ListOverlapping(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	busy := make([]interval.Interval, 0, len(events))
	for _, evt := range events {
		busy = append(busy, interval.Interval{Start: evt.StartTime, End: evt.EndTime})
	}
	return busy, nil
}
