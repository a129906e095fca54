package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/mzivlin/timecraft/services/scheduler-api/internal/engine"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/model"
	"github.com/mzivlin/timecraft/services/scheduler-api/internal/storage"
)

type AvailabilityHandler struct {
	repo   *storage.AvailabilityRepository
	logger *slog.Logger
}

func NewAvailabilityHandler(repo *storage.AvailabilityRepository, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{repo: repo, logger: logger}
}

type availabilityBody struct {
	Timezone string                    `json:"timezone"`
	Windows  map[string][]model.Window `json:"windows"`
}

func (h *AvailabilityHandler) Handle(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or PUT")
	}
}

func (h *AvailabilityHandler) get(w http.ResponseWriter, r *http.Request) {
	av, err := h.repo.Get(r.Context(), UserID(r.Context()))
	if err != nil {
		h.logger.Error("availability fetch failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load availability")
		return
	}
	writeJSON(w, http.StatusOK, availabilityBody{Timezone: av.Timezone, Windows: av.Windows})
}

func (h *AvailabilityHandler) put(w http.ResponseWriter, r *http.Request) {
	var req availabilityBody
	if err := decodeJSON(r, &req); err != nil {
		writeValidationError(w, "invalid json body")
		return
	}
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Windows == nil {
		req.Windows = map[string][]model.Window{}
	}

	tpl := templateFromBody(req)
	if err := tpl.Validate(); err != nil {
		writeValidationError(w, err.Error())
		return
	}

	av := model.Availability{
		UserID:   UserID(r.Context()),
		Timezone: req.Timezone,
		Windows:  req.Windows,
	}
	if err := h.repo.Put(r.Context(), av); err != nil {
		h.logger.Error("availability save failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "failed to save availability")
		return
	}
	writeJSON(w, http.StatusOK, availabilityBody{Timezone: av.Timezone, Windows: av.Windows})
}

func templateFromBody(body availabilityBody) engine.WeeklyTemplate {
	return templateFromModel(model.Availability{Timezone: body.Timezone, Windows: body.Windows})
}

func templateFromModel(av model.Availability) engine.WeeklyTemplate {
	windows := make(map[string][]engine.LocalWindow, len(av.Windows))
	for day, wins := range av.Windows {
		converted := make([]engine.LocalWindow, 0, len(wins))
		for _, win := range wins {
			converted = append(converted, engine.LocalWindow{Start: win.Start, End: win.End})
		}
		windows[day] = converted
	}
	return engine.WeeklyTemplate{Timezone: av.Timezone, Windows: windows}
}
