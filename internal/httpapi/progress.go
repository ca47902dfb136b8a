package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"shift-planner/internal/progress"
)

type progressRequest struct {
	Team     string         `json:"team" validate:"omitempty,max=64"`
	Stage    string         `json:"stage" validate:"omitempty,max=64"`
	Message  string         `json:"message"`
	Progress *int           `json:"progress"`
	Context  map[string]any `json:"context"`
}

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(queryParam(r, "limit"))
	if err != nil {
		limit = progress.DefaultLimit
	}
	limit = progress.ClampLimit(limit)

	items, err := h.progress.Recent(limit, strings.TrimSpace(queryParam(r, "team")))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"items": items, "limit": limit})
}

func (h *Handler) AppendProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.invalidJSON(w, r)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	entry := progress.Entry{
		Team:    req.Team,
		Stage:   strings.TrimSpace(req.Stage),
		Message: req.Message,
		Context: req.Context,
	}
	if req.Progress != nil {
		entry.Progress = progress.Percent(*req.Progress)
	}
	if err := h.progress.Append(entry); err != nil {
		if errors.Is(err, progress.ErrEmptyMessage) {
			h.errorResponse(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.internalServerError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"ok": true})
}
