package httpapi

import (
	"net/http"

	"shift-planner/internal/service"
)

type orgConfigRequest struct {
	Config *service.OrgSettings `json:"config"`
}

func (h *Handler) GetOrgConfig(w http.ResponseWriter, r *http.Request) {
	settings, updated, err := h.orgs.Get(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"config":     settings,
		"updated_at": updated,
	})
}

func (h *Handler) SaveOrgConfig(w http.ResponseWriter, r *http.Request) {
	var req orgConfigRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if req.Config == nil {
		h.errorResponse(w, r, http.StatusBadRequest, "缺少 config")
		return
	}
	settings, err := h.orgs.Save(r.Context(), req.Config)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"ok": true, "config": settings})
}
