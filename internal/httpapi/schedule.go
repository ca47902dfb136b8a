package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"shift-planner/internal/export"
	"shift-planner/internal/service"
)

// rangeQuery - команда и период из строки запроса
type rangeQuery struct {
	Team  string `json:"team" validate:"omitempty,max=64"`
	Start string `json:"start" validate:"required,datetime=2006-01-02"`
	End   string `json:"end" validate:"required,datetime=2006-01-02"`
}

func queryParam(r *http.Request, names ...string) string {
	q := r.URL.Query()
	for _, n := range names {
		if v := q.Get(n); v != "" {
			return v
		}
	}
	return ""
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	view, err := h.schedules.Fetch(r.Context(),
		queryParam(r, "team"),
		queryParam(r, "start", "viewStart"),
		queryParam(r, "end", "viewEnd"),
		queryParam(r, "historyYearStart", "history_year_start"),
	)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, view)
}

func (h *Handler) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	var req service.SaveRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.invalidJSON(w, r)
		return
	}
	saved, err := h.schedules.Save(r.Context(), &req)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"ok":         true,
		"version_id": saved.VersionID,
		"versionId":  saved.VersionID,
		"createdAt":  saved.CreatedAt,
	})
}

func (h *Handler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	var req service.GenerateRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.invalidJSON(w, r)
		return
	}
	res, err := h.schedules.Generate(r.Context(), &req, nil)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, res)
}

func (h *Handler) ApplyNight(w http.ResponseWriter, r *http.Request) {
	var req service.NightRequest
	if err := h.readJSON(w, r, &req); err != nil {
		h.invalidJSON(w, r)
		return
	}
	data, err := h.schedules.ApplyNight(r.Context(), &req)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"data": data})
}

func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.schedules.ListVersions(r.Context(), queryParam(r, "team"), queryParam(r, "start"), queryParam(r, "end"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"versions": versions})
}

func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id := r.Context().Value(versionIDCtxKey).(uint)
	view, err := h.schedules.GetVersion(r.Context(), id, queryParam(r, "team"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, view)
}

func (h *Handler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	id := r.Context().Value(versionIDCtxKey).(uint)
	if err := h.schedules.DeleteVersion(r.Context(), id, queryParam(r, "team")); err != nil {
		h.serviceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]any{"ok": true, "deleted": id})
}

func (h *Handler) ExportSchedule(w http.ResponseWriter, r *http.Request) {
	q := rangeQuery{
		Team:  queryParam(r, "team"),
		Start: queryParam(r, "start"),
		End:   queryParam(r, "end"),
	}
	if err := h.validate.Struct(q); err != nil {
		h.badRequest(w, r, err)
		return
	}

	table, span, err := h.schedules.ExportTable(r.Context(), q.Team, q.Start, q.End)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	var buf bytes.Buffer
	format := export.CSV
	if queryParam(r, "format") == "csv" {
		err = export.WriteCSV(&buf, table)
	} else {
		format, err = export.Write(&buf, table, h.logger)
	}
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	name := export.Filename(span) + "." + format.Ext
	w.Header().Set("Content-Type", format.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s",
		"schedule_"+span.Start.String()+"_"+span.End.String()+"."+format.Ext, url.PathEscape(name)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logInternalServerError(r, err)
	}
}
