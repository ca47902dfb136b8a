package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"shift-planner/internal/service"
)

const maxBodyBytes = 8 << 20

func (h *Handler) logInternalServerError(r *http.Request, err error) {
	h.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).WithError(err).Error("Internal server error")
}

func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logInternalServerError(r, err)
	}
}

// ErrorResponse - тело ответа с ошибкой
type ErrorResponse struct {
	Message         string `json:"message"`
	Code            int    `json:"code,omitempty"`
	LatestVersionID uint   `json:"latest_version_id,omitempty"`
}

func (h *Handler) errorResponse(w http.ResponseWriter, r *http.Request, status int, msg string) {
	h.writeJSON(w, r, status, ErrorResponse{Message: msg})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.errorResponse(w, r, http.StatusBadRequest, validationErrors[0].Translate(h.translator))
		return
	}
	h.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (h *Handler) invalidJSON(w http.ResponseWriter, r *http.Request) {
	h.errorResponse(w, r, http.StatusBadRequest, "请求体不是合法的 JSON")
}

func (h *Handler) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	h.logInternalServerError(r, err)
	h.errorResponse(w, r, http.StatusInternalServerError, "服务器内部错误")
}

// serviceError переводит ошибку сервиса в HTTP-ответ
func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &conflict):
		h.writeJSON(w, r, http.StatusConflict, ErrorResponse{
			Message:         conflict.Error(),
			Code:            http.StatusConflict,
			LatestVersionID: conflict.LatestID,
		})
	case errors.Is(err, service.ErrInvalidInput):
		h.badRequest(w, r, err)
	case errors.Is(err, service.ErrVersionNotFound):
		h.errorResponse(w, r, http.StatusNotFound, err.Error())
	default:
		h.internalServerError(w, r, err)
	}
}
