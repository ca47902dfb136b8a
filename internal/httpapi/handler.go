// Package httpapi - HTTP API планировщика на chi.
package httpapi

import (
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/sirupsen/logrus"

	"shift-planner/internal/progress"
	"shift-planner/internal/service"
)

// ProgressStore - журнал прогресса, доступный через API
type ProgressStore interface {
	Append(e progress.Entry) error
	Recent(limit int, team string) ([]progress.Entry, error)
}

type Handler struct {
	validate   *validator.Validate
	translator ut.Translator
	schedules  *service.ScheduleService
	orgs       *service.OrgConfigService
	progress   ProgressStore
	logger     *logrus.Logger

	Mux *chi.Mux
}

func NewHandler(schedules *service.ScheduleService, orgs *service.OrgConfigService, progress ProgressStore, logger *logrus.Logger) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		translator: trans,
		schedules:  schedules,
		orgs:       orgs,
		progress:   progress,
		logger:     logger,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(middleware.RequestID)
	h.Mux.Use(h.requestLogger)
	h.Mux.Use(h.recoverer)

	h.Mux.Route("/api", func(r chi.Router) {
		r.Route("/schedule", func(r chi.Router) {
			r.Get("/", h.GetSchedule)
			r.Post("/", h.SaveSchedule)
			r.Post("/generate", h.GenerateSchedule)
			r.Post("/night", h.ApplyNight)
			r.Get("/export", h.ExportSchedule)
			r.Route("/versions", func(r chi.Router) {
				r.Get("/", h.ListVersions)
				r.Route("/{id}", func(r chi.Router) {
					r.Use(h.versionID)
					r.Get("/", h.GetVersion)
					r.Delete("/", h.DeleteVersion)
				})
			})
		})

		r.Get("/progress", h.GetProgress)
		r.Post("/progress", h.AppendProgress)

		r.Get("/org-config", h.GetOrgConfig)
		r.Put("/org-config", h.SaveOrgConfig)
		r.Post("/org-config", h.SaveOrgConfig)
	})
}
