package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"shift-planner/internal/engine"
	"shift-planner/internal/events"
	"shift-planner/internal/export"
	"shift-planner/internal/models"
	"shift-planner/internal/progress"
	"shift-planner/internal/repository"
	"shift-planner/pkg/calendar"
)

const stageSave = "schedule_save"

// ProgressLog - куда пишется ход генерации и сохранений
type ProgressLog interface {
	Append(e progress.Entry) error
}

// VersionNotifier получает уведомление о каждой сохранённой версии
type VersionNotifier interface {
	VersionSaved(ctx context.Context, ev events.VersionSaved) error
}

// ScheduleView - версия графика в ответе API. Период и id дублируются
// под старыми именами ключей.
type ScheduleView struct {
	Team      string                       `json:"team"`
	ViewStart string                       `json:"viewStart"`
	ViewEnd   string                       `json:"viewEnd"`
	Start     string                       `json:"start"`
	End       string                       `json:"end"`
	Employees []string                     `json:"employees"`
	Data      map[string]map[string]string `json:"data"`
	Note      string                       `json:"note"`

	VersionID      *uint      `json:"version_id"`
	VersionIDCamel *uint      `json:"versionId"`
	CreatedAt      *time.Time `json:"createdAt,omitempty"`
	CreatedByName  string     `json:"createdByName,omitempty"`

	Settings       *Settings              `json:"settings,omitempty"`
	HistoryProfile *engine.HistoryProfile `json:"historyProfile,omitempty"`
}

// VersionSummary - строка списка версий
type VersionSummary struct {
	ID            uint      `json:"id"`
	Team          string    `json:"team"`
	ViewStart     string    `json:"viewStart"`
	ViewEnd       string    `json:"viewEnd"`
	Note          string    `json:"note"`
	CreatedAt     time.Time `json:"createdAt"`
	CreatedByName string    `json:"createdByName"`
}

// SaveResult - итог сохранения
type SaveResult struct {
	VersionID uint      `json:"versionId"`
	Team      string    `json:"team"`
	ViewStart string    `json:"viewStart"`
	ViewEnd   string    `json:"viewEnd"`
	CreatedAt time.Time `json:"createdAt"`
}

type ScheduleService struct {
	repo      repository.ScheduleVersionRepository
	history   *HistoryService
	orgs      *OrgConfigService
	progress  ProgressLog
	notifiers []VersionNotifier
	pipeline  *engine.Pipeline
	labels    *engine.Labels
	logger    *logrus.Logger
	now       func() time.Time

	wg sync.WaitGroup
}

func NewScheduleService(
	repo repository.ScheduleVersionRepository,
	history *HistoryService,
	orgs *OrgConfigService,
	progressLog ProgressLog,
	pipeline *engine.Pipeline,
) *ScheduleService {
	return &ScheduleService{
		repo:     repo,
		history:  history,
		orgs:     orgs,
		progress: progressLog,
		pipeline: pipeline,
		labels:   engine.DefaultLabels(),
		logger:   logrus.New(),
		now:      time.Now,
	}
}

func (s *ScheduleService) SetLogger(l *logrus.Logger) {
	s.logger = l
}

// AddNotifier подключает получателя событий о сохранении
func (s *ScheduleService) AddNotifier(n VersionNotifier) {
	s.notifiers = append(s.notifiers, n)
}

// Wait ждёт окончания отправки уведомлений
func (s *ScheduleService) Wait() {
	s.wg.Wait()
}

// Labels - кодек смен сервиса
func (s *ScheduleService) Labels() *engine.Labels {
	return s.labels
}

// Fetch - актуальная версия команды за период и профиль истории до его начала.
// Без периода берётся текущий месяц. Если версии нет, Data пустая.
func (s *ScheduleService) Fetch(ctx context.Context, team, start, end, historyYearStart string) (*ScheduleView, error) {
	team = normalizeTeam(team)
	var span calendar.Span
	if start == "" && end == "" {
		now := s.now()
		span = calendar.MonthSpan(now.Year(), now.Month())
	} else {
		var err error
		if span, err = parseSpan(start, end); err != nil {
			return nil, err
		}
	}

	view := &ScheduleView{
		Team:      team,
		ViewStart: span.Start.String(),
		ViewEnd:   span.End.String(),
		Employees: []string{},
		Data:      map[string]map[string]string{},
	}

	row, err := s.repo.FindLatest(team, view.ViewStart, view.ViewEnd)
	if err != nil {
		s.logger.WithError(err).WithField("team", team).Error("Failed to fetch schedule")
		return nil, err
	}
	if row != nil {
		s.fillView(view, row)
	}
	view.Start, view.End = view.ViewStart, view.ViewEnd

	profile, err := s.history.ComputeProfile(ctx, team, view.ViewStart, historyYearStart)
	if err != nil {
		return nil, err
	}
	view.HistoryProfile = profile
	return view, nil
}

func (s *ScheduleService) fillView(view *ScheduleView, row *models.ScheduleVersion) {
	id := row.ID
	created := row.CreatedAt
	view.ViewStart, view.ViewEnd = row.ViewStart, row.ViewEnd
	view.Employees = row.Employees
	if row.Data != nil {
		view.Data = row.Data
	}
	view.Note = row.Note
	view.VersionID, view.VersionIDCamel = &id, &id
	view.CreatedAt = &created
	view.CreatedByName = row.CreatedByName
	if snap, ok := decodeSnapshot(row.Payload); ok {
		view.Settings = &snap.Settings
	}
}

// Save сохраняет новую версию. Если задана базовая версия, а последняя
// версия периода другая, возвращается *ConflictError.
func (s *ScheduleService) Save(ctx context.Context, req *SaveRequest) (*SaveResult, error) {
	in, err := normalizeSave(s.labels, req)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(snapshot{
		Team:      in.team,
		ViewStart: in.span.Start.String(),
		ViewEnd:   in.span.End.String(),
		Employees: in.employees,
		Data:      in.data,
		Note:      in.note,
		Operator:  in.operator,
		Settings:  req.Settings,
	})
	if err != nil {
		return nil, err
	}

	v := &models.ScheduleVersion{
		Team:          in.team,
		ViewStart:     in.span.Start.String(),
		ViewEnd:       in.span.End.String(),
		Employees:     in.employees,
		Data:          in.data,
		Note:          in.note,
		CreatedByName: in.operator,
		Payload:       string(payload),
	}

	err = s.repo.Transaction(func(tx repository.ScheduleVersionRepository) error {
		if in.baseID > 0 {
			latest, err := tx.LatestID(v.Team, v.ViewStart, v.ViewEnd)
			if err != nil {
				return err
			}
			if latest != 0 && latest != in.baseID {
				return &ConflictError{LatestID: latest}
			}
		}
		return tx.Create(v)
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			s.logger.WithFields(logrus.Fields{
				"team":    v.Team,
				"base_id": in.baseID,
				"latest":  conflict.LatestID,
			}).Warn("Schedule save conflict")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"id":       v.ID,
		"team":     v.Team,
		"operator": v.CreatedByName,
	}).Info("Schedule version saved")

	s.appendProgress(progress.Entry{
		Team:     v.Team,
		Stage:    stageSave,
		Message:  fmt.Sprintf("保存排班版本（%s ~ %s）", v.ViewStart, v.ViewEnd),
		Progress: progress.Percent(100),
		Context: map[string]any{
			"versionId": v.ID,
			"operator":  v.CreatedByName,
		},
	})
	s.history.Invalidate(ctx, v.Team)
	s.notify(events.VersionSaved{
		VersionID:  v.ID,
		Team:       v.Team,
		ViewStart:  v.ViewStart,
		ViewEnd:    v.ViewEnd,
		Operator:   v.CreatedByName,
		Employees:  len(v.Employees),
		Note:       v.Note,
		OccurredAt: v.CreatedAt,
	})

	return &SaveResult{
		VersionID: v.ID,
		Team:      v.Team,
		ViewStart: v.ViewStart,
		ViewEnd:   v.ViewEnd,
		CreatedAt: v.CreatedAt,
	}, nil
}

// notify рассылает событие в фоне; ошибки получателей только логируются
func (s *ScheduleService) notify(ev events.VersionSaved) {
	for _, n := range s.notifiers {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := n.VersionSaved(ctx, ev); err != nil {
				s.logger.WithError(err).WithField("version_id", ev.VersionID).Error("Failed to deliver version notification")
			}
		}()
	}
}

func (s *ScheduleService) appendProgress(e progress.Entry) {
	if s.progress == nil {
		return
	}
	if err := s.progress.Append(e); err != nil {
		s.logger.WithError(err).Warn("Failed to append progress entry")
	}
}

// ListVersions - версии команды, новые первыми
func (s *ScheduleService) ListVersions(ctx context.Context, team, start, end string) ([]VersionSummary, error) {
	rows, err := s.repo.List(normalizeTeam(team), start, end)
	if err != nil {
		return nil, err
	}
	out := make([]VersionSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, VersionSummary{
			ID:            r.ID,
			Team:          r.Team,
			ViewStart:     r.ViewStart,
			ViewEnd:       r.ViewEnd,
			Note:          r.Note,
			CreatedAt:     r.CreatedAt,
			CreatedByName: r.CreatedByName,
		})
	}
	return out, nil
}

// GetVersion - версия по id; версия другой команды считается отсутствующей
func (s *ScheduleService) GetVersion(ctx context.Context, id uint, team string) (*ScheduleView, error) {
	row, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if row == nil || (team != "" && row.Team != normalizeTeam(team)) {
		return nil, ErrVersionNotFound
	}
	view := &ScheduleView{Team: row.Team, Data: map[string]map[string]string{}}
	s.fillView(view, row)
	view.Start, view.End = view.ViewStart, view.ViewEnd
	return view, nil
}

// DeleteVersion удаляет версию команды
func (s *ScheduleService) DeleteVersion(ctx context.Context, id uint, team string) error {
	team = normalizeTeam(team)
	ok, err := s.repo.Delete(id, team)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVersionNotFound
	}
	s.logger.WithFields(logrus.Fields{"id": id, "team": team}).Info("Schedule version deleted")
	s.history.Invalidate(ctx, team)
	return nil
}

// ExportTable - таблица для выгрузки: последняя версия ровно за этот период.
// Без версии строки дат остаются, столбцов сотрудников нет.
func (s *ScheduleService) ExportTable(ctx context.Context, team, start, end string) (export.Table, calendar.Span, error) {
	span, err := parseSpan(start, end)
	if err != nil {
		return export.Table{}, calendar.Span{}, err
	}
	row, err := s.repo.FindByRange(normalizeTeam(team), span.Start.String(), span.End.String())
	if err != nil {
		return export.Table{}, calendar.Span{}, err
	}
	if row == nil {
		return export.BuildTable(nil, span, nil), span, nil
	}
	return export.BuildTable(row.Employees, span, row.Data), span, nil
}
