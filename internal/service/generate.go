package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"shift-planner/internal/engine"
	"shift-planner/internal/progress"
	"shift-planner/pkg/calendar"
)

const stageGenerate = "generate"

// GenerateRequest - запрос на генерацию. Незаданные сотрудники и настройки
// берутся из команды в конфигурации организации.
type GenerateRequest struct {
	Team      string                       `json:"team"`
	ViewStart string                       `json:"viewStart"`
	ViewEnd   string                       `json:"viewEnd"`
	Employees []string                     `json:"employees"`
	Data      map[string]map[string]string `json:"data"`

	UseHistory       bool   `json:"useHistory"`
	HistoryYearStart string `json:"historyYearStart"`

	// Save - сохранить результат как новую версию
	Save          bool   `json:"save"`
	Note          string `json:"note"`
	Operator      string `json:"operator"`
	BaseVersionID FlexID `json:"baseVersionId"`

	Settings
}

// GenerateResult - итог генерации
type GenerateResult struct {
	RunID      string                       `json:"runId"`
	Team       string                       `json:"team"`
	ViewStart  string                       `json:"viewStart"`
	ViewEnd    string                       `json:"viewEnd"`
	Employees  []string                     `json:"employees"`
	Data       map[string]map[string]string `json:"data"`
	Outcome    string                       `json:"outcome"`
	Stage      engine.Stage                 `json:"stage"`
	Violations []engine.Violation           `json:"violations"`
	History    *engine.HistoryProfile       `json:"historyProfile,omitempty"`
	Saved      *SaveResult                  `json:"saved,omitempty"`
}

// NightRequest - наложение 夜/中2 на готовую сетку
type NightRequest struct {
	Team          string                       `json:"team"`
	ViewStart     string                       `json:"viewStart"`
	ViewEnd       string                       `json:"viewEnd"`
	Employees     []string                     `json:"employees"`
	Data          map[string]map[string]string `json:"data"`
	NightWindows  []calendar.Span              `json:"nightWindows"`
	NightOverride bool                         `json:"nightOverride"`
	NightRules    *engine.NightRules           `json:"nightRules"`
}

// Generate строит график конвейером. Ход пишется в журнал прогресса и
// передаётся observe (может быть nil). При отмене возвращается последний
// снимок вместе с ошибкой контекста.
func (s *ScheduleService) Generate(ctx context.Context, req *GenerateRequest, observe engine.Observer) (*GenerateResult, error) {
	team := normalizeTeam(req.Team)
	if err := s.applyTeamDefaults(ctx, team, req); err != nil {
		return nil, err
	}

	span, err := parseSpan(req.ViewStart, req.ViewEnd)
	if err != nil {
		return nil, err
	}
	employees := normalizeEmployees(req.Employees)
	if len(employees) == 0 {
		return nil, invalid("成员列表不能为空")
	}
	if err := checkNightWindows(req.NightWindows); err != nil {
		return nil, err
	}
	data, err := normalizeGrid(s.labels, req.Data, employees)
	if err != nil {
		return nil, err
	}
	grid, err := s.labels.Decode(data)
	if err != nil {
		return nil, invalid("%s", err.Error())
	}

	params := engine.Params{
		Employees:      employees,
		Span:           span,
		Grid:           grid,
		RestPrefs:      engine.SanitizeRestPrefs(req.RestPrefs),
		Ratios:         engine.DefaultRatios(),
		YearlyOptimize: req.YearlyOptimize,
	}
	if req.Ratios != nil {
		params.Ratios = *req.Ratios
	}
	if req.AdminDays != nil {
		params.AdminDays = *req.AdminDays
	}
	if req.UseHistory {
		if params.History, err = s.history.ComputeProfile(ctx, team, span.Start.String(), req.HistoryYearStart); err != nil {
			return nil, err
		}
	}

	runID := uuid.NewString()
	log := s.logger.WithFields(logrus.Fields{"team": team, "run_id": runID})
	log.WithField("span", span.String()).Info("Starting schedule generation")

	track := func(ev engine.Event) {
		switch ev.Kind {
		case engine.EventStage, engine.EventLog, engine.EventDone:
			s.appendProgress(progress.Entry{
				Team:     team,
				Stage:    stageGenerate,
				Message:  ev.Message,
				Progress: progress.Percent(ev.Stage.Progress),
				Context:  map[string]any{"runId": runID, "stage": ev.Stage.Index},
			})
		}
		if observe != nil {
			observe(ev)
		}
	}

	res, err := s.pipeline.Run(ctx, params, track)
	if res == nil {
		var ve *engine.ValidationError
		if errors.As(err, &ve) {
			return nil, invalid("参数 %s 不合法（%s）", ve.Field, ve.Reason)
		}
		return nil, err
	}

	out := &GenerateResult{
		RunID:      runID,
		Team:       team,
		ViewStart:  span.Start.String(),
		ViewEnd:    span.End.String(),
		Employees:  employees,
		Outcome:    res.Outcome.String(),
		Stage:      res.Stage,
		Violations: res.Violations,
		History:    params.History,
	}
	if out.Violations == nil {
		out.Violations = []engine.Violation{}
	}

	if res.Outcome != engine.Completed {
		out.Data = s.labels.Encode(res.Grid)
		s.appendProgress(progress.Entry{
			Team:     team,
			Stage:    stageGenerate,
			Message:  "生成中止：" + res.Stage.Label,
			Progress: progress.Percent(res.Stage.Progress),
			Context:  map[string]any{"runId": runID, "outcome": out.Outcome},
		})
		log.WithError(err).WithField("outcome", out.Outcome).Warn("Schedule generation did not complete")
		return out, err
	}

	result := res.Grid
	if len(req.NightWindows) > 0 {
		result = engine.AssignNightWindows(result, employees, s.nightPlan(span, req.NightWindows, req.NightOverride, req.NightRules))
	}
	out.Data = s.labels.Encode(result)

	if req.Save {
		saved, err := s.Save(ctx, &SaveRequest{
			Team:          team,
			ViewStart:     out.ViewStart,
			ViewEnd:       out.ViewEnd,
			Employees:     employees,
			Data:          out.Data,
			Note:          req.Note,
			Operator:      req.Operator,
			BaseVersionID: req.BaseVersionID,
			Settings:      req.Settings,
		})
		if err != nil {
			return out, err
		}
		out.Saved = saved
	}

	log.WithField("violations", len(out.Violations)).Info("Schedule generation finished")
	return out, nil
}

// applyTeamDefaults заполняет пустые поля запроса из конфигурации команды.
// Если состав так и не задан, берётся из последней версии команды.
func (s *ScheduleService) applyTeamDefaults(ctx context.Context, team string, req *GenerateRequest) error {
	if s.orgs != nil {
		t, err := s.orgs.Team(ctx, team)
		if err != nil {
			return err
		}
		if t != nil {
			mergeTeam(req, t)
		}
	}
	if len(req.Employees) > 0 {
		return nil
	}
	row, err := s.repo.FindLatest(team, "", "")
	if err != nil {
		return err
	}
	if row != nil {
		req.Employees = row.Employees
	}
	return nil
}

func mergeTeam(req *GenerateRequest, t *Team) {
	if len(req.Employees) == 0 {
		req.Employees = t.Employees
	}
	if req.RestPrefs == nil {
		req.RestPrefs = t.RestPrefs
	}
	if req.Ratios == nil {
		req.Ratios = t.Ratios
	}
	if req.NightRules == nil {
		req.NightRules = t.NightRules
	}
	if req.AdminDays == nil && t.AdminDays > 0 {
		days := t.AdminDays
		req.AdminDays = &days
	}
}

func checkNightWindows(windows []calendar.Span) error {
	for _, w := range windows {
		if w.Start > w.End {
			return invalid("夜班区间 %s 开始日期晚于结束日期", w.String())
		}
	}
	return nil
}

func (s *ScheduleService) nightPlan(span calendar.Span, windows []calendar.Span, override *bool, rules *engine.NightRules) engine.NightPlan {
	plan := engine.NightPlan{
		Windows: windows,
		Rules:   engine.DefaultNightRules(),
		Bounds:  span,
	}
	if override != nil {
		plan.Override = *override
	}
	if rules != nil {
		plan.Rules = *rules
	}
	return plan
}

// ApplyNight накладывает окна 夜/中2 на переданную сетку без запуска конвейера
func (s *ScheduleService) ApplyNight(ctx context.Context, req *NightRequest) (map[string]map[string]string, error) {
	span, err := parseSpan(req.ViewStart, req.ViewEnd)
	if err != nil {
		return nil, err
	}
	employees := normalizeEmployees(req.Employees)
	if len(employees) == 0 {
		return nil, invalid("成员列表不能为空")
	}
	if len(req.NightWindows) == 0 {
		return nil, invalid("缺少夜班区间")
	}
	if err := checkNightWindows(req.NightWindows); err != nil {
		return nil, err
	}
	data, err := normalizeGrid(s.labels, req.Data, employees)
	if err != nil {
		return nil, err
	}
	grid, err := s.labels.Decode(data)
	if err != nil {
		return nil, invalid("%s", err.Error())
	}

	override := req.NightOverride
	result := engine.AssignNightWindows(grid, employees, s.nightPlan(span, req.NightWindows, &override, req.NightRules))

	s.logger.WithFields(logrus.Fields{
		"team":    normalizeTeam(req.Team),
		"windows": len(req.NightWindows),
	}).Info("Night overlay applied")
	return s.labels.Encode(result), nil
}
