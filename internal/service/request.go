package service

import (
	"bytes"
	"encoding/json"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"shift-planner/internal/engine"
	"shift-planner/pkg/calendar"
)

const (
	DefaultTeam     = "default"
	DefaultOperator = "管理员"
	maxNoteRunes    = 1000
)

// Settings - параметры генерации, которые сохраняются вместе с версией
type Settings struct {
	AdminDays     *int               `json:"adminDays,omitempty"`
	RestPrefs     map[string]string  `json:"restPrefs,omitempty"`
	NightRules    *engine.NightRules `json:"nightRules,omitempty"`
	NightWindows  []calendar.Span    `json:"nightWindows,omitempty"`
	NightOverride *bool              `json:"nightOverride,omitempty"`
	*engine.Ratios
	YearlyOptimize bool `json:"yearlyOptimize"`
}

// FlexID принимает id числом или строкой; всё нечисловое, неположительное
// и больше MaxUint32 - 0
type FlexID uint

func (id *FlexID) UnmarshalJSON(b []byte) error {
	*id = 0
	raw := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if raw == "" || raw == "null" {
		return nil
	}
	if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil && n >= 1 && n <= math.MaxUint32 {
		*id = FlexID(uint(n))
	}
	return nil
}

// SaveRequest - запрос на сохранение версии. Базовая версия принимается
// под любым из четырёх имён.
type SaveRequest struct {
	Team      string                       `json:"team"`
	ViewStart string                       `json:"viewStart"`
	ViewEnd   string                       `json:"viewEnd"`
	Employees []string                     `json:"employees"`
	Data      map[string]map[string]string `json:"data"`
	Note      string                       `json:"note"`
	Operator  string                       `json:"operator"`

	BaseVersionID      FlexID `json:"baseVersionId"`
	BaseVersionIDSnake FlexID `json:"base_version_id"`
	VersionID          FlexID `json:"versionId"`
	VersionIDSnake     FlexID `json:"version_id"`

	Settings
}

// BaseID - первая положительная базовая версия, 0 если не задана
func (r *SaveRequest) BaseID() uint {
	for _, id := range []FlexID{r.BaseVersionID, r.BaseVersionIDSnake, r.VersionID, r.VersionIDSnake} {
		if id > 0 {
			return uint(id)
		}
	}
	return 0
}

// normalizedSave - проверенный запрос на сохранение
type normalizedSave struct {
	team      string
	span      calendar.Span
	employees []string
	data      map[string]map[string]string
	note      string
	operator  string
	baseID    uint
}

func normalizeSave(labels *engine.Labels, req *SaveRequest) (*normalizedSave, error) {
	span, err := parseSpan(req.ViewStart, req.ViewEnd)
	if err != nil {
		return nil, err
	}
	employees := normalizeEmployees(req.Employees)
	if len(employees) == 0 {
		return nil, invalid("成员列表不能为空")
	}
	data, err := normalizeGrid(labels, req.Data, employees)
	if err != nil {
		return nil, err
	}
	return &normalizedSave{
		team:      normalizeTeam(req.Team),
		span:      span,
		employees: employees,
		data:      data,
		note:      normalizeNote(req.Note),
		operator:  normalizeOperator(req.Operator),
		baseID:    req.BaseID(),
	}, nil
}

func normalizeTeam(team string) string {
	if t := strings.TrimSpace(team); t != "" {
		return t
	}
	return DefaultTeam
}

func parseDate(value, field string) (calendar.Date, error) {
	d, err := calendar.Parse(value)
	if err != nil {
		return 0, invalid("%s 需为 YYYY-MM-DD 格式", field)
	}
	return d, nil
}

func parseSpan(start, end string) (calendar.Span, error) {
	s, err := parseDate(start, "开始日期")
	if err != nil {
		return calendar.Span{}, err
	}
	e, err := parseDate(end, "结束日期")
	if err != nil {
		return calendar.Span{}, err
	}
	if s > e {
		return calendar.Span{}, invalid("开始日期不能晚于结束日期")
	}
	return calendar.Span{Start: s, End: e}, nil
}

// normalizeEmployees: обрезка пробелов, без пустых и повторов, порядок сохраняется
func normalizeEmployees(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		name := strings.TrimSpace(raw)
		if name == "" || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// normalizeGrid оставляет только разрешённых сотрудников и непустые смены.
// Подписи приводятся к каноническим; неизвестная смена или дата - ошибка.
func normalizeGrid(labels *engine.Labels, raw map[string]map[string]string, employees []string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string, len(raw))
	for _, day := range slices.Sorted(maps.Keys(raw)) {
		key := strings.TrimSpace(day)
		if key == "" {
			continue
		}
		d, err := calendar.Parse(key)
		if err != nil {
			return nil, invalid("日期 %q 需为 YYYY-MM-DD 格式", day)
		}
		clean := map[string]string{}
		for emp, value := range raw[day] {
			if !slices.Contains(employees, emp) || strings.TrimSpace(value) == "" {
				continue
			}
			s, err := labels.Parse(value)
			if err != nil {
				return nil, invalid("未知班次 %q（%s %s）", value, key, emp)
			}
			clean[emp] = labels.Label(s)
		}
		out[d.String()] = clean
	}
	return out, nil
}

func normalizeNote(note string) string {
	text := strings.TrimSpace(note)
	if utf8.RuneCountInString(text) > maxNoteRunes {
		text = string([]rune(text)[:maxNoteRunes])
	}
	return text
}

func normalizeOperator(name string) string {
	if text := strings.TrimSpace(name); text != "" {
		return text
	}
	return DefaultOperator
}

// snapshot - то, что кладётся в ScheduleVersion.Payload
type snapshot struct {
	Team      string                       `json:"team"`
	ViewStart string                       `json:"viewStart"`
	ViewEnd   string                       `json:"viewEnd"`
	Employees []string                     `json:"employees"`
	Data      map[string]map[string]string `json:"data"`
	Note      string                       `json:"note"`
	Operator  string                       `json:"operator"`
	Settings
}

func decodeSnapshot(payload string) (snapshot, bool) {
	var s snapshot
	if strings.TrimSpace(payload) == "" {
		return s, false
	}
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return snapshot{}, false
	}
	return s, true
}
