package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/mozillazg/go-pinyin"
	"github.com/sirupsen/logrus"

	"shift-planner/internal/engine"
	"shift-planner/internal/repository"
)

// Team - команда из конфигурации организации
type Team struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Employees  []string           `json:"employees"`
	RestPrefs  map[string]string  `json:"restPrefs,omitempty"`
	Ratios     *engine.Ratios     `json:"ratios,omitempty" validate:"omitempty"`
	NightRules *engine.NightRules `json:"nightRules,omitempty"`
	AdminDays  int                `json:"adminDays,omitempty" validate:"gte=0,lte=31"`
}

// OrgSettings - конфигурация организации. Неизвестные ключи сохраняются как есть.
type OrgSettings struct {
	ActiveTeam string `json:"activeTeam"`
	Teams      []Team `json:"teams" validate:"dive"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (o *OrgSettings) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("配置必须是对象")
	}
	*o = OrgSettings{}
	if v, ok := raw["activeTeam"]; ok {
		if err := json.Unmarshal(v, &o.ActiveTeam); err != nil {
			return err
		}
		delete(raw, "activeTeam")
	}
	if v, ok := raw["teams"]; ok {
		if err := json.Unmarshal(v, &o.Teams); err != nil {
			return err
		}
		delete(raw, "teams")
	}
	if len(raw) > 0 {
		o.Extra = raw
	}
	return nil
}

func (o OrgSettings) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(o.Extra)+2)
	for k, v := range o.Extra {
		out[k] = v
	}
	out["activeTeam"] = o.ActiveTeam
	teams := o.Teams
	if teams == nil {
		teams = []Team{}
	}
	out["teams"] = teams
	return json.Marshal(out)
}

// Team - команда по id
func (o *OrgSettings) Team(id string) (*Team, bool) {
	for i := range o.Teams {
		if o.Teams[i].ID == id {
			return &o.Teams[i], true
		}
	}
	return nil, false
}

type OrgConfigService struct {
	repo     repository.OrgConfigRepository
	validate *validator.Validate
	logger   *logrus.Logger
}

func NewOrgConfigService(repo repository.OrgConfigRepository) *OrgConfigService {
	return &OrgConfigService{
		repo:     repo,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logrus.New(),
	}
}

func (s *OrgConfigService) SetLogger(l *logrus.Logger) {
	s.logger = l
}

// Get - текущая конфигурация; без сохранённой - пустая
func (s *OrgConfigService) Get(ctx context.Context) (*OrgSettings, *time.Time, error) {
	row, err := s.repo.Get()
	if err != nil {
		return nil, nil, err
	}
	if row == nil {
		return &OrgSettings{Teams: []Team{}}, nil, nil
	}

	var settings OrgSettings
	if err := json.Unmarshal([]byte(row.Payload), &settings); err != nil {
		s.logger.WithError(err).Warn("Stored org config is unreadable, returning empty config")
		return &OrgSettings{Teams: []Team{}}, &row.UpdatedAt, nil
	}
	return &settings, &row.UpdatedAt, nil
}

// Save нормализует и сохраняет конфигурацию
func (s *OrgConfigService) Save(ctx context.Context, settings *OrgSettings) (*OrgSettings, error) {
	if err := s.normalize(settings); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Save(string(payload)); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"teams":       len(settings.Teams),
		"active_team": settings.ActiveTeam,
	}).Info("Org config saved")
	return settings, nil
}

// Team - команда из сохранённой конфигурации или nil
func (s *OrgConfigService) Team(ctx context.Context, id string) (*Team, error) {
	settings, _, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if t, ok := settings.Team(id); ok {
		return t, nil
	}
	return nil, nil
}

func (s *OrgConfigService) normalize(o *OrgSettings) error {
	seen := map[string]bool{}
	for i := range o.Teams {
		t := &o.Teams[i]
		t.Name = strings.TrimSpace(t.Name)
		t.ID = strings.TrimSpace(t.ID)
		if t.Name == "" {
			t.Name = t.ID
		}
		if t.Name == "" {
			return invalid("第 %d 个团队缺少名称", i+1)
		}
		if t.ID == "" {
			t.ID = TeamSlug(t.Name)
		}
		if t.ID == "" {
			t.ID = fmt.Sprintf("team-%d", i+1)
		}
		base := t.ID
		for n := 2; seen[t.ID]; n++ {
			t.ID = fmt.Sprintf("%s-%d", base, n)
		}
		seen[t.ID] = true

		t.Employees = normalizeEmployees(t.Employees)
		if t.RestPrefs != nil {
			t.RestPrefs = engine.SanitizeRestPrefs(t.RestPrefs).Strings()
		}
	}

	if err := s.validate.Struct(o); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			return invalid("配置字段 %s 不合法（%s）", ve[0].Namespace(), ve[0].Tag())
		}
		return err
	}

	if _, ok := o.Team(o.ActiveTeam); !ok {
		o.ActiveTeam = ""
		if len(o.Teams) > 0 {
			o.ActiveTeam = o.Teams[0].ID
		}
	}
	return nil
}

// TeamSlug строит id команды из названия: иероглифы - пиньинь,
// латиница и цифры - как есть, всё в нижнем регистре через дефис.
// "运维组" -> "yun-wei-zu".
func TeamSlug(name string) string {
	var (
		words []string
		word  strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			words = append(words, strings.ToLower(word.String()))
			word.Reset()
		}
	}
	for _, r := range name {
		switch {
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			word.WriteRune(r)
		case unicode.Is(unicode.Han, r):
			flush()
			words = append(words, pinyin.LazyConvert(string(r), nil)...)
		default:
			flush()
		}
	}
	flush()
	return strings.Join(words, "-")
}
