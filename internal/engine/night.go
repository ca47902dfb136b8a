package engine

import (
	"encoding/json"
	"slices"

	"shift-planner/pkg/calendar"
)

// nightScanLimit - сколько дней окна просматривается в поисках места для 夜
const nightScanLimit = 120

// NightRules - переключатели правил для 夜 и 中2
type NightRules struct {
	// PrioritizeInterval - шаг 中2 равен 3 вместо 2
	PrioritizeInterval bool `json:"prioritizeInterval" yaml:"prioritizeInterval"`
	// RestAfterNight - два дня 休 после 夜
	RestAfterNight bool `json:"restAfterNight" yaml:"restAfterNight"`
	// EnforceRestCap - не ставить смену, если серия превысит MaxConsecutiveWork
	EnforceRestCap  bool `json:"enforceRestCap" yaml:"enforceRestCap"`
	RestAfterMid2   bool `json:"restAfterMid2" yaml:"restAfterMid2"`
	AllowDoubleMid2 bool `json:"allowDoubleMid2" yaml:"allowDoubleMid2"`
	// AllowNightDay4 - разрешить 夜 по четвергам
	AllowNightDay4 bool `json:"allowNightDay4" yaml:"allowNightDay4"`
}

func DefaultNightRules() NightRules {
	return NightRules{
		RestAfterNight: true,
		EnforceRestCap: true,
		RestAfterMid2:  true,
	}
}

// UnmarshalJSON - отсутствующие ключи берутся из DefaultNightRules.
// Поддерживается старый ключ rest2AfterNight{enabled, mandatory}.
func (r *NightRules) UnmarshalJSON(b []byte) error {
	var raw struct {
		PrioritizeInterval *bool `json:"prioritizeInterval"`
		RestAfterNight     *bool `json:"restAfterNight"`
		EnforceRestCap     *bool `json:"enforceRestCap"`
		RestAfterMid2      *bool `json:"restAfterMid2"`
		AllowDoubleMid2    *bool `json:"allowDoubleMid2"`
		AllowNightDay4     *bool `json:"allowNightDay4"`
		Rest2AfterNight    *struct {
			Enabled   *bool `json:"enabled"`
			Mandatory *bool `json:"mandatory"`
		} `json:"rest2AfterNight"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := DefaultNightRules()
	if legacy := raw.Rest2AfterNight; legacy != nil {
		setBool(&out.RestAfterNight, legacy.Enabled)
		setBool(&out.EnforceRestCap, legacy.Mandatory)
	}
	setBool(&out.PrioritizeInterval, raw.PrioritizeInterval)
	setBool(&out.RestAfterNight, raw.RestAfterNight)
	setBool(&out.EnforceRestCap, raw.EnforceRestCap)
	setBool(&out.RestAfterMid2, raw.RestAfterMid2)
	setBool(&out.AllowDoubleMid2, raw.AllowDoubleMid2)
	setBool(&out.AllowNightDay4, raw.AllowNightDay4)
	*r = out
	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// NightPlan - что и где раскладывать
type NightPlan struct {
	Windows []calendar.Span
	// Override - разрешить перезапись уже назначенных рабочих смен
	Override bool
	Rules    NightRules
	// Bounds - период всего графика. Окна обрезаются по нему, и
	// принудительный 休 за его пределы не пишется. Нулевое значение - без ограничений.
	Bounds calendar.Span
}

// AssignNightWindows применяет окна по очереди; порядок сотрудников
// для каждого окна считается заново по текущей сетке.
func AssignNightWindows(g *Grid, employees []string, plan NightPlan) *Grid {
	w := g.Clone()
	for _, win := range plan.Windows {
		w = assignNight(w, employees, win, plan)
	}
	return w
}

// AssignNight раскладывает 夜 и 中2 в одном окне
func AssignNight(g *Grid, employees []string, window calendar.Span, plan NightPlan) *Grid {
	return assignNight(g.Clone(), employees, window, plan)
}

func assignNight(w *Grid, employees []string, window calendar.Span, plan NightPlan) *Grid {
	window, ok := plan.clip(window)
	if !ok || len(employees) == 0 {
		return w
	}
	rules := plan.Rules

	order := slices.Clone(employees)
	runs := make(map[string]int, len(order))
	for _, e := range order {
		runs[e] = w.LongestRun(e, window)
	}
	slices.SortStableFunc(order, func(a, b string) int {
		if runs[a] != runs[b] {
			return runs[a] - runs[b]
		}
		return CompareNames(a, b)
	})

	for _, e := range order {
		placeNight(w, e, window, plan)
	}

	interval := 2
	if rules.PrioritizeInterval {
		interval = 3
	}
	for idx, e := range order {
		for i := idx % interval; i < window.Days(); i += interval {
			d := window.Start.AddDays(i)
			if !canPlaceMid2(w, d, e, plan.Override, rules) {
				continue
			}
			w.Set(d, e, Mid2)
			if rules.RestAfterMid2 {
				plan.forceRest(w, d.AddDays(1), e)
			}
		}
	}
	return w
}

// placeNight ставит не больше одной 夜 на сотрудника
func placeNight(w *Grid, e string, window calendar.Span, plan NightPlan) {
	rules := plan.Rules
	steps := 0
	for d := range window.Dates() {
		if !plan.Override && w.Get(d, e).IsWork() {
			continue
		}
		steps++
		if steps > nightScanLimit {
			return
		}
		if !rules.AllowNightDay4 && d.Weekday() == 4 {
			continue
		}
		if rules.RestAfterNight && nightWithin(w, d, e) {
			continue
		}
		if rules.EnforceRestCap && exceedsCap(w, d, e, Night) {
			continue
		}
		w.Set(d, e, Night)
		if rules.RestAfterNight {
			plan.forceRest(w, d.AddDays(1), e)
			plan.forceRest(w, d.AddDays(2), e)
		}
		return
	}
}

func canPlaceMid2(w *Grid, d calendar.Date, e string, override bool, rules NightRules) bool {
	cur := w.Get(d, e)
	if cur == Night {
		return false
	}
	if !override && cur.IsWork() {
		return false
	}
	if rules.RestAfterNight && nightWithin(w, d, e) {
		return false
	}
	if !rules.AllowDoubleMid2 && w.Get(d.AddDays(-1), e) == Mid2 {
		return false
	}
	if rules.RestAfterMid2 && w.Get(d.AddDays(1), e) == Night {
		return false
	}
	if rules.EnforceRestCap && exceedsCap(w, d, e, Mid2) {
		return false
	}
	return true
}

// nightWithin - была ли 夜 за один или два дня до d (эти дни отведены под отдых)
func nightWithin(w *Grid, d calendar.Date, e string) bool {
	return w.Get(d.AddDays(-1), e) == Night || w.Get(d.AddDays(-2), e) == Night
}

func (p NightPlan) bounded() bool {
	return p.Bounds != calendar.Span{}
}

func (p NightPlan) clip(win calendar.Span) (calendar.Span, bool) {
	if p.bounded() {
		win.Start = max(win.Start, p.Bounds.Start)
		win.End = min(win.End, p.Bounds.End)
	}
	return win, win.Start <= win.End
}

func (p NightPlan) forceRest(w *Grid, d calendar.Date, e string) {
	if p.bounded() && !p.Bounds.Contains(d) {
		return
	}
	w.Set(d, e, Rest)
}
