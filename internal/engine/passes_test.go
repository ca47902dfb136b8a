package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift-planner/pkg/calendar"
)

func week(n int) calendar.Span {
	return calendar.Span{Start: day(0), End: day(7*n - 1)}
}

func TestParseRestPair(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"67", "67", true},
		{"17", "71", true},
		{"1,7", "71", true},
		{"周六6 周日7", "67", true},
		{"21", "21", true},
		{"6", "", false},
		{"678", "", false},
		{"66", "", false},
		{"08", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, ok := ParseRestPair(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, p.String())
		})
	}

	prefs := SanitizeRestPrefs(map[string]string{" 张三 ": "17", "李四": "9", "": "67"})
	assert.Equal(t, map[string]string{"张三": "71"}, prefs.Strings())
}

func TestSeedRespectsRestPreference(t *testing.T) {
	span := week(1)
	g := Seed(NewGrid(), []string{"a"}, span, RestPrefs{"a": mustPair(t, "67")})

	for d := range span.Dates() {
		want := Day
		if d.Weekday() == 6 || d.Weekday() == 7 {
			want = Rest
		}
		assert.Equal(t, want, g.Get(d, "a"), d.String())
	}
}

func TestSeedDefaultRotationAndPreservedShifts(t *testing.T) {
	span := week(2)
	in := NewGrid()
	in.Set(day(2), "b", Night)
	in.Set(day(3), "b", Mid2)

	g := Seed(in, []string{"a", "b"}, span, nil)

	// a - индекс 0: сб/вс, b - индекс 1: вс/пн
	assert.Equal(t, Rest, g.Get(day(5), "a"))
	assert.Equal(t, Rest, g.Get(day(6), "a"))
	assert.Equal(t, Day, g.Get(day(0), "a"))
	assert.Equal(t, Rest, g.Get(day(0), "b"))
	assert.Equal(t, Rest, g.Get(day(6), "b"))
	assert.Equal(t, Day, g.Get(day(5), "b"))

	assert.Equal(t, Night, g.Get(day(2), "b"))
	assert.Equal(t, Mid2, g.Get(day(3), "b"))
	assert.Equal(t, Unassigned, in.Get(day(0), "a"), "input grid is not mutated")

	for _, e := range []string{"a", "b"} {
		assert.LessOrEqual(t, g.LongestRun(e, span), 5)
	}
}

func TestAlternateByCycle(t *testing.T) {
	span := week(2)
	prefs := RestPrefs{"a": mustPair(t, "67"), "b": mustPair(t, "67")}
	base := Seed(NewGrid(), []string{"a", "b"}, span, prefs)

	g := AlternateByCycle(base, []string{"a", "b"}, span, 1)

	// a начинает с белого цикла, b - со среднего; в среднем цикле
	// 中1 ставится на правый край серии 白 (пятница)
	assert.Equal(t, Day, g.Get(day(4), "a"))
	assert.Equal(t, Mid1, g.Get(day(11), "a"))
	assert.Equal(t, Mid1, g.Get(day(4), "b"))
	assert.Equal(t, Day, g.Get(day(11), "b"))
	assert.Equal(t, 1, g.Tally("a", span).Mid1)
	assert.Equal(t, 1, g.Tally("b", span).Mid1)
	assert.Equal(t, 0, base.Tally("a", span).Mid1)
}

func TestAlternateByCycleRespectsMixCap(t *testing.T) {
	span := week(2)
	prefs := RestPrefs{"a": mustPair(t, "67"), "b": mustPair(t, "67")}
	base := Seed(NewGrid(), []string{"a", "b"}, span, prefs)

	g := AlternateByCycle(base, []string{"a", "b"}, span, 0)
	assert.Equal(t, 0, g.Tally("a", span).Mid1)
	assert.Equal(t, 0, g.Tally("b", span).Mid1)
}

func TestClampDailyConverges(t *testing.T) {
	span := calendar.Span{Start: day(0), End: day(0)}
	employees := []string{"A", "B", "C", "D"}
	g := NewGrid()
	for _, e := range employees {
		g.Set(day(0), e, Day)
	}
	r := Ratios{DayMin: 0.3, DayMax: 0.7, PersonMin: 0, PersonMax: 3, MixMax: 1}

	out := ClampDaily(g, employees, span, r, DayClampRounds)

	// 4 белых: поднимаем до двух 中1, затем для W=2 полоса [1,1] -
	// A возвращается в 白, и при W=3 полоса [1,2] уже выполнена
	assert.Equal(t, Day, out.Get(day(0), "A"))
	assert.Equal(t, Mid1, out.Get(day(0), "B"))
	assert.Equal(t, Day, out.Get(day(0), "C"))
	assert.Equal(t, Day, out.Get(day(0), "D"))
}

func TestClampPerson(t *testing.T) {
	span := week(1)
	g := Seed(NewGrid(), []string{"a"}, span, RestPrefs{"a": mustPair(t, "67")})
	r := Ratios{DayMin: 0, DayMax: 3, PersonMin: 0.4, PersonMax: 1, MixMax: 1}

	out := ClampPerson(g, []string{"a"}, span, r, PersonClampRounds)

	tally := out.Tally("a", span)
	assert.Equal(t, Tally{Day: 3, Mid1: 2, Rest: 2}, tally)
	assert.Equal(t, Mid1, out.Get(day(3), "a"))
	assert.Equal(t, Mid1, out.Get(day(4), "a"))
	assert.Empty(t, Audit(out, []string{"a"}, span, nil))
}

func TestRepairIsIdempotent(t *testing.T) {
	span := calendar.Span{Start: day(0), End: day(9)}
	g := NewGrid()
	// a: 中1 белый белый - повышение по цепочке
	g.Set(day(0), "a", Mid1)
	fill(g, "a", 1, 2, Day)
	g.Set(day(3), "a", Rest)
	// b: серия из 7 дней, повышать нельзя - понижаем 中1
	fill(g, "b", 0, 6, Day)
	g.Set(day(2), "b", Mid1)
	g.Set(day(1), "b", Mid1)
	employees := []string{"a", "b"}

	once := Repair(g, employees, span)
	twice := Repair(once, employees, span)

	assert.Equal(t, Mid1, once.Get(day(1), "a"))
	assert.Equal(t, Mid1, once.Get(day(2), "a"))
	assert.Equal(t, Day, once.Get(day(1), "b"))
	assert.Equal(t, Day, once.Get(day(2), "b"))
	assert.Equal(t, Day, g.Get(day(1), "a"), "input grid is not mutated")

	labels := DefaultLabels()
	assert.Empty(t, cmp.Diff(labels.Encode(once), labels.Encode(twice)))
	for _, v := range Audit(once, employees, span, nil) {
		assert.NotEqual(t, ViolationAdjacency, v.Kind)
	}
}

func TestAdjustWithHistoryAdminDays(t *testing.T) {
	span := calendar.Span{Start: day(0), End: day(29)}
	g := Seed(NewGrid(), []string{"a"}, span, RestPrefs{"a": mustPair(t, "67")})
	require.Equal(t, 22, g.Tally("a", span).Work())

	out := AdjustWithHistory(g, []string{"a"}, span, HistoryOptions{MixMax: 1, AdminDays: 15})
	assert.Equal(t, 15, out.Tally("a", span).Work())
}

func TestAdjustWithHistoryTargets(t *testing.T) {
	span := week(1)
	g := Seed(NewGrid(), []string{"a"}, span, RestPrefs{"a": mustPair(t, "67")})
	profile := NewHistoryProfile()
	profile.ShiftTotals["a"] = ShiftTotals{White: 6, Mid: 4}

	out := AdjustWithHistory(g, []string{"a"}, span, HistoryOptions{Profile: profile, MixMax: 0.5})

	assert.Equal(t, Tally{Day: 3, Mid1: 2, Rest: 2}, out.Tally("a", span))
	assert.Equal(t, Mid1, out.Get(day(3), "a"))
	assert.Equal(t, Mid1, out.Get(day(4), "a"))
}

func TestAdjustWithHistoryYearlyOptimize(t *testing.T) {
	span := week(1)
	g := Seed(NewGrid(), []string{"a"}, span, RestPrefs{"a": mustPair(t, "67")})
	profile := NewHistoryProfile()
	profile.ShiftTotals["a"] = ShiftTotals{White: 6, Mid: 4, Mixed: 0}

	out := AdjustWithHistory(g, []string{"a"}, span, HistoryOptions{Profile: profile, MixMax: 0.5, YearlyOptimize: true})

	mixed, total := out.MixedCycles("a", span)
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, mixed)
}

func TestHistoryProfileAccumulate(t *testing.T) {
	span := week(1)
	g := Seed(NewGrid(), []string{"a"}, span, RestPrefs{"a": mustPair(t, "67")})
	g.Set(day(4), "a", Mid1)
	g.Set(day(5), "a", Night)

	h := NewHistoryProfile()
	h.Accumulate(g, []string{"a"}, span)
	h.Accumulate(g, []string{"a"}, calendar.Span{Start: day(0), End: day(1)})

	assert.Equal(t, ShiftTotals{White: 6, Mid: 1, Night: 1, Total: 8, Mixed: 1}, h.ShiftTotals["a"])
}

func mustPair(t *testing.T, raw string) RestPair {
	t.Helper()
	p, ok := ParseRestPair(raw)
	require.True(t, ok, raw)
	return p
}
