package engine

import (
	"cmp"
	"slices"

	"shift-planner/pkg/calendar"
)

const (
	// DayClampRounds и PersonClampRounds - предельное число полных проходов
	// для дневной и персональной балансировки
	DayClampRounds    = 300
	PersonClampRounds = 240
)

// Все проходы ниже работают по схеме (grid, employees, span, params) -> новая сетка.
// Входная сетка не меняется, изменения идут в рабочую копию.

// Seed - базовая раскладка 5/2: 休 в дни недели из предпочтения сотрудника
// (или пары по умолчанию), 白 в остальные дни. 夜 и 中2 сохраняются.
func Seed(g *Grid, employees []string, span calendar.Span, prefs RestPrefs) *Grid {
	w := g.Clone()
	for d := range span.Dates() {
		wd := d.Weekday()
		for i, e := range employees {
			cur := w.Get(d, e)
			if cur == Night || cur == Mid2 {
				continue
			}
			if prefs.pairFor(e, i).Contains(wd) {
				w.Set(d, e, Rest)
			} else {
				w.Set(d, e, Day)
			}
		}
	}
	return w
}

// AlternateByCycle - чётные по порядку сотрудники начинают с "белых" циклов,
// нечётные с "средних"; в средних циклах правый край серии 白 переводится в 中1.
func AlternateByCycle(g *Grid, employees []string, span calendar.Span, mixMax float64) *Grid {
	w := g.Clone()
	ac := AssignContext{Span: span, MixMaxRatio: Ratio(mixMax)}
	for idx, e := range employees {
		startWhite := idx%2 == 0
		// циклы считаются до изменений: 中1 не разрывает рабочий блок
		cs := slices.Collect(cycles(w, e, span))
		for ci, c := range cs {
			mid := ci%2 == 1
			if !startWhite {
				mid = ci%2 == 0
			}
			if !mid {
				continue
			}
			for _, d := range c {
				if isRightEdgeDay(w, e, d) {
					w.TryAssign(d, e, Mid1, ac)
				}
			}
		}
	}
	return repair(w, employees, span)
}

// ClampDaily - держит число 中1 за день в полосе [ceil(DayMin*W), floor(DayMax*W)],
// где W - число 白 в этот день. Останавливается на неподвижной точке или
// после maxRounds полных проходов.
func ClampDaily(g *Grid, employees []string, span calendar.Span, r Ratios, maxRounds int) *Grid {
	w := g.Clone()
	ac := AssignContext{Span: span, MixMaxRatio: Ratio(r.MixMax)}
	for round := 0; round < maxRounds; round++ {
		changed := false
		for d := range span.Dates() {
			white, mid := dayCounts(w, employees, d)
			if white+mid == 0 {
				continue
			}
			low := ceilBand(r.DayMin * float64(white))
			high := floorBand(r.DayMax * float64(white))

			switch {
			case mid > high:
				cands := filterEmployees(employees, func(e string) bool { return isLeftEdgeMid(w, e, d) })
				sortByRatio(w, cands, span, true)
				for _, e := range cands {
					if w.TryAssign(d, e, Day, ac) {
						changed = true
						mid--
						if mid <= high {
							break
						}
					}
				}
			case mid < low:
				cands := filterEmployees(employees, func(e string) bool { return isRightEdgeDay(w, e, d) })
				sortByRatio(w, cands, span, false)
				for _, e := range cands {
					if w.TryAssign(d, e, Mid1, ac) {
						changed = true
						mid++
						if mid >= low {
							break
						}
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return repair(w, employees, span)
}

// ClampPerson - то же для каждого сотрудника за весь период: полоса
// [ceil(PersonMin*max(1,W)), floor(PersonMax*max(1,W))]. За один проход
// у сотрудника меняется не больше одной смены.
func ClampPerson(g *Grid, employees []string, span calendar.Span, r Ratios, maxRounds int) *Grid {
	w := g.Clone()
	ac := AssignContext{Span: span, MixMaxRatio: Ratio(r.MixMax)}
	for round := 0; round < maxRounds; round++ {
		changed := false
		for _, e := range employees {
			t := w.Tally(e, span)
			if t.Day == 0 && t.Mid1 == 0 {
				continue
			}
			base := float64(max(1, t.Day))
			low := ceilBand(r.PersonMin * base)
			high := floorBand(r.PersonMax * base)

			switch {
			case t.Mid1 > high:
				for d := range span.Dates() {
					if isLeftEdgeMid(w, e, d) && w.TryAssign(d, e, Day, ac) {
						changed = true
						break
					}
				}
			case t.Mid1 < low:
				for d := range span.Dates() {
					if isRightEdgeDay(w, e, d) && w.TryAssign(d, e, Mid1, ac) {
						changed = true
						break
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return repair(w, employees, span)
}

// Repair убирает переходы 中1 -> 白: следующий 白 повышается до 中1,
// если это не нарушает предел серии, иначе предыдущий 中1 понижается до 白.
// Повторный вызов на результате ничего не меняет.
func Repair(g *Grid, employees []string, span calendar.Span) *Grid {
	return repair(g.Clone(), employees, span)
}

func repair(w *Grid, employees []string, span calendar.Span) *Grid {
	dates := span.List()
	for _, e := range employees {
		for i := 0; i+1 < len(dates); i++ {
			a, b := dates[i], dates[i+1]
			if w.Get(a, e) != Mid1 || w.Get(b, e) != Day {
				continue
			}
			if !exceedsCap(w, b, e, Mid1) {
				w.Set(b, e, Mid1)
				continue
			}
			w.Set(a, e, Day)
			// новая пара (a-1, a) могла стать 中1 -> 白
			i = max(i-2, -1)
		}
	}
	return w
}

func isRightEdgeDay(r reader, e string, d calendar.Date) bool {
	return r.Get(d, e) == Day && r.Get(d.AddDays(1), e) != Day
}

func isLeftEdgeMid(r reader, e string, d calendar.Date) bool {
	return r.Get(d, e) == Mid1 && r.Get(d.AddDays(-1), e) != Mid1
}

func dayCounts(g *Grid, employees []string, d calendar.Date) (white, mid int) {
	for _, e := range employees {
		switch g.Get(d, e) {
		case Day:
			white++
		case Mid1:
			mid++
		}
	}
	return white, mid
}

func filterEmployees(employees []string, keep func(string) bool) []string {
	var out []string
	for _, e := range employees {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// sortByRatio сортирует кандидатов по личной доле 中1/白 за период.
// Без 白 доля считается 99 при сортировке по убыванию и 0 по возрастанию.
func sortByRatio(g *Grid, cands []string, span calendar.Span, desc bool) {
	ratios := make(map[string]float64, len(cands))
	for _, e := range cands {
		t := g.Tally(e, span)
		switch {
		case t.Day > 0:
			ratios[e] = float64(t.Mid1) / float64(t.Day)
		case desc:
			ratios[e] = 99
		default:
			ratios[e] = 0
		}
	}
	slices.SortStableFunc(cands, func(a, b string) int {
		c := cmp.Compare(ratios[a], ratios[b])
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return CompareNames(a, b)
	})
}
