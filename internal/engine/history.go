package engine

import (
	"math"

	"shift-planner/pkg/calendar"
)

const (
	historyIterations = 200
	yearlyIterations  = 50
	// HistoryPeriods - сколько последних сохранённых периодов входит в профиль
	HistoryPeriods = 24
)

// ShiftTotals - накопленные смены сотрудника за прошлые периоды
type ShiftTotals struct {
	White int `json:"white"`
	Mid   int `json:"mid"`
	Mid2  int `json:"mid2"`
	Night int `json:"night"`
	Total int `json:"total"`
	// Mixed - число смешанных циклов
	Mixed int `json:"mixed"`
}

// HistoryRange - один учтённый период
type HistoryRange struct {
	ID    uint   `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// HistoryProfile - агрегированная история смен по сотрудникам.
// Пересчитывается по требованию и не хранится.
type HistoryProfile struct {
	ShiftTotals     map[string]ShiftTotals `json:"shiftTotals"`
	PeriodCount     int                    `json:"periodCount"`
	LastAssignments map[string]string      `json:"lastAssignments"`
	Ranges          []HistoryRange         `json:"ranges"`
}

func NewHistoryProfile() *HistoryProfile {
	return &HistoryProfile{
		ShiftTotals:     map[string]ShiftTotals{},
		LastAssignments: map[string]string{},
		Ranges:          []HistoryRange{},
	}
}

// Accumulate добавляет в профиль одну сохранённую сетку. Учитываются только
// дни из window; смешанные циклы считаются по всему window.
func (h *HistoryProfile) Accumulate(g *Grid, employees []string, window calendar.Span) {
	for _, e := range employees {
		t := g.Tally(e, window)
		tot := h.ShiftTotals[e]
		tot.White += t.Day
		tot.Mid += t.Mid1
		tot.Mid2 += t.Mid2
		tot.Night += t.Night
		tot.Total += t.Work()
		mixed, _ := g.MixedCycles(e, window)
		tot.Mixed += mixed
		h.ShiftTotals[e] = tot
	}
}

func (h *HistoryProfile) totals(employee string) (ShiftTotals, bool) {
	if h == nil {
		return ShiftTotals{}, false
	}
	t, ok := h.ShiftTotals[employee]
	return t, ok
}

// HistoryOptions - параметры прохода по истории
type HistoryOptions struct {
	Profile        *HistoryProfile
	MixMax         float64
	AdminDays      int
	YearlyOptimize bool
}

// AdjustWithHistory подгоняет число рабочих дней, 白 и 中1 каждого сотрудника
// к целям из истории. Общая цель: round(days*(1-adminDays/30)). Для сотрудника
// без истории целями 白/中1 остаются его текущие значения.
func AdjustWithHistory(g *Grid, employees []string, span calendar.Span, opt HistoryOptions) *Grid {
	w := g.Clone()
	ac := AssignContext{Span: span, MixMaxRatio: Ratio(opt.MixMax)}
	targetTotal := max(0, int(math.Round(float64(span.Days())*(1-float64(opt.AdminDays)/30))))

	for _, e := range employees {
		hist, ok := opt.Profile.totals(e)
		t := w.Tally(e, span)
		tg := historyTarget{total: targetTotal, white: t.Day, mid: t.Mid1}
		if ok {
			tg.white = int(math.Round(float64(hist.White) * opt.MixMax))
			tg.mid = int(math.Round(float64(hist.Mid) * opt.MixMax))
		}

		for i := 0; i < historyIterations; i++ {
			if !historyStep(w, e, span, tg, ac) {
				break
			}
		}

		if opt.YearlyOptimize && ok {
			targetMixed := int(math.Round(float64(hist.Mixed) * opt.MixMax))
			for i := 0; i < yearlyIterations; i++ {
				mixed, _ := w.MixedCycles(e, span)
				if mixed <= targetMixed || !unmixOne(w, e, span) {
					break
				}
			}
		}
	}
	return repair(w, employees, span)
}

type historyTarget struct {
	total, white, mid int
}

// historyStep - одна замена, приближающая сотрудника к цели.
// false означает, что допустимой замены больше нет.
func historyStep(w *Grid, e string, span calendar.Span, tg historyTarget, ac AssignContext) bool {
	t := w.Tally(e, span)
	over := t.Work() > tg.total
	return (over && forceFirst(w, e, span, Day, Rest)) ||
		(over && forceFirst(w, e, span, Mid1, Rest)) ||
		(t.Day > tg.white && tryFirst(w, e, span, Day, Mid1, ac)) ||
		(t.Mid1 > tg.mid && tryFirst(w, e, span, Mid1, Day, ac)) ||
		(t.Day < tg.white && tryFirst(w, e, span, Mid1, Day, ac)) ||
		(t.Mid1 < tg.mid && tryFirst(w, e, span, Day, Mid1, ac))
}

// forceFirst - безусловная замена первой смены from на to
func forceFirst(w *Grid, e string, span calendar.Span, from, to Shift) bool {
	for d := range span.Dates() {
		if w.Get(d, e) == from {
			w.Set(d, e, to)
			return true
		}
	}
	return false
}

// tryFirst - первая замена from на to, прошедшая TryAssign
func tryFirst(w *Grid, e string, span calendar.Span, from, to Shift, ac AssignContext) bool {
	for d := range span.Dates() {
		if w.Get(d, e) == from && w.TryAssign(d, e, to, ac) {
			return true
		}
	}
	return false
}

// unmixOne переводит в 白 левый край серии 中1, задевающей первый
// смешанный цикл сотрудника
func unmixOne(w *Grid, e string, span calendar.Span) bool {
	for c := range cycles(w, e, span) {
		if !isMixed(w, e, c) {
			continue
		}
		for _, d := range c {
			if w.Get(d, e) != Mid1 {
				continue
			}
			left := d
			for span.Contains(left.AddDays(-1)) && w.Get(left.AddDays(-1), e) == Mid1 {
				left = left.AddDays(-1)
			}
			if w.TryAssign(left, e, Day, AssignContext{Span: span}) {
				return true
			}
		}
	}
	return false
}
