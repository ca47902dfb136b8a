package engine

import (
	"maps"
	"slices"

	"shift-planner/pkg/calendar"
)

const (
	// MaxConsecutiveWork - жёсткий предел рабочих дней подряд
	MaxConsecutiveWork = 6
	// runLookback - сколько дней просматривается в каждую сторону при подсчёте серии
	runLookback = 10
)

// reader - всё, что умеет отдавать смену по дате и сотруднику.
// Реализуется Grid и пробным наложением trial.
type reader interface {
	Get(d calendar.Date, employee string) Shift
}

type row map[string]Shift

// Grid - сетка date -> employee -> shift.
//
// Копирование дешёвое: Clone делит строки между копиями, а первая запись
// в строку копирует её (copy-on-write). Неназначенные ячейки в сетке
// отсутствуют. Grid не безопасен для одновременного использования из
// нескольких горутин.
type Grid struct {
	rows  map[calendar.Date]row
	owned map[calendar.Date]bool
}

func NewGrid() *Grid {
	return &Grid{rows: make(map[calendar.Date]row), owned: make(map[calendar.Date]bool)}
}

func (g *Grid) Get(d calendar.Date, employee string) Shift {
	if g == nil {
		return Unassigned
	}
	return g.rows[d][employee]
}

// Set - безусловная запись, без проверки ограничений.
// Unassigned удаляет ячейку.
func (g *Grid) Set(d calendar.Date, employee string, s Shift) {
	if s == Unassigned {
		r, ok := g.rows[d]
		if !ok {
			return
		}
		if _, ok := r[employee]; !ok {
			return
		}
		r = g.writable(d)
		delete(r, employee)
		if len(r) == 0 {
			delete(g.rows, d)
			delete(g.owned, d)
		}
		return
	}
	g.writable(d)[employee] = s
}

func (g *Grid) writable(d calendar.Date) row {
	if g.rows == nil {
		g.rows = make(map[calendar.Date]row)
	}
	if g.owned == nil {
		g.owned = make(map[calendar.Date]bool)
	}
	r, ok := g.rows[d]
	if ok && g.owned[d] {
		return r
	}
	nr := make(row, len(r)+1)
	maps.Copy(nr, r)
	g.rows[d] = nr
	g.owned[d] = true
	return nr
}

// Clone возвращает независимую копию. Обе сетки после вызова
// копируют строку перед первой записью в неё.
func (g *Grid) Clone() *Grid {
	if g == nil || len(g.rows) == 0 {
		return NewGrid()
	}
	clear(g.owned)
	return &Grid{rows: maps.Clone(g.rows), owned: make(map[calendar.Date]bool)}
}

// Dates - даты, в которых есть хотя бы одно назначение, по возрастанию
func (g *Grid) Dates() []calendar.Date {
	if g == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(g.rows))
}

// Row - копия назначений на дату
func (g *Grid) Row(d calendar.Date) map[string]Shift {
	if g == nil {
		return nil
	}
	return maps.Clone(map[string]Shift(g.rows[d]))
}

// Len - количество назначенных ячеек
func (g *Grid) Len() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, r := range g.rows {
		n += len(r)
	}
	return n
}

func (g *Grid) Equal(o *Grid) bool {
	if g.Len() != o.Len() {
		return false
	}
	if g == nil {
		return true
	}
	for d, r := range g.rows {
		if !maps.Equal(r, o.rows[d]) {
			return false
		}
	}
	return true
}

// Retain - новая сетка только с указанными сотрудниками
func (g *Grid) Retain(employees []string) *Grid {
	out := NewGrid()
	if g == nil {
		return out
	}
	allowed := make(map[string]struct{}, len(employees))
	for _, e := range employees {
		allowed[e] = struct{}{}
	}
	for d, r := range g.rows {
		for e, s := range r {
			if _, ok := allowed[e]; ok {
				out.Set(d, e, s)
			}
		}
	}
	return out
}

// CountWorkBefore - длина рабочей серии строго до даты (не больше runLookback)
func (g *Grid) CountWorkBefore(d calendar.Date, employee string) int {
	return countWork(g, d, employee, -1)
}

// CountWorkAfter - длина рабочей серии строго после даты (не больше runLookback)
func (g *Grid) CountWorkAfter(d calendar.Date, employee string) int {
	return countWork(g, d, employee, 1)
}

func countWork(r reader, d calendar.Date, employee string, step int) int {
	n := 0
	for i := 1; i <= runLookback; i++ {
		if !r.Get(d.AddDays(i*step), employee).IsWork() {
			break
		}
		n++
	}
	return n
}

// exceedsCap - приведёт ли рабочая смена на дату к серии длиннее MaxConsecutiveWork
func exceedsCap(r reader, d calendar.Date, employee string, s Shift) bool {
	if !s.IsWork() {
		return false
	}
	return countWork(r, d, employee, -1)+1+countWork(r, d, employee, 1) > MaxConsecutiveWork
}

// AssignContext - параметры проверки для TryAssign
type AssignContext struct {
	// Span - период, по которому считаются циклы
	Span calendar.Span
	// MixMaxRatio - допустимая доля смешанных циклов; nil отключает проверку
	MixMaxRatio *float64
}

// Ratio - удобный конструктор для AssignContext.MixMaxRatio
func Ratio(v float64) *float64 {
	return &v
}

// TryAssign - единственная мутация с проверкой ограничений.
// Возвращает false и ничего не меняет, если назначение нарушает
// предел серии, запрет 中1->白 или долю смешанных циклов.
func (g *Grid) TryAssign(d calendar.Date, employee string, s Shift, ac AssignContext) bool {
	if g.Get(d, employee) == s {
		return true
	}
	if exceedsCap(g, d, employee, s) {
		return false
	}
	if s == Day && g.Get(d.AddDays(-1), employee) == Mid1 {
		return false
	}
	if s == Mid1 && g.Get(d.AddDays(1), employee) == Day {
		return false
	}
	if ac.MixMaxRatio != nil {
		mixed, total := mixedCycles(trial{base: g, date: d, employee: employee, shift: s}, employee, ac.Span)
		if mixed > ceilBand(float64(total) * *ac.MixMaxRatio) {
			return false
		}
	}
	g.Set(d, employee, s)
	return true
}

// trial - сетка с одной подменённой ячейкой; базовая сетка не меняется
type trial struct {
	base     reader
	date     calendar.Date
	employee string
	shift    Shift
}

func (t trial) Get(d calendar.Date, employee string) Shift {
	if d == t.date && employee == t.employee {
		return t.shift
	}
	return t.base.Get(d, employee)
}

// Tally - количество смен каждого типа у сотрудника за период
type Tally struct {
	Day, Mid1, Mid2, Night, Rest int
}

// Work - все рабочие смены
func (t Tally) Work() int {
	return t.Day + t.Mid1 + t.Mid2 + t.Night
}

func (g *Grid) Tally(employee string, span calendar.Span) Tally {
	var t Tally
	for d := range span.Dates() {
		switch g.Get(d, employee) {
		case Day:
			t.Day++
		case Mid1:
			t.Mid1++
		case Mid2:
			t.Mid2++
		case Night:
			t.Night++
		case Rest:
			t.Rest++
		}
	}
	return t
}

// LongestRun - самая длинная рабочая серия сотрудника внутри периода
func (g *Grid) LongestRun(employee string, span calendar.Span) int {
	best, cur := 0, 0
	for d := range span.Dates() {
		if g.Get(d, employee).IsWork() {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}
	return best
}
