package engine

import (
	"iter"
	"math"

	"shift-planner/pkg/calendar"
)

// CycleLength - длина цикла в днях
const CycleLength = 5

const bandEpsilon = 1e-9

// Cycle - пять подряд идущих дней одного рабочего блока
type Cycle [CycleLength]calendar.Date

// WorkBlocks - максимальные непрерывные отрезки периода, где у сотрудника
// нет 休/夜/中2. Неназначенный день входит в блок.
func (g *Grid) WorkBlocks(employee string, span calendar.Span) iter.Seq[[]calendar.Date] {
	return workBlocks(g, employee, span)
}

// Cycles - блоки, нарезанные на непересекающиеся циклы по 5 дней;
// хвост короче пяти дней отбрасывается.
func (g *Grid) Cycles(employee string, span calendar.Span) iter.Seq[Cycle] {
	return cycles(g, employee, span)
}

// IsMixedCycle - есть ли в цикле и 白, и 中1
func (g *Grid) IsMixedCycle(employee string, c Cycle) bool {
	return isMixed(g, employee, c)
}

// MixedCycles - число смешанных циклов и общее число циклов за период
func (g *Grid) MixedCycles(employee string, span calendar.Span) (mixed, total int) {
	return mixedCycles(g, employee, span)
}

func workBlocks(r reader, employee string, span calendar.Span) iter.Seq[[]calendar.Date] {
	return func(yield func([]calendar.Date) bool) {
		var block []calendar.Date
		for d := range span.Dates() {
			if r.Get(d, employee).breaksBlock() {
				if len(block) > 0 && !yield(block) {
					return
				}
				block = nil
				continue
			}
			block = append(block, d)
		}
		if len(block) > 0 {
			yield(block)
		}
	}
}

func cycles(r reader, employee string, span calendar.Span) iter.Seq[Cycle] {
	return func(yield func(Cycle) bool) {
		for block := range workBlocks(r, employee, span) {
			for i := 0; i+CycleLength <= len(block); i += CycleLength {
				var c Cycle
				copy(c[:], block[i:i+CycleLength])
				if !yield(c) {
					return
				}
			}
		}
	}
}

func isMixed(r reader, employee string, c Cycle) bool {
	var day, mid bool
	for _, d := range c {
		switch r.Get(d, employee) {
		case Day:
			day = true
		case Mid1:
			mid = true
		}
	}
	return day && mid
}

func mixedCycles(r reader, employee string, span calendar.Span) (mixed, total int) {
	for c := range cycles(r, employee, span) {
		total++
		if isMixed(r, employee, c) {
			mixed++
		}
	}
	return mixed, total
}

// ceilBand и floorBand гасят ошибку представления float (0.7*10 и т.п.)
func ceilBand(x float64) int {
	return int(math.Ceil(x - bandEpsilon))
}

func floorBand(x float64) int {
	return int(math.Floor(x + bandEpsilon))
}
