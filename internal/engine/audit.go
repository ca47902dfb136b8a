package engine

import (
	"fmt"

	"shift-planner/pkg/calendar"
)

type ViolationKind string

const (
	ViolationCap       ViolationKind = "cap"
	ViolationAdjacency ViolationKind = "adjacency"
	ViolationMix       ViolationKind = "mix"
)

// Violation - нарушение правила в готовой сетке
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	Employee string        `json:"employee"`
	Date     calendar.Date `json:"date"`
	Detail   string        `json:"detail"`
}

// Audit проверяет сетку: серии длиннее MaxConsecutiveWork, переходы 中1 -> 白
// и, если задан mixMax, долю смешанных циклов.
func Audit(g *Grid, employees []string, span calendar.Span, mixMax *float64) []Violation {
	var out []Violation
	for _, e := range employees {
		run := 0
		var runStart calendar.Date
		for d := range span.Dates() {
			s := g.Get(d, e)
			if s.IsWork() {
				if run == 0 {
					runStart = d
				}
				run++
				if run == MaxConsecutiveWork+1 {
					out = append(out, Violation{Kind: ViolationCap, Employee: e, Date: runStart,
						Detail: fmt.Sprintf("more than %d consecutive workdays", MaxConsecutiveWork)})
				}
			} else {
				run = 0
			}
			if s == Mid1 && d < span.End && g.Get(d.AddDays(1), e) == Day {
				out = append(out, Violation{Kind: ViolationAdjacency, Employee: e, Date: d, Detail: "MID1 followed by DAY"})
			}
		}
		if mixMax != nil {
			mixed, total := g.MixedCycles(e, span)
			if limit := ceilBand(float64(total) * *mixMax); mixed > limit {
				out = append(out, Violation{Kind: ViolationMix, Employee: e, Date: span.Start,
					Detail: fmt.Sprintf("%d mixed cycles of %d, limit %d", mixed, total, limit)})
			}
		}
	}
	return out
}

// CountViolations - сколько нарушений каждого вида
func CountViolations(vs []Violation) map[ViolationKind]int {
	out := make(map[ViolationKind]int)
	for _, v := range vs {
		out[v.Kind]++
	}
	return out
}
