package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// SweepRounds - сколько раз на этапе 4 чередуются дневная и персональная балансировка
	SweepRounds = 8
	// SweepDayRounds и SweepPersonRounds - пределы проходов внутри одного круга этапа 4
	SweepDayRounds    = 220
	SweepPersonRounds = 260
	// DefaultPause - пауза между этапами, чтобы наблюдатель успел отрисовать снимок
	DefaultPause = 20 * time.Millisecond
)

// Stage - этап конвейера с подписью и прогрессом 0..100
type Stage struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	Progress int    `json:"progress"`
}

var (
	stageSeed      = Stage{1, "阶段 1/6：基础 5白2休", 10}
	stageAlternate = Stage{2, "阶段 2/6：按周期交替白/中1", 30}
	stageDaily     = Stage{3, "阶段 3/6：按日比例收敛", 55}
	stageSweep     = Stage{4, "阶段 4/6：日/人比例循环微调", 78}
	stageHistory   = Stage{5, "阶段 5/6：按历史调整", 92}
	stageRepair    = Stage{6, "阶段 6/6：最终修复", 98}
	stageDone      = Stage{7, "排班完成", 100}
)

// Stages - этапы в порядке выполнения
func Stages() []Stage {
	return []Stage{stageSeed, stageAlternate, stageDaily, stageSweep, stageHistory, stageRepair}
}

type EventKind int

const (
	// EventStage - этап начинается
	EventStage EventKind = iota
	// EventLog - сообщение внутри этапа
	EventLog
	// EventSnapshot - сетка после завершения этапа
	EventSnapshot
	// EventDone - конвейер завершён
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventStage:
		return "stage"
	case EventLog:
		return "log"
	case EventSnapshot:
		return "snapshot"
	case EventDone:
		return "done"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event - то, что конвейер отдаёт наблюдателю. Grid заполнен для
// EventSnapshot и EventDone и принадлежит получателю.
type Event struct {
	Kind    EventKind
	Stage   Stage
	Message string
	Grid    *Grid
}

type Observer func(Event)

type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result - итог запуска. При отмене Grid - последний готовый снимок.
type Result struct {
	Grid    *Grid
	Outcome Outcome
	// Stage - последний начатый этап
	Stage      Stage
	Err        error
	Violations []Violation
}

// StageError - внутренняя ошибка этапа, переводит запуск в Failed
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage.Label, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline последовательно выполняет шесть этапов. Этапы не прерываются:
// отмена через ctx проверяется только между ними.
type Pipeline struct {
	pause  time.Duration
	logger logrus.FieldLogger
}

type Option func(*Pipeline)

// WithPause задаёт паузу между этапами; 0 отключает паузу
func WithPause(d time.Duration) Option {
	return func(p *Pipeline) { p.pause = d }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func NewPipeline(opts ...Option) *Pipeline {
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	p := &Pipeline{pause: DefaultPause, logger: silent}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type stageFunc func(g *Grid, emit func(string)) (*Grid, error)

// Run выполняет конвейер.
//
// Ошибка валидации возвращается до запуска проходов (Result == nil).
// При отмене возвращаются последний снимок и ctx.Err(), при сбое этапа -
// снимок до этого этапа и *StageError. Пустой список сотрудников
// возвращает исходную сетку без изменений.
func (p *Pipeline) Run(ctx context.Context, params Params, observe Observer) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if observe == nil {
		observe = func(Event) {}
	}
	grid := params.Grid.Clone()
	res := &Result{Grid: grid, Outcome: Completed}
	if len(params.Employees) == 0 {
		return res, nil
	}

	span := params.Span
	r := params.Ratios
	targets := orderTargets(params.Employees, params.History)
	log := p.logger.WithFields(logrus.Fields{
		"span":      span.String(),
		"employees": len(targets),
	})

	steps := []struct {
		stage Stage
		run   stageFunc
	}{
		{stageSeed, func(g *Grid, _ func(string)) (*Grid, error) {
			return Seed(g, targets, span, params.RestPrefs), nil
		}},
		{stageAlternate, func(g *Grid, _ func(string)) (*Grid, error) {
			return AlternateByCycle(g, targets, span, r.MixMax), nil
		}},
		{stageDaily, func(g *Grid, _ func(string)) (*Grid, error) {
			return ClampDaily(g, targets, span, r, DayClampRounds), nil
		}},
		{stageSweep, func(g *Grid, emit func(string)) (*Grid, error) {
			for i := 1; i <= SweepRounds; i++ {
				emit(fmt.Sprintf("循环微调：第 %d 轮", i))
				g = ClampDaily(g, targets, span, r, SweepDayRounds)
				g = ClampPerson(g, targets, span, r, SweepPersonRounds)
			}
			return g, nil
		}},
		{stageHistory, func(g *Grid, _ func(string)) (*Grid, error) {
			return AdjustWithHistory(g, targets, span, HistoryOptions{
				Profile:        params.History,
				MixMax:         r.MixMax,
				AdminDays:      params.AdminDays,
				YearlyOptimize: params.YearlyOptimize,
			}), nil
		}},
		{stageRepair, func(g *Grid, _ func(string)) (*Grid, error) {
			g = Repair(g, targets, span)
			for _, v := range Audit(g, targets, span, nil) {
				if v.Kind == ViolationAdjacency {
					return nil, fmt.Errorf("adjacency left after repair: %s %s", v.Employee, v.Date)
				}
			}
			return g, nil
		}},
	}

	for i, step := range steps {
		if i > 0 {
			if err := p.yield(ctx); err != nil {
				return p.cancelled(res, log, err)
			}
		} else if err := ctx.Err(); err != nil {
			return p.cancelled(res, log, err)
		}

		res.Stage = step.stage
		log.WithField("progress", step.stage.Progress).Info(step.stage.Label)
		observe(Event{Kind: EventStage, Stage: step.stage, Message: step.stage.Label})

		emit := func(msg string) {
			log.Debug(msg)
			observe(Event{Kind: EventLog, Stage: step.stage, Message: msg})
		}
		next, err := runStage(step.stage, step.run, grid, emit)
		if err != nil {
			res.Outcome = Failed
			res.Err = err
			log.WithError(err).Error("Schedule pipeline failed")
			return res, err
		}
		grid = next
		res.Grid = grid
		observe(Event{Kind: EventSnapshot, Stage: step.stage, Grid: grid.Clone()})
	}

	mix := r.MixMax
	res.Violations = Audit(grid, targets, span, &mix)
	log.WithField("violations", CountViolations(res.Violations)).Info("Schedule pipeline completed")
	observe(Event{Kind: EventDone, Stage: stageDone, Message: stageDone.Label, Grid: grid.Clone()})
	return res, nil
}

func (p *Pipeline) cancelled(res *Result, log logrus.FieldLogger, err error) (*Result, error) {
	res.Outcome = Cancelled
	res.Err = err
	log.WithField("stage", res.Stage.Label).Warn("Schedule pipeline cancelled")
	return res, err
}

// yield - пауза между этапами с учётом отмены
func (p *Pipeline) yield(ctx context.Context) error {
	if p.pause <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.pause)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return ctx.Err()
	}
}

func runStage(st Stage, fn stageFunc, g *Grid, emit func(string)) (out *Grid, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, &StageError{Stage: st, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	out, err = fn(g, emit)
	if err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			err = &StageError{Stage: st, Err: err}
		}
	}
	return out, err
}

// orderTargets - порядок обработки: сначала те, у кого в истории меньше
// всего смен, затем меньше 白, затем по имени
func orderTargets(employees []string, h *HistoryProfile) []string {
	out := slices.Clone(employees)
	slices.SortStableFunc(out, func(a, b string) int {
		ta, _ := h.totals(a)
		tb, _ := h.totals(b)
		if c := cmp.Compare(ta.Total, tb.Total); c != 0 {
			return c
		}
		if c := cmp.Compare(ta.White, tb.White); c != 0 {
			return c
		}
		return CompareNames(a, b)
	})
	return out
}
