// Package draft раз в месяц готовит черновик графика на следующий месяц.
package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"shift-planner/internal/engine"
	"shift-planner/internal/service"
	"shift-planner/pkg/calendar"
)

// Operator - автор черновиков в истории версий
const Operator = "自动草稿"

const jobTimeout = 10 * time.Minute

// Planner - часть сервиса графиков, нужная планировщику
type Planner interface {
	ListVersions(ctx context.Context, team, start, end string) ([]service.VersionSummary, error)
	Generate(ctx context.Context, req *service.GenerateRequest, observe engine.Observer) (*service.GenerateResult, error)
}

type Scheduler struct {
	cronEngine *cron.Cron
	planner    Planner
	spec       string
	teams      []string
	now        func() time.Time
	logger     *logrus.Logger
}

func NewScheduler(planner Planner, spec string, teams []string) *Scheduler {
	return &Scheduler{
		cronEngine: cron.New(cron.WithLocation(time.Local)),
		planner:    planner,
		spec:       spec,
		teams:      teams,
		now:        time.Now,
		logger:     logrus.New(),
	}
}

func (s *Scheduler) SetLogger(l *logrus.Logger) {
	s.logger = l
}

// Start регистрирует задачу и запускает cron
func (s *Scheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.spec, func() {
		s.logger.Info("Draft cron job triggered")
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.WithError(err).Error("Draft job finished with errors")
		}
	})
	if err != nil {
		return fmt.Errorf("draft cron spec %q: %w", s.spec, err)
	}

	s.cronEngine.Start()
	s.logger.WithFields(logrus.Fields{
		"spec":  s.spec,
		"teams": s.teams,
	}).Info("Draft scheduler started")
	return nil
}

// Stop ждёт завершения запущенной задачи
func (s *Scheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.logger.Info("Draft scheduler stopped")
}

// NextMonth - период черновика относительно now
func NextMonth(now time.Time) calendar.Span {
	first := time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
	return calendar.MonthSpan(first.Year(), first.Month())
}

// RunOnce готовит черновики для всех команд, у которых ещё нет версии
// следующего месяца. Возвращает id сохранённых версий.
func (s *Scheduler) RunOnce(ctx context.Context) ([]uint, error) {
	span := NextMonth(s.now())
	start, end := span.Start.String(), span.End.String()

	var (
		saved []uint
		errs  []error
	)
	for _, team := range s.teams {
		log := s.logger.WithFields(logrus.Fields{"team": team, "span": span.String()})

		exists, err := s.hasVersion(ctx, team, start, end)
		if err != nil {
			errs = append(errs, fmt.Errorf("team %s: %w", team, err))
			continue
		}
		if exists {
			log.Debug("Version already exists, draft skipped")
			continue
		}

		res, err := s.planner.Generate(ctx, &service.GenerateRequest{
			Team:       team,
			ViewStart:  start,
			ViewEnd:    end,
			UseHistory: true,
			Save:       true,
			Note:       fmt.Sprintf("%s 自动草稿", span.Start.Time().Format("2006-01")),
			Operator:   Operator,
		}, nil)
		if err != nil {
			if errors.Is(err, service.ErrInvalidInput) {
				log.WithError(err).Warn("Draft skipped")
				continue
			}
			errs = append(errs, fmt.Errorf("team %s: %w", team, err))
			continue
		}
		if res.Saved != nil {
			saved = append(saved, res.Saved.VersionID)
			log.WithField("version_id", res.Saved.VersionID).Info("Draft saved")
		}
	}
	return saved, errors.Join(errs...)
}

func (s *Scheduler) hasVersion(ctx context.Context, team, start, end string) (bool, error) {
	versions, err := s.planner.ListVersions(ctx, team, start, end)
	if err != nil {
		return false, err
	}
	for _, v := range versions {
		if v.ViewStart == start && v.ViewEnd == end {
			return true, nil
		}
	}
	return false, nil
}
