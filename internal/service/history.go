package service

import (
	"context"
	"maps"

	"github.com/sirupsen/logrus"

	"shift-planner/internal/engine"
	"shift-planner/internal/models"
	"shift-planner/internal/repository"
	"shift-planner/pkg/calendar"
)

// ProfileCache - необязательный кэш профилей истории
type ProfileCache interface {
	// Load возвращает и метку поколения, которую нужно передать в Store
	Load(ctx context.Context, team, before, yearStart string) (*engine.HistoryProfile, int64, bool)
	Store(ctx context.Context, team string, gen int64, before, yearStart string, p *engine.HistoryProfile)
	Invalidate(ctx context.Context, team string)
}

type HistoryService struct {
	repo   repository.ScheduleVersionRepository
	labels *engine.Labels
	cache  ProfileCache
	logger *logrus.Logger
}

func NewHistoryService(repo repository.ScheduleVersionRepository, labels *engine.Labels, cache ProfileCache) *HistoryService {
	return &HistoryService{
		repo:   repo,
		labels: labels,
		cache:  cache,
		logger: logrus.New(),
	}
}

func (s *HistoryService) SetLogger(l *logrus.Logger) {
	s.logger = l
}

// ComputeProfile собирает профиль по последним HistoryPeriods версиям команды,
// закончившимся до beforeStart. Учитываются дни в [yearStart, beforeStart).
// Пустые границы не ограничивают выборку.
func (s *HistoryService) ComputeProfile(ctx context.Context, team, beforeStart, yearStart string) (*engine.HistoryProfile, error) {
	before, err := optionalDate(beforeStart, "统计截止日期")
	if err != nil {
		return nil, err
	}
	year, err := optionalDate(yearStart, "年度起始日期")
	if err != nil {
		return nil, err
	}

	var gen int64 = -1
	if s.cache != nil {
		p, g, ok := s.cache.Load(ctx, team, beforeStart, yearStart)
		if ok {
			return p, nil
		}
		gen = g
	}

	rows, err := s.repo.ListBefore(team, beforeStart, engine.HistoryPeriods)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load versions for history profile")
		return nil, err
	}

	profile := engine.NewHistoryProfile()
	var lastDay calendar.Date
	hasLast := false
	for _, row := range rows {
		window, ok := historyWindow(row, before, year)
		if !ok {
			for _, e := range row.Employees {
				if _, seen := profile.ShiftTotals[e]; !seen {
					profile.ShiftTotals[e] = engine.ShiftTotals{}
				}
			}
			continue
		}
		g, err := s.labels.Decode(row.Data)
		if err != nil {
			s.logger.WithError(err).WithField("version_id", row.ID).Warn("Skipping version with unreadable grid")
			continue
		}

		eligible := false
		for _, d := range g.Dates() {
			if !window.Contains(d) {
				continue
			}
			eligible = true
			if !hasLast || d > lastDay {
				lastDay, hasLast = d, true
				profile.LastAssignments = maps.Clone(row.Data[d.String()])
			}
		}
		profile.Accumulate(g, row.Employees, window)
		if !eligible {
			continue
		}
		profile.PeriodCount++
		profile.Ranges = append(profile.Ranges, engine.HistoryRange{ID: row.ID, Start: row.ViewStart, End: row.ViewEnd})
	}

	s.logger.WithFields(logrus.Fields{
		"team":      team,
		"versions":  len(rows),
		"periods":   profile.PeriodCount,
		"employees": len(profile.ShiftTotals),
	}).Debug("History profile computed")

	if s.cache != nil {
		s.cache.Store(ctx, team, gen, beforeStart, yearStart, profile)
	}
	return profile, nil
}

// Invalidate сбрасывает кэш команды после изменения версий
func (s *HistoryService) Invalidate(ctx context.Context, team string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, team)
	}
}

// historyWindow - период версии, обрезанный границами выборки
func historyWindow(row *models.ScheduleVersion, before, year *calendar.Date) (calendar.Span, bool) {
	span, err := row.Span()
	if err != nil {
		return calendar.Span{}, false
	}
	if before != nil && span.End >= *before {
		span.End = before.AddDays(-1)
	}
	if year != nil && span.Start < *year {
		span.Start = *year
	}
	return span, span.Start <= span.End
}

func optionalDate(value, field string) (*calendar.Date, error) {
	if value == "" {
		return nil, nil
	}
	d, err := parseDate(value, field)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
