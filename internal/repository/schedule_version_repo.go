package repository

import (
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"shift-planner/internal/models"
)

// ListLimit - максимум версий в одном списке
const ListLimit = 200

// колонки списка версий: без сетки и снимка
var listColumns = []string{"id", "team", "view_start", "view_end", "created_at", "note", "created_by_name"}

type ScheduleVersionRepository interface {
	Create(v *models.ScheduleVersion) error
	GetByID(id uint) (*models.ScheduleVersion, error)
	FindByRange(team, start, end string) (*models.ScheduleVersion, error)
	FindLatest(team, start, end string) (*models.ScheduleVersion, error)
	LatestID(team, start, end string) (uint, error)
	List(team, start, end string) ([]*models.ScheduleVersion, error)
	ListBefore(team, before string, limit int) ([]*models.ScheduleVersion, error)
	Delete(id uint, team string) (bool, error)
	Transaction(fn func(ScheduleVersionRepository) error) error
}

type GormScheduleVersionRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormScheduleVersionRepository(db *gorm.DB) (*GormScheduleVersionRepository, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	// Автомиграция
	if err := db.AutoMigrate(&models.ScheduleVersion{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate schedule_versions table")
		return nil, err
	}

	logger.Info("Schedule version repository initialized")

	return &GormScheduleVersionRepository{
		db:     db,
		logger: logger,
	}, nil
}

// SetLogger подменяет логгер репозитория
func (r *GormScheduleVersionRepository) SetLogger(l *logrus.Logger) {
	r.logger = l
}

func (r *GormScheduleVersionRepository) Create(v *models.ScheduleVersion) error {
	r.logger.WithFields(logrus.Fields{
		"team":  v.Team,
		"start": v.ViewStart,
		"end":   v.ViewEnd,
	}).Info("Creating schedule version")

	if !v.IsValid() {
		r.logger.WithFields(logrus.Fields{
			"team":  v.Team,
			"start": v.ViewStart,
			"end":   v.ViewEnd,
		}).Warn("Invalid schedule version data")
		return errors.New("排班版本数据不合法")
	}

	result := r.db.Create(v)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to create schedule version")
		return result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"id":   v.ID,
		"team": v.Team,
	}).Info("Schedule version created successfully")

	return nil
}

func (r *GormScheduleVersionRepository) GetByID(id uint) (*models.ScheduleVersion, error) {
	var v models.ScheduleVersion
	result := r.db.First(&v, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithField("id", id).Debug("Schedule version not found")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get schedule version by ID")
		return nil, result.Error
	}

	return &v, nil
}

// FindByRange - последняя версия с точно таким периодом
func (r *GormScheduleVersionRepository) FindByRange(team, start, end string) (*models.ScheduleVersion, error) {
	var v models.ScheduleVersion
	result := r.db.Where("team = ? AND view_start = ? AND view_end = ?", team, start, end).
		Order("id DESC").
		First(&v)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithFields(logrus.Fields{
			"team":  team,
			"start": start,
			"end":   end,
		}).Debug("Schedule version not found for range")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get schedule version by range")
		return nil, result.Error
	}

	return &v, nil
}

// FindLatest ищет сначала по периоду, затем берёт последнюю версию команды
func (r *GormScheduleVersionRepository) FindLatest(team, start, end string) (*models.ScheduleVersion, error) {
	if start != "" && end != "" {
		v, err := r.FindByRange(team, start, end)
		if err != nil || v != nil {
			return v, err
		}
	}

	var v models.ScheduleVersion
	result := r.db.Where("team = ?", team).Order("id DESC").First(&v)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithField("team", team).Debug("No schedule versions for team")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get latest schedule version")
		return nil, result.Error
	}

	return &v, nil
}

// LatestID - id последней версии периода, 0 если версий нет
func (r *GormScheduleVersionRepository) LatestID(team, start, end string) (uint, error) {
	var ids []uint
	result := r.db.Model(&models.ScheduleVersion{}).
		Where("team = ? AND view_start = ? AND view_end = ?", team, start, end).
		Order("id DESC").
		Limit(1).
		Pluck("id", &ids)

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get latest schedule version id")
		return 0, result.Error
	}

	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

// List - версии команды, новые первыми. Если задан период, берутся версии
// целиком внутри него; перепутанные границы меняются местами.
func (r *GormScheduleVersionRepository) List(team, start, end string) ([]*models.ScheduleVersion, error) {
	query := r.db.Select(listColumns).Where("team = ?", team)
	if start != "" && end != "" {
		if start > end {
			start, end = end, start
		}
		query = query.Where("view_start >= ? AND view_end <= ?", start, end)
	}

	var versions []*models.ScheduleVersion
	result := query.Order("created_at DESC, id DESC").Limit(ListLimit).Find(&versions)

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to list schedule versions")
		return nil, result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"team":  team,
		"count": len(versions),
	}).Debug("Retrieved schedule versions")

	return versions, nil
}

// ListBefore - версии, закончившиеся до before (пустая строка - без границы)
func (r *GormScheduleVersionRepository) ListBefore(team, before string, limit int) ([]*models.ScheduleVersion, error) {
	query := r.db.Where("team = ?", team)
	if before != "" {
		query = query.Where("view_end < ?", before)
	}

	var versions []*models.ScheduleVersion
	result := query.Order("view_end DESC, id DESC").Limit(limit).Find(&versions)

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to list schedule versions for history")
		return nil, result.Error
	}

	return versions, nil
}

// Delete удаляет версию команды; false - если такой версии нет
func (r *GormScheduleVersionRepository) Delete(id uint, team string) (bool, error) {
	r.logger.WithFields(logrus.Fields{
		"id":   id,
		"team": team,
	}).Info("Deleting schedule version")

	result := r.db.Where("team = ?", team).Delete(&models.ScheduleVersion{}, id)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to delete schedule version")
		return false, result.Error
	}

	if result.RowsAffected == 0 {
		r.logger.WithField("id", id).Warn("Schedule version not found for deletion")
		return false, nil
	}

	r.logger.WithField("id", id).Info("Schedule version deleted successfully")
	return true, nil
}

// Transaction выполняет fn в одной транзакции
func (r *GormScheduleVersionRepository) Transaction(fn func(ScheduleVersionRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormScheduleVersionRepository{db: tx, logger: r.logger})
	})
}
