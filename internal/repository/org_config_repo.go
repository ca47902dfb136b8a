package repository

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shift-planner/internal/models"
)

type OrgConfigRepository interface {
	Get() (*models.OrgConfig, error)
	Save(payload string) (*models.OrgConfig, error)
}

type GormOrgConfigRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormOrgConfigRepository(db *gorm.DB) (*GormOrgConfigRepository, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if err := db.AutoMigrate(&models.OrgConfig{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate org_config table")
		return nil, err
	}

	logger.Info("Org config repository initialized")

	return &GormOrgConfigRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *GormOrgConfigRepository) SetLogger(l *logrus.Logger) {
	r.logger = l
}

// Get - сохранённая конфигурация или nil
func (r *GormOrgConfigRepository) Get() (*models.OrgConfig, error) {
	var cfg models.OrgConfig
	result := r.db.First(&cfg, models.OrgConfigID)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.Debug("Org config not found")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get org config")
		return nil, result.Error
	}

	return &cfg, nil
}

// Save перезаписывает единственную строку конфигурации
func (r *GormOrgConfigRepository) Save(payload string) (*models.OrgConfig, error) {
	cfg := &models.OrgConfig{ID: models.OrgConfigID, Payload: payload, UpdatedAt: time.Now()}
	if !cfg.IsValid() {
		r.logger.Warn("Invalid org config payload")
		return nil, errors.New("配置必须是对象")
	}

	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(cfg)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to save org config")
		return nil, result.Error
	}

	r.logger.WithField("bytes", len(payload)).Info("Org config saved successfully")
	return cfg, nil
}
