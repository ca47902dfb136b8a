package main

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shift-planner/internal/cache"
	"shift-planner/internal/config"
	"shift-planner/internal/engine"
	"shift-planner/internal/progress"
	"shift-planner/internal/repository"
	"shift-planner/internal/service"
)

// app - общие зависимости команд CLI
type app struct {
	cfg    *config.Config
	logger *logrus.Logger

	sqlDB     *sql.DB
	rdb       *redis.Client
	progress  *progress.Log
	orgs      *service.OrgConfigService
	schedules *service.ScheduleService
}

func newApp(cfg *config.Config, log *logrus.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: log}

	db, err := openDatabase(cfg, log)
	if err != nil {
		return nil, err
	}
	if a.sqlDB, err = db.DB(); err != nil {
		return nil, err
	}

	versions, err := repository.NewGormScheduleVersionRepository(db)
	if err != nil {
		a.Close()
		return nil, err
	}
	versions.SetLogger(log)

	orgRepo, err := repository.NewGormOrgConfigRepository(db)
	if err != nil {
		a.Close()
		return nil, err
	}
	orgRepo.SetLogger(log)

	if a.progress, err = progress.Open(cfg.StorageDir); err != nil {
		a.Close()
		return nil, err
	}

	labels := engine.DefaultLabels()
	history := service.NewHistoryService(versions, labels, a.historyCache())
	history.SetLogger(log)

	a.orgs = service.NewOrgConfigService(orgRepo)
	a.orgs.SetLogger(log)

	pipeline := engine.NewPipeline(
		engine.WithPause(cfg.Engine.Pause),
		engine.WithLogger(log.WithField("component", "engine")),
	)
	a.schedules = service.NewScheduleService(versions, history, a.orgs, a.progress, pipeline)
	a.schedules.SetLogger(log)

	return a, nil
}

// openDatabase открывает SQLite и создаёт каталог под файл базы
func openDatabase(cfg *config.Config, log *logrus.Logger) (*gorm.DB, error) {
	if dir := filepath.Dir(cfg.DatabaseURL); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	gormLog := gormlogger.Default.LogMode(gormlogger.Silent)
	if log.IsLevelEnabled(logrus.DebugLevel) {
		gormLog = gormlogger.Default.LogMode(gormlogger.Info)
	}
	db, err := gorm.Open(sqlite.Open(cfg.DatabaseURL), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true, // SQLite ограничения
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// WAL: чтение API не ждёт записи версии
	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Infof("Warning: Failed to enable WAL: %v", err)
	}
	if _, err := sqlDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Infof("Warning: Failed to set busy timeout: %v", err)
	}

	log.WithField("path", cfg.DatabaseURL).Info("Database opened")
	return db, nil
}

// historyCache - кэш Redis, если он настроен и отвечает
func (a *app) historyCache() service.ProfileCache {
	if a.cfg.Redis.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.logger.WithError(err).Warn("Redis unavailable, history cache disabled")
		rdb.Close()
		return nil
	}
	a.rdb = rdb
	a.logger.WithField("addr", a.cfg.Redis.Addr).Info("History cache enabled")
	return cache.NewHistoryCache(rdb, a.cfg.Redis.TTL, a.logger.WithField("component", "cache"))
}

// Close дожидается фоновых уведомлений и закрывает ресурсы
func (a *app) Close() {
	if a.schedules != nil {
		a.schedules.Wait()
	}
	if a.progress != nil {
		if err := a.progress.Close(); err != nil {
			a.logger.Infof("Error closing progress log: %v", err)
		}
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.sqlDB != nil {
		if err := a.sqlDB.Close(); err != nil {
			a.logger.Infof("Error closing database: %v", err)
		}
	}
}
