// Package cache хранит рассчитанные профили истории в Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"shift-planner/internal/engine"
)

const keyPrefix = "shift-planner:history"

// HistoryCache - кэш профилей по (команда, граница, начало года).
// Сброс команды увеличивает её поколение, старые ключи истекают по TTL.
type HistoryCache struct {
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger logrus.FieldLogger
}

func NewHistoryCache(rdb redis.UniversalClient, ttl time.Duration, logger logrus.FieldLogger) *HistoryCache {
	return &HistoryCache{rdb: rdb, ttl: ttl, logger: logger}
}

func generationKey(team string) string {
	return fmt.Sprintf("%s:gen:%s", keyPrefix, team)
}

func profileKey(team string, gen int64, before, yearStart string) string {
	return fmt.Sprintf("%s:%s:%d:%s:%s", keyPrefix, team, gen, before, yearStart)
}

func (c *HistoryCache) generation(ctx context.Context, team string) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey(team)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Load - профиль из кэша и поколение команды, под которым его искали.
// Любая ошибка Redis считается промахом; при недоступном поколении gen < 0.
func (c *HistoryCache) Load(ctx context.Context, team, before, yearStart string) (*engine.HistoryProfile, int64, bool) {
	gen, err := c.generation(ctx, team)
	if err != nil {
		c.logger.WithError(err).Warn("History cache generation lookup failed")
		return nil, -1, false
	}
	raw, err := c.rdb.Get(ctx, profileKey(team, gen, before, yearStart)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Warn("History cache read failed")
		}
		return nil, gen, false
	}
	var p engine.HistoryProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		c.logger.WithError(err).Warn("History cache entry is corrupted")
		return nil, gen, false
	}
	return &p, gen, true
}

// Store пишет профиль под поколением, полученным из Load. Если команду
// сбросили в промежутке, запись остаётся под старым поколением и не читается.
func (c *HistoryCache) Store(ctx context.Context, team string, gen int64, before, yearStart string, p *engine.HistoryProfile) {
	if gen < 0 {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		c.logger.WithError(err).Warn("History profile is not serializable")
		return
	}
	if err := c.rdb.Set(ctx, profileKey(team, gen, before, yearStart), raw, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("History cache write failed")
	}
}

func (c *HistoryCache) Invalidate(ctx context.Context, team string) {
	if err := c.rdb.Incr(ctx, generationKey(team)).Err(); err != nil {
		c.logger.WithError(err).Warn("History cache invalidation failed")
		return
	}
	c.logger.WithField("team", team).Debug("History cache invalidated")
}
