package config

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"storage/schedule.db"`
	// StorageDir - каталог для журнала прогресса и выгрузок
	StorageDir string `env:"STORAGE_DIR" envDefault:"storage"`

	HTTP struct {
		Addr            string        `env:"ADDR" envDefault:":8080"`
		ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
		WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
		IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	} `envPrefix:"HTTP_"`

	// Telegram - бот выключен, если токен пустой
	Telegram struct {
		Token  string `env:"BOT_TOKEN"`
		ChatID int64  `env:"CHAT_ID"`
		Debug  bool   `env:"DEBUG" envDefault:"false"`
	} `envPrefix:"TELEGRAM_"`

	Redis struct {
		Addr     string        `env:"ADDR"`
		Password string        `env:"PASSWORD"`
		DB       int           `env:"DB" envDefault:"0"`
		TTL      time.Duration `env:"TTL" envDefault:"10m"`
	} `envPrefix:"REDIS_"`

	RabbitMQ struct {
		DSN            string        `env:"DSN"`
		Exchange       string        `env:"EXCHANGE" envDefault:"schedule"`
		PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"10s"`
	} `envPrefix:"RABBITMQ_"`

	// Draft - ежемесячный черновик следующего периода
	Draft struct {
		Enabled bool     `env:"ENABLED" envDefault:"false"`
		Spec    string   `env:"SPEC" envDefault:"0 3 25 * *"`
		Teams   []string `env:"TEAMS" envSeparator:","`
	} `envPrefix:"DRAFT_"`

	Engine struct {
		Pause time.Duration `env:"PAUSE" envDefault:"20ms"`
	} `envPrefix:"ENGINE_"`
}

var instance *Config
var once sync.Once

// Get - конфигурация процесса. Ошибка разбора окружения фатальна.
func Get() *Config {
	once.Do(func() {
		cfg, err := Load()
		if err != nil {
			logrus.Fatalf("error loading env variables: %s", err.Error())
		}
		instance = cfg
	})

	return instance
}

// Load читает .env (если он есть) и переменные окружения
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		var aggErr env.AggregateError
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			// первая ошибка читается лучше, чем склейка всех
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "staging"
}
