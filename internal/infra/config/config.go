package config

import (
	"log"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`
	JWTSecret string `envconfig:"JWT_SECRET"`

	Digest struct {
		ScheduleUTC     string `envconfig:"DIGEST_SCHEDULE_UTC" default:"08:00"`
		CheckIntervalMS int    `envconfig:"DIGEST_CHECK_INTERVAL_MS" default:"60000"`
	} `envconfig:""`

	Telegram struct {
		Token         string  `envconfig:"BOT_TOKEN"`
		PrimaryChatID int64   `envconfig:"DIGEST_CHAT_ID"`
		AdminIDs      []int64 `envconfig:"BOT_ADMIN_IDS"`
	} `envconfig:""`

	Webhooks struct {
		DiscordURL string `envconfig:"DISCORD_WEBHOOK_URL"`
		TwitterURL string `envconfig:"TWITTER_PUBLISH_WEBHOOK"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
