package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"UTC"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Discord struct {
		Token   string        `envconfig:"DISCORD_BOT_TOKEN"`
		BaseURL string        `envconfig:"DISCORD_API_BASE_URL"`
		Timeout time.Duration `envconfig:"DISCORD_API_TIMEOUT" default:"15s"`
		BotID   int64         `envconfig:"DISCORD_BOT_USER_ID"`
	} `envconfig:""`

	PGDSN          string `envconfig:"PG_DSN"`
	MigrateOnStart bool   `envconfig:"MIGRATE_ON_START" default:"true"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	RabbitURL string `envconfig:"RABBITMQ_URL"`

	Queues struct {
		Events string `envconfig:"EVENTS_QUEUE_KEY" default:"gateway_events"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Archive struct {
		AttachmentsDir string        `envconfig:"ATTACHMENTS_DIR" default:"attachments"`
		PageSize       int           `envconfig:"RECONCILE_PAGE_SIZE" default:"100"`
		PageDelay      time.Duration `envconfig:"RECONCILE_PAGE_DELAY" default:"50ms"`
		LockTTL        time.Duration `envconfig:"RECONCILE_LOCK_TTL" default:"15m"`
		// RetentionDays == 0 отключает чистку скачанных вложений
		RetentionDays int `envconfig:"ATTACHMENT_RETENTION_DAYS" default:"0"`
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
