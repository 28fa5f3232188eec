// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env                     string `yaml:"env" env:"APP_ENV" env-default:"local"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
	UpstreamToolURL         string `yaml:"upstream_tool_url" env:"UPSTREAM_TOOL_URL"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
	Quota                   `yaml:"quota"`
	Guest                   `yaml:"guest"`
	Aggregate               `yaml:"aggregate"`
	Janitor                 `yaml:"janitor"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"localhost:8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"10s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// RateLimit и RateBurst задают глобальный лимит запросов в секунду
	RateLimit float64 `yaml:"rate_limit" env-default:"20"`
	RateBurst int     `yaml:"rate_burst" env-default:"40"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key" env:"JWT_SECRET_KEY"`
	TokenTTL     time.Duration `yaml:"token_ttl" env-default:"24h"`
}

// RabbitMQ настройки подключения к брокеру для отчётов janitor
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"3s"`
}

// Quota лимиты по умолчанию для новых записей QuotaRecord
type Quota struct {
	DailyLimit   int `yaml:"daily_limit" env-default:"10"`
	MonthlyLimit int `yaml:"monthly_limit" env-default:"200"`
}

// Guest настройки пробного режима для анонимных сессий
type Guest struct {
	ToolLimit  int           `yaml:"tool_limit" env-default:"1"`
	NoteLimit  int           `yaml:"note_limit" env-default:"1"`
	SessionTTL time.Duration `yaml:"session_ttl" env-default:"336h"`
}

// Aggregate настройки кеша агрегированной статистики
type Aggregate struct {
	FreshnessWindow time.Duration `yaml:"freshness_window" env-default:"5m"`
	ResponseTTL     time.Duration `yaml:"response_ttl" env-default:"10m"`
	WeekWindow      time.Duration `yaml:"week_window" env-default:"168h"`
}

// Janitor настройки периодических задач очистки
type Janitor struct {
	ArtifactTTL       time.Duration `yaml:"artifact_ttl" env-default:"720h"`
	ActivityRetention time.Duration `yaml:"activity_retention" env-default:"2160h"`
	ActiveWindow      time.Duration `yaml:"active_window" env-default:"720h"`
	BatchSize         int           `yaml:"batch_size" env-default:"500"`
	ArtifactHour      int           `yaml:"artifact_hour" env-default:"3"`
	ActivityHour      int           `yaml:"activity_hour" env-default:"4"`
	SnapshotHour      int           `yaml:"snapshot_hour" env-default:"2"`
	MetricsAddress    string        `yaml:"metrics_address" env-default:"localhost:9102"`
}

// MustLoad функция для загрузки конфига, путь к файлу берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

// Load читает конфиг из файла и переменных окружения.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file: %s - does not exist", op, configPath)
	}
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: cannot read config: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"Quota:\n"+
			"  DailyLimit: %d\n"+
			"  MonthlyLimit: %d\n"+
			"Aggregate:\n"+
			"  FreshnessWindow: %s\n"+
			"  ResponseTTL: %s\n",
		c.Env,
		c.AddressRedis,
		c.DB,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.DailyLimit,
		c.MonthlyLimit,
		c.FreshnessWindow,
		c.ResponseTTL,
	)
}
