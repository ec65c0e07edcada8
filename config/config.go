package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит все параметры конфигурации из переменных окружения.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4280"`

	// Размеры пакетов для чтения/записи в БД
	QueryBatchSize  int `envconfig:"QUERY_BATCH_SIZE" default:"500"`
	InsertBatchSize int `envconfig:"INSERT_BATCH_SIZE" default:"500"`
	LinkBatchSize   int `envconfig:"LINK_BATCH_SIZE" default:"1000"`

	// Границы in-process кэшей (детектор типов, кэш разборов NLP)
	DetectorCacheSize int `envconfig:"DETECTOR_CACHE_SIZE" default:"10000"`
	NLPDocCacheSize   int `envconfig:"NLP_DOC_CACHE_SIZE" default:"10000"`

	// Фильтры по умолчанию для команды parse
	MinYear    int  `envconfig:"MIN_YEAR" default:"0"`
	ActiveOnly bool `envconfig:"ACTIVE_ONLY" default:"false"`

	// Предпочитаемая кодировка/разделитель каталогов (первая стратегия загрузчика)
	CSVEncoding  string `envconfig:"CSV_ENCODING" default:"utf-8"`
	CSVDelimiter string `envconfig:"CSV_DELIMITER" default:";"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"30 3 * * *"`

	// Объектное хранилище с файлами каталогов (опционально; пустой URL отключает)
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"ru-central-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`

	// Резервное копирование БД (cmd/backup)
	BackupBucket string `envconfig:"BACKUP_BUCKET"`
	KeepBackups  int    `envconfig:"KEEP_BACKUPS" default:"4"`
}

// DSN возвращает Data Source Name для подключения к PostgreSQL.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// S3Enabled сообщает, настроено ли объектное хранилище.
func (c *Config) S3Enabled() bool {
	return c.S3URL != "" && c.S3Bucket != ""
}

// Load загружает конфигурацию из переменных окружения.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
