// Package parsers содержит разборщики каталогов по типам объектов
// интеллектуальной собственности. Разборщик получает уже загруженную и
// отфильтрованную таблицу и доводит её до БД: диффит против существующих
// записей, разрешает сущности и материализует связи.
package parsers

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fipsreg/catalogues"
	"fipsreg/models"
	"fipsreg/nlp"
)

// Имена колонок выгрузок открытых данных ФИПС.
const (
	ColRegNumber = "registration number"
	ColRegDate   = "registration date"
	ColAppNumber = "application number"
	ColAppDate   = "application date"
	ColName      = "invention name"
	ColActual    = "actual"
	ColAuthors   = "authors"
	ColHolders   = "patent holders"
	ColPubURL    = "publication URL"
	ColStartDate = "patent starting date"
	ColExpDate   = "expiration date"
	ColPubDate   = "publication date"
	ColAbstract  = "abstract"
	ColClaims    = "claims"
)

// Stats — статистика одного разбора. Пустой регистрационный номер,
// пропуск по дате и пустая таблица — не ошибки, а счётчики.
// Пропуски по дате входят и в Skipped, и в SkippedByDate.
type Stats struct {
	Processed     int `json:"processed"`
	Created       int `json:"created"`
	Updated       int `json:"updated"`
	Unchanged     int `json:"unchanged"`
	Skipped       int `json:"skipped"`
	SkippedByDate int `json:"skipped_by_date"`
	Errors        int `json:"errors"`

	PersonsCreated int `json:"persons_created"`
	OrgsCreated    int `json:"orgs_created"`
}

// Add суммирует статистику (для агрегата по прогону).
func (s *Stats) Add(other *Stats) {
	s.Processed += other.Processed
	s.Created += other.Created
	s.Updated += other.Updated
	s.Unchanged += other.Unchanged
	s.Skipped += other.Skipped
	s.SkippedByDate += other.SkippedByDate
	s.Errors += other.Errors
	s.PersonsCreated += other.PersonsCreated
	s.OrgsCreated += other.OrgsCreated
}

// Options — параметры одного прогона разборщика.
type Options struct {
	// DryRun выполняет все вычисления, кроме записи в БД
	DryRun bool
	// Force отключает пропуск строк по дате загрузки каталога
	Force bool

	QueryBatchSize  int
	InsertBatchSize int
	LinkBatchSize   int
}

func (o *Options) defaults() {
	if o.QueryBatchSize <= 0 {
		o.QueryBatchSize = 500
	}
	if o.InsertBatchSize <= 0 {
		o.InsertBatchSize = 500
	}
	if o.LinkBatchSize <= 0 {
		o.LinkBatchSize = 1000
	}
}

// Parser — контракт разборщика каталога одного типа ИС.
type Parser interface {
	// IPType возвращает тип объектов ИС, который понимает разборщик
	IPType() string
	// RequiredColumns — колонки, без которых каталог неразбираем
	RequiredColumns() []string
	// DateColumn — колонка даты регистрации для фильтра по году
	DateColumn() string
	// ActualColumn — колонка действия охраны для фильтра актуальности
	ActualColumn() string
	// Parse выполняет разбор таблицы каталога
	Parse(ctx context.Context, table *catalogues.Table, cat *models.Catalogue, opts Options) (*Stats, error)
}

// NewRegistry собирает реестр разборщиков. Регистрация явная и проверяется
// компилятором; никакого сканирования каталогов с модулями.
func NewRegistry(db *gorm.DB, logger *zap.Logger, processor *nlp.Processor, detector *nlp.TypeDetector) map[string]Parser {
	return map[string]Parser{
		models.IPTypeInvention:        NewInventionParser(db, logger, processor, detector),
		models.IPTypeUtilityModel:     newStubParser(models.IPTypeUtilityModel, logger),
		models.IPTypeIndustrialDesign: newStubParser(models.IPTypeIndustrialDesign, logger),
	}
}
