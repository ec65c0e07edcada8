// Package services содержит дирижёр конвейера разбора: выбор каталогов,
// загрузку файлов, фильтрацию строк и вызов разборщиков.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fipsreg/catalogues"
	"fipsreg/config"
	"fipsreg/models"
	"fipsreg/parsers"
	"fipsreg/storage"
)

// ErrNoCatalogues возвращается, когда под заданные критерии не попал ни один
// каталог.
var ErrNoCatalogues = errors.New("no catalogues matched the selection")

// ErrUnknownParser возвращается для каталога с типом, которому не назначен
// разборщик.
var ErrUnknownParser = errors.New("no parser registered for ip type")

// RunOptions — критерии и режимы одного прогона конвейера.
type RunOptions struct {
	// CatalogueID ограничивает прогон одним каталогом; 0 — без ограничения
	CatalogueID uint
	// IPType ограничивает прогон каталогами одного типа; пусто — все типы
	IPType string

	DryRun bool
	// Force разбирает уже разобранные каталоги и отключает пропуск по дате
	Force bool
	// Limit обрезает каждый каталог до первых N строк (тестовые прогоны)
	Limit int

	MinYear    int
	ActiveOnly bool

	// MarkParsedOnErrors выставляет parsed_date даже при ошибках строк
	MarkParsedOnErrors bool
}

// RunResult — итог прогона: агрегированная статистика и счётчик каталогов.
type RunResult struct {
	RunID              string        `json:"run_id"`
	Stats              parsers.Stats `json:"stats"`
	CataloguesParsed   int           `json:"catalogues_parsed"`
	CataloguesFailed   int           `json:"catalogues_failed"`
	CataloguesSelected int           `json:"catalogues_selected"`
}

// IngestService — дирижёр конвейера. Ошибка одного каталога не прерывает
// прогон: каталог помечается неудачным, остальные разбираются.
type IngestService struct {
	cfg      *config.Config
	db       *gorm.DB
	logger   *zap.Logger
	loader   *catalogues.Loader
	registry map[string]parsers.Parser
	files    *storage.CatalogueFiles
}

// NewIngestService создаёт сервис конвейера. files может быть nil, тогда
// каталоги читаются только с локального диска.
func NewIngestService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, registry map[string]parsers.Parser, files *storage.CatalogueFiles) *IngestService {
	if files == nil {
		files = storage.NewCatalogueFiles(nil, "")
	}
	return &IngestService{
		cfg:      cfg,
		db:       db,
		logger:   logger,
		loader:   catalogues.NewLoader(logger),
		registry: registry,
		files:    files,
	}
}

// Run выбирает каталоги под критерии и разбирает их по очереди.
func (s *IngestService) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	result := &RunResult{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", result.RunID))

	cats, err := s.selectCatalogues(opts)
	if err != nil {
		return result, err
	}
	if len(cats) == 0 {
		return result, ErrNoCatalogues
	}
	result.CataloguesSelected = len(cats)
	log.Info("run started",
		zap.Int("catalogues", len(cats)),
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("force", opts.Force))

	for i := range cats {
		cat := &cats[i]
		stats, err := s.parseCatalogue(ctx, log, cat, opts)
		if err != nil {
			result.CataloguesFailed++
			log.Error("catalogue failed",
				zap.Uint("catalogue_id", cat.ID),
				zap.String("ip_type", cat.IPType),
				zap.Error(err))
			continue
		}
		result.CataloguesParsed++
		result.Stats.Add(stats)
	}

	log.Info("run finished",
		zap.Int("parsed", result.CataloguesParsed),
		zap.Int("failed", result.CataloguesFailed),
		zap.Int("created", result.Stats.Created),
		zap.Int("updated", result.Stats.Updated),
		zap.Int("errors", result.Stats.Errors))
	return result, nil
}

// selectCatalogues выбирает каталоги: по id, по типу либо все. Уже
// разобранные пропускаются без Force при любом способе выбора, включая
// явный id.
func (s *IngestService) selectCatalogues(opts RunOptions) ([]models.Catalogue, error) {
	query := s.db.Model(&models.Catalogue{})
	switch {
	case opts.CatalogueID != 0:
		query = query.Where("id = ?", opts.CatalogueID)
	case opts.IPType != "":
		query = query.Where("ip_type = ?", opts.IPType)
	}
	if !opts.Force {
		query = query.Where("parsed_date IS NULL")
	}

	var cats []models.Catalogue
	if err := query.Order("upload_date asc, id asc").Find(&cats).Error; err != nil {
		return nil, fmt.Errorf("select catalogues: %w", err)
	}
	return cats, nil
}

// parseCatalogue проводит один каталог через весь конвейер: файл, загрузка,
// проверка колонок, фильтры, разбор, отметка parsed_date.
func (s *IngestService) parseCatalogue(ctx context.Context, log *zap.Logger, cat *models.Catalogue, opts RunOptions) (*parsers.Stats, error) {
	parser, ok := s.registry[cat.IPType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParser, cat.IPType)
	}

	path, cleanup, err := s.files.Fetch(ctx, cat.FileKey)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	table, err := s.loader.Load(path, s.cfg.CSVEncoding, delimiterRune(s.cfg.CSVDelimiter))
	if err != nil {
		return nil, err
	}
	if err := table.RequireColumns(parser.RequiredColumns()...); err != nil {
		return nil, err
	}

	table.Truncate(opts.Limit)
	if kept, dropped := catalogues.FilterMinYear(table, parser.DateColumn(), opts.MinYear); dropped > 0 {
		log.Info("rows filtered by min year",
			zap.Uint("catalogue_id", cat.ID), zap.Int("kept", kept), zap.Int("dropped", dropped))
	}
	if opts.ActiveOnly {
		if kept, dropped := catalogues.FilterActive(table, parser.ActualColumn()); dropped > 0 {
			log.Info("inactive rows filtered",
				zap.Uint("catalogue_id", cat.ID), zap.Int("kept", kept), zap.Int("dropped", dropped))
		}
	}

	stats, err := parser.Parse(ctx, table, cat, parsers.Options{
		DryRun:          opts.DryRun,
		Force:           opts.Force,
		QueryBatchSize:  s.cfg.QueryBatchSize,
		InsertBatchSize: s.cfg.InsertBatchSize,
		LinkBatchSize:   s.cfg.LinkBatchSize,
	})
	if err != nil {
		return nil, err
	}

	// Каталог считается разобранным только после чистого прохода; прогон с
	// ошибками строк оставляет parsed_date пустым, чтобы каталог попал в
	// следующий прогон
	if !opts.DryRun && (stats.Errors == 0 || opts.MarkParsedOnErrors) {
		now := time.Now()
		if err := s.db.Model(cat).Update("parsed_date", now).Error; err != nil {
			return stats, fmt.Errorf("mark catalogue parsed: %w", err)
		}
		cat.ParsedDate = &now
	}
	return stats, nil
}

func delimiterRune(s string) rune {
	for _, r := range s {
		return r
	}
	return ';'
}
