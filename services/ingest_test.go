package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fipsreg/config"
	"fipsreg/models"
	"fipsreg/nlp"
	"fipsreg/parsers"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Catalogue{},
		&models.IPObject{},
		&models.Person{},
		&models.Organization{},
		&models.NormalizationRule{},
		&models.AuthorLink{},
		&models.OwnerPersonLink{},
		&models.OwnerOrgLink{},
	))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *IngestService {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{
		QueryBatchSize:  100,
		InsertBatchSize: 100,
		LinkBatchSize:   100,
		CSVEncoding:     "utf-8",
		CSVDelimiter:    ";",
	}
	processor := nlp.NewProcessor(logger, 1000)
	detector := nlp.NewTypeDetector(logger, processor, 1000)
	registry := parsers.NewRegistry(db, logger, processor, detector)
	return NewIngestService(cfg, db, logger, registry, nil)
}

const testCSV = `registration number;registration date;application date;invention name;actual;authors;patent holders
100;2021-03-02;2019-06-01;Способ получения композиции;да;"Иванов Иван Иванович
Петров Пётр Петрович";ООО «Ромашка» (RU)
101;2022-01-10;2020-02-01;Устройство контроля давления;да;Сидорова Анна Павловна;Сидорова Анна Павловна
`

func writeCatalogueFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalogue.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func createCatalogue(t *testing.T, db *gorm.DB, ipType, fileKey string) *models.Catalogue {
	t.Helper()
	now := time.Now()
	cat := &models.Catalogue{IPType: ipType, FileKey: fileKey, UploadDate: &now}
	require.NoError(t, db.Create(cat).Error)
	return cat
}

func TestRunParsesPendingCatalogue(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	cat := createCatalogue(t, db, models.IPTypeInvention, writeCatalogueFile(t, testCSV))

	result, err := svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CataloguesParsed)
	assert.Equal(t, 0, result.CataloguesFailed)
	assert.Equal(t, 2, result.Stats.Created)
	assert.NotEmpty(t, result.RunID)

	// чистый проход помечает каталог разобранным
	var reloaded models.Catalogue
	require.NoError(t, db.First(&reloaded, cat.ID).Error)
	assert.NotNil(t, reloaded.ParsedDate)

	// разобранный каталог не попадает в следующий прогон
	_, err = svc.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, ErrNoCatalogues)
}

func TestRunNoCatalogues(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	_, err := svc.Run(context.Background(), RunOptions{})
	assert.ErrorIs(t, err, ErrNoCatalogues)
}

func TestRunContainsCatalogueFailure(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	// файла нет на диске: каталог падает, прогон продолжается
	createCatalogue(t, db, models.IPTypeInvention, "/nonexistent/catalogue.csv")
	createCatalogue(t, db, models.IPTypeInvention, writeCatalogueFile(t, testCSV))

	result, err := svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CataloguesFailed)
	assert.Equal(t, 1, result.CataloguesParsed)
	assert.Equal(t, 2, result.Stats.Created)
}

func TestRunUnknownIPType(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	createCatalogue(t, db, "trademark", writeCatalogueFile(t, testCSV))

	result, err := svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CataloguesFailed)
	assert.Equal(t, 0, result.CataloguesParsed)
}

func TestRunRequiredColumnMissing(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	createCatalogue(t, db, models.IPTypeInvention,
		writeCatalogueFile(t, "some column;another column\na;b\n"))

	result, err := svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CataloguesFailed)
}

func TestRunDryRunLeavesCataloguePending(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	cat := createCatalogue(t, db, models.IPTypeInvention, writeCatalogueFile(t, testCSV))

	result, err := svc.Run(context.Background(), RunOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stats.Created)

	var objects int64
	db.Model(&models.IPObject{}).Count(&objects)
	assert.Zero(t, objects)

	var reloaded models.Catalogue
	require.NoError(t, db.First(&reloaded, cat.ID).Error)
	assert.Nil(t, reloaded.ParsedDate)
}

func TestRunRowErrorsLeaveCataloguePending(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	csv := testCSV + "102;2022-05-05;2020-05-05;;да;Иванов Иван Иванович;Иванов Иван Иванович\n"
	cat := createCatalogue(t, db, models.IPTypeInvention, writeCatalogueFile(t, csv))

	result, err := svc.Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.Errors)
	assert.Equal(t, 2, result.Stats.Created)

	var reloaded models.Catalogue
	require.NoError(t, db.First(&reloaded, cat.ID).Error)
	assert.Nil(t, reloaded.ParsedDate)

	// повторный прогон с отметкой несмотря на ошибки
	result, err = svc.Run(context.Background(), RunOptions{MarkParsedOnErrors: true, Force: true})
	require.NoError(t, err)
	require.NoError(t, db.First(&reloaded, cat.ID).Error)
	assert.NotNil(t, reloaded.ParsedDate)
}

func TestRunFiltersByOptions(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	createCatalogue(t, db, models.IPTypeInvention, writeCatalogueFile(t, testCSV))

	result, err := svc.Run(context.Background(), RunOptions{MinYear: 2022})
	require.NoError(t, err)
	// под порог года попадает только вторая строка
	assert.Equal(t, 1, result.Stats.Created)
}

func TestRunSelectsByCatalogueID(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	first := createCatalogue(t, db, models.IPTypeInvention, writeCatalogueFile(t, testCSV))
	createCatalogue(t, db, models.IPTypeInvention, writeCatalogueFile(t, testCSV))

	result, err := svc.Run(context.Background(), RunOptions{CatalogueID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CataloguesSelected)
	assert.Equal(t, 1, result.CataloguesParsed)
}

func TestRunCatalogueIDSkipsParsed(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	cat := createCatalogue(t, db, models.IPTypeInvention, writeCatalogueFile(t, testCSV))
	require.NoError(t, db.Model(cat).Update("parsed_date", time.Now()).Error)

	// разобранный каталог не выбирается даже по явному id
	_, err := svc.Run(context.Background(), RunOptions{CatalogueID: cat.ID})
	assert.ErrorIs(t, err, ErrNoCatalogues)

	result, err := svc.Run(context.Background(), RunOptions{CatalogueID: cat.ID, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CataloguesParsed)
}
