package parsers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fipsreg/catalogues"
	"fipsreg/models"
	"fipsreg/nlp"
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

func newTestParser(t *testing.T, db *gorm.DB) *InventionParser {
	t.Helper()
	logger := zap.NewNop()
	processor := nlp.NewProcessor(logger, 1000)
	detector := nlp.NewTypeDetector(logger, processor, 1000)
	return NewInventionParser(db, logger, processor, detector)
}

func inventionTable(rows ...catalogues.Row) *catalogues.Table {
	return &catalogues.Table{
		Columns: []string{
			ColRegNumber, ColRegDate, ColAppNumber, ColAppDate, ColName,
			ColActual, ColAuthors, ColHolders,
		},
		Rows: rows,
	}
}

func sampleRow(reg string) catalogues.Row {
	return catalogues.Row{
		ColRegNumber: reg,
		ColRegDate:   "2021-03-02",
		ColAppNumber: "2019112345",
		ColAppDate:   "2019-06-01",
		ColName:      "СПОСОБ ПОЛУЧЕНИЯ КОМПОЗИЦИИ",
		ColActual:    "да",
		ColAuthors:   "Иванов Иван Иванович\nПетров Пётр Петрович",
		ColHolders:   "ООО «Ромашка» (RU)",
	}
}

func authorLinksOf(t *testing.T, db *gorm.DB, objectID uint) []uint {
	t.Helper()
	var links []models.AuthorLink
	require.NoError(t, db.Where("ip_object_id = ?", objectID).Order("person_id asc").Find(&links).Error)
	ids := make([]uint, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.PersonID)
	}
	return ids
}

func TestParseCreatesObjectsAndLinks(t *testing.T) {
	db := newTestDB(t)
	p := newTestParser(t, db)
	cat := &models.Catalogue{IPType: models.IPTypeInvention}

	stats, err := p.Parse(context.Background(), inventionTable(sampleRow("100")), cat, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 2, stats.PersonsCreated)
	assert.Equal(t, 1, stats.OrgsCreated)

	var obj models.IPObject
	require.NoError(t, db.Where("reg_number = ?", "100").First(&obj).Error)
	assert.Equal(t, models.IPTypeInvention, obj.IPType)
	assert.Equal(t, "Способ получения композиции", obj.Name)
	assert.Equal(t, 2019, obj.CreationYear)
	assert.True(t, obj.Actual)
	require.NotNil(t, obj.RegistrationDate)
	assert.Equal(t, 2021, obj.RegistrationDate.Year())

	assert.Len(t, authorLinksOf(t, db, obj.ID), 2)

	var orgLinks []models.OwnerOrgLink
	require.NoError(t, db.Where("ip_object_id = ?", obj.ID).Find(&orgLinks).Error)
	require.Len(t, orgLinks, 1)

	// код страны отрезан от названия правообладателя
	var org models.Organization
	require.NoError(t, db.First(&org, orgLinks[0].OrganizationID).Error)
	assert.Equal(t, "ООО «Ромашка»", org.Name)
}

func TestParseRerunIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	p := newTestParser(t, db)
	cat := &models.Catalogue{IPType: models.IPTypeInvention}

	_, err := p.Parse(context.Background(), inventionTable(sampleRow("100")), cat, Options{})
	require.NoError(t, err)

	stats, err := p.Parse(context.Background(), inventionTable(sampleRow("100")), cat, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Created)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, 0, stats.PersonsCreated)
	assert.Equal(t, 0, stats.OrgsCreated)

	var objects, persons, orgs, links int64
	db.Model(&models.IPObject{}).Count(&objects)
	db.Model(&models.Person{}).Count(&persons)
	db.Model(&models.Organization{}).Count(&orgs)
	db.Model(&models.AuthorLink{}).Count(&links)
	assert.EqualValues(t, 1, objects)
	assert.EqualValues(t, 2, persons)
	assert.EqualValues(t, 1, orgs)
	assert.EqualValues(t, 2, links)
}

func TestParseReplacesLinkSets(t *testing.T) {
	db := newTestDB(t)
	p := newTestParser(t, db)
	cat := &models.Catalogue{IPType: models.IPTypeInvention}

	row := sampleRow("100")
	row[ColAuthors] = "Иванов Иван Иванович\nПетров Пётр Петрович"
	_, err := p.Parse(context.Background(), inventionTable(row), cat, Options{})
	require.NoError(t, err)

	var obj models.IPObject
	require.NoError(t, db.Where("reg_number = ?", "100").First(&obj).Error)
	firstRun := authorLinksOf(t, db, obj.ID)
	require.Len(t, firstRun, 2)

	// состав авторов сменился: {Иванов, Петров} -> {Петров, Смирнова}
	row = sampleRow("100")
	row[ColAuthors] = "Петров Пётр Петрович\nСмирнова Ольга Викторовна"
	_, err = p.Parse(context.Background(), inventionTable(row), cat, Options{Force: true})
	require.NoError(t, err)

	secondRun := authorLinksOf(t, db, obj.ID)
	require.Len(t, secondRun, 2)

	var petrov models.Person
	require.NoError(t, db.Where("last_name = ?", "Петров").First(&petrov).Error)
	var smirnova models.Person
	require.NoError(t, db.Where("last_name = ?", "Смирнова").First(&smirnova).Error)
	var ivanov models.Person
	require.NoError(t, db.Where("last_name = ?", "Иванов").First(&ivanov).Error)

	assert.Contains(t, secondRun, petrov.ID)
	assert.Contains(t, secondRun, smirnova.ID)
	assert.NotContains(t, secondRun, ivanov.ID)
	// сама персона при отвязке не удаляется
	assert.NotZero(t, ivanov.ID)
}

func TestParseSkipsStaleRows(t *testing.T) {
	db := newTestDB(t)
	p := newTestParser(t, db)

	existing := models.IPObject{
		RegNumber: "100", IPType: models.IPTypeInvention, Name: "Старое название",
	}
	require.NoError(t, db.Create(&existing).Error)

	// каталог загружен раньше, чем запись менялась в последний раз
	uploaded := time.Now().Add(-24 * time.Hour)
	cat := &models.Catalogue{IPType: models.IPTypeInvention, UploadDate: &uploaded}

	stats, err := p.Parse(context.Background(), inventionTable(sampleRow("100")), cat, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedByDate)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Updated)

	var obj models.IPObject
	require.NoError(t, db.Where("reg_number = ?", "100").First(&obj).Error)
	assert.Equal(t, "Старое название", obj.Name)

	// с Force пропуск по дате отключён
	stats, err = p.Parse(context.Background(), inventionTable(sampleRow("100")), cat, Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)

	require.NoError(t, db.Where("reg_number = ?", "100").First(&obj).Error)
	assert.Equal(t, "Способ получения композиции", obj.Name)
}

func TestParseRowErrorIsolation(t *testing.T) {
	db := newTestDB(t)
	p := newTestParser(t, db)
	cat := &models.Catalogue{IPType: models.IPTypeInvention}

	rows := make([]catalogues.Row, 0, 100)
	for i := 0; i < 100; i++ {
		row := sampleRow(fmt.Sprintf("%d", 1000+i))
		row[ColName] = gofakeit.Sentence(4)
		rows = append(rows, row)
	}
	rows[37][ColName] = "" // неразбираемая строка

	stats, err := p.Parse(context.Background(), inventionTable(rows...), cat, Options{})
	require.NoError(t, err)
	assert.Equal(t, 100, stats.Processed)
	assert.Equal(t, 99, stats.Created)
	assert.Equal(t, 1, stats.Errors)

	var count int64
	db.Model(&models.IPObject{}).Count(&count)
	assert.EqualValues(t, 99, count)
}

func TestParseSkipsEmptyRegNumbers(t *testing.T) {
	db := newTestDB(t)
	p := newTestParser(t, db)
	cat := &models.Catalogue{IPType: models.IPTypeInvention}

	empty := sampleRow("")
	stats, err := p.Parse(context.Background(), inventionTable(empty, sampleRow("200")), cat, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Created)
}

func TestParseDryRunWritesNothing(t *testing.T) {
	db := newTestDB(t)
	p := newTestParser(t, db)
	cat := &models.Catalogue{IPType: models.IPTypeInvention}

	stats, err := p.Parse(context.Background(), inventionTable(sampleRow("100")), cat, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 2, stats.PersonsCreated)
	assert.Equal(t, 1, stats.OrgsCreated)

	var objects, persons, orgs int64
	db.Model(&models.IPObject{}).Count(&objects)
	db.Model(&models.Person{}).Count(&persons)
	db.Model(&models.Organization{}).Count(&orgs)
	assert.Zero(t, objects)
	assert.Zero(t, persons)
	assert.Zero(t, orgs)
}
