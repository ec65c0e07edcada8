package parsers

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fipsreg/catalogues"
	"fipsreg/models"
	"fipsreg/nlp"
	"fipsreg/resolve"
	"fipsreg/textutil"
)

var (
	// авторы и правообладатели перечислены в одной ячейке через перевод
	// строки или точку с запятой
	nameSepRe = regexp.MustCompile(`[\r\n;]+`)
	// код страны в конце имени, например " (RU)"
	countryCodeRe = regexp.MustCompile(`\s*\([A-Za-z]{2}\)\s*$`)
)

// InventionParser разбирает каталоги изобретений: диффит строки против
// существующих записей, пакетно создаёт и обновляет объекты, разрешает
// авторов и правообладателей и заменяет связи затронутых объектов.
type InventionParser struct {
	db        *gorm.DB
	logger    *zap.Logger
	processor *nlp.Processor
	detector  *nlp.TypeDetector
}

// NewInventionParser создаёт разборщик каталогов изобретений.
func NewInventionParser(db *gorm.DB, logger *zap.Logger, processor *nlp.Processor, detector *nlp.TypeDetector) *InventionParser {
	return &InventionParser{
		db:        db,
		logger:    logger.With(zap.String("parser", models.IPTypeInvention)),
		processor: processor,
		detector:  detector,
	}
}

func (p *InventionParser) IPType() string { return models.IPTypeInvention }

func (p *InventionParser) RequiredColumns() []string {
	return []string{ColRegNumber, ColName}
}

func (p *InventionParser) DateColumn() string   { return ColRegDate }
func (p *InventionParser) ActualColumn() string { return ColActual }

// нормализованные значения одной строки каталога
type inventionFields struct {
	name      string
	abstract  string
	claims    string
	appNumber string

	appDate   *time.Time
	regDate   *time.Time
	pubDate   *time.Time
	startDate *time.Time
	expDate   *time.Time

	year   int
	actual bool
	pubURL string

	authors []string
	holders []string
}

// связи, ожидающие материализации для одного объекта
type pendingLinks struct {
	authors []string
	holders []string
}

// Parse выполняет полный цикл разбора таблицы каталога изобретений.
// Ошибка одной строки изолируется: счётчик растёт, остальные строки
// обрабатываются.
func (p *InventionParser) Parse(ctx context.Context, table *catalogues.Table, cat *models.Catalogue, opts Options) (*Stats, error) {
	opts.defaults()
	db := p.db.WithContext(ctx)
	stats := &Stats{}

	// Строки без регистрационного номера неадресуемы; последняя строка с
	// одинаковым номером выигрывает
	rows := make(map[string]catalogues.Row, len(table.Rows))
	var regNumbers []string
	for _, row := range table.Rows {
		reg := textutil.CleanString(row[ColRegNumber])
		if reg == "" {
			stats.Skipped++
			continue
		}
		if _, ok := rows[reg]; !ok {
			regNumbers = append(regNumbers, reg)
		}
		rows[reg] = row
	}

	existing, err := p.loadExisting(db, regNumbers, opts.QueryBatchSize)
	if err != nil {
		return stats, err
	}

	var toCreate []*models.IPObject
	type pendingUpdate struct {
		id      uint
		changed map[string]interface{}
	}
	var toUpdate []pendingUpdate
	links := make(map[string]*pendingLinks)

	for _, reg := range regNumbers {
		row := rows[reg]
		stats.Processed++

		obj := existing[reg]
		if obj != nil && !opts.Force && cat.UploadDate != nil && !obj.UpdatedAt.Before(*cat.UploadDate) {
			stats.SkippedByDate++
			stats.Skipped++
			continue
		}

		fields, rowErr := p.extractRow(reg, row)
		if rowErr != nil {
			stats.Errors++
			p.logger.Warn("row failed, skipping",
				zap.String("reg_number", reg), zap.Error(rowErr))
			continue
		}

		if obj == nil {
			toCreate = append(toCreate, fields.toObject(reg))
			stats.Created++
		} else if changed := fields.diff(obj); len(changed) > 0 {
			toUpdate = append(toUpdate, pendingUpdate{id: obj.ID, changed: changed})
			stats.Updated++
		} else {
			stats.Unchanged++
		}
		links[reg] = &pendingLinks{authors: fields.authors, holders: fields.holders}
	}

	if !opts.DryRun {
		if len(toCreate) > 0 {
			if err := db.CreateInBatches(toCreate, opts.InsertBatchSize).Error; err != nil {
				return stats, fmt.Errorf("bulk create ip objects: %w", err)
			}
		}
		for _, u := range toUpdate {
			err := db.Model(&models.IPObject{}).Where("id = ?", u.id).Updates(u.changed).Error
			if err != nil {
				return stats, fmt.Errorf("update ip object %d: %w", u.id, err)
			}
		}
	} else {
		fakeID := uint(1 << 28)
		for _, obj := range toCreate {
			fakeID++
			obj.ID = fakeID
		}
	}

	// id объектов для материализации связей: существующие плюс только что
	// созданные
	objectIDs := make(map[string]uint, len(links))
	for reg, obj := range existing {
		objectIDs[reg] = obj.ID
	}
	for _, obj := range toCreate {
		objectIDs[obj.RegNumber] = obj.ID
	}

	if err := p.materializeLinks(db, links, objectIDs, stats, opts); err != nil {
		return stats, err
	}

	p.logger.Info("catalogue parsed",
		zap.Uint("catalogue_id", cat.ID),
		zap.Int("processed", stats.Processed),
		zap.Int("created", stats.Created),
		zap.Int("updated", stats.Updated),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("skipped_by_date", stats.SkippedByDate),
		zap.Int("errors", stats.Errors))
	return stats, nil
}

// loadExisting читает существующие объекты данного типа пакетами по
// регистрационным номерам.
func (p *InventionParser) loadExisting(db *gorm.DB, regNumbers []string, batchSize int) (map[string]*models.IPObject, error) {
	existing := make(map[string]*models.IPObject)
	for start := 0; start < len(regNumbers); start += batchSize {
		end := start + batchSize
		if end > len(regNumbers) {
			end = len(regNumbers)
		}
		var objects []models.IPObject
		err := db.Where("ip_type = ? AND reg_number IN ?", p.IPType(), regNumbers[start:end]).
			Find(&objects).Error
		if err != nil {
			return nil, fmt.Errorf("load existing ip objects: %w", err)
		}
		for i := range objects {
			existing[objects[i].RegNumber] = &objects[i]
		}
	}
	return existing, nil
}

// extractRow нормализует значения одной строки. Паника при разборе строки
// не валит каталог, а превращается в ошибку строки.
func (p *InventionParser) extractRow(reg string, row catalogues.Row) (fields *inventionFields, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			fields = nil
			err = fmt.Errorf("row %s: %v", reg, rec)
		}
	}()

	f := &inventionFields{
		name:      textutil.FormatName(textutil.NFC(row[ColName])),
		abstract:  textutil.CleanString(row[ColAbstract]),
		claims:    textutil.CleanString(row[ColClaims]),
		appNumber: textutil.CleanString(row[ColAppNumber]),
		appDate:   textutil.ParseDate(row[ColAppDate]),
		regDate:   textutil.ParseDate(row[ColRegDate]),
		pubDate:   textutil.ParseDate(row[ColPubDate]),
		startDate: textutil.ParseDate(row[ColStartDate]),
		expDate:   textutil.ParseDate(row[ColExpDate]),
		actual:    textutil.ParseBool(row[ColActual]),
		pubURL:    textutil.CleanString(row[ColPubURL]),
		authors:   splitNames(row[ColAuthors]),
		holders:   splitNames(row[ColHolders]),
	}
	f.year = textutil.DeriveYear(f.appDate, f.regDate)
	if f.name == "" {
		return nil, fmt.Errorf("row %s: empty invention name", reg)
	}
	return f, nil
}

// splitNames разбивает ячейку со списком имён и отбрасывает коды стран.
func splitNames(cell string) []string {
	var names []string
	for _, part := range nameSepRe.Split(cell, -1) {
		part = countryCodeRe.ReplaceAllString(part, "")
		part = textutil.CleanString(textutil.NFC(part))
		if part != "" {
			names = append(names, part)
		}
	}
	return names
}

func (f *inventionFields) toObject(reg string) *models.IPObject {
	return &models.IPObject{
		RegNumber:         reg,
		IPType:            models.IPTypeInvention,
		Name:              f.name,
		Abstract:          f.abstract,
		Claims:            f.claims,
		ApplicationNumber: f.appNumber,
		ApplicationDate:   f.appDate,
		RegistrationDate:  f.regDate,
		PublicationDate:   f.pubDate,
		StartDate:         f.startDate,
		ExpirationDate:    f.expDate,
		CreationYear:      f.year,
		Actual:            f.actual,
		PublicationURL:    f.pubURL,
	}
}

// diff возвращает карту изменившихся колонок; пустая карта означает, что
// запись не тронута и updated_at не сдвигается.
func (f *inventionFields) diff(obj *models.IPObject) map[string]interface{} {
	changed := make(map[string]interface{})
	if f.name != obj.Name {
		changed["name"] = f.name
	}
	if f.abstract != obj.Abstract {
		changed["abstract"] = f.abstract
	}
	if f.claims != obj.Claims {
		changed["claims"] = f.claims
	}
	if f.appNumber != obj.ApplicationNumber {
		changed["application_number"] = f.appNumber
	}
	if !sameDate(f.appDate, obj.ApplicationDate) {
		changed["application_date"] = f.appDate
	}
	if !sameDate(f.regDate, obj.RegistrationDate) {
		changed["registration_date"] = f.regDate
	}
	if !sameDate(f.pubDate, obj.PublicationDate) {
		changed["publication_date"] = f.pubDate
	}
	if !sameDate(f.startDate, obj.StartDate) {
		changed["start_date"] = f.startDate
	}
	if !sameDate(f.expDate, obj.ExpirationDate) {
		changed["expiration_date"] = f.expDate
	}
	if f.year != obj.CreationYear {
		changed["creation_year"] = f.year
	}
	if f.actual != obj.Actual {
		changed["actual"] = f.actual
	}
	if f.pubURL != obj.PublicationURL {
		changed["publication_url"] = f.pubURL
	}
	return changed
}

// sameDate сравнивает даты по календарному дню; nil равен только nil.
func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// materializeLinks разрешает авторов и правообладателей и полностью заменяет
// связи затронутых объектов: сначала пакетное удаление, затем пакетная
// вставка с игнорированием конфликтов уникального ребра.
func (p *InventionParser) materializeLinks(db *gorm.DB, links map[string]*pendingLinks, objectIDs map[string]uint, stats *Stats, opts Options) error {
	if len(links) == 0 {
		return nil
	}

	// Авторы в каталогах изобретений всегда персоны; тип определяется
	// только для правообладателей
	personSet := make(map[string]bool)
	holderSet := make(map[string]bool)
	for _, l := range links {
		for _, name := range l.authors {
			personSet[name] = true
		}
		for _, name := range l.holders {
			holderSet[name] = true
		}
	}
	holderNames := make([]string, 0, len(holderSet))
	for name := range holderSet {
		holderNames = append(holderNames, name)
	}
	holderTypes := p.detector.DetectBatch(holderNames)

	var personNames, orgNames []string
	for name := range personSet {
		personNames = append(personNames, name)
	}
	for name, entityType := range holderTypes {
		if entityType == nlp.TypePerson {
			if !personSet[name] {
				personNames = append(personNames, name)
			}
		} else {
			orgNames = append(orgNames, name)
		}
	}

	personResolver := resolve.NewPersonResolver(db, p.logger, p.processor, opts.InsertBatchSize, opts.DryRun)
	orgNormalizer := resolve.NewOrgNormalizer(db, p.logger)
	orgResolver := resolve.NewOrgResolver(db, p.logger, orgNormalizer, opts.InsertBatchSize, opts.DryRun)

	personIDs, personsCreated, err := personResolver.ResolveOrCreate(personNames)
	if err != nil {
		return fmt.Errorf("resolve persons: %w", err)
	}
	orgIDs, orgsCreated, err := orgResolver.ResolveOrCreate(orgNames)
	if err != nil {
		return fmt.Errorf("resolve organizations: %w", err)
	}
	stats.PersonsCreated += personsCreated
	stats.OrgsCreated += orgsCreated

	var (
		touchedIDs       []uint
		authorLinks      []models.AuthorLink
		ownerPersonLinks []models.OwnerPersonLink
		ownerOrgLinks    []models.OwnerOrgLink
	)
	type edge struct{ object, entity uint }
	seenAuthor := make(map[edge]bool)
	seenOwnerPerson := make(map[edge]bool)
	seenOwnerOrg := make(map[edge]bool)

	for reg, l := range links {
		objectID, ok := objectIDs[reg]
		if !ok {
			continue
		}
		touchedIDs = append(touchedIDs, objectID)
		for _, name := range l.authors {
			personID, ok := personIDs[name]
			if !ok {
				continue
			}
			e := edge{objectID, personID}
			if !seenAuthor[e] {
				seenAuthor[e] = true
				authorLinks = append(authorLinks, models.AuthorLink{IPObjectID: objectID, PersonID: personID})
			}
		}
		for _, name := range l.holders {
			if holderTypes[name] == nlp.TypePerson {
				personID, ok := personIDs[name]
				if !ok {
					continue
				}
				e := edge{objectID, personID}
				if !seenOwnerPerson[e] {
					seenOwnerPerson[e] = true
					ownerPersonLinks = append(ownerPersonLinks, models.OwnerPersonLink{IPObjectID: objectID, PersonID: personID})
				}
			} else {
				orgID, ok := orgIDs[name]
				if !ok {
					continue
				}
				e := edge{objectID, orgID}
				if !seenOwnerOrg[e] {
					seenOwnerOrg[e] = true
					ownerOrgLinks = append(ownerOrgLinks, models.OwnerOrgLink{IPObjectID: objectID, OrganizationID: orgID})
				}
			}
		}
	}

	if opts.DryRun {
		return nil
	}

	for start := 0; start < len(touchedIDs); start += opts.LinkBatchSize {
		end := start + opts.LinkBatchSize
		if end > len(touchedIDs) {
			end = len(touchedIDs)
		}
		chunk := touchedIDs[start:end]
		if err := db.Where("ip_object_id IN ?", chunk).Delete(&models.AuthorLink{}).Error; err != nil {
			return fmt.Errorf("delete author links: %w", err)
		}
		if err := db.Where("ip_object_id IN ?", chunk).Delete(&models.OwnerPersonLink{}).Error; err != nil {
			return fmt.Errorf("delete owner person links: %w", err)
		}
		if err := db.Where("ip_object_id IN ?", chunk).Delete(&models.OwnerOrgLink{}).Error; err != nil {
			return fmt.Errorf("delete owner org links: %w", err)
		}
	}

	if len(authorLinks) > 0 {
		err := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(authorLinks, opts.LinkBatchSize).Error
		if err != nil {
			return fmt.Errorf("insert author links: %w", err)
		}
	}
	if len(ownerPersonLinks) > 0 {
		err := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(ownerPersonLinks, opts.LinkBatchSize).Error
		if err != nil {
			return fmt.Errorf("insert owner person links: %w", err)
		}
	}
	if len(ownerOrgLinks) > 0 {
		err := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(ownerOrgLinks, opts.LinkBatchSize).Error
		if err != nil {
			return fmt.Errorf("insert owner org links: %w", err)
		}
	}
	return nil
}
