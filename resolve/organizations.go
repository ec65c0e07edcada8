package resolve

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fipsreg/models"
)

// длина префикса нормализованного названия для стратегии префиксного поиска
const prefixMatchLen = 30

// минимальная длина слова для свободного пословного поиска
const looseWordMinLen = 4

// запись индекса организаций; lowered-поля вычислены заранее
type orgEntry struct {
	id        uint
	name      string
	fullName  string
	shortName string
	lowName   string
	lowFull   string
	lowShort  string
}

// OrgResolver сопоставляет названия организаций из каталога с уже
// известными записями. Нечёткий поиск идёт по заранее загруженному
// in-process индексу, а не по LIKE-запросам: семантика сопоставления
// одинакова для любого SQL-бэкенда, индексом владеет один прогон.
type OrgResolver struct {
	db         *gorm.DB
	logger     *zap.Logger
	normalizer *OrgNormalizer
	dryRun     bool

	index  []orgEntry
	loaded bool

	batchSize int
	// синтетические id для dry-run, чтобы связи оставались согласованными
	nextFakeID uint
}

// NewOrgResolver создаёт резолвер организаций.
func NewOrgResolver(db *gorm.DB, logger *zap.Logger, normalizer *OrgNormalizer, batchSize int, dryRun bool) *OrgResolver {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &OrgResolver{
		db:         db,
		logger:     logger,
		normalizer: normalizer,
		dryRun:     dryRun,
		batchSize:  batchSize,
		nextFakeID: 1 << 30,
	}
}

// load читает все организации в индекс одним пакетным проходом.
func (r *OrgResolver) load() error {
	if r.loaded {
		return nil
	}
	var batch []models.Organization
	err := r.db.FindInBatches(&batch, r.batchSize, func(tx *gorm.DB, _ int) error {
		for _, org := range batch {
			r.addToIndex(org)
		}
		return nil
	}).Error
	if err != nil {
		return fmt.Errorf("load organizations index: %w", err)
	}
	r.loaded = true
	r.logger.Info("organization index loaded", zap.Int("count", len(r.index)))
	return nil
}

func (r *OrgResolver) addToIndex(org models.Organization) {
	r.index = append(r.index, orgEntry{
		id:        org.ID,
		name:      org.Name,
		fullName:  org.FullName,
		shortName: org.ShortName,
		lowName:   strings.ToLower(org.Name),
		lowFull:   strings.ToLower(org.FullName),
		lowShort:  strings.ToLower(org.ShortName),
	})
}

// Resolve ищет организацию по лестнице стратегий; первая сработавшая
// выигрывает. Поиск сознательно либеральный: ложное слияние — принятая
// цена дедупликации.
func (r *OrgResolver) Resolve(name string) (uint, bool) {
	norm := r.normalizer.Normalize(name)
	lowOriginal := strings.ToLower(norm.Original)

	// 1. Точное совпадение с коротким, полным или отображаемым названием
	for _, e := range r.index {
		if lowOriginal == e.lowShort && e.lowShort != "" ||
			lowOriginal == e.lowFull && e.lowFull != "" ||
			lowOriginal == e.lowName {
			return e.id, true
		}
	}

	// 2. Совпадение по ключевым словам (подстрока без учёта регистра)
	for _, kw := range norm.Keywords {
		lowKw := strings.ToLower(kw)
		for _, e := range r.index {
			if strings.Contains(e.lowName, lowKw) ||
				strings.Contains(e.lowFull, lowKw) ||
				(e.lowShort != "" && strings.Contains(e.lowShort, lowKw)) {
				return e.id, true
			}
		}
	}

	// 3. Префикс нормализованной формы для длинных названий
	if runes := []rune(norm.Normalized); len(runes) > prefixMatchLen {
		prefix := string(runes[:prefixMatchLen])
		for _, e := range r.index {
			if strings.Contains(e.lowName, prefix) ||
				strings.Contains(e.lowFull, prefix) ||
				(e.lowShort != "" && strings.Contains(e.lowShort, prefix)) {
				return e.id, true
			}
		}
	}

	// 4. Свободный пословный поиск по исходному названию
	for _, word := range strings.Fields(lowOriginal) {
		if utf8.RuneCountInString(word) <= looseWordMinLen {
			continue
		}
		for _, e := range r.index {
			if strings.Contains(e.lowName, word) || strings.Contains(e.lowFull, word) {
				return e.id, true
			}
		}
	}

	return 0, false
}

// ResolveOrCreate разрешает набор названий, создавая недостающие
// организации пакетно. Сохраняется всегда исходное название, никогда
// нормализованное. Возвращает карту название -> id и число созданных.
func (r *OrgResolver) ResolveOrCreate(names []string) (map[string]uint, int, error) {
	if err := r.load(); err != nil {
		return nil, 0, err
	}

	resolved := make(map[string]uint, len(names))
	var missing []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if id, ok := r.Resolve(name); ok {
			resolved[name] = id
		} else {
			missing = append(missing, name)
		}
	}

	if len(missing) == 0 {
		return resolved, 0, nil
	}

	if r.dryRun {
		for _, name := range missing {
			r.nextFakeID++
			resolved[name] = r.nextFakeID
		}
		return resolved, len(missing), nil
	}

	created := make([]*models.Organization, 0, len(missing))
	for _, name := range missing {
		created = append(created, &models.Organization{Name: name})
	}
	if err := r.db.CreateInBatches(created, r.batchSize).Error; err != nil {
		return nil, 0, fmt.Errorf("bulk create organizations: %w", err)
	}
	for _, org := range created {
		resolved[org.Name] = org.ID
		r.addToIndex(*org)
	}
	r.logger.Info("organizations created", zap.Int("count", len(created)))
	return resolved, len(created), nil
}
