package resolve

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fipsreg/models"
	"fipsreg/nlp"
)

// PersonResolver сопоставляет строки имён с персонами по точному кортежу
// (фамилия, имя, [отчество]). Нечёткого поиска для персон нет; существующие
// записи переиспользуются и никогда не изменяются.
type PersonResolver struct {
	db        *gorm.DB
	logger    *zap.Logger
	processor *nlp.Processor
	dryRun    bool
	batchSize int

	// кэш разрешённых кортежей в пределах прогона
	cache      map[string]uint
	usedSlugs  map[string]bool
	nextFakeID uint
}

// NewPersonResolver создаёт резолвер персон.
func NewPersonResolver(db *gorm.DB, logger *zap.Logger, processor *nlp.Processor, batchSize int, dryRun bool) *PersonResolver {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &PersonResolver{
		db:         db,
		logger:     logger,
		processor:  processor,
		dryRun:     dryRun,
		batchSize:  batchSize,
		cache:      make(map[string]uint),
		usedSlugs:  make(map[string]bool),
		nextFakeID: 1 << 29,
	}
}

func personKey(last, first, middle string) string {
	return strings.ToLower(last) + "|" + strings.ToLower(first) + "|" + strings.ToLower(middle)
}

// ResolveOrCreate разрешает набор строк имён: извлекает части ФИО, ищет
// существующих персон пакетно по фамилиям и создаёт недостающих одним
// пакетом. Возвращает карту исходная строка -> id персоны и число созданных.
func (r *PersonResolver) ResolveOrCreate(names []string) (map[string]uint, int, error) {
	parts := make(map[string]nlp.NameParts, len(names))
	var lastNames []string
	lastNameSeen := make(map[string]bool)
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := parts[name]; ok {
			continue
		}
		p := r.processor.ExtractPersonParts(name)
		parts[name] = p
		low := strings.ToLower(p.Last)
		if !lastNameSeen[low] {
			lastNameSeen[low] = true
			lastNames = append(lastNames, p.Last)
		}
	}

	existing, err := r.loadExisting(lastNames)
	if err != nil {
		return nil, 0, err
	}

	resolved := make(map[string]uint, len(parts))
	var missing []string
	for name, p := range parts {
		key := personKey(p.Last, p.First, p.Middle)
		if id, ok := r.cache[key]; ok {
			resolved[name] = id
			continue
		}
		if id, ok := existing[key]; ok {
			r.cache[key] = id
			resolved[name] = id
			continue
		}
		// Отчёт без отчества во входных данных: допускаем совпадение
		// только по фамилии и имени
		if p.Middle == "" {
			if id, ok := existing[personKey(p.Last, p.First, "*")]; ok {
				r.cache[key] = id
				resolved[name] = id
				continue
			}
		}
		missing = append(missing, name)
	}

	if len(missing) == 0 {
		return resolved, 0, nil
	}

	created, err := r.createMissing(missing, parts, resolved)
	if err != nil {
		return nil, 0, err
	}
	return resolved, created, nil
}

// loadExisting загружает персон с подходящими фамилиями пакетами, чтобы не
// упереться в лимиты размера запроса.
func (r *PersonResolver) loadExisting(lastNames []string) (map[string]uint, error) {
	existing := make(map[string]uint)
	for start := 0; start < len(lastNames); start += r.batchSize {
		end := start + r.batchSize
		if end > len(lastNames) {
			end = len(lastNames)
		}
		var persons []models.Person
		if err := r.db.Where("last_name IN ?", lastNames[start:end]).Find(&persons).Error; err != nil {
			return nil, fmt.Errorf("load persons by last name: %w", err)
		}
		for _, p := range persons {
			existing[personKey(p.LastName, p.FirstName, p.MiddleName)] = p.ID
			// ключ-джокер для входа без отчества
			wildcard := personKey(p.LastName, p.FirstName, "*")
			if _, taken := existing[wildcard]; !taken {
				existing[wildcard] = p.ID
			}
		}
	}
	return existing, nil
}

// createMissing создаёт новых персон одним пакетом, назначая каждому
// уникальный слаг.
func (r *PersonResolver) createMissing(missing []string, parts map[string]nlp.NameParts, resolved map[string]uint) (int, error) {
	// внутри пакета дедуплицируем по кортежу: две строки могут дать одно ФИО
	byKey := make(map[string]*models.Person, len(missing))
	order := make([]string, 0, len(missing))
	for _, name := range missing {
		p := parts[name]
		key := personKey(p.Last, p.First, p.Middle)
		if _, ok := byKey[key]; !ok {
			byKey[key] = &models.Person{
				LastName:   p.Last,
				FirstName:  p.First,
				MiddleName: p.Middle,
			}
			order = append(order, key)
		}
	}

	newPersons := make([]*models.Person, 0, len(order))
	for _, key := range order {
		person := byKey[key]
		slug, err := r.uniqueSlug(person.FullName())
		if err != nil {
			return 0, err
		}
		person.Slug = slug
		newPersons = append(newPersons, person)
	}

	if r.dryRun {
		for _, person := range newPersons {
			r.nextFakeID++
			person.ID = r.nextFakeID
		}
	} else {
		if err := r.db.CreateInBatches(newPersons, r.batchSize).Error; err != nil {
			return 0, fmt.Errorf("bulk create persons: %w", err)
		}
		r.logger.Info("persons created", zap.Int("count", len(newPersons)))
	}

	for _, name := range missing {
		p := parts[name]
		key := personKey(p.Last, p.First, p.Middle)
		id := byKey[key].ID
		r.cache[key] = id
		resolved[name] = id
	}
	return len(newPersons), nil
}

// uniqueSlug строит слаг из полного имени с защитой от коллизий: числовой
// суффикс наращивается, пока слаг занят в БД или в текущем пакете.
func (r *PersonResolver) uniqueSlug(fullName string) (string, error) {
	base := Slugify(fullName)
	if base == "" {
		base = fallbackSlugBase
	}
	candidate := base
	for suffix := 2; ; suffix++ {
		if !r.usedSlugs[candidate] {
			taken, err := r.slugTaken(candidate)
			if err != nil {
				return "", err
			}
			if !taken {
				r.usedSlugs[candidate] = true
				return candidate, nil
			}
		}
		candidate = fmt.Sprintf("%s-%d", base, suffix)
	}
}

func (r *PersonResolver) slugTaken(slug string) (bool, error) {
	if r.dryRun {
		return false, nil
	}
	var count int64
	if err := r.db.Model(&models.Person{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check slug uniqueness: %w", err)
	}
	return count > 0, nil
}
