package nlp

import (
	"go.uber.org/zap"
)

// TypeDetector классифицирует строку как персону или организацию,
// мемоизируя решения классификатора. Кэш ограничен; пакетная форма — чистая
// оптимизация пропускной способности и обязана давать тот же результат, что
// и цикл по одиночной.
type TypeDetector struct {
	logger     *zap.Logger
	classifier Classifier
	cache      *boundedCache[EntityType]
}

// NewTypeDetector создаёт детектор поверх готового классификатора.
func NewTypeDetector(logger *zap.Logger, classifier Classifier, cacheSize int) *TypeDetector {
	return &TypeDetector{
		logger:     logger,
		classifier: classifier,
		cache:      newBoundedCache[EntityType](cacheSize),
	}
}

// Detect возвращает тип сущности для строки. Строки короче двух символов
// всегда считаются организацией.
func (d *TypeDetector) Detect(text string) EntityType {
	if len([]rune(text)) < 2 {
		return TypeOrganization
	}
	if cached, ok := d.cache.get(text); ok {
		return cached
	}
	result := TypeOrganization
	if d.classifier.IsPerson(text) {
		result = TypePerson
	}
	d.cache.put(text, result)
	return result
}

// DetectBatch классифицирует набор строк за один проход: сначала
// разделяет вход на попадания и промахи кэша, затем решает промахи.
func (d *TypeDetector) DetectBatch(texts []string) map[string]EntityType {
	result := make(map[string]EntityType, len(texts))
	var misses []string
	for _, text := range texts {
		if len([]rune(text)) < 2 {
			result[text] = TypeOrganization
			continue
		}
		if cached, ok := d.cache.get(text); ok {
			result[text] = cached
			continue
		}
		misses = append(misses, text)
	}
	for _, text := range misses {
		if _, done := result[text]; done {
			continue
		}
		entityType := TypeOrganization
		if d.classifier.IsPerson(text) {
			entityType = TypePerson
		}
		d.cache.put(text, entityType)
		result[text] = entityType
	}
	return result
}

// CacheLen возвращает текущий размер кэша (для тестов и /stats).
func (d *TypeDetector) CacheLen() int {
	return d.cache.len()
}
