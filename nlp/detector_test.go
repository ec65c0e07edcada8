package nlp

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// фиксированный классификатор, считающий вызовы
type countingClassifier struct {
	persons map[string]bool
	calls   int
}

func (c *countingClassifier) IsPerson(text string) bool {
	c.calls++
	return c.persons[text]
}

func TestDetectMemoizes(t *testing.T) {
	clf := &countingClassifier{persons: map[string]bool{"Иванов Иван Иванович": true}}
	d := NewTypeDetector(zap.NewNop(), clf, 100)

	assert.Equal(t, TypePerson, d.Detect("Иванов Иван Иванович"))
	assert.Equal(t, TypePerson, d.Detect("Иванов Иван Иванович"))
	assert.Equal(t, 1, clf.calls)

	assert.Equal(t, TypeOrganization, d.Detect("ООО Ромашка"))
	assert.Equal(t, 2, clf.calls)
}

func TestDetectShortStringsAreOrganizations(t *testing.T) {
	clf := &countingClassifier{}
	d := NewTypeDetector(zap.NewNop(), clf, 100)

	assert.Equal(t, TypeOrganization, d.Detect(""))
	assert.Equal(t, TypeOrganization, d.Detect("Я"))
	// классификатор для коротких строк не вызывается
	assert.Equal(t, 0, clf.calls)
}

func TestDetectBatchMatchesLoopedDetect(t *testing.T) {
	persons := map[string]bool{
		"Иванов Иван Иванович": true,
		"Петров П.П.":          true,
	}
	inputs := []string{
		"Иванов Иван Иванович",
		"ООО Ромашка",
		"Петров П.П.",
		"Институт проблем машиноведения",
		"Иванов Иван Иванович", // дубль
		"Я",
	}

	looped := NewTypeDetector(zap.NewNop(), &countingClassifier{persons: persons}, 100)
	expected := make(map[string]EntityType)
	for _, text := range inputs {
		expected[text] = looped.Detect(text)
	}

	batched := NewTypeDetector(zap.NewNop(), &countingClassifier{persons: persons}, 100)
	assert.Equal(t, expected, batched.DetectBatch(inputs))
}

func TestDetectConcurrent(t *testing.T) {
	processor := NewProcessor(zap.NewNop(), 100)
	d := NewTypeDetector(zap.NewNop(), processor, 100)

	inputs := []string{
		"Иванов Иван Иванович",
		"Петров П.П.",
		"ООО «Ромашка»",
		"Институт проблем машиноведения",
	}

	// перекрывающиеся прогоны классифицируют одни и те же строки из
	// нескольких горутин
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				d.Detect(inputs[i%len(inputs)])
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, TypePerson, d.Detect("Иванов Иван Иванович"))
	assert.Equal(t, TypeOrganization, d.Detect("ООО «Ромашка»"))
}

func TestDetectCacheStaysBounded(t *testing.T) {
	clf := &countingClassifier{}
	d := NewTypeDetector(zap.NewNop(), clf, 50)

	for i := 0; i < 500; i++ {
		d.Detect(fmt.Sprintf("Организация номер %d", i))
	}
	assert.LessOrEqual(t, d.CacheLen(), 50)
}
