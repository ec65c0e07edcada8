// Package nlp классифицирует строки каталога как персону или организацию и
// извлекает структурные части ФИО. Классификация эвристическая: маркеры
// организационно-правовых форм, словарные основы, шаблоны ФИО и запасная
// проверка по капитализации. Точная лингвистическая корректность целью не
// является.
package nlp

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball"
	"go.uber.org/zap"
)

// EntityType — результат классификации строки.
type EntityType string

const (
	TypePerson       EntityType = "person"
	TypeOrganization EntityType = "organization"
)

// NameParts — структурные части полного имени.
type NameParts struct {
	Last   string `json:"last"`
	First  string `json:"first"`
	Middle string `json:"middle"`
	Full   string `json:"full"`
}

// Classifier решает, обозначает ли строка персону. Вынесен в интерфейс,
// чтобы эвристику можно было заменить моделью, не трогая оркестрацию.
type Classifier interface {
	IsPerson(text string) bool
}

var (
	// "Иванов И.И." и "И.И. Иванов"
	surnameInitialsRe = regexp.MustCompile(`^(\p{Lu}[\p{L}\-]+)\s+(\p{Lu})\.\s*(?:(\p{Lu})\.)?$`)
	initialsSurnameRe = regexp.MustCompile(`^(\p{Lu})\.\s*(?:(\p{Lu})\.)?\s*(\p{Lu}[\p{L}\-]+)$`)
	wordRe            = regexp.MustCompile(`[\p{L}\-]+`)
)

// Суффиксы русских отчеств; слово с таким окончанием — сильный признак ФИО.
var patronymicSuffixes = []string{
	"ович", "евич", "ьич", "ич", "овна", "евна", "ична", "инична",
}

// Processor — обёртка над NLP-инструментарием: сегментация, стемминг и
// распознавание персон. Инициализация дорогая, создаётся один раз на процесс.
type Processor struct {
	logger *zap.Logger

	abbreviations map[string]bool
	keywordStems  map[string]bool
	keywords      []string

	// Кэш решений по входным строкам; ограничен, см. boundedCache
	docCache *boundedCache[bool]
}

// NewProcessor создаёт процессор со встроенными словарями маркеров.
func NewProcessor(logger *zap.Logger, cacheSize int) *Processor {
	p := &Processor{
		logger:   logger,
		docCache: newBoundedCache[bool](cacheSize),
	}
	p.SetOrgMarkers(defaultOrgAbbreviations, defaultOrgKeywords)
	return p
}

// SetOrgMarkers подменяет словари маркеров организаций (сокращения и
// ключевые слова). Ключевые слова индексируются и по основе.
func (p *Processor) SetOrgMarkers(abbreviations, keywords []string) {
	p.abbreviations = make(map[string]bool, len(abbreviations))
	for _, a := range abbreviations {
		p.abbreviations[strings.ToLower(a)] = true
	}
	p.keywords = make([]string, 0, len(keywords))
	p.keywordStems = make(map[string]bool, len(keywords))
	for _, k := range keywords {
		lower := strings.ToLower(k)
		p.keywords = append(p.keywords, lower)
		p.keywordStems[p.Lemma(lower)] = true
	}
}

// Lemma возвращает основу слова (стеммер Snowball, русский язык).
// Для нестеммируемого входа возвращается слово без изменений.
func (p *Processor) Lemma(word string) string {
	stem, err := snowball.Stem(word, "russian", false)
	if err != nil || stem == "" {
		return strings.ToLower(word)
	}
	return stem
}

// Segment разбивает текст на словарные токены (буквы и дефис).
func (p *Processor) Segment(text string) []string {
	return wordRe.FindAllString(text, -1)
}

// IsPerson решает, обозначает ли строка полное имя физического лица.
// Короткие строки и строки с маркерами юрлиц сразу считаются организацией.
func (p *Processor) IsPerson(text string) bool {
	text = strings.TrimSpace(text)
	if cached, ok := p.docCache.get(text); ok {
		return cached
	}
	result := p.isPerson(text)
	p.docCache.put(text, result)
	return result
}

func (p *Processor) isPerson(text string) bool {
	if utf8.RuneCountInString(text) < 6 {
		return false
	}

	words := p.Segment(text)
	lower := strings.ToLower(text)

	for _, w := range words {
		if p.abbreviations[strings.ToLower(w)] {
			return false
		}
	}
	for _, kw := range p.keywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	for _, w := range words {
		if p.keywordStems[p.Lemma(w)] {
			return false
		}
	}

	// Шаблоны ФИО: фамилия с инициалами либо слово с суффиксом отчества
	if surnameInitialsRe.MatchString(text) || initialsSurnameRe.MatchString(text) {
		return true
	}
	for _, w := range words {
		lw := strings.ToLower(w)
		for _, suffix := range patronymicSuffixes {
			if strings.HasSuffix(lw, suffix) && utf8.RuneCountInString(lw) > len([]rune(suffix))+2 {
				return true
			}
		}
	}

	// Запасная эвристика по капитализации: 2-4 слова, почти все с заглавной
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	capitalized := 0
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) {
			capitalized++
		}
	}
	return capitalized >= len(words)-1
}

// ExtractPersonParts извлекает части имени. Сначала пробуются шаблоны
// "Фамилия И.О." / "И.О. Фамилия", затем позиционная эвристика: три слова —
// фамилия/имя/отчество, два — фамилия/имя, иначе вся строка в фамилию.
func (p *Processor) ExtractPersonParts(text string) NameParts {
	text = strings.TrimSpace(text)
	full := text

	if m := surnameInitialsRe.FindStringSubmatch(text); m != nil {
		return NameParts{Last: m[1], First: m[2] + ".", Middle: initialOrEmpty(m[3]), Full: full}
	}
	if m := initialsSurnameRe.FindStringSubmatch(text); m != nil {
		return NameParts{Last: m[3], First: m[1] + ".", Middle: initialOrEmpty(m[2]), Full: full}
	}

	words := p.Segment(text)
	switch len(words) {
	case 3:
		return NameParts{Last: words[0], First: words[1], Middle: words[2], Full: full}
	case 2:
		return NameParts{Last: words[0], First: words[1], Full: full}
	default:
		return NameParts{Last: text, Full: full}
	}
}

func initialOrEmpty(letter string) string {
	if letter == "" {
		return ""
	}
	return letter + "."
}
