// Package resolve отвечает за разрешение сущностей: сопоставление строк
// имён из каталога с уже известными персонами и организациями и пакетное
// создание недостающих.
package resolve

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"fipsreg/models"
)

// NormalizedName — поисковая проекция названия организации. Original всегда
// возвращается без изменений: в БД попадает только исходное название.
type NormalizedName struct {
	Normalized string
	Keywords   []string
	Original   string
}

// компилированное правило нормализации
type compiledRule struct {
	re          *regexp.Regexp
	replacement string
}

var (
	quotedRe      = regexp.MustCompile(`["«“„]([^"»”“„]+)["»”“]`)
	numericCodeRe = regexp.MustCompile(`\d{10,}`)
	junkRe        = regexp.MustCompile(`[^\p{L}\p{N}\s-]`)
)

// OrgNormalizer приводит названия организаций к поисковой форме по правилам
// из БД и извлекает ключевые слова для нечёткого поиска.
type OrgNormalizer struct {
	logger *zap.Logger
	rules  []compiledRule
}

// NewOrgNormalizer создаёт нормализатор и загружает правила из хранилища,
// упорядоченные по возрастанию приоритета. Ошибка загрузки не фатальна:
// нормализатор работает с пустым набором правил.
func NewOrgNormalizer(db *gorm.DB, logger *zap.Logger) *OrgNormalizer {
	n := &OrgNormalizer{logger: logger}

	var rules []models.NormalizationRule
	if err := db.Order("priority asc").Find(&rules).Error; err != nil {
		logger.Warn("failed to load normalization rules, continuing with none", zap.Error(err))
		return n
	}
	for _, rule := range rules {
		re, err := wholeWordRegex(rule.Source)
		if err != nil {
			logger.Warn("skipping uncompilable normalization rule",
				zap.Uint("rule_id", rule.ID), zap.Error(err))
			continue
		}
		replacement := ""
		if rule.RuleType == models.RuleReplace {
			replacement = rule.Replacement
		}
		n.rules = append(n.rules, compiledRule{re: re, replacement: replacement})
	}
	logger.Info("normalization rules loaded", zap.Int("count", len(n.rules)))
	return n
}

// wholeWordRegex строит регулярное выражение совпадения по целому слову.
// \b в Go не работает для кириллицы, поэтому границы выражены явно.
func wholeWordRegex(source string) (*regexp.Regexp, error) {
	pattern := `(^|[^\p{L}\p{N}])(?i:` + regexp.QuoteMeta(strings.ToLower(source)) + `)($|[^\p{L}\p{N}])`
	return regexp.Compile(pattern)
}

// Normalize возвращает поисковую форму названия, ключевые слова и исходную
// строку. Нормализация никогда не применяется к сохраняемым значениям.
func (n *OrgNormalizer) Normalize(name string) NormalizedName {
	original := strings.TrimSpace(name)
	normalized := strings.ToLower(original)

	for _, rule := range n.rules {
		normalized = rule.re.ReplaceAllString(normalized, "${1}"+rule.replacement+"${2}")
	}

	normalized = junkRe.ReplaceAllString(normalized, " ")
	normalized = strings.Join(strings.Fields(normalized), " ")

	return NormalizedName{
		Normalized: normalized,
		Keywords:   extractKeywords(original),
		Original:   original,
	}
}

// extractKeywords извлекает из ИСХОДНОЙ строки признаки для нечёткого
// поиска: слова внутри кавычек длиннее трёх символов, заглавные аббревиатуры
// от двух символов и числовые коды от десяти цифр (ИНН, ОГРН).
func extractKeywords(original string) []string {
	seen := make(map[string]bool)
	var keywords []string
	add := func(kw string) {
		kw = strings.TrimSpace(kw)
		if kw != "" && !seen[kw] {
			seen[kw] = true
			keywords = append(keywords, kw)
		}
	}

	for _, m := range quotedRe.FindAllStringSubmatch(original, -1) {
		for _, word := range strings.Fields(m[1]) {
			word = strings.TrimFunc(word, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsNumber(r)
			})
			if utf8.RuneCountInString(word) > 3 {
				add(word)
			}
		}
	}
	for _, token := range strings.Fields(original) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if isUppercaseAbbreviation(token) {
			add(token)
		}
	}
	for _, code := range numericCodeRe.FindAllString(original, -1) {
		add(code)
	}
	return keywords
}

// isUppercaseAbbreviation: токен из двух и более букв, все заглавные.
func isUppercaseAbbreviation(token string) bool {
	if utf8.RuneCountInString(token) < 2 {
		return false
	}
	for _, r := range token {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
