// Package textutil содержит чистые функции нормализации значений ячеек
// каталогов: очистку строк, разбор дат в нескольких форматах и разбор
// булевых значений из многоязычных токенов.
package textutil

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Литералы, которыми выгрузки ФИПС обозначают отсутствие значения.
var nullTokens = map[string]bool{
	"none": true,
	"null": true,
	"nan":  true,
}

// Токены, считающиеся истинными при разборе булевых колонок.
var truthyTokens = map[string]bool{
	"1":         true,
	"true":      true,
	"yes":       true,
	"да":        true,
	"действует": true,
	"t":         true,
	"1.0":       true,
	"активен":   true,
}

// Форматы дат, встречающиеся в каталогах, в порядке попыток разбора.
var dateLayouts = []string{
	"20060102",
	"2006-01-02",
	"02.01.2006",
	"2006/01/02",
}

// Лояльные форматы для последней попытки, когда основные не подошли.
var fallbackLayouts = []string{
	"02.01.2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2006.01.02",
}

// CleanString приводит сырое значение ячейки к строке: обрезает пробелы и
// превращает null-литералы в пустую строку.
func CleanString(value string) string {
	s := strings.TrimSpace(value)
	if s == "" || nullTokens[strings.ToLower(s)] {
		return ""
	}
	return s
}

// NFC выполняет юникод-нормализацию NFC (выгрузки попадаются в смешанных
// формах компоновки).
func NFC(s string) string {
	normalized, _, err := transform.String(norm.NFC, s)
	if err != nil {
		return s
	}
	return normalized
}

// ParseDate разбирает дату, перебирая известные форматы по порядку; первый
// совпавший выигрывает. Неразбираемое значение — не ошибка, а nil.
func ParseDate(value string) *time.Time {
	s := CleanString(value)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	return nil
}

// ParseBool возвращает true только для фиксированного набора истинных
// токенов (без учёта регистра). Всё остальное, включая пустое значение,
// ложь; функция никогда не завершается ошибкой.
func ParseBool(value string) bool {
	return truthyTokens[strings.ToLower(strings.TrimSpace(value))]
}

// FormatName приводит название к виду "Первая буква заглавная, остальное
// строчными". Повторное применение даёт тот же результат.
func FormatName(name string) string {
	s := strings.ToLower(CleanString(name))
	if s == "" {
		return ""
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// DeriveYear выводит год создания: из даты заявки, иначе из даты
// регистрации; 0 — если обе отсутствуют.
func DeriveYear(applicationDate, registrationDate *time.Time) int {
	if applicationDate != nil {
		return applicationDate.Year()
	}
	if registrationDate != nil {
		return registrationDate.Year()
	}
	return 0
}
