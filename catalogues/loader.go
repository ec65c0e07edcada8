// Package catalogues загружает табличные файлы открытых данных ФИПС.
// CSV-файлы публикуются в разных кодировках и с разными разделителями,
// поэтому загрузчик перебирает упорядоченный список стратегий, пока одна
// не разберёт файл без ошибок. Все ячейки читаются как сырые строки:
// приведение типов — задача textutil ниже по конвейеру.
package catalogues

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrAllStrategiesFailed возвращается, когда ни одна пара
// (кодировка, разделитель) не разобрала файл. Фатально для каталога,
// но не для всего прогона.
var ErrAllStrategiesFailed = errors.New("no loading strategy succeeded")

// Strategy — пара (кодировка, разделитель), с которой пробуется разбор.
type Strategy struct {
	Encoding  string
	Delimiter rune
}

func (s Strategy) String() string {
	return fmt.Sprintf("%s/%q", s.Encoding, s.Delimiter)
}

// Row — одна строка каталога: имя колонки -> сырое строковое значение.
type Row map[string]string

// Table — результат загрузки каталога. Strategy сообщает, какая стратегия
// сработала.
type Table struct {
	Columns  []string
	Rows     []Row
	Strategy Strategy
}

// Truncate ограничивает таблицу первыми n строками (для тестовых прогонов).
func (t *Table) Truncate(n int) {
	if n > 0 && len(t.Rows) > n {
		t.Rows = t.Rows[:n]
	}
}

// HasColumn сообщает, присутствует ли колонка в заголовке.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// RequireColumns проверяет обязательные для типа каталога колонки.
func (t *Table) RequireColumns(names ...string) error {
	for _, name := range names {
		if !t.HasColumn(name) {
			return fmt.Errorf("required column %q is missing", name)
		}
	}
	return nil
}

// Loader загружает файлы каталогов с перебором стратегий.
type Loader struct {
	logger *zap.Logger
}

// NewLoader создаёт загрузчик.
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logger}
}

// strategies строит упорядоченный список попыток: предпочтение вызывающего,
// затем стандартные комбинации выгрузок ФИПС.
func strategies(preferredEncoding string, preferredDelimiter rune) []Strategy {
	candidates := []Strategy{
		{preferredEncoding, preferredDelimiter},
		{"cp1251", preferredDelimiter},
		{"utf-8", ';'},
		{"cp1251", ';'},
		{"utf-8", '\t'},
	}
	seen := make(map[Strategy]bool, len(candidates))
	out := candidates[:0]
	for _, s := range candidates {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Load загружает файл каталога. Файлы .xlsx разбираются напрямую через
// excelize; для CSV перебираются стратегии, первая успешная выигрывает.
func (l *Loader) Load(path, preferredEncoding string, preferredDelimiter rune) (*Table, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".xlsx" || ext == ".xlsm" {
		return l.loadXLSX(path)
	}

	var lastErr error
	for _, strategy := range strategies(preferredEncoding, preferredDelimiter) {
		table, err := l.loadCSV(path, strategy)
		if err != nil {
			lastErr = err
			l.logger.Debug("loading strategy failed",
				zap.String("file", path),
				zap.String("strategy", strategy.String()),
				zap.Error(err))
			continue
		}
		table.Strategy = strategy
		l.logger.Info("catalogue file loaded",
			zap.String("file", path),
			zap.String("strategy", strategy.String()),
			zap.Int("rows", len(table.Rows)))
		return table, nil
	}
	return nil, fmt.Errorf("%w: %s (last error: %v)", ErrAllStrategiesFailed, path, lastErr)
}

// loadCSV пробует одну стратегию. Нарушение кодировки или структуры
// (невалидный UTF-8 после декодирования, меньше двух колонок) — отказ
// стратегии, а не файла.
func (l *Loader) loadCSV(path string, strategy Strategy) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue file: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strategy.Encoding == "cp1251" {
		reader = transform.NewReader(file, charmap.Windows1251.NewDecoder())
	}

	csvReader := csv.NewReader(reader)
	csvReader.Comma = strategy.Delimiter
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("empty file")
	}

	header := cleanHeader(records[0])
	columns := nonEmpty(header)
	if len(columns) < 2 {
		return nil, fmt.Errorf("suspicious header: %d column(s)", len(columns))
	}
	for _, c := range columns {
		if !utf8.ValidString(c) {
			return nil, errors.New("header is not valid utf-8 after decoding")
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(columns))
		for i, col := range header {
			if col == "" || i >= len(record) {
				continue
			}
			if !utf8.ValidString(record[i]) {
				return nil, errors.New("cell is not valid utf-8 after decoding")
			}
			row[col] = record[i]
		}
		rows = append(rows, row)
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

// loadXLSX читает первый лист книги Excel; семантика колонок и строк после
// извлечения совпадает с CSV-путём.
func (l *Loader) loadXLSX(path string) (*Table, error) {
	book, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx file: %w", err)
	}
	defer book.Close()

	sheet := book.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("no sheets in xlsx file")
	}
	records, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read xlsx rows: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("empty xlsx sheet")
	}

	header := cleanHeader(records[0])
	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if col == "" || i >= len(record) {
				continue
			}
			row[col] = record[i]
		}
		rows = append(rows, row)
	}
	table := &Table{Columns: nonEmpty(header), Rows: rows, Strategy: Strategy{Encoding: "xlsx"}}
	l.logger.Info("catalogue file loaded",
		zap.String("file", path),
		zap.String("strategy", "xlsx"),
		zap.Int("rows", len(table.Rows)))
	return table, nil
}

// cleanHeader обрезает пробелы, ведущий BOM и обрамляющие кавычки у имён
// колонок. Длина результата совпадает со входом: позиции пустых заголовков
// сохраняются, чтобы не сдвигать индексы данных.
func cleanHeader(header []string) []string {
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\uFEFF")
		name = strings.TrimSpace(name)
		name = strings.Trim(name, `"'«»“”`)
		columns[i] = strings.TrimSpace(name)
	}
	return columns
}

func nonEmpty(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}
