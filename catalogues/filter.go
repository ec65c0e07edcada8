package catalogues

import (
	"fipsreg/textutil"
)

// FilterMinYear оставляет строки, у которых год в колонке даты регистрации
// присутствует и не меньше minYear. Строки с неразбираемой датой
// отбрасываются (считаются ниже порога). Отсутствие колонки — не ошибка,
// фильтр становится no-op.
func FilterMinYear(table *Table, dateColumn string, minYear int) (kept, dropped int) {
	if minYear <= 0 || !table.HasColumn(dateColumn) {
		return len(table.Rows), 0
	}
	filtered := table.Rows[:0]
	for _, row := range table.Rows {
		date := textutil.ParseDate(row[dateColumn])
		if date != nil && date.Year() >= minYear {
			filtered = append(filtered, row)
		} else {
			dropped++
		}
	}
	table.Rows = filtered
	return len(table.Rows), dropped
}

// FilterActive оставляет строки, у которых колонка действия разбирается как
// истина (тот же набор токенов, что и в textutil.ParseBool). Отсутствие
// колонки — no-op.
func FilterActive(table *Table, actualColumn string) (kept, dropped int) {
	if !table.HasColumn(actualColumn) {
		return len(table.Rows), 0
	}
	filtered := table.Rows[:0]
	for _, row := range table.Rows {
		if textutil.ParseBool(row[actualColumn]) {
			filtered = append(filtered, row)
		} else {
			dropped++
		}
	}
	table.Rows = filtered
	return len(table.Rows), dropped
}
