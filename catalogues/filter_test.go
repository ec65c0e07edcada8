package catalogues

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testTable() *Table {
	return &Table{
		Columns: []string{"registration number", "registration date", "actual"},
		Rows: []Row{
			{"registration number": "1", "registration date": "2010-05-01", "actual": "да"},
			{"registration number": "2", "registration date": "2021-03-02", "actual": "false"},
			{"registration number": "3", "registration date": "мусор", "actual": "1"},
			{"registration number": "4", "registration date": "2023-11-11", "actual": ""},
		},
	}
}

func TestFilterMinYear(t *testing.T) {
	table := testTable()
	kept, dropped := FilterMinYear(table, "registration date", 2020)

	assert.Equal(t, 2, kept)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, "2", table.Rows[0]["registration number"])
	assert.Equal(t, "4", table.Rows[1]["registration number"])
}

func TestFilterMinYearNoop(t *testing.T) {
	table := testTable()

	kept, dropped := FilterMinYear(table, "registration date", 0)
	assert.Equal(t, 4, kept)
	assert.Equal(t, 0, dropped)

	kept, dropped = FilterMinYear(table, "missing column", 2020)
	assert.Equal(t, 4, kept)
	assert.Equal(t, 0, dropped)
}

func TestFilterActive(t *testing.T) {
	table := testTable()
	kept, dropped := FilterActive(table, "actual")

	assert.Equal(t, 2, kept)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, "1", table.Rows[0]["registration number"])
	assert.Equal(t, "3", table.Rows[1]["registration number"])
}

func TestFilterActiveMissingColumn(t *testing.T) {
	table := testTable()
	kept, dropped := FilterActive(table, "missing")
	assert.Equal(t, 4, kept)
	assert.Equal(t, 0, dropped)
}
