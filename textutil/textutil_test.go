package textutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanString(t *testing.T) {
	assert.Equal(t, "Ромашка", CleanString("  Ромашка  "))
	assert.Equal(t, "", CleanString("   "))
	assert.Equal(t, "", CleanString("None"))
	assert.Equal(t, "", CleanString("null"))
	assert.Equal(t, "", CleanString("NaN"))
	// null-литерал внутри строки не срабатывает
	assert.Equal(t, "none of the above", CleanString("none of the above"))
}

func TestParseDateFormats(t *testing.T) {
	expected := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, value := range []string{
		"20230115",
		"2023-01-15",
		"15.01.2023",
		"2023/01/15",
	} {
		got := ParseDate(value)
		require.NotNil(t, got, "value %q", value)
		assert.True(t, got.Equal(expected), "value %q parsed as %v", value, got)
	}
}

func TestParseDateFallbackAndGarbage(t *testing.T) {
	got := ParseDate("15.01.2023 10:30:00")
	require.NotNil(t, got)
	assert.Equal(t, 2023, got.Year())
	assert.Equal(t, time.January, got.Month())
	assert.Equal(t, 15, got.Day())

	assert.Nil(t, ParseDate(""))
	assert.Nil(t, ParseDate("None"))
	assert.Nil(t, ParseDate("не дата"))
	assert.Nil(t, ParseDate("15-01-20233"))
}

func TestParseBoolTokens(t *testing.T) {
	truthy := []string{"1", "true", "yes", "да", "действует", "t", "1.0", "активен", "ДА", " True "}
	for _, value := range truthy {
		assert.True(t, ParseBool(value), "value %q", value)
	}
	falsy := []string{"", "0", "false", "нет", "no", "2", "прекратил действие", "None"}
	for _, value := range falsy {
		assert.False(t, ParseBool(value), "value %q", value)
	}
}

func TestFormatNameIdempotent(t *testing.T) {
	got := FormatName("СПОСОБ ПОЛУЧЕНИЯ КОМПОЗИЦИИ")
	assert.Equal(t, "Способ получения композиции", got)
	assert.Equal(t, got, FormatName(got))

	assert.Equal(t, "", FormatName("  "))
	assert.Equal(t, "", FormatName("None"))
}

func TestDeriveYear(t *testing.T) {
	app := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	reg := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 2019, DeriveYear(&app, &reg))
	assert.Equal(t, 2021, DeriveYear(nil, &reg))
	assert.Equal(t, 0, DeriveYear(nil, nil))
}
