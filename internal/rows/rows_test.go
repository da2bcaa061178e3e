package rows

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
)

func TestParseCSV(t *testing.T) {
	t.Parallel()

	input := "\ufeffcity,state,title\nAustin,TX,Austin Guide\n\nDenver,CO\n"
	table, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []string{"city", "state", "title"}, table.Header)
	require.Equal(t, []pagegen.Row{
		{"city": "Austin", "state": "TX", "title": "Austin Guide"},
		{"city": "Denver", "state": "CO"},
	}, table.Rows)
}

func TestParseCSVQuotedFields(t *testing.T) {
	t.Parallel()

	input := "name,body\n\"Smith, Jane\",\"line one\nline two\"\n"
	table, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	require.Equal(t, "Smith, Jane", table.Rows[0]["name"])
	require.Equal(t, "line one\nline two", table.Rows[0]["body"])
}

func TestParseCSVEmpty(t *testing.T) {
	t.Parallel()

	table, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, table.Rows)

	table, err = ParseCSV(strings.NewReader("city,state\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"city", "state"}, table.Header)
	require.Empty(t, table.Rows)
}

func TestXLSXRoundTrip(t *testing.T) {
	t.Parallel()

	header := []string{"city", "state"}
	data, err := WriteXLSX(header, []pagegen.Row{
		{"city": "Austin", "state": "TX"},
		{"city": "Denver", "state": "CO"},
	})
	require.NoError(t, err)

	table, err := Parse("batch.xlsx", bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, header, table.Header)
	require.Equal(t, []pagegen.Row{
		{"city": "Austin", "state": "TX"},
		{"city": "Denver", "state": "CO"},
	}, table.Rows)
}

func TestParseRejectsUnknownExtension(t *testing.T) {
	t.Parallel()

	_, err := Parse("batch.pdf", strings.NewReader("%PDF"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseDefaultsToCSV(t *testing.T) {
	t.Parallel()

	table, err := Parse("upload", strings.NewReader("a\n1\n"))
	require.NoError(t, err)
	require.Equal(t, []pagegen.Row{{"a": "1"}}, table.Rows)
}

func TestMissingColumns(t *testing.T) {
	t.Parallel()

	missing := MissingColumns([]string{"zip", "city", "state", "zip"}, []string{"city", "title"})
	require.Equal(t, []string{"state", "zip"}, missing)
	require.Empty(t, MissingColumns([]string{"city"}, []string{"city"}))
}
