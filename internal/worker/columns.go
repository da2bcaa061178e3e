package worker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pipeline"
)

// Row fields the orchestrator derives from spreadsheet columns.
const (
	FieldTitle           = "title"
	FieldMetaDescription = "meta_description"
	FieldSlug            = "slug"
)

// Truncation limits applied to derived fields and error snapshots.
const (
	maxFieldRunes    = pipeline.MaxFieldRunes
	maxSnapshotRunes = 100
)

// ColumnRule maps a derived field to candidate column names in priority order.
type ColumnRule struct {
	Field      string
	Candidates []string
}

// DefaultColumns is the conventional column naming used by spreadsheets.
var DefaultColumns = []ColumnRule{
	{Field: FieldTitle, Candidates: []string{"title", "name"}},
	{Field: FieldMetaDescription, Candidates: []string{"meta_description", "description"}},
	{Field: FieldSlug, Candidates: []string{"slug"}},
}

// rowFields are the per-row inputs to page generation.
type rowFields struct {
	Title           string
	MetaDescription string
	Slug            string
}

// normalizeRow trims whitespace around column names. Later duplicates win.
func normalizeRow(row pagegen.Row) pagegen.Row {
	out := make(pagegen.Row, len(row))
	for k, v := range row {
		out[strings.TrimSpace(k)] = v
	}
	return out
}

// deriveFields applies rules to row; index is 0-based.
func deriveFields(rules []ColumnRule, row pagegen.Row, index int) rowFields {
	values := make(map[string]string, len(rules))
	for _, rule := range rules {
		values[rule.Field] = lookupColumn(row, rule.Candidates)
	}

	fields := rowFields{
		Title:           values[FieldTitle],
		MetaDescription: values[FieldMetaDescription],
		Slug:            values[FieldSlug],
	}
	if fields.Title == "" {
		fields.Title = fmt.Sprintf("Page %d", index+1)
	}
	if fields.MetaDescription == "" {
		fields.MetaDescription = fields.Title
	}
	fields.Title = truncateRunes(fields.Title, maxFieldRunes)
	fields.MetaDescription = truncateRunes(fields.MetaDescription, maxFieldRunes)
	return fields
}

// lookupColumn returns the first non-blank value whose key equals a candidate,
// then falls back to keys containing a candidate (case-insensitive). Keys are
// scanned in sorted order so the fallback is deterministic.
func lookupColumn(row pagegen.Row, candidates []string) string {
	for _, name := range candidates {
		if v := strings.TrimSpace(row[name]); v != "" {
			return v
		}
	}
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, name := range candidates {
		for _, k := range keys {
			if !strings.Contains(strings.ToLower(k), name) {
				continue
			}
			if v := strings.TrimSpace(row[k]); v != "" {
				return v
			}
		}
	}
	return ""
}

// snapshotRow copies row with every value capped for error descriptors.
func snapshotRow(row pagegen.Row) map[string]string {
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[k] = truncateRunes(v, maxSnapshotRunes)
	}
	return out
}

func truncateRunes(s string, limit int) string {
	return pipeline.TruncateRunes(s, limit)
}
