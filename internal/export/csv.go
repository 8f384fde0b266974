// Package export renders stage artifacts into tabular form for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

// Column groups appended after the per-document metadata fields.
var (
	readingMaterialColumns = []string{
		"reading_materials_count",
		"required_materials",
		"optional_materials",
		"reading_materials_list",
	}
	libraryColumns = []string{
		"library_matches_count",
		"available_resources",
		"unavailable_resources",
	}
)

const listSeparator = "; "

// CSV renders document results as CSV. Metadata columns are the sorted
// union of field names across all results; reading materials and library
// matches get dedicated summary columns.
func CSV(results []pipeline.DocumentResult) ([]byte, error) {
	if len(results) == 0 {
		return []byte("No data available"), nil
	}

	regularFields := collectFields(results)
	header := append(append(append([]string(nil), regularFields...), readingMaterialColumns...), libraryColumns...)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, result := range results {
		row := make([]string, 0, len(header))
		for _, field := range regularFields {
			if field == "filename" {
				row = append(row, result.Filename)
				continue
			}
			row = append(row, renderValue(result.Metadata[field]))
		}
		row = append(row, materialColumns(result)...)
		row = append(row, libraryMatchColumns(result)...)
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// collectFields returns the sorted union of metadata field names plus the
// filename column, excluding the list-valued reading materials field.
func collectFields(results []pipeline.DocumentResult) []string {
	set := map[string]struct{}{"filename": {}}
	for _, result := range results {
		for field := range result.Metadata {
			if field == pipeline.FieldReadingMaterials {
				continue
			}
			set[field] = struct{}{}
		}
	}
	fields := make([]string, 0, len(set))
	for field := range set {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func renderValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, listSeparator)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// materialColumns summarizes the reading materials list into count,
// required, optional, and combined columns.
func materialColumns(result pipeline.DocumentResult) []string {
	materials := pipeline.MaterialsFromField(result.Metadata[pipeline.FieldReadingMaterials])
	if len(materials) == 0 {
		return []string{"0", "", "", ""}
	}

	var required, optional, all []string
	for _, m := range materials {
		rendered := renderMaterial(m)
		all = append(all, rendered)
		if m.Requirement == pipeline.RequirementRequired {
			required = append(required, rendered)
		} else {
			optional = append(optional, rendered)
		}
	}
	return []string{
		fmt.Sprintf("%d", len(materials)),
		strings.Join(required, listSeparator),
		strings.Join(optional, listSeparator),
		strings.Join(all, listSeparator),
	}
}

// renderMaterial formats one material as "Title by Creator (type) [URL: u]"
// with the creator and URL segments omitted when absent.
func renderMaterial(m pipeline.ReadingMaterial) string {
	var b strings.Builder
	b.WriteString(m.Title)
	if m.Creator != "" {
		b.WriteString(" by ")
		b.WriteString(m.Creator)
	}
	b.WriteString(" (")
	b.WriteString(m.Type)
	b.WriteString(")")
	url := strings.ToLower(strings.TrimSpace(m.URL))
	if url != "" && url != "unknown" && url != "none" {
		b.WriteString(" [URL: ")
		b.WriteString(m.URL)
		b.WriteString("]")
	}
	return b.String()
}

// libraryMatchColumns summarizes catalog matches into count, available,
// and unavailable columns.
func libraryMatchColumns(result pipeline.DocumentResult) []string {
	if len(result.LibraryMatches) == 0 {
		return []string{"0", "", ""}
	}

	var available, unavailable []string
	for _, match := range result.LibraryMatches {
		if match.Availability == pipeline.AvailabilityAvailable {
			available = append(available, match.Title)
			continue
		}
		unavailable = append(unavailable, fmt.Sprintf("%s (%s)", match.Title, match.Availability))
	}
	return []string{
		fmt.Sprintf("%d", len(result.LibraryMatches)),
		strings.Join(available, listSeparator),
		strings.Join(unavailable, listSeparator),
	}
}
