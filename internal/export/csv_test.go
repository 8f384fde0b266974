package export

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
)

func parseCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCSVEmptyResults(t *testing.T) {
	t.Parallel()

	data, err := CSV(nil)
	require.NoError(t, err)
	require.Equal(t, "No data available", string(data))
}

func TestCSVColumnsAndRows(t *testing.T) {
	t.Parallel()

	results := []pipeline.DocumentResult{
		{
			Filename: "polisci_intro.pdf",
			Metadata: map[string]any{
				"year":     "2025",
				"semester": "Fall",
				pipeline.FieldReadingMaterials: []any{
					map[string]any{
						"title":       "The Prince",
						"creator":     "Machiavelli",
						"requirement": "required",
						"type":        "book",
					},
					map[string]any{
						"title":       "Online Reader",
						"requirement": "optional",
						"type":        "website",
						"url":         "https://reader.example.edu",
					},
				},
			},
			LibraryMatches: []pipeline.CatalogMatch{
				{Title: "The Prince", Availability: pipeline.AvailabilityAvailable},
				{Title: "The Prince (audiobook)", Availability: pipeline.AvailabilityUnavailable},
			},
		},
		{
			Filename: "arts_drawing.pdf",
			Metadata: map[string]any{
				"year":       "2024",
				"instructor": "Dr. Reyes",
			},
		},
	}

	data, err := CSV(results)
	require.NoError(t, err)
	rows := parseCSV(t, data)
	require.Len(t, rows, 3)

	header := rows[0]
	require.Equal(t, []string{
		"filename", "instructor", "semester", "year",
		"reading_materials_count", "required_materials", "optional_materials", "reading_materials_list",
		"library_matches_count", "available_resources", "unavailable_resources",
	}, header)

	first := rows[1]
	require.Equal(t, "polisci_intro.pdf", first[0])
	require.Equal(t, "", first[1]) // no instructor field on this record
	require.Equal(t, "Fall", first[2])
	require.Equal(t, "2025", first[3])
	require.Equal(t, "2", first[4])
	require.Equal(t, "The Prince by Machiavelli (book)", first[5])
	require.Equal(t, "Online Reader (website) [URL: https://reader.example.edu]", first[6])
	require.Equal(t, "The Prince by Machiavelli (book); Online Reader (website) [URL: https://reader.example.edu]", first[7])
	require.Equal(t, "2", first[8])
	require.Equal(t, "The Prince", first[9])
	require.Equal(t, "The Prince (audiobook) (unavailable)", first[10])

	second := rows[2]
	require.Equal(t, "arts_drawing.pdf", second[0])
	require.Equal(t, "Dr. Reyes", second[1])
	require.Equal(t, "0", second[4])
	require.Equal(t, "0", second[8])
}

func TestCSVStringMaterials(t *testing.T) {
	t.Parallel()

	results := []pipeline.DocumentResult{
		{
			Filename: "a.pdf",
			Metadata: map[string]any{
				pipeline.FieldReadingMaterials: []any{"Course packet from the bookstore"},
			},
		},
	}

	data, err := CSV(results)
	require.NoError(t, err)
	rows := parseCSV(t, data)
	require.Len(t, rows, 2)

	// Plain-string materials land in the optional column as default books.
	row := rows[1]
	require.Equal(t, "1", row[1])
	require.Equal(t, "", row[2])
	require.Contains(t, row[3], "Course packet from the bookstore")
}
