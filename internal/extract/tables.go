package extract

import "strings"

// tablesHeading is prepended to rendered tables when they are appended to
// a document's raw text for the metadata strategies.
const tablesHeading = "# TABLES (markdown format)"

// minTableRows is the smallest run of column-aligned lines treated as a
// table; shorter runs are almost always addresses or signatures.
const minTableRows = 2

// DetectTables finds runs of column-aligned lines (two or more cells
// separated by tabs or wide space gaps) and renders each run as a
// markdown table. Best effort; no output for free-flowing text.
func DetectTables(text string) []string {
	var (
		tables  []string
		current [][]string
	)

	flush := func() {
		if len(current) >= minTableRows {
			tables = append(tables, renderMarkdown(current))
		}
		current = nil
	}

	for _, line := range strings.Split(text, "\n") {
		cells := splitCells(line)
		if len(cells) >= 2 {
			current = append(current, cells)
			continue
		}
		flush()
	}
	flush()

	return tables
}

// CombineText appends rendered tables to raw text under a fixed heading.
func CombineText(text string, tables []string) string {
	if len(tables) == 0 {
		return text
	}
	return text + "\n\n" + tablesHeading + "\n" + strings.Join(tables, "\n\n")
}

func splitCells(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	var cells []string
	for _, part := range strings.Split(line, "\t") {
		for _, cell := range strings.Split(part, "   ") {
			cell = strings.TrimSpace(cell)
			if cell != "" {
				cells = append(cells, cell)
			}
		}
	}
	return cells
}

func renderMarkdown(rows [][]string) string {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	var b strings.Builder
	for i, row := range rows {
		b.WriteString("|")
		for j := 0; j < width; j++ {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
		if i == 0 {
			b.WriteString("|")
			for j := 0; j < width; j++ {
				b.WriteString(" --- |")
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
