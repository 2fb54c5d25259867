package tag

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formdoc/pkg/document"
)

// parseRows consumes the markdown table between :::rows and :::endrows.
// Column identity comes from the declared columns attribute; the header
// is display-only, except that a zero-row table with no declared labels
// back-fills them from the header.
func parseRows(s *scanner, fld *document.Field, cfg document.Config) ([]document.Row, error) {
	start := s.lineno()
	s.next() // :::rows line

	var tableLines []string
	for {
		line, ok := s.next()
		if !ok {
			return nil, parseErrf(start, "field %q: unterminated :::rows block", fld.ID)
		}
		if tagName(line) == "endrows" {
			break
		}
		if strings.TrimSpace(line) != "" {
			tableLines = append(tableLines, line)
		}
	}

	if len(tableLines) == 0 {
		return []document.Row{}, nil
	}
	if len(tableLines) < 2 {
		return nil, parseErrf(start, "field %q: table needs a header and separator row", fld.ID)
	}
	header, err := splitRow(tableLines[0], start)
	if err != nil {
		return nil, parseErrf(start, "field %q: %v", fld.ID, err)
	}
	if !separatorRow(tableLines[1]) {
		return nil, parseErrf(start, "field %q: second table row must be a separator", fld.ID)
	}
	dataLines := tableLines[2:]

	labelsDeclared := false
	for _, col := range fld.Columns {
		if col.Label != "" {
			labelsDeclared = true
			break
		}
	}
	if !labelsDeclared {
		if len(dataLines) > 0 {
			// A previously serialized document always declares labels, so
			// data rows without them mean the declaration was lost.
			return nil, parseErrf(start, "field %q: table has data rows but no declared column labels", fld.ID)
		}
		if len(header) != len(fld.Columns) {
			return nil, parseErrf(start, "field %q: header has %d cells, table declares %d columns",
				fld.ID, len(header), len(fld.Columns))
		}
		for i := range fld.Columns {
			fld.Columns[i].Label = header[i]
		}
	}

	rows := make([]document.Row, 0, len(dataLines))
	for i, line := range dataLines {
		cells, err := splitRow(line, start+2+i)
		if err != nil {
			return nil, parseErrf(start, "field %q: %v", fld.ID, err)
		}
		if len(cells) != len(fld.Columns) {
			return nil, parseErrf(start, "field %q: row %d has %d cells, table declares %d columns",
				fld.ID, i, len(cells), len(fld.Columns))
		}
		row := make(document.Row, len(cells))
		for c, text := range cells {
			cell, err := parseCell(fld.Columns[c], text, cfg)
			if err != nil {
				return nil, parseErrf(start, "field %q: row %d, column %q: %v", fld.ID, i, fld.Columns[c].ID, err)
			}
			row[c] = cell
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// splitRow breaks a markdown table line on unescaped pipes. Cells are
// whitespace-trimmed; `\|` yields a literal pipe. Control characters
// inside a cell are rejected.
func splitRow(line string, lineno int) ([]string, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "|") || !strings.HasSuffix(trimmed, "|") {
		return nil, fmt.Errorf("line %d: table row must start and end with |", lineno)
	}
	parts := splitEscaped(trimmed, '|')
	if len(parts) < 3 {
		return nil, fmt.Errorf("line %d: table row has no cells", lineno)
	}
	cells := parts[1 : len(parts)-1]
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
		for _, r := range cells[i] {
			if r < 0x20 {
				return nil, fmt.Errorf("line %d: control character in cell %d", lineno, i)
			}
		}
	}
	return cells, nil
}

func separatorRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "|") || !strings.HasSuffix(trimmed, "|") {
		return false
	}
	for _, cell := range strings.Split(strings.Trim(trimmed, "|"), "|") {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			return false
		}
		for _, r := range cell {
			if r != '-' && r != ':' {
				return false
			}
		}
	}
	return true
}

// parseCell types one table cell. Cells are never unanswered: an empty
// cell in a string column is an answered empty string, anywhere else it
// records the cell as skipped.
func parseCell(col document.Column, text string, cfg document.Config) (document.Cell, error) {
	if literal, ok := unescapeSentinelValue(text, cfg); ok {
		value, err := parseScalarPayload(col.ID, col.Kind, literal, 0)
		if err != nil {
			return document.Cell{}, err
		}
		return document.Cell{State: document.StateAnswered, Value: value}, nil
	}
	if sent, ok, err := parseSentinel(text, cfg); err != nil {
		return document.Cell{}, err
	} else if ok {
		return document.Cell{State: sent.state, Reason: sent.reason}, nil
	}
	if text == "" && col.Kind != document.KindString {
		return document.SkippedCell(), nil
	}
	value, err := parseScalarPayload(col.ID, col.Kind, text, 0)
	if err != nil {
		return document.Cell{}, err
	}
	return document.Cell{State: document.StateAnswered, Value: value}, nil
}

// renderRows emits the :::rows block for a table response.
func renderRows(fld *document.Field, rows []document.Row, cfg document.Config, out *strings.Builder, prefix func(string) string) error {
	out.WriteString(prefix("rows") + "\n")

	header := make([]string, len(fld.Columns))
	for i, col := range fld.Columns {
		label := col.Label
		if label == "" {
			label = col.ID
		}
		header[i] = escapeCell(label)
	}
	out.WriteString("| " + strings.Join(header, " | ") + " |\n")

	sep := make([]string, len(fld.Columns))
	for i := range sep {
		sep[i] = "---"
	}
	out.WriteString("| " + strings.Join(sep, " | ") + " |\n")

	for r, row := range rows {
		if len(row) != len(fld.Columns) {
			return fmt.Errorf("tag serializer: table %q row %d has %d cells for %d columns",
				fld.ID, r, len(row), len(fld.Columns))
		}
		cells := make([]string, len(row))
		for c, cell := range row {
			text, err := renderCell(fld.Columns[c], cell, cfg)
			if err != nil {
				return fmt.Errorf("tag serializer: table %q row %d: %w", fld.ID, r, err)
			}
			cells[c] = text
		}
		out.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	out.WriteString(prefix("endrows") + "\n")
	return nil
}

func renderCell(col document.Column, cell document.Cell, cfg document.Config) (string, error) {
	switch cell.State {
	case document.StateSkipped, document.StateAborted:
		if cell.Reason == "" && cell.State == document.StateSkipped {
			if col.Kind == document.KindString {
				return cfg.SkipToken, nil
			}
			return "", nil
		}
		return escapeCell(renderSentinel(cell.State, cell.Reason, cfg)), nil
	case document.StateAnswered:
		text, err := formatScalar(col.Kind, cell.Value)
		if err != nil {
			return "", err
		}
		if strings.ContainsAny(text, "\n\r") {
			return "", fmt.Errorf("column %q: cell value contains a newline", col.ID)
		}
		return escapeCell(escapeSentinelValue(strings.TrimSpace(text), cfg)), nil
	default:
		return "", fmt.Errorf("column %q: table cells cannot be unanswered", col.ID)
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
