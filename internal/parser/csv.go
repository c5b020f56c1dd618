package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docstruct/internal/doctree"
)

// csvBatchRows is how many data rows go into one section.
const csvBatchRows = 20

// CSVParser handles tabular exports such as schedules and fee tables. Rows
// are rendered as "header: value" lines in sections of csvBatchRows rows.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: titleFromFilename(filename)}
	if len(records) == 0 {
		return tree, nil
	}

	headers, rows := records[0], records[1:]
	for start := 0; start < len(rows); start += csvBatchRows {
		end := min(start+csvBatchRows, len(rows))

		var sb strings.Builder
		for _, row := range rows[start:end] {
			sb.WriteString(csvRowLine(headers, row))
			sb.WriteString("\n")
		}
		// Line numbers are 1-based and count the header row.
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: fmt.Sprintf("Rows %d-%d", start+2, end+1),
			Text:  strings.TrimRight(sb.String(), "\n"),
			Page:  start + 2,
		})
	}
	return tree, nil
}

func csvRowLine(headers, row []string) string {
	cells := make([]string, 0, len(row))
	for i, cell := range row {
		if i < len(headers) && headers[i] != "" {
			cells = append(cells, headers[i]+": "+cell)
			continue
		}
		cells = append(cells, cell)
	}
	return strings.Join(cells, "; ")
}
