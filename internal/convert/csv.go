package convert

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVConverter renders CSV rows as markdown, batched into row-range
// headings so large files decompose into navigable sections.
type CSVConverter struct{}

const csvBatchSize = 20

func (c *CSVConverter) Convert(r io.Reader, _ string) (string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	headers := records[0]
	dataRows := records[1:]

	var out strings.Builder
	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		// 1-indexed, counting the header row.
		out.WriteString(heading(1, fmt.Sprintf("Rows %d-%d", i+2, end+1)))
		out.WriteString("\n")
		for _, row := range dataRows[i:end] {
			for j, cell := range row {
				if j > 0 {
					out.WriteString(", ")
				}
				if j < len(headers) {
					out.WriteString(headers[j] + ": " + cell)
				} else {
					out.WriteString(cell)
				}
			}
			out.WriteString("\n")
		}
	}
	return out.String(), nil
}
