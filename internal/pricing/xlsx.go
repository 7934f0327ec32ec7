package pricing

import (
	"fmt"

	"github.com/tealeg/xlsx/v2"
)

// ReadXLSX returns the rows of the first sheet of a workbook as strings.
func ReadXLSX(data []byte) ([][]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			if c == nil {
				continue
			}
			cells[j] = c.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
