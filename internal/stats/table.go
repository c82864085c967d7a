package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// formatTable lays headers and rows out in columns as wide as their widest
// cell, measured in terminal cells. Short rows get empty trailing cells.
func formatTable(headers []string, rows [][]string, rightAlignCols map[int]bool) []string {
	all := make([][]string, 0, len(rows)+1)
	if len(headers) > 0 {
		all = append(all, headers)
	}
	all = append(all, rows...)

	var widths []int
	for _, row := range all {
		for i, cell := range row {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	if len(widths) == 0 {
		return nil
	}

	lines := make([]string, len(all))
	cells := make([]string, len(widths))
	for n, row := range all {
		for i, w := range widths {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			if rightAlignCols[i] {
				cells[i] = runewidth.FillLeft(cell, w)
			} else {
				cells[i] = runewidth.FillRight(cell, w)
			}
		}
		lines[n] = strings.Join(cells, " ")
	}
	return lines
}
