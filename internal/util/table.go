package util

import (
	"fmt"
	"strings"
)

// Column describes one table column: the header text and the key to pull
// from each row map.
type Column struct {
	Title string
	Field string
}

// PrintTable writes rows as an aligned text table, sizing each column to
// its widest cell. Cell values may contain ANSI color codes.
func PrintTable(columns []Column, rows []map[string]interface{}) {
	widths := fitWidths(columns, rows)

	var line []string
	for i, col := range columns {
		line = append(line, pad(col.Title, widths[i]))
	}
	fmt.Println(strings.Join(line, "  "))

	line = line[:0]
	for i := range columns {
		line = append(line, strings.Repeat("-", widths[i]))
	}
	fmt.Println(strings.Join(line, "  "))

	for _, row := range rows {
		line = line[:0]
		for i, col := range columns {
			cell := ""
			if v, ok := row[col.Field]; ok {
				cell = fmt.Sprintf("%v", v)
			}
			line = append(line, pad(cell, widths[i]))
		}
		fmt.Println(strings.Join(line, "  "))
	}
}

// fitWidths returns the display width of each column: the widest of the
// header and every cell value in that column.
func fitWidths(columns []Column, rows []map[string]interface{}) []int {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = displayWidth(col.Title)
		for _, row := range rows {
			if v, ok := row[col.Field]; ok {
				if w := displayWidth(fmt.Sprintf("%v", v)); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}
	return widths
}

// stripANSI removes escape sequences so colored cells measure correctly.
func stripANSI(s string) string {
	for {
		start := strings.Index(s, "\033[")
		if start == -1 {
			return s
		}
		end := strings.Index(s[start:], "m")
		if end == -1 {
			return s
		}
		s = s[:start] + s[start+end+1:]
	}
}

func displayWidth(s string) int {
	return len([]rune(stripANSI(s)))
}

func pad(s string, width int) string {
	if w := displayWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
