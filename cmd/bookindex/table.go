package main

import (
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/net/html"
)

// maxCellWidth truncates long cells such as teasers.
const maxCellWidth = 60

// writeTable prints rows in columns sized by display width, so CJK titles
// and the » separator line up.
func writeTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	cell := func(s string) string {
		return runewidth.Truncate(s, maxCellWidth, "…")
	}
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := range headers {
			if i < len(row) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell(row[i])))
			}
		}
	}

	var sb strings.Builder
	line := func(cells []string) {
		for i := range headers {
			var c string
			if i < len(cells) {
				c = cell(cells[i])
			}
			if i == len(headers)-1 {
				sb.WriteString(c)
				break
			}
			sb.WriteString(runewidth.FillRight(c, widths[i]))
			sb.WriteString("  ")
		}
		sb.WriteByte('\n')
	}
	line(headers)
	for _, row := range rows {
		line(row)
	}
	io.WriteString(w, sb.String())
}

// stripTags returns the text of an HTML fragment.
func stripTags(fragment string) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}
