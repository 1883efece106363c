package asciitable

import "strings"

// Render печатает заголовок и строки в формате, который понимает Parse.
// Значения с переводами строк выводятся многострочными ячейками,
// каждая логическая строка отделяется границей.
func Render(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	measure := func(cells []string) {
		for i := range widths {
			if i >= len(cells) {
				break
			}
			for _, part := range strings.Split(cells[i], "\n") {
				if len(part) > widths[i] {
					widths[i] = len(part)
				}
			}
		}
	}
	measure(header)
	for _, r := range rows {
		measure(r)
	}

	var b strings.Builder
	border := func() {
		b.WriteByte('+')
		for _, w := range widths {
			b.WriteString(strings.Repeat("-", w+2))
			b.WriteByte('+')
		}
		b.WriteString("\r\n")
	}
	line := func(cells []string) {
		height := 1
		split := make([][]string, len(widths))
		for i := range widths {
			if i < len(cells) {
				split[i] = strings.Split(cells[i], "\n")
			}
			if len(split[i]) > height {
				height = len(split[i])
			}
		}
		for h := 0; h < height; h++ {
			b.WriteByte('|')
			for i, w := range widths {
				part := ""
				if h < len(split[i]) {
					part = split[i][h]
				}
				b.WriteByte(' ')
				b.WriteString(part)
				b.WriteString(strings.Repeat(" ", w-len(part)))
				b.WriteString(" |")
			}
			b.WriteString("\r\n")
		}
	}

	border()
	line(header)
	border()
	for _, r := range rows {
		line(r)
		border()
	}
	return b.String()
}

// Values возвращает значения строк в порядке заголовка; удобно для повторного Render.
func Values(rows []Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r.Values...)
	}
	return out
}
