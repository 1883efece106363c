// Package asciitable converts bordered ASCII tables printed by text consoles into ordered
// key/value rows and renders rows back into the same format.
//
// A table looks like:
//
//	+----------+-----------------------------+
//	| Property | Value                       |
//	+----------+-----------------------------+
//	| Name     | Example                     |
//	+----------+-----------------------------+
//	| Features | Type <Enter> key at the end |
//	|          | Type slower                 |
//	+----------+-----------------------------+
//
// In multiline mode (the default) every block of lines between two border lines forms one
// logical row, and fragments of the same column are joined with the line separator. In
// single-line mode every physical line is a row. The first row is the header.
package asciitable

import (
	"fmt"
	"strings"
)

// Row - одна строка таблицы: заголовки колонок и значения в исходном порядке.
type Row struct {
	Keys   []string
	Values []string
}

// Get возвращает значение колонки по заголовку.
func (r Row) Get(key string) (string, bool) {
	for i, k := range r.Keys {
		if k == key && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return "", false
}

// Map возвращает строку как map (порядок колонок теряется).
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.Keys))
	for i, k := range r.Keys {
		if i < len(r.Values) {
			m[k] = r.Values[i]
		}
	}
	return m
}

type options struct {
	multiline       bool
	lineSeparator   string
	columnSeparator string
	logger          func(string)
}

// Option настраивает разбор.
type Option func(*options)

// WithMultiline включает объединение строк между границами в одну логическую строку.
func WithMultiline(enabled bool) Option {
	return func(o *options) { o.multiline = enabled }
}

// WithMultilineSeparator задаёт разделитель фрагментов многострочной ячейки.
func WithMultilineSeparator(sep string) Option {
	return func(o *options) { o.lineSeparator = sep }
}

// WithColumnSeparator задаёт разделитель колонок.
func WithColumnSeparator(sep string) Option {
	return func(o *options) {
		if sep != "" {
			o.columnSeparator = sep
		}
	}
}

// WithLogger задаёт функцию для диагностики отброшенных строк.
func WithLogger(logger func(string)) Option {
	return func(o *options) { o.logger = logger }
}

func (o options) log(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger(fmt.Sprintf(format, args...))
	}
}

func defaultOptions() options {
	return options{multiline: true, lineSeparator: "\n", columnSeparator: "|"}
}

// Parse разбирает таблицу. Строки, ширина которых не совпадает с заголовком, отбрасываются.
func Parse(input string, opts ...Option) []Row {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	var (
		logical []logicalRow
		pending [][]string
	)
	flush := func() {
		if len(pending) > 0 {
			logical = append(logical, merge(pending, o.lineSeparator))
			pending = nil
		}
	}

	for _, line := range strings.Split(strings.ReplaceAll(input, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isBorder(trimmed) {
			flush()
			continue
		}
		if !strings.Contains(trimmed, o.columnSeparator) {
			// Текст вне таблицы
			continue
		}
		cells := splitCells(trimmed, o.columnSeparator)
		if o.multiline {
			pending = append(pending, cells)
		} else {
			logical = append(logical, logicalRow{cells: cells})
		}
	}
	flush()

	if len(logical) == 0 {
		return nil
	}

	if logical[0].ragged {
		o.log("asciitable: header lines have different column counts: %q", logical[0].cells)
		return nil
	}
	header := logical[0].cells
	rows := make([]Row, 0, len(logical)-1)
	for i, row := range logical[1:] {
		cells := row.cells
		if row.ragged {
			o.log("asciitable: row %d lines have different column counts: %q", i+1, cells)
			continue
		}
		if len(cells) != len(header) {
			o.log("asciitable: row %d has %d columns, header has %d: %q", i+1, len(cells), len(header), cells)
			continue
		}
		keys := make([]string, len(header))
		copy(keys, header)
		rows = append(rows, Row{Keys: keys, Values: cells})
	}
	return rows
}

// isBorder - строка только из '+' и '-' (хотя бы один '-').
func isBorder(line string) bool {
	if !strings.Contains(line, "-") {
		return false
	}
	for _, r := range line {
		if r != '+' && r != '-' && r != ' ' && r != '\t' {
			return false
		}
	}
	return true
}

func splitCells(line, sep string) []string {
	line = strings.TrimPrefix(line, sep)
	line = strings.TrimSuffix(line, sep)
	parts := strings.Split(line, sep)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// logicalRow - ячейки одной логической строки. ragged - физические строки
// блока разной ширины (рассинхронизация), такая строка отбрасывается.
type logicalRow struct {
	cells  []string
	ragged bool
}

// merge склеивает фрагменты одной колонки из соседних физических строк.
// Пустые фрагменты пропускаются.
func merge(fragments [][]string, sep string) logicalRow {
	width := len(fragments[0])
	ragged := false
	for _, f := range fragments[1:] {
		if len(f) != width {
			ragged = true
			width = max(width, len(f))
		}
	}
	cells := make([]string, width)
	for col := 0; col < width; col++ {
		var parts []string
		for _, f := range fragments {
			if col < len(f) && f[col] != "" {
				parts = append(parts, f[col])
			}
		}
		cells[col] = strings.TrimSpace(strings.Join(parts, sep))
	}
	return logicalRow{cells: cells, ragged: ragged}
}
