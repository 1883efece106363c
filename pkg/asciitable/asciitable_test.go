package asciitable

import (
	"reflect"
	"strings"
	"testing"
)

const listOutput = "+----+---------+------+--------+----+-----+\r\n" +
	"| #  | Name    | Type | Algo   | Ln | Dur |\r\n" +
	"+----+---------+------+--------+----+-----+\r\n" +
	"| 1  | Google  | TOTP | SHA1   | 6  | 30  |\r\n" +
	"| 2  | Steam   | TOTP | Steam  | 5  | 30  |\r\n" +
	"+----+---------+------+--------+----+-----+\r\n"

func TestParseSingleLine(t *testing.T) {
	rows := Parse(listOutput, WithMultiline(false))
	if len(rows) != 2 {
		t.Fatalf("ожидалось 2 строки, получено %d", len(rows))
	}
	wantKeys := []string{"#", "Name", "Type", "Algo", "Ln", "Dur"}
	if !reflect.DeepEqual(rows[0].Keys, wantKeys) {
		t.Errorf("заголовок: %v", rows[0].Keys)
	}
	if v, _ := rows[1].Get("Name"); v != "Steam" {
		t.Errorf("Name = %q", v)
	}
	if v, ok := rows[0].Get("Missing"); ok || v != "" {
		t.Errorf("неизвестная колонка вернула %q", v)
	}
	if m := rows[0].Map(); m["Algo"] != "SHA1" || m["Ln"] != "6" {
		t.Errorf("Map = %v", m)
	}
}

func TestParseMultilineCell(t *testing.T) {
	input := "+-----+-------+\n" +
		"| Key | Value |\n" +
		"+-----+-------+\n" +
		"| a   | one   |\n" +
		"|     | two   |\n" +
		"+-----+-------+\n"

	tests := []struct {
		name string
		sep  string
		want string
	}{
		{name: "Default separator", sep: "", want: "one\ntwo"},
		{name: "Custom separator", sep: ", ", want: "one, two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []Option{}
			if tt.sep != "" {
				opts = append(opts, WithMultilineSeparator(tt.sep))
			}
			rows := Parse(input, opts...)
			if len(rows) != 1 {
				t.Fatalf("ожидалась 1 строка, получено %d", len(rows))
			}
			if v, _ := rows[0].Get("Key"); v != "a" {
				t.Errorf("Key = %q", v)
			}
			if v, _ := rows[0].Get("Value"); v != tt.want {
				t.Errorf("Value = %q, ожидалось %q", v, tt.want)
			}
		})
	}
}

func TestParseIdempotent(t *testing.T) {
	header := []string{"Property", "Value"}
	values := [][]string{
		{"Name", "Example"},
		{"Automation features", "Type <Enter> key at the end\nType slower"},
	}
	first := Parse(Render(header, values))
	second := Parse(Render(header, Values(first)))
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("повторный разбор отличается:\n%v\n%v", first, second)
	}
	if !reflect.DeepEqual(Values(first), values) {
		t.Errorf("значения искажены: %q", Values(first))
	}
}

func TestParseDropsMismatchedRows(t *testing.T) {
	input := "+---+---+\n| A | B |\n+---+---+\n| 1 | 2 |\n| 3 |\n| 4 | 5 | 6 |\n+---+---+\n"
	var logged []string
	rows := Parse(input, WithMultiline(false), WithLogger(func(msg string) { logged = append(logged, msg) }))
	if len(rows) != 1 {
		t.Fatalf("ожидалась 1 строка, получено %d", len(rows))
	}
	if len(logged) != 2 {
		t.Errorf("ожидалось 2 диагностических сообщения, получено %d: %v", len(logged), logged)
	}
}

func TestParseDropsRaggedMultilineRows(t *testing.T) {
	input := "+---+---+\n| A | B |\n+---+---+\n| 1 | 2 |\n| 3 |\n+---+---+\n| x | y |\n|   | z |\n+---+---+\n"
	var logged []string
	rows := Parse(input, WithLogger(func(msg string) { logged = append(logged, msg) }))
	if len(rows) != 1 {
		t.Fatalf("ожидалась 1 строка, получено %d: %v", len(rows), rows)
	}
	if got := rows[0].Values; got[0] != "x" || got[1] != "y\nz" {
		t.Errorf("сохранена не та строка: %q", got)
	}
	if len(logged) != 1 || !strings.Contains(logged[0], "different column counts") {
		t.Errorf("диагностика: %v", logged)
	}

	header := "+---+---+\n| A | B |\n| C |\n+---+---+\n| 1 | 2 |\n+---+---+\n"
	if rows := Parse(header); rows != nil {
		t.Errorf("таблица с рваным заголовком: %v", rows)
	}
}

func TestParseIgnoresSurroundingText(t *testing.T) {
	input := "totp list\r\n" + listOutput + "\r\n>: "
	rows := Parse(input, WithMultiline(false))
	if len(rows) != 2 {
		t.Fatalf("ожидалось 2 строки, получено %d", len(rows))
	}
}

func TestParseEmpty(t *testing.T) {
	if rows := Parse(""); rows != nil {
		t.Errorf("ожидался nil, получено %v", rows)
	}
	if rows := Parse("+--+\n+--+\n"); rows != nil {
		t.Errorf("таблица из одних границ: %v", rows)
	}
}

func TestRenderMultiline(t *testing.T) {
	out := Render([]string{"A", "B"}, [][]string{{"x", "1\n22"}})
	lines := strings.Split(strings.TrimRight(out, "\r\n"), "\r\n")
	// граница, заголовок, граница, две строки ячейки, граница
	if len(lines) != 6 {
		t.Fatalf("ожидалось 6 строк, получено %d:\n%s", len(lines), out)
	}
	if lines[3] != "| x | 1  |" || lines[4] != "|   | 22 |" {
		t.Errorf("неожиданная разметка:\n%s", out)
	}
}
