package flipper

import (
	"regexp"
	"strings"
)

// Matcher определяет условие завершения чтения из порта.
type Matcher interface {
	// Match сообщает, содержит ли накопленный текст искомый маркер.
	Match(text string) bool
	// Pattern возвращает маркер в виде регулярного выражения.
	Pattern() string
}

// Literal - точное совпадение подстроки.
type Literal string

func (l Literal) Match(text string) bool { return strings.Contains(text, string(l)) }

func (l Literal) Pattern() string { return regexp.QuoteMeta(string(l)) }

// Pattern - совпадение по регулярному выражению.
type Pattern struct {
	re *regexp.Regexp
}

// NewPattern компилирует выражение; некорректное выражение - ошибка программиста.
func NewPattern(expr string) Pattern {
	return Pattern{re: regexp.MustCompile(expr)}
}

// PatternOf оборачивает уже скомпилированное выражение.
func PatternOf(re *regexp.Regexp) Pattern {
	return Pattern{re: re}
}

func (p Pattern) Match(text string) bool { return p.re.MatchString(text) }

func (p Pattern) Pattern() string { return p.re.String() }

// composite строит выражение "конец команды | запрос PIN | отмена пользователем".
func composite(end Matcher, m Markers) Pattern {
	expr := "(?i)(" + end.Pattern() + ")|(" + regexp.QuoteMeta(m.AskForPin) + ")|(" +
		regexp.QuoteMeta(m.CancelledByUser) + ")"
	return NewPattern(expr)
}

// stripFirst удаляет первое вхождение маркера из текста.
func stripFirst(text string, end Matcher) string {
	var re *regexp.Regexp
	switch e := end.(type) {
	case Literal:
		return strings.Replace(text, string(e), "", 1)
	case Pattern:
		re = e.re
	default:
		var err error
		if re, err = regexp.Compile(end.Pattern()); err != nil {
			return text
		}
	}
	if loc := re.FindStringIndex(text); loc != nil {
		return text[:loc[0]] + text[loc[1]:]
	}
	return text
}
