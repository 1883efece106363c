// Package importer читает токены из внешних форматов.
package importer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"

	"fliptotp/internal/domain/ports"
	"fliptotp/pkg/flipper"
)

// Importer преобразует содержимое файла в записи токенов.
// Ошибочные записи пропускаются и возвращаются во втором значении.
type Importer interface {
	Import(r io.Reader) ([]flipper.TokenRecord, []error)
}

// LineError - ошибка разбора конкретной строки.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("строка %d: %v", e.Line, e.Err) }

func (e *LineError) Unwrap() error { return e.Err }

// URIList импортирует текстовый файл с одной otpauth:// ссылкой на строку.
type URIList struct {
	// Charset - метка кодировки входа ("windows-1251" и т.п.).
	// Пустое значение: определение по BOM, иначе UTF-8 или windows-1252.
	Charset string
	Logger  ports.Logger
}

func (l URIList) Import(r io.Reader) ([]flipper.TokenRecord, []error) {
	decoded, err := l.decode(r)
	if err != nil {
		return nil, []error{err}
	}

	var (
		tokens []flipper.TokenRecord
		errs   []error
	)
	scanner := bufio.NewScanner(decoded)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if lineNumber == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			l.debug("Пропущена пустая строка #%d", lineNumber)
			continue
		}

		t, err := ParseURI(line)
		if err != nil {
			l.warn("Ошибка разбора строки #%d: %v", lineNumber, err)
			errs = append(errs, &LineError{Line: lineNumber, Err: err})
			continue
		}
		tokens = append(tokens, t)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("ошибка чтения: %w", err))
	}
	return tokens, errs
}

func (l URIList) decode(r io.Reader) (io.Reader, error) {
	if l.Charset != "" {
		decoded, err := charset.NewReaderLabel(l.Charset, r)
		if err != nil {
			return nil, fmt.Errorf("кодировка %q: %w", l.Charset, err)
		}
		return decoded, nil
	}
	decoded, err := charset.NewReader(r, "text/plain")
	if err != nil {
		return nil, fmt.Errorf("не удалось определить кодировку: %w", err)
	}
	return decoded, nil
}

func (l URIList) debug(format string, args ...interface{}) {
	if l.Logger != nil {
		l.Logger.Debug(format, args...)
	}
}

func (l URIList) warn(format string, args ...interface{}) {
	if l.Logger != nil {
		l.Logger.Warn(format, args...)
	}
}

var _ Importer = URIList{}
