package flipper

import (
	"regexp"
	"strings"
)

// ANSI CSI-последовательности и стирание символа "\b \b"
var controlSequences = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]|\x08 \x08`)

// sanitize приводит сырой ответ консоли к чистому тексту согласно флагам запроса.
// Переводы строк всегда нормализуются к "\n".
func sanitize(raw string, req Request, end Matcher) string {
	text := raw
	if req.TrimEndMarker {
		text = stripFirst(text, end)
	}
	if req.TrimControlSequences {
		text = controlSequences.ReplaceAllString(text, "")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if req.TrimBlankLines && strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
