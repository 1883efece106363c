package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"fliptotp/internal/domain/ports"
)

// CharmLogger реализует ports.Logger поверх charmbracelet/log.
type CharmLogger struct {
	logger *log.Logger
}

// NewCharmLogger создаёт логгер, пишущий в stderr с заданным префиксом.
func NewCharmLogger(prefix string) *CharmLogger {
	return NewCharmLoggerTo(os.Stderr, prefix)
}

// NewCharmLoggerTo создаёт логгер с произвольным приёмником.
func NewCharmLoggerTo(w io.Writer, prefix string) *CharmLogger {
	l := log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
		Level:           log.InfoLevel,
	})
	return &CharmLogger{logger: l}
}

// SetMode задаёт уровень по режиму: dev (debug), prod (info), none (только fatal).
// Неизвестный режим - debug с предупреждением.
func (l *CharmLogger) SetMode(mode string) {
	switch strings.ToLower(mode) {
	case "", "dev", "debug":
		l.logger.SetLevel(log.DebugLevel)
	case "prod", "info":
		l.logger.SetLevel(log.InfoLevel)
	case "none":
		l.logger.SetLevel(log.FatalLevel)
	default:
		l.logger.Warnf("Неизвестный режим логирования %q, используется debug", mode)
		l.logger.SetLevel(log.DebugLevel)
	}
}

func (l *CharmLogger) Debug(msg string, args ...interface{}) { l.logger.Debugf(msg, args...) }

func (l *CharmLogger) Info(msg string, args ...interface{}) { l.logger.Infof(msg, args...) }

func (l *CharmLogger) Warn(msg string, args ...interface{}) { l.logger.Warnf(msg, args...) }

func (l *CharmLogger) Error(msg string, args ...interface{}) { l.logger.Errorf(msg, args...) }

func (l *CharmLogger) Fatal(msg string, args ...interface{}) { l.logger.Fatalf(msg, args...) }

func (l *CharmLogger) Printf(format string, args ...interface{}) { l.logger.Printf(format, args...) }

// Func адаптирует логгер к колбэку Logger func(string) пакетов pkg/*.
// Сообщения пишутся с уровнем debug.
func Func(l ports.Logger) func(string) {
	if l == nil {
		return nil
	}
	return func(msg string) { l.Debug("%s", msg) }
}

// Discard - логгер, который ничего не выводит (для тестов).
type Discard struct{}

func (Discard) Debug(string, ...interface{})  {}
func (Discard) Info(string, ...interface{})   {}
func (Discard) Warn(string, ...interface{})   {}
func (Discard) Error(string, ...interface{})  {}
func (Discard) Printf(string, ...interface{}) {}

func (Discard) Fatal(msg string, args ...interface{}) {
	panic(fmt.Sprintf(msg, args...))
}

var (
	_ ports.Logger = (*CharmLogger)(nil)
	_ ports.Logger = Discard{}
)
