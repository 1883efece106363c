package flipper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultEchoTimeout      = time.Second
	DefaultCommandTimeout   = 5 * time.Second
	DefaultHandshakeTimeout = time.Second
	DefaultRetryDelay       = time.Second
)

// Request описывает одну команду консоли. Значение неизменяемо после передачи.
// Text передаётся без завершающего "\r" - его добавляет исполнитель.
type Request struct {
	Text                 string
	EndMarker            Matcher // nil - стандартное приглашение консоли
	SkipEchoLine         bool
	TrimEndMarker        bool
	TrimControlSequences bool
	TrimBlankLines       bool

	// Sensitive - Text содержит секрет: в события и журнал попадает заглушка.
	Sensitive bool
}

const redacted = "<secret>"

// display - текст команды для событий и журнала.
func (r Request) display() string {
	if r.Sensitive {
		return redacted
	}
	return r.Text
}

// DefaultRequest - команда с полной очисткой ответа и стандартным приглашением.
func DefaultRequest(text string) Request {
	return Request{
		Text:                 text,
		EndMarker:            Literal(DefaultMarkers.EndOfCommand),
		SkipEchoLine:         true,
		TrimEndMarker:        true,
		TrimControlSequences: true,
		TrimBlankLines:       true,
	}
}

// Response - результат команды.
// Cancelled означает, что пользователь отменил операцию на самом устройстве.
type Response struct {
	Raw       string
	Text      string
	Cancelled bool
}

// executor выполняет команды строго по одной.
type executor struct {
	conn           *connectionManager
	gate           *semaphore.Weighted
	markers        Markers
	echoTimeout    time.Duration
	commandTimeout time.Duration
	retryDelay     time.Duration
	events         *emitter
	logger         func(string)
}

func (e *executor) log(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger(fmt.Sprintf(format, args...))
	}
}

// Execute выполняет одну команду. Повтор при "command not found" идёт вне gate,
// чтобы ожидание приложения не удерживало очередь команд.
func (e *executor) Execute(ctx context.Context, req Request) (Response, error) {
	return e.run(ctx, req, func(ctx context.Context, fn func() error) error {
		if err := e.gate.Acquire(ctx, 1); err != nil {
			return cancelled(err)
		}
		defer e.gate.Release(1)
		return fn()
	})
}

// Session удерживает gate на всё время fn: между подсказкой устройства и ответом
// на неё не может вклиниться другая команда.
func (e *executor) Session(ctx context.Context, fn func(s *Session) error) error {
	if err := e.gate.Acquire(ctx, 1); err != nil {
		return cancelled(err)
	}
	defer e.gate.Release(1)
	return fn(&Session{exec: e})
}

// Session - последовательность команд под одним захватом очереди.
type Session struct {
	exec *executor
}

// Execute выполняет команду внутри сессии.
func (s *Session) Execute(ctx context.Context, req Request) (Response, error) {
	return s.exec.run(ctx, req, func(_ context.Context, fn func() error) error { return fn() })
}

type lockFunc func(ctx context.Context, fn func() error) error

func (e *executor) run(ctx context.Context, req Request, locked lockFunc) (Response, error) {
	id := uuid.NewString()
	e.events.emit(Event{Type: EventCommandExecuting, CommandID: id, Message: req.display()})

	resp, err := e.loop(ctx, req, locked)

	done := Event{Type: EventCommandExecuted, CommandID: id}
	if err != nil {
		done.Message = err.Error()
	}
	e.events.emit(done)
	return resp, err
}

func (e *executor) loop(ctx context.Context, req Request, locked lockFunc) (Response, error) {
	waitEmitted := false
	for {
		var (
			resp  Response
			found bool
		)
		err := locked(ctx, func() error {
			var err error
			resp, found, err = e.attempt(ctx, req)
			return err
		})
		if err != nil {
			return Response{}, err
		}
		if found {
			return resp, nil
		}

		// Приложение на устройстве ещё не запущено
		if !waitEmitted {
			waitEmitted = true
			e.log("Команда %q не распознана, ожидание приложения", req.display())
			e.events.emit(Event{Type: EventWaitForApp, Message: req.display()})
		}
		if err := sleepContext(ctx, e.retryDelay); err != nil {
			return Response{}, err
		}
	}
}

// attempt - один цикл запись/чтение/классификация. found=false - команда не найдена.
func (e *executor) attempt(ctx context.Context, req Request) (Response, bool, error) {
	t, err := e.conn.acquire(ctx)
	if err != nil {
		return Response{}, false, err
	}

	if err := t.Flush(); err != nil {
		return Response{}, false, err
	}
	if err := t.WriteAndDrain(req.Text + "\r"); err != nil {
		return Response{}, false, err
	}

	if req.SkipEchoLine {
		if _, err := t.ReadUntil(ctx, Literal(e.markers.EchoLine), e.echoTimeout); err != nil {
			return Response{}, false, err
		}
	}

	end := req.EndMarker
	if end == nil {
		end = Literal(e.markers.EndOfCommand)
	}
	terminal := composite(end, e.markers)

	raw, err := t.ReadUntil(ctx, terminal, e.commandTimeout)
	if err != nil {
		return Response{}, false, err
	}
	if strings.Contains(raw, e.markers.CommandNotFound) {
		return Response{}, false, nil
	}

	for strings.Contains(raw, e.markers.AskForPin) {
		e.events.emit(Event{Type: EventPinRequested, Message: req.display()})
		// Ждём человека без ограничения по времени
		if raw, err = t.ReadUntil(ctx, terminal, 0); err != nil {
			return Response{}, false, err
		}
	}

	if strings.Contains(raw, e.markers.CancelledByUser) {
		return Response{Raw: raw, Cancelled: true}, true, nil
	}
	return Response{Raw: raw, Text: sanitize(raw, req, end)}, true, nil
}
