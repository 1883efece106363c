package flipper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultPollInterval - период опроса порта, когда данных нет.
const DefaultPollInterval = 100 * time.Millisecond

// Port - подмножество serial.Port, которое использует транспорт.
type Port interface {
	io.ReadWriteCloser
	Drain() error
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
}

// Opener открывает порт по пути с заданной скоростью.
type Opener func(path string, baudRate int) (Port, error)

// SerialOpener открывает реальный последовательный порт (8N1).
func SerialOpener(path string, baudRate int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия порта %s: %w", path, err)
	}
	return port, nil
}

var readBufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Transport - тонкая обёртка над открытым портом: запись, сброс, чтение до маркера.
type Transport struct {
	port Port
	path string
	poll time.Duration

	mu      sync.Mutex
	closed  bool
	onClose func(cause error)
}

// OpenTransport открывает порт и настраивает период опроса.
func OpenTransport(open Opener, path string, baudRate int, poll time.Duration) (*Transport, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	port, err := open(path, baudRate)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(poll); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("ошибка установки таймаута чтения: %w", err)
	}
	return &Transport{port: port, path: path, poll: poll}, nil
}

// Path возвращает путь к порту.
func (t *Transport) Path() string { return t.path }

// Closed сообщает, закрыт ли транспорт.
func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// setOnClose регистрирует обработчик закрытия (отключение устройства или Close).
func (t *Transport) setOnClose(fn func(cause error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClose = fn
}

// Close закрывает порт. Повторный вызов ничего не делает.
func (t *Transport) Close() error {
	return t.shutdown(nil)
}

func (t *Transport) shutdown(cause error) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	hook := t.onClose
	t.mu.Unlock()

	err := t.port.Close()
	if hook != nil {
		hook(cause)
	}
	return err
}

// Flush отбрасывает непрочитанные входные данные.
func (t *Transport) Flush() error {
	if t.Closed() {
		return ErrNotConnected
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return t.fail(err)
	}
	return nil
}

// Drain ждёт, пока записанные данные уйдут в порт.
func (t *Transport) Drain() error {
	if t.Closed() {
		return ErrNotConnected
	}
	if err := t.port.Drain(); err != nil {
		return t.fail(err)
	}
	return nil
}

// Write пишет данные целиком.
func (t *Transport) Write(data []byte) error {
	if t.Closed() {
		return ErrNotConnected
	}
	for len(data) > 0 {
		n, err := t.port.Write(data)
		if err != nil {
			return t.fail(err)
		}
		data = data[n:]
	}
	return nil
}

// WriteAndDrain пишет строку в ASCII и дожидается отправки.
func (t *Transport) WriteAndDrain(text string) error {
	if err := t.Write([]byte(text)); err != nil {
		return err
	}
	return t.Drain()
}

// ReadUntil читает побайтно, пока накопленный текст не удовлетворит m.
// timeout <= 0 - ждать без ограничения (только до отмены ctx).
// При отмене порт остаётся открытым.
func (t *Transport) ReadUntil(ctx context.Context, m Matcher, timeout time.Duration) (string, error) {
	buf := readBufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		readBufferPool.Put(buf)
	}()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	one := make([]byte, 1)
	for {
		if err := ctx.Err(); err != nil {
			return "", cancelled(err)
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return "", fmt.Errorf("%w: %s waiting for %q, received %q", ErrTimeout, timeout, m.Pattern(), buf.String())
		}
		if t.Closed() {
			return "", ErrNotConnected
		}

		n, err := t.port.Read(one)
		if err != nil {
			return "", t.fail(err)
		}
		if n == 0 {
			// Таймаут чтения порта = период опроса
			continue
		}

		buf.WriteByte(one[0])
		if text := buf.String(); m.Match(text) {
			return text, nil
		}
	}
}

// fail закрывает транспорт, если ошибка означает отключение устройства.
func (t *Transport) fail(err error) error {
	if !isDisconnection(err) {
		return err
	}
	_ = t.shutdown(err)
	return fmt.Errorf("%w: %v", ErrNotConnected, err)
}

// isDisconnection определяет, что устройство отключено или порт закрыт.
func isDisconnection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
		return true
	}

	var code serial.PortErrorCode
	var found bool
	var portErrPtr *serial.PortError
	var portErr serial.PortError
	if errors.As(err, &portErrPtr) {
		code, found = portErrPtr.Code(), true
	} else if errors.As(err, &portErr) {
		code, found = portErr.Code(), true
	}
	if found {
		switch code {
		case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
			return true
		default:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "device not configured") ||
		strings.Contains(msg, "input/output error") ||
		strings.Contains(msg, "no such device") ||
		strings.Contains(msg, "device not found") ||
		strings.Contains(msg, "broken pipe")
}
