package flipper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ConnectionState - состояние менеджера соединения.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateVerifying
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateVerifying:
		return "verifying"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// connectionManager владеет не более чем одним открытым транспортом.
type connectionManager struct {
	locator          *Locator
	open             Opener
	baudRate         int
	poll             time.Duration
	handshakeTimeout time.Duration
	retryDelay       time.Duration
	markers          Markers
	events           *emitter
	logger           func(string)

	gate *semaphore.Weighted

	mu        sync.Mutex
	transport *Transport
	state     ConnectionState
}

func (m *connectionManager) log(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger(fmt.Sprintf(format, args...))
	}
}

func (m *connectionManager) current() *Transport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport
}

func (m *connectionManager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *connectionManager) setState(s ConnectionState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// acquire возвращает открытый транспорт, при необходимости подключаясь.
// Подключение выполняет только один вызывающий, остальные ждут на gate.
func (m *connectionManager) acquire(ctx context.Context) (*Transport, error) {
	if t := m.current(); t != nil {
		return t, nil
	}
	if err := m.gate.Acquire(ctx, 1); err != nil {
		return nil, cancelled(err)
	}
	defer m.gate.Release(1)

	// Пока ждали, соединение мог установить другой вызывающий
	if t := m.current(); t != nil {
		return t, nil
	}
	return m.connectLocked(ctx)
}

func (m *connectionManager) connectLocked(ctx context.Context) (*Transport, error) {
	for {
		if err := ctx.Err(); err != nil {
			m.setState(StateDisconnected)
			return nil, cancelled(err)
		}

		m.setState(StateConnecting)
		m.events.emit(Event{Type: EventConnecting})

		device, err := m.locator.WaitForDevice(ctx)
		if err != nil {
			m.setState(StateDisconnected)
			return nil, err
		}

		t, err := OpenTransport(m.open, device.Path, m.baudRate, m.poll)
		if err != nil {
			if err := m.retry(ctx, device.Path, err); err != nil {
				return nil, err
			}
			continue
		}

		m.setState(StateVerifying)
		if _, err := t.ReadUntil(ctx, Literal(m.markers.EndOfCommand), m.handshakeTimeout); err != nil {
			_ = t.Close()
			if errors.Is(err, ErrCancelled) {
				m.setState(StateDisconnected)
				return nil, err
			}
			if err := m.retry(ctx, device.Path, fmt.Errorf("консоль не ответила: %w", err)); err != nil {
				return nil, err
			}
			continue
		}

		m.mu.Lock()
		m.transport = t
		m.state = StateConnected
		m.mu.Unlock()
		t.setOnClose(func(cause error) { m.handleClosed(t, cause) })

		m.log("Подключено к %s", device.Path)
		m.events.emit(Event{Type: EventConnected, Port: device.Path})
		return t, nil
	}
}

// retry сообщает об ошибке подключения и выжидает паузу перед следующей попыткой.
func (m *connectionManager) retry(ctx context.Context, path string, cause error) error {
	m.log("Ошибка подключения к %s: %v", path, cause)
	m.events.emit(Event{Type: EventConnectionError, Port: path, Message: cause.Error()})
	if err := sleepContext(ctx, m.retryDelay); err != nil {
		m.setState(StateDisconnected)
		return err
	}
	return nil
}

// handleClosed вызывается транспортом при закрытии (Close или отключение устройства).
func (m *connectionManager) handleClosed(t *Transport, cause error) {
	m.mu.Lock()
	if m.transport != t {
		m.mu.Unlock()
		return
	}
	m.transport = nil
	m.state = StateDisconnected
	m.mu.Unlock()

	ev := Event{Type: EventClosed, Port: t.Path()}
	if cause != nil {
		ev.Message = cause.Error()
		m.log("Устройство отключено (%s): %v", t.Path(), cause)
	}
	m.events.emit(ev)
}

// close закрывает удерживаемый транспорт. Событие Closed отправляется в любом случае.
func (m *connectionManager) close() error {
	t := m.current()
	if t == nil {
		m.events.emit(Event{Type: EventClosed})
		return nil
	}
	return t.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return cancelled(ctx.Err())
	case <-timer.C:
		return nil
	}
}
