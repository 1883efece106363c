package flipper

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakePort - имитация последовательного порта. На каждую строку, завершённую "\r",
// вызывается respond; его результат становится доступен для чтения.
type fakePort struct {
	mu          sync.Mutex
	out         []byte
	in          []byte
	writes      []string
	closed      bool
	readErr     error
	readTimeout time.Duration
	maxWrite    int
	respond     func(line string) string
	notify      chan struct{}
}

func newFakePort(greeting string, respond func(line string) string) *fakePort {
	return &fakePort{
		out:         []byte(greeting),
		readTimeout: 5 * time.Millisecond,
		respond:     respond,
		notify:      make(chan struct{}, 1),
	}
}

func (p *fakePort) push(s string) {
	p.mu.Lock()
	p.out = append(p.out, s...)
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *fakePort) unplug(err error) {
	p.mu.Lock()
	p.readErr = err
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	deadline := time.Now().Add(p.readTimeout)
	p.mu.Unlock()
	for {
		p.mu.Lock()
		switch {
		case p.closed:
			p.mu.Unlock()
			return 0, os.ErrClosed
		case p.readErr != nil:
			err := p.readErr
			p.mu.Unlock()
			return 0, err
		case len(p.out) > 0:
			n := copy(b, p.out)
			p.out = p.out[n:]
			p.mu.Unlock()
			return n, nil
		}
		p.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-p.notify:
			timer.Stop()
		case <-timer.C:
			return 0, nil
		}
	}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, os.ErrClosed
	}
	n := len(b)
	if p.maxWrite > 0 && n > p.maxWrite {
		n = p.maxWrite
	}
	p.writes = append(p.writes, string(b[:n]))
	p.in = append(p.in, b[:n]...)
	var lines []string
	for {
		i := bytes.IndexByte(p.in, '\r')
		if i < 0 {
			break
		}
		lines = append(lines, string(p.in[:i]))
		p.in = p.in[i+1:]
	}
	respond := p.respond
	p.mu.Unlock()

	for _, line := range lines {
		if respond == nil {
			continue
		}
		if reply := respond(line); reply != "" {
			p.push(reply)
		}
	}
	return n, nil
}

func (p *fakePort) Drain() error { return nil }

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = nil
	return nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = t
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePort) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// written возвращает все записанные в порт данные одной строкой.
func (p *fakePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.writes, "")
}

// echoed - ответ консоли: эхо команды, тело и приглашение.
func echoed(line, body string) string {
	return line + "\r\n" + body + "\r\n" + DefaultMarkers.EndOfCommand
}

// scripted отвечает телами из списка по очереди; последнее повторяется.
func scripted(bodies ...string) func(string) string {
	var (
		mu sync.Mutex
		i  int
	)
	return func(line string) string {
		mu.Lock()
		defer mu.Unlock()
		body := bodies[i]
		if i < len(bodies)-1 {
			i++
		}
		return echoed(line, body)
	}
}

var testDevice = DiscoveredPort{Path: "/dev/ttyACM0", VendorID: FlipperVendorID, ProductID: FlipperProductID}

func testConfig(opener Opener) Config {
	return Config{
		PollInterval:       5 * time.Millisecond,
		DevicePollInterval: 5 * time.Millisecond,
		HandshakeTimeout:   100 * time.Millisecond,
		EchoTimeout:        200 * time.Millisecond,
		CommandTimeout:     500 * time.Millisecond,
		RetryDelay:         5 * time.Millisecond,
		Opener:             opener,
		Enumerator: func() ([]DiscoveredPort, error) {
			return []DiscoveredPort{testDevice}, nil
		},
	}
}

// newTestClient создаёт клиента, который всегда открывает один и тот же порт.
func newTestClient(t *testing.T, port *fakePort) *flipperClient {
	t.Helper()
	c := newClient(testConfig(func(string, int) (Port, error) { return port, nil }))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// eventLog собирает события клиента.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(t EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Type
	}
	return out
}
