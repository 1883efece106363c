package flipper

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"
)

func openFake(t *testing.T, port *fakePort, poll time.Duration) *Transport {
	t.Helper()
	tr, err := OpenTransport(func(string, int) (Port, error) { return port, nil }, "/dev/fake", DefaultBaudRate, poll)
	if err != nil {
		t.Fatalf("OpenTransport: %v", err)
	}
	return tr
}

func TestReadUntil(t *testing.T) {
	t.Run("Literal", func(t *testing.T) {
		tr := openFake(t, newFakePort("hello\r\n>: tail", nil), 5*time.Millisecond)
		got, err := tr.ReadUntil(context.Background(), Literal(">: "), time.Second)
		if err != nil {
			t.Fatalf("ReadUntil: %v", err)
		}
		if got != "hello\r\n>: " {
			t.Errorf("получено %q", got)
		}
	})

	t.Run("Pattern", func(t *testing.T) {
		tr := openFake(t, newFakePort("index #12 done", nil), 5*time.Millisecond)
		got, err := tr.ReadUntil(context.Background(), NewPattern(`#\d+ `), time.Second)
		if err != nil {
			t.Fatalf("ReadUntil: %v", err)
		}
		if got != "index #12 " {
			t.Errorf("получено %q", got)
		}
	})
}

func TestReadUntilTimeout(t *testing.T) {
	port := newFakePort("noise without prompt", nil)
	tr := openFake(t, port, 10*time.Millisecond)

	start := time.Now()
	_, err := tr.ReadUntil(context.Background(), Literal(">: "), 100*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("ожидалась ErrTimeout, получено %v", err)
	}
	if elapsed < 100*time.Millisecond || elapsed > 250*time.Millisecond {
		t.Errorf("таймаут сработал через %s", elapsed)
	}
	if tr.Closed() {
		t.Error("транспорт не должен закрываться по таймауту")
	}
}

func TestReadUntilCancel(t *testing.T) {
	port := newFakePort("", nil)
	tr := openFake(t, port, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := tr.ReadUntil(ctx, Literal(">: "), 0)
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидалась отмена, получено %v", err)
	}
	if tr.Closed() || port.isClosed() {
		t.Error("отмена чтения не должна закрывать порт")
	}
}

func TestTransportDisconnect(t *testing.T) {
	port := newFakePort("", nil)
	tr := openFake(t, port, 5*time.Millisecond)

	var hooks atomic.Int32
	tr.setOnClose(func(cause error) {
		hooks.Add(1)
		if !errors.Is(cause, io.EOF) {
			t.Errorf("причина закрытия: %v", cause)
		}
	})

	port.unplug(io.EOF)
	_, err := tr.ReadUntil(context.Background(), Literal(">: "), time.Second)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("ожидалась ErrNotConnected, получено %v", err)
	}
	if !tr.Closed() {
		t.Error("транспорт должен быть закрыт")
	}
	if err := tr.Write([]byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("запись после отключения: %v", err)
	}
	_ = tr.Close()
	if n := hooks.Load(); n != 1 {
		t.Errorf("обработчик закрытия вызван %d раз", n)
	}
}

func TestTransportWriteChunks(t *testing.T) {
	port := newFakePort("", nil)
	port.maxWrite = 3
	tr := openFake(t, port, 5*time.Millisecond)

	if err := tr.WriteAndDrain("totp list\r"); err != nil {
		t.Fatalf("WriteAndDrain: %v", err)
	}
	if got := port.written(); got != "totp list\r" {
		t.Errorf("записано %q", got)
	}
}

func TestIsDisconnection(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "EOF", err: io.EOF, want: true},
		{name: "I/O error", err: errors.New("read /dev/ttyACM0: input/output error"), want: true},
		{name: "No such device", err: errors.New("open /dev/ttyACM0: no such device"), want: true},
		{name: "Other", err: errors.New("resource temporarily unavailable"), want: false},
		{name: "Nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDisconnection(tt.err); got != tt.want {
				t.Errorf("isDisconnection(%v) = %v", tt.err, got)
			}
		})
	}
}
