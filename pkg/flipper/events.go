package flipper

import (
	"sync"
	"time"
)

// EventType - тип уведомления жизненного цикла клиента.
type EventType string

const (
	EventConnecting       EventType = "connecting"
	EventConnected        EventType = "connected"
	EventConnectionError  EventType = "connection-error"
	EventClosed           EventType = "closed"
	EventCommandExecuting EventType = "command-executing"
	EventCommandExecuted  EventType = "command-executed"
	EventPinRequested     EventType = "pin-requested"
	EventWaitForApp       EventType = "wait-for-app"
)

// Event - уведомление для внешних слоёв (UI, мост MQTT и т.п.).
type Event struct {
	Type      EventType `json:"type"`
	CommandID string    `json:"commandId,omitempty"` // Корреляция executing/executed
	Port      string    `json:"port,omitempty"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
}

// emitter раздаёт события подписчикам-каналам и синхронным обработчикам.
type emitter struct {
	mu       sync.RWMutex
	clients  map[uint64]chan Event
	handlers []func(Event)
	nextID   uint64
}

func newEmitter() *emitter {
	return &emitter{clients: make(map[uint64]chan Event)}
}

// subscribe регистрирует канал подписчика и возвращает функцию отписки.
func (e *emitter) subscribe() (<-chan Event, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++

	ch := make(chan Event, 32)
	e.clients[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			delete(e.clients, id)
			close(ch)
		})
	}
	return ch, unsubscribe
}

func (e *emitter) onEvent(fn func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, fn)
}

func (e *emitter) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	e.mu.RLock()
	handlers := make([]func(Event), len(e.handlers))
	copy(handlers, e.handlers)
	for _, ch := range e.clients {
		select {
		case ch <- ev:
		default:
			// Медленный подписчик: событие теряется, исполнение команд не блокируется
		}
	}
	e.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}
