package flipper

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// Client - клиент консоли TOTP-приложения Flipper Zero.
// Все методы безопасны для конкурентного вызова: команды выполняются строго по одной.
type Client interface {
	// Connect дожидается устройства и открывает соединение (если его ещё нет).
	Connect(ctx context.Context) error
	// WaitForApp дожидается, пока приложение на устройстве начнёт принимать команды.
	WaitForApp(ctx context.Context) error

	ListTokens(ctx context.Context) ([]TokenRecord, error)
	GetToken(ctx context.Context, id int) (TokenRecord, error)
	AddToken(ctx context.Context, token TokenRecord) (int, error)
	UpdateToken(ctx context.Context, token TokenRecord) error
	RemoveToken(ctx context.Context, id int) error
	MoveToken(ctx context.Context, id, newID int) error

	GetSettings(ctx context.Context) (DeviceSettings, error)
	SetSettings(ctx context.Context, settings DeviceSettings) error
	SetTimezone(ctx context.Context, offsetHours float64) error
	SetNotification(ctx context.Context, method NotificationMethod) error
	SetAutomation(ctx context.Context, transport AutomationTransport, layout string) error
	GetDateTime(ctx context.Context) (time.Time, error)
	SetDateTime(ctx context.Context, t time.Time) error

	// Execute выполняет произвольную команду консоли.
	Execute(ctx context.Context, req Request) (Response, error)
	// Session выполняет несколько команд подряд, не пропуская между ними чужие.
	Session(ctx context.Context, fn func(s *Session) error) error

	Subscribe() (<-chan Event, func())
	OnEvent(fn func(Event))
	State() ConnectionState
	Close() error
}

// Config - параметры клиента. Нулевые значения заменяются умолчаниями.
type Config struct {
	Identity           DeviceIdentity
	Port               string // Путь порта; пусто - первый найденный Flipper
	BaudRate           int
	PollInterval       time.Duration // Период опроса порта при чтении
	DevicePollInterval time.Duration // Период поиска устройства
	HandshakeTimeout   time.Duration
	EchoTimeout        time.Duration
	CommandTimeout     time.Duration
	RetryDelay         time.Duration
	Markers            *Markers

	Opener     Opener
	Enumerator Enumerator
	Logger     func(string)
}

func (c Config) withDefaults() Config {
	if c.Identity.VendorID == "" && c.Identity.ProductID == "" {
		c.Identity = FlipperIdentity
	}
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DevicePollInterval <= 0 {
		c.DevicePollInterval = DefaultDevicePollInterval
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.EchoTimeout <= 0 {
		c.EchoTimeout = DefaultEchoTimeout
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Markers == nil {
		m := DefaultMarkers
		c.Markers = &m
	}
	if c.Opener == nil {
		c.Opener = SerialOpener
	}
	if c.Enumerator == nil {
		c.Enumerator = SystemEnumerator
	}
	return c
}

type flipperClient struct {
	markers Markers
	events  *emitter
	conn    *connectionManager
	exec    *executor
	logger  func(string)
}

// NewClient создаёт клиент. Соединение открывается лениво при первой команде.
func NewClient(config Config) Client {
	return newClient(config)
}

func newClient(config Config) *flipperClient {
	cfg := config.withDefaults()
	events := newEmitter()

	locator := NewLocator(cfg.Identity, cfg.Enumerator, cfg.DevicePollInterval, cfg.Logger)
	locator.Path = cfg.Port

	conn := &connectionManager{
		locator:          locator,
		open:             cfg.Opener,
		baudRate:         cfg.BaudRate,
		poll:             cfg.PollInterval,
		handshakeTimeout: cfg.HandshakeTimeout,
		retryDelay:       cfg.RetryDelay,
		markers:          *cfg.Markers,
		events:           events,
		logger:           cfg.Logger,
		gate:             semaphore.NewWeighted(1),
	}

	return &flipperClient{
		markers: *cfg.Markers,
		events:  events,
		conn:    conn,
		exec: &executor{
			conn:           conn,
			gate:           semaphore.NewWeighted(1),
			markers:        *cfg.Markers,
			echoTimeout:    cfg.EchoTimeout,
			commandTimeout: cfg.CommandTimeout,
			retryDelay:     cfg.RetryDelay,
			events:         events,
			logger:         cfg.Logger,
		},
		logger: cfg.Logger,
	}
}

func (c *flipperClient) Connect(ctx context.Context) error {
	_, err := c.conn.acquire(ctx)
	return err
}

func (c *flipperClient) Execute(ctx context.Context, req Request) (Response, error) {
	return c.exec.Execute(ctx, req)
}

func (c *flipperClient) Session(ctx context.Context, fn func(s *Session) error) error {
	return c.exec.Session(ctx, fn)
}

func (c *flipperClient) Subscribe() (<-chan Event, func()) { return c.events.subscribe() }

func (c *flipperClient) OnEvent(fn func(Event)) { c.events.onEvent(fn) }

func (c *flipperClient) State() ConnectionState { return c.conn.State() }

func (c *flipperClient) Close() error { return c.conn.close() }
