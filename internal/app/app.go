package app

import (
	"fmt"
	"sync"

	"fliptotp/internal/domain/models"
	"fliptotp/internal/domain/ports"
	"fliptotp/internal/infrastructure/clock"
	"fliptotp/internal/infrastructure/logger"
	"fliptotp/internal/infrastructure/storage"
	"fliptotp/internal/service/connection"
	"fliptotp/internal/service/settings"
	timeservice "fliptotp/internal/service/time"
	"fliptotp/internal/service/tokens"
	"fliptotp/pkg/flipper"
)

// Options - параметры запуска, переопределяющие сохранённые настройки.
type Options struct {
	PreferencesPath string
	Port            string // Пусто - serial.port из настроек или автопоиск
	BaudRate        int
	Logger          ports.Logger

	// Enumerator заменяет системный перечень портов (nil - системный)
	Enumerator flipper.Enumerator
}

// App представляет основное приложение.
type App struct {
	Prefs  *storage.YAMLPreferencesRepository
	Logger ports.Logger

	Connection *connection.ConnectionService
	Tokens     *tokens.TokenService
	Settings   *settings.SettingsService
	Time       *timeservice.TimeService

	mu     sync.Mutex
	client flipper.Client
}

// NewApp загружает настройки и собирает клиент устройства и сервисы.
// Соединение с устройством открывается при первой команде.
func NewApp(opts Options) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard{}
	}

	path := opts.PreferencesPath
	if path == "" {
		path = storage.DefaultPreferencesPath()
	}
	repo, err := storage.NewYAMLPreferencesRepository(path)
	if err != nil {
		return nil, err
	}
	prefs, err := repo.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	cfg := flipper.Config{
		Port:       firstNonEmpty(opts.Port, prefs.Serial.Port),
		BaudRate:   prefs.Serial.BaudRate,
		Logger:     logger.Func(log),
		Enumerator: opts.Enumerator,
	}
	if opts.BaudRate > 0 {
		cfg.BaudRate = opts.BaudRate
	}
	client := flipper.NewClient(cfg)

	locator := flipper.NewLocator(cfg.Identity, cfg.Enumerator, 0, cfg.Logger)
	locator.Path = cfg.Port
	return &App{
		Prefs:      repo,
		Logger:     log,
		Connection: connection.NewConnectionService(client, locator, log),
		Tokens:     tokens.NewTokenService(client, tokens.DefaultCacheTTL, log),
		Settings:   settings.NewSettingsService(client, log),
		Time:       timeservice.NewTimeService(client, log),
		client:     client,
	}, nil
}

// Client возвращает клиент устройства.
func (a *App) Client() flipper.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.client
}

// Preferences возвращает текущие сохранённые настройки.
func (a *App) Preferences() (models.Preferences, error) {
	return a.Prefs.Load()
}

// TimeProvider возвращает источник времени согласно настройкам.
func (a *App) TimeProvider() (ports.TimeProvider, error) {
	prefs, err := a.Prefs.Load()
	if err != nil {
		return nil, err
	}
	return clock.TimeProviderFor(prefs.Time.Provider, a.Logger), nil
}

// TimezoneProvider возвращает источник часового пояса согласно настройкам.
func (a *App) TimezoneProvider() (ports.TimezoneProvider, error) {
	prefs, err := a.Prefs.Load()
	if err != nil {
		return nil, err
	}
	return clock.TimezoneProviderFor(prefs.Timezone.Provider, a.Prefs, a.Logger), nil
}

// Close закрывает соединение с устройством.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
