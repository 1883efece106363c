package monitor

import (
	"context"
	"sync"
	"time"

	"fliptotp/internal/domain/ports"
	timeservice "fliptotp/internal/service/time"
)

// DefaultPollInterval - период проверки часов устройства.
const DefaultPollInterval = time.Minute

// Checker сравнивает часы устройства с источником времени.
type Checker interface {
	Check(ctx context.Context, tp ports.TimeProvider) (time.Duration, timeservice.TimeStatus, error)
}

// ClockStatus - последнее известное состояние часов устройства.
type ClockStatus struct {
	Drift      time.Duration          `json:"drift"`
	Status     timeservice.TimeStatus `json:"status"`
	Error      string                 `json:"error,omitempty"`
	LastUpdate time.Time              `json:"lastUpdate"`
}

// Config содержит конфигурацию опроса
type Config struct {
	PollInterval time.Duration // Интервал опроса
	StartDelay   time.Duration // Пауза перед первой проверкой
}

// Service периодически проверяет расхождение часов устройства
// и сообщает о смене статуса.
type Service struct {
	checker  Checker
	provider ports.TimeProvider
	config   Config
	logger   ports.Logger

	mutex          sync.Mutex
	status         ClockStatus
	cancel         context.CancelFunc
	done           chan struct{}
	isPaused       bool
	updateCallback func(ClockStatus)
}

// NewService создает новый экземпляр сервиса мониторинга
func NewService(checker Checker, provider ports.TimeProvider, cfg Config, logger ports.Logger) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Service{
		checker:  checker,
		provider: provider,
		config:   cfg,
		logger:   logger,
		status:   ClockStatus{Status: timeservice.TimeStatusError, Error: "no data"},
	}
}

// Start запускает мониторинг. Повторный вызов перезапускает его.
func (s *Service) Start(ctx context.Context) {
	s.Stop()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.monitorRoutine(ctx, s.done)
	s.logger.Info("[MONITOR] Мониторинг часов запущен (%s, каждые %s)", s.provider.Name(), s.config.PollInterval)
}

// Stop останавливает мониторинг и дожидается завершения проверки.
func (s *Service) Stop() {
	s.mutex.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("[MONITOR] Мониторинг часов остановлен")
}

// Pause приостанавливает мониторинг
func (s *Service) Pause() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.isPaused = true
}

// Resume возобновляет мониторинг
func (s *Service) Resume() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.isPaused = false
}

// SetUpdateCallback задаёт обработчик смены статуса.
// Вызывается из горутины мониторинга.
func (s *Service) SetUpdateCallback(fn func(ClockStatus)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.updateCallback = fn
}

// GetCurrentStatus возвращает текущее состояние (потокобезопасно)
func (s *Service) GetCurrentStatus() ClockStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.status
}

func (s *Service) monitorRoutine(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.config.StartDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.config.StartDelay):
		}
	}
	s.check(ctx)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *Service) check(ctx context.Context) {
	s.mutex.Lock()
	paused := s.isPaused
	s.mutex.Unlock()
	if paused {
		return
	}

	drift, status, err := s.checker.Check(ctx, s.provider)
	if ctx.Err() != nil {
		return
	}
	next := ClockStatus{Drift: drift, Status: status, LastUpdate: time.Now()}
	if err != nil {
		// Ошибки связи пишем в debug: при отключенном устройстве они идут каждый тик
		s.logger.Debug("[MONITOR] проверка часов: %v", err)
		next.Error = err.Error()
	}

	s.mutex.Lock()
	changed := next.Status != s.status.Status
	s.status = next
	callback := s.updateCallback
	s.mutex.Unlock()

	if !changed {
		return
	}
	switch next.Status {
	case timeservice.TimeStatusCritical:
		s.logger.Warn("[MONITOR] ВНИМАНИЕ: часы устройства расходятся на %s", drift)
	case timeservice.TimeStatusOk:
		s.logger.Info("[MONITOR] Часы устройства в норме (%s)", drift)
	}
	if callback != nil {
		callback(next)
	}
}
