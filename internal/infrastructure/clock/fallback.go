package clock

import (
	"context"
	"math/rand/v2"
	"time"

	"fliptotp/internal/domain/ports"
)

// Retry - политика повторов облачного запроса.
type Retry struct {
	Retries  int // Повторы после первой попытки
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultRetry: 3 повтора с паузой 1-2 с.
var DefaultRetry = Retry{Retries: 3, MinDelay: time.Second, MaxDelay: 2 * time.Second}

func (r Retry) delay() time.Duration {
	if r.MaxDelay <= r.MinDelay {
		return r.MinDelay
	}
	return r.MinDelay + rand.N(r.MaxDelay-r.MinDelay)
}

// do выполняет fn с повторами. Отмена контекста прерывает ожидание.
func (r Retry) do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= r.Retries {
			return err
		}
		timer := time.NewTimer(r.delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// FallbackTime повторяет запрос к основному источнику и при неудаче
// возвращает время запасного.
type FallbackTime struct {
	primary  ports.TimeProvider
	fallback ports.TimeProvider
	retry    Retry
	logger   ports.Logger
}

func NewFallbackTime(primary, fallback ports.TimeProvider, retry Retry, logger ports.Logger) *FallbackTime {
	return &FallbackTime{primary: primary, fallback: fallback, retry: retry, logger: logger}
}

func (p *FallbackTime) Name() string { return p.primary.Name() }

func (p *FallbackTime) Now(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := p.retry.do(ctx, func() (err error) {
		t, err = p.primary.Now(ctx)
		return err
	})
	if err == nil {
		return t, nil
	}
	if ctx.Err() != nil {
		return time.Time{}, ctx.Err()
	}
	p.logger.Warn("%s: %v; используется %s", p.primary.Name(), err, p.fallback.Name())
	return p.fallback.Now(ctx)
}

// FallbackTimezone - то же для часового пояса.
type FallbackTimezone struct {
	primary  ports.TimezoneProvider
	fallback ports.TimezoneProvider
	retry    Retry
	logger   ports.Logger
}

func NewFallbackTimezone(primary, fallback ports.TimezoneProvider, retry Retry, logger ports.Logger) *FallbackTimezone {
	return &FallbackTimezone{primary: primary, fallback: fallback, retry: retry, logger: logger}
}

func (p *FallbackTimezone) Name() string { return p.primary.Name() }

func (p *FallbackTimezone) Offset(ctx context.Context) (float64, error) {
	var offset float64
	err := p.retry.do(ctx, func() (err error) {
		offset, err = p.primary.Offset(ctx)
		return err
	})
	if err == nil {
		return offset, nil
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	p.logger.Warn("%s: %v; используется %s", p.primary.Name(), err, p.fallback.Name())
	return p.fallback.Offset(ctx)
}
