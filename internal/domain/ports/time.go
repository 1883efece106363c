package ports

import (
	"context"
	"time"
)

// TimeProvider - источник текущего времени для синхронизации часов устройства.
type TimeProvider interface {
	Name() string
	Now(ctx context.Context) (time.Time, error)
}

// TimezoneProvider - источник смещения часового пояса в часах.
type TimezoneProvider interface {
	Name() string
	Offset(ctx context.Context) (float64, error)
}
