package flipper

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout       = errors.New("flipper: timeout expired")
	ErrCancelled     = errors.New("flipper: operation cancelled")
	ErrUserCancelled = errors.New("flipper: cancelled by user on device")
	ErrNotConnected  = errors.New("flipper: transport is closed")
	ErrInvalidToken  = errors.New("flipper: invalid token")
)

// ProtocolError описывает ответ устройства, который не удалось интерпретировать.
// Raw содержит исходный ответ для диагностики.
type ProtocolError struct {
	Op     string
	Reason string
	Raw    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("flipper: %s: %s (response: %q)", e.Op, e.Reason, e.Raw)
}

func protocolError(op, reason, raw string) error {
	return &ProtocolError{Op: op, Reason: reason, Raw: raw}
}

// cancelled оборачивает ошибку контекста в ErrCancelled, сохраняя исходную причину.
func cancelled(err error) error {
	if err == nil {
		return ErrCancelled
	}
	if errors.Is(err, ErrCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}
