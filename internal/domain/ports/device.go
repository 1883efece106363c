package ports

import (
	"context"
	"time"

	"fliptotp/pkg/flipper"
)

// Device - операции устройства, которыми пользуются сервисы.
// Реализуется flipper.Client; в тестах подменяется фейком.
type Device interface {
	Connect(ctx context.Context) error
	WaitForApp(ctx context.Context) error
	State() flipper.ConnectionState

	ListTokens(ctx context.Context) ([]flipper.TokenRecord, error)
	GetToken(ctx context.Context, id int) (flipper.TokenRecord, error)
	AddToken(ctx context.Context, token flipper.TokenRecord) (int, error)
	UpdateToken(ctx context.Context, token flipper.TokenRecord) error
	RemoveToken(ctx context.Context, id int) error
	MoveToken(ctx context.Context, id, newID int) error

	GetSettings(ctx context.Context) (flipper.DeviceSettings, error)
	SetTimezone(ctx context.Context, offsetHours float64) error
	SetNotification(ctx context.Context, method flipper.NotificationMethod) error
	SetAutomation(ctx context.Context, transport flipper.AutomationTransport, layout string) error
	GetDateTime(ctx context.Context) (time.Time, error)
	SetDateTime(ctx context.Context, t time.Time) error
}

// EventPublisher отправляет события клиента во внешнюю систему (например, MQTT).
type EventPublisher interface {
	Publish(ctx context.Context, ev flipper.Event) error
	Close() error
}
