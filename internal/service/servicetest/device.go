// Package servicetest содержит фейковое устройство для тестов сервисов.
package servicetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fliptotp/internal/domain/ports"
	"fliptotp/pkg/flipper"
)

// Device хранит токены и настройки в памяти и записывает вызовы.
type Device struct {
	mu sync.Mutex

	Tokens   []flipper.TokenRecord
	Settings flipper.DeviceSettings
	Clock    time.Time

	// Errors - ошибка, возвращаемая операцией с данным именем ("AddToken" и т.п.)
	Errors map[string]error

	calls     []string
	connected bool
}

func New() *Device {
	return &Device{Errors: make(map[string]error)}
}

func (d *Device) call(name string) error {
	d.calls = append(d.calls, name)
	return d.Errors[name]
}

// Calls возвращает имена вызванных операций по порядку.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Count возвращает число вызовов операции.
func (d *Device) Count(name string) int {
	n := 0
	for _, c := range d.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

func (d *Device) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("Connect"); err != nil {
		return err
	}
	d.connected = true
	return nil
}

func (d *Device) WaitForApp(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.call("WaitForApp")
}

func (d *Device) State() flipper.ConnectionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		return flipper.StateConnected
	}
	return flipper.StateDisconnected
}

func (d *Device) ListTokens(ctx context.Context) ([]flipper.TokenRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("ListTokens"); err != nil {
		return nil, err
	}
	out := make([]flipper.TokenRecord, len(d.Tokens))
	for i, t := range d.Tokens {
		t.ID = i + 1
		t.Secret = ""
		out[i] = t
	}
	return out, nil
}

func (d *Device) GetToken(ctx context.Context, id int) (flipper.TokenRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("GetToken"); err != nil {
		return flipper.TokenRecord{}, err
	}
	if id < 1 || id > len(d.Tokens) {
		return flipper.TokenRecord{}, fmt.Errorf("token %d not found", id)
	}
	t := d.Tokens[id-1]
	t.ID = id
	t.Secret = ""
	return t, nil
}

func (d *Device) AddToken(ctx context.Context, token flipper.TokenRecord) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("AddToken"); err != nil {
		return 0, err
	}
	d.Tokens = append(d.Tokens, token)
	return len(d.Tokens), nil
}

func (d *Device) UpdateToken(ctx context.Context, token flipper.TokenRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("UpdateToken"); err != nil {
		return err
	}
	if token.ID < 1 || token.ID > len(d.Tokens) {
		return fmt.Errorf("token %d not found", token.ID)
	}
	d.Tokens[token.ID-1] = token
	return nil
}

func (d *Device) RemoveToken(ctx context.Context, id int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("RemoveToken"); err != nil {
		return err
	}
	if id < 1 || id > len(d.Tokens) {
		return fmt.Errorf("token %d not found", id)
	}
	d.Tokens = append(d.Tokens[:id-1], d.Tokens[id:]...)
	return nil
}

func (d *Device) MoveToken(ctx context.Context, id, newID int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("MoveToken"); err != nil {
		return err
	}
	if id < 1 || id > len(d.Tokens) || newID < 1 || newID > len(d.Tokens) {
		return fmt.Errorf("bad move %d -> %d", id, newID)
	}
	t := d.Tokens[id-1]
	rest := append(append([]flipper.TokenRecord(nil), d.Tokens[:id-1]...), d.Tokens[id:]...)
	d.Tokens = append(rest[:newID-1], append([]flipper.TokenRecord{t}, rest[newID-1:]...)...)
	return nil
}

func (d *Device) GetSettings(ctx context.Context) (flipper.DeviceSettings, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("GetSettings"); err != nil {
		return flipper.DeviceSettings{}, err
	}
	return d.Settings, nil
}

func (d *Device) SetTimezone(ctx context.Context, offsetHours float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("SetTimezone"); err != nil {
		return err
	}
	d.Settings.TimezoneOffsetHours = offsetHours
	return nil
}

func (d *Device) SetNotification(ctx context.Context, method flipper.NotificationMethod) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("SetNotification"); err != nil {
		return err
	}
	d.Settings.Notification = method
	return nil
}

func (d *Device) SetAutomation(ctx context.Context, transport flipper.AutomationTransport, layout string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("SetAutomation"); err != nil {
		return err
	}
	d.Settings.Automation = transport
	if layout != "" {
		d.Settings.KeyboardLayout = layout
	}
	return nil
}

func (d *Device) GetDateTime(ctx context.Context) (time.Time, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("GetDateTime"); err != nil {
		return time.Time{}, err
	}
	return d.Clock, nil
}

func (d *Device) SetDateTime(ctx context.Context, t time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.call("SetDateTime"); err != nil {
		return err
	}
	d.Clock = t
	return nil
}

var _ ports.Device = (*Device)(nil)
