package flipper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
	"golang.org/x/time/rate"
)

// DefaultDevicePollInterval - период опроса списка портов при ожидании устройства.
const DefaultDevicePollInterval = time.Second

// DeviceIdentity - USB-идентификатор искомого устройства.
type DeviceIdentity struct {
	VendorID  string
	ProductID string
}

// FlipperIdentity - идентификатор CDC-порта Flipper Zero.
var FlipperIdentity = DeviceIdentity{VendorID: FlipperVendorID, ProductID: FlipperProductID}

func (d DeviceIdentity) matches(p DiscoveredPort) bool {
	return strings.EqualFold(p.VendorID, d.VendorID) && strings.EqualFold(p.ProductID, d.ProductID)
}

// DiscoveredPort - порт из одного перечисления устройств.
type DiscoveredPort struct {
	Path         string `json:"path"`
	VendorID     string `json:"vendorId"`
	ProductID    string `json:"productId"`
	SerialNumber string `json:"serialNumber,omitempty"`
	Product      string `json:"product,omitempty"`
}

// Enumerator перечисляет подключенные последовательные порты.
type Enumerator func() ([]DiscoveredPort, error)

// SystemEnumerator перечисляет порты средствами ОС.
func SystemEnumerator() ([]DiscoveredPort, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка портов: %w", err)
	}
	ports := make([]DiscoveredPort, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		ports = append(ports, DiscoveredPort{
			Path:         d.Name,
			VendorID:     d.VID,
			ProductID:    d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}

// Locator ищет устройство среди подключенных портов.
type Locator struct {
	Identity     DeviceIdentity
	Path         string // Если задан, подходит только этот порт
	Enumerate    Enumerator
	PollInterval time.Duration
	Logger       func(string)
}

// NewLocator создаёт локатор с параметрами по умолчанию для незаданных полей.
func NewLocator(identity DeviceIdentity, enumerate Enumerator, poll time.Duration, logger func(string)) *Locator {
	if identity.VendorID == "" && identity.ProductID == "" {
		identity = FlipperIdentity
	}
	if enumerate == nil {
		enumerate = SystemEnumerator
	}
	if poll <= 0 {
		poll = DefaultDevicePollInterval
	}
	return &Locator{Identity: identity, Enumerate: enumerate, PollInterval: poll, Logger: logger}
}

func (l *Locator) log(format string, args ...interface{}) {
	if l.Logger != nil {
		l.Logger(fmt.Sprintf(format, args...))
	}
}

// ListDevices возвращает все порты с подходящим идентификатором.
func (l *Locator) ListDevices() ([]DiscoveredPort, error) {
	ports, err := l.Enumerate()
	if err != nil {
		return nil, err
	}
	var found []DiscoveredPort
	for _, p := range ports {
		if l.Path != "" && p.Path != l.Path {
			continue
		}
		if l.Identity.matches(p) {
			found = append(found, p)
		}
	}
	return found, nil
}

// FindDevice возвращает первый подходящий порт или nil.
func (l *Locator) FindDevice() (*DiscoveredPort, error) {
	found, err := l.ListDevices()
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// WaitForDevice опрашивает порты, пока устройство не появится.
// Ошибка возможна только при отмене контекста.
func (l *Locator) WaitForDevice(ctx context.Context) (*DiscoveredPort, error) {
	limiter := rate.NewLimiter(rate.Every(l.PollInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, cancelled(ctxErr)
			}
			// Дедлайн контекста наступит раньше следующего опроса
			return nil, cancelled(err)
		}

		port, err := l.FindDevice()
		if err != nil {
			l.log("Перечисление портов не удалось: %v", err)
			continue
		}
		if port != nil {
			return port, nil
		}
	}
}
