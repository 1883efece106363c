package connection

import (
	"context"
	"sort"

	"go.bug.st/serial"

	"fliptotp/internal/domain/ports"
	"fliptotp/pkg/flipper"
)

// ConnectionService отвечает за поиск устройства и подключение к нему
type ConnectionService struct {
	device  ports.Device
	locator *flipper.Locator
	logger  ports.Logger
}

// NewConnectionService создает новый экземпляр ConnectionService
func NewConnectionService(device ports.Device, locator *flipper.Locator, logger ports.Logger) *ConnectionService {
	return &ConnectionService{
		device:  device,
		locator: locator,
		logger:  logger,
	}
}

// GetSystemPorts возвращает список доступных в системе последовательных портов
func (s *ConnectionService) GetSystemPorts() ([]string, error) {
	portsList, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	sort.Strings(portsList)
	return portsList, nil
}

// GetDevices возвращает порты, к которым подключены устройства Flipper
func (s *ConnectionService) GetDevices() ([]flipper.DiscoveredPort, error) {
	devices, err := s.locator.ListDevices()
	if err != nil {
		return nil, err
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

// Connect дожидается устройства, открывает соединение и ждёт запуска TOTP-приложения
func (s *ConnectionService) Connect(ctx context.Context) error {
	if err := s.device.Connect(ctx); err != nil {
		return err
	}
	if err := s.device.WaitForApp(ctx); err != nil {
		return err
	}
	s.logger.Debug("Устройство готово к командам")
	return nil
}

// IsConnected проверяет, активно ли соединение
func (s *ConnectionService) IsConnected() bool {
	return s.device.State() == flipper.StateConnected
}

// State возвращает состояние соединения
func (s *ConnectionService) State() flipper.ConnectionState {
	return s.device.State()
}
