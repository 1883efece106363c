package settings

import (
	"context"
	"fmt"
	"sort"

	"fliptotp/internal/domain/ports"
	"fliptotp/pkg/flipper"
)

// SettingsService отвечает за логику работы с настройками устройства
type SettingsService struct {
	device ports.Device
	logger ports.Logger
}

// NewSettingsService создает новый экземпляр SettingsService
func NewSettingsService(device ports.Device, logger ports.Logger) *SettingsService {
	return &SettingsService{
		device: device,
		logger: logger,
	}
}

// Read считывает настройки устройства
func (s *SettingsService) Read(ctx context.Context) (flipper.DeviceSettings, error) {
	return s.device.GetSettings(ctx)
}

// CompareSettings сравнивает два набора настроек
func (s *SettingsService) CompareSettings(initial, current flipper.DeviceSettings) []Change {
	return Compare(initial, current)
}

// ApplyChanges применяет изменения в порядке приоритета: обычные, часы, транспорт.
// При первой ошибке применение прекращается.
func (s *SettingsService) ApplyChanges(ctx context.Context, changes []Change) error {
	ordered := append([]Change(nil), changes...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	for _, ch := range ordered {
		s.logger.Info("%s: %v -> %v", ch.Description, ch.OldValue, ch.NewValue)
		if err := ch.ApplyFunc(ctx, s.device); err != nil {
			return fmt.Errorf("%s: %w", ch.ID, err)
		}
	}
	return nil
}

// Update считывает настройки, меняет их функцией edit и применяет разницу.
// Возвращает применённые изменения; пустой список - устройство уже настроено.
func (s *SettingsService) Update(ctx context.Context, edit func(*flipper.DeviceSettings) error) ([]Change, error) {
	initial, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	desired := initial
	if err := edit(&desired); err != nil {
		return nil, err
	}

	changes := s.CompareSettings(initial, desired)
	if len(changes) == 0 {
		s.logger.Info("Изменений нет")
		return nil, nil
	}
	if err := s.ApplyChanges(ctx, changes); err != nil {
		return nil, err
	}
	return changes, nil
}
