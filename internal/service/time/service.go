package time

import (
	"context"
	"fmt"
	"math"
	"time"

	"fliptotp/internal/domain/ports"
)

const TimeLayout = "2006-01-02 15:04:05"

// CriticalDrift - расхождение часов, при котором коды TOTP перестают совпадать
// (половина стандартного периода в 30 с).
const CriticalDrift = 15 * time.Second

// TimeStatus описывает состояние синхронизации времени
type TimeStatus int

const (
	TimeStatusOk       TimeStatus = iota // Разница <= CriticalDrift
	TimeStatusCritical                   // Разница > CriticalDrift
	TimeStatusError                      // Ошибка чтения или нет данных
)

func (s TimeStatus) String() string {
	switch s {
	case TimeStatusOk:
		return "ok"
	case TimeStatusCritical:
		return "critical"
	default:
		return "error"
	}
}

// SyncResult - итог синхронизации.
type SyncResult struct {
	Time           time.Time // Установленное на устройстве время (локальное для пояса)
	TimeSource     string
	Offset         float64
	TimezoneSource string
}

// TimeService отвечает за логику работы со временем устройства
type TimeService struct {
	device ports.Device
	logger ports.Logger
}

// NewTimeService создает новый экземпляр TimeService
func NewTimeService(device ports.Device, logger ports.Logger) *TimeService {
	return &TimeService{
		device: device,
		logger: logger,
	}
}

// GetDeviceTime возвращает текущее время часов устройства
func (s *TimeService) GetDeviceTime(ctx context.Context) (time.Time, error) {
	return s.device.GetDateTime(ctx)
}

// SyncTimezone устанавливает на устройстве смещение из источника.
func (s *TimeService) SyncTimezone(ctx context.Context, tz ports.TimezoneProvider) (float64, error) {
	offset, err := tz.Offset(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", tz.Name(), err)
	}
	if err := s.device.SetTimezone(ctx, offset); err != nil {
		return 0, err
	}
	s.logger.Info("Часовой пояс устройства: %v (%s)", offset, tz.Name())
	return offset, nil
}

// SyncTime устанавливает часы устройства по источнику времени.
// Часы устройства идут по местному времени, поэтому время переводится в пояс offset.
func (s *TimeService) SyncTime(ctx context.Context, tp ports.TimeProvider, offset float64) (time.Time, error) {
	now, err := tp.Now(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", tp.Name(), err)
	}
	local := InZone(now, offset)
	if err := s.device.SetDateTime(ctx, local); err != nil {
		return time.Time{}, err
	}
	s.logger.Info("Часы устройства установлены: %s (%s)", s.FormatTime(local), tp.Name())
	return local, nil
}

// Sync синхронизирует сначала часовой пояс, затем часы.
func (s *TimeService) Sync(ctx context.Context, tp ports.TimeProvider, tz ports.TimezoneProvider) (SyncResult, error) {
	return s.SyncSelected(ctx, true, true, tp, tz)
}

// SyncSelected синхронизирует только выбранное. Если пояс не синхронизируется,
// часы выставляются по поясу, который уже задан на устройстве.
func (s *TimeService) SyncSelected(ctx context.Context, syncTime, syncTimezone bool, tp ports.TimeProvider, tz ports.TimezoneProvider) (SyncResult, error) {
	var res SyncResult
	if syncTimezone {
		offset, err := s.SyncTimezone(ctx, tz)
		if err != nil {
			return SyncResult{}, err
		}
		res.Offset, res.TimezoneSource = offset, tz.Name()
	} else if syncTime {
		settings, err := s.device.GetSettings(ctx)
		if err != nil {
			return SyncResult{}, err
		}
		res.Offset, res.TimezoneSource = settings.TimezoneOffsetHours, "device"
	}

	if syncTime {
		t, err := s.SyncTime(ctx, tp, res.Offset)
		if err != nil {
			return SyncResult{}, err
		}
		res.Time, res.TimeSource = t, tp.Name()
	}
	return res, nil
}

// Check сравнивает часы устройства с источником времени с учётом пояса устройства.
func (s *TimeService) Check(ctx context.Context, tp ports.TimeProvider) (time.Duration, TimeStatus, error) {
	settings, err := s.device.GetSettings(ctx)
	if err != nil {
		return 0, TimeStatusError, err
	}
	deviceTime, err := s.GetDeviceTime(ctx)
	if err != nil {
		return 0, TimeStatusError, err
	}
	now, err := tp.Now(ctx)
	if err != nil {
		return 0, TimeStatusError, err
	}
	diff, status := s.CompareTimes(s.FormatTime(deviceTime), InZone(now, settings.TimezoneOffsetHours))
	return diff, status, nil
}

// ParseTime парсит строку времени
func (s *TimeService) ParseTime(val string) (time.Time, error) {
	return time.Parse(TimeLayout, val)
}

// FormatTime форматирует время для отображения
func (s *TimeService) FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// CompareTimes возвращает разницу между временем устройства и целевым временем, а также статус.
// Сравниваются показания часов без учёта зоны.
func (s *TimeService) CompareTimes(deviceTimeStr string, targetTime time.Time) (time.Duration, TimeStatus) {
	deviceTime, err := s.ParseTime(deviceTimeStr)
	if err != nil {
		return 0, TimeStatusError
	}

	target, _ := s.ParseTime(s.FormatTime(targetTime))
	diff := target.Sub(deviceTime)
	absDiff := time.Duration(math.Abs(float64(diff)))

	if absDiff > CriticalDrift {
		return absDiff, TimeStatusCritical
	}

	return absDiff, TimeStatusOk
}

// InZone переводит момент времени в фиксированный пояс со смещением в часах.
func InZone(t time.Time, offsetHours float64) time.Time {
	sec := int(math.Round(offsetHours * 3600))
	return t.In(time.FixedZone(formatZone(sec), sec))
}

func formatZone(sec int) string {
	sign := '+'
	if sec < 0 {
		sign = '-'
		sec = -sec
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, sec/3600, sec%3600/60)
}
