package settings

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"fliptotp/internal/domain/models"
	"fliptotp/internal/infrastructure/logger"
	"fliptotp/internal/service/servicetest"
	"fliptotp/pkg/flipper"
)

var base = flipper.DeviceSettings{
	TimezoneOffsetHours: 3,
	Notification:        flipper.NotifySound,
	Automation:          flipper.TransportUSB,
	KeyboardLayout:      "QWERTY",
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		edit func(s *flipper.DeviceSettings)
		want []string
	}{
		{name: "без изменений", edit: func(*flipper.DeviceSettings) {}, want: nil},
		{name: "пояс", edit: func(s *flipper.DeviceSettings) { s.TimezoneOffsetHours = -5.5 }, want: []string{"timezone"}},
		{name: "уведомления", edit: func(s *flipper.DeviceSettings) { s.Notification |= flipper.NotifyVibro }, want: []string{"notification"}},
		{name: "раскладка", edit: func(s *flipper.DeviceSettings) { s.KeyboardLayout = "AZERTY" }, want: []string{"automation"}},
		{name: "пустая раскладка не меняет", edit: func(s *flipper.DeviceSettings) { s.KeyboardLayout = "" }, want: nil},
		{name: "всё", edit: func(s *flipper.DeviceSettings) {
			s.Automation = flipper.TransportBluetooth
			s.TimezoneOffsetHours = 0
			s.Notification = 0
		}, want: []string{"notification", "timezone", "automation"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := base
			tt.edit(&current)

			var got []string
			for _, ch := range Compare(base, current) {
				got = append(got, ch.ID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("изменения %v, ожидалось %v", got, tt.want)
			}
		})
	}
}

func TestApplyChangesOrder(t *testing.T) {
	d := servicetest.New()
	s := NewSettingsService(d, logger.Discard{})

	current := base
	current.Automation = flipper.TransportBluetooth
	current.TimezoneOffsetHours = 1
	current.Notification = flipper.NotifyVibro

	changes := Compare(base, current)
	// Перемешиваем: порядок применения задаёт приоритет, а не порядок в срезе
	changes[0], changes[2] = changes[2], changes[0]

	if err := s.ApplyChanges(context.Background(), changes); err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}
	want := []string{"SetNotification", "SetTimezone", "SetAutomation"}
	if got := d.Calls(); !reflect.DeepEqual(got, want) {
		t.Errorf("порядок %v, ожидался %v", got, want)
	}
	if d.Settings.KeyboardLayout != "" {
		t.Errorf("раскладка не должна передаваться без изменения: %q", d.Settings.KeyboardLayout)
	}
}

func TestApplyStopsOnError(t *testing.T) {
	d := servicetest.New()
	d.Errors["SetTimezone"] = errors.New("rejected")
	s := NewSettingsService(d, logger.Discard{})

	current := base
	current.TimezoneOffsetHours = 1
	current.Automation = flipper.TransportBluetooth

	err := s.ApplyChanges(context.Background(), Compare(base, current))
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if d.Count("SetAutomation") != 0 {
		t.Error("после ошибки применение должно прекратиться")
	}
}

func TestUpdate(t *testing.T) {
	d := servicetest.New()
	d.Settings = base
	s := NewSettingsService(d, logger.Discard{})

	changes, err := s.Update(context.Background(), func(cur *flipper.DeviceSettings) error {
		cur.TimezoneOffsetHours = 5.75
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(changes) != 1 || changes[0].Priority != models.PriorityClock {
		t.Errorf("изменения: %+v", changes)
	}
	if d.Settings.TimezoneOffsetHours != 5.75 {
		t.Errorf("пояс на устройстве %v", d.Settings.TimezoneOffsetHours)
	}

	changes, err = s.Update(context.Background(), func(*flipper.DeviceSettings) error { return nil })
	if err != nil || len(changes) != 0 {
		t.Errorf("повторное Update: %v, %v", changes, err)
	}
}
