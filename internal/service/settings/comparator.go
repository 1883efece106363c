package settings

import (
	"context"
	"fmt"
	"strconv"

	"fliptotp/internal/domain/models"
	"fliptotp/internal/domain/ports"
	"fliptotp/pkg/flipper"
)

// Change - изменение настройки вместе с замыканием, которое его применит.
type Change struct {
	models.Change
	ApplyFunc func(ctx context.Context, d ports.Device) error
}

// Compare сравнивает настройки устройства с желаемыми и возвращает список изменений.
// initial - считанное с устройства состояние, current - желаемое.
func Compare(initial, current flipper.DeviceSettings) []Change {
	var changes []Change

	// 1. Уведомления
	if initial.Notification != current.Notification {
		changes = append(changes, Change{
			Change: models.Change{
				ID:          "notification",
				Description: "Способ уведомления",
				OldValue:    describeNotification(initial.Notification),
				NewValue:    describeNotification(current.Notification),
				Priority:    models.PriorityNormal,
			},
			ApplyFunc: func(ctx context.Context, d ports.Device) error {
				return d.SetNotification(ctx, current.Notification)
			},
		})
	}

	// 2. Часовой пояс
	if initial.TimezoneOffsetHours != current.TimezoneOffsetHours {
		changes = append(changes, Change{
			Change: models.Change{
				ID:          "timezone",
				Description: "Часовой пояс (смещение в часах)",
				OldValue:    formatOffset(initial.TimezoneOffsetHours),
				NewValue:    formatOffset(current.TimezoneOffsetHours),
				Priority:    models.PriorityClock,
			},
			ApplyFunc: func(ctx context.Context, d ports.Device) error {
				return d.SetTimezone(ctx, current.TimezoneOffsetHours)
			},
		})
	}

	// 3. Автоматизация и раскладка задаются одной командой.
	// Пустая раскладка в желаемых настройках означает "не менять".
	layoutChanged := current.KeyboardLayout != "" && current.KeyboardLayout != initial.KeyboardLayout
	if initial.Automation != current.Automation || layoutChanged {
		layout := ""
		if layoutChanged {
			layout = current.KeyboardLayout
		}
		changes = append(changes, Change{
			Change: models.Change{
				ID:          "automation",
				Description: "Автоматический ввод (каналы/раскладка)",
				OldValue:    describeAutomation(initial.Automation, initial.KeyboardLayout),
				NewValue:    describeAutomation(current.Automation, firstNonEmpty(current.KeyboardLayout, initial.KeyboardLayout)),
				Priority:    models.PriorityTransport,
			},
			ApplyFunc: func(ctx context.Context, d ports.Device) error {
				return d.SetAutomation(ctx, current.Automation, layout)
			},
		})
	}

	return changes
}

func formatOffset(h float64) string {
	s := strconv.FormatFloat(h, 'f', -1, 64)
	if h >= 0 {
		s = "+" + s
	}
	return s
}

func describeNotification(n flipper.NotificationMethod) string {
	if n == 0 {
		return "нет"
	}
	return n.String()
}

func describeAutomation(a flipper.AutomationTransport, layout string) string {
	s := "нет"
	if a != 0 {
		s = a.String()
	}
	if layout != "" {
		s = fmt.Sprintf("%s, %s", s, layout)
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
