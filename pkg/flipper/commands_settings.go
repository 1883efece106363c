package flipper

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	MinTimezoneOffset = -12.0
	MaxTimezoneOffset = 12.0
)

// GetSettings читает часовой пояс, способ уведомления и автоматизацию.
func (c *flipperClient) GetSettings(ctx context.Context) (DeviceSettings, error) {
	var settings DeviceSettings

	text, err := c.query(ctx, "timezone", totpCommand+" timezone", c.markers.TimezoneCurrent)
	if err != nil {
		return settings, err
	}
	if settings.TimezoneOffsetHours, err = strconv.ParseFloat(text, 64); err != nil {
		return settings, protocolError("timezone", "bad offset "+strconv.Quote(text), text)
	}

	text, err = c.query(ctx, "notify", totpCommand+" notify", c.markers.NotificationCurrent)
	if err != nil {
		return settings, err
	}
	if settings.Notification, err = ParseNotificationMethod(text); err != nil {
		return settings, protocolError("notify", err.Error(), text)
	}

	resp, err := checked(ctx, c.Execute, c.request(totpCommand+" automation"))
	if err != nil {
		return settings, err
	}
	m := c.markers.AutomationCurrent.FindStringSubmatch(resp.Text)
	if m == nil {
		return settings, protocolError("automation", "current automation method not found", resp.Raw)
	}
	if settings.Automation, err = ParseAutomationTransport(m[1]); err != nil {
		return settings, protocolError("automation", err.Error(), resp.Raw)
	}
	// Раскладка есть не во всех версиях прошивки
	if m := c.markers.KeyboardLayoutCurrent.FindStringSubmatch(resp.Text); m != nil {
		settings.KeyboardLayout = strings.Trim(m[1], `"`)
	}
	return settings, nil
}

// query выполняет команду и извлекает первую группу выражения; отсутствие - ProtocolError.
func (c *flipperClient) query(ctx context.Context, op, command string, re *regexp.Regexp) (string, error) {
	resp, err := checked(ctx, c.Execute, c.request(command))
	if err != nil {
		return "", err
	}
	m := re.FindStringSubmatch(resp.Text)
	if m == nil {
		return "", protocolError(op, "expected "+re.String(), resp.Raw)
	}
	return strings.TrimSpace(m[1]), nil
}

// apply выполняет команду записи и проверяет подтверждение.
func (c *flipperClient) apply(ctx context.Context, op, command string, re *regexp.Regexp) error {
	resp, err := checked(ctx, c.Execute, c.request(command))
	if err != nil {
		return err
	}
	if strings.Contains(resp.Raw, c.markers.InvalidArgument) || !re.MatchString(resp.Raw) {
		return protocolError(op, "setting was not accepted", resp.Raw)
	}
	return nil
}

// SetTimezone устанавливает смещение часового пояса в часах.
func (c *flipperClient) SetTimezone(ctx context.Context, offsetHours float64) error {
	if offsetHours < MinTimezoneOffset || offsetHours > MaxTimezoneOffset {
		return fmt.Errorf("flipper: timezone offset %v out of range [%v, %v]", offsetHours, MinTimezoneOffset, MaxTimezoneOffset)
	}
	command := fmt.Sprintf("%s timezone %s", totpCommand, strconv.FormatFloat(offsetHours, 'f', -1, 64))
	return c.apply(ctx, "timezone", command, c.markers.TimezoneSet)
}

// SetNotification устанавливает способы уведомления.
func (c *flipperClient) SetNotification(ctx context.Context, method NotificationMethod) error {
	command := totpCommand + " notify " + strings.Join(method.Args(), " ")
	return c.apply(ctx, "notify", command, c.markers.NotificationSet)
}

// SetAutomation устанавливает каналы автоматического ввода и раскладку (пустая - не менять).
func (c *flipperClient) SetAutomation(ctx context.Context, transport AutomationTransport, layout string) error {
	command := totpCommand + " automation"
	if layout != "" {
		command += " -k " + layout
	}
	command += " " + strings.Join(transport.Args(), " ")
	return c.apply(ctx, "automation", command, c.markers.AutomationSet)
}

// SetSettings записывает все настройки: уведомления, пояс, затем автоматизацию
// (смена автоматизации может переподключить USB HID).
func (c *flipperClient) SetSettings(ctx context.Context, s DeviceSettings) error {
	if err := c.SetNotification(ctx, s.Notification); err != nil {
		return err
	}
	if err := c.SetTimezone(ctx, s.TimezoneOffsetHours); err != nil {
		return err
	}
	return c.SetAutomation(ctx, s.Automation, s.KeyboardLayout)
}

// SetDateTime устанавливает часы устройства ("date YYYY-MM-DD HH:MM:SS <день недели 1..7>").
func (c *flipperClient) SetDateTime(ctx context.Context, t time.Time) error {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	command := fmt.Sprintf("date %s %d", t.Format("2006-01-02 15:04:05"), weekday)
	resp, err := checked(ctx, c.Execute, c.request(command))
	if err != nil {
		return err
	}
	if strings.Contains(resp.Raw, c.markers.InvalidArgument) {
		return protocolError("date", "date was not accepted", resp.Raw)
	}
	return nil
}

// GetDateTime читает часы устройства. Часовой пояс устройство не сообщает,
// поэтому время возвращается в UTC "как есть".
func (c *flipperClient) GetDateTime(ctx context.Context) (time.Time, error) {
	text, err := c.query(ctx, "date", "date", c.markers.DateTimeCurrent)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.DateTime, text)
	if err != nil {
		return time.Time{}, protocolError("date", err.Error(), text)
	}
	return t, nil
}

// WaitForApp дожидается, пока на устройстве запустится TOTP-приложение.
func (c *flipperClient) WaitForApp(ctx context.Context) error {
	_, err := c.Execute(ctx, c.request(totpCommand+" ?"))
	return err
}
