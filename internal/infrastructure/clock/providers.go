// Package clock содержит источники времени и часового пояса для синхронизации устройства.
package clock

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"

	"fliptotp/internal/domain/models"
	"fliptotp/internal/domain/ports"
)

// DefaultWorldTimeURL - сервис времени по IP-адресу клиента.
const DefaultWorldTimeURL = "http://worldtimeapi.org/api/ip"

// LocalTime - системное время хоста.
type LocalTime struct {
	now func() time.Time
}

func (LocalTime) Name() string { return "Local system time" }

func (p LocalTime) Now(context.Context) (time.Time, error) {
	if p.now != nil {
		return p.now(), nil
	}
	return time.Now(), nil
}

// LocalTimezone - часовой пояс хоста.
type LocalTimezone struct {
	now func() time.Time
}

func (LocalTimezone) Name() string { return "Local system timezone" }

func (p LocalTimezone) Offset(context.Context) (float64, error) {
	now := time.Now()
	if p.now != nil {
		now = p.now()
	}
	_, sec := now.Zone()
	return float64(sec) / 3600, nil
}

// ManualTimezone берёт смещение из настроек приложения (timezone.manualOffset).
type ManualTimezone struct {
	Repo ports.PreferencesRepository
}

func (ManualTimezone) Name() string { return "Manual" }

func (p ManualTimezone) Offset(context.Context) (float64, error) {
	prefs, err := p.Repo.Load()
	if err != nil {
		return 0, fmt.Errorf("не удалось прочитать настройки: %w", err)
	}
	return prefs.Timezone.ManualOffset, nil
}

// worldTimeResponse - интересующие поля ответа worldtimeapi.
type worldTimeResponse struct {
	Datetime  string `json:"datetime"`
	RawOffset int    `json:"raw_offset"`
	DST       bool   `json:"dst"`
	DSTOffset int    `json:"dst_offset"`
}

// worldTime - общий HTTP-запрос облачных источников.
type worldTime struct {
	URL    string
	Client *http.Client
}

func (w worldTime) fetch(ctx context.Context) (worldTimeResponse, error) {
	url := w.URL
	if url == "" {
		url = DefaultWorldTimeURL
	}
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return worldTimeResponse{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return worldTimeResponse{}, fmt.Errorf("time service is currently unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return worldTimeResponse{}, fmt.Errorf("too many requests, try a bit later")
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return worldTimeResponse{}, fmt.Errorf("time service returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return worldTimeResponse{}, fmt.Errorf("ошибка чтения ответа: %w", err)
	}
	var out worldTimeResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		return worldTimeResponse{}, fmt.Errorf("некорректный ответ сервиса времени: %w", err)
	}
	return out, nil
}

// CloudTime - время из worldtimeapi.
type CloudTime struct {
	URL    string
	Client *http.Client
}

func (CloudTime) Name() string { return "Cloud time" }

func (p CloudTime) Now(ctx context.Context) (time.Time, error) {
	r, err := worldTime(p).fetch(ctx)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, r.Datetime)
	if err != nil {
		return time.Time{}, fmt.Errorf("некорректное время %q: %w", r.Datetime, err)
	}
	return t, nil
}

// CloudTimezone - смещение из worldtimeapi с учётом летнего времени.
type CloudTimezone struct {
	URL    string
	Client *http.Client
}

func (CloudTimezone) Name() string { return "Cloud timezone" }

func (p CloudTimezone) Offset(ctx context.Context) (float64, error) {
	r, err := worldTime(p).fetch(ctx)
	if err != nil {
		return 0, err
	}
	sec := r.RawOffset
	if r.DST {
		sec += r.DSTOffset
	}
	return float64(sec) / 3600, nil
}

// TimeProviderFor возвращает источник времени по настройке.
// Облачный источник оборачивается повторами с откатом на системное время.
func TimeProviderFor(source models.TimeSource, logger ports.Logger) ports.TimeProvider {
	if source == models.TimeSourceCloud {
		return NewFallbackTime(CloudTime{}, LocalTime{}, DefaultRetry, logger)
	}
	return LocalTime{}
}

// TimezoneProviderFor возвращает источник часового пояса по настройке.
func TimezoneProviderFor(source models.TimezoneSource, repo ports.PreferencesRepository, logger ports.Logger) ports.TimezoneProvider {
	switch source {
	case models.TimezoneSourceCloud:
		return NewFallbackTimezone(CloudTimezone{}, LocalTimezone{}, DefaultRetry, logger)
	case models.TimezoneSourceManual:
		return ManualTimezone{Repo: repo}
	default:
		return LocalTimezone{}
	}
}

var (
	_ ports.TimeProvider     = LocalTime{}
	_ ports.TimeProvider     = CloudTime{}
	_ ports.TimezoneProvider = LocalTimezone{}
	_ ports.TimezoneProvider = CloudTimezone{}
	_ ports.TimezoneProvider = ManualTimezone{}
)
