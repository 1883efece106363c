package models

import (
	"fmt"
	"sort"
	"strconv"
)

// TimeSource - источник времени для часов устройства.
type TimeSource string

const (
	TimeSourceLocal TimeSource = "local"
	TimeSourceCloud TimeSource = "cloud"
)

// TimezoneSource - источник часового пояса.
type TimezoneSource string

const (
	TimezoneSourceLocal  TimezoneSource = "local"
	TimezoneSourceCloud  TimezoneSource = "cloud"
	TimezoneSourceManual TimezoneSource = "manual"
)

// ColorScheme - предпочтение темы оформления.
type ColorScheme string

const (
	ColorSchemeLight  ColorScheme = "light"
	ColorSchemeDark   ColorScheme = "dark"
	ColorSchemeSystem ColorScheme = "os"
)

// TimePreferences - раздел "time".
type TimePreferences struct {
	Provider      TimeSource `yaml:"provider" json:"provider"`
	SyncAtStartup bool       `yaml:"syncAtStartup" json:"syncAtStartup"`
}

// TimezonePreferences - раздел "timezone".
type TimezonePreferences struct {
	Provider      TimezoneSource `yaml:"provider" json:"provider"`
	SyncAtStartup bool           `yaml:"syncAtStartup" json:"syncAtStartup"`
	ManualOffset  float64        `yaml:"manualOffset" json:"manualOffset"`
}

// ThemePreferences - раздел "theme".
type ThemePreferences struct {
	ColorScheme ColorScheme `yaml:"colorScheme" json:"colorScheme"`
}

// SerialPreferences переопределяет параметры порта (пустые поля - автоопределение).
type SerialPreferences struct {
	Port     string `yaml:"port,omitempty" json:"port,omitempty"`
	BaudRate int    `yaml:"baudRate,omitempty" json:"baudRate,omitempty"`
}

// MQTTPreferences - параметры моста событий.
type MQTTPreferences struct {
	Broker   string `yaml:"broker,omitempty" json:"broker,omitempty"`
	Topic    string `yaml:"topic,omitempty" json:"topic,omitempty"`
	ClientID string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"-"`
}

// Preferences - настройки приложения.
type Preferences struct {
	Time     TimePreferences     `yaml:"time" json:"time"`
	Timezone TimezonePreferences `yaml:"timezone" json:"timezone"`
	Theme    ThemePreferences    `yaml:"theme" json:"theme"`
	Serial   SerialPreferences   `yaml:"serial" json:"serial"`
	MQTT     MQTTPreferences     `yaml:"mqtt" json:"mqtt"`
}

// DefaultPreferences возвращает настройки по умолчанию.
func DefaultPreferences() Preferences {
	return Preferences{
		Time:     TimePreferences{Provider: TimeSourceLocal},
		Timezone: TimezonePreferences{Provider: TimezoneSourceLocal},
		Theme:    ThemePreferences{ColorScheme: ColorSchemeSystem},
		MQTT:     MQTTPreferences{Topic: "fliptotp/events"},
	}
}

// preferenceKey описывает один адресуемый ключ вида "раздел.поле".
type preferenceKey struct {
	get func(p *Preferences) string
	set func(p *Preferences, v string) error
}

var preferenceKeys = map[string]preferenceKey{
	"time.provider": {
		get: func(p *Preferences) string { return string(p.Time.Provider) },
		set: func(p *Preferences, v string) error {
			switch TimeSource(v) {
			case TimeSourceLocal, TimeSourceCloud:
				p.Time.Provider = TimeSource(v)
				return nil
			}
			return fmt.Errorf("недопустимый источник времени %q", v)
		},
	},
	"time.syncAtStartup": {
		get: func(p *Preferences) string { return strconv.FormatBool(p.Time.SyncAtStartup) },
		set: func(p *Preferences, v string) (err error) {
			p.Time.SyncAtStartup, err = strconv.ParseBool(v)
			return err
		},
	},
	"timezone.provider": {
		get: func(p *Preferences) string { return string(p.Timezone.Provider) },
		set: func(p *Preferences, v string) error {
			switch TimezoneSource(v) {
			case TimezoneSourceLocal, TimezoneSourceCloud, TimezoneSourceManual:
				p.Timezone.Provider = TimezoneSource(v)
				return nil
			}
			return fmt.Errorf("недопустимый источник часового пояса %q", v)
		},
	},
	"timezone.syncAtStartup": {
		get: func(p *Preferences) string { return strconv.FormatBool(p.Timezone.SyncAtStartup) },
		set: func(p *Preferences, v string) (err error) {
			p.Timezone.SyncAtStartup, err = strconv.ParseBool(v)
			return err
		},
	},
	"timezone.manualOffset": {
		get: func(p *Preferences) string { return strconv.FormatFloat(p.Timezone.ManualOffset, 'f', -1, 64) },
		set: func(p *Preferences, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return err
			}
			if f < -12 || f > 12 {
				return fmt.Errorf("смещение %v вне диапазона [-12, 12]", f)
			}
			p.Timezone.ManualOffset = f
			return nil
		},
	},
	"theme.colorScheme": {
		get: func(p *Preferences) string { return string(p.Theme.ColorScheme) },
		set: func(p *Preferences, v string) error {
			switch ColorScheme(v) {
			case ColorSchemeLight, ColorSchemeDark, ColorSchemeSystem:
				p.Theme.ColorScheme = ColorScheme(v)
			default:
				// Неизвестное значение трактуется как системная тема
				p.Theme.ColorScheme = ColorSchemeSystem
			}
			return nil
		},
	},
	"serial.port": {
		get: func(p *Preferences) string { return p.Serial.Port },
		set: func(p *Preferences, v string) error { p.Serial.Port = v; return nil },
	},
	"serial.baudRate": {
		get: func(p *Preferences) string { return strconv.Itoa(p.Serial.BaudRate) },
		set: func(p *Preferences, v string) (err error) {
			p.Serial.BaudRate, err = strconv.Atoi(v)
			return err
		},
	},
	"mqtt.broker": {
		get: func(p *Preferences) string { return p.MQTT.Broker },
		set: func(p *Preferences, v string) error { p.MQTT.Broker = v; return nil },
	},
	"mqtt.topic": {
		get: func(p *Preferences) string { return p.MQTT.Topic },
		set: func(p *Preferences, v string) error { p.MQTT.Topic = v; return nil },
	},
}

// PreferenceKeys возвращает список адресуемых ключей в алфавитном порядке.
func PreferenceKeys() []string {
	keys := make([]string, 0, len(preferenceKeys))
	for k := range preferenceKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get возвращает значение ключа в текстовом виде.
func (p Preferences) Get(key string) (string, error) {
	k, ok := preferenceKeys[key]
	if !ok {
		return "", fmt.Errorf("неизвестный ключ настроек %q", key)
	}
	return k.get(&p), nil
}

// Set изменяет значение ключа с проверкой.
func (p *Preferences) Set(key, value string) error {
	k, ok := preferenceKeys[key]
	if !ok {
		return fmt.Errorf("неизвестный ключ настроек %q", key)
	}
	if err := k.set(p, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// PreferencesDraft накапливает изменения до Commit; Revert их отбрасывает.
type PreferencesDraft struct {
	base    Preferences
	pending map[string]string
	order   []string
}

// NewPreferencesDraft начинает редактирование настроек.
func NewPreferencesDraft(base Preferences) *PreferencesDraft {
	return &PreferencesDraft{base: base, pending: make(map[string]string)}
}

// Set проверяет значение и откладывает его до Commit.
func (d *PreferencesDraft) Set(key, value string) error {
	probe := d.Result()
	if err := probe.Set(key, value); err != nil {
		return err
	}
	if _, exists := d.pending[key]; !exists {
		d.order = append(d.order, key)
	}
	d.pending[key] = value
	return nil
}

// Get возвращает отложенное значение, если оно есть, иначе сохранённое.
func (d *PreferencesDraft) Get(key string) (string, error) {
	if v, ok := d.pending[key]; ok {
		return v, nil
	}
	return d.base.Get(key)
}

// HasPendingChanges сообщает о наличии несохранённых изменений.
func (d *PreferencesDraft) HasPendingChanges() bool { return len(d.pending) > 0 }

// Result возвращает настройки с применёнными отложенными изменениями.
func (d *PreferencesDraft) Result() Preferences {
	p := d.base
	for _, key := range d.order {
		_ = p.Set(key, d.pending[key])
	}
	return p
}

// Commit фиксирует изменения в базовых настройках и очищает черновик.
func (d *PreferencesDraft) Commit() Preferences {
	d.base = d.Result()
	d.Revert()
	return d.base
}

// Revert отбрасывает отложенные изменения.
func (d *PreferencesDraft) Revert() {
	d.pending = make(map[string]string)
	d.order = nil
}
