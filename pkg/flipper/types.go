package flipper

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// TokenType - алгоритм одноразового пароля.
type TokenType string

const (
	TokenTOTP TokenType = "totp"
	TokenHOTP TokenType = "hotp"
)

// HashingAlgo - хэш-функция токена.
type HashingAlgo string

const (
	AlgoSHA1   HashingAlgo = "sha1"
	AlgoSHA256 HashingAlgo = "sha256"
	AlgoSHA512 HashingAlgo = "sha512"
	AlgoSteam  HashingAlgo = "steam"
)

// SecretEncoding - кодировка секрета при передаче на устройство.
type SecretEncoding string

const (
	EncodingBase32 SecretEncoding = "base32"
	EncodingBase64 SecretEncoding = "base64"
)

// AutomationFeature - набор дополнительных действий при вводе кода с устройства.
type AutomationFeature uint8

const (
	AutomationEnter AutomationFeature = 1 << iota
	AutomationTab
	AutomationSlower

	AutomationNone AutomationFeature = 0
)

var automationFeatureNames = []struct {
	flag AutomationFeature
	arg  string
	info string
}{
	{AutomationEnter, "enter", "Type <Enter> key at the end"},
	{AutomationTab, "tab", "Type <Tab> key at the end"},
	{AutomationSlower, "slower", "Type slower"},
}

func (f AutomationFeature) Has(flag AutomationFeature) bool { return f&flag == flag && flag != 0 }

// Args возвращает значения для флагов -b команды add/update.
func (f AutomationFeature) Args() []string {
	var args []string
	for _, n := range automationFeatureNames {
		if f.Has(n.flag) {
			args = append(args, n.arg)
		}
	}
	if len(args) == 0 {
		return []string{"none"}
	}
	return args
}

func (f AutomationFeature) String() string { return strings.Join(f.Args(), ",") }

// parseAutomationFeatures разбирает строки ячейки "Automation features".
func parseAutomationFeatures(value string) AutomationFeature {
	var f AutomationFeature
	for _, line := range strings.Split(value, "\n") {
		line = strings.TrimSpace(line)
		for _, n := range automationFeatureNames {
			if strings.EqualFold(line, n.info) || strings.EqualFold(line, n.arg) {
				f |= n.flag
			}
		}
	}
	return f
}

// ParseAutomationFeatures разбирает слова enter/tab/slower/none.
func ParseAutomationFeatures(text string) (AutomationFeature, error) {
	var f AutomationFeature
	for _, word := range words(text) {
		if word == "none" {
			continue
		}
		matched := false
		for _, n := range automationFeatureNames {
			if word == n.arg {
				f |= n.flag
				matched = true
			}
		}
		if !matched {
			return 0, fmt.Errorf("unknown automation feature %q", word)
		}
	}
	return f, nil
}

// ValidDigits - длины кода, которые поддерживает прошивка.
var ValidDigits = []int{5, 6, 8}

// TokenRecord - токен на устройстве или подготовленный к добавлению.
// ID <= 0 - токен ещё не создан на устройстве. Secret только для записи:
// устройство никогда его не возвращает.
type TokenRecord struct {
	ID             int               `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	Type           TokenType         `json:"type" yaml:"type"`
	Algorithm      HashingAlgo       `json:"algorithm" yaml:"algorithm"`
	Digits         int               `json:"digits" yaml:"digits"`
	Duration       int               `json:"duration,omitempty" yaml:"duration,omitempty"`
	Counter        uint64            `json:"counter,omitempty" yaml:"counter,omitempty"`
	Secret         string            `json:"-" yaml:"-"`
	SecretEncoding SecretEncoding    `json:"secretEncoding,omitempty" yaml:"secretEncoding,omitempty"`
	Automation     AutomationFeature `json:"automation" yaml:"automation"`
}

// Normalize заполняет умолчания: TOTP, SHA1, 6 цифр, 30 секунд, base32. Steam всегда 5 цифр.
func (t *TokenRecord) Normalize() {
	if t.Type == "" {
		t.Type = TokenTOTP
	}
	if t.Algorithm == "" {
		t.Algorithm = AlgoSHA1
	}
	if t.SecretEncoding == "" {
		t.SecretEncoding = EncodingBase32
	}
	if t.Algorithm == AlgoSteam {
		t.Digits = 5
	}
	if t.Digits == 0 {
		t.Digits = 6
	}
	if t.Type == TokenTOTP && t.Duration == 0 {
		t.Duration = 30
	}
}

// Validate проверяет поля перед отправкой на устройство.
func (t TokenRecord) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidToken)
	}
	if strings.ContainsRune(t.Name, '"') {
		return fmt.Errorf("%w: name must not contain double quotes", ErrInvalidToken)
	}
	switch t.Type {
	case TokenTOTP:
		if t.Duration <= 0 {
			return fmt.Errorf("%w: duration must be positive", ErrInvalidToken)
		}
	case TokenHOTP:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidToken, t.Type)
	}
	switch t.Algorithm {
	case AlgoSHA1, AlgoSHA256, AlgoSHA512:
	case AlgoSteam:
		if t.Digits != 5 {
			return fmt.Errorf("%w: steam tokens have 5 digits", ErrInvalidToken)
		}
	default:
		return fmt.Errorf("%w: unknown algorithm %q", ErrInvalidToken, t.Algorithm)
	}
	validDigits := false
	for _, d := range ValidDigits {
		if t.Digits == d {
			validDigits = true
		}
	}
	if !validDigits {
		return fmt.Errorf("%w: digits must be one of %v", ErrInvalidToken, ValidDigits)
	}
	switch t.SecretEncoding {
	case EncodingBase32, EncodingBase64, "":
	default:
		return fmt.Errorf("%w: unknown secret encoding %q", ErrInvalidToken, t.SecretEncoding)
	}
	return nil
}

// NotificationMethod - способ уведомления о вводе кода.
type NotificationMethod uint8

const (
	NotifySound NotificationMethod = 1 << iota
	NotifyVibro

	NotifyNone NotificationMethod = 0
)

// AutomationTransport - канал автоматического ввода кода.
type AutomationTransport uint8

const (
	TransportUSB AutomationTransport = 1 << iota
	TransportBluetooth

	TransportNone AutomationTransport = 0
)

var notificationNames = []struct {
	flag NotificationMethod
	name string
}{
	{NotifySound, "sound"},
	{NotifyVibro, "vibro"},
}

var transportNames = []struct {
	flag    AutomationTransport
	name    string
	aliases []string
}{
	{TransportUSB, "usb", nil},
	{TransportBluetooth, "bt", []string{"bluetooth"}},
}

// Args возвращает аргументы команды "totp notify".
func (n NotificationMethod) Args() []string {
	var args []string
	for _, v := range notificationNames {
		if n&v.flag != 0 {
			args = append(args, v.name)
		}
	}
	if len(args) == 0 {
		return []string{"none"}
	}
	return args
}

func (n NotificationMethod) String() string { return strings.Join(n.Args(), ",") }

// Args возвращает аргументы команды "totp automation".
func (a AutomationTransport) Args() []string {
	var args []string
	for _, v := range transportNames {
		if a&v.flag != 0 {
			args = append(args, v.name)
		}
	}
	if len(args) == 0 {
		return []string{"none"}
	}
	return args
}

func (a AutomationTransport) String() string { return strings.Join(a.Args(), ",") }

// ParseNotificationMethod разбирает слова sound/vibro/none в любом регистре и с кавычками.
func ParseNotificationMethod(text string) (NotificationMethod, error) {
	var n NotificationMethod
	for _, word := range words(text) {
		if word == "none" {
			continue
		}
		matched := false
		for _, v := range notificationNames {
			if word == v.name {
				n |= v.flag
				matched = true
			}
		}
		if !matched {
			return 0, fmt.Errorf("unknown notification method %q", word)
		}
	}
	return n, nil
}

// ParseAutomationTransport разбирает слова usb/bt/none.
func ParseAutomationTransport(text string) (AutomationTransport, error) {
	var a AutomationTransport
	for _, word := range words(text) {
		if word == "none" {
			continue
		}
		matched := false
		for _, v := range transportNames {
			if word == v.name || contains(v.aliases, word) {
				a |= v.flag
				matched = true
			}
		}
		if !matched {
			return 0, fmt.Errorf("unknown automation method %q", word)
		}
	}
	return a, nil
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DeviceSettings - настройки TOTP-приложения на устройстве.
type DeviceSettings struct {
	TimezoneOffsetHours float64             `json:"timezoneOffsetHours" yaml:"timezoneOffsetHours"`
	Notification        NotificationMethod  `json:"notification" yaml:"notification"`
	Automation          AutomationTransport `json:"automation" yaml:"automation"`
	KeyboardLayout      string              `json:"keyboardLayout,omitempty" yaml:"keyboardLayout,omitempty"`
}

// FoldName приводит имя токена к печатному ASCII: диакритика снимается,
// остальные символы вне ASCII заменяются на '?'.
func FoldName(name string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	for _, r := range folded {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteByte(' ')
		case r < 0x20 || r == 0x7f:
		case r > 0x7e:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
