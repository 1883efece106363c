package flipper

import "regexp"

const (
	// FlipperVendorID и FlipperProductID - USB-идентификаторы CDC-порта Flipper Zero.
	FlipperVendorID  = "0483"
	FlipperProductID = "5740"

	DefaultBaudRate = 115200

	totpCommand = "totp"
)

// Markers собирает все строки, которыми прошивка размечает вывод консоли.
// Изменение формулировок в прошивке правится только здесь.
type Markers struct {
	EndOfCommand    string
	AskForPin       string
	CancelledByUser string
	CommandNotFound string
	EchoLine        string
	SecretPrompt    string
	ConfirmPrompt   string
	InvalidArgument string

	Added   *regexp.Regexp
	Updated *regexp.Regexp
	Deleted *regexp.Regexp
	Moved   *regexp.Regexp
	AddedAt *regexp.Regexp

	TimezoneCurrent       *regexp.Regexp
	TimezoneSet           *regexp.Regexp
	NotificationCurrent   *regexp.Regexp
	NotificationSet       *regexp.Regexp
	AutomationCurrent     *regexp.Regexp
	KeyboardLayoutCurrent *regexp.Regexp
	AutomationSet         *regexp.Regexp

	DateTimeCurrent *regexp.Regexp
}

// DefaultMarkers соответствует текущей прошивке TOTP-приложения.
var DefaultMarkers = Markers{
	EndOfCommand:    ">: ",
	AskForPin:       "Pleases enter PIN on your flipper device",
	CancelledByUser: "Cancelled by user",
	CommandNotFound: "command not found",
	EchoLine:        "\r\n",
	SecretPrompt:    "Enter token secret and confirm with [ENTER]:",
	ConfirmPrompt:   "(y/n)",
	InvalidArgument: "Invalid",

	Added:   regexp.MustCompile(`(?i)has been successfully added`),
	Updated: regexp.MustCompile(`(?i)has been successfully updated`),
	Deleted: regexp.MustCompile(`(?i)has been successfully deleted`),
	Moved:   regexp.MustCompile(`(?i)has been successfully (?:moved|updated)`),
	AddedAt: regexp.MustCompile(`(?i)at index #?(\d+)`),

	TimezoneCurrent:       regexp.MustCompile(`(?i)Current timezone offset is (-?\d+(?:\.\d+)?)`),
	TimezoneSet:           regexp.MustCompile(`(?i)Timezone is set to`),
	NotificationCurrent:   regexp.MustCompile(`(?i)Current notification method is ([^\r\n]*)`),
	NotificationSet:       regexp.MustCompile(`(?i)Notification method is set to`),
	AutomationCurrent:     regexp.MustCompile(`(?i)Current automation method is ([^\r\n]*)`),
	KeyboardLayoutCurrent: regexp.MustCompile(`(?i)Current keyboard layout is (\S+)`),
	AutomationSet:         regexp.MustCompile(`(?i)Automation method is set to`),

	DateTimeCurrent: regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`),
}
