package flipper

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"fliptotp/pkg/asciitable"
)

// fakeDevice имитирует консоль TOTP-приложения: разбирает команды и хранит токены.
type fakeDevice struct {
	mu       sync.Mutex
	tokens   []deviceToken
	awaiting func(line string) string // следующий ввод - ответ на подсказку
	secrets  []string
	commands []string
	dates    []string
	clock    string

	timezone     float64
	notify       []string
	automation   []string
	layout       string
	cancelDelete bool
}

type deviceToken struct {
	name, typ, algo, encoding string
	digits, duration          int
	counter                   uint64
	features                  []string
}

var deviceAlgoNames = map[string]string{"sha1": "SHA1", "sha256": "SHA256", "sha512": "SHA512", "steam": "Steam"}

var deviceFeatureInfo = map[string]string{
	"enter":  "Type <Enter> key at the end",
	"tab":    "Type <Tab> key at the end",
	"slower": "Type slower",
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{notify: []string{"sound"}, automation: []string{"usb"}, layout: "QWERTY", clock: "2024-06-01 12:30:45 6"}
}

func (d *fakeDevice) port() *fakePort {
	return newFakePort(DefaultMarkers.EndOfCommand, d.handle)
}

func (d *fakeDevice) prompt(body string) string {
	return body + "\r\n" + DefaultMarkers.EndOfCommand
}

func (d *fakeDevice) handle(line string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if next := d.awaiting; next != nil {
		d.awaiting = nil
		return next(line)
	}

	d.commands = append(d.commands, line)
	args := splitArgs(line)
	out := line + "\r\n"
	if len(args) == 0 {
		return out + DefaultMarkers.EndOfCommand
	}

	switch args[0] {
	case "date":
		if len(args) == 1 {
			return out + d.prompt(d.clock)
		}
		d.dates = append(d.dates, strings.Join(args[1:], " "))
		if len(args) != 4 {
			return out + d.prompt("Invalid datetime value")
		}
		d.clock = strings.Join(args[1:], " ")
		return out + DefaultMarkers.EndOfCommand
	case "totp":
	default:
		return out + d.prompt(args[0]+": command not found")
	}

	if len(args) < 2 {
		return out + d.prompt("Usage: totp <command>")
	}
	switch args[1] {
	case "?":
		return out + d.prompt("Usage:\r\n  totp list")
	case "ls", "list":
		return out + d.prompt(d.renderList())
	case "info":
		i, ok := d.index(args, 2)
		if !ok {
			return out + d.prompt("Invalid token index")
		}
		return out + d.prompt(d.renderInfo(i))
	case "add":
		tok := deviceToken{typ: "totp", algo: "sha1", encoding: "base32", digits: 6, duration: 30}
		tok.name = args[2]
		d.applyFlags(&tok, args[3:])
		return out + d.askSecret(func(secret string) string {
			d.tokens = append(d.tokens, tok)
			return fmt.Sprintf("\r\nToken \"%s\" has been successfully added at index %d\r\n%s",
				tok.name, len(d.tokens), DefaultMarkers.EndOfCommand)
		})
	case "update":
		i, ok := d.index(args, 2)
		if !ok {
			return out + d.prompt("Invalid token index")
		}
		tok := d.tokens[i]
		d.applyFlags(&tok, args[3:])
		done := func() string {
			d.tokens[i] = tok
			return fmt.Sprintf("\r\nToken \"%s\" has been successfully updated\r\n%s", tok.name, DefaultMarkers.EndOfCommand)
		}
		if contains(args, "-s") {
			return out + d.askSecret(func(string) string { return done() })
		}
		return out + done()
	case "delete":
		i, ok := d.index(args, 2)
		if !ok {
			return out + d.prompt("Invalid token index")
		}
		d.awaiting = func(answer string) string {
			if d.cancelDelete || answer != "y" {
				return answer + "\r\n" + d.prompt(DefaultMarkers.CancelledByUser)
			}
			name := d.tokens[i].name
			d.tokens = append(d.tokens[:i], d.tokens[i+1:]...)
			return answer + "\r\n" + d.prompt(fmt.Sprintf("Token \"%s\" has been successfully deleted", name))
		}
		return out + fmt.Sprintf("WARNING!\r\nTOKEN \"%s\" WILL BE PERMANENTLY DELETED WITHOUT ABILITY TO RECOVER IT.\r\nConfirm? %s", d.tokens[i].name, DefaultMarkers.ConfirmPrompt)
	case "move":
		i, ok := d.index(args, 2)
		j, ok2 := d.index(args, 3)
		if !ok || !ok2 {
			return out + d.prompt("Invalid token index")
		}
		tok := d.tokens[i]
		d.tokens = append(d.tokens[:i], d.tokens[i+1:]...)
		d.tokens = append(d.tokens[:j], append([]deviceToken{tok}, d.tokens[j:]...)...)
		return out + d.prompt(fmt.Sprintf("Token \"%s\" has been successfully moved to #%d", tok.name, j+1))
	case "timezone":
		if len(args) == 2 {
			return out + d.prompt("Current timezone offset is " + strconv.FormatFloat(d.timezone, 'f', -1, 64) + " hour(s)")
		}
		v, err := strconv.ParseFloat(args[2], 64)
		if err != nil || v < -12 || v > 12 {
			return out + d.prompt("Invalid timezone offset")
		}
		d.timezone = v
		return out + d.prompt("Timezone is set to " + args[2] + " hour(s)")
	case "notify":
		if len(args) == 2 {
			return out + d.prompt("Current notification method is " + quoteAll(d.notify))
		}
		d.notify = args[2:]
		return out + d.prompt("Notification method is set to " + quoteAll(d.notify))
	case "automation":
		if len(args) == 2 {
			return out + d.prompt("Current automation method is " + quoteAll(d.automation) +
				"\r\nCurrent keyboard layout is " + d.layout)
		}
		rest := args[2:]
		if len(rest) >= 2 && rest[0] == "-k" {
			d.layout = rest[1]
			rest = rest[2:]
		}
		d.automation = rest
		return out + d.prompt("Automation method is set to " + quoteAll(d.automation))
	}
	return out + d.prompt("Invalid command")
}

func (d *fakeDevice) askSecret(done func(secret string) string) string {
	d.awaiting = func(secret string) string {
		d.secrets = append(d.secrets, secret)
		return done(secret)
	}
	return DefaultMarkers.SecretPrompt
}

func (d *fakeDevice) index(args []string, pos int) (int, bool) {
	if pos >= len(args) {
		return 0, false
	}
	n, err := strconv.Atoi(args[pos])
	if err != nil || n < 1 || n > len(d.tokens) {
		return 0, false
	}
	return n - 1, true
}

func (d *fakeDevice) applyFlags(tok *deviceToken, args []string) {
	features := []string(nil)
	for i := 0; i < len(args); i++ {
		flag := args[i]
		if flag == "-s" {
			continue
		}
		if i+1 >= len(args) {
			break
		}
		value := args[i+1]
		i++
		switch flag {
		case "-n":
			tok.name = value
		case "-t":
			tok.typ = value
		case "-a":
			tok.algo = value
		case "-e":
			tok.encoding = value
		case "-d":
			tok.digits, _ = strconv.Atoi(value)
		case "-l":
			tok.duration, _ = strconv.Atoi(value)
		case "-i":
			tok.counter, _ = strconv.ParseUint(value, 10, 64)
		case "-b":
			if value != "none" {
				features = append(features, value)
			}
		}
	}
	sort.Strings(features)
	tok.features = features
}

func (d *fakeDevice) renderList() string {
	rows := make([][]string, 0, len(d.tokens))
	for i, tok := range d.tokens {
		period := strconv.Itoa(tok.duration)
		if tok.typ == "hotp" {
			period = strconv.FormatUint(tok.counter, 10)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1), tok.name, strings.ToUpper(tok.typ), deviceAlgoNames[tok.algo],
			strconv.Itoa(tok.digits), period,
		})
	}
	return asciitable.Render([]string{"#", "Name", "Type", "Algo", "Ln", "Dur"}, rows)
}

func (d *fakeDevice) renderInfo(i int) string {
	tok := d.tokens[i]
	features := "None"
	if len(tok.features) > 0 {
		lines := make([]string, len(tok.features))
		for k, f := range tok.features {
			lines[k] = deviceFeatureInfo[f]
		}
		features = strings.Join(lines, "\n")
	}
	rows := [][]string{
		{"Index", strconv.Itoa(i + 1)},
		{"Type", strings.ToUpper(tok.typ)},
		{"Name", tok.name},
		{"Hashing algorithm", deviceAlgoNames[tok.algo]},
		{"Number of digits", strconv.Itoa(tok.digits)},
	}
	if tok.typ == "hotp" {
		rows = append(rows, []string{"Token counter", strconv.FormatUint(tok.counter, 10)})
	} else {
		rows = append(rows, []string{"Token lifetime", strconv.Itoa(tok.duration) + " sec."})
	}
	rows = append(rows, []string{"Automation features", features})
	return asciitable.Render([]string{"Property", "Value"}, rows)
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, " ")
}

// splitArgs делит строку команды на аргументы с учётом двойных кавычек.
func splitArgs(line string) []string {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		has     bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			has = true
		case r == ' ' && !inQuote:
			if has {
				args = append(args, cur.String())
				cur.Reset()
				has = false
			}
		default:
			cur.WriteRune(r)
			has = true
		}
	}
	if has {
		args = append(args, cur.String())
	}
	return args
}
