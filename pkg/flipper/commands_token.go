package flipper

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"fliptotp/pkg/asciitable"
)

// runner - Execute клиента или сессии.
type runner func(ctx context.Context, req Request) (Response, error)

// checked выполняет команду; отмена на устройстве превращается в ErrUserCancelled.
func checked(ctx context.Context, run runner, req Request) (Response, error) {
	resp, err := run(ctx, req)
	if err != nil {
		return resp, err
	}
	if resp.Cancelled {
		return resp, ErrUserCancelled
	}
	return resp, nil
}

func (c *flipperClient) request(text string) Request {
	req := DefaultRequest(text)
	req.EndMarker = Literal(c.markers.EndOfCommand)
	return req
}

// promptOrEnd - подсказка устройства или обычное приглашение, если подсказки не будет.
func (c *flipperClient) promptOrEnd(prompt string) Pattern {
	return NewPattern("(" + regexp.QuoteMeta(prompt) + ")|(" + regexp.QuoteMeta(c.markers.EndOfCommand) + ")")
}

// ListTokens читает список токенов ("totp ls").
func (c *flipperClient) ListTokens(ctx context.Context) ([]TokenRecord, error) {
	resp, err := checked(ctx, c.Execute, c.request(totpCommand+" ls"))
	if err != nil {
		return nil, err
	}
	rows := asciitable.Parse(resp.Text, asciitable.WithMultiline(false), asciitable.WithLogger(c.logger))
	tokens := make([]TokenRecord, 0, len(rows))
	for _, row := range rows {
		tokens = append(tokens, tokenFromListRow(row))
	}
	return tokens, nil
}

// GetToken читает подробности токена ("totp info <id>").
func (c *flipperClient) GetToken(ctx context.Context, id int) (TokenRecord, error) {
	resp, err := checked(ctx, c.Execute, c.request(fmt.Sprintf("%s info %d", totpCommand, id)))
	if err != nil {
		return TokenRecord{}, err
	}
	rows := asciitable.Parse(resp.Text, asciitable.WithLogger(c.logger))
	if len(rows) == 0 {
		return TokenRecord{}, protocolError("info", "no token details in reply", resp.Raw)
	}
	token := tokenFromInfoRows(rows)
	if token.ID == 0 {
		token.ID = id
	}
	return token, nil
}

// AddToken создаёт токен и возвращает его индекс (0, если устройство его не сообщило).
func (c *flipperClient) AddToken(ctx context.Context, token TokenRecord) (int, error) {
	token.Normalize()
	if err := token.Validate(); err != nil {
		return 0, err
	}
	if token.Secret == "" {
		return 0, fmt.Errorf("%w: secret is required", ErrInvalidToken)
	}

	var id int
	err := c.Session(ctx, func(s *Session) error {
		resp, err := c.sendWithSecret(ctx, s, "add", buildAddCommand(token), token.Secret)
		if err != nil {
			return err
		}
		if !c.markers.Added.MatchString(resp.Raw) {
			return protocolError("add", "no success confirmation", resp.Raw)
		}
		if m := c.markers.AddedAt.FindStringSubmatch(resp.Raw); m != nil {
			id, _ = strconv.Atoi(m[1])
		}
		return nil
	})
	return id, err
}

// UpdateToken изменяет токен. Секрет передаётся, только если он задан.
func (c *flipperClient) UpdateToken(ctx context.Context, token TokenRecord) error {
	if token.ID <= 0 {
		return fmt.Errorf("%w: token is not on device", ErrInvalidToken)
	}
	token.Normalize()
	if err := token.Validate(); err != nil {
		return err
	}

	return c.Session(ctx, func(s *Session) error {
		command := buildUpdateCommand(token)
		var (
			resp Response
			err  error
		)
		if token.Secret != "" {
			resp, err = c.sendWithSecret(ctx, s, "update", command, token.Secret)
		} else {
			resp, err = checked(ctx, s.Execute, c.request(command))
		}
		if err != nil {
			return err
		}
		if !c.markers.Updated.MatchString(resp.Raw) {
			return protocolError("update", "no success confirmation", resp.Raw)
		}
		return nil
	})
}

// sendWithSecret - двухфазная команда: дождаться запроса секрета и отправить его.
func (c *flipperClient) sendWithSecret(ctx context.Context, s *Session, op, command, secret string) (Response, error) {
	first := c.request(command)
	first.EndMarker = c.promptOrEnd(c.markers.SecretPrompt)
	first.TrimEndMarker = false

	resp, err := checked(ctx, s.Execute, first)
	if err != nil {
		return resp, err
	}
	if !strings.Contains(resp.Raw, c.markers.SecretPrompt) {
		return resp, protocolError(op, "device did not ask for secret", resp.Raw)
	}

	second := c.request(secret)
	second.SkipEchoLine = false
	second.Sensitive = true
	resp, err = checked(ctx, s.Execute, second)
	// Эхо секрета не должно попасть в ProtocolError.Raw
	if secret != "" {
		resp.Raw = strings.ReplaceAll(resp.Raw, secret, redacted)
		resp.Text = strings.ReplaceAll(resp.Text, secret, redacted)
	}
	return resp, err
}

// RemoveToken удаляет токен с подтверждением "y".
func (c *flipperClient) RemoveToken(ctx context.Context, id int) error {
	return c.Session(ctx, func(s *Session) error {
		first := c.request(fmt.Sprintf("%s delete %d", totpCommand, id))
		first.EndMarker = c.promptOrEnd(c.markers.ConfirmPrompt)
		first.TrimEndMarker = false

		resp, err := checked(ctx, s.Execute, first)
		if err != nil {
			return err
		}
		if strings.Contains(resp.Raw, c.markers.ConfirmPrompt) {
			confirm := c.request("y")
			confirm.SkipEchoLine = false
			if resp, err = checked(ctx, s.Execute, confirm); err != nil {
				return err
			}
		}
		if !c.markers.Deleted.MatchString(resp.Raw) {
			return protocolError("delete", "no success confirmation", resp.Raw)
		}
		return nil
	})
}

// MoveToken переносит токен на новую позицию.
func (c *flipperClient) MoveToken(ctx context.Context, id, newID int) error {
	resp, err := checked(ctx, c.Execute, c.request(fmt.Sprintf("%s move %d %d", totpCommand, id, newID)))
	if err != nil {
		return err
	}
	if !c.markers.Moved.MatchString(resp.Raw) {
		return protocolError("move", "no success confirmation", resp.Raw)
	}
	return nil
}

func buildAddCommand(t TokenRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s add \"%s\"", totpCommand, FoldName(t.Name))
	writeTokenFlags(&b, t)
	return b.String()
}

func buildUpdateCommand(t TokenRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s update %d -n \"%s\"", totpCommand, t.ID, FoldName(t.Name))
	writeTokenFlags(&b, t)
	if t.Secret != "" {
		b.WriteString(" -s")
	}
	return b.String()
}

func writeTokenFlags(b *strings.Builder, t TokenRecord) {
	fmt.Fprintf(b, " -t %s -a %s", t.Type, t.Algorithm)
	if t.Secret != "" {
		fmt.Fprintf(b, " -e %s", t.SecretEncoding)
	}
	fmt.Fprintf(b, " -d %d", t.Digits)
	if t.Type == TokenHOTP {
		fmt.Fprintf(b, " -i %d", t.Counter)
	} else {
		fmt.Fprintf(b, " -l %d", t.Duration)
	}
	for _, arg := range t.Automation.Args() {
		fmt.Fprintf(b, " -b %s", arg)
	}
}

func tokenFromListRow(row asciitable.Row) TokenRecord {
	var (
		t         TokenRecord
		period    uint64
		hasPeriod bool
	)
	for i, key := range row.Keys {
		value := row.Values[i]
		switch key {
		case "#":
			setInt(&t.ID, value)
		case "Name":
			t.Name = value
		case "Type":
			t.Type = TokenType(strings.ToLower(value))
		case "Algo":
			t.Algorithm = HashingAlgo(strings.ToLower(value))
		case "Ln":
			setInt(&t.Digits, value)
		case "Dur", "Ctr", "Dur/Ctr":
			period, hasPeriod = leadingUint(value)
		}
	}
	if hasPeriod {
		if t.Type == TokenHOTP {
			t.Counter = period
		} else if period <= math.MaxInt32 {
			t.Duration = int(period)
		}
	}
	return t
}

func tokenFromInfoRows(rows []asciitable.Row) TokenRecord {
	var t TokenRecord
	for _, row := range rows {
		label, _ := row.Get("Property")
		value, _ := row.Get("Value")
		switch label {
		case "Index":
			setInt(&t.ID, value)
		case "Type":
			t.Type = TokenType(strings.ToLower(value))
		case "Name":
			t.Name = value
		case "Hashing algorithm":
			t.Algorithm = HashingAlgo(strings.ToLower(value))
		case "Number of digits":
			setInt(&t.Digits, value)
		case "Token lifetime":
			setInt(&t.Duration, value)
		case "Token counter":
			if n, ok := leadingUint(value); ok {
				t.Counter = n
			}
		case "Automation features":
			t.Automation = parseAutomationFeatures(value)
		}
	}
	return t
}

// leadingUint разбирает число в начале строки ("30 sec." -> 30).
// ok=false, если строка не начинается с цифры: поле остаётся незаполненным.
func leadingUint(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseUint(s[:end], 10, 64)
	return n, err == nil
}

// setInt присваивает число, только если оно разобрано и помещается в int.
func setInt(dst *int, s string) {
	if n, ok := leadingUint(s); ok && n <= math.MaxInt32 {
		*dst = int(n)
	}
}
