package importer

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"fliptotp/pkg/flipper"
)

// ErrInvalidURI - базовая ошибка разбора otpauth:// ссылки.
var ErrInvalidURI = errors.New("invalid otpauth:// URI")

// steamIssuer - метка, которой steamctl помечает токены Steam.
const steamIssuer = "steamctl"

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidURI, reason)
}

// ParseURI разбирает ссылку формата Key URI (otpauth://TYPE/LABEL?PARAMS).
// Умолчания: 6 цифр, SHA1, период 30 с. Для HOTP счётчик обязателен.
func ParseURI(raw string) (flipper.TokenRecord, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return flipper.TokenRecord{}, invalid(err.Error())
	}
	if u.Scheme != "otpauth" {
		return flipper.TokenRecord{}, invalid("protocol must be otpauth")
	}

	var t flipper.TokenRecord
	switch flipper.TokenType(strings.ToLower(u.Host)) {
	case flipper.TokenTOTP:
		t.Type = flipper.TokenTOTP
	case flipper.TokenHOTP:
		t.Type = flipper.TokenHOTP
	default:
		return flipper.TokenRecord{}, invalid(fmt.Sprintf("unknown otp type %q", u.Host))
	}

	// Метка: "account" или "issuer:account" (url.Parse уже раскодировал %3A)
	label := strings.TrimPrefix(u.Path, "/")
	parts := strings.Split(label, ":")
	var issuer, account string
	switch len(parts) {
	case 1:
		account = parts[0]
	case 2:
		issuer = parts[0]
		account = strings.TrimSpace(parts[1])
		if issuer == "" {
			return flipper.TokenRecord{}, invalid("empty issuer in label")
		}
	default:
		return flipper.TokenRecord{}, invalid("label contains more than one colon")
	}
	if account == "" {
		return flipper.TokenRecord{}, invalid("missing account name")
	}

	q := u.Query()

	if !q.Has("secret") {
		return flipper.TokenRecord{}, invalid("missing secret")
	}
	t.Secret = q.Get("secret")

	if p := q.Get("issuer"); q.Has("issuer") && issuer != "" && p != issuer && issuer != steamIssuer {
		return flipper.TokenRecord{}, invalid(fmt.Sprintf("issuer %q does not match label issuer %q", p, issuer))
	}
	if p := q.Get("issuer"); p != "" {
		issuer = p
	}

	t.Digits = 6
	if q.Has("digits") {
		d, _ := strconv.Atoi(q.Get("digits"))
		if !validDigits(d) {
			return flipper.TokenRecord{}, invalid(fmt.Sprintf("unsupported digits %q", q.Get("digits")))
		}
		t.Digits = d
	}

	t.Algorithm = flipper.AlgoSHA1
	if q.Has("algorithm") {
		algo, ok := parseAlgorithm(q.Get("algorithm"))
		if !ok {
			return flipper.TokenRecord{}, invalid(fmt.Sprintf("unknown algorithm %q", q.Get("algorithm")))
		}
		t.Algorithm = algo
	} else if issuer == steamIssuer || parts[0] == steamIssuer {
		t.Algorithm = flipper.AlgoSteam
	}

	switch t.Type {
	case flipper.TokenTOTP:
		if q.Has("period") {
			t.Duration, _ = strconv.Atoi(q.Get("period"))
		}
	case flipper.TokenHOTP:
		if !q.Has("counter") {
			return flipper.TokenRecord{}, invalid("missing counter")
		}
		t.Counter, _ = strconv.ParseUint(q.Get("counter"), 10, 64)
	}

	t.Name = accountName(issuer, account)
	t.Normalize()
	return t, nil
}

// accountName формирует имя токена "Issuer (account)".
func accountName(issuer, account string) string {
	switch {
	case issuer != "" && account != "":
		return fmt.Sprintf("%s (%s)", issuer, account)
	case account != "":
		return account
	default:
		return issuer
	}
}

func validDigits(d int) bool {
	for _, v := range flipper.ValidDigits {
		if d == v {
			return true
		}
	}
	return false
}

func parseAlgorithm(s string) (flipper.HashingAlgo, bool) {
	switch strings.ToUpper(s) {
	case "SHA1":
		return flipper.AlgoSHA1, true
	case "SHA256":
		return flipper.AlgoSHA256, true
	case "SHA512":
		return flipper.AlgoSHA512, true
	case "STEAM":
		return flipper.AlgoSteam, true
	}
	return "", false
}
