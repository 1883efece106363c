package tokens

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fliptotp/internal/importer"
	"fliptotp/internal/infrastructure/logger"
	"fliptotp/internal/service/servicetest"
	"fliptotp/pkg/flipper"
)

func newService(t *testing.T) (*TokenService, *servicetest.Device) {
	t.Helper()
	d := servicetest.New()
	d.Tokens = []flipper.TokenRecord{
		{Name: "GitHub", Type: flipper.TokenTOTP, Algorithm: flipper.AlgoSHA1, Digits: 6, Duration: 30},
		{Name: "Mail", Type: flipper.TokenTOTP, Algorithm: flipper.AlgoSHA256, Digits: 8, Duration: 60},
	}
	return NewTokenService(d, time.Minute, logger.Discard{}), d
}

func TestListCache(t *testing.T) {
	s, d := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		items, err := s.List(ctx, false)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(items) != 2 || items[1].ID != 2 {
			t.Fatalf("список: %+v", items)
		}
	}
	if n := d.Count("ListTokens"); n != 1 {
		t.Errorf("устройство опрошено %d раз, ожидался 1 (кэш)", n)
	}

	if _, err := s.List(ctx, true); err != nil {
		t.Fatal(err)
	}
	if n := d.Count("ListTokens"); n != 2 {
		t.Errorf("refresh не обошёл кэш: %d", n)
	}
}

func TestWritesInvalidateCache(t *testing.T) {
	tests := []struct {
		name string
		op   func(s *TokenService) error
		want int
	}{
		{name: "add", op: func(s *TokenService) error {
			_, err := s.Add(context.Background(), flipper.TokenRecord{Name: "New", Secret: "AAAA"})
			return err
		}, want: 3},
		{name: "remove", op: func(s *TokenService) error { return s.Remove(context.Background(), 1) }, want: 1},
		{name: "move", op: func(s *TokenService) error { return s.Move(context.Background(), 2, 1) }, want: 2},
		{name: "update", op: func(s *TokenService) error {
			return s.Update(context.Background(), flipper.TokenRecord{ID: 1, Name: "Renamed"})
		}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, d := newService(t)
			if _, err := s.List(context.Background(), false); err != nil {
				t.Fatal(err)
			}
			if err := tt.op(s); err != nil {
				t.Fatalf("операция: %v", err)
			}
			items, _ := s.List(context.Background(), false)
			if len(items) != tt.want {
				t.Errorf("после операции %d токенов, ожидалось %d", len(items), tt.want)
			}
			if n := d.Count("ListTokens"); n != 2 {
				t.Errorf("кэш не сброшен: ListTokens вызван %d раз", n)
			}
		})
	}
}

func TestAddNormalizes(t *testing.T) {
	s, d := newService(t)
	if _, err := s.Add(context.Background(), flipper.TokenRecord{Name: "Defaults", Secret: "AAAA"}); err != nil {
		t.Fatal(err)
	}
	got := d.Tokens[2]
	if got.Type != flipper.TokenTOTP || got.Digits != 6 || got.Duration != 30 || got.Algorithm != flipper.AlgoSHA1 {
		t.Errorf("умолчания не применены: %+v", got)
	}
}

func TestResolve(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	tests := map[string]int{"2": 2, "github": 1, "MAIL": 2}
	for ref, want := range tests {
		got, err := s.Resolve(ctx, ref)
		if err != nil || got != want {
			t.Errorf("Resolve(%q) = %d, %v; ожидалось %d", ref, got, err, want)
		}
	}
	if _, err := s.Resolve(ctx, "absent"); err == nil {
		t.Error("ожидалась ошибка для неизвестного имени")
	}
}

func TestImport(t *testing.T) {
	s, d := newService(t)
	input := strings.Join([]string{
		"otpauth://totp/GitHub?secret=AAAA",
		"otpauth://totp/Bank:me?secret=BBBB&issuer=Bank",
		"not-a-uri",
		"otpauth://hotp/Counter?secret=CCCC&counter=5",
		"otpauth://totp/Bank:me?secret=DDDD",
	}, "\n")

	res, err := s.Import(context.Background(), importer.URIList{}, strings.NewReader(input))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Added) != 2 || res.Added[0] != 3 || res.Added[1] != 4 {
		t.Errorf("добавлены %v", res.Added)
	}
	if len(res.Duplicates) != 2 {
		t.Errorf("дубликаты: %v", res.Duplicates)
	}
	if len(res.Errors) != 1 {
		t.Errorf("ошибки: %v", res.Errors)
	}
	if d.Tokens[2].Name != "Bank (me)" || d.Tokens[2].Secret != "BBBB" {
		t.Errorf("импортирован %+v", d.Tokens[2])
	}
}

func TestImportStopsOnUserCancel(t *testing.T) {
	s, d := newService(t)
	d.Errors["AddToken"] = flipper.ErrUserCancelled

	input := "otpauth://totp/A?secret=AAAA\notpauth://totp/B?secret=BBBB"
	_, err := s.Import(context.Background(), importer.URIList{}, strings.NewReader(input))
	if !errors.Is(err, flipper.ErrUserCancelled) {
		t.Fatalf("ожидалась ErrUserCancelled, получено %v", err)
	}
	if n := d.Count("AddToken"); n != 1 {
		t.Errorf("после отказа выполнено %d добавлений", n)
	}
}
