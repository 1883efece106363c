package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"fliptotp/internal/importer"
	"fliptotp/pkg/flipper"
)

func newListCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tokens stored on the device",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			items, err := application.Tokens.List(ctx, refresh)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(items))
			for _, t := range items {
				lifetime := strconv.Itoa(t.Duration)
				if t.Type == flipper.TokenHOTP {
					lifetime = strconv.FormatUint(t.Counter, 10)
				}
				rows = append(rows, []string{strconv.Itoa(t.ID), t.Name, string(t.Type), string(t.Algorithm), strconv.Itoa(t.Digits), lifetime})
			}
			return newOutputFormatter(cmd).Table(items, []string{"#", "Name", "Type", "Algo", "Ln", "Dur/Ctr"}, rows)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the token list cache")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <id|name>",
		Short: "Show token details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			id, err := application.Tokens.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			t, err := application.Tokens.Get(ctx, id)
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Index", strconv.Itoa(t.ID)},
				{"Name", t.Name},
				{"Type", string(t.Type)},
				{"Hashing algorithm", string(t.Algorithm)},
				{"Number of digits", strconv.Itoa(t.Digits)},
			}
			if t.Type == flipper.TokenHOTP {
				rows = append(rows, []string{"Token counter", strconv.FormatUint(t.Counter, 10)})
			} else {
				rows = append(rows, []string{"Token lifetime", fmt.Sprintf("%d sec.", t.Duration)})
			}
			rows = append(rows, []string{"Automation features", strings.Join(t.Automation.Args(), "\n")})
			return newOutputFormatter(cmd).Table(t, []string{"Property", "Value"}, rows)
		},
	}
}

// tokenFlags - общие флаги add/update.
type tokenFlags struct {
	name     string
	typ      string
	algo     string
	encoding string
	digits   int
	duration int
	counter  uint64
	features string
	secret   string
}

func (f *tokenFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "Token name")
	cmd.Flags().StringVarP(&f.typ, "type", "t", "", "Token type: totp or hotp (default totp)")
	cmd.Flags().StringVarP(&f.algo, "algo", "a", "", "Hashing algorithm: sha1, sha256, sha512 or steam (default sha1)")
	cmd.Flags().StringVarP(&f.encoding, "encoding", "e", "", "Secret encoding: base32 or base64 (default base32)")
	cmd.Flags().IntVarP(&f.digits, "digits", "d", 0, "Number of digits: 5, 6 or 8 (default 6)")
	cmd.Flags().IntVarP(&f.duration, "duration", "l", 0, "TOTP lifetime in seconds (default 30)")
	cmd.Flags().Uint64VarP(&f.counter, "counter", "i", 0, "HOTP initial counter")
	cmd.Flags().StringVarP(&f.features, "features", "b", "", "Automation features: enter, tab, slower or none")
	cmd.Flags().StringVarP(&f.secret, "secret", "s", "", `Token secret; "-" reads it from stdin`)
}

// apply переносит заданные флаги в запись. Незаданные поля не меняются.
func (f *tokenFlags) apply(cmd *cobra.Command, t *flipper.TokenRecord) error {
	flags := cmd.Flags()
	if flags.Changed("name") {
		t.Name = f.name
	}
	if flags.Changed("type") {
		t.Type = flipper.TokenType(strings.ToLower(f.typ))
	}
	if flags.Changed("algo") {
		t.Algorithm = flipper.HashingAlgo(strings.ToLower(f.algo))
	}
	if flags.Changed("encoding") {
		t.SecretEncoding = flipper.SecretEncoding(strings.ToLower(f.encoding))
	}
	if flags.Changed("digits") {
		t.Digits = f.digits
	}
	if flags.Changed("duration") {
		t.Duration = f.duration
	}
	if flags.Changed("counter") {
		t.Counter = f.counter
	}
	if flags.Changed("features") {
		features, err := flipper.ParseAutomationFeatures(f.features)
		if err != nil {
			return err
		}
		t.Automation = features
	}
	if flags.Changed("secret") {
		secret, err := readSecret(cmd, f.secret)
		if err != nil {
			return err
		}
		t.Secret = secret
	}
	return nil
}

func readSecret(cmd *cobra.Command, value string) (string, error) {
	if value != "-" {
		return value, nil
	}
	fmt.Fprint(os.Stderr, "Secret: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("не удалось прочитать секрет: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newAddCmd() *cobra.Command {
	var f tokenFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a token; confirm with PIN on the device if asked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var t flipper.TokenRecord
			if err := f.apply(cmd, &t); err != nil {
				return err
			}
			if t.Secret == "" {
				return fmt.Errorf("secret is required (--secret or --secret -)")
			}
			t.Normalize()
			if err := t.Validate(); err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()
			id, err := application.Tokens.Add(ctx, t)
			if err != nil {
				return err
			}
			return newOutputFormatter(cmd).Success(fmt.Sprintf("Токен %q добавлен (#%d)", t.Name, id), map[string]interface{}{"id": id})
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var f tokenFlags
	cmd := &cobra.Command{
		Use:   "update <id|name>",
		Short: "Update a token; omitted flags keep current values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			id, err := application.Tokens.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			t, err := application.Tokens.Get(ctx, id)
			if err != nil {
				return err
			}
			if err := f.apply(cmd, &t); err != nil {
				return err
			}
			t.Normalize()
			if err := t.Validate(); err != nil {
				return err
			}
			if err := application.Tokens.Update(ctx, t); err != nil {
				return err
			}
			return newOutputFormatter(cmd).Success(fmt.Sprintf("Токен #%d обновлён", id), map[string]interface{}{"id": id})
		},
	}
	f.register(cmd)
	return cmd
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id|name>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a token",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			id, err := application.Tokens.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			if err := application.Tokens.Remove(ctx, id); err != nil {
				return err
			}
			return newOutputFormatter(cmd).Success(fmt.Sprintf("Токен #%d удалён", id), map[string]interface{}{"id": id})
		},
	}
}

func newMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "move <id|name> <new-id>",
		Aliases: []string{"mv"},
		Short:   "Move a token to a new position",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			newID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("некорректная позиция %q", args[1])
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			id, err := application.Tokens.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			if err := application.Tokens.Move(ctx, id, newID); err != nil {
				return err
			}
			return newOutputFormatter(cmd).Success(fmt.Sprintf("Токен #%d перемещён на позицию %d", id, newID), nil)
		},
	}
}

func newImportCmd() *cobra.Command {
	var charsetLabel string
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import tokens from a list of otpauth:// URIs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			imp := importer.URIList{Charset: charsetLabel, Logger: application.Logger}
			res, err := application.Tokens.Import(ctx, imp, in)
			if err != nil {
				return err
			}

			errs := make([]string, len(res.Errors))
			for i, e := range res.Errors {
				errs[i] = e.Error()
			}
			return newOutputFormatter(cmd).Success(
				fmt.Sprintf("Добавлено: %d, пропущено дубликатов: %d, ошибок: %d", len(res.Added), len(res.Duplicates), len(res.Errors)),
				map[string]interface{}{"added": res.Added, "duplicates": res.Duplicates, "errors": errs},
			)
		},
	}
	cmd.Flags().StringVar(&charsetLabel, "charset", "", "Input charset label, e.g. windows-1251 (default: detect)")
	return cmd
}
