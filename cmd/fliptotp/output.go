package main

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"fliptotp/pkg/asciitable"
)

// OutputFormatter выводит результат таблицей или JSON (флаг --json).
type OutputFormatter struct {
	jsonMode bool
	out      io.Writer
}

func newOutputFormatter(cmd *cobra.Command) *OutputFormatter {
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &OutputFormatter{jsonMode: jsonMode, out: cmd.OutOrStdout()}
}

// JSON печатает данные в JSON независимо от режима.
func (f *OutputFormatter) JSON(data interface{}) error {
	b, err := sonic.ConfigStd.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(f.out, string(b))
	return nil
}

// Table печатает таблицу, а в режиме JSON - data.
func (f *OutputFormatter) Table(data interface{}, header []string, rows [][]string) error {
	if f.jsonMode {
		return f.JSON(data)
	}
	if len(rows) == 0 {
		fmt.Fprintln(f.out, "(пусто)")
		return nil
	}
	fmt.Fprint(f.out, asciitable.Render(header, rows))
	return nil
}

// Success печатает сообщение об успехе (в JSON - вместе с данными).
func (f *OutputFormatter) Success(message string, data map[string]interface{}) error {
	if f.jsonMode {
		output := map[string]interface{}{
			"success": true,
			"message": message,
		}
		for k, v := range data {
			output[k] = v
		}
		return f.JSON(output)
	}
	fmt.Fprintln(f.out, message)
	return nil
}
