package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fliptotp/internal/domain/models"
)

func newPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change local preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := application.Preferences()
			if err != nil {
				return err
			}
			keys := models.PreferenceKeys()
			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				value, err := prefs.Get(key)
				if err != nil {
					return err
				}
				rows = append(rows, []string{key, value})
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Файл:", application.Prefs.Path())
			return newOutputFormatter(cmd).Table(prefs, []string{"Key", "Value"}, rows)
		},
	}

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a single preference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := application.Preferences()
			if err != nil {
				return err
			}
			value, err := prefs.Get(args[0])
			if err != nil {
				return err
			}
			out := newOutputFormatter(cmd)
			if out.jsonMode {
				return out.JSON(map[string]string{args[0]: value})
			}
			fmt.Fprintln(out.out, value)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value> [<key> <value>...]",
		Short: "Change preferences; all pairs are validated before saving",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected key/value pairs, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := application.Preferences()
			if err != nil {
				return err
			}
			draft := models.NewPreferencesDraft(prefs)
			changed := make([]string, 0, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				if err := draft.Set(args[i], args[i+1]); err != nil {
					draft.Revert()
					return err
				}
				changed = append(changed, args[i])
			}
			if err := application.Prefs.Save(draft.Commit()); err != nil {
				return err
			}
			return newOutputFormatter(cmd).Success(
				fmt.Sprintf("Сохранено: %s", strings.Join(changed, ", ")),
				map[string]interface{}{"keys": changed},
			)
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}
