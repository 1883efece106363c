package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fliptotp/internal/app"
	"fliptotp/internal/infrastructure/logger"
)

var (
	rootCmd     *cobra.Command
	application *app.App

	logMode    string
	configPath string
	portPath   string
	baudRate   int
	timeout    time.Duration
)

func init() {
	rootCmd = &cobra.Command{
		Use:   "fliptotp",
		Short: "Flipper Zero TOTP console client",
		Long: `fliptotp manages tokens and settings of the TOTP application on a
Flipper Zero connected over USB serial.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logMode, "log", "prod", "Log mode: dev, prod or none")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Preferences file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&portPath, "port", "", "Serial port of the device (default: autodetect)")
	rootCmd.PersistentFlags().IntVar(&baudRate, "baud", 0, "Serial baud rate (default: 115200)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Overall command timeout, 0 waits until interrupted")

	rootCmd.AddCommand(
		newPortsCmd(),
		newListCmd(),
		newInfoCmd(),
		newAddCmd(),
		newUpdateCmd(),
		newRemoveCmd(),
		newMoveCmd(),
		newImportCmd(),
		newSettingsCmd(),
		newClockCmd(),
		newPrefsCmd(),
		newWatchCmd(),
		newExecCmd(),
	)
}

func setup(cmd *cobra.Command, args []string) error {
	l := logger.NewCharmLogger("fliptotp")
	l.SetMode(logMode)

	a, err := app.NewApp(app.Options{
		PreferencesPath: configPath,
		Port:            portPath,
		BaudRate:        baudRate,
		Logger:          l,
	})
	if err != nil {
		return err
	}
	application = a
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if application == nil {
		return nil
	}
	return application.Close()
}

// commandContext отменяется по Ctrl+C/SIGTERM и по --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// PersistentPostRunE не вызывается после ошибки команды
		_ = teardown(rootCmd, nil)
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}
