package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fliptotp/internal/infrastructure/mqtt"
	"fliptotp/internal/service/monitor"
	"fliptotp/pkg/flipper"
)

func newPortsCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "ports",
		Short: "List connected Flipper devices (or all serial ports with --all)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutputFormatter(cmd)
			if all {
				list, err := application.Connection.GetSystemPorts()
				if err != nil {
					return err
				}
				rows := make([][]string, len(list))
				for i, p := range list {
					rows[i] = []string{p}
				}
				return out.Table(list, []string{"Port"}, rows)
			}

			devices, err := application.Connection.GetDevices()
			if err != nil {
				return err
			}
			rows := make([][]string, len(devices))
			for i, d := range devices {
				rows[i] = []string{d.Path, d.SerialNumber, d.Product}
			}
			return out.Table(devices, []string{"Port", "Serial", "Product"}, rows)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "List every serial port in the system")
	return cmd
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change device settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			s, err := application.Settings.Read(ctx)
			if err != nil {
				return err
			}
			return newOutputFormatter(cmd).Table(s, []string{"Setting", "Value"}, [][]string{
				{"Timezone", strconv.FormatFloat(s.TimezoneOffsetHours, 'f', -1, 64)},
				{"Notification", strings.Join(s.Notification.Args(), " ")},
				{"Automation", strings.Join(s.Automation.Args(), " ")},
				{"Keyboard layout", s.KeyboardLayout},
			})
		},
	}

	var (
		timezone   float64
		notify     string
		automation string
		layout     string
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change device settings; unchanged values are not sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			ctx, cancel := commandContext(cmd)
			defer cancel()

			changes, err := application.Settings.Update(ctx, func(s *flipper.DeviceSettings) error {
				if flags.Changed("timezone") {
					s.TimezoneOffsetHours = timezone
				}
				if flags.Changed("notify") {
					n, err := flipper.ParseNotificationMethod(notify)
					if err != nil {
						return err
					}
					s.Notification = n
				}
				if flags.Changed("automation") {
					a, err := flipper.ParseAutomationTransport(automation)
					if err != nil {
						return err
					}
					s.Automation = a
				}
				if flags.Changed("layout") {
					s.KeyboardLayout = layout
				}
				return nil
			})
			if err != nil {
				return err
			}

			out := newOutputFormatter(cmd)
			rows := make([][]string, len(changes))
			items := make([]interface{}, len(changes))
			for i, ch := range changes {
				rows[i] = []string{ch.Description, fmt.Sprint(ch.OldValue), fmt.Sprint(ch.NewValue)}
				items[i] = ch.Change
			}
			return out.Table(items, []string{"Setting", "Old", "New"}, rows)
		},
	}
	set.Flags().Float64Var(&timezone, "timezone", 0, "Timezone offset in hours, -12..12")
	set.Flags().StringVar(&notify, "notify", "", "Notification: sound, vibro, both (\"sound vibro\") or none")
	set.Flags().StringVar(&automation, "automation", "", "Automation: usb, bt, both (\"usb bt\") or none")
	set.Flags().StringVar(&layout, "layout", "", "Keyboard layout, e.g. QWERTY or AZERTY")

	cmd.AddCommand(set)
	return cmd
}

func newClockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Check or synchronise the device clock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			tp, err := application.TimeProvider()
			if err != nil {
				return err
			}
			diff, status, err := application.Time.Check(ctx, tp)
			if err != nil {
				return err
			}
			return newOutputFormatter(cmd).Table(
				map[string]interface{}{"drift": diff.String(), "status": status.String(), "source": tp.Name()},
				[]string{"Source", "Drift", "Status"},
				[][]string{{tp.Name(), diff.String(), status.String()}},
			)
		},
	}

	var timeOnly, timezoneOnly bool
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Set device timezone and clock from the configured providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			tp, err := application.TimeProvider()
			if err != nil {
				return err
			}
			tz, err := application.TimezoneProvider()
			if err != nil {
				return err
			}
			if timeOnly && timezoneOnly {
				return fmt.Errorf("--time-only and --timezone-only are mutually exclusive")
			}
			res, err := application.Time.SyncSelected(ctx, !timezoneOnly, !timeOnly, tp, tz)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Пояс: %v (%s)", res.Offset, res.TimezoneSource)
			if !timezoneOnly {
				msg = fmt.Sprintf("Часы: %s (%s), %s", application.Time.FormatTime(res.Time), res.TimeSource, strings.ToLower(msg))
			}
			return newOutputFormatter(cmd).Success(msg, map[string]interface{}{"time": res.Time, "offset": res.Offset})
		},
	}
	sync.Flags().BoolVar(&timeOnly, "time-only", false, "Set only the clock, keep the device timezone")
	sync.Flags().BoolVar(&timezoneOnly, "timezone-only", false, "Set only the timezone offset")
	cmd.AddCommand(sync)
	return cmd
}

func newWatchCmd() *cobra.Command {
	var (
		useMQTT       bool
		clockInterval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect and print client events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			client := application.Client()
			events, unsubscribe := client.Subscribe()
			defer unsubscribe()

			if useMQTT {
				prefs, err := application.Preferences()
				if err != nil {
					return err
				}
				bridge, err := mqtt.Dial(ctx, prefs.MQTT, application.Logger)
				if err != nil {
					return err
				}
				defer bridge.Close()

				forward, stop := client.Subscribe()
				defer stop()
				go mqtt.Forward(ctx, forward, bridge, application.Logger)
			}

			if clockInterval > 0 {
				tp, err := application.TimeProvider()
				if err != nil {
					return err
				}
				mon := monitor.NewService(application.Time, tp, monitor.Config{
					PollInterval: clockInterval,
					StartDelay:   2 * time.Second,
				}, application.Logger)
				mon.SetUpdateCallback(func(st monitor.ClockStatus) {
					fmt.Fprintf(cmd.ErrOrStderr(), "Часы: %s (%s)\n", st.Status, st.Drift)
				})
				mon.Start(ctx)
				defer mon.Stop()
			}

			go func() {
				if err := application.Connection.Connect(ctx); err != nil {
					if ctx.Err() == nil {
						application.Logger.Error("Подключение: %v", err)
					}
					return
				}
				startupSync(ctx)
			}()

			out := newOutputFormatter(cmd)
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					if out.jsonMode {
						_ = out.JSON(ev)
						continue
					}
					fmt.Fprintf(out.out, "%s  %-18s %s %s\n", ev.Time.Format("15:04:05.000"), ev.Type, ev.Port, ev.Message)
				}
			}
		},
	}
	cmd.Flags().BoolVar(&useMQTT, "mqtt", false, "Forward events to the MQTT broker from preferences (mqtt.*)")
	cmd.Flags().DurationVar(&clockInterval, "clock", 0, "Check device clock drift at this interval, 0 disables")
	return cmd
}

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command...>",
		Short: "Run a raw console command and print its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			resp, err := application.Client().Execute(ctx, flipper.DefaultRequest(strings.Join(args, " ")))
			if err != nil {
				return err
			}
			out := newOutputFormatter(cmd)
			if out.jsonMode {
				return out.JSON(resp)
			}
			fmt.Fprintln(out.out, resp.Text)
			if resp.Cancelled {
				return flipper.ErrUserCancelled
			}
			return nil
		},
	}
}

// startupSync выполняет синхронизацию, включённую в настройках (*.syncAtStartup).
func startupSync(ctx context.Context) {
	prefs, err := application.Preferences()
	if err != nil {
		application.Logger.Error("Настройки: %v", err)
		return
	}
	if !prefs.Time.SyncAtStartup && !prefs.Timezone.SyncAtStartup {
		return
	}
	tp, err := application.TimeProvider()
	if err != nil {
		application.Logger.Error("Источник времени: %v", err)
		return
	}
	tz, err := application.TimezoneProvider()
	if err != nil {
		application.Logger.Error("Источник пояса: %v", err)
		return
	}
	if _, err := application.Time.SyncSelected(ctx, prefs.Time.SyncAtStartup, prefs.Timezone.SyncAtStartup, tp, tz); err != nil && ctx.Err() == nil {
		application.Logger.Error("Синхронизация при подключении: %v", err)
	}
}
