// Package flipper implements the client side of the Flipper Zero TOTP application console
// protocol over a USB CDC serial port.
//
// The client discovers the device by USB vendor/product identity, opens the port, verifies
// that the console prompt is live and then executes commands strictly one at a time. Each
// command is written, its local echo is skipped and the reply is read until the console prompt,
// a PIN request or a cancellation notice appears. While the TOTP application is not running the
// console answers "command not found"; such commands are retried until the caller cancels.
//
// Key Features:
//   - Lazy connection with automatic reconnect after the device is unplugged
//   - Two independent admission gates for connecting and for executing commands
//   - Interactive sub-prompts (PIN on device, secret entry, yes/no confirmation)
//   - Typed token CRUD and device settings on top of raw commands
//   - Lifecycle events through channels or callbacks
//
// Example Usage:
//
//	client := flipper.NewClient(flipper.Config{
//	    Logger: func(msg string) { fmt.Println(msg) },
//	})
//	defer client.Close()
//
//	tokens, err := client.ListTokens(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// All literal console strings live in Markers so that firmware wording changes are a
// single-point update.
package flipper
