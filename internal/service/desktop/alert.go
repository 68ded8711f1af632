// Package desktop shows fired alarms as native desktop notifications.
package desktop

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// ErrUnsupportedOS indicates the current OS has no known notification command.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// Command builds the notification command for goos:
//   - Linux:   notify-send --urgency=critical <title> <body>
//   - macOS:   osascript -e 'display notification ...'
//   - Windows: msg * <title>: <body>
func Command(goos, title, body string) (name string, args []string, err error) {
	switch strings.ToLower(goos) {
	case "linux", "freebsd", "openbsd", "netbsd":
		return "notify-send", []string{"--urgency=critical", "--app-name=alarm-agent", title, body}, nil
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s sound name \"default\"",
			strconv.Quote(body), strconv.Quote(title))

		return "osascript", []string{"-e", script}, nil
	case "windows":
		return "msg", []string{"*", title + ": " + body}, nil
	default:
		return "", nil, fmt.Errorf("desktop alert on %s: %w", goos, ErrUnsupportedOS)
	}
}

// Alert shows a notification and waits for the command to finish.
func Alert(ctx context.Context, title, body string) error {
	name, args, err := Command(runtime.GOOS, title, body)
	if err != nil {
		return err
	}

	if output, err := exec.CommandContext(ctx, name, args...).CombinedOutput(); err != nil {
		return fmt.Errorf("run %s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}

	return nil
}
