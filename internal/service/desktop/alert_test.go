package desktop

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCommand checks the command chosen per operating system.
func TestCommand(t *testing.T) {
	t.Parallel()

	name, args, err := Command("linux", "⏰ School", "07:00")
	require.NoError(t, err)
	require.Equal(t, "notify-send", name)
	require.Equal(t, []string{"--urgency=critical", "--app-name=alarm-agent", "⏰ School", "07:00"}, args)

	name, args, err = Command("darwin", `Say "hi"`, "07:00")
	require.NoError(t, err)
	require.Equal(t, "osascript", name)
	require.Equal(t, []string{"-e", `display notification "07:00" with title "Say \"hi\"" sound name "default"`}, args)

	name, _, err = Command("windows", "Alarm", "07:00")
	require.NoError(t, err)
	require.Equal(t, "msg", name)

	_, _, err = Command("plan9", "Alarm", "07:00")
	require.ErrorIs(t, err, ErrUnsupportedOS)
}
