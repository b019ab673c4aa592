package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/restock-tracker/internal/engine"
	"github.com/donaldgifford/restock-tracker/internal/source"
	"github.com/donaldgifford/restock-tracker/internal/subscribers"
)

// runCLI executes the root command. The command tree and viper are
// process-global, so tests calling it must not run in parallel.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckCommand(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, "check", "partner", "--config", cfgPath, "--output", "json", "--no-sms")
	require.NoError(t, err)

	var res engine.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "partner", res.Source)
	assert.Equal(t, 2, res.Observed)
	assert.Len(t, res.Changes, 2)

	out, err = runCLI(t, "check", "partner", "--config", cfgPath, "--output", "table", "--no-sms")
	require.NoError(t, err)
	assert.Contains(t, out, "Observed:")
	assert.Regexp(t, `Changes:\s+0\n`, out)

	_, err = runCLI(t, "check", "nope", "--config", cfgPath, "--output", "table")
	require.ErrorIs(t, err, source.ErrUnknownSource)
}

func TestSubscribersCommands(t *testing.T) {
	cfgPath := writeTestConfig(t)
	flags := []string{"--config", cfgPath, "--output", "table"}
	run := func(args ...string) string {
		t.Helper()
		out, err := runCLI(t, append(args, flags...)...)
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, "No subscribers.\n", run("subscribers", "list"))
	assert.Equal(t, "Added +1 (555) 123-4567.\n", run("subscribers", "add", "(555) 123-4567", "--name", "Sam"))
	assert.Equal(t, "Subscribed to 2 of 3 products.\n",
		run("subscribers", "subscribe", "5551234567", "feed:B01", "feed:B02", "feed:B01"))
	assert.Equal(t, "Unsubscribed from 1 of 1 products.\n",
		run("subscribers", "unsubscribe", "5551234567", "feed:B02"))
	assert.Equal(t, "Notifications off for +1 (555) 123-4567.\n",
		run("subscribers", "notifications", "5551234567", "off"))
	assert.Equal(t, "Renamed +1 (555) 123-4567.\n", run("subscribers", "rename", "5551234567", "Sam K"))

	out := run("subscribers", "list")
	assert.Contains(t, out, "+155***4567")
	assert.Contains(t, out, "Sam K")
	assert.Contains(t, out, "off")

	out, err := runCLI(t, "subscribers", "list", "--show-phones", "--config", cfgPath, "--output", "json")
	require.NoError(t, err)
	var users []subscribers.Subscriber
	require.NoError(t, json.Unmarshal([]byte(out), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "+15551234567", users[0].Phone)
	assert.Equal(t, []string{"feed:B01"}, users[0].Subscriptions)
	assert.False(t, users[0].NotificationsEnabled)
	assert.Equal(t, "Sam K", users[0].Name)

	_, err = runCLI(t, append([]string{"subscribers", "add", "12"}, flags...)...)
	require.ErrorIs(t, err, subscribers.ErrInvalidPhone)

	_, err = runCLI(t, append([]string{"subscribers", "notifications", "5551234567", "maybe"}, flags...)...)
	require.Error(t, err)

	assert.Equal(t, "Removed +1 (555) 123-4567.\n", run("subscribers", "remove", "5551234567"))
	_, err = runCLI(t, append([]string{"subscribers", "remove", "5551234567"}, flags...)...)
	require.ErrorIs(t, err, subscribers.ErrNotFound)
	_, err = runCLI(t, append([]string{"subscribers", "rename", "5551234567", "Nobody"}, flags...)...)
	require.ErrorIs(t, err, subscribers.ErrNotFound)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "restock-tracker dev\n", out)
}
