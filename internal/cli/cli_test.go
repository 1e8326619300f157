package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		regionFlag = ""
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCountriesCommand(t *testing.T) {
	t.Setenv("ENABLE_GERMANY_SCRAPER", "false")
	t.Setenv("LOG_LEVEL", "error")

	out, err := run(t, "countries")
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "CODE"))
	assert.Contains(t, out, "Capitol Trades")

	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) > 0 && fields[0] == "germany" {
			assert.Contains(t, line, "false")
		}
	}
	assert.Contains(t, out, "regions: North America, Europe")
}

func TestCountriesCommand_Region(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	out, err := run(t, "countries", "--region", "Africa")
	require.NoError(t, err)

	assert.Contains(t, out, "nigeria")
	assert.NotContains(t, out, "usa ")
}

func TestScrapeCommand_RequiresCountry(t *testing.T) {
	_, err := run(t, "scrape")
	assert.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "scrape", "scrape-all", "schedule", "relay", "consume", "countries"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestBackground_WaitBlocksUntilTasksReturn(t *testing.T) {
	var logs bytes.Buffer
	bg := &background{logger: slog.New(slog.NewTextHandler(&logs, nil))}

	ctx, cancel := context.WithCancel(context.Background())
	var finished atomic.Bool

	bg.Go("slow worker", func() error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	})
	bg.Go("failing worker", func() error {
		return errors.New("redis unavailable")
	})

	cancel()
	bg.Wait()

	assert.True(t, finished.Load(), "Wait returned before the task finished")
	assert.Contains(t, logs.String(), "failing worker")
	assert.NotContains(t, logs.String(), "slow worker", "cancellation is not an error")
}
