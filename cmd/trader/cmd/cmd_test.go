package cmd

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/autotrader/config"
	"github.com/rustyeddy/autotrader/engine"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version)
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")

	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "ETHUSDT")
}

func TestContracts(t *testing.T) {
	contractsPath = ""
	out, err := execute(t, "contracts")
	require.NoError(t, err)
	assert.Contains(t, out, "XBTUSD")
	assert.Contains(t, out, "inverse")
	assert.Contains(t, out, "quanto")
}

func TestDrainLogbook(t *testing.T) {
	book := engine.NewLogbook(0)
	book.Append(zerolog.InfoLevel, "inst-1", "activated")
	book.Append(zerolog.ErrorLevel, "inst-1", "order failed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	drainLogbook(ctx, book, &out, time.Hour)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "info")
	assert.Contains(t, lines[1], "error inst-1 order failed")
}

func TestRunFailsWhenMetricsAddressTaken(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Metrics.Listen = taken.Addr().String()
	path := filepath.Join(t.TempDir(), "trader.yaml")
	require.NoError(t, cfg.SaveToFile(path))

	_, err = execute(t, "run", "-f", path, "--for", "1s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics listen")
}
