package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "board.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":3000", cfg.Addr)
	assert.Equal(t, 2000, cfg.Protocol.MaxPoints)
	assert.Equal(t, 60*time.Millisecond, cfg.Client.PartialInterval)
	assert.Len(t, cfg.Palette, 7)
	assert.Equal(t, "#444", cfg.FallbackColor)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
addr: ":4000"
store: memory
protocol:
  max_points: 500
client:
  partial_interval: 100ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":4000", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 500, cfg.Protocol.MaxPoints)
	assert.Equal(t, 60.0, cfg.Protocol.MaxWidth, "unset keys keep defaults")
	assert.Equal(t, 100*time.Millisecond, cfg.Client.PartialInterval)
	assert.Equal(t, 3*time.Second, cfg.Client.CursorTTL)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "addr: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "store: postgres"))
	assert.ErrorContains(t, err, "unknown store")
}

func TestParseFlagsOverrideFile(t *testing.T) {
	path := writeFile(t, "addr: \":4000\"\nstore: memory\nlog_level: debug\n")

	cfg, fs, err := Parse("board", []string{"--config", path, "--addr", ":5000", "localboard://10.0.0.2:3000/main"})
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Addr, "flag beats file")
	assert.Equal(t, StoreMemory, cfg.Store, "file beats default")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"localboard://10.0.0.2:3000/main"}, fs.Args())
}

func TestParseWithoutFile(t *testing.T) {
	cfg, _, err := Parse("board", []string{"--max-width", "30", "--palette", "#000,#fff"})
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.Protocol.MaxWidth)
	assert.Equal(t, []string{"#000", "#fff"}, cfg.Palette)

	_, _, err = Parse("board", []string{"--default-width", "90"})
	assert.Error(t, err, "default wider than max")

	_, _, err = Parse("board", []string{"--no-such-flag"})
	assert.Error(t, err)
}

func TestProtocolLimits(t *testing.T) {
	lim := Default().Protocol.Limits()
	assert.Equal(t, 60.0, lim.MaxWidth)
	assert.Equal(t, 4.0, lim.DefaultWidth)
	assert.Equal(t, 2000, lim.MaxPoints)
}
