package config

import (
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Nil(t, os.WriteFile(path, []byte(data), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c := DefaultRelay()
	c.AllowAll = true
	require.Nil(t, Load("server", &c, nil, io.Discard))
	assert.Equal(t, 8081, c.Port)
	assert.Equal(t, 10*time.Millisecond, c.TickInterval)
	assert.Equal(t, MixerSum, c.Mixer)
	assert.Equal(t, ":8081", c.Address())
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := writeConfig(t, "port: 9000\ntick_interval: 20ms\nmixer: proximity\nrange: 12.5\nallow_all: true\n")
	c := DefaultRelay()
	args := []string{"--port", "9100", "--config", path, "--log-level=debug"}
	require.Nil(t, Load("server", &c, args, io.Discard))
	assert.Equal(t, 9100, c.Port)
	assert.Equal(t, 20*time.Millisecond, c.TickInterval)
	assert.Equal(t, MixerProximity, c.Mixer)
	assert.Equal(t, 12.5, c.Range)
	assert.True(t, c.AllowAll)
	assert.Equal(t, "debug", c.LogLevel)
}

func TestLoad_FlagNames(t *testing.T) {
	c := DefaultRelay()
	args := []string{
		"--max-connections", "3",
		"--roster", "roster.yaml",
		"--feed-address", "127.0.0.1:8082",
		"--feed-connections", "8",
		"--handshake-timeout", "1s",
		"--key-file", "relay.key",
	}
	require.Nil(t, Load("server", &c, args, io.Discard))
	assert.Equal(t, 3, c.MaxConnections)
	assert.Equal(t, "roster.yaml", c.Roster)
	assert.Equal(t, "127.0.0.1:8082", c.FeedAddress)
	assert.Equal(t, 8, c.FeedConnections)
	assert.Equal(t, time.Second, c.HandshakeTimeout)
	assert.Equal(t, "relay.key", c.KeyFile)
}

func TestLoad_GenerateKey(t *testing.T) {
	c := DefaultRelay()
	assert.ErrorIs(t, Load("server", &c, []string{"--generate-key"}, io.Discard), ErrInvalid)
	c = DefaultRelay()
	assert.Nil(t, Load("server", &c, []string{"--generate-key", "--key-file", "k"}, io.Discard))
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][]string{
		"port":      {"--allow-all", "--port", "0"},
		"tick":      {"--allow-all", "--tick-interval", "0s"},
		"mixer":     {"--allow-all", "--mixer", "loud"},
		"range":     {"--allow-all", "--mixer", "proximity", "--range", "0"},
		"verifier":  {},
		"log level": {"--allow-all", "--log-level", "trace"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			c := DefaultRelay()
			assert.ErrorIs(t, Load("server", &c, args, io.Discard), ErrInvalid)
		})
	}
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeConfig(t, "volume: 11\n")
	c := DefaultRelay()
	assert.ErrorIs(t, Load("server", &c, []string{"--config", path, "--allow-all"}, io.Discard), ErrInvalid)
}

func TestLoad_MissingFile(t *testing.T) {
	c := DefaultRelay()
	assert.NotNil(t, Load("server", &c, []string{"--config", "/nonexistent/config.yaml"}, io.Discard))
}

func TestLoad_Help(t *testing.T) {
	c := DefaultClient()
	assert.ErrorIs(t, Load("client", &c, []string{"--help"}, io.Discard), pflag.ErrHelp)
}

func TestLoad_Client(t *testing.T) {
	path := writeConfig(t, "identity: 42\nrelay: relay.example:8081\n")
	c := DefaultClient()
	require.Nil(t, Load("client", &c, []string{"--config", path, "--max-backlog", "256"}, io.Discard))
	assert.EqualValues(t, 42, c.Identity)
	assert.Equal(t, "relay.example:8081", c.Relay)
	assert.Equal(t, 256, c.MaxBacklog)
	assert.Equal(t, 5*time.Second, c.DialTimeout)

	c.DialTimeout = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalid)
}

func TestBindFlags_Unsupported(t *testing.T) {
	params := struct {
		Ratio float32
	}{}
	assert.NotNil(t, bindFlags(&params, pflag.NewFlagSet("test", pflag.ContinueOnError)))
	assert.NotNil(t, bindFlags(params, pflag.NewFlagSet("test", pflag.ContinueOnError)))
}
