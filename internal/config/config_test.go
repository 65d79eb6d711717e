package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_LoadDefaults(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	config, err := Load("")
	require.NoError(t, err)

	assert.Empty(t, config.Device)
	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "console", config.Log.Format)
	assert.False(t, config.Log.Debug)
	assert.Equal(t, 10*time.Second, config.Expect.Timeout)
	assert.Equal(t, 65536, config.Expect.BufferSize)
	assert.Empty(t, config.Metrics.Addr)
}

func TestConfig_LoadWithFile(t *testing.T) {
	viper.Reset()

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
device: /dev/ttyUSB0
log:
  level: debug
  format: json
expect:
  timeout: 3s
  buffer_size: 1024
metrics:
  addr: "127.0.0.1:9108"
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	config, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", config.Device)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, 3*time.Second, config.Expect.Timeout)
	assert.Equal(t, 1024, config.Expect.BufferSize)
	assert.Equal(t, "127.0.0.1:9108", config.Metrics.Addr)
}

func TestConfig_ExplicitFileMissing(t *testing.T) {
	viper.Reset()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_EnvironmentOverrides(t *testing.T) {
	viper.Reset()
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TTYCTL_DEVICE", "/dev/pts/9")
	t.Setenv("TTYCTL_EXPECT_TIMEOUT", "250ms")
	t.Setenv("TTYCTL_LOG_DEBUG", "true")

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/dev/pts/9", config.Device)
	assert.Equal(t, 250*time.Millisecond, config.Expect.Timeout)
	assert.True(t, config.Log.Debug)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		Log:    LogConfig{Format: "console"},
		Expect: ExpectConfig{Timeout: time.Second, BufferSize: 16},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero timeout", mutate: func(c *Config) { c.Expect.Timeout = 0 }},
		{name: "negative buffer", mutate: func(c *Config) { c.Expect.BufferSize = -1 }},
		{name: "unknown log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLogConfig_ConfigureZerolog(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.GlobalLevel())

	tests := []struct {
		name     string
		config   LogConfig
		expected zerolog.Level
	}{
		{name: "default", config: LogConfig{}, expected: zerolog.InfoLevel},
		{name: "trace", config: LogConfig{Level: "trace"}, expected: zerolog.TraceLevel},
		{name: "warning alias", config: LogConfig{Level: "WARNING"}, expected: zerolog.WarnLevel},
		{name: "error", config: LogConfig{Level: "error"}, expected: zerolog.ErrorLevel},
		{name: "debug flag wins", config: LogConfig{Level: "error", Debug: true}, expected: zerolog.DebugLevel},
		{name: "unknown level", config: LogConfig{Level: "loud"}, expected: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.ConfigureZerolog()
			assert.Equal(t, tt.expected, zerolog.GlobalLevel())
		})
	}
}

func TestLogConfig_JSONLogger(t *testing.T) {
	var buf bytes.Buffer
	c := LogConfig{Format: "json"}

	logger := c.Logger(&buf)
	logger.Info().Str("device", "/dev/tty").Msg("hello")

	assert.Contains(t, buf.String(), `"device":"/dev/tty"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(wd)) })
}
