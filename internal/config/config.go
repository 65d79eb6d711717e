package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type Config struct {
	// Device is the terminal to operate on; empty means standard input.
	Device  string        `mapstructure:"device"`
	Log     LogConfig     `mapstructure:"log"`
	Expect  ExpectConfig  `mapstructure:"expect"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LogConfig configures logging behavior
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Debug  bool   `mapstructure:"debug"`
}

type ExpectConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	BufferSize int           `mapstructure:"buffer_size"`
}

type MetricsConfig struct {
	// Addr enables the metrics endpoint when set, e.g. ":9108".
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from file, environment and bound flags, in
// increasing order of precedence. An empty configFile searches the default
// locations; a missing file there is not an error.
func Load(configFile string) (*Config, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.ttyctl")
		viper.AddConfigPath("/etc/ttyctl/")
	}

	// TTYCTL_DEVICE, TTYCTL_LOG_LEVEL, TTYCTL_EXPECT_TIMEOUT, ...
	viper.SetEnvPrefix("TTYCTL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.BindEnv("device")
	viper.BindEnv("log.level")
	viper.BindEnv("log.format")
	viper.BindEnv("log.debug")
	viper.BindEnv("expect.timeout")
	viper.BindEnv("expect.buffer_size")
	viper.BindEnv("metrics.addr")

	viper.SetDefault("device", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.debug", false)
	viper.SetDefault("expect.timeout", 10*time.Second)
	viper.SetDefault("expect.buffer_size", 64*1024)
	viper.SetDefault("metrics.addr", "")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects values the commands cannot work with.
func (c *Config) Validate() error {
	if c.Expect.Timeout <= 0 {
		return fmt.Errorf("expect.timeout must be positive, got %s", c.Expect.Timeout)
	}
	if c.Expect.BufferSize <= 0 {
		return fmt.Errorf("expect.buffer_size must be positive, got %d", c.Expect.BufferSize)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be 'console' or 'json', got %q", c.Log.Format)
	}
	return nil
}

// ConfigureZerolog configures zerolog based on the log configuration
func (c *LogConfig) ConfigureZerolog() {
	level := zerolog.InfoLevel
	if c.Debug {
		level = zerolog.DebugLevel
	} else {
		switch strings.ToLower(c.Level) {
		case "trace":
			level = zerolog.TraceLevel
		case "debug":
			level = zerolog.DebugLevel
		case "info":
			level = zerolog.InfoLevel
		case "warn", "warning":
			level = zerolog.WarnLevel
		case "error":
			level = zerolog.ErrorLevel
		case "fatal":
			level = zerolog.FatalLevel
		case "panic":
			level = zerolog.PanicLevel
		}
	}
	zerolog.SetGlobalLevel(level)
}

// Logger builds the process logger writing to w in the configured format.
func (c *LogConfig) Logger(w io.Writer) zerolog.Logger {
	if strings.EqualFold(c.Format, "json") {
		return zerolog.New(w).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}
