// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads ifrad settings from defaults, an optional config file,
// IFRAD_* environment variables and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SerialConfig describes the RS-485 adapter
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	Baud        int           `mapstructure:"baud"`
	DataBits    int           `mapstructure:"dataBits"`
	Parity      string        `mapstructure:"parity"`
	StopBits    string        `mapstructure:"stopBits"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// WebSocketConfig describes a remote serial bridge
type WebSocketConfig struct {
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"noSSLVerify"`
}

// WorkflowConfig configures the automatic command loop
type WorkflowConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Operation string        `mapstructure:"operation"`
	Repeat    int           `mapstructure:"repeat"`
}

// DataConfig controls what is persisted and where
type DataConfig struct {
	Dir      string `mapstructure:"dir"`
	SaveLogs bool   `mapstructure:"saveLogs"`
	CSV      bool   `mapstructure:"csv"`
	Archive  bool   `mapstructure:"archive"`
}

// ScannerConfig tunes the frame scanner
type ScannerConfig struct {
	LengthAnchoredFooter bool `mapstructure:"lengthAnchoredFooter"`
}

// LumberjackConfig configures log file rotation
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig configures the diagnostic logger
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// PresetsConfig locates the saved command presets
type PresetsConfig struct {
	File string `mapstructure:"file"`
}

// Config is the top-level configuration
type Config struct {
	Serial    SerialConfig    `mapstructure:"serial"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Data      DataConfig      `mapstructure:"data"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Presets   PresetsConfig   `mapstructure:"presets"`
}

// flagKeys maps command-line flag names to config keys
var flagKeys = map[string]string{
	"port":            "serial.port",
	"baud":            "serial.baud",
	"data-bits":       "serial.dataBits",
	"parity":          "serial.parity",
	"stop-bits":       "serial.stopBits",
	"url":             "websocket.url",
	"username":        "websocket.username",
	"no-ssl-verify":   "websocket.noSSLVerify",
	"interval":        "workflow.interval",
	"repeat":          "workflow.repeat",
	"data-dir":        "data.dir",
	"save-logs":       "data.saveLogs",
	"csv":             "data.csv",
	"archive":         "data.archive",
	"length-anchored": "scanner.lengthAnchoredFooter",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
	"log-file":        "logging.file.filename",
	"metrics-addr":    "metrics.addr",
	"presets":         "presets.file",
}

// Load reads configuration from path (if set), or ./ifrad.{yaml,toml,json}
// when present, then applies IFRAD_* environment variables and any flags in
// flags that were set explicitly.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("ifrad")
	}

	setDefaults(v)

	v.SetEnvPrefix("IFRAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late, at connect time
func (c *Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Serial.Baud)
	}
	switch c.Serial.DataBits {
	case 5, 6, 7, 8:
	default:
		return fmt.Errorf("invalid data bits %d (use 5, 6, 7 or 8)", c.Serial.DataBits)
	}
	switch strings.ToLower(c.Serial.Parity) {
	case "none", "odd", "even", "mark", "space":
	default:
		return fmt.Errorf("invalid parity %q (use none, odd, even, mark or space)", c.Serial.Parity)
	}
	switch c.Serial.StopBits {
	case "1", "1.5", "2":
	default:
		return fmt.Errorf("invalid stop bits %q (use 1, 1.5 or 2)", c.Serial.StopBits)
	}
	if c.Workflow.Interval <= 0 {
		return fmt.Errorf("invalid workflow interval %s", c.Workflow.Interval)
	}
	if c.Workflow.Repeat < 0 {
		return fmt.Errorf("invalid repeat count %d", c.Workflow.Repeat)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("serial.dataBits", 8)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.stopBits", "1")
	v.SetDefault("serial.readTimeout", "100ms")

	v.SetDefault("websocket.url", "")
	v.SetDefault("websocket.username", "")
	v.SetDefault("websocket.noSSLVerify", false)

	v.SetDefault("workflow.interval", "2s")
	v.SetDefault("workflow.operation", "thermistor")
	v.SetDefault("workflow.repeat", 0)

	v.SetDefault("data.dir", "data")
	v.SetDefault("data.saveLogs", false)
	v.SetDefault("data.csv", true)
	v.SetDefault("data.archive", false)

	v.SetDefault("scanner.lengthAnchoredFooter", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 20)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("presets.file", "presets.toml")
}
