// internal/logging/logger.go
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log levels
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Log formats
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// LoggerConfig configures a logger
type LoggerConfig struct {
	Level  string    `json:"level"`
	Format string    `json:"format"`
	Output io.Writer `json:"-"`
}

// Validate checks configuration
func (c *LoggerConfig) Validate() error {
	validLevels := map[string]bool{
		LevelDebug: true, LevelInfo: true, LevelWarn: true,
		LevelError: true, "": true,
	}
	if !validLevels[c.Level] {
		return fmt.Errorf("logging: invalid level: %s", c.Level)
	}
	validFormats := map[string]bool{FormatJSON: true, FormatConsole: true, "": true}
	if !validFormats[c.Format] {
		return fmt.Errorf("logging: invalid format: %s", c.Format)
	}
	return nil
}

// ApplyDefaults fills in default values
func (c *LoggerConfig) ApplyDefaults() {
	if c.Level == "" {
		c.Level = LevelInfo
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Output == nil {
		c.Output = os.Stdout
	}
}

// NewLogger builds a zap logger writing to config.Output.
func NewLogger(config *LoggerConfig) (*zap.Logger, error) {
	if config == nil {
		config = &LoggerConfig{}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if config.Format == FormatConsole {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(config.Output), zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller()), nil
}
