package config

import (
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-publisher/log"
)

// LogEncoder defines a log encoder kind.
type LogEncoder = string

const (
	defaultLoggingLevel = zapcore.WarnLevel
	// ConsoleLogEncoder represents logging with plain text.
	ConsoleLogEncoder LogEncoder = log.ConsoleEncoder
	// JSONLogEncoder represents logging with JSON.
	JSONLogEncoder LogEncoder = log.JSONEncoder
)

// LoggerConfig holds the logging level for each module.
type LoggerConfig struct {
	Encoder                LogEncoder `mapstructure:"log-encoder"`
	AppLoggerLevel         string     `mapstructure:"app"`
	P2PLoggerLevel         string     `mapstructure:"p2p"`
	ReplicationLoggerLevel string     `mapstructure:"replication"`
	StoreLoggerLevel       string     `mapstructure:"store"`
	DriveLoggerLevel       string     `mapstructure:"drive"`
	AckLoggerLevel         string     `mapstructure:"ack"`
	SessionLoggerLevel     string     `mapstructure:"session"`
}

// SetAll overrides the level of every module.
func (c *LoggerConfig) SetAll(level zapcore.Level) {
	lvl := level.String()
	c.AppLoggerLevel = lvl
	c.P2PLoggerLevel = lvl
	c.ReplicationLoggerLevel = lvl
	c.StoreLoggerLevel = lvl
	c.DriveLoggerLevel = lvl
	c.AckLoggerLevel = lvl
	c.SessionLoggerLevel = lvl
}

func defaultLoggingConfig() LoggerConfig {
	c := LoggerConfig{Encoder: ConsoleLogEncoder}
	c.SetAll(defaultLoggingLevel)
	return c
}
