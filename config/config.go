// Package config contains go-publisher configuration definitions
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/spacemeshos/go-publisher/node"
	"github.com/spacemeshos/go-publisher/p2p"
	"github.com/spacemeshos/go-publisher/p2p/replication"
	"github.com/spacemeshos/go-publisher/session"
)

const defaultDataDirName = ".publisher"

// Config defines the top level configuration for a publisher.
type Config struct {
	BaseConfig  `mapstructure:"main"`
	P2P         p2p.Config         `mapstructure:"p2p"`
	REPLICATION replication.Config `mapstructure:"replication"`
	STORE       node.Config        `mapstructure:"store"`
	SESSION     session.Config     `mapstructure:"session"`
	LOGGING     LoggerConfig       `mapstructure:"logging"`
}

// BaseConfig defines the default configuration options for the publisher app.
type BaseConfig struct {
	DataDir    string `mapstructure:"data-dir"`
	ConfigFile string `mapstructure:"config"`

	CollectMetrics    bool   `mapstructure:"metrics"`
	MetricsPort       int    `mapstructure:"metrics-port"`
	MetricsPush       string `mapstructure:"metrics-push"`
	MetricsPushPeriod int    `mapstructure:"metrics-push-period"` // seconds
}

// DefaultConfig returns the default configuration for a publisher.
func DefaultConfig() Config {
	return Config{
		BaseConfig:  defaultBaseConfig(),
		P2P:         p2p.DefaultConfig(),
		REPLICATION: replication.DefaultConfig(),
		STORE:       node.DefaultConfig(),
		SESSION:     session.DefaultConfig(),
		LOGGING:     defaultLoggingConfig(),
	}
}

func defaultBaseConfig() BaseConfig {
	return BaseConfig{
		DataDir:           defaultDataDir(),
		MetricsPort:       1010,
		MetricsPushPeriod: 60,
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirName
	}
	return filepath.Join(home, defaultDataDirName)
}

// LoadConfig reads the config file into vip. An empty location leaves vip untouched.
func LoadConfig(fileLocation string, vip *viper.Viper) error {
	if fileLocation == "" {
		return nil
	}
	vip.SetConfigFile(fileLocation)
	if err := vip.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", fileLocation, err)
	}
	return nil
}
