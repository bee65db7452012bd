package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tinytelemetry/alertscope/internal/model"
	"github.com/tinytelemetry/alertscope/internal/socketrpc"
)

const (
	defaultRefreshInterval = model.DefaultRefreshInterval
	defaultFetchTimeout    = model.DefaultFetchTimeout
	defaultFetchRetries    = model.DefaultFetchRetries
	defaultPollInterval    = 5 * time.Second
)

// cliConfig holds only TUI-relevant configuration.
type cliConfig struct {
	Source          string        `mapstructure:"source"`
	RefreshInterval time.Duration `mapstructure:"refresh-interval"`
	FetchTimeout    time.Duration `mapstructure:"fetch-timeout"`
	FetchRetries    int           `mapstructure:"fetch-retries"`
	PollInterval    time.Duration `mapstructure:"poll-interval"`
	SocketPath      string        `mapstructure:"socket-path"`
}

func loadCLIConfig(configPath string) (cliConfig, error) {
	var cfg cliConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("ALERTSCOPE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// No default source: without -source the TUI attaches to the service.
	v.SetDefault("source", "")
	v.SetDefault("refresh-interval", defaultRefreshInterval)
	v.SetDefault("fetch-timeout", defaultFetchTimeout)
	v.SetDefault("fetch-retries", defaultFetchRetries)
	v.SetDefault("poll-interval", defaultPollInterval)
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "alertscope", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if strings.HasPrefix(cfg.SocketPath, "~/") {
		cfg.SocketPath = filepath.Join(home, cfg.SocketPath[2:])
	}

	return cfg, nil
}
