package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tinytelemetry/alertscope/internal/alertsource"
	"github.com/tinytelemetry/alertscope/internal/model"
	"github.com/tinytelemetry/alertscope/internal/report"
	"github.com/tinytelemetry/alertscope/internal/socketrpc"
)

const (
	defaultSource          = model.DefaultSource
	defaultRefreshInterval = model.DefaultRefreshInterval
	defaultFetchTimeout    = model.DefaultFetchTimeout
	defaultFetchRetries    = model.DefaultFetchRetries
	defaultBindHost        = "127.0.0.1"
	defaultAPIPort         = 3000
	defaultQueryTimeout    = 30 * time.Second
	defaultOutput          = string(report.FormatText)
)

// appConfig is internal runtime configuration.
type appConfig struct {
	Source          string        `mapstructure:"source"`
	RefreshInterval time.Duration `mapstructure:"refresh-interval"`
	FetchTimeout    time.Duration `mapstructure:"fetch-timeout"`
	FetchRetries    int           `mapstructure:"fetch-retries"`
	APIEnabled      bool          `mapstructure:"api-enabled"`
	APIPort         int           `mapstructure:"api-port"`
	APIAddr         string        `mapstructure:"api-addr"`
	SocketPath      string        `mapstructure:"socket-path"`
	QueryTimeout    time.Duration `mapstructure:"query-timeout"`
	SQLEnabled      bool          `mapstructure:"sql-enabled"`
	Output          string        `mapstructure:"output"`
	ConfigPath      string        `mapstructure:"-"` // not from config file
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("ALERTSCOPE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("source", defaultSource)
	v.SetDefault("refresh-interval", defaultRefreshInterval)
	v.SetDefault("fetch-timeout", defaultFetchTimeout)
	v.SetDefault("fetch-retries", defaultFetchRetries)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("api-addr", "")
	v.SetDefault("socket-path", socketrpc.DefaultSocketPath())
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("sql-enabled", true)
	v.SetDefault("output", defaultOutput)

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
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return cfg, fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	if cfg.RefreshInterval < 0 {
		return cfg, fmt.Errorf("invalid refresh-interval: %s", cfg.RefreshInterval)
	}
	if _, err := report.ParseFormat(cfg.Output); err != nil {
		return cfg, err
	}

	// Expand ~ in paths
	cfg.Source = expandHome(cfg.Source, home)
	cfg.SocketPath = expandHome(cfg.SocketPath, home)

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

// applyFlags lets command line flags win over file and environment values.
func (c *appConfig) applyFlags(source, output string) error {
	if source != "" {
		c.Source = source
	}
	if output != "" {
		if _, err := report.ParseFormat(output); err != nil {
			return err
		}
		c.Output = output
	}
	return nil
}

func (c appConfig) httpConfig() alertsource.HTTPConfig {
	return alertsource.HTTPConfig{
		Timeout:    c.FetchTimeout,
		MaxRetries: c.FetchRetries,
	}
}

// loadTimeout bounds one dashboard load: every fetch attempt plus slack for
// backoff between them.
func (c appConfig) loadTimeout() time.Duration {
	attempts := max(c.FetchRetries, 0) + 1
	return time.Duration(attempts)*c.FetchTimeout + 30*time.Second
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
