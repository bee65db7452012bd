package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tinytelemetry/alertscope/internal/alertsource"
	"github.com/tinytelemetry/alertscope/internal/dashboard"
	"github.com/tinytelemetry/alertscope/internal/model"
	"github.com/tinytelemetry/alertscope/internal/socketrpc"
	"github.com/tinytelemetry/alertscope/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var socketPath string
	var source string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/alertscope/config.yml)")
	flag.StringVar(&socketPath, "socket", "", "override socket path to connect to alertscope service")
	flag.StringVar(&source, "source", "", "load alerts directly from a file, http(s) URL, or - for stdin instead of the service")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("alertscope TUI - Alert Dashboard\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	_ = godotenv.Load()

	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if socketPath != "" {
		cfg.SocketPath = socketPath
	}
	if source != "" {
		cfg.Source = source
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg cliConfig) error {
	cleanupLogger := configureLogger()
	defer cleanupLogger()

	var provider model.SnapshotProvider
	var pageConf tui.DashboardConfig
	var opts []tea.ProgramOption

	if cfg.Source != "" {
		src, err := alertsource.Open(cfg.Source, alertsource.HTTPConfig{
			Timeout:    cfg.FetchTimeout,
			MaxRetries: cfg.FetchRetries,
		})
		if err != nil {
			return err
		}
		dash := dashboard.NewDashboard(src)
		refresher := dashboard.NewRefresher(dash, dashboard.RefresherConfig{Interval: cfg.RefreshInterval})
		defer refresher.Stop()

		provider = dash
		pageConf = tui.DashboardConfig{ReloadOnStart: true, PollInterval: cfg.RefreshInterval}
		if cfg.Source == "-" {
			// Alerts arrive on stdin, so keys have to come from the terminal.
			opts = append(opts, tea.WithInputTTY())
		}
	} else {
		client, err := socketrpc.Dial(cfg.SocketPath)
		if err != nil {
			return fmt.Errorf("cannot connect to alertscope service at %s: %w\nIs the alertscope service running? Start it with: alertscope, or pass -source", cfg.SocketPath, err)
		}
		defer client.Close()

		provider = client
		pageConf = tui.DashboardConfig{PollInterval: cfg.PollInterval}
	}

	app := tui.NewApp(tui.NewDashboardPage(provider, pageConf), tui.NewHelpPage())

	opts = append(opts, tea.WithAltScreen())
	p := tea.NewProgram(app, opts...)
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// configureLogger keeps log output off the terminal while the TUI owns it.
func configureLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	logDir := filepath.Join(home, ".local", "state", "alertscope")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	f, err := os.OpenFile(filepath.Join(logDir, "alertscope-tui.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(io.Discard)
		return func() {}
	}
	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}
