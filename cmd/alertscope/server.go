package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/alertscope/internal/alertsource"
	"github.com/tinytelemetry/alertscope/internal/dashboard"
	"github.com/tinytelemetry/alertscope/internal/duckdb"
	"github.com/tinytelemetry/alertscope/internal/httpserver"
	"github.com/tinytelemetry/alertscope/internal/model"
	"github.com/tinytelemetry/alertscope/internal/report"
	"github.com/tinytelemetry/alertscope/internal/socketrpc"
	"golang.org/x/sync/errgroup"
)

// runOnce loads the source a single time and writes a report to w.
func runOnce(cfg appConfig, w io.Writer) error {
	format, err := report.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}
	src, err := alertsource.Open(cfg.Source, cfg.httpConfig())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.loadTimeout())
	defer cancel()

	dash := dashboard.NewDashboard(src)
	snap, err := dash.Load(ctx)
	if err != nil {
		return err
	}
	return report.Write(w, snap, format)
}

// runServer loads alerts and serves them over the HTTP API and socket RPC
// until interrupted.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	src, err := alertsource.Open(cfg.Source, cfg.httpConfig())
	if err != nil {
		return err
	}

	// In-memory SQL mirror of the current snapshot
	var store *duckdb.Store
	dashConf := dashboard.Config{}
	if cfg.SQLEnabled {
		store, err = duckdb.NewStore(cfg.QueryTimeout)
		if err != nil {
			return fmt.Errorf("failed to initialize DuckDB: %w", err)
		}
		defer store.Close()
		dashConf.Sink = store
	}

	dash := dashboard.NewDashboard(src, dashConf)

	// The service stays up on a failed first load; health reports degraded
	// until a reload succeeds.
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.loadTimeout())
	snap, loadErr := dash.Load(loadCtx)
	cancelLoad()

	refresher := dashboard.NewRefresher(dash, dashboard.RefresherConfig{
		Interval: cfg.RefreshInterval,
		Timeout:  cfg.loadTimeout(),
	})
	defer refresher.Stop()

	// Bind the HTTP API now so a busy port fails fast; it is served below.
	var apiServer *httpserver.Server
	if cfg.APIEnabled {
		var qs httpserver.QueryStore
		if store != nil {
			qs = store
		}
		apiServer = httpserver.NewServer(cfg.APIAddr, dash, qs)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Start socket RPC server for TUI IPC
	var sq model.SchemaQuerier
	if store != nil {
		sq = store
	}
	sockServer := socketrpc.NewServer(cfg.SocketPath, dash, sq)
	socketUp := true
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
		socketUp = false
	} else {
		defer sockServer.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	printStartupBanner(cfg, snap, loadErr, socketUp)

	err = serveUntilDone(ctx, apiServer)

	cancel()
	signal.Stop(sigCh)

	return err
}

// serveUntilDone runs the HTTP API until ctx is cancelled or serving fails,
// then stops it. api may be nil when the API is disabled.
func serveUntilDone(ctx context.Context, api *httpserver.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	if api != nil {
		g.Go(api.Serve)
	}

	// Wait for cancellation (signal handler or a failed Serve) and shut the
	// API down so Serve returns.
	g.Go(func() error {
		<-gctx.Done()
		if api != nil {
			if err := api.Stop(); err != nil {
				log.Printf("server: api shutdown: %v", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "alertscope")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "alertscope.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, snap *model.Snapshot, loadErr error, socketUp bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")
	fail := red.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔═╗╦  ╔═╗╦═╗╔╦╗╔═╗╔═╗╔═╗╔═╗╔═╗
    ╠═╣║  ║╣ ╠╦╝ ║ ╚═╗║  ║ ║╠═╝║╣
    ╩ ╩╩═╝╚═╝╩╚═ ╩ ╚═╝╚═╝╚═╝╩  ╚═╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")

	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	if socketUp {
		lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", check, cyan.Render(shortenPath(cfg.SocketPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", fail, dim.Render("unavailable, see log")))
	}
	lines = append(lines, "")

	// Alerts
	lines = append(lines, bold.Render("    Alerts"))
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf("    %s  Source         %s", check, dim.Render(shortenPath(cfg.Source))))
	if loadErr != nil {
		lines = append(lines, fmt.Sprintf("    %s  First Load     %s", fail, red.Render(loadErr.Error())))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  First Load     %s", check, dim.Render(fmt.Sprintf("%d records", snap.Result.Records))))
	}
	if cfg.RefreshInterval > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Refresh        %s", check, dim.Render("every "+cfg.RefreshInterval.String())))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Refresh        %s", dot, dim.Render("on demand")))
	}
	if cfg.SQLEnabled {
		lines = append(lines, fmt.Sprintf("    %s  SQL            %s", check, dim.Render("in-memory DuckDB")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  SQL            %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
