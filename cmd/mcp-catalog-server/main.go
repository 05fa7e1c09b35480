// Command mcp-catalog-server serves a directory as MCP tools and resources
// over stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ggoodman/mcp-catalog-go/internal/config"
	"github.com/ggoodman/mcp-catalog-go/internal/logctx"
	"github.com/ggoodman/mcp-catalog-go/internal/metrics"
	"github.com/ggoodman/mcp-catalog-go/internal/toolkit"
	"github.com/ggoodman/mcp-catalog-go/mcp"
	"github.com/ggoodman/mcp-catalog-go/mcpservice"
	"github.com/ggoodman/mcp-catalog-go/stdio"
)

// Set at build time.
var version = "dev"

type rootFlags struct {
	configPath string
	overrides  config.Overrides
	quiet      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "mcp-catalog-server",
		Short:         "Serve a directory as MCP tools and resources over stdio",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags, cmd.ErrOrStderr())
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "mcp-catalog.toml", "path to configuration file")
	pf.StringVar(&flags.overrides.Root, "root", "", "directory to serve (overrides config)")
	pf.StringVar(&flags.overrides.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.overrides.LogFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&flags.overrides.MetricsAddr, "metrics-addr", "", "listen address for Prometheus metrics (empty disables)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the server on stdin/stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags, cmd.ErrOrStderr())
		},
	}
	serve.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress the startup banner")

	tools := &cobra.Command{
		Use:   "tools",
		Short: "List the registered tools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTools(flags, cmd.OutOrStdout())
		},
	}

	ver := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mcp-catalog-server %s (protocol %s)\n", version, mcp.LatestProtocolVersion)
		},
	}

	root.AddCommand(serve, tools, ver)
	return root
}

func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath, config.WithDefaultVersion(version))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyFlagOverrides(flags.overrides)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if cfg.JSONLogs() {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(logctx.Handler{Handler: h})
}

func printBanner(w io.Writer, cfg *config.Config, configPath string, d *mcpservice.Dispatcher) {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)

	cyan.Fprintf(w, "%s\n", cfg.Server.Name)
	gray.Fprintf(w, "    version: %s\n\n", cfg.Server.Version)
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Root:     %s\n", cfg.Catalog.Root)
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Config:   %s\n", configPath)
	if cfg.Metrics.Addr != "" {
		green.Fprint(w, "    ▶ ")
		fmt.Fprintf(w, "Metrics:  http://%s/metrics\n", cfg.Metrics.Addr)
	}

	tools := d.ListTools(context.Background())
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Tools:    %d\n", len(tools))
	for _, t := range tools {
		gray.Fprintf(w, "        %s\n", t.Name)
	}
	green.Fprint(w, "    ▶ ")
	fmt.Fprintf(w, "Resources: %s, %s, file://<path>\n", mcpservice.DirectoryURI, mcpservice.StatusURI)
	fmt.Fprintln(w)
}

// buildDispatcher wires the tool registry and catalog rooted at the
// configured directory.
func buildDispatcher(cfg *config.Config, log *slog.Logger) (*mcpservice.Dispatcher, error) {
	catalog := mcpservice.NewCatalog(cfg.Catalog.Root, mcpservice.WithCatalogExtensions(cfg.ExtensionRules()))

	reg := mcpservice.NewToolRegistry(mcpservice.WithRegistryLogger(log))
	if err := toolkit.Register(reg, catalog.Root(), toolkit.WithLogger(log)); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	return mcpservice.NewDispatcher(
		mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: cfg.Server.Name, Version: cfg.Server.Version}),
		mcpservice.WithInstructions(cfg.Server.Instructions),
		mcpservice.WithToolRegistry(reg),
		mcpservice.WithCatalog(catalog),
		mcpservice.WithLogger(log),
	), nil
}

func runServe(parent context.Context, flags *rootFlags, stderr io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log := setupLogger(cfg, stderr)

	d, err := buildDispatcher(cfg, log)
	if err != nil {
		log.Error("server.start.fail", slog.String("err", err.Error()))
		return err
	}
	if !flags.quiet {
		printBanner(stderr, cfg, flags.configPath, d)
	}

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		stop, err := startMetricsServer(ctx, cfg.Metrics.Addr, m, log)
		if err != nil {
			log.Error("metrics.listen.fail", slog.String("addr", cfg.Metrics.Addr), slog.String("err", err.Error()))
			return err
		}
		defer stop()
	}

	log.Info("server.start",
		slog.String("name", cfg.Server.Name),
		slog.String("version", cfg.Server.Version),
		slog.String("root", cfg.Catalog.Root),
		slog.String("instance_id", d.InstanceID()),
	)

	h := stdio.NewHandler(d, stdio.WithLogger(log), stdio.WithMetrics(m))
	err = h.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server.serve.fail", slog.String("err", err.Error()))
		return err
	}
	log.Info("server.stop")
	return nil
}

// startMetricsServer binds addr and serves /metrics until the returned stop
// function runs or ctx ends.
func startMetricsServer(ctx context.Context, addr string, m *metrics.Metrics, log *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorContext(ctx, "metrics.serve.fail", slog.String("err", err.Error()))
		}
	}()
	log.InfoContext(ctx, "metrics.listen", slog.String("addr", ln.Addr().String()))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}

func runTools(flags *rootFlags, w io.Writer) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	d, err := buildDispatcher(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}
	bold := color.New(color.Bold)
	for _, t := range d.ListTools(context.Background()) {
		bold.Fprintf(w, "%-20s", t.Name)
		fmt.Fprintf(w, " %s\n", t.Description)
	}
	return nil
}
