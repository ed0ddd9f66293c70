package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/aptgraph/aptgraph/internal/config"
	"github.com/aptgraph/aptgraph/internal/metrics"
	"github.com/aptgraph/aptgraph/internal/pipeline"
	"github.com/aptgraph/aptgraph/internal/rpcserver"
	"github.com/aptgraph/aptgraph/internal/session"
	"github.com/aptgraph/aptgraph/internal/store"
	"github.com/aptgraph/aptgraph/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var metricsBind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis server (MCP over stdio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				cfg = config.Defaults()
			}
			if metricsBind != "" {
				cfg.Telemetry.MetricsBind = metricsBind
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			level := slog.LevelInfo
			switch cfg.Server.LogLevel {
			case "debug":
				level = slog.LevelDebug
			case "warn":
				level = slog.LevelWarn
			case "error":
				level = slog.LevelError
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			st, closeStore, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer closeStore()

			sessions, err := openSessions(cfg)
			if err != nil {
				return fmt.Errorf("opening session store: %w", err)
			}

			registry := metrics.New()
			hooks := pipeline.MultiHook{registry}

			var tp interface{ Shutdown(context.Context) error }
			if cfg.Telemetry.TraceExporter == "stdout" {
				provider, err := telemetry.NewStdoutProvider(os.Stderr)
				if err != nil {
					return fmt.Errorf("starting tracer: %w", err)
				}
				tp = provider
				hooks = append(hooks, telemetry.StageHook{})
			}

			controller := &pipeline.Controller{
				Store:         st,
				WhitelistPath: cfg.Whitelist.Path,
				Logger:        logger,
				Hook:          hooks,
			}

			rpc := rpcserver.New("aptgraph-server", version, controller, sessions, logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// A nil channel blocks forever in a select, so leaving
			// metricsErrCh nil when metrics aren't enabled means that
			// branch never fires.
			var metricsSrv *http.Server
			var metricsErrCh chan error
			if cfg.Telemetry.MetricsBind != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", registry.Handler())
				metricsSrv = &http.Server{Addr: cfg.Telemetry.MetricsBind, Handler: mux}
				metricsErrCh = make(chan error, 1)
				go func() {
					if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						metricsErrCh <- err
						return
					}
					metricsErrCh <- nil
				}()
			}

			printBanner(cfg)

			rpcErrCh := make(chan error, 1)
			go func() {
				rpcErrCh <- rpc.Serve(ctx, &mcp.StdioTransport{})
			}()

			var runErr error
			select {
			case runErr = <-rpcErrCh:
			case runErr = <-metricsErrCh:
				stop()
				<-rpcErrCh
			case <-ctx.Done():
				<-rpcErrCh
			}

			shutdownMetrics(metricsSrv)
			shutdownTracer(tp)
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsBind, "metrics-bind", "", "override telemetry.metrics_bind (e.g. :9090)")
	return cmd
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.GraphStore, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		st, err := store.OpenPostgres(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		st, err := store.OpenSQLite(cfg.Store.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	}
}

func openSessions(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Session.RedisAddr})
		return session.NewRedisStore(client, "aptgraph:"), nil
	default:
		return session.NewMemoryStore(), nil
	}
}

func shutdownMetrics(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

func shutdownTracer(tp interface{ Shutdown(context.Context) error }) {
	if tp == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = tp.Shutdown(ctx)
}

// printBanner writes to stderr: stdin/stdout carry the MCP JSON-RPC
// stream and must never see anything else.
func printBanner(cfg *config.Config) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "  aptgraph-server")
	fmt.Fprintln(os.Stderr, "  ────────────────────────────────────────")
	fmt.Fprintf(os.Stderr, "  Transport:  stdio (MCP)\n")
	fmt.Fprintf(os.Stderr, "  Store:      %s\n", cfg.Store.Driver)
	fmt.Fprintf(os.Stderr, "  Sessions:   %s\n", cfg.Session.Backend)
	if cfg.Telemetry.MetricsBind != "" {
		fmt.Fprintf(os.Stderr, "  Metrics:    http://%s/metrics\n", cfg.Telemetry.MetricsBind)
	}
	fmt.Fprintln(os.Stderr, "  ────────────────────────────────────────")
	fmt.Fprintln(os.Stderr, "  Press Ctrl+C to stop.")
	fmt.Fprintln(os.Stderr)
}
