package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/itoalabs/insight/pkg/pipeline"
	"github.com/itoalabs/insight/pkg/reasoning"
	"github.com/itoalabs/insight/pkg/server"
	"github.com/itoalabs/insight/pkg/server/metrics"

	_ "net/http/pprof"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr       = ":8000"
	defaultMetricsAddr      = ":8080"
	defaultModel            = "claude-sonnet-4-20250514"
	defaultReasoningTimeout = 30 * time.Second
	defaultShutdownTimeout  = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		return nil
	}

	log := newLogger(cfg.Verbose)

	// Start pprof server
	if cfg.EnablePprof {
		go func() {
			log.Info("starting pprof server", "address", "localhost:6060")
			err := http.ListenAndServe("localhost:6060", nil)
			if err != nil {
				log.Error("failed to start pprof server", "error", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start prometheus metrics server
	var metricsServerErrCh = make(chan error, 1)
	if cfg.MetricsAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
				return
			}
		}()
	}

	reasoner, err := newReasoningClient(cfg, log)
	if err != nil {
		return err
	}

	prompts, err := pipeline.LoadPrompts()
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	pipe, err := pipeline.New(&pipeline.Config{
		Logger:           log,
		Reasoning:        reasoner,
		Prompts:          prompts,
		ReasoningTimeout: cfg.ReasoningTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	httpListener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to create HTTP listener: %w", err)
	}
	defer httpListener.Close()

	srv, err := server.New(&server.Config{
		Logger:          log,
		Pipeline:        pipe,
		HTTPListener:    httpListener,
		AllowedOrigins:  cfg.AllowedOrigins,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("server: shutting down", "reason", ctx.Err())
		return nil
	case err := <-serverErrCh:
		return err
	case err := <-metricsServerErrCh:
		log.Error("server: metrics server error causing shutdown", "error", err)
		return err
	}
}

func newReasoningClient(cfg Config, log *slog.Logger) (reasoning.Client, error) {
	if cfg.Offline {
		log.Info("reasoning disabled, all stages will use deterministic fallbacks")
		return &reasoning.Disabled{}, nil
	}
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("anthropic api key is empty (set ANTHROPIC_API_KEY or --offline)")
	}

	client, err := reasoning.NewAnthropicClient(reasoning.AnthropicConfig{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoning client: %w", err)
	}
	if cfg.ReasoningRetries > 0 {
		return reasoning.NewRetryClient(client, cfg.ReasoningRetries, log), nil
	}
	return client, nil
}

type Config struct {
	ShowVersion bool
	Verbose     bool
	EnablePprof bool
	Offline     bool

	ListenAddr  string
	MetricsAddr string

	AnthropicAPIKey  string
	Model            string
	MaxTokens        int64
	ReasoningTimeout time.Duration
	ReasoningRetries int

	AllowedOrigins  []string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	return i, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func loadConfig() (Config, error) {
	var cfg Config
	var originsCSV string
	var maxTokens int

	flag.BoolVar(&cfg.ShowVersion, "version", false, "show version and exit")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "verbose mode - show debug logs")
	flag.BoolVar(&cfg.EnablePprof, "enable-pprof", false, "enable pprof server")
	flag.BoolVar(&cfg.Offline, "offline", false, "disable the reasoning service and run every stage on deterministic fallbacks")

	flag.StringVar(&cfg.ListenAddr, "listen-addr", getenv("LISTEN_ADDR", defaultListenAddr), "HTTP server listen address (env: LISTEN_ADDR)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", getenv("METRICS_ADDR", defaultMetricsAddr), "address to listen on for prometheus metrics (env: METRICS_ADDR)")
	flag.StringVar(&cfg.Model, "model", getenv("ANTHROPIC_MODEL", defaultModel), "anthropic model (env: ANTHROPIC_MODEL)")
	flag.DurationVar(&cfg.ReasoningTimeout, "reasoning-timeout", defaultReasoningTimeout, "timeout for each individual reasoning call")
	flag.IntVar(&cfg.ReasoningRetries, "reasoning-retries", 2, "retries per reasoning call (0 disables retrying)")
	flag.StringVar(&originsCSV, "allowed-origins", getenv("ALLOWED_ORIGINS", "http://localhost:5173"), "allowed CORS origins csv (env: ALLOWED_ORIGINS)")
	flag.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", 0, "maximum upload size in bytes (0 uses the server default)")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", defaultShutdownTimeout, "server shutdown timeout")

	flag.Parse()

	if cfg.ShowVersion {
		return cfg, nil
	}

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.AllowedOrigins = splitCSV(originsCSV)

	var err error
	maxTokens, err = getenvInt("ANTHROPIC_MAX_TOKENS", 0)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTokens = int64(maxTokens)

	return cfg, nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(formatRFC3339Millis(t))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
