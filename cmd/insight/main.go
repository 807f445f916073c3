// insight runs one analysis from the command line: it reads a CSV file,
// executes the full pipeline, and prints the resulting artifact as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	flag "github.com/spf13/pflag"

	"github.com/itoalabs/insight/pkg/dataset"
	"github.com/itoalabs/insight/pkg/pipeline"
	"github.com/itoalabs/insight/pkg/reasoning"
)

const defaultModel = "claude-sonnet-4-20250514"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	fileFlag := flag.String("file", "", "path to the CSV file to analyze")
	channelFlag := flag.String("channel", "overview", fmt.Sprintf("channel context, one of: %s", strings.Join(pipeline.Channels, ", ")))
	offlineFlag := flag.Bool("offline", false, "disable the reasoning service and run every stage on deterministic fallbacks")
	modelFlag := flag.String("model", getenv("ANTHROPIC_MODEL", defaultModel), "anthropic model (env: ANTHROPIC_MODEL)")
	timeoutFlag := flag.Duration("reasoning-timeout", 30*time.Second, "timeout for each individual reasoning call")
	retriesFlag := flag.Int("reasoning-retries", 2, "retries per reasoning call (0 disables retrying)")
	verboseFlag := flag.Bool("verbose", false, "verbose mode - show debug logs")
	flag.Parse()

	if *fileFlag == "" {
		return fmt.Errorf("file is required (--file)")
	}
	if !pipeline.ValidChannel(*channelFlag) {
		return fmt.Errorf("unknown channel %q (valid: %s)", *channelFlag, strings.Join(pipeline.Channels, ", "))
	}

	log := newLogger(*verboseFlag)

	f, err := os.Open(*fileFlag)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	ds, err := dataset.ParseCSV(f)
	if err != nil {
		return fmt.Errorf("failed to parse CSV: %w", err)
	}

	var reasoner reasoning.Client
	if *offlineFlag {
		reasoner = &reasoning.Disabled{}
	} else {
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return fmt.Errorf("anthropic api key is empty (set ANTHROPIC_API_KEY or pass --offline)")
		}
		client, err := reasoning.NewAnthropicClient(reasoning.AnthropicConfig{
			APIKey: apiKey,
			Model:  *modelFlag,
			Logger: log,
		})
		if err != nil {
			return fmt.Errorf("failed to create reasoning client: %w", err)
		}
		reasoner = client
		if *retriesFlag > 0 {
			reasoner = reasoning.NewRetryClient(client, *retriesFlag, log)
		}
	}

	prompts, err := pipeline.LoadPrompts()
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}

	pipe, err := pipeline.New(&pipeline.Config{
		Logger:           log,
		Reasoning:        reasoner,
		Prompts:          prompts,
		ReasoningTimeout: *timeoutFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	artifact, err := pipe.Run(ctx, ds, *channelFlag)
	if err != nil {
		return fmt.Errorf("analysis aborted: %w", err)
	}

	out, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(t.Format("2006-01-02T15:04:05.000Z"))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}
