package server

import (
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/itoalabs/insight/pkg/pipeline"
)

const (
	defaultMaxBodyBytes      = 25 << 20 // 25MB of raw CSV
	defaultShutdownTimeout   = 30 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
)

type Config struct {
	Logger       *slog.Logger
	Pipeline     *pipeline.Pipeline
	HTTPListener net.Listener

	// AllowedOrigins configures CORS for browser dashboards. Empty disables
	// cross-origin access.
	AllowedOrigins []string

	// MaxBodyBytes caps the size of an uploaded dataset.
	MaxBodyBytes int64

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pipeline == nil {
		return errors.New("pipeline is required")
	}
	if cfg.HTTPListener == nil {
		return errors.New("http listener is required")
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}
