// Package logging configures the process-wide zerolog logger and exposes the
// same sink for other handlers, such as the HTTP request logger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"cipher-rooms/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	mu     sync.RWMutex
	output io.Writer = os.Stdout
	closer io.Closer
)

// Init installs the global logger. When cfg.File is set, logs go to stdout
// and a size-capped file.
func Init(cfg config.LogConfig) error {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var sink io.Writer = os.Stdout
	var fileCloser io.Closer
	if path := strings.TrimSpace(cfg.File); path != "" {
		fw, err := newRotatingWriter(path, cfg.MaxMB)
		if err != nil {
			return err
		}
		sink = io.MultiWriter(os.Stdout, fw)
		fileCloser = fw
	}

	var console io.Writer = sink
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: sink}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(console).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}

	mu.Lock()
	prev := closer
	output = sink
	closer = fileCloser
	log.Logger = logger
	mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// Writer is the raw sink behind the global logger.
func Writer() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return output
}

// Close releases the log file, if any, and points the logger back at stdout.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	output = os.Stdout
	log.Logger = log.Logger.Output(os.Stdout)
	return err
}
