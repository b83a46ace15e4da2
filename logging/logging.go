package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/DomeLiquid/lending/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds the ledger logger. Output goes to a rotating file when cfg.File
// is set, otherwise to stdout. Console switches to human readable lines.
// The returned closer flushes the rotating file and is a no-op for stdout.
func New(cfg config.LogConfig, service string) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		return zerolog.Nop(), nopCloser{}, errors.Wrap(err, "log level")
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if file := strings.TrimSpace(cfg.File); file != "" {
		rotating := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out, closer = rotating, rotating
	}

	return build(out, cfg.Console, level, service), closer, nil
}

func build(out io.Writer, console bool, level zerolog.Level, service string) zerolog.Logger {
	if console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}
	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if service = strings.TrimSpace(service); service != "" {
		ctx = ctx.Str("service", service)
	}
	return ctx.Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
