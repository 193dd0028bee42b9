// Package logger builds the process wide logrus logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger output.
type Options struct {
	Level    string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	File     string `koanf:"file"`
	NoColors bool   `koanf:"no_colors"`
	Caller   bool   `koanf:"caller"`
	// Output overrides the console writer. Defaults to os.Stderr.
	Output io.Writer `koanf:"-"`
}

// New creates a logger writing to the console and, when a file is set, to a rotated log file.
func New(opts Options) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		lvl, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = lvl
	}

	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&formatter.Formatter{
		NoColors:        opts.NoColors,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})

	console := opts.Output
	if console == nil {
		console = os.Stderr
	}
	writers := []io.Writer{console}

	if opts.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}

	log.SetOutput(io.MultiWriter(writers...))
	log.SetReportCaller(opts.Caller)

	return log, nil
}
