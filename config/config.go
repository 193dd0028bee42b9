// Package config defines the faceshape configuration and its loading layers.
package config

import (
	"runtime"
	"time"

	"github.com/esimov/faceshape"
	"github.com/esimov/faceshape/detector"
	"github.com/esimov/faceshape/logger"
	"github.com/esimov/faceshape/modelstore"
	"github.com/esimov/faceshape/sink"
)

// Config contains the process configuration.
type Config struct {
	// LogLevel controls verbosity: trace, debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"oneof=trace debug info warn warning error"`
	// LogFile enables rotated file logging when set.
	LogFile string `koanf:"log_file"`

	// Artifact URIs: a local path, file://, http(s):// or s3://bucket/key.
	FaceCascade  string `koanf:"face_cascade" validate:"required"`
	PupilCascade string `koanf:"pupil_cascade"`
	ModelURI     string `koanf:"model_uri" validate:"required_with=ScalerURI"`
	ScalerURI    string `koanf:"scaler_uri" validate:"required_with=ModelURI"`

	// HistorySize bounds the prediction history of a session.
	HistorySize int `koanf:"history_size" validate:"gte=1"`
	// WindowSeconds, MinPredictions and FrameIntervalMS make up the capture policy.
	WindowSeconds   float64 `koanf:"window_seconds" validate:"gt=0"`
	MinPredictions  int     `koanf:"min_predictions" validate:"gte=1,ltefield=HistorySize"`
	FrameIntervalMS int     `koanf:"frame_interval_ms" validate:"gte=0"`

	// Strategy selects the classifier: auto, learned or heuristic.
	Strategy string `koanf:"strategy" validate:"oneof=auto learned heuristic"`

	Detection detector.Params     `koanf:"detection"`
	Redis     Redis               `koanf:"redis"`
	S3        modelstore.S3Config `koanf:"s3"`

	// MetricsAddr exposes the Prometheus handler when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,hostname_port"`
	// Workers sets the number of batch mode workers.
	Workers int `koanf:"workers" validate:"gte=1,lte=20"`
}

// Redis holds the result sink settings. An empty address disables publishing.
type Redis struct {
	Addr       string `koanf:"addr" validate:"omitempty,hostname_port"`
	Password   string `koanf:"password"`
	DB         int    `koanf:"db" validate:"gte=0"`
	Channel    string `koanf:"channel"`
	TTLSeconds int    `koanf:"ttl_seconds" validate:"gte=0"`
}

// New returns a Config filled with the defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		HistorySize:     faceshape.DefaultHistorySize,
		WindowSeconds:   faceshape.DefaultCapturePolicy.Window.Seconds(),
		MinPredictions:  faceshape.DefaultCapturePolicy.MinPredictions,
		FrameIntervalMS: int(faceshape.DefaultCapturePolicy.FrameInterval / time.Millisecond),
		Strategy:        faceshape.StrategyAuto,
		Detection:       detector.DefaultParams,
		Redis: Redis{
			Channel:    sink.DefaultChannel,
			TTLSeconds: int(sink.DefaultTTL / time.Second),
		},
		Workers: min(runtime.NumCPU(), 20),
	}
}

// Policy converts the capture settings into a session capture policy.
func (c *Config) Policy() faceshape.CapturePolicy {
	return faceshape.CapturePolicy{
		Window:         time.Duration(c.WindowSeconds * float64(time.Second)),
		MinPredictions: c.MinPredictions,
		FrameInterval:  time.Duration(c.FrameIntervalMS) * time.Millisecond,
	}
}

// Logger returns the logger options.
func (c *Config) Logger() logger.Options {
	return logger.Options{
		Level: c.LogLevel,
		File:  c.LogFile,
	}
}

// Sink returns the result sink settings.
func (c *Config) Sink() sink.Config {
	return sink.Config{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Channel:  c.Redis.Channel,
		TTL:      time.Duration(c.Redis.TTLSeconds) * time.Second,
	}
}
