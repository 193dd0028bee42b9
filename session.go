package faceshape

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/esimov/faceshape/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FaceDetector finds the most prominent face of a frame. It returns ErrNoFace when the frame has none.
type FaceDetector interface {
	DetectFace(frame image.Image) (FaceBox, error)
}

// FrameSource supplies the frames of a video stream. Next blocks until a frame is available
// and returns io.EOF once the stream is exhausted.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// CapturePolicy bounds the collection of a session: it stops after Window elapsed or
// after MinPredictions predictions were gathered, whichever comes first.
type CapturePolicy struct {
	Window         time.Duration
	MinPredictions int
	FrameInterval  time.Duration
}

// DefaultCapturePolicy collects for five seconds or eight predictions, reading a frame every 50ms.
var DefaultCapturePolicy = CapturePolicy{
	Window:         5 * time.Second,
	MinPredictions: 8,
	FrameInterval:  50 * time.Millisecond,
}

// SessionResult is the outcome of a capture session, ready to be handed to downstream consumers.
type SessionResult struct {
	SessionID    string           `json:"session_id"`
	Report       AggregatedReport `json:"report"`
	Metrics      *FacialMetrics   `json:"metrics,omitempty"`
	Measurements *Measurements    `json:"measurements,omitempty"`
	Strategy     string           `json:"strategy"`
	Frames       int              `json:"frames"`
	StartedAt    time.Time        `json:"started_at"`
	Duration     time.Duration    `json:"duration"`
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(log logrus.FieldLogger) SessionOption {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// WithHistorySize sets the capacity of the prediction history.
func WithHistorySize(size int) SessionOption {
	return func(s *Session) {
		s.aggregator = NewAggregator(size)
	}
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Session is a single capture loop reading frames from one source and feeding its own prediction history.
// The stop signal is owned by the session, so concurrent sessions never interfere with each other.
type Session struct {
	id         string
	source     FrameSource
	pipeline   *Pipeline
	aggregator *Aggregator
	log        logrus.FieldLogger

	stopped   atomic.Bool
	running   atomic.Bool
	closeOnce sync.Once

	mu     sync.RWMutex
	cancel context.CancelFunc
	last   *Measurements
	frames int
}

// NewSession creates a capture session. The session takes ownership of the frame source
// and closes it once the capture loop exits.
func NewSession(source FrameSource, pipeline *Pipeline, opts ...SessionOption) *Session {
	s := &Session{
		id:         uuid.NewString(),
		source:     source,
		pipeline:   pipeline,
		aggregator: NewAggregator(DefaultHistorySize),
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("session", s.id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Strategy returns the classification strategy used by the session.
func (s *Session) Strategy() string { return s.pipeline.Strategy() }

// Aggregator returns the prediction history of the session. Readers may query it while the loop runs.
func (s *Session) Aggregator() *Aggregator { return s.aggregator }

// Report aggregates the current prediction history.
func (s *Session) Report() AggregatedReport { return s.aggregator.Aggregate() }

// LastMeasurements returns the measurements of the most recently classified frame.
func (s *Session) LastMeasurements() (Measurements, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Measurements{}, false
	}
	return *s.last, true
}

// Frames returns the number of frames read so far.
func (s *Session) Frames() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Stop signals the capture loop to exit. It is safe to call from any goroutine, any number of times.
func (s *Session) Stop() {
	s.stopped.Store(true)

	s.mu.RLock()
	cancel := s.cancel
	s.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Stopped reports whether the session received the stop signal.
func (s *Session) Stopped() bool { return s.stopped.Load() }

// Run reads and classifies frames until the source is exhausted, the session is stopped or the context is done.
// A stopped session or an exhausted source is not an error.
func (s *Session) Run(ctx context.Context) error {
	metrics.SessionStarted()
	defer metrics.SessionFinished("run")

	return s.loop(ctx, 0, nil)
}

// Collect runs the capture loop under the given policy and returns the session result. When fewer than
// MinPredictions predictions were gathered the report is the Undetected one. The facial metrics are
// computed from the last classified frame.
func (s *Session) Collect(ctx context.Context, policy CapturePolicy) (SessionResult, error) {
	started := time.Now()
	metrics.SessionStarted()

	if policy.Window > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Window)
		defer cancel()
	}
	enough := func() bool {
		return policy.MinPredictions > 0 && s.aggregator.Len() >= policy.MinPredictions
	}
	err := s.loop(ctx, policy.FrameInterval, enough)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		metrics.SessionFinished("failed")
		return SessionResult{}, err
	}

	res := SessionResult{
		SessionID: s.id,
		Strategy:  s.pipeline.Strategy(),
		Frames:    s.Frames(),
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if s.aggregator.Len() < policy.MinPredictions || s.aggregator.Len() == 0 {
		res.Report = undetectedReport()
		metrics.SessionFinished(string(Undetected))
		s.log.WithField("predictions", s.aggregator.Len()).Warn("not enough predictions collected")
		return res, nil
	}

	res.Report = s.aggregator.Aggregate()
	if m, ok := s.LastMeasurements(); ok {
		fm := ComputeFacialMetrics(m)
		res.Measurements = &m
		res.Metrics = &fm
	}
	metrics.SessionFinished("detected")
	s.log.WithFields(logrus.Fields{
		"label":      res.Report.PrimaryShape,
		"percentage": res.Report.PrimaryConfidence,
		"frames":     res.Frames,
	}).Info("face shape collected")

	return res, nil
}

// loop is the capture loop shared by Run and Collect. The stop signal is checked at the top of
// every iteration and the frame source is released on every exit path. A read failing after the
// context ended, e.g. on the source closed by cancellation, is reported as the context outcome.
func (s *Session) loop(ctx context.Context, interval time.Duration, done func() bool) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("session %s is already running", s.id)
	}
	defer s.running.Store(false)
	defer s.closeSource()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	// Closing the source unblocks a Next stuck on a stalled pipe or device
	// once the session is stopped or its window elapsed.
	stopClose := context.AfterFunc(ctx, s.closeSource)
	defer stopClose()

	for {
		if s.stopped.Load() {
			s.log.Debug("capture loop stopped")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return s.contextErr(ctx)
		}

		frame, err := s.source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debug("frame source exhausted")
				return nil
			}
			if ctx.Err() != nil {
				return s.contextErr(ctx)
			}
			return fmt.Errorf("reading frame: %w", err)
		}

		s.mu.Lock()
		s.frames++
		n := s.frames
		s.mu.Unlock()

		if err := s.processFrame(frame); err != nil {
			s.log.WithError(err).WithField("frame", n).Debug("frame skipped")
		}
		if done != nil && done() {
			return nil
		}

		if interval > 0 {
			select {
			case <-ctx.Done():
				return s.contextErr(ctx)
			case <-time.After(interval):
			}
		}
	}
}

// contextErr maps a cancellation caused by Stop to a clean exit.
func (s *Session) contextErr(ctx context.Context) error {
	if s.stopped.Load() {
		return nil
	}
	return ctx.Err()
}

// processFrame runs the analysis pipeline over a single frame and appends the prediction to the history.
func (s *Session) processFrame(frame image.Image) error {
	a, err := s.pipeline.Analyze(frame)
	if err != nil {
		return err
	}
	s.aggregator.Append(a.Result)

	s.mu.Lock()
	s.last = &a.Measurements
	s.mu.Unlock()

	metrics.UpdateHistorySize(s.aggregator.Len())
	s.log.WithFields(logrus.Fields{
		"label":      a.Result.Label,
		"confidence": a.Result.Confidence,
	}).Debug("frame classified")
	return nil
}

func (s *Session) closeSource() {
	s.closeOnce.Do(func() {
		if err := s.source.Close(); err != nil {
			s.log.WithError(err).Warn("could not close the frame source")
		}
	})
}
