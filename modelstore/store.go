// Package modelstore fetches the opaque artifacts used by the analysis pipeline
// (trained model, fitted scaler, detection cascades) from the local disk, HTTP(S) or S3.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/esimov/faceshape/utils"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when the artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Store loads artifacts by URI. Supported schemes are file (or a plain path), http, https and s3.
type Store struct {
	http *http.Client
	s3   s3iface.S3API
	log  logrus.FieldLogger
}

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient sets the client used for http and https URIs.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		if c != nil {
			s.http = c
		}
	}
}

// WithS3Client sets the client used for s3 URIs.
func WithS3Client(c s3iface.S3API) Option {
	return func(s *Store) {
		s.s3 = c
	}
}

// WithLogger sets the store logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates an artifact store.
func New(opts ...Option) *Store {
	s := &Store{
		http: &http.Client{Timeout: 30 * time.Second},
		log:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the content of the artifact found at uri.
func (s *Store) Load(ctx context.Context, uri string) ([]byte, error) {
	if uri == "" {
		return nil, ErrNotFound
	}
	start := time.Now()

	var (
		data []byte
		err  error
	)
	switch scheme(uri) {
	case "http", "https":
		if !utils.IsValidUrl(uri) {
			return nil, fmt.Errorf("invalid artifact url %q", uri)
		}
		data, err = utils.Download(ctx, s.http, uri)
	case "s3":
		data, err = s.loadS3(ctx, uri)
	case "file":
		data, err = loadFile(strings.TrimPrefix(uri, "file://"))
	case "":
		data, err = loadFile(uri)
	default:
		return nil, fmt.Errorf("unsupported artifact uri %q", uri)
	}
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"uri":      uri,
		"bytes":    len(data),
		"duration": time.Since(start),
	}).Debug("artifact loaded")
	return data, nil
}

func loadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read artifact %s: %w", path, err)
	}
	return data, nil
}

// scheme returns the lower cased scheme of uri, or an empty string for plain paths.
func scheme(uri string) string {
	i := strings.Index(uri, "://")
	if i <= 0 {
		return ""
	}
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
