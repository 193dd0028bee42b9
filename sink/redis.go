// Package sink publishes finished session results to Redis, both as a keyed snapshot
// and as a pub/sub notification.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/esimov/faceshape"
	"github.com/esimov/faceshape/metrics"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	keyPrefix      = "faceshape:session:"
	DefaultChannel = "faceshape:sessions"
	DefaultTTL     = 24 * time.Hour
)

// Config holds the Redis connection and publishing settings.
type Config struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db" validate:"gte=0"`
	Channel  string        `koanf:"channel"`
	TTL      time.Duration `koanf:"ttl" validate:"gte=0"`
}

// Connect opens a Redis client and checks the connection.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Publisher stores and announces session results.
type Publisher struct {
	client  redis.Cmdable
	channel string
	ttl     time.Duration
	log     logrus.FieldLogger
}

// NewPublisher creates a publisher on top of a Redis client. Empty settings fall back to the defaults.
func NewPublisher(client redis.Cmdable, cfg Config, log logrus.FieldLogger) *Publisher {
	p := &Publisher{
		client:  client,
		channel: cfg.Channel,
		ttl:     cfg.TTL,
		log:     log,
	}
	if p.channel == "" {
		p.channel = DefaultChannel
	}
	if p.ttl == 0 {
		p.ttl = DefaultTTL
	}
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}
	return p
}

// SessionKey returns the key under which the result of a session is stored.
func SessionKey(id string) string {
	return keyPrefix + id
}

// Publish writes the result under its session key and notifies the subscribers of the channel.
func (p *Publisher) Publish(ctx context.Context, res faceshape.SessionResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		metrics.RecordPublishError()
		return fmt.Errorf("unable to encode session result: %w", err)
	}

	key := SessionKey(res.SessionID)
	if err := p.client.Set(ctx, key, payload, p.ttl).Err(); err != nil {
		metrics.RecordPublishError()
		return fmt.Errorf("unable to store session result %s: %w", key, err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		metrics.RecordPublishError()
		return fmt.Errorf("unable to publish session result on %s: %w", p.channel, err)
	}

	p.log.WithFields(logrus.Fields{
		"key":     key,
		"channel": p.channel,
		"shape":   res.Report.PrimaryShape,
	}).Debug("session result published")
	return nil
}

// Fetch returns a previously stored session result.
func (p *Publisher) Fetch(ctx context.Context, id string) (faceshape.SessionResult, error) {
	var res faceshape.SessionResult

	data, err := p.client.Get(ctx, SessionKey(id)).Bytes()
	if err != nil {
		return res, fmt.Errorf("unable to fetch session result %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("unable to decode session result %s: %w", id, err)
	}
	return res, nil
}
