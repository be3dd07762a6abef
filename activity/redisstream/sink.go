// Package redisstream publishes activity events to a Redis stream so
// other services can follow logins, registrations and session changes.
package redisstream

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/activitymap"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultStream = "portal:auth:activity"
	DefaultMaxLen = 10000
)

// Streamer is the subset of the redis client the sink needs
type Streamer interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Config for the stream sink
type Config struct {
	Stream string
	MaxLen int64
	// Options are forwarded to activitymap.Normalize
	Options []activitymap.Option
}

// Sink implements auth.ActivitySink on top of XADD
type Sink struct {
	client Streamer
	stream string
	maxLen int64
	opts   []activitymap.Option
}

var _ auth.ActivitySink = (*Sink)(nil)

func New(client Streamer, cfg Config) *Sink {
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = DefaultStream
	}

	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	return &Sink{
		client: client,
		stream: stream,
		maxLen: maxLen,
		opts:   cfg.Options,
	}
}

// Args builds the XADD arguments for event
func (s *Sink) Args(event auth.ActivityEvent) (*redis.XAddArgs, error) {
	values, err := activitymap.Normalize(event, s.opts...).Fields()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode activity metadata").
			WithTextCode("ACTIVITY_ENCODE_FAILED").
			WithMetadata(map[string]any{"event": string(event.EventType)})
	}

	return &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}, nil
}

// Record implements auth.ActivitySink
func (s *Sink) Record(ctx context.Context, event auth.ActivityEvent) error {
	if s == nil || s.client == nil {
		return nil
	}

	args, err := s.Args(event)
	if err != nil {
		return err
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to publish activity event").
			WithTextCode("ACTIVITY_PUBLISH_FAILED").
			WithMetadata(map[string]any{
				"stream": s.stream,
				"event":  string(event.EventType),
			})
	}

	return nil
}
