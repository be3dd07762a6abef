// Package activitymap flattens auth activity events into records that
// stream and queue transports can carry.
package activitymap

import (
	"encoding/json"
	"strings"
	"time"

	auth "github.com/goliatone/go-portal-auth"
)

// MetadataKeyActorType is added to the metadata when the event names an actor type
const MetadataKeyActorType = "actor_type"

const (
	ObjectAccount      = "account"
	ObjectVerification = "verification"
	ObjectSession      = "session"

	DefaultChannel = "portal.auth"

	actorAnonymous = "anonymous"
	actorSystem    = "system"
)

// Record is the transport shape of an auth.ActivityEvent
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Option func(*options)

type options struct {
	channel       string
	actorFallback string
	now           func() time.Time
}

// WithChannel overrides DefaultChannel
func WithChannel(channel string) Option {
	return func(o *options) {
		if channel = strings.TrimSpace(channel); channel != "" {
			o.channel = channel
		}
	}
}

// WithActorFallback names the actor of events that carry no actor or account ID
func WithActorFallback(actorID string) Option {
	return func(o *options) {
		o.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock stamps events that carry no OccurredAt
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Normalize maps event to a Record. The object type is derived from the
// event type: verification token events, account events and session events.
// Events without an account ID use the email metadata as object ID.
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	o := options{channel: DefaultChannel, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = o.now()
	}

	return Record{
		ActorID:    actorID(event, o.actorFallback),
		Verb:       string(event.EventType),
		ObjectType: ObjectType(event.EventType),
		ObjectID:   objectID(event),
		Channel:    o.channel,
		Metadata:   metadata(event),
		OccurredAt: occurredAt.UTC(),
	}
}

// ObjectType returns the kind of object an event type acts on
func ObjectType(eventType auth.ActivityEventType) string {
	name := string(eventType)
	switch {
	case strings.HasPrefix(name, "account.verification."):
		return ObjectVerification
	case strings.HasPrefix(name, "account."):
		return ObjectAccount
	default:
		return ObjectSession
	}
}

// Fields flattens the record into a map of strings, metadata is JSON encoded
func (r Record) Fields() (map[string]any, error) {
	fields := map[string]any{
		"actor_id":    r.ActorID,
		"verb":        r.Verb,
		"object_type": r.ObjectType,
		"object_id":   r.ObjectID,
		"channel":     r.Channel,
		"occurred_at": r.OccurredAt.Format(time.RFC3339Nano),
	}

	if len(r.Metadata) > 0 {
		raw, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, err
		}
		fields["metadata"] = string(raw)
	}

	return fields, nil
}

func actorID(event auth.ActivityEvent, fallback string) string {
	if id := strings.TrimSpace(event.Actor.ID); id != "" {
		return id
	}

	if id := strings.TrimSpace(event.UserID); id != "" {
		return id
	}

	if fallback != "" {
		return fallback
	}

	// failed logins and expired links come from visitors we can not name
	if event.Actor.Type == "user" {
		return actorAnonymous
	}

	return actorSystem
}

func objectID(event auth.ActivityEvent) string {
	if id := strings.TrimSpace(event.UserID); id != "" {
		return id
	}

	for _, key := range []string{"email", "identifier"} {
		if v, ok := event.Metadata[key].(string); ok && v != "" {
			return v
		}
	}

	return ""
}

func metadata(event auth.ActivityEvent) map[string]any {
	if len(event.Metadata) == 0 && event.Actor.Type == "" {
		return nil
	}

	out := make(map[string]any, len(event.Metadata)+1)
	for k, v := range event.Metadata {
		out[k] = v
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, ok := out[MetadataKeyActorType]; !ok {
			out[MetadataKeyActorType] = actorType
		}
	}

	return out
}
