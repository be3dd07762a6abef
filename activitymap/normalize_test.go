package activitymap_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/activitymap"
)

var occurred = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestNormalizeLoginEvent(t *testing.T) {
	event := auth.ActivityEvent{
		EventType:  auth.ActivityEventLoginSuccess,
		Actor:      auth.ActorRef{ID: "acc-1", Type: "user"},
		UserID:     "acc-1",
		Metadata:   map[string]any{"method": "password"},
		OccurredAt: occurred,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "acc-1", out.ActorID)
	assert.Equal(t, "auth.login.success", out.Verb)
	assert.Equal(t, activitymap.ObjectSession, out.ObjectType)
	assert.Equal(t, "acc-1", out.ObjectID)
	assert.Equal(t, activitymap.DefaultChannel, out.Channel)
	assert.Equal(t, occurred, out.OccurredAt)
	assert.Equal(t, "password", out.Metadata["method"])
	assert.Equal(t, "user", out.Metadata[activitymap.MetadataKeyActorType])

	assert.Len(t, event.Metadata, 1, "source metadata must not change")
}

func TestObjectType(t *testing.T) {
	tests := []struct {
		event  auth.ActivityEventType
		expect string
	}{
		{auth.ActivityEventAccountRegistered, activitymap.ObjectAccount},
		{auth.ActivityEventAccountVerified, activitymap.ObjectAccount},
		{auth.ActivityEventVerificationExpired, activitymap.ObjectVerification},
		{auth.ActivityEventVerificationResent, activitymap.ObjectVerification},
		{auth.ActivityEventLoginFailure, activitymap.ObjectSession},
		{auth.ActivityEventLoginLocked, activitymap.ObjectSession},
		{auth.ActivityEventSocialLogin, activitymap.ObjectSession},
		{auth.ActivityEventSessionUpdated, activitymap.ObjectSession},
		{auth.ActivityEventSessionRefreshed, activitymap.ObjectSession},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			assert.Equal(t, tt.expect, activitymap.ObjectType(tt.event))
		})
	}
}

func TestNormalizeExpiredVerificationUsesEmail(t *testing.T) {
	out := activitymap.Normalize(auth.ActivityEvent{
		EventType:  auth.ActivityEventVerificationExpired,
		Actor:      auth.ActorRef{Type: "user"},
		Metadata:   map[string]any{"email": "ana@example.com"},
		OccurredAt: occurred,
	})

	assert.Equal(t, "anonymous", out.ActorID)
	assert.Equal(t, "ana@example.com", out.ObjectID)
	assert.Equal(t, activitymap.ObjectVerification, out.ObjectType)
}

func TestNormalizeActorFallback(t *testing.T) {
	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "actor id",
			event:  auth.ActivityEvent{Actor: auth.ActorRef{ID: "actor-1"}, UserID: "acc-1"},
			expect: "actor-1",
		},
		{
			name:   "account id",
			event:  auth.ActivityEvent{UserID: "acc-2"},
			expect: "acc-2",
		},
		{
			name:   "anonymous visitor",
			event:  auth.ActivityEvent{Actor: auth.ActorRef{Type: "user"}},
			expect: "anonymous",
		},
		{
			name:   "system",
			event:  auth.ActivityEvent{},
			expect: "system",
		},
		{
			name:   "configured",
			event:  auth.ActivityEvent{Actor: auth.ActorRef{Type: "user"}},
			opts:   []activitymap.Option{activitymap.WithActorFallback("sweeper")},
			expect: "sweeper",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := activitymap.Normalize(tt.event, tt.opts...)
			assert.Equal(t, tt.expect, out.ActorID)
		})
	}
}

func TestNormalizeOptions(t *testing.T) {
	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventAccountRegistered,
		UserID:    "acc-1",
	},
		activitymap.WithChannel("audit"),
		activitymap.WithClock(func() time.Time { return occurred }),
	)

	assert.Equal(t, "audit", out.Channel)
	assert.Equal(t, occurred, out.OccurredAt)
	assert.Nil(t, out.Metadata)
}

func TestRecordFields(t *testing.T) {
	out := activitymap.Normalize(auth.ActivityEvent{
		EventType:  auth.ActivityEventLoginFailure,
		Actor:      auth.ActorRef{Type: "user"},
		Metadata:   map[string]any{"reason": auth.TextCodeInvalidCredentials},
		OccurredAt: occurred,
	})

	fields, err := out.Fields()
	require.NoError(t, err)

	assert.Equal(t, "auth.login.failure", fields["verb"])
	assert.Equal(t, "anonymous", fields["actor_id"])
	assert.Equal(t, "session", fields["object_type"])
	assert.Equal(t, "2026-03-01T10:00:00Z", fields["occurred_at"])

	raw, ok := fields["metadata"].(string)
	require.True(t, ok)

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &meta))
	assert.Equal(t, auth.TextCodeInvalidCredentials, meta["reason"])
}

func TestRecordFieldsWithoutMetadata(t *testing.T) {
	fields, err := activitymap.Record{Verb: "account.registered"}.Fields()
	require.NoError(t, err)
	assert.NotContains(t, fields, "metadata")
}
