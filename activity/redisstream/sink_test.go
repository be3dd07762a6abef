package redisstream_test

import (
	"context"
	"os"
	"testing"
	"time"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/goliatone/go-portal-auth/activity/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStreamer struct {
	args []*redis.XAddArgs
	err  error
}

func (r *recordingStreamer) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	r.args = append(r.args, a)
	cmd := redis.NewStringCmd(ctx, "xadd", a.Stream)
	if r.err != nil {
		cmd.SetErr(r.err)
	} else {
		cmd.SetVal("1-0")
	}
	return cmd
}

func loginEvent() auth.ActivityEvent {
	return auth.ActivityEvent{
		EventType:  auth.ActivityEventLoginSuccess,
		Actor:      auth.ActorRef{ID: "acc-1", Type: "user"},
		UserID:     "acc-1",
		Metadata:   map[string]any{"method": "password"},
		OccurredAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSinkRecordPublishesNormalizedEvent(t *testing.T) {
	streamer := &recordingStreamer{}
	sink := redisstream.New(streamer, redisstream.Config{})

	require.NoError(t, sink.Record(context.Background(), loginEvent()))
	require.Len(t, streamer.args, 1)

	args := streamer.args[0]
	assert.Equal(t, redisstream.DefaultStream, args.Stream)
	assert.Equal(t, int64(redisstream.DefaultMaxLen), args.MaxLen)
	assert.True(t, args.Approx)

	values, ok := args.Values.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "auth.login.success", values["verb"])
	assert.Equal(t, "acc-1", values["actor_id"])
	assert.Equal(t, "session", values["object_type"])
	assert.Contains(t, values["metadata"], `"method":"password"`)
}

func TestSinkRecordWrapsClientErrors(t *testing.T) {
	streamer := &recordingStreamer{err: redis.ErrClosed}
	sink := redisstream.New(streamer, redisstream.Config{Stream: "custom"})

	err := sink.Record(context.Background(), loginEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, redis.ErrClosed)
	assert.Equal(t, "custom", streamer.args[0].Stream)
}

func TestSinkRecordAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	stream := "portal:auth:activity:test:" + time.Now().Format("150405.000000")
	defer client.Del(ctx, stream)

	sink := redisstream.New(client, redisstream.Config{Stream: stream})
	require.NoError(t, sink.Record(ctx, loginEvent()))

	msgs, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "auth.login.success", msgs[0].Values["verb"])
}
