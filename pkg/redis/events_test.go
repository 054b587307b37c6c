package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hbgk/gkpulse/pkg/ingest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSink struct {
	added     []map[string]interface{}
	published []interface{}
	err       error
}

func (f *fakeSink) XAdd(_ context.Context, _ string, values map[string]interface{}) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.added = append(f.added, values)
	return "1760745600000-0", nil
}

func (f *fakeSink) Publish(_ context.Context, _ string, message interface{}) {
	f.published = append(f.published, message)
}

func TestNotifierWritesStreamAndChannel(t *testing.T) {
	sink := &fakeSink{}
	n := &Notifier{sink: sink, Stream: IngestStream, Channel: IngestChannel}

	at := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	ev := ingest.Event{Kind: ingest.KindDaily, Date: "2026-10-18", Records: 42, At: at}
	require.NoError(t, n.Notify(context.Background(), ev))

	require.Len(t, sink.added, 1)
	require.Len(t, sink.published, 1)
	assert.Equal(t, "daily", sink.added[0]["kind"])
	assert.Equal(t, 42, sink.added[0]["records"])
	assert.Equal(t, sink.added[0]["data"], sink.published[0])

	got, err := DecodeEvent(Message{ID: "1760745600000-0", Values: sink.added[0]})
	require.NoError(t, err)
	assert.Equal(t, ev.Kind, got.Kind)
	assert.Equal(t, ev.Date, got.Date)
	assert.Equal(t, ev.Records, got.Records)
	assert.True(t, at.Equal(got.At))
}

func TestNotifierStreamFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("connection refused")}
	n := &Notifier{sink: sink, Stream: IngestStream, Channel: IngestChannel}

	err := n.Notify(context.Background(), ingest.Event{Kind: ingest.KindPositions, Records: 3})
	require.Error(t, err)
	assert.Empty(t, sink.published)
}

func TestDecodeEventFlatFields(t *testing.T) {
	msg := Message{
		ID: "1760745600000-0",
		Values: map[string]interface{}{
			"kind":    "positions",
			"records": "120",
		},
	}
	ev, err := DecodeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, ingest.KindPositions, ev.Kind)
	assert.Equal(t, 120, ev.Records)
	assert.Equal(t, int64(1760745600000), ev.At.UnixMilli())

	_, err = DecodeEvent(Message{ID: "1-0", Values: map[string]interface{}{"other": "x"}})
	require.Error(t, err)

	_, err = DecodeEvent(Message{ID: "1-0", Values: map[string]interface{}{"data": "{not json"}})
	require.Error(t, err)
}

func TestStreamConsumerConfigDefaults(t *testing.T) {
	_, err := StreamConsumerConfig{}.withDefaults()
	require.Error(t, err)

	cfg, err := StreamConsumerConfig{Stream: IngestStream}.withDefaults()
	require.NoError(t, err)
	assert.Equal(t, "$", cfg.LastID)
	assert.Equal(t, int64(100), cfg.Count)
	assert.Equal(t, 5*time.Second, cfg.Block)
	assert.Equal(t, 30*time.Second, cfg.MaxRetryInterval)

	_, err = NewStreamConsumer(nil, StreamConsumerConfig{Stream: IngestStream})
	require.Error(t, err)
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_STREAM_MAXLEN", "")

	o := OptionsFromEnv()
	assert.Equal(t, "cache.internal:6380", o.Addr)
	assert.Equal(t, 2, o.DB)
	assert.Equal(t, int64(DefaultStreamMaxLen), o.StreamMaxLen)
}

type scriptedReader struct {
	calls   int
	lastIDs []string
	cancel  context.CancelFunc
}

func (r *scriptedReader) XRead(ctx context.Context, _ []string, lastIDs []string, _ int64, _ time.Duration) ([]redis.XStream, error) {
	r.calls++
	r.lastIDs = append(r.lastIDs, lastIDs[0])
	switch r.calls {
	case 1:
		return nil, errors.New("connection reset")
	case 2:
		return nil, redis.Nil
	case 3:
		return []redis.XStream{{
			Stream: IngestStream,
			Messages: []redis.XMessage{
				{ID: "1-0", Values: map[string]interface{}{"kind": "daily"}},
				{ID: "2-0", Values: map[string]interface{}{"kind": "positions"}},
			},
		}}, nil
	default:
		r.cancel()
		return nil, ctx.Err()
	}
}

func TestStreamConsumerRunResumesAfterErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &scriptedReader{cancel: cancel}

	sc, err := newStreamConsumer(reader, StreamConsumerConfig{
		Stream:        IngestStream,
		RetryInterval: time.Millisecond,
		Logger:        zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	var kinds []string
	err = sc.Run(ctx, func(_ context.Context, msg Message) error {
		kinds = append(kinds, msg.GetString("kind"))
		return errors.New("handler errors are logged, not fatal")
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"daily", "positions"}, kinds)
	assert.Equal(t, []string{"$", "$", "$", "2-0"}, reader.lastIDs)
}
