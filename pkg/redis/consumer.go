package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamConsumerConfig configures a StreamConsumer. Zero values take the defaults noted.
type StreamConsumerConfig struct {
	// Stream to tail. Required.
	Stream string
	// LastID is where reading starts: "0" for the whole history, "$" (default) for new
	// entries only, or an entry ID.
	LastID string
	// Count caps entries per read. Default 100.
	Count int64
	// Block is the XREAD wait. Default 5s.
	Block time.Duration
	// RetryInterval is the first pause after a read error, doubled up to MaxRetryInterval.
	// Defaults 1s and 30s.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration

	Logger *zap.Logger
}

func (c StreamConsumerConfig) withDefaults() (StreamConsumerConfig, error) {
	if c.Stream == "" {
		return c, errors.New("stream name is required")
	}
	if c.LastID == "" {
		c.LastID = "$"
	}
	if c.Count == 0 {
		c.Count = 100
	}
	if c.Block == 0 {
		c.Block = 5 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
	if c.MaxRetryInterval == 0 {
		c.MaxRetryInterval = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c, nil
}

// MessageHandler processes one entry. A returned error is logged and the consumer moves on.
type MessageHandler func(ctx context.Context, msg Message) error

// Message is one stream entry.
type Message struct {
	ID     string
	Stream string
	Values map[string]interface{}
}

type streamReader interface {
	XRead(ctx context.Context, streams []string, lastIDs []string, count int64, block time.Duration) ([]redis.XStream, error)
}

// StreamConsumer tails one stream, resuming after the last delivered entry when reads fail.
type StreamConsumer struct {
	reader streamReader
	config StreamConsumerConfig
}

func NewStreamConsumer(client *Client, config StreamConsumerConfig) (*StreamConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return newStreamConsumer(client, config)
}

func newStreamConsumer(reader streamReader, config StreamConsumerConfig) (*StreamConsumer, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}
	return &StreamConsumer{reader: reader, config: config}, nil
}

// Run delivers entries to handler until ctx ends, and returns ctx's error.
func (sc *StreamConsumer) Run(ctx context.Context, handler MessageHandler) error {
	cfg := sc.config
	lastID := cfg.LastID
	wait := cfg.RetryInterval

	for {
		if err := ctx.Err(); err != nil {
			cfg.Logger.Info("Stream consumer shutting down", zap.String("stream", cfg.Stream))
			return err
		}

		streams, err := sc.reader.XRead(ctx, []string{cfg.Stream}, []string{lastID}, cfg.Count, cfg.Block)
		switch {
		case errors.Is(err, redis.Nil):
			// block elapsed with nothing new
			continue
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cfg.Logger.Warn("Error reading from stream, will retry",
				zap.String("stream", cfg.Stream),
				zap.Duration("retryIn", wait),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait = min(wait*2, cfg.MaxRetryInterval)
			continue
		}

		wait = cfg.RetryInterval
		msgs := toMessages(streams)
		for _, msg := range msgs {
			if err := handler(ctx, msg); err != nil {
				cfg.Logger.Error("Error processing message",
					zap.String("stream", cfg.Stream),
					zap.String("id", msg.ID),
					zap.Error(err))
			}
		}
		if n := len(msgs); n > 0 {
			lastID = msgs[n-1].ID
		}
	}
}

func toMessages(streams []redis.XStream) []Message {
	var out []Message
	for _, s := range streams {
		for _, m := range s.Messages {
			out = append(out, Message{ID: m.ID, Stream: s.Stream, Values: m.Values})
		}
	}
	return out
}

// GetData returns the "data" field, or nil.
func (m *Message) GetData() []byte {
	if s := m.GetString("data"); s != "" {
		return []byte(s)
	}
	return nil
}

// GetString returns a field as a string, or "" when absent.
func (m *Message) GetString(key string) string {
	switch v := m.Values[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// GetInt returns a numeric field. Redis hands numbers back as strings; anything
// unparseable is 0.
func (m *Message) GetInt(key string) int {
	switch v := m.Values[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
