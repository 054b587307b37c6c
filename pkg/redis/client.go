package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hbgk/gkpulse/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStreamMaxLen caps the ingest stream. Events are rare, a short history is enough.
const DefaultStreamMaxLen = 1000

// Client carries ingest events between processes over Pub/Sub and a capped stream.
type Client struct {
	client       *redis.Client
	logger       *zap.Logger
	streamMaxLen int64
}

// Options configures a Client. StreamMaxLen 0 leaves the stream uncapped.
type Options struct {
	Addr         string
	Password     string
	DB           int
	StreamMaxLen int64
}

// OptionsFromEnv reads REDIS_HOST, REDIS_PORT, REDIS_PASSWORD, REDIS_DB and
// REDIS_STREAM_MAXLEN.
func OptionsFromEnv() Options {
	return Options{
		Addr:         net.JoinHostPort(utils.Env("REDIS_HOST", "localhost"), utils.Env("REDIS_PORT", "6379")),
		Password:     utils.Env("REDIS_PASSWORD", ""),
		DB:           utils.EnvInt("REDIS_DB", 0),
		StreamMaxLen: utils.EnvInt64("REDIS_STREAM_MAXLEN", DefaultStreamMaxLen),
	}
}

// NewClient connects with OptionsFromEnv.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	return Dial(ctx, logger, OptionsFromEnv())
}

// Dial connects and pings once; an unreachable server is an error.
func Dial(ctx context.Context, logger *zap.Logger, o Options) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     4,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to Redis at %s: %w", o.Addr, err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", o.Addr),
		zap.Int("db", o.DB),
		zap.Int64("streamMaxLen", o.StreamMaxLen))

	return &Client{client: rdb, logger: logger, streamMaxLen: o.StreamMaxLen}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Publish publishes a message to a Redis Pub/Sub channel.
// This is a best-effort operation - errors are logged but not returned.
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) {
	if err := c.client.Publish(ctx, channel, message).Err(); err != nil {
		c.logger.Warn("Failed to publish Redis message",
			zap.String("channel", channel),
			zap.Error(err))
	}
}

// Health checks if Redis is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// XAdd adds an entry to a stream, capped at MAXLEN when configured.
// Returns the entry ID (e.g., "1234567890123-0").
func (c *Client) XAdd(ctx context.Context, stream string, values map[string]interface{}) (string, error) {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}

	// Apply MAXLEN if configured (approximate for performance)
	if c.streamMaxLen > 0 {
		args.MaxLen = c.streamMaxLen
		args.Approx = true
	}

	id, err := c.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

// XRead reads entries from one or more streams starting after the given IDs.
// Use "0" to read from the beginning, "$" to read only new entries.
// Block specifies how long to wait for new entries (0 = no blocking).
func (c *Client) XRead(ctx context.Context, streams []string, lastIDs []string, count int64, block time.Duration) ([]redis.XStream, error) {
	if len(streams) != len(lastIDs) {
		return nil, fmt.Errorf("xread: %d streams but %d ids", len(streams), len(lastIDs))
	}
	// XREAD STREAMS s1 s2 id1 id2
	args := make([]string, 0, len(streams)*2)
	args = append(args, streams...)
	args = append(args, lastIDs...)

	return c.client.XRead(ctx, &redis.XReadArgs{
		Streams: args,
		Count:   count,
		Block:   block,
	}).Result()
}
