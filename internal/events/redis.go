package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultChannelPrefix namespaces the Redis pub/sub channels.
const DefaultChannelPrefix = "appgen:events"

// RedisClient is the subset of *redis.Client used by RedisPublisher.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisOptions configures a Redis connection for event publishing.
type RedisOptions struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// RedisPublisher pushes events to Redis pub/sub. Each event goes to the
// execution channel "<prefix>:<id>" and the firehose "<prefix>:all".
//
// Publishing does network I/O, so attach it to a Bus subscription rather than
// calling it from the scheduler directly.
type RedisPublisher struct {
	client  RedisClient
	prefix  string
	timeout time.Duration
}

// NewRedisPublisher connects a publisher using go-redis.
func NewRedisPublisher(opts RedisOptions) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisPublisherWithClient(client, opts.ChannelPrefix)
}

// NewRedisPublisherWithClient wraps an existing client.
func NewRedisPublisherWithClient(client RedisClient, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix, timeout: 2 * time.Second}
}

// Channel returns the pub/sub channel for one execution.
func (p *RedisPublisher) Channel(executionID string) string {
	return p.prefix + ":" + executionID
}

// AllChannel returns the channel that receives every event.
func (p *RedisPublisher) AllChannel() string {
	return p.prefix + ":all"
}

// Report implements Reporter.
func (p *RedisPublisher) Report(ev Event) {
	if err := p.Publish(context.Background(), ev); err != nil {
		log.Printf("[events] warning: redis publish failed: %v", err)
	}
}

// Publish sends ev to both channels, bounded by the publisher timeout.
func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	for _, ch := range []string{p.Channel(ev.ExecutionID), p.AllChannel()} {
		if err := p.client.Publish(ctx, ch, payload).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
