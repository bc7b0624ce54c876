package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisChannel is the pub/sub channel used when none is configured.
const DefaultRedisChannel = "dateloop:changes"

// RedisBus fans changes out through Redis pub/sub so every instance refreshes
// the aggregates of its own connected clients. Local subscribers only ever see
// changes that came back through Redis, so a change is delivered once per instance.
type RedisBus struct {
	client  *redis.Client
	channel string
	local   *Bus
	logger  *slog.Logger

	// run is one relay session; Relay restarts it after failures.
	run      func(ctx context.Context) error
	retryMin time.Duration
	retryMax time.Duration
}

const (
	defaultRelayRetryMin = 500 * time.Millisecond
	defaultRelayRetryMax = 30 * time.Second
)

// NewRedisBus wraps an established Redis client.
func NewRedisBus(client *redis.Client, channel string, logger *slog.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &RedisBus{
		client:   client,
		channel:  channel,
		local:    NewBus(logger),
		logger:   logger,
		retryMin: defaultRelayRetryMin,
		retryMax: defaultRelayRetryMax,
	}
	r.run = r.Run
	return r
}

// ConnectRedis opens a Redis client and verifies connectivity.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// Publish encodes the change and sends it to the shared channel.
func (r *RedisBus) Publish(ctx context.Context, change Change) error {
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	payload, err := encodeChange(change)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish change to redis: %w", err)
	}
	return nil
}

// Subscribe registers a local callback for changes relayed from Redis.
func (r *RedisBus) Subscribe(filter Filter, fn func(Change)) func() {
	return r.local.Subscribe(filter, fn)
}

// Run relays changes from Redis to local subscribers until ctx is canceled.
func (r *RedisBus) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info("relaying changes from redis", "channel", r.channel)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redis subscription closed")
			}
			change, err := decodeChange(msg.Payload)
			if err != nil {
				r.logger.Warn("dropping malformed change", "error", err)
				continue
			}
			_ = r.local.Publish(ctx, change)
		}
	}
}

// Relay keeps Run going until ctx is canceled, waiting with exponential
// backoff between failed sessions. A session that stayed up for at least the
// maximum backoff resets the delay.
func (r *RedisBus) Relay(ctx context.Context) {
	delay := r.retryMin
	for {
		started := time.Now()
		err := r.run(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) >= r.retryMax {
			delay = r.retryMin
		}
		if err == nil {
			err = errors.New("relay session ended")
		}
		r.logger.Error("redis change relay interrupted, retrying", "error", err, "retry_in", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = min(delay*2, r.retryMax)
	}
}

func encodeChange(change Change) (string, error) {
	data, err := json.Marshal(change)
	if err != nil {
		return "", fmt.Errorf("encode change: %w", err)
	}
	return string(data), nil
}

func decodeChange(payload string) (Change, error) {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if change.Table == "" {
		return Change{}, errors.New("decode change: missing table")
	}
	return change, nil
}
