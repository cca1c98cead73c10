// Package redis fans signal alerts out over Redis pub/sub, one channel per
// symbol. Nothing is stored: a subscriber sees only what is published while
// it listens.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"signaldesk/internal/notification"
)

const defaultPrefix = "signaldesk"

// Config configures the Redis publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	Prefix string // channel namespace, default "signaldesk"

	MaxFailures  int           // breaker trip threshold, default 3
	ResetTimeout time.Duration // breaker open time, default 30s
}

// Keys names the pub/sub channels for one namespace.
type Keys struct {
	prefix string
}

// Channel is the pub/sub channel for symbol.
func (k Keys) Channel(symbol string) string { return k.prefix + ":pub:signal:" + symbol }

// Broadcast carries alerts that name no symbol.
func (k Keys) Broadcast() string { return k.prefix + ":pub:alerts" }

// For picks the channel alert is published on.
func (k Keys) For(alert notification.Alert) string {
	if alert.Symbol == "" {
		return k.Broadcast()
	}
	return k.Channel(alert.Symbol)
}

// Publisher writes alerts to Redis through a circuit breaker.
// It implements notification.Notifier.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	keys   Keys
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker returns the circuit breaker guarding writes.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

func withDefaults(cfg Config) Config {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return cfg
}

// New creates a Publisher and pings the server.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	cfg = withDefaults(cfg)
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	cb := NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout)
	cb.OnStateChange = func(from, to State) {
		slog.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
	}

	slog.Info("redis connected", "addr", cfg.Addr, "prefix", cfg.Prefix)
	return &Publisher{
		client: client,
		cb:     cb,
		keys:   Keys{prefix: cfg.Prefix},
	}, nil
}

func encodeAlert(a notification.Alert) (string, error) {
	if a.TS.IsZero() {
		a.TS = time.Now().UTC()
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Send publishes alert on its channel. Subscribers that are not listening
// miss it.
func (p *Publisher) Send(ctx context.Context, alert notification.Alert) error {
	data, err := encodeAlert(alert)
	if err != nil {
		return fmt.Errorf("redis: encode alert: %w", err)
	}

	return p.cb.Execute(ctx, func(ctx context.Context) error {
		if err := p.client.Publish(ctx, p.keys.For(alert), data).Err(); err != nil {
			return fmt.Errorf("redis: publish alert %s: %w", alert.Symbol, err)
		}
		return nil
	})
}

// Close closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
