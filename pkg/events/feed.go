// Package events carries aula change notifications between writers and the
// subscribers that keep derived state and caches fresh.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChangeKind names what happened to an aula.
type ChangeKind string

const (
	KindAulaCreated     ChangeKind = "aula.created"
	KindAulaUpdated     ChangeKind = "aula.updated"
	KindAulaDeleted     ChangeKind = "aula.deleted"
	KindSessionsChanged ChangeKind = "sessions.changed"
	KindStateChanged    ChangeKind = "aula.state_changed"
	KindCycleAdvanced   ChangeKind = "aula.cycle_advanced"
	KindAulaClosed      ChangeKind = "aula.closed"
)

// ChangeEvent is published after a batch touching an aula commits.
type ChangeEvent struct {
	Kind     ChangeKind `json:"kind"`
	AulaID   string     `json:"aula_id"`
	Revision int        `json:"revision"`
	At       time.Time  `json:"at"`
}

// Removed reports whether the aula no longer exists after this change.
func (e ChangeEvent) Removed() bool {
	return e.Kind == KindAulaDeleted || e.Kind == KindAulaClosed
}

// Handler consumes change events.
type Handler func(context.Context, ChangeEvent)

// Subscription stops delivery when closed.
type Subscription interface {
	Close() error
}

// Feed publishes and subscribes to aula changes.
type Feed interface {
	Publish(ctx context.Context, evt ChangeEvent) error
	Subscribe(ctx context.Context, handler Handler) (Subscription, error)
}

// RedisFeed fans change events out through a redis pub/sub channel so every
// API replica sees them.
type RedisFeed struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisFeed constructs a redis backed feed.
func NewRedisFeed(client *redis.Client, channel string, logger *zap.Logger) *RedisFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{client: client, channel: channel, logger: logger}
}

// Publish sends evt to the channel.
func (f *RedisFeed) Publish(ctx context.Context, evt ChangeEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", f.channel, err)
	}
	return nil
}

// Subscribe delivers events to handler until ctx is done or the subscription
// is closed.
func (f *RedisFeed) Subscribe(ctx context.Context, handler Handler) (Subscription, error) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", f.channel, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				evt, err := DecodeEvent([]byte(msg.Payload))
				if err != nil {
					f.logger.Warn("discarding malformed change event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(ctx, evt)
			}
		}
	}()

	return pubsub, nil
}

// DecodeEvent parses a published payload.
func DecodeEvent(payload []byte) (ChangeEvent, error) {
	var evt ChangeEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	if evt.AulaID == "" || evt.Kind == "" {
		return ChangeEvent{}, fmt.Errorf("change event missing kind or aula id")
	}
	return evt, nil
}

// LocalFeed delivers events to in-process subscribers. It is used when the
// redis feed is disabled and in tests.
type LocalFeed struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]localHandler
}

type localHandler struct {
	ctx     context.Context
	handler Handler
}

// NewLocalFeed builds an empty in-process feed.
func NewLocalFeed() *LocalFeed {
	return &LocalFeed{handlers: make(map[int]localHandler)}
}

// Publish calls every live subscriber synchronously.
func (f *LocalFeed) Publish(ctx context.Context, evt ChangeEvent) error {
	f.mu.RLock()
	targets := make([]localHandler, 0, len(f.handlers))
	for _, h := range f.handlers {
		targets = append(targets, h)
	}
	f.mu.RUnlock()

	for _, h := range targets {
		if h.ctx.Err() != nil {
			continue
		}
		h.handler(h.ctx, evt)
	}
	return nil
}

// Subscribe registers handler until the returned subscription is closed.
func (f *LocalFeed) Subscribe(ctx context.Context, handler Handler) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = localHandler{ctx: ctx, handler: handler}
	return localSubscription{feed: f, id: id}, nil
}

type localSubscription struct {
	feed *LocalFeed
	id   int
}

func (s localSubscription) Close() error {
	s.feed.mu.Lock()
	delete(s.feed.handlers, s.id)
	s.feed.mu.Unlock()
	return nil
}
