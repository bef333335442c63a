package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Bus carries envelopes to every hub instance, including the publisher's.
type Bus interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe registers fn for every envelope published from now on.
	// Delivery stops when ctx is done.
	Subscribe(ctx context.Context, fn func(Envelope)) error
}

// LocalBus delivers in-process. Use it when a single API instance serves
// every websocket.
type LocalBus struct {
	mu   sync.RWMutex
	subs map[int]func(Envelope)
	next int
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]func(Envelope))}
}

func (b *LocalBus) Publish(_ context.Context, env Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.subs {
		fn(env)
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, fn func(Envelope)) error {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

// DefaultChannel is the Redis pub/sub channel shared by all instances.
const DefaultChannel = "unieats:events"

// RedisBus relays envelopes through Redis pub/sub so that sessions held by
// other API instances receive them.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	log     *slog.Logger
}

func NewRedisBus(rdb *redis.Client, channel string, logger *slog.Logger) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBus{rdb: rdb, channel: channel, log: logger}
}

func (b *RedisBus) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, fn func(Envelope)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	// Block until Redis confirms the subscription.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Warn("realtime bus: bad envelope", "channel", b.channel, "err", err)
					continue
				}
				fn(env)
			}
		}
	}()
	return nil
}
