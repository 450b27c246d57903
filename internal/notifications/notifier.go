// Package notifications fans quote changes out to live feeds through Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"quoteit/internal/models"
	"quoteit/internal/observability"

	"github.com/redis/go-redis/v9"
)

// QuotesChannel carries JSON-encoded quotes after every edit or like-count change.
const QuotesChannel = "quotes:changed"

// Notifier provides helpers to publish quote changes into Redis and subscribe to them.
// A Notifier without a Redis client publishes nothing and its subscriptions never fire.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether live updates are backed by Redis.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishQuoteChanged broadcasts the current state of quote.
func (n *Notifier) PublishQuoteChanged(ctx context.Context, quote *models.Quote) error {
	if !n.Enabled() {
		return nil
	}
	payload, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal quote: %w", err)
	}
	return n.rdb.Publish(ctx, QuotesChannel, payload).Err()
}

// Subscription is a live listener on QuotesChannel. Close detaches it.
type Subscription interface {
	Close()
}

type noopSubscription struct{}

func (noopSubscription) Close() {}

type redisSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close stops the listener goroutine and waits for it to exit.
func (s *redisSubscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// SubscribeQuotes calls onQuote for every quote published after the call returns.
// onQuote runs on the subscriber goroutine; a panic inside it is logged and the
// subscription keeps running.
func (n *Notifier) SubscribeQuotes(ctx context.Context, onQuote func(models.Quote)) (Subscription, error) {
	if !n.Enabled() {
		return noopSubscription{}, nil
	}

	sub := n.rdb.Subscribe(ctx, QuotesChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", QuotesChannel, err)
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &redisSubscription{cancel: cancel, done: make(chan struct{})}
	ch := sub.Channel()

	go func() {
		defer close(s.done)
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var quote models.Quote
				if err := json.Unmarshal([]byte(msg.Payload), &quote); err != nil {
					observability.Logger.WarnContext(ctx, "dropping malformed quote event", slog.String("error", err.Error()))
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.Logger.ErrorContext(ctx, "panic in quote subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onQuote(quote)
				}()
			}
		}
	}()

	return s, nil
}
