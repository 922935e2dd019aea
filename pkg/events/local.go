package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/diagnosis/portfolio/pkg/logger"
	"github.com/google/uuid"
)

// LocalEventBus delivers events in-process. It stands in for NATS when no
// broker is configured. Handlers run on their own goroutines; within a queue
// group a single member receives each message, chosen round-robin.
type LocalEventBus struct {
	mu     sync.RWMutex
	subs   map[string][]func(*Message)
	queues map[string]*queueGroup
	wg     sync.WaitGroup
	closed bool
}

type queueGroup struct {
	handlers []func(*Message)
	next     int
}

func NewLocalEventBus() *LocalEventBus {
	return &LocalEventBus{
		subs:   make(map[string][]func(*Message)),
		queues: make(map[string]*queueGroup),
	}
}

func (b *LocalEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("event bus closed")
	}
	targets := append([]func(*Message){}, b.subs[subject]...)
	for key, g := range b.queues {
		if queueSubject(key) != subject || len(g.handlers) == 0 {
			continue
		}
		targets = append(targets, g.handlers[g.next%len(g.handlers)])
		g.next++
	}
	// Counted under the lock so Close cannot start waiting before these
	// deliveries are registered.
	b.wg.Add(len(targets))
	b.mu.Unlock()

	logger.DebugContext(ctx, "Publishing local event", "subject", subject, "subscribers", len(targets))

	for _, handler := range targets {
		msg := &Message{Subject: subject, Data: payload, Timestamp: time.Now(), ID: uuid.NewString()}
		go func(h func(*Message)) {
			defer b.wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("Event handler panic", "subject", subject, "panic", rec)
				}
			}()
			h(msg)
		}(handler)
	}
	return nil
}

func (b *LocalEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[subject] = append(b.subs[subject], handler)
	return nil
}

func (b *LocalEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := subject + "\x00" + queue
	g, ok := b.queues[key]
	if !ok {
		g = &queueGroup{}
		b.queues[key] = g
	}
	g.handlers = append(g.handlers, handler)
	return nil
}

// Wait blocks until every delivered handler has returned.
func (b *LocalEventBus) Wait() {
	b.wg.Wait()
}

func (b *LocalEventBus) Ping(context.Context) error {
	return nil
}

// Close rejects further publishes and waits for in-flight handlers.
func (b *LocalEventBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
	return nil
}

func queueSubject(key string) string {
	subject, _, _ := strings.Cut(key, "\x00")
	return subject
}
