package audit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"storegate/pkg/requestcontext"
)

// Publisher enriches events from the request context and hands them to a
// Store. With an async buffer configured, Publish never blocks the request
// path; events are dropped with a log line when the buffer is full.
type Publisher struct {
	store  Store
	logger *slog.Logger

	buffer chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

type PublisherOption func(*Publisher)

func WithPublisherLogger(l *slog.Logger) PublisherOption {
	return func(p *Publisher) { p.logger = l }
}

// WithAsyncBuffer makes Publish non-blocking with the given queue size.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) { p.buffer = make(chan Event, size) }
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Publish records one event. The returned error is always nil in async mode.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Category == "" {
		event.Category = CategoryOf(event.Action)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.Actor(ctx)
	}
	if event.Device == "" {
		event.Device = requestcontext.Device(ctx)
	}
	if event.ClientIP == "" {
		event.ClientIP = requestcontext.ClientIP(ctx)
	}

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.buffer <- event:
	default:
		p.logger.Warn("audit buffer full, dropping event",
			"action", string(event.Action), "event_id", event.ID.String())
	}
	return nil
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.Error("audit append failed",
				"action", string(event.Action), "error", err)
		}
		cancel()
	}
}

// Close flushes buffered events and stops the drain goroutine.
func (p *Publisher) Close() {
	if p.buffer == nil {
		return
	}
	p.once.Do(func() { close(p.buffer) })
	p.wg.Wait()
}
