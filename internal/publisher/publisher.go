// Package publisher numbers telemetry messages, queues them and ships them
// in size-bounded chunks after a debounce interval.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"pageprobe-agent/internal/clock"
	"pageprobe-agent/internal/model"
)

const (
	DefaultDebounce    = 250 * time.Millisecond
	DefaultBudget      = 100000
	DefaultSendTimeout = 10 * time.Second
)

var ErrClosed = errors.New("publisher: closed")

// Sender delivers one encoded chunk.
type Sender interface {
	Send(ctx context.Context, chunk []byte) error
}

type OffsetSource interface {
	Now() float64
}

type Options struct {
	Context  model.Context
	Agent    model.Agent
	Debounce time.Duration
	// Budget is the byte budget of one chunk.
	Budget      int
	SendTimeout time.Duration
	Clock       clock.Clock
	Offsets     OffsetSource
	Logger      *slog.Logger
	// OnSendError observes failed sends. Failures are otherwise dropped.
	OnSendError func(error)
}

type Publisher struct {
	sink Sender
	opts Options

	mu      sync.Mutex
	ordinal int64
	queue   []model.Message
	timer   clock.Timer
	closed  bool

	inflight sync.WaitGroup
}

func New(sink Sender, opts Options) *Publisher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Budget <= 0 {
		opts.Budget = DefaultBudget
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	opts.Logger = opts.Logger.With("component", "publisher")
	return &Publisher{sink: sink, opts: opts}
}

// CreateMessage allocates the next message. Ordinals start at 1 and
// strictly increase.
func (p *Publisher) CreateMessage(types []string, payload any) *model.Message {
	var offset float64
	if p.opts.Offsets != nil {
		offset = p.opts.Offsets.Now()
	}
	p.mu.Lock()
	p.ordinal++
	ordinal := p.ordinal
	p.mu.Unlock()
	return &model.Message{
		ID:      uuid.NewString(),
		Ordinal: ordinal,
		Types:   slices.Clone(types),
		Payload: payload,
		Context: p.opts.Context,
		Offset:  offset,
		Agent:   p.opts.Agent,
	}
}

// PublishMessage queues a copy of m whose payload is the JSON encoding of
// m.Payload, and schedules a flush unless one is pending.
func (p *Publisher) PublishMessage(m *model.Message) error {
	raw, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("encode payload of message %s: %w", m.ID, err)
	}
	q := *m
	q.Types = slices.Clone(m.Types)
	q.Payload = string(raw)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.queue = append(p.queue, q)
	if p.timer == nil {
		p.timer = p.opts.Clock.AfterFunc(p.opts.Debounce, p.Flush)
	}
	return nil
}

func (p *Publisher) CreateAndPublishMessage(types []string, payload any) (*model.Message, error) {
	m := p.CreateMessage(types, payload)
	return m, p.PublishMessage(m)
}

// Flush chunks the queued messages and sends every chunk on its own
// goroutine. The queue is emptied before any send starts.
func (p *Publisher) Flush() {
	p.mu.Lock()
	queue := p.queue
	p.queue = nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	if len(queue) == 0 {
		return
	}
	items := make([][]byte, 0, len(queue))
	for _, m := range queue {
		raw, err := json.Marshal(m)
		if err != nil {
			p.opts.Logger.Error("encode message failed", "id", m.ID, "error", err)
			continue
		}
		items = append(items, raw)
	}
	for _, chunk := range Chunk(items, p.opts.Budget) {
		p.send(encodeChunk(chunk), len(chunk))
	}
}

func (p *Publisher) send(body []byte, messages int) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.opts.SendTimeout)
		defer cancel()
		if err := p.sink.Send(ctx, body); err != nil {
			p.opts.Logger.Debug("chunk dropped", "messages", messages, "bytes", len(body), "error", err)
			if p.opts.OnSendError != nil {
				p.opts.OnSendError(err)
			}
		}
	}()
}

// Close flushes the queue, refuses further messages and waits for in-flight
// sends until ctx is done.
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.Flush()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for in-flight chunks: %w", ctx.Err())
	}
}
