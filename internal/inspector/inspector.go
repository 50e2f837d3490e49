// Package inspector turns proxy events into telemetry messages. Each
// inspector owns the correlation state of its topics.
package inspector

import (
	"fmt"
	"log/slog"

	"pageprobe-agent/internal/bus"
	"pageprobe-agent/internal/clock"
	"pageprobe-agent/internal/model"
)

// Publisher is the message side of the publisher.
type Publisher interface {
	CreateMessage(types []string, payload any) *model.Message
	PublishMessage(m *model.Message) error
}

// Subscriber is the listening side of the event bus.
type Subscriber interface {
	On(topic string, l bus.Listener) bus.Subscription
}

type Inspector interface {
	Name() string
	// Init subscribes to the bus. Call it once, before the proxies are
	// installed.
	Init(pub Publisher)
}

type Options struct {
	Bus    Subscriber
	Clock  clock.Clock
	Logger *slog.Logger
}

// base carries what every inspector needs.
type base struct {
	bus    Subscriber
	clock  clock.Clock
	logger *slog.Logger
	pub    Publisher
}

func newBase(name string, opts Options) base {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return base{
		bus:    opts.Bus,
		clock:  opts.Clock,
		logger: opts.Logger.With("component", "inspector", "inspector", name),
	}
}

func (b *base) publish(m *model.Message) {
	if err := b.pub.PublishMessage(m); err != nil {
		b.logger.Error("publish message failed", "id", m.ID, "types", m.Types, "error", err)
	}
}

func (b *base) unexpected(topic string, data any) {
	b.logger.Error("unexpected event payload", "topic", topic, "type", fmt.Sprintf("%T", data))
}

// listen subscribes fn to topic with the payload asserted to T.
func listen[T any](b *base, topic string, fn func(data T, ev bus.Event)) {
	b.bus.On(topic, func(ev bus.Event) {
		data, ok := ev.Data.(T)
		if !ok {
			b.unexpected(topic, ev.Data)
			return
		}
		fn(data, ev)
	})
}
