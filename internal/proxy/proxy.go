// Package proxy instruments the host page: each proxy wraps one native entry
// point, delegates to it unchanged and publishes what it observed on the bus.
package proxy

import (
	"errors"
	"log/slog"
	"sync"

	"pageprobe-agent/internal/page"
)

var ErrAlreadyInstalled = errors.New("proxy: already installed")

// Topics published by the proxies.
const (
	TopicConsoleCall = "console.call"

	TopicMark    = "performance.mark"
	TopicMeasure = "performance.measure"

	TopicNavigationTiming = "timing.navigation"
	TopicResourceTiming   = "timing.resource"
)

// NetworkTopics is the topic set of one network transport style.
type NetworkTopics struct {
	RequestSent      string
	ResponseReceived string
	Error            string
	Abort            string
}

var (
	FetchTopics = NetworkTopics{
		RequestSent:      "fetch.request-sent",
		ResponseReceived: "fetch.response-received",
		Error:            "fetch.error",
		Abort:            "fetch.abort",
	}
	RPCTopics = NetworkTopics{
		RequestSent:      "rpc.request-sent",
		ResponseReceived: "rpc.response-received",
		Error:            "rpc.error",
		Abort:            "rpc.abort",
	}
)

type Proxy interface {
	Name() string
	// IsSupported reports whether the host exposes the capability. It has
	// no side effects.
	IsSupported() bool
	// Init installs the proxy. A second call returns ErrAlreadyInstalled
	// and leaves the host untouched.
	Init() error
}

// Emitter is the publishing side of the event bus.
type Emitter interface {
	Publish(topic string, data any) bool
}

// Target is a replaceable host entry point.
type Target[T any] interface {
	Load() T
	Store(T)
}

// Wrapper is implemented by every installed replacement.
type Wrapper interface {
	Unwrap() any
}

// InstallOnce replaces the value of target with wrap(orig) and returns orig.
// A target that already holds a Wrapper is left as is.
func InstallOnce[T any](target Target[T], wrap func(orig T) T) (T, error) {
	orig := target.Load()
	if _, ok := any(orig).(Wrapper); ok {
		var zero T
		return zero, ErrAlreadyInstalled
	}
	target.Store(wrap(orig))
	return orig, nil
}

// reporter is the installed replacement of a host timing feed.
type reporter struct {
	orig   page.Reporter
	report func()
}

func (r reporter) Report()     { r.report() }
func (r reporter) Unwrap() any { return r.orig }

// guard serializes installation and reports repeated Init calls.
type guard struct {
	name   string
	logger *slog.Logger

	mu        sync.Mutex
	installed bool
}

func newGuard(name string, logger *slog.Logger) guard {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return guard{name: name, logger: logger.With("component", "proxy", "proxy", name)}
}

func (g *guard) install(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.installed {
		g.logger.Error("proxy init called twice")
		return ErrAlreadyInstalled
	}
	if err := fn(); err != nil {
		if errors.Is(err, ErrAlreadyInstalled) {
			g.logger.Error("host entry point already wrapped")
		}
		return err
	}
	g.installed = true
	return nil
}
