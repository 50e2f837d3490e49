package proxy

import (
	"log/slog"

	"pageprobe-agent/internal/page"
	"pageprobe-agent/internal/stack"
)

// ConsoleCall is published for every console method invocation. Stack holds
// raw program counters; symbolize them off the call path.
type ConsoleCall struct {
	Method string
	Args   []any
	Stack  stack.Trace
}

type Console struct {
	console *page.Console
	bus     Emitter
	guard   guard
}

func NewConsole(c *page.Console, bus Emitter, logger *slog.Logger) *Console {
	return &Console{console: c, bus: bus, guard: newGuard("console", logger)}
}

func (p *Console) Name() string { return "console" }

func (p *Console) IsSupported() bool {
	return p.console != nil && p.console.Slot("log") != nil
}

func (p *Console) Init() error {
	return p.guard.install(func() error {
		slots := make(map[string]*page.Slot[page.Method], len(page.ConsoleMethods))
		for _, name := range page.ConsoleMethods {
			s := p.console.Slot(name)
			if s == nil {
				continue
			}
			if _, ok := s.Load().(Wrapper); ok {
				return ErrAlreadyInstalled
			}
			slots[name] = s
		}
		for name, s := range slots {
			if _, err := InstallOnce[page.Method](s, func(orig page.Method) page.Method {
				return &consoleMethod{name: name, orig: orig, bus: p.bus}
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

type consoleMethod struct {
	name string
	orig page.Method
	bus  Emitter
}

func (m *consoleMethod) Unwrap() any { return m.orig }

func (m *consoleMethod) Invoke(args ...any) {
	trace := stack.Capture(0)
	m.orig.Invoke(args...)
	m.bus.Publish(TopicConsoleCall, ConsoleCall{Method: m.name, Args: args, Stack: trace})
}
