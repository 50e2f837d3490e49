package page

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strings"
	"sync"
	"time"

	"pageprobe-agent/internal/clock"
)

// Method is one console entry point.
type Method interface {
	Invoke(args ...any)
}

type MethodFunc func(args ...any)

func (f MethodFunc) Invoke(args ...any) { f(args...) }

// ConsoleMethods lists every method the page console exposes.
var ConsoleMethods = []string{
	"log", "info", "warn", "error", "debug", "trace",
	"dir", "dirxml", "table", "assert", "count", "clear",
	"group", "groupCollapsed", "groupEnd",
	"time", "timeEnd", "timeStamp",
	"profile", "profileEnd",
}

// Console is the page console: a table of replaceable methods whose native
// implementations write to a structured logger.
type Console struct {
	slots map[string]*Slot[Method]
}

func NewConsole(out *slog.Logger, c clock.Clock) *Console {
	if out == nil {
		out = slog.New(slog.DiscardHandler)
	}
	if c == nil {
		c = clock.Real{}
	}
	n := &nativeConsole{
		out:    out,
		clock:  c,
		counts: make(map[string]int),
		timers: make(map[string]time.Time),
	}
	con := &Console{slots: make(map[string]*Slot[Method], len(ConsoleMethods))}
	for _, name := range ConsoleMethods {
		con.slots[name] = NewSlot[Method](n.method(name))
	}
	return con
}

// Slot returns the replaceable entry point for a method, or nil.
func (c *Console) Slot(name string) *Slot[Method] {
	return c.slots[name]
}

// Call invokes the current implementation of a console method.
func (c *Console) Call(name string, args ...any) {
	s := c.slots[name]
	if s == nil {
		return
	}
	s.Load().Invoke(args...)
}

func (c *Console) Log(args ...any)   { c.Call("log", args...) }
func (c *Console) Info(args ...any)  { c.Call("info", args...) }
func (c *Console) Warn(args ...any)  { c.Call("warn", args...) }
func (c *Console) Error(args ...any) { c.Call("error", args...) }
func (c *Console) Debug(args ...any) { c.Call("debug", args...) }
func (c *Console) Trace(args ...any) { c.Call("trace", args...) }
func (c *Console) Dir(args ...any)   { c.Call("dir", args...) }
func (c *Console) Table(args ...any) { c.Call("table", args...) }

func (c *Console) Assert(cond any, args ...any) {
	c.Call("assert", append([]any{cond}, args...)...)
}

func (c *Console) Count(args ...any)          { c.Call("count", args...) }
func (c *Console) Group(args ...any)          { c.Call("group", args...) }
func (c *Console) GroupCollapsed(args ...any) { c.Call("groupCollapsed", args...) }
func (c *Console) GroupEnd()                  { c.Call("groupEnd") }
func (c *Console) Time(args ...any)           { c.Call("time", args...) }
func (c *Console) TimeEnd(args ...any)        { c.Call("timeEnd", args...) }
func (c *Console) Profile(args ...any)        { c.Call("profile", args...) }
func (c *Console) ProfileEnd(args ...any)     { c.Call("profileEnd", args...) }

type nativeConsole struct {
	out   *slog.Logger
	clock clock.Clock

	mu     sync.Mutex
	depth  int
	counts map[string]int
	timers map[string]time.Time
}

func (n *nativeConsole) method(name string) MethodFunc {
	switch name {
	case "warn":
		return func(args ...any) { n.write(slog.LevelWarn, name, args) }
	case "error":
		return func(args ...any) { n.write(slog.LevelError, name, args) }
	case "assert":
		return n.assert
	case "debug":
		return func(args ...any) { n.write(slog.LevelDebug, name, args) }
	case "count":
		return n.count
	case "group", "groupCollapsed":
		return func(args ...any) {
			n.write(slog.LevelInfo, name, args)
			n.mu.Lock()
			n.depth++
			n.mu.Unlock()
		}
	case "groupEnd":
		return func(...any) {
			n.mu.Lock()
			if n.depth > 0 {
				n.depth--
			}
			n.mu.Unlock()
		}
	case "time":
		return n.timeStart
	case "timeEnd":
		return n.timeEnd
	default:
		return func(args ...any) { n.write(slog.LevelInfo, name, args) }
	}
}

func (n *nativeConsole) write(level slog.Level, method string, args []any) {
	n.mu.Lock()
	depth := n.depth
	n.mu.Unlock()
	n.out.Log(context.Background(), level, strings.Repeat("  ", depth)+sprint(args), "method", method)
}

func (n *nativeConsole) assert(args ...any) {
	if len(args) > 0 && Truthy(args[0]) {
		return
	}
	rest := []any{"Assertion failed"}
	if len(args) > 1 {
		rest = append(rest, args[1:]...)
	}
	n.write(slog.LevelError, "assert", rest)
}

func (n *nativeConsole) count(args ...any) {
	label := labelOf(args)
	n.mu.Lock()
	n.counts[label]++
	c := n.counts[label]
	n.mu.Unlock()
	n.write(slog.LevelInfo, "count", []any{fmt.Sprintf("%s: %d", label, c)})
}

func (n *nativeConsole) timeStart(args ...any) {
	label := labelOf(args)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timers[label] = n.clock.Now()
}

func (n *nativeConsole) timeEnd(args ...any) {
	label := labelOf(args)
	n.mu.Lock()
	started, ok := n.timers[label]
	delete(n.timers, label)
	n.mu.Unlock()
	if !ok {
		n.write(slog.LevelWarn, "timeEnd", []any{fmt.Sprintf("Timer '%s' does not exist", label)})
		return
	}
	n.write(slog.LevelInfo, "timeEnd", []any{fmt.Sprintf("%s: %.3fms", label, Millis(n.clock.Now().Sub(started)))})
}

// Truthy reports whether v passes a console assertion. nil, false, zero,
// NaN and the empty string fail it.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

func labelOf(args []any) string {
	if len(args) == 0 || args[0] == nil {
		return "default"
	}
	return fmt.Sprint(args[0])
}

func sprint(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}
