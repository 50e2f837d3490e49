package inspector

import (
	"slices"
	"strings"
	"testing"
	"time"

	"pageprobe-agent/internal/model"
	"pageprobe-agent/internal/normalize"
	"pageprobe-agent/internal/proxy"
)

func newConsoleHarness(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	NewConsole(h.options()).Init(h.pub)
	if err := proxy.NewConsole(h.page.Console, h.bus, nil).Init(); err != nil {
		t.Fatalf("proxy Init() error = %v", err)
	}
	return h
}

func logPayload(t *testing.T, m *model.Message) *model.LogPayload {
	t.Helper()
	p, ok := m.Payload.(*model.LogPayload)
	if !ok {
		t.Fatalf("payload = %T, want *model.LogPayload", m.Payload)
	}
	return p
}

func TestConsoleLogPublishesAfterStackCapture(t *testing.T) {
	t.Parallel()
	h := newConsoleHarness(t)
	sentAt := normalize.FormatDate(h.clock.Now())

	h.page.Console.Log("hello %s", "world")
	if len(h.pub.created) != 1 || len(h.pub.messages()) != 0 {
		t.Fatalf("created %d, published %d; want the message created now and published later", len(h.pub.created), len(h.pub.messages()))
	}
	h.clock.Advance(0)

	msgs := h.pub.messages()
	if len(msgs) != 1 {
		t.Fatalf("published = %d, want 1", len(msgs))
	}
	if want := []string{model.TypeLogWrite, model.TypeCallStack}; !slices.Equal(msgs[0].Types, want) {
		t.Errorf("Types = %v, want %v", msgs[0].Types, want)
	}
	p := logPayload(t, msgs[0])
	if p.Level != "log" || len(p.Tokens) != 2 || p.Tokens[1].Value != "world" {
		t.Errorf("payload = %+v", p)
	}
	if p.TimeStamp != sentAt {
		t.Errorf("TimeStamp = %q, want %q", p.TimeStamp, sentAt)
	}
	if len(p.Stack) != 1 || !strings.HasSuffix(p.Stack[0].Function, "TestConsoleLogPublishesAfterStackCapture") {
		t.Errorf("Stack = %+v, want the call site", p.Stack)
	}
}

func TestConsoleNullBypass(t *testing.T) {
	t.Parallel()
	h := newConsoleHarness(t)
	h.page.Console.Log()
	h.page.Console.Warn()
	h.page.Console.Call("clear")
	h.clock.Advance(0)
	msgs := h.pub.messages()
	if len(msgs) != 1 || logPayload(t, msgs[0]).Method != "clear" {
		t.Fatalf("messages = %d, want only clear", len(msgs))
	}
}

func TestConsoleGroupEndWithoutGroupIsSilent(t *testing.T) {
	t.Parallel()
	h := newConsoleHarness(t)
	h.page.Console.GroupEnd()
	h.page.Console.ProfileEnd()
	h.clock.Advance(0)
	if got := h.pub.messages(); len(got) != 0 {
		t.Fatalf("published %d messages, want 0", len(got))
	}
}

func TestConsoleGroupCorrelation(t *testing.T) {
	t.Parallel()
	h := newConsoleHarness(t)
	h.page.Console.Group("outer")
	h.page.Console.GroupCollapsed("inner")
	h.clock.Advance(4 * time.Millisecond)
	h.page.Console.GroupEnd()
	h.page.Console.GroupEnd()
	h.clock.Advance(0)

	begins := h.pub.ofType(model.TypeLogGroupBegin)
	ends := h.pub.ofType(model.TypeLogGroupEnd)
	if len(begins) != 2 || len(ends) != 2 {
		t.Fatalf("begins %d, ends %d, want 2/2", len(begins), len(ends))
	}
	inner := logPayload(t, begins[1]).Correlation
	firstEnd := logPayload(t, ends[0]).Correlation
	if inner.ID != firstEnd.ID || firstEnd.Label != "inner" || firstEnd.Duration != 4 {
		t.Errorf("first end correlation = %+v, want inner closed after 4ms", firstEnd)
	}
	if !begins[0].HasType(model.TypeBeginCorrelation) || !ends[0].HasType(model.TypeEndCorrelation) {
		t.Errorf("correlation tags missing: %v / %v", begins[0].Types, ends[0].Types)
	}
}

func TestConsoleTimeEndWithoutTimeStartsAtZero(t *testing.T) {
	t.Parallel()
	h := newConsoleHarness(t)
	h.clock.Advance(25 * time.Millisecond)
	h.page.Console.TimeEnd("x")
	h.clock.Advance(0)

	ends := h.pub.ofType(model.TypeLogTimespanEnd)
	if len(ends) != 1 {
		t.Fatalf("timespan ends = %d, want 1", len(ends))
	}
	corr := logPayload(t, ends[0]).Correlation
	if corr.Offset != 0 || corr.Duration != 25 || corr.Label != "x" || corr.ID == "" {
		t.Errorf("correlation = %+v, want zero origin and 25ms", corr)
	}
}

func TestConsoleTimers(t *testing.T) {
	t.Parallel()
	h := newConsoleHarness(t)
	h.page.Console.Time()
	h.page.Console.Time("load")
	h.clock.Advance(10 * time.Millisecond)
	h.page.Console.TimeEnd("load")
	h.clock.Advance(5 * time.Millisecond)
	h.page.Console.TimeEnd()
	h.clock.Advance(0)

	begins := h.pub.ofType(model.TypeLogTimespanBegin)
	ends := h.pub.ofType(model.TypeLogTimespanEnd)
	if len(begins) != 2 || len(ends) != 2 {
		t.Fatalf("begins %d, ends %d", len(begins), len(ends))
	}
	load := logPayload(t, ends[0]).Correlation
	def := logPayload(t, ends[1]).Correlation
	if load.ID != logPayload(t, begins[1]).Correlation.ID || load.Duration != 10 {
		t.Errorf("load timer = %+v", load)
	}
	if def.ID != logPayload(t, begins[0]).Correlation.ID || def.Duration != 15 || def.Label != "default" {
		t.Errorf("default timer = %+v", def)
	}
}

func TestConsoleCountAndAssert(t *testing.T) {
	t.Parallel()
	h := newConsoleHarness(t)
	h.page.Console.Count("clicks")
	h.page.Console.Count("clicks")
	h.page.Console.Count()
	h.page.Console.Assert(true, "never")
	h.page.Console.Assert(0, "zero is falsy")
	h.clock.Advance(0)

	counts := h.pub.ofType(model.TypeLogCount)
	if len(counts) != 3 {
		t.Fatalf("count messages = %d, want 3", len(counts))
	}
	if got := logPayload(t, counts[1]); got.Count != 2 || got.Tokens[0].Value != "clicks: 2" {
		t.Errorf("second count = %+v", got)
	}
	if got := logPayload(t, counts[2]).Tokens[0].Value; got != "default: 1" {
		t.Errorf("default count = %v", got)
	}

	var asserts []*model.LogPayload
	for _, m := range h.pub.messages() {
		if p := logPayload(t, m); p.Method == "assert" {
			asserts = append(asserts, p)
		}
	}
	if len(asserts) != 1 {
		t.Fatalf("assert messages = %d, want only the failing one", len(asserts))
	}
	if asserts[0].Tokens[0].Value != "Assertion failed" || asserts[0].Tokens[1].Value != "zero is falsy" {
		t.Errorf("assert tokens = %+v", asserts[0].Tokens)
	}
}

func TestConsoleOrdinalsFollowCallOrder(t *testing.T) {
	t.Parallel()
	h := newConsoleHarness(t)
	for _, s := range []string{"a", "b", "c"} {
		h.page.Console.Info(s)
	}
	h.clock.Advance(0)
	var last int64
	for _, m := range h.pub.messages() {
		if m.Ordinal <= last {
			t.Fatalf("ordinal %d after %d", m.Ordinal, last)
		}
		last = m.Ordinal
	}
}
