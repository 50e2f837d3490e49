package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pageprobe-agent/internal/clock"
	"pageprobe-agent/internal/model"
)

type recordingSink struct {
	mu     sync.Mutex
	chunks [][]byte
	err    error
}

func (s *recordingSink) Send(_ context.Context, chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
	return s.err
}

func (s *recordingSink) sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.chunks...)
}

type fixedOffset float64

func (f fixedOffset) Now() float64 { return float64(f) }

func newTestPublisher(sink Sender, opts Options) (*Publisher, *clock.Fake) {
	fc := clock.NewFake(time.Unix(1700000000, 0))
	opts.Clock = fc
	return New(sink, opts), fc
}

// drain waits for the sends started by the last flush.
func drain(t *testing.T, p *Publisher) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sends did not finish")
	}
}

func TestCreateMessageOrdinals(t *testing.T) {
	t.Parallel()
	p, _ := newTestPublisher(&recordingSink{}, Options{
		Context: model.Context{ID: "ctx-1", Type: "request"},
		Agent:   model.Agent{Source: "pageprobe"},
		Offsets: fixedOffset(12.5),
	})
	for want := int64(1); want <= 5; want++ {
		m := p.CreateMessage([]string{model.TypeLogWrite}, nil)
		if m.Ordinal != want {
			t.Fatalf("Ordinal = %d, want %d", m.Ordinal, want)
		}
		if m.ID == "" || m.Context.ID != "ctx-1" || m.Agent.Source != "pageprobe" || m.Offset != 12.5 {
			t.Errorf("message defaults = %+v", m)
		}
	}
}

func TestPublishDebouncesIntoOneFlush(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p, fc := newTestPublisher(sink, Options{})

	for i := range 3 {
		if _, err := p.CreateAndPublishMessage([]string{model.TypeLogWrite}, map[string]int{"n": i}); err != nil {
			t.Fatalf("CreateAndPublishMessage() error = %v", err)
		}
		fc.Advance(50 * time.Millisecond)
	}
	drain(t, p)
	if len(sink.sent()) != 0 {
		t.Fatal("sent before the debounce elapsed")
	}
	fc.Advance(100 * time.Millisecond)
	drain(t, p)

	chunks := sink.sent()
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	var msgs []model.Message
	if err := json.Unmarshal(chunks[0], &msgs); err != nil {
		t.Fatalf("chunk is not a JSON array: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages in chunk = %d, want 3", len(msgs))
	}
	for i, m := range msgs {
		if m.Ordinal != int64(i+1) {
			t.Errorf("message %d ordinal = %d", i, m.Ordinal)
		}
		s, ok := m.Payload.(string)
		if !ok || s != `{"n":`+string(rune('0'+i))+`}` {
			t.Errorf("message %d payload = %#v, want its JSON as a string", i, m.Payload)
		}
	}

	if _, err := p.CreateAndPublishMessage([]string{model.TypeLogWrite}, nil); err != nil {
		t.Fatalf("CreateAndPublishMessage() error = %v", err)
	}
	fc.Advance(DefaultDebounce)
	drain(t, p)
	if got := len(sink.sent()); got != 2 {
		t.Errorf("chunks after second window = %d, want 2", got)
	}
}

func TestFlushWithEmptyQueueSendsNothing(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p, _ := newTestPublisher(sink, Options{})
	p.Flush()
	drain(t, p)
	if len(sink.sent()) != 0 {
		t.Fatal("empty flush sent a chunk")
	}
}

func TestOversizedMessageGetsItsOwnChunk(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p, _ := newTestPublisher(sink, Options{Budget: 200})
	if _, err := p.CreateAndPublishMessage([]string{model.TypeLogWrite}, strings.Repeat("x", 500)); err != nil {
		t.Fatalf("CreateAndPublishMessage() error = %v", err)
	}
	p.Flush()
	drain(t, p)
	chunks := sink.sent()
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	var msgs []model.Message
	if err := json.Unmarshal(chunks[0], &msgs); err != nil || len(msgs) != 1 {
		t.Fatalf("chunk = %d messages, err %v", len(msgs), err)
	}
}

func TestQueuedCopyIsDetached(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p, _ := newTestPublisher(sink, Options{})
	payload := map[string]string{"v": "before"}
	m := p.CreateMessage([]string{model.TypeLogWrite}, payload)
	if err := p.PublishMessage(m); err != nil {
		t.Fatalf("PublishMessage() error = %v", err)
	}
	payload["v"] = "after"
	m.AddTypes(model.TypeCallStack)
	p.Flush()
	drain(t, p)

	var msgs []model.Message
	if err := json.Unmarshal(sink.sent()[0], &msgs); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if msgs[0].Payload != `{"v":"before"}` || len(msgs[0].Types) != 1 {
		t.Errorf("queued message = %+v, want the state at publish time", msgs[0])
	}
}

func TestPublishRejectsUnencodablePayload(t *testing.T) {
	t.Parallel()
	p, _ := newTestPublisher(&recordingSink{}, Options{})
	_, err := p.CreateAndPublishMessage([]string{model.TypeLogWrite}, make(chan int))
	if err == nil {
		t.Fatal("PublishMessage() accepted a channel payload")
	}
}

func TestSendErrorsReachTheHookOnly(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{err: errors.New("collector down")}
	var (
		mu   sync.Mutex
		seen []error
	)
	p, _ := newTestPublisher(sink, Options{OnSendError: func(err error) {
		mu.Lock()
		seen = append(seen, err)
		mu.Unlock()
	}})
	if _, err := p.CreateAndPublishMessage([]string{model.TypeLogWrite}, nil); err != nil {
		t.Fatalf("CreateAndPublishMessage() error = %v", err)
	}
	p.Flush()
	drain(t, p)
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0].Error() != "collector down" {
		t.Errorf("hook saw %v", seen)
	}
	if got := len(sink.sent()); got != 1 {
		t.Errorf("send attempts = %d, want 1 (no retry)", got)
	}
}

func TestCloseFlushesAndRefuses(t *testing.T) {
	t.Parallel()
	sink := &recordingSink{}
	p, _ := newTestPublisher(sink, Options{})
	if _, err := p.CreateAndPublishMessage([]string{model.TypeLogWrite}, nil); err != nil {
		t.Fatalf("CreateAndPublishMessage() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := len(sink.sent()); got != 1 {
		t.Errorf("chunks after Close = %d, want 1", got)
	}
	if _, err := p.CreateAndPublishMessage([]string{model.TypeLogWrite}, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("publish after Close error = %v, want ErrClosed", err)
	}
}
