package proxy_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"pageprobe-agent/internal/proxy"
)

func newFetchPage(t *testing.T) (*http.Client, *recorder) {
	t.Helper()
	pg := newPage(t, nil)
	rec := &recorder{}
	if err := proxy.NewFetch(pg.HTTP, rec, nil).Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return pg.HTTP, rec
}

func TestFetchPublishesRequestAndResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Served-By", "test")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "done")
	}))
	defer srv.Close()
	client, rec := newFetchPage(t)

	resp, err := client.Post(srv.URL+"/items?q=1", "application/json", strings.NewReader(`{"a":1}`))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	got, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(got) != "done" || resp.StatusCode != http.StatusCreated {
		t.Fatalf("response = %d %q, want the native response", resp.StatusCode, got)
	}

	topics := rec.topics()
	if len(topics) != 2 || topics[0] != proxy.FetchTopics.RequestSent || topics[1] != proxy.FetchTopics.ResponseReceived {
		t.Fatalf("topics = %v", topics)
	}
	sent := rec.on(proxy.FetchTopics.RequestSent)[0].(proxy.RequestSent)
	recv := rec.on(proxy.FetchTopics.ResponseReceived)[0].(proxy.ResponseReceived)
	if sent.ID == "" || sent.ID != recv.ID {
		t.Errorf("correlation ids = %q / %q", sent.ID, recv.ID)
	}
	if sent.Method != http.MethodPost || sent.URL != srv.URL+"/items?q=1" || sent.ContentType != "application/json" {
		t.Errorf("RequestSent = %+v", sent)
	}
	if sent.Body == nil {
		t.Fatal("RequestSent.Body is nil")
	}
	rc, err := sent.Body()
	if err != nil {
		t.Fatalf("Body() error = %v", err)
	}
	raw, _ := io.ReadAll(rc)
	if string(raw) != `{"a":1}` {
		t.Errorf("captured body = %q", raw)
	}
	if recv.Status != http.StatusCreated || recv.StatusText != "Created" || recv.Header.Get("X-Served-By") != "test" {
		t.Errorf("ResponseReceived = %+v", recv)
	}
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	client, rec := newFetchPage(t)

	if _, err := client.Get(addr); err == nil {
		t.Fatal("Get() against a closed server succeeded")
	}
	topics := rec.topics()
	if len(topics) != 2 || topics[1] != proxy.FetchTopics.Error {
		t.Fatalf("topics = %v, want request-sent then error", topics)
	}
	failed := rec.on(proxy.FetchTopics.Error)[0].(proxy.TransportFailed)
	if failed.Err == nil || failed.ID != rec.on(proxy.FetchTopics.RequestSent)[0].(proxy.RequestSent).ID {
		t.Errorf("TransportFailed = %+v", failed)
	}
}

func TestFetchAbort(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	client, rec := newFetchPage(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if _, err := client.Do(req); err == nil {
		t.Fatal("Do() with a canceled context succeeded")
	}
	if got := rec.topics(); len(got) != 2 || got[1] != proxy.FetchTopics.Abort {
		t.Fatalf("topics = %v, want request-sent then abort", got)
	}
	if len(rec.on(proxy.FetchTopics.Error)) != 0 {
		t.Error("abort also published an error")
	}
}

func TestFetchMalformedRequestsPassThrough(t *testing.T) {
	t.Parallel()
	client, rec := newFetchPage(t)
	u, _ := url.Parse("http://127.0.0.1:1/")
	ftp, _ := url.Parse("ftp://files.example.com/a")

	reqs := map[string]*http.Request{
		"nil header":       {Method: http.MethodGet, URL: u},
		"invalid method":   {Method: "BAD METHOD", URL: u, Header: http.Header{}},
		"bad scheme":       {Method: http.MethodGet, URL: ftp, Header: http.Header{}},
		"upper scheme":     {Method: http.MethodGet, URL: &url.URL{Scheme: "HTTP", Host: "127.0.0.1:1", Path: "/"}, Header: http.Header{}},
		"bad header value": {Method: http.MethodGet, URL: u, Header: http.Header{"X-Bad": {"a\nb"}}},
		"bad header name":  {Method: http.MethodGet, URL: u, Header: http.Header{"Bad Name": {"v"}}},
	}
	for name, req := range reqs {
		if _, err := client.Transport.RoundTrip(req); err == nil {
			t.Errorf("%s: RoundTrip() succeeded, want the native rejection", name)
		}
	}
	if got := rec.topics(); len(got) != 0 {
		t.Errorf("malformed requests published %v", got)
	}
}
