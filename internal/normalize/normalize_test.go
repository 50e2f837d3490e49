package normalize

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

func TestResolveURL(t *testing.T) {
	t.Parallel()
	base, _ := url.Parse("https://shop.example.com/cart/view?x=1")
	tests := []struct {
		raw  string
		want string
	}{
		{"/api/items", "https://shop.example.com/api/items"},
		{"items", "https://shop.example.com/cart/items"},
		{"https://cdn.example.com/a.js", "https://cdn.example.com/a.js"},
		{"//cdn.example.com/b.js", "https://cdn.example.com/b.js"},
	}
	for _, tt := range tests {
		if got := ResolveURL(base, tt.raw); got != tt.want {
			t.Errorf("ResolveURL(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
	if got := ResolveURL(nil, "/relative"); got != "/relative" {
		t.Errorf("ResolveURL(nil) = %q", got)
	}
}

func TestHeaders(t *testing.T) {
	t.Parallel()
	h := http.Header{}
	h.Add("Accept", "text/html")
	h.Add("Accept", "application/json")
	h.Set("X-Request-Id", "abc")
	got := Headers(h)
	if got["accept"] != "text/html, application/json" {
		t.Errorf("accept = %q", got["accept"])
	}
	if got["x-request-id"] != "abc" {
		t.Errorf("x-request-id = %q", got["x-request-id"])
	}
	if len(Headers(nil)) != 0 {
		t.Error("Headers(nil) not empty")
	}
}

func TestFormatDate(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 3, 5, 10, 4, 5, 7_000_000, loc)
	if got, want := FormatDate(ts), "2024-03-05T08:04:05.007Z"; got != want {
		t.Errorf("FormatDate = %q, want %q", got, want)
	}
}

func TestExpandIngress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		template string
		want     string
	}{
		{"https://in.example.com/ctx/{contextId}/messages", "https://in.example.com/ctx/a%20b/messages"},
		{"https://in.example.com/messages{?contextId}", "https://in.example.com/messages?contextId=a+b"},
		{"https://in.example.com/messages?v=1{?contextId}", "https://in.example.com/messages?v=1&contextId=a+b"},
		{"https://in.example.com/static", "https://in.example.com/static"},
	}
	for _, tt := range tests {
		if got := ExpandIngress(tt.template, "a b"); got != tt.want {
			t.Errorf("ExpandIngress(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}

func TestIngressPrefix(t *testing.T) {
	t.Parallel()
	if got, want := IngressPrefix("https://in.example.com/messages?contextId=1"), "https://in.example.com/messages"; got != want {
		t.Errorf("IngressPrefix = %q, want %q", got, want)
	}
}
