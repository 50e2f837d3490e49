// Package normalize converts host values into the shapes telemetry messages
// carry: absolute URLs, flat header maps and ISO-8601 timestamps.
package normalize

import (
	"net/url"
	"strings"
)

// ResolveURL makes raw absolute against base. Unparseable input is returned
// unchanged.
func ResolveURL(base *url.URL, raw string) string {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	if base == nil || ref.IsAbs() {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// ExpandIngress fills the context id placeholders of an ingress URL template.
// "{contextId}" becomes the escaped id and "{?contextId}" becomes a query
// parameter appended with the right separator.
func ExpandIngress(template, contextID string) string {
	out := strings.ReplaceAll(template, "{contextId}", url.PathEscape(contextID))
	if i := strings.Index(out, "{?contextId}"); i >= 0 {
		head := out[:i]
		sep := "?"
		if strings.Contains(head, "?") {
			sep = "&"
		}
		out = head + sep + "contextId=" + url.QueryEscape(contextID) + out[i+len("{?contextId}"):]
	}
	return out
}

// IngressPrefix is the part of an expanded ingress URL that identifies
// agent egress in the resource timeline: scheme, host and path.
func IngressPrefix(ingress string) string {
	u, err := url.Parse(ingress)
	if err != nil || u.Host == "" {
		return ingress
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
