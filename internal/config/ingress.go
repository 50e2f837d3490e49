package config

import (
	"github.com/google/uuid"

	"pageprobe-agent/internal/normalize"
	"pageprobe-agent/internal/page"
)

// Marker element attributes read from the hosted page.
const (
	MarkerIngressAttr = "data-ingress-url"
	MarkerContextAttr = "data-context-id"
)

// Ingress is where the agent of one page load sends its messages.
type Ingress struct {
	URL       string
	Template  string
	ContextID string
}

// ResolveIngress reads the ingress template and context id from the page
// marker, falling back to the configuration. A missing context id comes from
// the context cookie, then from a fresh uuid.
func ResolveIngress(cfg Config, doc *page.Document) Ingress {
	template := cfg.IngressURL
	if v, ok := doc.Attr(MarkerIngressAttr); ok {
		template = v
	}
	contextID := cfg.ContextID
	if v, ok := doc.Attr(MarkerContextAttr); ok {
		contextID = v
	} else if contextID == "" {
		if v, ok := doc.Cookie(cfg.ContextCookie); ok {
			contextID = v
		} else {
			contextID = uuid.NewString()
		}
	}
	return Ingress{
		URL:       normalize.ExpandIngress(template, contextID),
		Template:  template,
		ContextID: contextID,
	}
}
