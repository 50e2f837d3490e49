package page

import "net/http"

// Document carries the page-hosted configuration: the attributes of the agent
// marker element and the cookie header the page was served with.
type Document struct {
	Marker       map[string]string
	CookieHeader string
}

// Attr returns a non-empty marker attribute.
func (d *Document) Attr(name string) (string, bool) {
	if d == nil || d.Marker == nil {
		return "", false
	}
	v, ok := d.Marker[name]
	return v, ok && v != ""
}

// Cookie returns a non-empty cookie value.
func (d *Document) Cookie(name string) (string, bool) {
	if d == nil || d.CookieHeader == "" {
		return "", false
	}
	req := &http.Request{Header: http.Header{"Cookie": {d.CookieHeader}}}
	c, err := req.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
