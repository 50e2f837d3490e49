package normalize

import (
	"net/http"
	"strings"
)

// Headers flattens h into lower-case keys with comma-joined values.
func Headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}
