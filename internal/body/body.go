// Package body captures HTTP payloads for telemetry: encoding classification,
// size-bounded truncation and multipart summaries.
package body

import (
	"io"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"pageprobe-agent/internal/clock"
)

const (
	EncodingUTF8   = "utf8"
	EncodingOpaque = "opaque"

	// DefaultMaxLength bounds the captured prefix of any body.
	DefaultMaxLength = 64 * 1024
)

// textTypes is the allowlist of content types captured as UTF-8 text.
var textTypes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^text/`),
	regexp.MustCompile(`(?i)json`),
	regexp.MustCompile(`(?i)xml`),
	regexp.MustCompile(`(?i)javascript`),
	regexp.MustCompile(`(?i)x-www-form-urlencoded`),
	regexp.MustCompile(`(?i)^multipart/`),
}

// Source opens an independent reader over a body.
type Source func() (io.ReadCloser, error)

type Content struct {
	ContentType string `json:"contentType,omitempty"`
	Encoding    string `json:"encoding"`
	Size        int64  `json:"size"`
	Content     string `json:"content,omitempty"`
	IsTruncated bool   `json:"isTruncated"`
	Parts       []Part `json:"parts,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Classify maps a content type to the capture encoding.
func Classify(contentType string) string {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return EncodingOpaque
	}
	for _, re := range textTypes {
		if re.MatchString(ct) {
			return EncodingUTF8
		}
	}
	return EncodingOpaque
}

// Read drains src synchronously, keeping at most max bytes of text content.
func Read(src Source, contentType string, max int) Content {
	if max <= 0 {
		max = DefaultMaxLength
	}
	c := Content{ContentType: contentType, Encoding: Classify(contentType)}
	if src == nil {
		return c
	}
	rc, err := src()
	if err != nil {
		c.Error = err.Error()
		return c
	}
	if rc == nil {
		return c
	}
	defer rc.Close()

	head, err := io.ReadAll(io.LimitReader(rc, int64(max)))
	if err != nil {
		c.Error = err.Error()
	}
	rest, _ := io.Copy(io.Discard, rc)
	c.Size = int64(len(head)) + rest

	if c.Encoding == EncodingOpaque {
		c.IsTruncated = c.Size > 0
		return c
	}
	c.IsTruncated = rest > 0
	if c.IsTruncated {
		head = cutPartialRune(head)
	}
	c.Content = strings.ToValidUTF8(string(head), "\uFFFD")
	if boundary := multipartBoundary(contentType); boundary != "" {
		c.Parts = ParseMultipart(head, boundary)
	}
	return c
}

// Capture reads src and reports the result on a later turn, whether or not
// the underlying read itself blocks.
func Capture(c clock.Clock, src Source, contentType string, max int, done func(Content)) {
	clock.Defer(c, func() {
		done(Read(src, contentType, max))
	})
}

func multipartBoundary(contentType string) string {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return ""
	}
	return params["boundary"]
}

// cutPartialRune drops an incomplete multi-byte sequence left at the end of
// b by the length limit.
func cutPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i]
		}
		break
	}
	return b
}
