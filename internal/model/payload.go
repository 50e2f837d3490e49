package model

import (
	"pageprobe-agent/internal/body"
	"pageprobe-agent/internal/page"
	"pageprobe-agent/internal/stack"
)

// LogToken is one piece of a formatted console message.
type LogToken struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Correlation ties begin/end pairs together. Offset is the begin offset;
// Duration is only set on the end side.
type Correlation struct {
	ID       string  `json:"id"`
	Label    string  `json:"label,omitempty"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration,omitempty"`
}

type LogPayload struct {
	Level       string        `json:"level"`
	Method      string        `json:"method"`
	TimeStamp   string        `json:"timeStamp"`
	Tokens      []LogToken    `json:"tokens,omitempty"`
	Count       int           `json:"count,omitempty"`
	Correlation *Correlation  `json:"correlation,omitempty"`
	Stack       []stack.Frame `json:"stack,omitempty"`
}

type RequestPayload struct {
	ID        string            `json:"id"`
	Transport string            `json:"transport"`
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers"`
	StartTime float64           `json:"startTime"`
	TimeStamp string            `json:"timeStamp"`
	Body      *body.Content     `json:"body,omitempty"`
	Stack     []stack.Frame     `json:"stack,omitempty"`
}

// ResponseTiming is either the matched resource entry's timing
// (Source "resource") or the proxy's own offsets (Source "proxy").
type ResponseTiming struct {
	Source        string  `json:"source"`
	StartTime     float64 `json:"startTime"`
	ResponseStart float64 `json:"responseStart,omitempty"`
	ResponseEnd   float64 `json:"responseEnd"`
	Duration      float64 `json:"duration"`
}

type ResponsePayload struct {
	ID            string            `json:"id"`
	RequestID     string            `json:"requestId"`
	Transport     string            `json:"transport"`
	URL           string            `json:"url"`
	Status        int               `json:"status"`
	StatusText    string            `json:"statusText"`
	Headers       map[string]string `json:"headers"`
	ContentLength int64             `json:"contentLength"`
	Timing        ResponseTiming    `json:"timing"`
}

// FailurePayload reports a transport error or an abort.
type FailurePayload struct {
	ID        string  `json:"id"`
	RequestID string  `json:"requestId"`
	Transport string  `json:"transport"`
	URL       string  `json:"url"`
	Message   string  `json:"message"`
	Offset    float64 `json:"offset"`
}

type MarkPayload struct {
	Name      string        `json:"name"`
	StartTime float64       `json:"startTime"`
	Synthetic bool          `json:"synthetic,omitempty"`
	Stack     []stack.Frame `json:"stack,omitempty"`
}

// MeasurePayload references the message ids of its two endpoint marks.
type MeasurePayload struct {
	Name      string  `json:"name"`
	StartTime float64 `json:"startTime"`
	Duration  float64 `json:"duration"`
	StartMark string  `json:"startMarkId,omitempty"`
	EndMark   string  `json:"endMarkId,omitempty"`
}

type NavigationPayload struct {
	Timing page.Timing `json:"timing"`
}

type ResourcePayload struct {
	Entries []page.Entry `json:"entries"`
}
