package model

import "slices"

// Message types understood by the collector.
const (
	TypeLogWrite          = "log-write"
	TypeLogCount          = "log-count"
	TypeLogGroupBegin     = "log-group-begin"
	TypeLogGroupEnd       = "log-group-end"
	TypeLogTimespanBegin  = "log-timespan-begin"
	TypeLogTimespanEnd    = "log-timespan-end"
	TypeLogProfileBegin   = "log-profile-begin"
	TypeLogProfileEnd     = "log-profile-end"
	TypeBeginCorrelation  = "begin-correlation"
	TypeEndCorrelation    = "end-correlation"
	TypeCallStack         = "call-stack"
	TypeHTTPRequest       = "data-http-request"
	TypeHTTPResponse      = "data-http-response"
	TypeHTTPError         = "data-http-error"
	TypeHTTPAbort         = "data-http-abort"
	TypeUserTimingMark    = "user-timing-mark"
	TypeUserTimingMeasure = "user-timing-measure"
	TypeNavigationTiming  = "browser-navigation-timing"
	TypeResourceTiming    = "browser-resource-timing"
)

// Context names the logical context (request, session) messages belong to.
type Context struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type Agent struct {
	Source string `json:"source"`
}

// Message is the wire envelope. Before it is queued for egress its Payload
// is replaced by the JSON encoding of the payload value, as a string.
type Message struct {
	ID      string   `json:"id"`
	Ordinal int64    `json:"ordinal"`
	Types   []string `json:"types"`
	Payload any      `json:"payload"`
	Context Context  `json:"context"`
	Offset  float64  `json:"offset"`
	Agent   Agent    `json:"agent"`
}

// AddTypes appends types not already present.
func (m *Message) AddTypes(types ...string) {
	for _, t := range types {
		if !m.HasType(t) {
			m.Types = append(m.Types, t)
		}
	}
}

func (m *Message) HasType(t string) bool {
	return slices.Contains(m.Types, t)
}
