// Package stack captures call sites cheaply and symbolizes them later, so the
// instrumented call never pays for symbol resolution.
package stack

import (
	"runtime"
	"strings"
)

const maxDepth = 32

// HostPrefixes are function-name prefixes of frames that belong to the
// runtime, the transports or the host page rather than to page code.
var HostPrefixes = []string{
	"runtime.",
	"net/http.",
	"google.golang.org/grpc.",
	"pageprobe-agent/internal/page.",
	"pageprobe-agent/internal/proxy.",
}

// Trace is a set of raw program counters.
type Trace struct {
	pcs []uintptr
}

type Frame struct {
	Function string `json:"functionName"`
	File     string `json:"fileName"`
	Line     int    `json:"lineNumber"`
}

// Capture records the stack starting at its caller, dropping skip further
// frames.
func Capture(skip int) Trace {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(skip+2, pcs)
	return Trace{pcs: pcs[:n]}
}

func (t Trace) Empty() bool {
	return len(t.pcs) == 0
}

// Frames symbolizes up to limit frames, skipping host frames. A limit of zero
// or less returns every remaining frame.
func (t Trace) Frames(limit int) []Frame {
	if len(t.pcs) == 0 {
		return nil
	}
	var out []Frame
	frames := runtime.CallersFrames(t.pcs)
	for {
		f, more := frames.Next()
		if f.Function != "" && !isHost(f.Function) {
			out = append(out, Frame{Function: f.Function, File: f.File, Line: f.Line})
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		if !more {
			break
		}
	}
	return out
}

func isHost(fn string) bool {
	for _, p := range HostPrefixes {
		if strings.HasPrefix(fn, p) {
			return true
		}
	}
	return false
}
