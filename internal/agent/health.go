package agent

import (
	"sync/atomic"
	"time"
)

type HealthStatus struct {
	streamConnected atomic.Bool
	chunksSent      atomic.Int64
	chunksFailed    atomic.Int64
	bytesSent       atomic.Int64
	lastSentAt      atomic.Int64
}

func NewHealthStatus() *HealthStatus {
	h := &HealthStatus{}
	h.streamConnected.Store(false)
	return h
}

func (h *HealthStatus) SetStreamConnected(ok bool) {
	h.streamConnected.Store(ok)
}

func (h *HealthStatus) MarkChunkSent(ts time.Time, size int) {
	h.chunksSent.Add(1)
	h.bytesSent.Add(int64(size))
	h.lastSentAt.Store(ts.UnixNano())
}

func (h *HealthStatus) MarkChunkFailed() {
	h.chunksFailed.Add(1)
}

func (h *HealthStatus) Snapshot() map[string]any {
	out := map[string]any{
		"stream_connected": h.streamConnected.Load(),
		"chunks_sent":      h.chunksSent.Load(),
		"chunks_failed":    h.chunksFailed.Load(),
		"bytes_sent":       h.bytesSent.Load(),
	}
	if v := h.lastSentAt.Load(); v > 0 {
		out["last_sent_at"] = time.Unix(0, v).UTC()
	}
	return out
}
