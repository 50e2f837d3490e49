// Package stream ships encoded message chunks to the ingress backend.
package stream

import (
	"context"
	"encoding/json"
	"time"
)

// Sink delivers one chunk, a JSON array of messages, per Send.
type Sink interface {
	Send(ctx context.Context, chunk []byte) error
	Close(ctx context.Context) error
}

// ChunkFrame wraps a chunk for transports that carry the context id
// out of band of the ingress URL.
type ChunkFrame struct {
	ContextID  string          `json:"context_id"`
	SentAtUnix int64           `json:"sent_at_unix"`
	Messages   json.RawMessage `json:"messages"`
}

// ChunkAck is the backend's reply once a chunk stream is half-closed.
type ChunkAck struct {
	Accepted int `json:"accepted"`
}

func NewChunkFrame(contextID string, chunk []byte) ChunkFrame {
	return ChunkFrame{
		ContextID:  contextID,
		SentAtUnix: time.Now().UTC().Unix(),
		Messages:   json.RawMessage(chunk),
	}
}
