package stream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/metadata"
)

type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// GRPCClient streams chunk frames over one long-lived client stream.
type GRPCClient struct {
	mu sync.Mutex

	logger      *slog.Logger
	addr        string
	tlsConfig   *tls.Config
	token       string
	method      string
	contextID   string
	dialOptions []grpc.DialOption

	conn         *grpc.ClientConn
	stream       grpc.ClientStream
	streamCancel context.CancelFunc
}

func NewGRPCClient(addr string, tlsCfg *tls.Config, token, method, contextID string, logger *slog.Logger, opts ...grpc.DialOption) *GRPCClient {
	encoding.RegisterCodec(jsonCodec{})
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GRPCClient{
		logger:      logger,
		addr:        addr,
		tlsConfig:   tlsCfg,
		token:       token,
		method:      method,
		contextID:   contextID,
		dialOptions: opts,
	}
}

func (c *GRPCClient) Send(ctx context.Context, chunk []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.ensureConnLocked(); err != nil {
		return err
	}
	if c.stream == nil {
		if err := c.openStreamLocked(); err != nil {
			return err
		}
	}
	frame := NewChunkFrame(c.contextID, chunk)
	if err := c.stream.SendMsg(&frame); err != nil {
		c.logger.Warn("grpc chunk send failed, reopening stream", "error", err)
		c.resetStreamLocked()
		if err2 := c.openStreamLocked(); err2 != nil {
			return fmt.Errorf("reopen chunk stream: %w", err2)
		}
		if err2 := c.stream.SendMsg(&frame); err2 != nil {
			return fmt.Errorf("send chunk frame: %w", err2)
		}
	}
	return nil
}

// Close half-closes the stream and waits for the backend acknowledgement
// until ctx expires.
func (c *GRPCClient) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	if c.stream != nil {
		if err := c.drainLocked(ctx); err != nil {
			errs = append(errs, err)
		}
		c.resetStreamLocked()
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, err)
		}
		c.conn = nil
	}
	return errors.Join(errs...)
}

func (c *GRPCClient) drainLocked(ctx context.Context) error {
	if err := c.stream.CloseSend(); err != nil {
		return fmt.Errorf("close chunk stream: %w", err)
	}
	done := make(chan error, 1)
	go func(s grpc.ClientStream) {
		var ack ChunkAck
		done <- s.RecvMsg(&ack)
	}(c.stream)
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("await chunk ack: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *GRPCClient) ensureConnLocked() error {
	if c.conn != nil {
		return nil
	}

	var creds credentials.TransportCredentials
	if c.tlsConfig != nil {
		creds = credentials.NewTLS(c.tlsConfig)
	} else {
		creds = insecure.NewCredentials()
	}

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}), grpc.CallContentSubtype("json")),
	}, c.dialOptions...)
	conn, err := grpc.NewClient(c.addr, opts...)
	if err != nil {
		return fmt.Errorf("grpc client %s: %w", c.addr, err)
	}
	c.conn = conn
	c.logger.Info("grpc stream connected", "addr", c.addr)
	return nil
}

func (c *GRPCClient) openStreamLocked() error {
	if c.conn == nil {
		return fmt.Errorf("grpc conn is nil")
	}
	streamCtx, cancel := context.WithCancel(context.Background())
	if c.token != "" {
		streamCtx = metadata.AppendToOutgoingContext(streamCtx, "authorization", "Bearer "+c.token)
	}
	s, err := c.conn.NewStream(streamCtx, &grpc.StreamDesc{ClientStreams: true}, c.method)
	if err != nil {
		cancel()
		return fmt.Errorf("open chunk stream: %w", err)
	}
	c.stream = s
	c.streamCancel = cancel
	return nil
}

func (c *GRPCClient) resetStreamLocked() {
	if c.streamCancel != nil {
		c.streamCancel()
		c.streamCancel = nil
	}
	c.stream = nil
}
