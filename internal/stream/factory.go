package stream

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"

	"pageprobe-agent/internal/config"
	"pageprobe-agent/internal/normalize"
)

// NewSinkFromConfig picks the egress transport. native is the page transport
// used by the HTTP sink.
func NewSinkFromConfig(cfg config.Config, ingress config.Ingress, native http.RoundTripper, tlsCfg *tls.Config, logger *slog.Logger) (Sink, error) {
	logger = logger.With("component", "stream", "mode", string(cfg.StreamMode))
	switch cfg.StreamMode {
	case config.StreamModeHTTP, "":
		return NewHTTPClient(ingress.URL, cfg.BackendToken, native, logger), nil
	case config.StreamModeGRPC:
		return NewGRPCClient(
			cfg.BackendGRPCAddr,
			tlsCfg,
			cfg.BackendToken,
			cfg.GRPCChunkStreamMethod,
			ingress.ContextID,
			logger,
		), nil
	case config.StreamModeWebSocket:
		return NewWebSocketClient(
			normalize.ExpandIngress(cfg.BackendWSURL, ingress.ContextID),
			cfg.BackendToken,
			tlsCfg,
			cfg.WebSocketWriteTimeout,
			cfg.WebSocketPingInterval,
			logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported stream mode %q", cfg.StreamMode)
	}
}
