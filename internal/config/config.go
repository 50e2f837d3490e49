package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type StreamMode string

const (
	StreamModeHTTP      StreamMode = "http"
	StreamModeGRPC      StreamMode = "grpc"
	StreamModeWebSocket StreamMode = "websocket"
	HardcodedVersion    string     = "V0.1"
)

type Config struct {
	PageURL               string
	DemoTargetURL         string
	DemoGRPCAddr          string
	IngressURL            string
	ContextID             string
	ContextType           string
	ContextCookie         string
	AgentSource           string
	AgentVersion          string
	FlushDebounce         time.Duration
	ChunkBudget           int
	SendTimeout           time.Duration
	ResourcePollInterval  time.Duration
	MatchMaxWait          time.Duration
	MaxBodyBytes          int
	ProbeListenAddr       string
	HealthInterval        time.Duration
	ShutdownTimeout       time.Duration
	StreamMode            StreamMode
	BackendGRPCAddr       string
	BackendWSURL          string
	BackendToken          string
	GRPCChunkStreamMethod string
	TLSEnabled            bool
	TLSSkipVerify         bool
	TLSCAPath             string
	TLSCertPath           string
	TLSKeyPath            string
	LogJSON               bool
	LogLevel              string
	WebSocketWriteTimeout time.Duration
	WebSocketPingInterval time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		PageURL:               env("PAGEPROBE_PAGE_URL", "http://127.0.0.1:8080/"),
		DemoTargetURL:         env("PAGEPROBE_DEMO_TARGET_URL", ""),
		DemoGRPCAddr:          env("PAGEPROBE_DEMO_GRPC_ADDR", ""),
		IngressURL:            env("PAGEPROBE_INGRESS_URL", "http://127.0.0.1:4318/ingress/{contextId}/messages"),
		ContextID:             env("PAGEPROBE_CONTEXT_ID", ""),
		ContextType:           env("PAGEPROBE_CONTEXT_TYPE", "request"),
		ContextCookie:         env("PAGEPROBE_CONTEXT_COOKIE", "pageprobe_context"),
		AgentSource:           env("PAGEPROBE_AGENT_SOURCE", "pageprobe-agent"),
		AgentVersion:          HardcodedVersion,
		FlushDebounce:         envDuration("PAGEPROBE_FLUSH_DEBOUNCE", 250*time.Millisecond),
		ChunkBudget:           envInt("PAGEPROBE_CHUNK_BUDGET", 100000),
		SendTimeout:           envDuration("PAGEPROBE_SEND_TIMEOUT", 10*time.Second),
		ResourcePollInterval:  envDuration("PAGEPROBE_RESOURCE_POLL_INTERVAL", 1*time.Second),
		MatchMaxWait:          envDuration("PAGEPROBE_MATCH_MAX_WAIT", 500*time.Millisecond),
		MaxBodyBytes:          envInt("PAGEPROBE_MAX_BODY_BYTES", 64*1024),
		ProbeListenAddr:       env("PAGEPROBE_PROBE_ADDR", "127.0.0.1:7444"),
		HealthInterval:        envDuration("PAGEPROBE_HEALTH_INTERVAL", 30*time.Second),
		ShutdownTimeout:       envDuration("PAGEPROBE_SHUTDOWN_TIMEOUT", 20*time.Second),
		StreamMode:            StreamMode(strings.ToLower(env("PAGEPROBE_STREAM_MODE", string(StreamModeHTTP)))),
		BackendGRPCAddr:       env("PAGEPROBE_BACKEND_GRPC_ADDR", "127.0.0.1:4317"),
		BackendWSURL:          env("PAGEPROBE_BACKEND_WS_URL", "ws://127.0.0.1:4318/ws/messages"),
		BackendToken:          env("PAGEPROBE_BACKEND_TOKEN", ""),
		GRPCChunkStreamMethod: env("PAGEPROBE_GRPC_CHUNK_STREAM_METHOD", "/pageprobe.ingress.v1.IngressService/StreamChunks"),
		TLSEnabled:            envBool("PAGEPROBE_TLS_ENABLED", false),
		TLSSkipVerify:         envBool("PAGEPROBE_TLS_SKIP_VERIFY", false),
		TLSCAPath:             env("PAGEPROBE_TLS_CA_PATH", ""),
		TLSCertPath:           env("PAGEPROBE_TLS_CERT_PATH", ""),
		TLSKeyPath:            env("PAGEPROBE_TLS_KEY_PATH", ""),
		LogJSON:               envBool("PAGEPROBE_LOG_JSON", true),
		LogLevel:              strings.ToLower(env("PAGEPROBE_LOG_LEVEL", "info")),
		WebSocketWriteTimeout: envDuration("PAGEPROBE_WS_WRITE_TIMEOUT", 5*time.Second),
		WebSocketPingInterval: envDuration("PAGEPROBE_WS_PING_INTERVAL", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.AgentSource) == "" {
		return errors.New("PAGEPROBE_AGENT_SOURCE is required")
	}
	if strings.TrimSpace(c.AgentVersion) == "" {
		return errors.New("agent version must not be empty")
	}
	if u, err := url.Parse(c.PageURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("PAGEPROBE_PAGE_URL must be an absolute url, got %q", c.PageURL)
	}
	if strings.TrimSpace(c.ProbeListenAddr) == "" {
		return errors.New("PAGEPROBE_PROBE_ADDR is required")
	}
	if c.FlushDebounce <= 0 {
		return errors.New("PAGEPROBE_FLUSH_DEBOUNCE must be > 0")
	}
	if c.ChunkBudget <= 0 {
		return errors.New("PAGEPROBE_CHUNK_BUDGET must be > 0")
	}
	if c.ResourcePollInterval <= 0 {
		return errors.New("PAGEPROBE_RESOURCE_POLL_INTERVAL must be > 0")
	}
	if c.MatchMaxWait < 0 {
		return errors.New("PAGEPROBE_MATCH_MAX_WAIT must be >= 0")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("PAGEPROBE_MAX_BODY_BYTES must be > 0")
	}
	if c.HealthInterval <= 0 {
		return errors.New("PAGEPROBE_HEALTH_INTERVAL must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("PAGEPROBE_SHUTDOWN_TIMEOUT must be > 0")
	}
	switch c.StreamMode {
	case StreamModeHTTP, StreamModeGRPC, StreamModeWebSocket:
	default:
		return fmt.Errorf("unsupported stream mode %q", c.StreamMode)
	}
	if c.StreamMode == StreamModeHTTP && strings.TrimSpace(c.IngressURL) == "" {
		return errors.New("PAGEPROBE_INGRESS_URL is required for http mode")
	}
	if c.StreamMode == StreamModeGRPC {
		if c.BackendGRPCAddr == "" {
			return errors.New("PAGEPROBE_BACKEND_GRPC_ADDR is required for grpc mode")
		}
		if strings.TrimSpace(c.GRPCChunkStreamMethod) == "" {
			return errors.New("PAGEPROBE_GRPC_CHUNK_STREAM_METHOD is required for grpc mode")
		}
	}
	if c.StreamMode == StreamModeWebSocket && c.BackendWSURL == "" {
		return errors.New("PAGEPROBE_BACKEND_WS_URL is required for websocket mode")
	}
	return nil
}

func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLSCertPath != "" || c.TLSKeyPath != "" {
		if c.TLSCertPath == "" || c.TLSKeyPath == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
