package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pageprobe-agent/internal/bus"
	"pageprobe-agent/internal/config"
	"pageprobe-agent/internal/inspector"
	"pageprobe-agent/internal/model"
	"pageprobe-agent/internal/normalize"
	"pageprobe-agent/internal/page"
	"pageprobe-agent/internal/proxy"
	"pageprobe-agent/internal/publisher"
	"pageprobe-agent/internal/stream"
)

var ErrAlreadyInstalled = errors.New("agent: already installed")

type Agent struct {
	cfg       config.Config
	logger    *slog.Logger
	page      *page.Page
	ingress   config.Ingress
	bus       *bus.Bus
	publisher *publisher.Publisher
	sink      stream.Sink
	health    *HealthStatus

	inspectors []inspector.Inspector
	proxies    []proxy.Proxy
	resource   *proxy.Resource

	installOnce sync.Once
	installErr  error
}

// New wires an agent for pg. Nothing on the page is touched until Install.
func New(cfg config.Config, pg *page.Page, logger *slog.Logger) (*Agent, error) {
	if pg == nil {
		return nil, errors.New("agent: nil page")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("tls config: %w", err)
	}

	ingress := config.ResolveIngress(cfg, pg.Document)
	sink, err := stream.NewSinkFromConfig(cfg, ingress, pg.NativeTransport(), tlsCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("stream sink: %w", err)
	}

	health := NewHealthStatus()
	wrappedSink := &healthSink{sink: sink, health: health}
	c := pg.Clock()
	b := bus.New(pg.Performance, c)
	pub := publisher.New(wrappedSink, publisher.Options{
		Context:     model.Context{ID: ingress.ContextID, Type: cfg.ContextType},
		Agent:       model.Agent{Source: cfg.AgentSource},
		Debounce:    cfg.FlushDebounce,
		Budget:      cfg.ChunkBudget,
		SendTimeout: cfg.SendTimeout,
		Clock:       c,
		Offsets:     pg.Performance,
		Logger:      logger,
	})

	opts := inspector.Options{Bus: b, Clock: c, Logger: logger}
	backoff := inspector.DefaultBackoff
	backoff.MaxTotal = cfg.MatchMaxWait
	inspectors := []inspector.Inspector{
		inspector.NewConsole(opts),
		inspector.NewNetwork(opts, inspector.NetworkOptions{
			Transport:    proxy.TransportFetch,
			Topics:       proxy.FetchTopics,
			BaseURL:      pg.URL,
			Matcher:      inspector.NewMatcher(pg.Performance, c, backoff),
			MaxBodyBytes: cfg.MaxBodyBytes,
		}),
		inspector.NewNetwork(opts, inspector.NetworkOptions{
			Transport:    proxy.TransportRPC,
			Topics:       proxy.RPCTopics,
			BaseURL:      pg.URL,
			MaxBodyBytes: cfg.MaxBodyBytes,
		}),
		inspector.NewPerformance(opts),
		inspector.NewNavigation(opts),
		inspector.NewResource(opts),
	}

	exclude := ""
	if cfg.StreamMode == config.StreamModeHTTP {
		exclude = normalize.IngressPrefix(ingress.URL)
	}
	resource := proxy.NewResource(pg.Performance, b, proxy.ResourceOptions{
		Interval:      cfg.ResourcePollInterval,
		ExcludePrefix: exclude,
		Logger:        logger,
	})
	proxies := []proxy.Proxy{
		proxy.NewConsole(pg.Console, b, logger),
		proxy.NewFetch(pg.HTTP, b, logger),
		proxy.NewRPC(pg.RPC, b, logger),
		proxy.NewPerformance(pg.Performance, b, logger),
		proxy.NewNavigation(pg, b, logger),
		resource,
	}

	return &Agent{
		cfg:        cfg,
		logger:     logger,
		page:       pg,
		ingress:    ingress,
		bus:        b,
		publisher:  pub,
		sink:       wrappedSink,
		health:     health,
		inspectors: inspectors,
		proxies:    proxies,
		resource:   resource,
	}, nil
}

// Install subscribes the inspectors and then installs the proxies, so no
// event is published before someone listens for it.
func (a *Agent) Install() error {
	err := ErrAlreadyInstalled
	a.installOnce.Do(func() {
		a.installErr = a.install()
		err = a.installErr
	})
	return err
}

func (a *Agent) install() error {
	for _, in := range a.inspectors {
		in.Init(a.publisher)
	}
	var errs []error
	for _, p := range a.proxies {
		if !p.IsSupported() {
			a.logger.Warn("proxy not supported on this page", "proxy", p.Name())
			continue
		}
		if err := p.Init(); err != nil {
			errs = append(errs, fmt.Errorf("install %s proxy: %w", p.Name(), err))
		}
	}
	a.logger.Info("agent installed", "ingress", a.ingress.URL, "context_id", a.ingress.ContextID, "mode", a.cfg.StreamMode)
	return errors.Join(errs...)
}

func (a *Agent) Ingress() config.Ingress {
	return a.ingress
}

func (a *Agent) Health() *HealthStatus {
	return a.health
}

// Flush ships whatever is queued without waiting for the debounce.
func (a *Agent) Flush() {
	a.publisher.Flush()
}

func (a *Agent) Run(ctx context.Context) error {
	if err := a.Install(); err != nil && !errors.Is(err, ErrAlreadyInstalled) {
		return err
	}
	a.logger.Info("starting pageprobe-agent", "page", a.page.URL.String(), "version", a.cfg.AgentVersion)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()
	a.shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("pageprobe-agent stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}

type healthSink struct {
	sink   stream.Sink
	health *HealthStatus
}

func (s *healthSink) Send(ctx context.Context, chunk []byte) error {
	err := s.sink.Send(ctx, chunk)
	if err != nil {
		s.health.SetStreamConnected(false)
		s.health.MarkChunkFailed()
		return err
	}
	s.health.SetStreamConnected(true)
	s.health.MarkChunkSent(time.Now().UTC(), len(chunk))
	return nil
}

func (s *healthSink) Close(ctx context.Context) error {
	return s.sink.Close(ctx)
}
