package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"pageprobe-agent/internal/config"
	"pageprobe-agent/internal/page"
)

// runWorkload plays a small page session against the instrumented host:
// console output, user timing, a fetch, an optional RPC and the load event.
func runWorkload(ctx context.Context, cfg config.Config, pg *page.Page, logger *slog.Logger) {
	pg.Console.Info("demo page booting", map[string]any{"url": cfg.PageURL})
	pg.Console.Time("boot")
	_, _ = pg.Performance.Mark("boot-start")

	if cfg.DemoTargetURL != "" {
		fetchDemo(ctx, pg, cfg.DemoTargetURL, logger)
	}
	if cfg.DemoGRPCAddr != "" {
		rpcDemo(ctx, pg, cfg.DemoGRPCAddr, logger)
	}

	pg.Paint(true)
	_, _ = pg.Performance.Mark("boot-end")
	_, _ = pg.Performance.Measure("boot", "boot-start", "boot-end")
	_, _ = pg.Performance.Measure("to-interactive", "navigationStart", "boot-end")
	pg.Console.TimeEnd("boot")
	pg.Load()

	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pg.Console.Count("heartbeat")
		}
	}
}

func fetchDemo(ctx context.Context, pg *page.Page, target string, logger *slog.Logger) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		pg.Console.Error("bad demo target", err.Error())
		return
	}
	resp, err := pg.HTTP.Do(req)
	if err != nil {
		pg.Console.Warn("demo fetch failed", err.Error())
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	logger.Debug("demo fetch done", "status", resp.StatusCode)
}

func rpcDemo(ctx context.Context, pg *page.Page, addr string, logger *slog.Logger) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()), pg.DialOption())
	if err != nil {
		pg.Console.Error("demo rpc dial failed", err.Error())
		return
	}
	defer conn.Close()

	callCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		pg.Console.Warn("demo rpc failed", err.Error())
		return
	}
	logger.Debug("demo rpc done", "status", resp.GetStatus().String())
}
