package main

import (
	"context"
	"log"
	"os"

	"pageprobe-agent/internal/agent"
	"pageprobe-agent/internal/config"
	"pageprobe-agent/internal/page"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := agent.BuildLogger(cfg)
	pg, err := page.New(page.Options{
		URL:     cfg.PageURL,
		Console: logger.With("component", "page-console"),
		Document: &page.Document{
			CookieHeader: os.Getenv("PAGEPROBE_PAGE_COOKIES"),
		},
	})
	if err != nil {
		logger.Error("page initialization failed", "error", err)
		return
	}

	a, err := agent.New(cfg, pg, logger)
	if err != nil {
		logger.Error("agent initialization failed", "error", err)
		return
	}
	if err := a.Install(); err != nil {
		logger.Warn("agent installed with errors", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runWorkload(ctx, cfg, pg, logger)

	if err := a.Run(ctx); err != nil {
		logger.Error("agent runtime failed", "error", err)
	}
}
