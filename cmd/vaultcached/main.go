package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/duskforge/vaultcache/internal/app"
	"github.com/duskforge/vaultcache/internal/config"
)

func main() {
	mode := flag.String("mode", "serve", "run mode: serve or migrate-check")
	flag.Parse()

	if *mode != "serve" && *mode != "migrate-check" {
		fmt.Fprintf(os.Stderr, "error: unknown mode %q (want serve or migrate-check)\n", *mode)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	if *mode == "migrate-check" {
		fmt.Println("migrate-check: configuration valid, no migrations to run")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
