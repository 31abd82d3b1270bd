package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/jeux/internal/config"
	"github.com/udisondev/jeux/internal/server"
)

const DefaultConfigPath = "config/jeux.yaml"

func main() {
	port := flag.Int("p", 0, "port to listen on (required)")
	cfgPath := flag.String("config", DefaultConfigPath, "path to the YAML config file")
	flag.Usage = usage
	flag.Parse()

	if *port <= 0 || *port > 0xFFFF {
		usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, *cfgPath, *port); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -p <port> [-config <path>]\n", os.Args[0])
}

func run(ctx context.Context, cfgPath string, port int) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.Port = port

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	slog.Info("jeux server starting", "bind", cfg.BindAddress, "port", cfg.Port)

	srv := server.NewServer(cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Run(gctx); err != nil {
			return fmt.Errorf("jeux server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
