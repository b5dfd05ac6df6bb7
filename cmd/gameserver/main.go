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

	"github.com/udisondev/crosszero/internal/config"
	"github.com/udisondev/crosszero/internal/gameserver"
)

const ConfigPath = "config/gameserver.yaml"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -p <port>\n", os.Args[0])
}

func main() {
	port := flag.Int("p", 0, "port to listen on")
	cfgPath := flag.String("config", ConfigPath, "path to config file")
	flag.Usage = usage
	flag.Parse()

	if *port <= 0 {
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

	if err := run(ctx, *port, *cfgPath); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, port int, cfgPath string) error {
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.Port = port

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	slog.Info("crosszero server starting",
		"bind", cfg.BindAddress,
		"port", cfg.Port,
		"max_clients", cfg.MaxClients,
		"log_level", cfg.LogLevel)

	server := gameserver.NewServer(cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Run(gctx); err != nil {
			return fmt.Errorf("game server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
