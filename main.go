package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kyeworks/bidhall/bidhall"
	"github.com/kyeworks/bidhall/bidhall/agent"
	"github.com/kyeworks/bidhall/bidhall/auction"
	"github.com/kyeworks/bidhall/bidhall/logger"
	"github.com/kyeworks/bidhall/bidhall/notify"
	"github.com/kyeworks/bidhall/server"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := "config.toml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, cfgErr := bidhall.LoadConfig(configPath)
	if cfgErr != nil {
		defaults := bidhall.DefaultConfig()
		cfg = &defaults
	}

	logger.Setup("bidhall", cfg.Log.Format, cfg.Log.Level, cfg.Log.AddSource)
	if cfgErr != nil {
		slog.Warn("Config not loaded, using defaults",
			slog.String("path", configPath),
			slog.String("error", cfgErr.Error()))
	}

	slog.Info("Starting bidhall",
		slog.String("version", version),
		slog.String("commit", commit),
		slog.String("addr", cfg.Server.Addr))

	archive, err := auction.NewArchive(cfg.Archive.Size)
	if err != nil {
		slog.Error("Failed to create auction archive", slog.String("error", err.Error()))
		os.Exit(1)
	}

	registry := agent.NewRegistry()
	ledger := auction.NewLedger()
	dispatcher := auction.NewDispatcher(256)

	hub := server.NewHub()
	dispatcher.Register(hub)

	if cfg.Discord.Enabled {
		discordSink, err := notify.NewDiscordNotifier(cfg.Discord.Token, cfg.Discord.ChannelID)
		if err != nil {
			slog.Error("Failed to create discord notifier", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer discordSink.Close(context.Background())
		dispatcher.Register(discordSink)
		slog.Info("Discord notifications enabled",
			slog.String("channel_id", cfg.Discord.ChannelID.String()))
	}

	engine := auction.NewEngine(ledger, registry, auction.NewPolicyAdapter(nil), dispatcher, archive, auction.Options{
		StrictSelfOutbid: cfg.Scheduler.StrictSelfOutbid,
	})
	scheduler := auction.NewScheduler(engine, cfg.Scheduler.Tick())

	app := server.New(engine, scheduler, registry, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Listen(cfg.Server.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()

		slog.Info("Shutting down...")
		if err := scheduler.Shutdown(10 * time.Second); err != nil {
			slog.Error("Scheduler shutdown timed out", slog.String("error", err.Error()))
		}
		dispatcher.Close()
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}
