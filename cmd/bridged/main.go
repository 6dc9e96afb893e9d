package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ironlady-io/bridge/internal/advisor"
	apiPkg "github.com/ironlady-io/bridge/internal/api"
	"github.com/ironlady-io/bridge/internal/assist"
	"github.com/ironlady-io/bridge/internal/auth"
	"github.com/ironlady-io/bridge/internal/config"
	"github.com/ironlady-io/bridge/internal/connector/telegram"
	"github.com/ironlady-io/bridge/internal/console"
	"github.com/ironlady-io/bridge/internal/directory"
	"github.com/ironlady-io/bridge/internal/janitor"
	"github.com/ironlady-io/bridge/internal/logbuf"
	"github.com/ironlady-io/bridge/internal/notify"
	"github.com/ironlady-io/bridge/internal/provider"
	"github.com/ironlady-io/bridge/internal/store"
	"github.com/ironlady-io/bridge/internal/ticket"
)

func main() {
	configPath := flag.String("config", "", "Path to config JSON file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	// .env is optional; env vars win either way.
	godotenv.Load()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	ring := logbuf.NewRing(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logbuf.NewHandler(jsonHandler, ring))

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("bridged starting", "data_dir", cfg.Bridge.DataDir)

	// Persisted store.
	os.MkdirAll(cfg.Bridge.DataDir, 0o755)
	dbPath := filepath.Join(cfg.Bridge.DataDir, "bridge.db")
	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		logger.Error("failed to open store", "path", dbPath, "error", err)
		os.Exit(1)
	}

	repo := ticket.NewRepository(st)

	// Language-model service.
	var provOpts []provider.OpenAIOption
	if cfg.Provider.BaseURL != "" {
		provOpts = append(provOpts, provider.WithBaseURL(cfg.Provider.BaseURL))
	}
	if cfg.Provider.Model != "" {
		provOpts = append(provOpts, provider.WithModel(cfg.Provider.Model))
	}
	prov := provider.NewOpenAI(cfg.Provider.APIKey, provOpts...)

	assistOpts := []assist.ClientOption{assist.WithLogger(logger.With("component", "assist"))}
	if cfg.Provider.Model != "" {
		assistOpts = append(assistOpts, assist.WithChatModel(cfg.Provider.Model))
	}
	if cfg.Provider.AnalysisModel != "" {
		assistOpts = append(assistOpts, assist.WithAnalysisModel(cfg.Provider.AnalysisModel))
	}
	if cfg.Provider.TimeoutSecs > 0 {
		assistOpts = append(assistOpts, assist.WithTimeout(cfg.Provider.Timeout()))
	}
	ai := assist.NewClient(prov, assistOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Visitor side polls faster than the console, like the two surfaces
	// in the browser did.
	visitorWatcher := ticket.NewWatcher(repo, cfg.VisitorPoll(), logger.With("component", "watcher"))
	consoleWatcher := ticket.NewWatcher(repo, cfg.ConsolePoll(), logger.With("component", "watcher"))

	sessions := advisor.NewManager(st, repo, ai, visitorWatcher, logger.With("component", "advisor"))
	go safeGo(logger, "advisor", func() { sessions.Start(ctx) })

	cs := console.NewService(repo, ai, logger.With("component", "console"))
	dir := directory.NewService(st)

	var gateOpts []auth.Option
	if cfg.Portal.Passkey != "" {
		gateOpts = append(gateOpts, auth.WithPasskey(cfg.Portal.Passkey))
	}
	gate := auth.NewGate(gateOpts...)

	// Optional Telegram front end.
	if cfg.Connector.Telegram != nil {
		tg, err := telegram.New(telegram.Config{
			Token:         cfg.Connector.Telegram.Token,
			AllowFrom:     cfg.Connector.Telegram.AllowFrom,
			FlushInterval: cfg.VisitorPoll(),
		}, sessions, logger.With("connector", "telegram"))
		if err != nil {
			logger.Error("failed to init telegram bridge", "error", err)
			os.Exit(1)
		}
		go safeGo(logger, "telegram", func() { tg.Start(ctx) })
	}

	// Optional Slack ticket-event notifier.
	if cfg.Notify.Slack != nil {
		notifier, err := notify.New(notify.Config{
			Token:   cfg.Notify.Slack.Token,
			Channel: cfg.Notify.Slack.Channel,
		}, consoleWatcher, logger.With("component", "notify"))
		if err != nil {
			logger.Error("failed to init slack notifier", "error", err)
			os.Exit(1)
		}
		go safeGo(logger, "notify", func() { notifier.Start(ctx) })
	}

	// Optional stale-ticket sweeps.
	if cfg.Janitor.Spec != "" {
		var jOpts []janitor.Option
		if cfg.Janitor.StaleMins > 0 {
			jOpts = append(jOpts, janitor.WithStaleAfter(cfg.Janitor.StaleAfter()))
		}
		j := janitor.New(repo, logger.With("component", "janitor"), jOpts...)
		go safeGo(logger, "janitor", func() { j.Start(ctx, cfg.Janitor.Spec) })
	}

	apiSrv := apiPkg.NewServer(sessions, cs, dir, gate, apiPkg.Config{
		Host: cfg.API.Host,
		Port: cfg.API.Port,
		Key:  cfg.API.Key,
	}, logger.With("component", "api"), ring)
	go safeGo(logger, "api-server", func() { apiSrv.Start(ctx) })
	logger.Info("api server started", "port", cfg.API.Port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := st.Close(); err != nil {
		logger.Warn("store close failed", "error", err)
	}
	logger.Info("bridged stopped")
}

// safeGo runs fn with panic recovery.
func safeGo(logger *slog.Logger, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("goroutine panicked", "name", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	fn()
}
