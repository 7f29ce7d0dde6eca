package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/agentx/assistant-core/internal/cache"
	"github.com/agentx/assistant-core/internal/config"
	"github.com/agentx/assistant-core/internal/connectivity"
	"github.com/agentx/assistant-core/internal/remote"
	"github.com/agentx/assistant-core/internal/repo"
	"github.com/agentx/assistant-core/internal/syncer"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "axsync",
		Short: "Offline-first sync client for the assistant backend",
		Long: `axsync keeps a local SQLite cache of tasks, events, and chat
history, and synchronizes local changes with the assistant backend.

All writes land locally first and are queued for replay, so every
command works with or without network connectivity.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

// app bundles the wired-up components a command needs.
type app struct {
	cfg     config.Config
	loader  *config.Loader
	db      *cache.DB
	monitor *connectivity.Monitor
	client  *remote.Client
	coord   *syncer.Coordinator
	tasks   *repo.Tasks
	events  *repo.Events
	chats   *repo.Chats
	logger  *log.Logger
}

// newApp wires every component from configuration. One-shot commands
// probe connectivity once instead of running the monitor loop.
func newApp(ctx context.Context, logWriter io.Writer) (*app, error) {
	if logWriter == nil {
		logWriter = os.Stderr
	}
	logger := log.New(logWriter, "[axsync] ", log.LstdFlags)

	loader, err := config.Load(configPath, log.New(logWriter, "[config] ", log.LstdFlags))
	if err != nil {
		return nil, err
	}
	cfg := loader.Current()

	db, err := cache.Open(cfg.DB.Path)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchemaContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	tokens := &remote.FileTokenSource{Path: cfg.Remote.TokenFile}
	client := remote.NewClient(cfg.Remote.BaseURL, tokens, cfg.Remote.Timeout,
		log.New(logWriter, "[remote] ", log.LstdFlags))

	probe := connectivity.HTTPProbe(cfg.Remote.BaseURL, cfg.Remote.Timeout)
	monitor := connectivity.NewMonitor(probe, cfg.Monitor.Interval,
		log.New(logWriter, "[connectivity] ", log.LstdFlags))
	monitor.CheckNow(ctx)

	coord := syncer.New(db, client, monitor, log.New(logWriter, "[syncer] ", log.LstdFlags))

	return &app{
		cfg:     cfg,
		loader:  loader,
		db:      db,
		monitor: monitor,
		client:  client,
		coord:   coord,
		tasks:   repo.NewTasks(db, coord),
		events:  repo.NewEvents(db, coord),
		chats:   repo.NewChats(db, coord),
		logger:  logger,
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.Printf("failed to close cache: %v", err)
	}
}

// logWriterFor returns the serve log destination: a size-rotated file
// when configured, stderr otherwise.
func logWriterFor(cfg config.Config) io.Writer {
	if cfg.Log.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
