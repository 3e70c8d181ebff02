package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"tendo/internal/config"
	"tendo/internal/lifecycle"
	"tendo/internal/notify"
	"tendo/internal/repo"
	"tendo/internal/store"
	"tendo/internal/ui"
)

func main() {
	cfg, err := config.LoadOrCreate(config.ResolveConfigPath())
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		fmt.Printf("failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := openLogger(cfg)
	sched := newScheduler(ctx, cfg, log)
	defer sched.CancelAll()

	mgr := lifecycle.New(st, sched)
	r := repo.New(st, mgr, sched)

	// Restore reminders for whatever was due when we last exited.
	for _, t := range r.Incomplete() {
		sched.ScheduleFor(t)
	}

	if err := ui.Run(ctx, r, cfg); err != nil {
		fmt.Printf("error running program: %v\n", err)
		os.Exit(1)
	}
}

func newScheduler(ctx context.Context, cfg config.Config, log *slog.Logger) *notify.Scheduler {
	var platform notify.Platform = notify.LogPlatform{Log: log}
	if !cfg.Reminders.Enabled {
		platform = notify.DeniedPlatform{}
	}
	sched := notify.New(platform, log)
	sched.Start(ctx)
	return sched
}

// openLogger writes reminder output next to the database; a TUI owns
// stdout.
func openLogger(cfg config.Config) *slog.Logger {
	path := cfg.Reminders.LogPath
	if path == "" {
		path = filepath.Join(filepath.Dir(cfg.DBPath), "tendo.log")
	}
	var w io.Writer = os.Stderr
	if f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
		w = f
	}
	return slog.New(slog.NewTextHandler(w, nil))
}
