package notify

import (
	"context"
	"log/slog"
)

// LogPlatform is the local stand-in for a real notification service:
// permission is always granted and delivery writes a log record.
type LogPlatform struct {
	Log *slog.Logger
}

func (p LogPlatform) RequestPermission(ctx context.Context) (bool, error) {
	return true, nil
}

func (p LogPlatform) Deliver(n Notification) error {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("reminder", "task", n.TaskID, "title", n.Title, "at", n.At)
	return nil
}

// DeniedPlatform refuses permission, exercising the reported-no-op path
// when reminders are switched off in config.
type DeniedPlatform struct{}

func (DeniedPlatform) RequestPermission(ctx context.Context) (bool, error) {
	return false, nil
}

func (DeniedPlatform) Deliver(n Notification) error { return nil }
