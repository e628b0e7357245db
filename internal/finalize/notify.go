package finalize

import (
	"context"
	"log/slog"

	"screening-platform/internal/screening"
)

// Notification is emitted once per newly created timeline entry.
type Notification struct {
	ApplicationID   string
	ScreeningCallID string
	Outcome         screening.Status
	Reason          screening.Reason
	TimelineEntryID string
}

// Notifier delivers finalization notices to recruiters.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notices to the log. It is the default notifier.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, no Notification) error {
	l := n.Log
	if l == nil {
		l = slog.Default()
	}
	l.Info("screening result available",
		"application_id", no.ApplicationID,
		"screening_call_id", no.ScreeningCallID,
		"outcome", string(no.Outcome),
		"reason", string(no.Reason),
	)
	return nil
}
