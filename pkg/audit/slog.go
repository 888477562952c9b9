package audit

import (
	"context"
	"log/slog"
)

// SlogLogger writes events to a structured logger. It keeps no history, so
// Query always returns an empty result.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a SlogLogger. A nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// Log writes event at info level, or warn when it failed.
func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	l.logger.LogAttrs(ctx, level, "auth event",
		slog.String("event_id", event.ID),
		slog.String("type", string(event.Type)),
		slog.String("user_id", event.UserID),
		slog.String("email", event.Email),
		slog.Bool("success", event.Success),
		slog.String("error", event.ErrorMessage),
		slog.String("remote_addr", event.RemoteAddr),
	)
	return nil
}

// Query returns no events.
func (*SlogLogger) Query(_ context.Context, _ QueryFilter) ([]Event, error) {
	return []Event{}, nil
}

// Close is a no-op.
func (*SlogLogger) Close() error { return nil }

var _ Logger = (*SlogLogger)(nil)
