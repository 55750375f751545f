package jobtracker

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserRegistered      ActivityEventType = "auth.user.registered"
	ActivityEventLoginSuccess        ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure        ActivityEventType = "auth.login.failure"
	ActivityEventAccountDeleted      ActivityEventType = "auth.account.deleted"
	ActivityEventApplicationCreated  ActivityEventType = "application.created"
	ActivityEventApplicationUpdated  ActivityEventType = "application.updated"
	ActivityEventApplicationStatus   ActivityEventType = "application.status.changed"
	ActivityEventApplicationArchived ActivityEventType = "application.archive.toggled"
	ActivityEventApplicationDeleted  ActivityEventType = "application.deleted"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType     ActivityEventType
	UserID        string
	ApplicationID string
	FromStatus    ApplicationStatus
	ToStatus      ApplicationStatus
	Metadata      map[string]any
	OccurredAt    time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// LoggingActivitySink writes every event to a Logger at info level
func LoggingActivitySink(logger Logger) ActivitySink {
	logger = resolveLogger("jobtracker.activity", logger)
	return ActivitySinkFunc(func(_ context.Context, e ActivityEvent) error {
		args := []any{"event", string(e.EventType), "user_id", e.UserID}
		if e.ApplicationID != "" {
			args = append(args, "application_id", e.ApplicationID)
		}
		if e.FromStatus != "" || e.ToStatus != "" {
			args = append(args, "from", string(e.FromStatus), "to", string(e.ToStatus))
		}
		for k, v := range e.Metadata {
			args = append(args, k, v)
		}
		logger.Info("activity", args...)
		return nil
	})
}

// emitActivity records an event without failing the caller
func emitActivity(ctx context.Context, sink ActivitySink, logger Logger, clock Clock, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = clock.now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		logger.Warn("activity sink failed", "event", string(event.EventType), "error", err)
	}
}
