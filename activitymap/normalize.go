package activitymap

import (
	"context"
	"strings"
	"time"

	jobtracker "github.com/goliatone/go-jobtracker"
)

const (
	// MetadataKeyFromStatus stores the source application status for status changes.
	MetadataKeyFromStatus = "from_status"
	// MetadataKeyToStatus stores the target application status for status changes.
	MetadataKeyToStatus = "to_status"
	// MetadataKeyOwnerID stores the owning user when the object is an application.
	MetadataKeyOwnerID = "owner_id"
)

const (
	ChannelAuth         = "auth"
	ChannelApplications = "applications"

	ObjectTypeUser        = "user"
	ObjectTypeApplication = "application"

	defaultActorID = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	actorFallback string
	now           func() time.Time
}

// Normalize converts a tracker ActivityEvent into a generic normalized shape.
// Application events point at the application, auth events at the user.
func Normalize(event jobtracker.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.UserID),
		strings.TrimSpace(options.actorFallback),
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	out := Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: ObjectTypeUser,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    ChannelAuth,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}

	if isApplicationEvent(event) {
		out.ObjectType = ObjectTypeApplication
		out.ObjectID = strings.TrimSpace(event.ApplicationID)
		out.Channel = ChannelApplications
	}

	return out
}

// NewSink returns an ActivitySink that normalizes every event before
// handing it to handler.
func NewSink(handler func(context.Context, Normalized) error, opts ...Option) jobtracker.ActivitySink {
	return jobtracker.ActivitySinkFunc(func(ctx context.Context, event jobtracker.ActivityEvent) error {
		if handler == nil {
			return nil
		}
		return handler(ctx, Normalize(event, opts...))
	})
}

// WithActorFallback sets the actor-id used when the event has no user,
// e.g. a failed login for an unknown email.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if opts == nil {
			return
		}
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithClock sets the time source used when an event carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if opts == nil || now == nil {
			return
		}
		opts.now = now
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

func isApplicationEvent(event jobtracker.ActivityEvent) bool {
	return event.ApplicationID != "" ||
		strings.HasPrefix(string(event.EventType), ObjectTypeApplication+".")
}

func normalizeMetadata(event jobtracker.ActivityEvent) map[string]any {
	metadata := cloneMap(event.Metadata)

	set := func(key string, value any) {
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata[key] = value
	}

	if event.FromStatus != "" {
		set(MetadataKeyFromStatus, string(event.FromStatus))
	}

	if event.ToStatus != "" {
		set(MetadataKeyToStatus, string(event.ToStatus))
	}

	if isApplicationEvent(event) && event.UserID != "" {
		set(MetadataKeyOwnerID, event.UserID)
	}

	return metadata
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
