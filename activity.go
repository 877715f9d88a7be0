package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-print"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserCreated         ActivityEventType = "user.created"
	ActivityEventUserUpdated         ActivityEventType = "user.updated"
	ActivityEventUserDeleted         ActivityEventType = "user.deleted"
	ActivityEventKeyCreated          ActivityEventType = "key.created"
	ActivityEventKeyUpdated          ActivityEventType = "key.updated"
	ActivityEventKeyDeleted          ActivityEventType = "key.deleted"
	ActivityEventKeyVerified         ActivityEventType = "key.verified"
	ActivityEventKeyVerifyFailed     ActivityEventType = "key.verify_failed"
	ActivityEventSessionCreated      ActivityEventType = "session.created"
	ActivityEventSessionRenewed      ActivityEventType = "session.renewed"
	ActivityEventSessionInvalidated  ActivityEventType = "session.invalidated"
	ActivityEventUserSessionsRevoked ActivityEventType = "session.user_revoked"
	ActivityEventSessionCleanup      ActivityEventType = "session.cleanup"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
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

// NewLoggingActivitySink writes every event to logger at debug level.
func NewLoggingActivitySink(logger Logger) ActivitySink {
	logger = normalizeLogger(logger)
	return ActivitySinkFunc(func(_ context.Context, event ActivityEvent) error {
		logger.Debug("activity",
			"event", string(event.EventType),
			"user_id", event.UserID,
			"metadata", print.MaybePrettyJSON(event.Metadata),
		)
		return nil
	})
}

// MultiActivitySink fans an event out to every sink and returns the first error.
func MultiActivitySink(sinks ...ActivitySink) ActivitySink {
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		var first error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Record(ctx, event); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
