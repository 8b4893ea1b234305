package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegister        ActivityEventType = "auth.register"
	ActivityEventLoginSuccess    ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure    ActivityEventType = "auth.login.failure"
	ActivityEventAccountLocked   ActivityEventType = "auth.account.locked"
	ActivityEventTokenRefreshed  ActivityEventType = "auth.token.refreshed"
	ActivityEventRefreshRejected ActivityEventType = "auth.token.refresh_rejected"
	ActivityEventLogout          ActivityEventType = "auth.logout"
	ActivityEventLogoutAll       ActivityEventType = "auth.logout.all"
	ActivityEventPasswordChanged ActivityEventType = "auth.password.changed"
	ActivityEventRoleChanged     ActivityEventType = "auth.role.changed"
)

// ActorRef identifies who performed an action. Type is "user", "system", or
// "unknown" when the actor could not be resolved (e.g. a failed login for an
// identifier that does not exist).
type ActorRef struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
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
