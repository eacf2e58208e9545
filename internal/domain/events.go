package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AggregateType identifies the entity an activity event belongs to.
type AggregateType string

const (
	AggregateSession  AggregateType = "session"
	AggregateIdentity AggregateType = "identity"
)

// EventType identifies the kind of activity recorded.
type EventType string

const (
	EventSessionCreated    EventType = "created"
	EventSessionRefreshed  EventType = "refreshed"
	EventSessionTerminated EventType = "terminated"
	EventLoginFailed       EventType = "login_failed"
	EventSuspiciousLogin   EventType = "suspicious_login"
	EventIdentityBlocked   EventType = "blocked"
	EventIdentityUnblocked EventType = "unblocked"
	EventIdentityVerified  EventType = "verified"
)

// ActivityEvent is a row in the activity_outbox table. Events are written in
// the same transaction as the change they describe and published to Kafka by
// the outbox poller. Recording is fire-and-forget from the caller's view.
type ActivityEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateType AggregateType   `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     EventType       `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewSessionEvent creates a session lifecycle event keyed by user.
func NewSessionEvent(evtType EventType, userID, sessionID uuid.UUID, ip string) ActivityEvent {
	payload, _ := json.Marshal(map[string]string{
		"user_id":    userID.String(),
		"session_id": sessionID.String(),
		"ip_address": ip,
	})
	return ActivityEvent{
		EventID:       uuid.New(),
		AggregateType: AggregateSession,
		AggregateID:   userID.String(),
		EventType:     evtType,
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewSuspiciousLoginEvent records a flagged login with its verdict.
func NewSuspiciousLoginEvent(userID uuid.UUID, verdict LoginVerdict, ip string) ActivityEvent {
	payload, _ := json.Marshal(map[string]interface{}{
		"user_id":    userID.String(),
		"ip_address": ip,
		"flags":      verdict.Flags,
		"risk_level": verdict.RiskLevel,
	})
	return ActivityEvent{
		EventID:       uuid.New(),
		AggregateType: AggregateSession,
		AggregateID:   userID.String(),
		EventType:     EventSuspiciousLogin,
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewIdentityEvent creates an identity lifecycle event.
func NewIdentityEvent(evtType EventType, identityID uuid.UUID, detail string) ActivityEvent {
	payload, _ := json.Marshal(map[string]string{
		"identity_id": identityID.String(),
		"detail":      detail,
	})
	return ActivityEvent{
		EventID:       uuid.New(),
		AggregateType: AggregateIdentity,
		AggregateID:   identityID.String(),
		EventType:     evtType,
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}
