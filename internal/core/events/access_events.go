package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventGrantAdded      = "grant.added"
	EventGrantRemoved    = "grant.removed"
	EventPrimaryTransfer = "grant.primary_transferred"
	EventSessionIssued   = "game_session.issued"
	EventSessionEnded    = "game_session.terminated"
)

func NewGrantAddedEvent(childID, userID, grantedBy int64, isPrimary bool) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      EventGrantAdded,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"child_id":   childID,
			"user_id":    userID,
			"granted_by": grantedBy,
			"is_primary": isPrimary,
		},
	}
}

func NewGrantRemovedEvent(childID, userID int64) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      EventGrantRemoved,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"child_id": childID,
			"user_id":  userID,
		},
	}
}

func NewPrimaryTransferredEvent(childID, newPrimaryUserID int64) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      EventPrimaryTransfer,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"child_id":    childID,
			"new_primary": newPrimaryUserID,
		},
	}
}

func NewSessionIssuedEvent(childID, userID int64, expiresAt time.Time) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      EventSessionIssued,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"child_id":   childID,
			"user_id":    userID,
			"expires_at": expiresAt,
		},
	}
}

func NewSessionEndedEvent(childID int64, sessionID int64) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      EventSessionEnded,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"child_id":   childID,
			"session_id": sessionID,
		},
	}
}
