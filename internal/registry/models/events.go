package models

import (
	"time"

	"idregistry/pkg/domain"
)

// EventType names a domain event.
type EventType string

const (
	EventPersonRegistered  EventType = "PersonRegistered"
	EventViewerAuthorized  EventType = "ViewerAuthorized"
	EventPersonTransferred EventType = "PersonTransferred"
)

// Event is emitted by a committed registry operation. Fields not relevant to
// the event type are left zero.
type Event struct {
	Type       EventType         `json:"type"`
	IdentityID domain.IdentityID `json:"identity_id"`
	Viewer     domain.Principal  `json:"viewer,omitempty"`
	From       domain.Principal  `json:"from,omitempty"`
	To         domain.Principal  `json:"to,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func PersonRegistered(id domain.IdentityID, at time.Time) Event {
	return Event{Type: EventPersonRegistered, IdentityID: id, OccurredAt: at}
}

func ViewerAuthorized(id domain.IdentityID, viewer domain.Principal, at time.Time) Event {
	return Event{Type: EventViewerAuthorized, IdentityID: id, Viewer: viewer, OccurredAt: at}
}

func PersonTransferred(id domain.IdentityID, from, to domain.Principal, at time.Time) Event {
	return Event{Type: EventPersonTransferred, IdentityID: id, From: from, To: to, OccurredAt: at}
}

// Key is the partitioning key used by event sinks: all events of one identity
// stay ordered.
func (e Event) Key() string {
	return e.IdentityID.String()
}
