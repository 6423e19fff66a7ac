package models

import (
	"time"

	"idregistry/pkg/domain"
)

// Payload is the opaque identity record. The registry never interprets it.
type Payload []byte

// Clone returns a copy so callers cannot mutate stored bytes.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	copy(out, p)
	return out
}

// Identity is a registered record. Ownership is tracked separately by the
// owner map, keyed by principal.
type Identity struct {
	ID      domain.IdentityID
	Payload Payload
}

// ApprovalRecord is one signatory attestation for transferring an owner's identity.
type ApprovalRecord struct {
	Signatory  domain.Principal
	ApprovedAt time.Time
}

// ValidAt reports whether the approval still counts toward quorum at now.
func (a ApprovalRecord) ValidAt(now time.Time, ttl time.Duration) bool {
	return a.ApprovedAt.Add(ttl).After(now)
}

// TransferStatus summarises the approvals that would count toward a transfer at
// a given instant.
type TransferStatus struct {
	Owner          domain.Principal
	IdentityID     domain.IdentityID
	ValidApprovals int
	Required       int
	Approved       bool
	EvaluatedAt    time.Time
}
