package models

import (
	"fmt"
	"time"
)

const (
	DefaultMinApprovals = 2
	DefaultApprovalTTL  = 24 * time.Hour
)

// Policy holds the tunable transfer parameters.
type Policy struct {
	// MinApprovals is the quorum of unexpired approvals a transfer needs.
	MinApprovals int
	// ApprovalTTL bounds both approval validity and the per-signatory cooldown.
	ApprovalTTL time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MinApprovals: DefaultMinApprovals, ApprovalTTL: DefaultApprovalTTL}
}

func (p Policy) Validate() error {
	if p.MinApprovals < 1 {
		return fmt.Errorf("min approvals must be at least 1, got %d", p.MinApprovals)
	}
	if p.ApprovalTTL <= 0 {
		return fmt.Errorf("approval ttl must be positive, got %s", p.ApprovalTTL)
	}
	return nil
}

// CooldownElapsed reports whether a signatory whose last approval was at last
// may approve again at now. A zero last means no prior approval.
func (p Policy) CooldownElapsed(last, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	return now.After(last.Add(p.ApprovalTTL))
}

// CountValid counts approvals still inside the TTL window at now, in insertion
// order, stopping once limit is reached. A limit <= 0 counts everything.
func (p Policy) CountValid(approvals []ApprovalRecord, now time.Time, limit int) int {
	count := 0
	for _, a := range approvals {
		if !a.ValidAt(now, p.ApprovalTTL) {
			continue
		}
		count++
		if limit > 0 && count >= limit {
			return count
		}
	}
	return count
}

// QuorumReached is the early-exit quorum check used at transfer time.
func (p Policy) QuorumReached(approvals []ApprovalRecord, now time.Time) bool {
	return p.CountValid(approvals, now, p.MinApprovals) >= p.MinApprovals
}
