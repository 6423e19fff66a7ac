package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"idregistry/internal/registry/models"
	"idregistry/pkg/domain"
	"idregistry/pkg/platform/sentinel"
)

func (t *memTx) NextIdentityID(_ context.Context) (domain.IdentityID, error) {
	prev := t.st.lastID
	t.st.lastID++
	t.journal(func() { t.st.lastID = prev })
	return t.st.lastID, nil
}

func (t *memTx) CreateIdentity(_ context.Context, owner domain.Principal, identity models.Identity) error {
	if _, ok := t.st.payloads[identity.ID]; ok {
		return fmt.Errorf("identity %s exists: %w", identity.ID, sentinel.ErrConflict)
	}
	if _, ok := t.st.owners[owner]; ok {
		return fmt.Errorf("principal %s owns an identity: %w", owner, sentinel.ErrConflict)
	}
	t.st.payloads[identity.ID] = identity.Payload.Clone()
	t.st.owners[owner] = identity.ID
	t.journal(func() {
		delete(t.st.payloads, identity.ID)
		delete(t.st.owners, owner)
	})
	return nil
}

func (t *memTx) FindIdentityIDByOwner(_ context.Context, owner domain.Principal) (domain.IdentityID, error) {
	id, ok := t.st.owners[owner]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return id, nil
}

// FindOwnerByIdentityID derives the owner from the principal-keyed map.
func (t *memTx) FindOwnerByIdentityID(_ context.Context, id domain.IdentityID) (domain.Principal, error) {
	for owner, owned := range t.st.owners {
		if owned == id {
			return owner, nil
		}
	}
	return "", sentinel.ErrNotFound
}

func (t *memTx) FindPayload(_ context.Context, id domain.IdentityID) (models.Payload, error) {
	p, ok := t.st.payloads[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return p.Clone(), nil
}

func (t *memTx) RebindOwner(_ context.Context, id domain.IdentityID, from, to domain.Principal) error {
	if owned, ok := t.st.owners[from]; !ok || owned != id {
		return fmt.Errorf("principal %s does not own identity %s: %w", from, id, sentinel.ErrNotFound)
	}
	if _, ok := t.st.owners[to]; ok {
		return fmt.Errorf("principal %s owns an identity: %w", to, sentinel.ErrConflict)
	}
	delete(t.st.owners, from)
	t.st.owners[to] = id
	t.journal(func() {
		delete(t.st.owners, to)
		t.st.owners[from] = id
	})
	return nil
}

func (t *memTx) AddViewer(_ context.Context, id domain.IdentityID, viewer domain.Principal) error {
	return t.addToSet(t.st.viewers, id, viewer)
}

func (t *memTx) IsViewer(_ context.Context, id domain.IdentityID, p domain.Principal) (bool, error) {
	_, ok := t.st.viewers[id][p]
	return ok, nil
}

func (t *memTx) AddSignatory(_ context.Context, id domain.IdentityID, signatory domain.Principal) error {
	return t.addToSet(t.st.signers, id, signatory)
}

func (t *memTx) IsSignatory(_ context.Context, id domain.IdentityID, p domain.Principal) (bool, error) {
	_, ok := t.st.signers[id][p]
	return ok, nil
}

func (t *memTx) addToSet(sets map[domain.IdentityID]map[domain.Principal]struct{}, id domain.IdentityID, p domain.Principal) error {
	set, ok := sets[id]
	if !ok {
		set = make(map[domain.Principal]struct{})
		sets[id] = set
		t.journal(func() { delete(sets, id) })
	}
	if _, exists := set[p]; exists {
		return nil
	}
	set[p] = struct{}{}
	t.journal(func() { delete(set, p) })
	return nil
}

func (t *memTx) AppendApproval(_ context.Context, owner domain.Principal, approval models.ApprovalRecord) error {
	prev, had := t.st.approvals[owner]
	t.st.approvals[owner] = append(slices.Clip(prev), approval)
	t.journal(func() {
		if had {
			t.st.approvals[owner] = prev
		} else {
			delete(t.st.approvals, owner)
		}
	})
	return nil
}

func (t *memTx) ListApprovals(_ context.Context, owner domain.Principal) ([]models.ApprovalRecord, error) {
	return slices.Clone(t.st.approvals[owner]), nil
}

func (t *memTx) LastApproval(_ context.Context, owner, signatory domain.Principal) (time.Time, error) {
	return t.st.lastApprov[pairKey{owner, signatory}], nil
}

func (t *memTx) SetLastApproval(_ context.Context, owner, signatory domain.Principal, at time.Time) error {
	key := pairKey{owner, signatory}
	prev, had := t.st.lastApprov[key]
	t.st.lastApprov[key] = at
	t.journal(func() { t.restoreLast(key, prev, had) })
	return nil
}

func (t *memTx) DeleteLastApprovals(_ context.Context, owner domain.Principal, signatories []domain.Principal) error {
	for _, s := range signatories {
		key := pairKey{owner, s}
		prev, had := t.st.lastApprov[key]
		if !had {
			continue
		}
		delete(t.st.lastApprov, key)
		t.journal(func() { t.restoreLast(key, prev, had) })
	}
	return nil
}

func (t *memTx) restoreLast(key pairKey, prev time.Time, had bool) {
	if had {
		t.st.lastApprov[key] = prev
		return
	}
	delete(t.st.lastApprov, key)
}

func (t *memTx) ClearApprovals(_ context.Context, owner domain.Principal) error {
	prev, had := t.st.approvals[owner]
	if !had {
		return nil
	}
	delete(t.st.approvals, owner)
	t.journal(func() { t.st.approvals[owner] = prev })
	return nil
}

func (t *memTx) AppendEvents(_ context.Context, events []models.Event) error {
	if !t.eventLog || len(events) == 0 {
		return nil
	}
	n := len(t.st.events)
	t.st.events = append(t.st.events, events...)
	t.journal(func() { t.st.events = t.st.events[:n] })
	return nil
}
