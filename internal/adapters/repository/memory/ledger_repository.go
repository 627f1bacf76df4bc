package memory

import (
	"context"

	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
)

// LedgerRepository は ledger.Repository のメモリ実装です。entries は ID 昇順に保持します。
type LedgerRepository struct {
	store *Store
}

var _ ledger.Repository = (*LedgerRepository)(nil)

func (r *LedgerRepository) Append(_ context.Context, entry *ledger.StatusEntry) (*ledger.StatusEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	st := r.store.st

	var latestID int64
	if latest := latestFor(st.entries, entry.EmployeeID); latest != nil {
		latestID = latest.ID
	}
	if latestID != entry.PreviousID {
		return nil, ledger.ErrConcurrentModification
	}

	st.statusSeq++
	saved := entry.Clone()
	saved.ID = st.statusSeq
	st.entries = append(st.entries, saved)
	return saved.Clone(), nil
}

func (r *LedgerRepository) Latest(_ context.Context, employeeID string) (*ledger.StatusEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	latest := latestFor(r.store.st.entries, employeeID)
	if latest == nil {
		return nil, ledger.ErrNoEntries
	}
	return latest.Clone(), nil
}

func (r *LedgerRepository) History(_ context.Context, filter ledger.HistoryFilter) ([]*ledger.StatusEntry, string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries := r.store.st.entries
	out := make([]*ledger.StatusEntry, 0)
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.BeforeID > 0 && e.ID >= filter.BeforeID {
			continue
		}
		if filter.Limit > 0 && len(out) == filter.Limit {
			return out, ledger.FormatPageToken(out[len(out)-1].ID), nil
		}
		out = append(out, e.Clone())
	}
	return out, "", nil
}

func (r *LedgerRepository) ListCurrent(_ context.Context, filter ledger.CurrentFilter) ([]*ledger.StatusEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	entries := r.store.st.entries
	latest := make(map[string]*ledger.StatusEntry)
	for _, e := range entries {
		latest[e.EmployeeID] = e
	}

	out := make([]*ledger.StatusEntry, 0, len(latest))
	for _, e := range entries {
		if latest[e.EmployeeID] != e || !filter.Matches(e) {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, nil
}

func (r *LedgerRepository) ListEntries(_ context.Context, filter ledger.EntryFilter) ([]*ledger.StatusEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*ledger.StatusEntry, 0)
	for _, e := range r.store.st.entries {
		if filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func latestFor(entries []*ledger.StatusEntry, employeeID string) *ledger.StatusEntry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].EmployeeID == employeeID {
			return entries[i]
		}
	}
	return nil
}
