package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/onboarding-compliance/internal/core/contract"
)

// ContractRepository は contract.Repository のメモリ実装です。
type ContractRepository struct {
	store *Store
}

var _ contract.Repository = (*ContractRepository)(nil)

func (r *ContractRepository) Create(_ context.Context, c *contract.Contract) (*contract.Contract, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	st := r.store.st

	saved := *c
	saved.ID = uuid.NewString()
	saved.Status = contract.StatusActive
	st.contracts[saved.ID] = &saved
	st.contractOrder = append(st.contractOrder, saved.ID)

	st.changeSeq++
	st.contractChanges = append(st.contractChanges, &contract.StatusChange{
		ID:         st.changeSeq,
		ContractID: saved.ID,
		Status:     contract.StatusActive,
		Kind:       contract.ChangeCreation,
		RecordedAt: c.CreatedAt,
	})

	out := saved
	return &out, nil
}

func (r *ContractRepository) FindByID(_ context.Context, id string) (*contract.Contract, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.st.contracts[id]
	if !ok {
		return nil, contract.ErrContractNotFound
	}
	out := *c
	out.Status = r.currentStatus(id)
	return &out, nil
}

func (r *ContractRepository) ListExpirable(_ context.Context, now time.Time) ([]*contract.Contract, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*contract.Contract, 0)
	for _, id := range r.store.st.contractOrder {
		c := r.store.st.contracts[id]
		if r.currentStatus(id) != contract.StatusActive || !c.EndedBefore(now) {
			continue
		}
		clone := *c
		clone.Status = contract.StatusActive
		out = append(out, &clone)
	}
	return out, nil
}

func (r *ContractRepository) AppendStatus(_ context.Context, change *contract.StatusChange) (*contract.StatusChange, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	st := r.store.st

	if _, ok := st.contracts[change.ContractID]; !ok {
		return nil, contract.ErrContractNotFound
	}
	st.changeSeq++
	saved := *change
	saved.ID = st.changeSeq
	st.contractChanges = append(st.contractChanges, &saved)
	out := saved
	return &out, nil
}

func (r *ContractRepository) History(_ context.Context, contractID string) ([]*contract.StatusChange, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	changes := r.store.st.contractChanges
	out := make([]*contract.StatusChange, 0)
	for i := len(changes) - 1; i >= 0; i-- {
		if changes[i].ContractID == contractID {
			clone := *changes[i]
			out = append(out, &clone)
		}
	}
	return out, nil
}

// currentStatus は呼び出し側でロックを保持している前提です。
func (r *ContractRepository) currentStatus(id string) contract.Status {
	changes := r.store.st.contractChanges
	for i := len(changes) - 1; i >= 0; i-- {
		if changes[i].ContractID == id {
			return changes[i].Status
		}
	}
	return ""
}
