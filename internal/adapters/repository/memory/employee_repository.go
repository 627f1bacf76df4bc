package memory

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
)

// EmployeeRepository は employee.Repository のメモリ実装です。
type EmployeeRepository struct {
	store *Store
}

var _ employee.Repository = (*EmployeeRepository)(nil)

func (r *EmployeeRepository) Create(_ context.Context, e *employee.Employee) (*employee.Employee, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	st := r.store.st

	for _, existing := range st.employees {
		if existing.CompanyID == e.CompanyID && existing.Document == e.Document {
			return nil, employee.ErrDocumentAlreadyRegistered
		}
	}

	saved := *e
	saved.ID = uuid.NewString()
	st.employees[saved.ID] = &saved
	st.employeeOrder = append(st.employeeOrder, saved.ID)
	out := saved
	return &out, nil
}

func (r *EmployeeRepository) Update(_ context.Context, e *employee.Employee) (*employee.Employee, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.st.employees[e.ID]; !ok {
		return nil, employee.ErrEmployeeNotFound
	}
	saved := *e
	r.store.st.employees[e.ID] = &saved
	out := saved
	return &out, nil
}

// Delete は社員と、その社員のステータス履歴・提出書類・監査記録を削除します。
func (r *EmployeeRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	st := r.store.st

	if _, ok := st.employees[id]; !ok {
		return employee.ErrEmployeeNotFound
	}
	delete(st.employees, id)
	st.employeeOrder = removeID(st.employeeOrder, id)

	entries := st.entries[:0]
	for _, e := range st.entries {
		if e.EmployeeID != id {
			entries = append(entries, e)
		}
	}
	st.entries = entries

	removed := make(map[string]struct{})
	for attID, a := range st.attachments {
		if a.EmployeeID == id {
			removed[attID] = struct{}{}
			delete(st.attachments, attID)
			st.attachmentOrder = removeID(st.attachmentOrder, attID)
		}
	}
	records := make([]*compliance.ApprovalRecord, 0, len(st.records))
	for _, rec := range st.records {
		if _, gone := removed[rec.AttachmentID]; !gone {
			records = append(records, rec)
		}
	}
	st.records = records
	return nil
}

func (r *EmployeeRepository) FindByID(_ context.Context, id string) (*employee.Employee, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	e, ok := r.store.st.employees[id]
	if !ok {
		return nil, employee.ErrEmployeeNotFound
	}
	out := *e
	return &out, nil
}

func (r *EmployeeRepository) FindByCompanyAndDocument(_ context.Context, companyID, document string) (*employee.Employee, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, e := range r.store.st.employees {
		if e.CompanyID == companyID && e.Document == document {
			out := *e
			return &out, nil
		}
	}
	return nil, employee.ErrEmployeeNotFound
}

func (r *EmployeeRepository) List(_ context.Context, filter employee.ListEmployeesFilter) ([]*employee.Employee, string, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var filtered []*employee.Employee
	for _, id := range r.store.st.employeeOrder {
		e := r.store.st.employees[id]
		if filter.CompanyID != "" && e.CompanyID != filter.CompanyID {
			continue
		}
		if filter.ContractID != "" && e.ContractID != filter.ContractID {
			continue
		}
		clone := *e
		filtered = append(filtered, &clone)
	}

	if filter.Offset >= len(filtered) {
		return []*employee.Employee{}, "", nil
	}
	end := len(filtered)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}

	next := ""
	if end < len(filtered) {
		next = strconv.Itoa(end)
	}
	return filtered[filter.Offset:end], next, nil
}

func (r *EmployeeRepository) ListByContract(_ context.Context, contractID string) ([]*employee.Employee, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*employee.Employee, 0)
	for _, id := range r.store.st.employeeOrder {
		if e := r.store.st.employees[id]; e.ContractID == contractID {
			clone := *e
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *EmployeeRepository) Count(context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return len(r.store.st.employees), nil
}

func removeID(ids []string, id string) []string {
	for i, existing := range ids {
		if existing == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
