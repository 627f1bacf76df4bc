package memory

import (
	"context"
	"sync"

	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"github.com/ogurasousui/onboarding-compliance/internal/core/contract"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
)

// Store はすべてのリポジトリをプロセス内で実装します。
// WithinReadWrite は書き込みを直列化し、fn がエラーを返した場合はスナップショットへ戻します。
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	st   *state
}

type state struct {
	statusSeq       int64
	entries         []*ledger.StatusEntry
	contracts       map[string]*contract.Contract
	contractOrder   []string
	changeSeq       int64
	contractChanges []*contract.StatusChange
	employees       map[string]*employee.Employee
	employeeOrder   []string
	required        []*compliance.RequiredDocument
	attachments     map[string]*compliance.Attachment
	attachmentOrder []string
	records         []*compliance.ApprovalRecord
}

// NewStore は空の Store を生成します。
func NewStore() *Store {
	return &Store{st: &state{
		contracts:   make(map[string]*contract.Contract),
		employees:   make(map[string]*employee.Employee),
		attachments: make(map[string]*compliance.Attachment),
	}}
}

func (s *state) clone() *state {
	out := &state{
		statusSeq:       s.statusSeq,
		entries:         make([]*ledger.StatusEntry, len(s.entries)),
		contracts:       make(map[string]*contract.Contract, len(s.contracts)),
		contractOrder:   append([]string(nil), s.contractOrder...),
		changeSeq:       s.changeSeq,
		contractChanges: make([]*contract.StatusChange, len(s.contractChanges)),
		employees:       make(map[string]*employee.Employee, len(s.employees)),
		employeeOrder:   append([]string(nil), s.employeeOrder...),
		required:        make([]*compliance.RequiredDocument, len(s.required)),
		attachments:     make(map[string]*compliance.Attachment, len(s.attachments)),
		attachmentOrder: append([]string(nil), s.attachmentOrder...),
		records:         make([]*compliance.ApprovalRecord, len(s.records)),
	}
	for i, e := range s.entries {
		out.entries[i] = e.Clone()
	}
	for k, c := range s.contracts {
		clone := *c
		out.contracts[k] = &clone
	}
	for i, ch := range s.contractChanges {
		clone := *ch
		out.contractChanges[i] = &clone
	}
	for k, e := range s.employees {
		clone := *e
		out.employees[k] = &clone
	}
	for i, d := range s.required {
		out.required[i] = cloneRequired(d)
	}
	for k, a := range s.attachments {
		clone := *a
		out.attachments[k] = &clone
	}
	for i, r := range s.records {
		clone := *r
		out.records[i] = &clone
	}
	return out
}

type txContextKey struct{}

// WithinReadOnly は fn をそのまま実行します。
func (s *Store) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// WithinReadWrite は fn を直列に実行し、失敗時に書き込みを取り消します。入れ子の呼び出しは外側に合流します。
func (s *Store) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	if ctx.Value(txContextKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txContextKey{}, struct{}{})); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Ledger はステータス台帳リポジトリを返します。
func (s *Store) Ledger() *LedgerRepository { return &LedgerRepository{store: s} }

// Contracts は契約リポジトリを返します。
func (s *Store) Contracts() *ContractRepository { return &ContractRepository{store: s} }

// Employees は社員リポジトリを返します。
func (s *Store) Employees() *EmployeeRepository { return &EmployeeRepository{store: s} }

// RequiredDocuments は必須書類リポジトリを返します。
func (s *Store) RequiredDocuments() *RequiredDocumentRepository {
	return &RequiredDocumentRepository{store: s}
}

// Attachments は提出書類リポジトリを返します。
func (s *Store) Attachments() *AttachmentRepository { return &AttachmentRepository{store: s} }

// ApprovalRecords は監査記録リポジトリを返します。
func (s *Store) ApprovalRecords() *ApprovalRecordRepository {
	return &ApprovalRecordRepository{store: s}
}

func cloneRequired(d *compliance.RequiredDocument) *compliance.RequiredDocument {
	clone := *d
	if d.ContractID != nil {
		id := *d.ContractID
		clone.ContractID = &id
	}
	return &clone
}
