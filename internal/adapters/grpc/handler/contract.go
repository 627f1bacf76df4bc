package handler

import (
	"context"

	"github.com/ogurasousui/onboarding-compliance/internal/core/contract"
	"google.golang.org/protobuf/types/known/structpb"
)

// CreateContract は契約を作成します。管理者のみ実行できます。
func (h *IntegrationHandler) CreateContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	f := fieldsOf(req)

	startsAt, err := f.date("starts_at")
	if err != nil {
		return nil, err
	}
	endsAt, err := f.date("ends_at")
	if err != nil {
		return nil, err
	}

	created, err := h.deps.Contracts.CreateContract(ctx, contract.CreateContractInput{
		Name:        f.str("name"),
		CompanyID:   f.str("company_id"),
		CompanyName: f.str("company_name"),
		StartsAt:    startsAt,
		EndsAt:      endsAt,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{"contract": contractObject(created)})
}

// GetContract は契約と状態履歴を返します。
func (h *IntegrationHandler) GetContract(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return nil, err
	}
	id := fieldsOf(req).str("id")

	found, err := h.deps.Contracts.GetContract(ctx, id)
	if err != nil {
		return nil, toStatusError(err)
	}
	if err := visibleCompany(p, found.CompanyID); err != nil {
		return nil, err
	}

	history, err := h.deps.Contracts.History(ctx, found.ID)
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{
		"contract": contractObject(found),
		"history":  list(history, statusChangeObject),
	})
}
