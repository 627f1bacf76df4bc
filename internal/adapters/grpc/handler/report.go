package handler

import (
	"context"

	"github.com/ogurasousui/onboarding-compliance/internal/core/report"
	"google.golang.org/protobuf/types/known/structpb"
)

// DashboardStats はダッシュボードの集計値を返します。
func (h *IntegrationHandler) DashboardStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := requireInternal(ctx); err != nil {
		return nil, err
	}
	stats, err := h.deps.Reports.DashboardStats(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}

	byStatus := make(object, len(stats.ByStatus))
	for k, n := range stats.ByStatus {
		byStatus[string(k)] = n
	}

	return respond(object{
		"total_employees":    stats.TotalEmployees,
		"awaiting_documents": stats.AwaitingDocuments,
		"expired":            stats.Expired,
		"by_status":          byStatus,
	})
}

// ScheduledIntegrations は期間内に予約されたインテグレーションを会社名・日付順に返します。
// 外部会社は自社分に限定されます。
func (h *IntegrationHandler) ScheduledIntegrations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return nil, err
	}
	f := fieldsOf(req)
	companyID := f.str("company_id")
	if p.IsExternal() {
		if companyID == "" {
			companyID = p.CompanyID
		}
		if err := visibleCompany(p, companyID); err != nil {
			return nil, err
		}
	}

	from, err := f.date("from")
	if err != nil {
		return nil, err
	}
	to, err := f.date("to")
	if err != nil {
		return nil, err
	}

	entries, err := h.deps.Reports.ScheduledIntegrations(ctx, report.ScheduledFilter{
		From:              from,
		To:                to,
		IntegrationUnitID: f.str("integration_unit_id"),
		CompanyID:         companyID,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{"entries": entryList(entries)})
}
