package handler

import (
	"context"

	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"google.golang.org/protobuf/types/known/structpb"
)

// ListAttachments は社員の提出書類を返します。
func (h *IntegrationHandler) ListAttachments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	emp, err := h.visibleEmployee(ctx, fieldsOf(req).str("employee_id"))
	if err != nil {
		return nil, err
	}
	found, err := h.deps.Documents.ListAttachments(ctx, emp.ID)
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{"attachments": list(found, attachmentObject)})
}

// ListApprovalRecords は提出書類の監査記録を新しい順に返します。
func (h *IntegrationHandler) ListApprovalRecords(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	attachment, err := h.deps.Documents.GetAttachment(ctx, fieldsOf(req).str("attachment_id"))
	if err != nil {
		return nil, toStatusError(err)
	}
	if _, err := h.visibleEmployee(ctx, attachment.EmployeeID); err != nil {
		return nil, err
	}

	records, err := h.deps.Documents.ListApprovalRecords(ctx, attachment.ID)
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{"records": list(records, approvalRecordObject)})
}

// ListRequiredDocuments は必須書類定義を返します。contract_id 省略時は共通定義です。
func (h *IntegrationHandler) ListRequiredDocuments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if _, err := principalOf(ctx); err != nil {
		return nil, err
	}
	docs, err := h.deps.Documents.ListRequiredDocuments(ctx, fieldsOf(req).optString("contract_id"))
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{"required_documents": list(docs, requiredDocumentObject)})
}

// CreateRequiredDocument は必須書類定義を追加します。管理者のみ実行できます。
func (h *IntegrationHandler) CreateRequiredDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	f := fieldsOf(req)
	created, err := h.deps.Documents.CreateRequiredDocument(ctx, compliance.CreateRequiredDocumentInput{
		Name:       f.str("name"),
		ContractID: f.optString("contract_id"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{"required_document": requiredDocumentObject(created)})
}

// DeleteRequiredDocument は必須書類定義を削除します。管理者のみ実行できます。
func (h *IntegrationHandler) DeleteRequiredDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := h.deps.Documents.DeleteRequiredDocument(ctx, fieldsOf(req).str("id")); err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{})
}
