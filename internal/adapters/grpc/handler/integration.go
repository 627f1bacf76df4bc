package handler

import (
	"context"

	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"github.com/ogurasousui/onboarding-compliance/internal/core/integration"
	"google.golang.org/protobuf/types/known/structpb"
)

// ScheduleIntegration は社員をインテグレーションに予約します。
func (h *IntegrationHandler) ScheduleIntegration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)

	date, err := f.date("integration_date")
	if err != nil {
		return nil, err
	}
	examDate, err := f.optDate("exam_date")
	if err != nil {
		return nil, err
	}
	examDays, err := f.optInt("exam_validity_days")
	if err != nil {
		return nil, err
	}
	integrationDays, err := f.optInt("integration_validity_days")
	if err != nil {
		return nil, err
	}

	entries, err := h.deps.Workflow.Schedule(ctx, integration.ScheduleInput{
		EmployeeIDs:             f.strings("employee_ids"),
		Date:                    date,
		ExamDate:                examDate,
		ExamValidityDays:        examDays,
		IntegrationValidityDays: integrationDays,
		Justification:           f.str("justification"),
		Assignment:              f.assignment(),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{"entries": entryList(entries)})
}

// ConfirmAttendance は出席を確認し有効期限を計算します。
func (h *IntegrationHandler) ConfirmAttendance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)

	examDays, err := f.optInt("exam_validity_days")
	if err != nil {
		return nil, err
	}
	integrationDays, err := f.optInt("integration_validity_days")
	if err != nil {
		return nil, err
	}

	entry, err := h.deps.Workflow.ConfirmAttendance(ctx, integration.ConfirmInput{
		EmployeeID:              f.str("employee_id"),
		ExamValidityDays:        examDays,
		IntegrationValidityDays: integrationDays,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{"entry": entryObject(entry)})
}

// ApproveIntegration はインテグレーションを承認します。
func (h *IntegrationHandler) ApproveIntegration(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	entry, err := h.deps.Workflow.Approve(ctx, integration.ApproveInput{EmployeeID: fieldsOf(req).str("employee_id")})
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{"entry": entryObject(entry)})
}

// UploadAttachment は書類を提出します。content は base64 で受け取ります。
func (h *IntegrationHandler) UploadAttachment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	content, err := f.bytes("content")
	if err != nil {
		return nil, err
	}

	result, err := h.deps.Workflow.UploadAttachment(ctx, compliance.UploadInput{
		EmployeeID:   f.str("employee_id"),
		DocumentType: f.str("document_type"),
		Filename:     f.str("filename"),
		Content:      content,
		Link:         f.str("link"),
		Observation:  f.str("observation"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return attachmentResponse(result)
}

// ReviewAttachment は書類を審査します。
func (h *IntegrationHandler) ReviewAttachment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	result, err := h.deps.Workflow.ReviewAttachment(ctx, compliance.ReviewInput{
		AttachmentID: f.str("attachment_id"),
		Status:       compliance.AttachmentStatus(f.str("status")),
		Observation:  f.str("observation"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return attachmentResponse(result)
}

// JustifyAttachment は書類に正当な理由を登録します。
func (h *IntegrationHandler) JustifyAttachment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	result, err := h.deps.Workflow.JustifyAttachment(ctx, compliance.JustifyInput{
		AttachmentID: f.str("attachment_id"),
		Observation:  f.str("observation"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return attachmentResponse(result)
}

func attachmentResponse(result *integration.AttachmentResult) (*structpb.Struct, error) {
	return respond(object{
		"attachment": attachmentObject(result.Attachment),
		"promotion":  entryObject(result.Promotion),
	})
}
