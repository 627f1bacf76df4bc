package handler

import (
	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"github.com/ogurasousui/onboarding-compliance/internal/core/contract"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
)

func contractObject(c *contract.Contract) any {
	if c == nil {
		return nil
	}
	return object{
		"id":           c.ID,
		"name":         c.Name,
		"company_id":   c.CompanyID,
		"company_name": c.CompanyName,
		"starts_at":    formatDate(&c.StartsAt),
		"ends_at":      formatDate(&c.EndsAt),
		"status":       string(c.Status),
		"created_at":   formatTime(c.CreatedAt),
	}
}

func statusChangeObject(ch *contract.StatusChange) any {
	return object{
		"id":          ch.ID,
		"contract_id": ch.ContractID,
		"status":      string(ch.Status),
		"kind":        string(ch.Kind),
		"recorded_at": formatTime(ch.RecordedAt),
	}
}

func employeeObject(e *employee.Employee) any {
	if e == nil {
		return nil
	}
	return object{
		"id":          e.ID,
		"name":        e.Name,
		"document":    e.Document,
		"company_id":  e.CompanyID,
		"contract_id": e.ContractID,
		"created_at":  formatTime(e.CreatedAt),
		"updated_at":  formatTime(e.UpdatedAt),
	}
}

func entryObject(e *ledger.StatusEntry) any {
	if e == nil {
		return nil
	}
	return object{
		"id":                        e.ID,
		"previous_id":               e.PreviousID,
		"employee_id":               e.EmployeeID,
		"employee_name":             e.EmployeeName,
		"contractual_status":        string(e.ContractualStatus),
		"integration_status":        string(e.IntegrationStatus),
		"role":                      refObject(e.Assignment.Role),
		"position":                  refObject(e.Assignment.Position),
		"sector":                    refObject(e.Assignment.Sector),
		"integration_unit":          refObject(e.Assignment.IntegrationUnit),
		"activity_unit":             refObject(e.Assignment.ActivityUnit),
		"company_id":                e.CompanyID,
		"company_name":              e.CompanyName,
		"contract_id":               e.ContractID,
		"contract_name":             e.ContractName,
		"integration_date":          formatDate(e.IntegrationDate),
		"exam_date":                 formatDate(e.ExamDate),
		"exam_validity_days":        optInt(e.ExamValidityDays),
		"integration_validity_days": optInt(e.IntegrationValidityDays),
		"exam_expiry_date":          formatDate(e.ExamExpiryDate),
		"integration_expiry_date":   formatDate(e.IntegrationExpiryDate),
		"scheduling_justification":  e.SchedulingJustification,
		"kind":                      string(e.Kind),
		"recorded_at":               formatTime(e.RecordedAt),
	}
}

func entryList(entries []*ledger.StatusEntry) []any {
	return list(entries, func(e *ledger.StatusEntry) any { return entryObject(e) })
}

func complianceObject(r compliance.Result) any {
	return object{
		"is_ready":        r.IsReady,
		"pending":         stringList(r.Pending),
		"rejected":        stringList(r.Rejected),
		"total_required":  r.TotalRequired,
		"total_submitted": r.TotalSubmitted,
	}
}

func requiredDocumentObject(d *compliance.RequiredDocument) any {
	var contractID any
	if d.ContractID != nil {
		contractID = *d.ContractID
	}
	return object{
		"id":          d.ID,
		"name":        d.Name,
		"contract_id": contractID,
	}
}

func attachmentObject(a *compliance.Attachment) any {
	if a == nil {
		return nil
	}
	return object{
		"id":            a.ID,
		"employee_id":   a.EmployeeID,
		"document_type": a.DocumentType,
		"filename":      a.Filename,
		"status":        string(a.Status),
		"observation":   a.Observation,
		"hash":          a.Hash,
		"link":          a.Link,
		"size":          a.Size,
		"uploaded_at":   formatTime(a.UploadedAt),
	}
}

func approvalRecordObject(r *compliance.ApprovalRecord) any {
	return object{
		"id":            r.ID.String(),
		"attachment_id": r.AttachmentID,
		"profile_id":    r.ProfileID,
		"profile_name":  r.ProfileName,
		"observation":   r.Observation,
		"status":        string(r.Status),
		"recorded_at":   formatTime(r.RecordedAt),
	}
}
