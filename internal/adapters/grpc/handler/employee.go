package handler

import (
	"context"

	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	"github.com/ogurasousui/onboarding-compliance/internal/core/report"
	"google.golang.org/protobuf/types/known/structpb"
)

// CreateEmployee は社員を作成します。外部会社の主体は自社の社員のみ作成できます。
func (h *IntegrationHandler) CreateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := requireEditor(ctx)
	if err != nil {
		return nil, err
	}
	f := fieldsOf(req)

	companyID := f.str("company_id")
	if p.IsExternal() && companyID == "" {
		companyID = p.CompanyID
	}
	if err := visibleCompany(p, companyID); err != nil {
		return nil, err
	}

	created, err := h.deps.Employees.CreateEmployee(ctx, employee.CreateEmployeeInput{
		Name:       f.str("name"),
		Document:   f.str("document"),
		CompanyID:  companyID,
		ContractID: f.str("contract_id"),
		Assignment: f.assignment(),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{"employee": employeeObject(created)})
}

// UpdateEmployee は社員の氏名または契約を更新します。
func (h *IntegrationHandler) UpdateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	if _, err := h.editableEmployee(ctx, f.str("id")); err != nil {
		return nil, err
	}

	updated, err := h.deps.Employees.UpdateEmployee(ctx, employee.UpdateEmployeeInput{
		ID:         f.str("id"),
		Name:       f.optString("name"),
		ContractID: f.optString("contract_id"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{"employee": employeeObject(updated)})
}

// DeleteEmployee は社員と、その台帳・提出書類を削除します。
func (h *IntegrationHandler) DeleteEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := fieldsOf(req).str("id")
	if _, err := h.editableEmployee(ctx, id); err != nil {
		return nil, err
	}
	if err := h.deps.Employees.DeleteEmployee(ctx, employee.DeleteEmployeeInput{ID: id}); err != nil {
		return nil, toStatusError(err)
	}
	return respond(object{})
}

// GetEmployee は社員を取得します。
func (h *IntegrationHandler) GetEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	found, err := h.visibleEmployee(ctx, fieldsOf(req).str("id"))
	if err != nil {
		return nil, err
	}
	return respond(object{"employee": employeeObject(found)})
}

// ListEmployees は社員と現在状態の一覧を返します。
func (h *IntegrationHandler) ListEmployees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	pageSize, err := f.integer("page_size")
	if err != nil {
		return nil, err
	}

	result, err := h.deps.Reports.ListEmployees(ctx, report.ListEmployeesInput{
		CompanyID:  f.str("company_id"),
		ContractID: f.str("contract_id"),
		PageSize:   pageSize,
		PageToken:  f.str("page_token"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	rows := list(result.Rows, func(r report.EmployeeRow) any {
		return object{"employee": employeeObject(r.Employee), "current": entryObject(r.Current)}
	})
	return respond(object{"employees": rows, "next_page_token": result.NextPageToken})
}

// EmployeeHistory は社員の履歴・現在状態・書類充足状況を返します。
func (h *IntegrationHandler) EmployeeHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := fieldsOf(req)
	pageSize, err := f.integer("page_size")
	if err != nil {
		return nil, err
	}

	view, err := h.deps.Reports.EmployeeHistory(ctx, report.HistoryInput{
		EmployeeID: f.str("employee_id"),
		PageSize:   pageSize,
		PageToken:  f.str("page_token"),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return respond(object{
		"employee":        employeeObject(view.Employee),
		"current":         entryObject(view.Current),
		"entries":         entryList(view.Entries),
		"next_page_token": view.NextPageToken,
		"compliance":      complianceObject(view.Compliance),
	})
}

func (h *IntegrationHandler) editableEmployee(ctx context.Context, id string) (*employee.Employee, error) {
	p, err := requireEditor(ctx)
	if err != nil {
		return nil, err
	}
	found, err := h.deps.Employees.GetEmployee(ctx, employee.GetEmployeeInput{ID: id})
	if err != nil {
		return nil, toStatusError(err)
	}
	if err := visibleCompany(p, found.CompanyID); err != nil {
		return nil, err
	}
	return found, nil
}

func (h *IntegrationHandler) visibleEmployee(ctx context.Context, id string) (*employee.Employee, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return nil, err
	}
	found, err := h.deps.Employees.GetEmployee(ctx, employee.GetEmployeeInput{ID: id})
	if err != nil {
		return nil, toStatusError(err)
	}
	if err := visibleCompany(p, found.CompanyID); err != nil {
		return nil, err
	}
	return found, nil
}
