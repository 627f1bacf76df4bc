package handler

import (
	"context"
	"fmt"

	"github.com/ogurasousui/onboarding-compliance/internal/core/compliance"
	"github.com/ogurasousui/onboarding-compliance/internal/core/contract"
	"github.com/ogurasousui/onboarding-compliance/internal/core/employee"
	"github.com/ogurasousui/onboarding-compliance/internal/core/integration"
	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
	"github.com/ogurasousui/onboarding-compliance/internal/core/report"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName は gRPC のサービス名です。
const ServiceName = "onboarding.v1.IntegrationService"

// Workflow はインテグレーションの状態遷移ユースケースです。
type Workflow interface {
	Schedule(ctx context.Context, in integration.ScheduleInput) ([]*ledger.StatusEntry, error)
	ConfirmAttendance(ctx context.Context, in integration.ConfirmInput) (*ledger.StatusEntry, error)
	Approve(ctx context.Context, in integration.ApproveInput) (*ledger.StatusEntry, error)
	UploadAttachment(ctx context.Context, in compliance.UploadInput) (*integration.AttachmentResult, error)
	ReviewAttachment(ctx context.Context, in compliance.ReviewInput) (*integration.AttachmentResult, error)
	JustifyAttachment(ctx context.Context, in compliance.JustifyInput) (*integration.AttachmentResult, error)
}

// Contracts は契約ユースケースです。
type Contracts interface {
	CreateContract(ctx context.Context, in contract.CreateContractInput) (*contract.Contract, error)
	GetContract(ctx context.Context, id string) (*contract.Contract, error)
	History(ctx context.Context, contractID string) ([]*contract.StatusChange, error)
}

// Documents は必須書類と提出書類の参照・保守ユースケースです。
type Documents interface {
	ListRequiredDocuments(ctx context.Context, contractID *string) ([]*compliance.RequiredDocument, error)
	CreateRequiredDocument(ctx context.Context, in compliance.CreateRequiredDocumentInput) (*compliance.RequiredDocument, error)
	DeleteRequiredDocument(ctx context.Context, id string) error
	ListAttachments(ctx context.Context, employeeID string) ([]*compliance.Attachment, error)
	GetAttachment(ctx context.Context, attachmentID string) (*compliance.Attachment, error)
	ListApprovalRecords(ctx context.Context, attachmentID string) ([]*compliance.ApprovalRecord, error)
}

// Reports は読み取り系の集計ユースケースです。
type Reports interface {
	DashboardStats(ctx context.Context) (*report.Stats, error)
	ListEmployees(ctx context.Context, in report.ListEmployeesInput) (*report.ListEmployeesResult, error)
	ScheduledIntegrations(ctx context.Context, filter report.ScheduledFilter) ([]*ledger.StatusEntry, error)
	EmployeeHistory(ctx context.Context, in report.HistoryInput) (*report.HistoryView, error)
}

// Dependencies は IntegrationHandler が利用するユースケースの集合です。
type Dependencies struct {
	Workflow  Workflow
	Employees employee.UseCase
	Contracts Contracts
	Documents Documents
	Reports   Reports
}

// IntegrationServiceServer は ServiceDesc に登録されるサーバーの型です。
type IntegrationServiceServer interface {
	Dispatch(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error)
}

type route func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

type serviceMethod struct {
	name string
	fn   route
}

// IntegrationHandler は IntegrationService の gRPC 実装です。
// メッセージは google.protobuf.Struct で受け渡しします。
type IntegrationHandler struct {
	deps    Dependencies
	methods []serviceMethod
	routes  map[string]route
}

var _ IntegrationServiceServer = (*IntegrationHandler)(nil)

// NewIntegrationHandler は IntegrationHandler を生成します。
// methods の並びが ServiceDesc のメソッド順になります。
func NewIntegrationHandler(deps Dependencies) *IntegrationHandler {
	h := &IntegrationHandler{deps: deps}
	h.methods = []serviceMethod{
		{"CreateContract", h.CreateContract},
		{"GetContract", h.GetContract},
		{"CreateEmployee", h.CreateEmployee},
		{"UpdateEmployee", h.UpdateEmployee},
		{"DeleteEmployee", h.DeleteEmployee},
		{"GetEmployee", h.GetEmployee},
		{"ListEmployees", h.ListEmployees},
		{"EmployeeHistory", h.EmployeeHistory},
		{"ScheduleIntegration", h.ScheduleIntegration},
		{"ConfirmAttendance", h.ConfirmAttendance},
		{"ApproveIntegration", h.ApproveIntegration},
		{"UploadAttachment", h.UploadAttachment},
		{"ReviewAttachment", h.ReviewAttachment},
		{"JustifyAttachment", h.JustifyAttachment},
		{"ListAttachments", h.ListAttachments},
		{"ListApprovalRecords", h.ListApprovalRecords},
		{"ListRequiredDocuments", h.ListRequiredDocuments},
		{"CreateRequiredDocument", h.CreateRequiredDocument},
		{"DeleteRequiredDocument", h.DeleteRequiredDocument},
		{"DashboardStats", h.DashboardStats},
		{"ScheduledIntegrations", h.ScheduledIntegrations},
	}
	h.routes = make(map[string]route, len(h.methods))
	for _, m := range h.methods {
		h.routes[m.name] = m.fn
	}
	return h
}

// Dispatch はメソッド名に対応する処理を呼び出します。
func (h *IntegrationHandler) Dispatch(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	fn, ok := h.routes[method]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", method)
	}
	return fn(ctx, req)
}

// ServiceDesc は h のメソッドを列挙したサービス定義を返します。
func (h *IntegrationHandler) ServiceDesc() *grpc.ServiceDesc {
	methods := make([]grpc.MethodDesc, 0, len(h.methods))
	for _, m := range h.methods {
		methods = append(methods, grpc.MethodDesc{MethodName: m.name, Handler: unaryHandler(m.name)})
	}
	return &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*IntegrationServiceServer)(nil),
		Methods:     methods,
		Streams:     []grpc.StreamDesc{},
		Metadata:    "onboarding/v1/integration.proto",
	}
}

// Register は h を srv に登録します。
func (h *IntegrationHandler) Register(srv grpc.ServiceRegistrar) {
	srv.RegisterService(h.ServiceDesc(), h)
}

// FullMethod は gRPC のフルメソッド名を返します。
func FullMethod(name string) string {
	return fmt.Sprintf("/%s/%s", ServiceName, name)
}

func unaryHandler(name string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		server := srv.(IntegrationServiceServer)
		if interceptor == nil {
			return server.Dispatch(ctx, name, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
		next := func(ctx context.Context, req any) (any, error) {
			return server.Dispatch(ctx, name, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, next)
	}
}
