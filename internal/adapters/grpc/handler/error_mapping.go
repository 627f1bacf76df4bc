package handler

import (
	"context"
	"errors"

	"github.com/ogurasousui/onboarding-compliance/internal/core/failure"
	"github.com/ogurasousui/onboarding-compliance/internal/core/identity"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func toStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch failure.KindOf(err) {
	case failure.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case failure.KindPolicyViolation:
		return status.Error(codes.FailedPrecondition, err.Error())
	case failure.KindStateConflict:
		return status.Error(codes.Aborted, err.Error())
	case failure.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case failure.KindPermissionDenied:
		return status.Error(codes.PermissionDenied, err.Error())
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

var (
	errUnauthenticated = status.Error(codes.Unauthenticated, "authentication required")
	errAdminOnly       = status.Error(codes.PermissionDenied, "administrator permission required")
	errCannotEdit      = status.Error(codes.PermissionDenied, "principal may not edit employees")
	errForeignEmployee = status.Error(codes.PermissionDenied, "employee belongs to another company")
	errInternalOnly    = status.Error(codes.PermissionDenied, "not available to external companies")
)

func principalOf(ctx context.Context) (identity.Principal, error) {
	p, ok := identity.PrincipalFromContext(ctx)
	if !ok {
		return identity.Principal{}, errUnauthenticated
	}
	return p, nil
}

func requireAdmin(ctx context.Context) error {
	p, err := principalOf(ctx)
	if err != nil {
		return err
	}
	if !p.IsAdmin() {
		return errAdminOnly
	}
	return nil
}

// requireInternal は会社横断の集計を社内ユーザーに限定します。
func requireInternal(ctx context.Context) error {
	p, err := principalOf(ctx)
	if err != nil {
		return err
	}
	if p.IsExternal() {
		return errInternalOnly
	}
	return nil
}

func requireEditor(ctx context.Context) (identity.Principal, error) {
	p, err := principalOf(ctx)
	if err != nil {
		return identity.Principal{}, err
	}
	if !p.CanEditEmployees() {
		return identity.Principal{}, errCannotEdit
	}
	return p, nil
}

// visibleCompany は外部会社の主体が他社のデータへアクセスしていないかを検査します。
func visibleCompany(p identity.Principal, companyID string) error {
	if p.IsExternal() && p.CompanyID != companyID {
		return errForeignEmployee
	}
	return nil
}
