package identity

import "context"

// PrincipalType は認証済み主体の種別です。
type PrincipalType string

const (
	TypeInternalUser    PrincipalType = "internal-user"
	TypeExternalCompany PrincipalType = "external-company"
)

// Permission はプロファイルに付与される名前付き権限です。
type Permission string

const (
	PermEditEmployees       Permission = "employees.edit"
	PermApproveIntegrations Permission = "integrations.approve"
	PermAdmin               Permission = "admin"
)

// Capabilities はワークフローが参照する二つの判定だけを公開します。
type Capabilities interface {
	CanEditEmployees() bool
	IsIntegrationApprover() bool
}

// Principal は認証プロバイダから渡された主体です。
// 外部会社の場合 CompanyID は会社自身の ID です。
type Principal struct {
	ID                  string
	Type                PrincipalType
	CompanyID           string
	ProfileID           string
	ProfileName         string
	IntegrationApprover bool
	Permissions         map[Permission]struct{}
}

// NewPrincipal は権限一覧から Principal を生成します。
func NewPrincipal(id string, typ PrincipalType, perms ...Permission) Principal {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return Principal{ID: id, Type: typ, Permissions: set}
}

// HasPermission は主体が権限を持つかを返します。
func (p Principal) HasPermission(perm Permission) bool {
	_, ok := p.Permissions[perm]
	return ok
}

// IsAdmin は管理者かどうかを返します。管理者は内部ユーザーに限られます。
func (p Principal) IsAdmin() bool {
	return p.Type == TypeInternalUser && p.HasPermission(PermAdmin)
}

// IsExternal は外部会社(請負会社)としてログインしているかを返します。
func (p Principal) IsExternal() bool {
	return p.Type == TypeExternalCompany
}

// CanEditEmployees は社員の編集(インテグレーションの予約を含む)が可能かを返します。
// 外部会社は自社の社員を常に編集できます。
func (p Principal) CanEditEmployees() bool {
	switch p.Type {
	case TypeExternalCompany:
		return p.CompanyID != ""
	case TypeInternalUser:
		return p.IsAdmin() || p.HasPermission(PermEditEmployees)
	default:
		return false
	}
}

// IsIntegrationApprover は出席確認・承認・書類審査が可能かを返します。
func (p Principal) IsIntegrationApprover() bool {
	if p.Type != TypeInternalUser {
		return false
	}
	return p.IsAdmin() || p.IntegrationApprover || p.HasPermission(PermApproveIntegrations)
}

// ActorName は監査記録に残すプロファイル名を返します。
func (p Principal) ActorName() string {
	switch {
	case p.Type == TypeExternalCompany:
		return "EXTERNAL_COMPANY"
	case p.ProfileName != "":
		return p.ProfileName
	case p.IsAdmin():
		return "Admin"
	default:
		return "No profile"
	}
}

var _ Capabilities = Principal{}

type principalContextKey struct{}

// ContextWithPrincipal は認証済み主体をコンテキストへ格納します。
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext はコンテキストから認証済み主体を取り出します。
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}
