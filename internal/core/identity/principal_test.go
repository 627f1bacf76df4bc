package identity

import (
	"context"
	"testing"
)

func TestPrincipal_Capabilities(t *testing.T) {
	t.Parallel()

	approver := NewPrincipal("u-1", TypeInternalUser)
	approver.IntegrationApprover = true

	cases := []struct {
		name     string
		p        Principal
		edit     bool
		approver bool
	}{
		{name: "admin", p: NewPrincipal("u-0", TypeInternalUser, PermAdmin), edit: true, approver: true},
		{name: "flagged approver", p: approver, edit: false, approver: true},
		{name: "editor", p: NewPrincipal("u-2", TypeInternalUser, PermEditEmployees), edit: true, approver: false},
		{name: "company", p: Principal{ID: "co-1", Type: TypeExternalCompany, CompanyID: "co-1"}, edit: true, approver: false},
		{name: "company admin perm ignored", p: Principal{ID: "co-1", Type: TypeExternalCompany, CompanyID: "co-1", Permissions: map[Permission]struct{}{PermAdmin: {}}}, edit: true, approver: false},
		{name: "anonymous", p: Principal{}, edit: false, approver: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var caps Capabilities = tc.p
			if caps.CanEditEmployees() != tc.edit {
				t.Errorf("CanEditEmployees = %t, want %t", caps.CanEditEmployees(), tc.edit)
			}
			if caps.IsIntegrationApprover() != tc.approver {
				t.Errorf("IsIntegrationApprover = %t, want %t", caps.IsIntegrationApprover(), tc.approver)
			}
		})
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	t.Parallel()

	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("expected no principal in empty context")
	}

	ctx := ContextWithPrincipal(context.Background(), Principal{ID: "u-1", Type: TypeInternalUser, ProfileName: "Safety"})
	got, ok := PrincipalFromContext(ctx)
	if !ok || got.ID != "u-1" {
		t.Fatalf("expected principal u-1, got %+v ok=%t", got, ok)
	}
	if got.ActorName() != "Safety" {
		t.Fatalf("unexpected actor name %q", got.ActorName())
	}
}
