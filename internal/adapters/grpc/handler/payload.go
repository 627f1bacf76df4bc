package handler

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ogurasousui/onboarding-compliance/internal/core/ledger"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const dateLayout = "2006-01-02"

// fields はリクエストの Struct からキー単位で値を取り出します。
type fields map[string]*structpb.Value

func fieldsOf(req *structpb.Struct) fields {
	if req == nil {
		return fields{}
	}
	return fields(req.GetFields())
}

func (f fields) str(key string) string {
	return strings.TrimSpace(f[key].GetStringValue())
}

func (f fields) has(key string) bool {
	v, ok := f[key]
	if !ok || v == nil {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

func (f fields) optString(key string) *string {
	if !f.has(key) {
		return nil
	}
	v := f.str(key)
	return &v
}

func (f fields) strings(key string) []string {
	list := f[key].GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		out = append(out, strings.TrimSpace(v.GetStringValue()))
	}
	return out
}

func (f fields) integer(key string) (int, error) {
	if !f.has(key) {
		return 0, nil
	}
	n := f[key].GetNumberValue()
	if n != math.Trunc(n) || n > math.MaxInt32 || n < math.MinInt32 {
		return 0, invalidArgument(key, "must be an integer")
	}
	return int(n), nil
}

func (f fields) optInt(key string) (*int, error) {
	if !f.has(key) {
		return nil, nil
	}
	n, err := f.integer(key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (f fields) date(key string) (time.Time, error) {
	raw := f.str(key)
	if raw == "" {
		return time.Time{}, invalidArgument(key, "is required")
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, invalidArgument(key, "invalid format, expected YYYY-MM-DD")
	}
	return t, nil
}

func (f fields) optDate(key string) (*time.Time, error) {
	if f.str(key) == "" {
		return nil, nil
	}
	t, err := f.date(key)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (f fields) bytes(key string) ([]byte, error) {
	raw := f.str(key)
	if raw == "" {
		return nil, nil
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, invalidArgument(key, "must be base64 encoded")
	}
	return b, nil
}

func (f fields) ref(key string) ledger.Ref {
	nested := fields(f[key].GetStructValue().GetFields())
	return ledger.Ref{ID: nested.str("id"), Name: nested.str("name")}
}

func (f fields) assignment() ledger.Assignment {
	return ledger.Assignment{
		Role:            f.ref("role"),
		Position:        f.ref("position"),
		Sector:          f.ref("sector"),
		IntegrationUnit: f.ref("integration_unit"),
		ActivityUnit:    f.ref("activity_unit"),
	}
}

func invalidArgument(key, reason string) error {
	return status.Error(codes.InvalidArgument, fmt.Sprintf("%s: %s", key, reason))
}

// object はレスポンスを組み立てるためのマップです。値は structpb.NewValue が受け付ける型に限ります。
type object = map[string]any

func respond(o object) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(o)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode response: %v", err))
	}
	return s, nil
}

func list[T any](items []T, fn func(T) any) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}

func stringList(items []string) []any {
	return list(items, func(s string) any { return s })
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func optInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func refObject(r ledger.Ref) any {
	if r.IsZero() {
		return nil
	}
	return object{"id": r.ID, "name": r.Name}
}
