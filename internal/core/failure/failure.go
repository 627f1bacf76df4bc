package failure

import "errors"

// Kind はエラーの分類です。呼び出し元はこの分類でユーザー向けメッセージや gRPC コードを決定します。
type Kind string

const (
	KindUnknown          Kind = "UNKNOWN"
	KindValidation       Kind = "VALIDATION"
	KindPolicyViolation  Kind = "POLICY_VIOLATION"
	KindStateConflict    Kind = "STATE_CONFLICT"
	KindNotFound         Kind = "NOT_FOUND"
	KindPermissionDenied Kind = "PERMISSION_DENIED"
)

var (
	// ErrValidation は入力不正を表します。
	ErrValidation = errors.New(string(KindValidation))
	// ErrPolicyViolation は業務ポリシー違反を表します。
	ErrPolicyViolation = errors.New(string(KindPolicyViolation))
	// ErrStateConflict は現在の状態では実行できない操作を表します。
	ErrStateConflict = errors.New(string(KindStateConflict))
	// ErrNotFound は対象が存在しないことを表します。
	ErrNotFound = errors.New(string(KindNotFound))
	// ErrPermissionDenied は権限不足を表します。
	ErrPermissionDenied = errors.New(string(KindPermissionDenied))
)

// Validation は sentinel を VALIDATION 分類で包みます。
func Validation(msg string) error { return wrap(ErrValidation, msg) }

// PolicyViolation は sentinel を POLICY_VIOLATION 分類で包みます。
func PolicyViolation(msg string) error { return wrap(ErrPolicyViolation, msg) }

// StateConflict は sentinel を STATE_CONFLICT 分類で包みます。
func StateConflict(msg string) error { return wrap(ErrStateConflict, msg) }

// NotFound は sentinel を NOT_FOUND 分類で包みます。
func NotFound(msg string) error { return wrap(ErrNotFound, msg) }

// PermissionDenied は sentinel を PERMISSION_DENIED 分類で包みます。
func PermissionDenied(msg string) error { return wrap(ErrPermissionDenied, msg) }

// KindOf は err の分類を返します。分類を持たない場合は KindUnknown です。
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrPolicyViolation):
		return KindPolicyViolation
	case errors.Is(err, ErrStateConflict):
		return KindStateConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	default:
		return KindUnknown
	}
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Is(target error) bool { return target == e.kind }

func wrap(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}
