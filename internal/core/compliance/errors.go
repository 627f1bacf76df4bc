package compliance

import "github.com/ogurasousui/onboarding-compliance/internal/core/failure"

var (
	// ErrAttachmentNotFound は提出書類が存在しない場合に返却されます。
	ErrAttachmentNotFound = failure.NotFound("compliance: attachment not found")
	// ErrRequiredDocumentNotFound は必須書類定義が存在しない場合に返却されます。
	ErrRequiredDocumentNotFound = failure.NotFound("compliance: required document not found")
	// ErrAttachmentExists は社員と書類種別の組が既に存在する場合に返却されます。
	ErrAttachmentExists = failure.StateConflict("compliance: attachment already exists for document type")
	// ErrRequiredDocumentExists は同じ範囲に同名の定義がある場合に返却されます。
	ErrRequiredDocumentExists = failure.StateConflict("compliance: required document already exists")
	// ErrInvalidEmployeeID は社員 ID が不正な場合に返却されます。
	ErrInvalidEmployeeID = failure.Validation("compliance: invalid employee id")
	// ErrInvalidAttachmentID は提出書類 ID が不正な場合に返却されます。
	ErrInvalidAttachmentID = failure.Validation("compliance: invalid attachment id")
	// ErrInvalidDocumentType は書類種別が不正な場合に返却されます。
	ErrInvalidDocumentType = failure.Validation("compliance: invalid document type")
	// ErrInvalidFilename はファイル名が不正な場合に返却されます。
	ErrInvalidFilename = failure.Validation("compliance: invalid filename")
	// ErrInvalidStatus は審査状態が不正な場合に返却されます。
	ErrInvalidStatus = failure.Validation("compliance: invalid attachment status")
	// ErrObservationRequired は正当な理由が未入力の場合に返却されます。
	ErrObservationRequired = failure.Validation("compliance: observation is required")
)
