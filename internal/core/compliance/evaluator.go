package compliance

// Evaluate は必須書類と提出書類から充足状況を判定します。副作用はなく、結果は保存しません。
//
// required は共通定義と契約固有定義の和集合を渡します。同名の定義は一度だけ評価され、
// Pending と Rejected は required の並び順に従います。
func Evaluate(required []*RequiredDocument, attachments []*Attachment) Result {
	statusByType := make(map[string]AttachmentStatus, len(attachments))
	for _, a := range attachments {
		if a == nil {
			continue
		}
		statusByType[a.DocumentType] = a.Status
	}

	result := Result{
		Pending:        []string{},
		Rejected:       []string{},
		TotalSubmitted: len(statusByType),
	}

	seen := make(map[string]struct{}, len(required))
	for _, doc := range required {
		if doc == nil {
			continue
		}
		if _, dup := seen[doc.Name]; dup {
			continue
		}
		seen[doc.Name] = struct{}{}

		status, ok := statusByType[doc.Name]
		switch {
		case !ok, status == AttachmentAwaiting:
			result.Pending = append(result.Pending, doc.Name)
		case status == AttachmentRejected:
			result.Rejected = append(result.Rejected, doc.Name)
		}
	}

	result.TotalRequired = len(seen)
	result.IsReady = len(result.Pending) == 0 && len(result.Rejected) == 0
	return result
}
