package ledger

import "time"

// TransitionObserver は確定した台帳追記の通知を受け取ります。
type TransitionObserver interface {
	ObserveTransition(kind Kind, status IntegrationStatus)
}

// NopObserver は通知を破棄します。
type NopObserver struct{}

// ObserveTransition は何もしません。
func (NopObserver) ObserveTransition(Kind, IntegrationStatus) {}

// DateOnly は t を UTC の日付(0 時 0 分)に切り捨てます。
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
