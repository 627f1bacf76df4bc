package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New は時刻順に並ぶ ULID を返します。同一ミリ秒内でも単調増加します。
func New() ulid.ULID {
	return NewAt(time.Now())
}

// NewAt は t をタイムスタンプ部に持つ ULID を返します。
func NewAt(t time.Time) ulid.ULID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy)
}
