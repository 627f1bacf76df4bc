package sweep

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Trigger は読み取り系の入口からスイープを起動します。
// minInterval より短い間隔の呼び出しは何もせずに戻ります。
type Trigger struct {
	sweeper *Sweeper
	limiter *rate.Limiter
}

// NewTrigger は Trigger を生成します。minInterval が 0 以下の場合は毎回実行します。
func NewTrigger(sweeper *Sweeper, minInterval time.Duration) *Trigger {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Trigger{sweeper: sweeper, limiter: rate.NewLimiter(limit, 1)}
}

// Fire はレート制限の範囲内でスイープを実行します。実行した場合は true を返します。
func (t *Trigger) Fire(ctx context.Context) (Report, bool) {
	if t == nil || t.sweeper == nil {
		return Report{}, false
	}
	if !t.limiter.Allow() {
		return Report{}, false
	}
	return t.sweeper.RunSafely(ctx), true
}

// Scheduler は一定間隔でスイープを実行します。
type Scheduler struct {
	sweeper  *Sweeper
	interval time.Duration
}

// NewScheduler は Scheduler を生成します。
func NewScheduler(sweeper *Sweeper, interval time.Duration) *Scheduler {
	return &Scheduler{sweeper: sweeper, interval: interval}
}

// Start は ctx が終了するまでスイープを繰り返します。起動直後に 1 回実行します。
func (s *Scheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.sweeper.logger.WarnContext(ctx, "sweep scheduler disabled", slog.Duration("interval", s.interval))
		return
	}

	s.sweeper.RunSafely(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweeper.RunSafely(ctx)
		}
	}
}
