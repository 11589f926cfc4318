// ABOUTME: Basic plan daily question quota
// ABOUTME: Premium sessions are unlimited; counter failures never block a question

package dispatch

import (
	"context"
	"fmt"

	"github.com/2389/mediflow/internal/session"
	"github.com/2389/mediflow/internal/store"
)

// DefaultDailyLimit is the basic plan's questions per day.
const DefaultDailyLimit = 5

func quotaNotice(limit int) session.Notice {
	detail := fmt.Sprintf("The basic plan is limited to %d questions per day. "+
		"Upgrade to premium for unlimited questions.", limit)
	return session.Notice{
		Kind:   session.NoticeQuotaExceeded,
		Title:  "Daily limit reached",
		Detail: detail,
	}
}

func (d *Dispatcher) quotaEnabled() bool {
	return d.usage != nil && d.dailyLimit > 0 && !d.session.Premium()
}

// checkQuota rejects the question when the basic plan has used its daily allowance.
func (d *Dispatcher) checkQuota(ctx context.Context, day string) error {
	if !d.quotaEnabled() {
		return nil
	}
	used, err := d.usage.GetUsage(ctx, day)
	if err != nil {
		d.logger.Warn("failed to read usage, allowing question", "day", day, "error", err)
		return nil
	}
	if used >= d.dailyLimit {
		d.session.Notify(quotaNotice(d.dailyLimit))
		d.logger.Info("daily limit reached", "day", day, "used", used, "limit", d.dailyLimit)
		return ErrQuotaExceeded
	}
	return nil
}

func (d *Dispatcher) countQuestion(ctx context.Context, day string) {
	if !d.quotaEnabled() {
		return
	}
	if _, err := d.usage.IncrementUsage(ctx, day); err != nil {
		d.logger.Warn("failed to count question", "day", day, "error", err)
	}
}

// Remaining returns how many questions the basic plan has left today, or -1
// when the session is unlimited.
func (d *Dispatcher) Remaining(ctx context.Context) (int, error) {
	if !d.quotaEnabled() {
		return -1, nil
	}
	used, err := d.usage.GetUsage(ctx, store.DayKey(d.now()))
	if err != nil {
		return 0, fmt.Errorf("reading usage: %w", err)
	}
	return max(d.dailyLimit-used, 0), nil
}
