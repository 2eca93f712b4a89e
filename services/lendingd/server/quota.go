package server

import (
	"strings"
	"sync"
	"time"

	nativecommon "moneymarket/native/common"
)

// quotaTracker keeps per-account usage counters for the current epoch.
type quotaTracker struct {
	limits   nativecommon.Quota
	mu       sync.Mutex
	usage    map[string]nativecommon.QuotaNow
	clockNow func() time.Time
}

func newQuotaTracker(limits nativecommon.Quota) *quotaTracker {
	return &quotaTracker{
		limits:   limits,
		usage:    make(map[string]nativecommon.QuotaNow),
		clockNow: time.Now,
	}
}

// charge records one request moving value for account, or returns the quota
// error that denied it.
func (q *quotaTracker) charge(account string, value uint64) error {
	if q == nil || !q.limits.Enabled() {
		return nil
	}
	key := strings.ToLower(strings.TrimSpace(account))
	epoch := q.limits.Epoch(q.clockNow().Unix())

	q.mu.Lock()
	defer q.mu.Unlock()
	next, err := nativecommon.CheckQuota(q.limits, epoch, q.usage[key], 1, value)
	if err != nil {
		return err
	}
	q.usage[key] = next
	for other, counters := range q.usage {
		if counters.EpochID != epoch {
			delete(q.usage, other)
		}
	}
	return nil
}
