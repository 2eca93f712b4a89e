package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaValueCapExceeded = errors.New("quota value cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures an account's usage counters for the current epoch.
type QuotaNow struct {
	ReqCount  uint32
	ValueUsed uint64
	EpochID   uint64
}

// Quota bounds the actions an account may submit per epoch and the oracle
// value those actions may move. Zero disables a limit.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxValuePerEpoch    uint64
	EpochSeconds        uint32
}

// Epoch maps a unix timestamp onto the quota epoch.
func (q Quota) Epoch(unixSeconds int64) uint64 {
	if unixSeconds <= 0 {
		return 0
	}
	if q.EpochSeconds == 0 {
		return uint64(unixSeconds)
	}
	return uint64(unixSeconds) / uint64(q.EpochSeconds)
}

// Enabled reports whether any limit is configured.
func (q Quota) Enabled() bool {
	return q.MaxRequestsPerEpoch > 0 || q.MaxValuePerEpoch > 0
}

// CheckQuota verifies whether the additional request and value fit within the
// configured quota. The returned QuotaNow reflects the updated counters when
// the quota is not exceeded; on denial prev is returned unchanged.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addValue uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	if addValue > 0 {
		if next.ValueUsed > math.MaxUint64-addValue {
			return prev, ErrQuotaCounterOverflow
		}
		next.ValueUsed += addValue
	}
	if q.MaxValuePerEpoch > 0 && next.ValueUsed > q.MaxValuePerEpoch {
		return prev, ErrQuotaValueCapExceeded
	}

	return next, nil
}
