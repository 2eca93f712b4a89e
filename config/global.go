package config

import (
	nativecommon "moneymarket/native/common"
)

// Limits converts the configured quota into the runtime representation.
func (q Quota) Limits() nativecommon.Quota {
	return nativecommon.Quota{
		MaxRequestsPerEpoch: q.MaxRequestsPerEpoch,
		MaxValuePerEpoch:    q.MaxValuePerEpoch,
		EpochSeconds:        q.EpochSeconds,
	}
}
