package common

import (
	"errors"
	"math"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaValueExceeded    = errors.New("quota value cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for an address.
type QuotaNow struct {
	ReqCount uint32
	WeiUsed  uint64
	EpochID  uint64
}

// Quota defines the limits enforced for a module interaction per address.
// Zero-valued limits disable the corresponding check.
type Quota struct {
	MaxRequestsPerMin uint32
	MaxWeiPerEpoch    uint64
	EpochSeconds      uint32
}

// CheckQuota verifies whether the additional request and wei usage fit within
// the configured quota. The returned QuotaNow reflects the updated counters
// when the quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addWei uint64) (QuotaNow, error) {
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
	if q.MaxRequestsPerMin > 0 && next.ReqCount > q.MaxRequestsPerMin {
		return prev, ErrQuotaRequestsExceeded
	}

	if addWei > 0 {
		if next.WeiUsed > math.MaxUint64-addWei {
			return prev, ErrQuotaCounterOverflow
		}
		next.WeiUsed += addWei
	}
	if q.MaxWeiPerEpoch > 0 && next.WeiUsed > q.MaxWeiPerEpoch {
		return prev, ErrQuotaValueExceeded
	}

	return next, nil
}
