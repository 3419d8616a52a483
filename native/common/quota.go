package common

import (
	"errors"
	"math"
	"math/big"
)

var (
	ErrQuotaRequestsExceeded  = errors.New("quota requests exceeded")
	ErrQuotaPrincipalExceeded = errors.New("quota principal cap exceeded")
	ErrQuotaCounterOverflow   = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for an address.
type QuotaNow struct {
	ReqCount  uint32
	Principal *big.Int
	EpochID   uint64
}

// Quota defines the per-address limits enforced within one epoch of blocks.
// Zero values disable the corresponding limit.
type Quota struct {
	MaxRequestsPerEpoch  uint32
	MaxPrincipalPerEpoch *big.Int
	EpochBlocks          uint64
}

// Enabled reports whether any limit is configured.
func (q Quota) Enabled() bool {
	return q.EpochBlocks > 0 && (q.MaxRequestsPerEpoch > 0 || (q.MaxPrincipalPerEpoch != nil && q.MaxPrincipalPerEpoch.Sign() > 0))
}

// EpochAt maps a block height onto its quota epoch.
func (q Quota) EpochAt(height uint64) uint64 {
	if q.EpochBlocks == 0 {
		return 0
	}
	return height / q.EpochBlocks
}

// CheckQuota verifies whether the additional request and principal fit within
// the configured quota. The returned QuotaNow reflects the updated counters when
// the quota is not exceeded; on denial prev is returned unchanged.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addPrincipal *big.Int) (QuotaNow, error) {
	next := QuotaNow{ReqCount: prev.ReqCount, EpochID: prev.EpochID, Principal: new(big.Int)}
	if prev.Principal != nil {
		next.Principal.Set(prev.Principal)
	}
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch, Principal: new(big.Int)}
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

	if addPrincipal != nil && addPrincipal.Sign() > 0 {
		next.Principal.Add(next.Principal, addPrincipal)
	}
	if q.MaxPrincipalPerEpoch != nil && q.MaxPrincipalPerEpoch.Sign() > 0 && next.Principal.Cmp(q.MaxPrincipalPerEpoch) > 0 {
		return prev, ErrQuotaPrincipalExceeded
	}

	return next, nil
}
