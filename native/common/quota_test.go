package common

import (
	"errors"
	"math"
	"math/big"
	"testing"
)

func TestCheckQuotaRequestLimit(t *testing.T) {
	q := Quota{MaxRequestsPerEpoch: 10, EpochBlocks: 100}
	prev := QuotaNow{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ReqCount != 10 {
		t.Fatalf("unexpected request count: %d", next.ReqCount)
	}

	denied, err := CheckQuota(q, 1, next, 1, nil)
	if !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
	if denied.ReqCount != next.ReqCount || denied.EpochID != next.EpochID {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1, nil)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.ReqCount != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaPrincipal(t *testing.T) {
	q := Quota{MaxPrincipalPerEpoch: big.NewInt(1000), EpochBlocks: 10}
	prev := QuotaNow{EpochID: 5, Principal: big.NewInt(400)}

	next, err := CheckQuota(q, 5, prev, 1, big.NewInt(600))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Principal.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("unexpected principal usage: %s", next.Principal)
	}
	if prev.Principal.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("previous counters mutated: %s", prev.Principal)
	}

	if _, err := CheckQuota(q, 5, next, 1, big.NewInt(1)); !errors.Is(err, ErrQuotaPrincipalExceeded) {
		t.Fatalf("expected ErrQuotaPrincipalExceeded, got %v", err)
	}
}

func TestCheckQuotaOverflow(t *testing.T) {
	prev := QuotaNow{ReqCount: math.MaxUint32, EpochID: 3}
	if _, err := CheckQuota(Quota{EpochBlocks: 1}, 3, prev, 1, nil); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected ErrQuotaCounterOverflow, got %v", err)
	}
}

func TestQuotaEpochAt(t *testing.T) {
	q := Quota{MaxRequestsPerEpoch: 1, EpochBlocks: 100}
	if !q.Enabled() {
		t.Fatalf("expected quota enabled")
	}
	if got := q.EpochAt(250); got != 2 {
		t.Fatalf("expected epoch 2, got %d", got)
	}
	if (Quota{}).Enabled() {
		t.Fatalf("zero quota must be disabled")
	}
}

func TestGuardAndPauseSet(t *testing.T) {
	pauses := NewPauseSet("Bond")
	if err := Guard(pauses, "bond"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	pauses.Set("bond", false)
	if err := Guard(pauses, "bond"); err != nil {
		t.Fatalf("unexpected error after resume: %v", err)
	}
	if err := Guard(nil, "bond"); err != nil {
		t.Fatalf("nil pause view must not block: %v", err)
	}
}
