package config

import (
	nativecommon "moneymarket/native/common"
)

const lendingModule = "lending"

// Pauses lets the operator switch off the whole lending module or single
// user-facing actions independently of the comptroller's pause flags.
type Pauses struct {
	Lending   bool
	Mint      bool
	Redeem    bool
	Borrow    bool
	Repay     bool
	Liquidate bool
	Transfer  bool
	Flashloan bool
}

// View converts the switches into the pause keys checked by the engine.
func (p Pauses) View() nativecommon.StaticPauses {
	view := nativecommon.StaticPauses{}
	if p.Lending {
		view[lendingModule] = true
	}
	actions := map[string]bool{
		"mint":              p.Mint,
		"redeem":            p.Redeem,
		"redeem_underlying": p.Redeem,
		"borrow":            p.Borrow,
		"repay_borrow":      p.Repay,
		"liquidate_borrow":  p.Liquidate,
		"transfer":          p.Transfer,
		"flashloan":         p.Flashloan,
	}
	for action, paused := range actions {
		if paused {
			view[nativecommon.ActionKey(lendingModule, action)] = true
		}
	}
	return view
}

// Quota defines the per-account action limits enforced by the daemon.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxValuePerEpoch    uint64 // whole units of oracle value
	EpochSeconds        uint32
}
