// Package mmpolicy implements the market-making policy decision and the
// grid builder that turns a policy decision into a desired limit-order
// ladder.
package mmpolicy

import (
	"github.com/atlas-desktop/trading-backend/internal/domain"
	"github.com/atlas-desktop/trading-backend/internal/structure"
)

// Mode is the MM policy's output mode.
type Mode int

const (
	Disabled Mode = iota
	Normal
	Defensive
)

// Reason explains why a decision was reached.
type Reason int

const (
	ReasonNoConfirmedBos Reason = iota
	ReasonNoPullback
	ReasonInventoryOutsideSoftBand
	ReasonInventoryOutsideHardBand
	ReasonLtfStructureBroken
	ReasonOk
)

// Params are the inventory bands governing the policy. Invariant:
// 0 <= HardMin <= SoftMin <= SoftMax <= HardMax <= 1.
type Params struct {
	SoftMin domain.Ratio
	SoftMax domain.Ratio
	HardMin domain.Ratio
	HardMax domain.Ratio
}

// Decision is the policy's output.
type Decision struct {
	Mode   Mode
	Reason Reason
}

func (m Mode) String() string {
	switch m {
	case Normal:
		return "Normal"
	case Defensive:
		return "Defensive"
	default:
		return "Disabled"
	}
}

// Decide evaluates the MM policy decision tree in order: confirmed BOS,
// then pullback trigger, then hard band, then soft band.
func Decide(bosState structure.BosState, pullbackTriggered bool, baseRatio domain.Ratio, params Params) Decision {
	if bosState != structure.BosConfirmed {
		return Decision{Mode: Disabled, Reason: ReasonNoConfirmedBos}
	}
	if !pullbackTriggered {
		return Decision{Mode: Disabled, Reason: ReasonNoPullback}
	}

	r := baseRatio
	if r < params.HardMin || r > params.HardMax {
		return Decision{Mode: Disabled, Reason: ReasonInventoryOutsideHardBand}
	}
	if r < params.SoftMin || r > params.SoftMax {
		return Decision{Mode: Defensive, Reason: ReasonInventoryOutsideSoftBand}
	}
	return Decision{Mode: Normal, Reason: ReasonOk}
}
