package coreengine

import (
	"github.com/midastrader/midas/portfolio"
	"github.com/midastrader/midas/strategy"
)

// RiskModel is the optional synchronous check a Host runs on a Signal's
// instructions before sizing orders, generalizing the retrieved
// RiskManager.CheckOrder (single-order accept/reject) to a batch
// accept/modify/reject pass over every instruction a signal carries.
type RiskModel interface {
	// Evaluate inspects instructions against the current account snapshot
	// and returns the instructions that should still become orders. It
	// may pass instructions through unchanged, drop some, or resize them;
	// returning an empty slice rejects the signal outright.
	Evaluate(instructions []strategy.Instruction, snapshot portfolio.Account) []strategy.Instruction
}

// MaxPositionRisk caps at MaxWeight any instruction whose weight would
// commit more than MaxWeight of account equity to a single instrument; the
// instruction is kept with the reduced weight, not rejected. Adapted from
// the retrieved RiskManager's per-symbol exposure cap.
type MaxPositionRisk struct {
	MaxWeight float64
}

func (r MaxPositionRisk) Evaluate(instructions []strategy.Instruction, _ portfolio.Account) []strategy.Instruction {
	if r.MaxWeight <= 0 {
		return instructions
	}
	out := make([]strategy.Instruction, 0, len(instructions))
	for _, ins := range instructions {
		if ins.Weight != 0 && ins.Weight > r.MaxWeight {
			ins.Weight = r.MaxWeight
		}
		out = append(out, ins)
	}
	return out
}
