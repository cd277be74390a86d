package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AdvanceFor computes the amount disbursed to the SMB for an invoice with
// the given face amount and basis-point fee. Amounts are minor units of the
// settlement asset. The advance is rounded down so the realized fee can
// only ever round in the pool's favor.
func AdvanceFor(face uint64, feeBPS uint32) (uint64, error) {
	if face == 0 {
		return 0, fmt.Errorf("face amount must be greater than zero")
	}
	if feeBPS >= MaxFeeBPS {
		return 0, fmt.Errorf("fee of %d bps leaves no advance", feeBPS)
	}

	faceDec := decimal.NewFromInt(int64(face))
	keep := decimal.NewFromInt(int64(MaxFeeBPS - feeBPS)).Div(decimal.NewFromInt(MaxFeeBPS))
	advance := faceDec.Mul(keep).Floor().IntPart()
	if advance <= 0 {
		return 0, fmt.Errorf("face amount %d too small for a %d bps fee", face, feeBPS)
	}
	return uint64(advance), nil
}

// FeeAmount is the spread retained by the pool at funding time.
func FeeAmount(face, advance uint64) uint64 {
	if advance > face {
		return 0
	}
	return face - advance
}
