package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/plate-binning/internal/plate"
)

// wellAmount is concentration × factor in ng. Wells without a usable
// concentration fail rather than count as zero.
func wellAmount(w plate.Well, factor decimal.Decimal) (decimal.Decimal, error) {
	conc, err := concentration(w)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return conc.Mul(factor), nil
}

func concentration(w plate.Well) (decimal.Decimal, error) {
	if w.Concentration == nil {
		return decimal.Decimal{}, ErrMissingConcentration
	}
	if w.Concentration.IsNegative() {
		return decimal.Decimal{}, ErrInvalidConcentration
	}
	return *w.Concentration, nil
}
