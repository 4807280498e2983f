package calculator

import "github.com/shopspring/decimal"

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)
)

// Normalisation is the solved volume split for one well. Only SourceVolume
// and DiluentVolume are rounded; the amount and concentration stay exact so
// that classification is never shifted by rounding.
type Normalisation struct {
	SourceVolume      decimal.Decimal
	DiluentVolume     decimal.Decimal
	AmountInTarget    decimal.Decimal
	DestConcentration decimal.Decimal
}

// SolveVolume works out how much of a well at concentration conc must be
// moved to deliver the target amount into the target volume.
//
// The raw volume is clamped to [minimum_source_volume, target_volume].
// A volume that falls within 1µl below the target volume is rounded down to
// the nearest 0.5µl, keeping the diluent at a volume the liquid handler can
// dispense, but never below minimum_source_volume. A zero concentration takes
// the whole target volume.
func SolveVolume(conc decimal.Decimal, cfg Configuration) (Normalisation, error) {
	if conc.IsNegative() {
		return Normalisation{}, ErrInvalidConcentration
	}

	target := cfg.TargetVolume
	candidate := target
	if conc.IsPositive() {
		candidate = decimal.Max(cfg.TargetAmount.Div(conc), cfg.MinimumSourceVolume)
	}

	if !candidate.LessThan(target.Sub(one)) && candidate.LessThan(target) {
		candidate = decimal.Max(roundHalfDown(candidate), cfg.MinimumSourceVolume)
	}

	source := decimal.Min(candidate, target).Round(places)
	amount := source.Mul(conc)

	return Normalisation{
		SourceVolume:      source,
		DiluentVolume:     target.Sub(source),
		AmountInTarget:    amount,
		DestConcentration: amount.Div(target),
	}, nil
}

// roundHalfDown floors value to a multiple of 0.5.
func roundHalfDown(value decimal.Decimal) decimal.Decimal {
	return value.Mul(two).Floor().Div(two)
}
