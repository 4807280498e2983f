package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/plate-binning/internal/plate"
)

const strategyVersion = "v1.0"

// Strategy supplies the variant-specific steps of a calculation: what is
// measured for each well and how the measurements are grouped.
type Strategy interface {
	Variant() Variant
	// Version is stamped on QC values derived from this strategy's output.
	Version() string
	// Requires lists the configuration fields the strategy cannot run without.
	Requires() []Field
	// Measure computes the transfer values for an occupied source well.
	Measure(cfg Configuration, w plate.Well) (Measurement, error)
	// Classifier groups measurements into bins, or returns nil when wells
	// are transferred to the same coordinate without binning.
	Classifier(cfg Configuration, measurements []Measurement) Classifier
	// DestinationValue is the classification value of a well on an already
	// created destination plate.
	DestinationValue(cfg Configuration, w plate.Well) (decimal.Decimal, error)
}

// StrategyFor returns the strategy implementing variant.
func StrategyFor(variant Variant) (Strategy, error) {
	switch variant {
	case ConcentrationBinning:
		return concentrationBinning{}, nil
	case ConcentrationNormalisation:
		return concentrationNormalisation{}, nil
	case FixedNormalisation:
		return fixedNormalisation{}, nil
	case NormalisedBinning:
		return normalisedBinning{}, nil
	case CycleCountBinning:
		return cycleCountBinning{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
}

// Strategies returns every available strategy.
func Strategies() []Strategy {
	return []Strategy{
		concentrationBinning{},
		concentrationNormalisation{},
		fixedNormalisation{},
		normalisedBinning{},
		cycleCountBinning{},
	}
}

// concentrationBinning bins wells on the amount transferred with a fixed
// source and diluent volume.
type concentrationBinning struct{}

func (concentrationBinning) Variant() Variant { return ConcentrationBinning }
func (concentrationBinning) Version() string  { return strategyVersion }

func (concentrationBinning) Requires() []Field {
	return []Field{FieldSourceVolume, FieldDiluentVolume, FieldBins}
}

func (concentrationBinning) Measure(cfg Configuration, w plate.Well) (Measurement, error) {
	return fixedVolumeMeasurement(cfg, w)
}

func (concentrationBinning) Classifier(cfg Configuration, _ []Measurement) Classifier {
	return NewThresholdClassifier(cfg.Bins)
}

func (concentrationBinning) DestinationValue(cfg Configuration, w plate.Well) (decimal.Decimal, error) {
	return wellAmount(w, cfg.DestMultiplicationFactor())
}

// fixedNormalisation moves a fixed volume of every well, topped up with a
// fixed diluent volume, onto the same coordinate.
type fixedNormalisation struct{}

func (fixedNormalisation) Variant() Variant { return FixedNormalisation }
func (fixedNormalisation) Version() string  { return strategyVersion }

func (fixedNormalisation) Requires() []Field {
	return []Field{FieldSourceVolume, FieldDiluentVolume}
}

func (fixedNormalisation) Measure(cfg Configuration, w plate.Well) (Measurement, error) {
	return fixedVolumeMeasurement(cfg, w)
}

func (fixedNormalisation) Classifier(Configuration, []Measurement) Classifier { return nil }

func (fixedNormalisation) DestinationValue(cfg Configuration, w plate.Well) (decimal.Decimal, error) {
	return wellAmount(w, cfg.DestMultiplicationFactor())
}

// concentrationNormalisation dilutes every well to the target amount in the
// target volume, on the same coordinate.
type concentrationNormalisation struct{}

func (concentrationNormalisation) Variant() Variant { return ConcentrationNormalisation }
func (concentrationNormalisation) Version() string  { return strategyVersion }

func (concentrationNormalisation) Requires() []Field {
	return []Field{FieldTargetAmount, FieldTargetVolume, FieldMinimumSourceVolume}
}

func (concentrationNormalisation) Measure(cfg Configuration, w plate.Well) (Measurement, error) {
	return normalisedMeasurement(cfg, w)
}

func (concentrationNormalisation) Classifier(Configuration, []Measurement) Classifier { return nil }

func (concentrationNormalisation) DestinationValue(cfg Configuration, w plate.Well) (decimal.Decimal, error) {
	return wellAmount(w, cfg.TargetVolume)
}

// normalisedBinning normalises every well and then bins on the amount that
// ends up in the target volume.
type normalisedBinning struct{}

func (normalisedBinning) Variant() Variant { return NormalisedBinning }
func (normalisedBinning) Version() string  { return strategyVersion }

func (normalisedBinning) Requires() []Field {
	return []Field{FieldTargetAmount, FieldTargetVolume, FieldMinimumSourceVolume, FieldBins}
}

func (normalisedBinning) Measure(cfg Configuration, w plate.Well) (Measurement, error) {
	return normalisedMeasurement(cfg, w)
}

func (normalisedBinning) Classifier(cfg Configuration, _ []Measurement) Classifier {
	return NewThresholdClassifier(cfg.Bins)
}

func (normalisedBinning) DestinationValue(cfg Configuration, w plate.Well) (decimal.Decimal, error) {
	return wellAmount(w, cfg.TargetVolume)
}

// cycleCountBinning groups wells by the PCR cycle count assigned in the
// customer file. Configured bins, if any, only supply colours.
type cycleCountBinning struct{}

func (cycleCountBinning) Variant() Variant  { return CycleCountBinning }
func (cycleCountBinning) Version() string   { return strategyVersion }
func (cycleCountBinning) Requires() []Field { return nil }

func (cycleCountBinning) Measure(_ Configuration, w plate.Well) (Measurement, error) {
	if w.CycleCount == nil {
		return Measurement{}, ErrMissingCycleCount
	}
	if w.SampleVolume == nil {
		return Measurement{}, ErrMissingSampleVolume
	}
	return Measurement{
		Well:   w,
		Value:  decimal.NewFromInt(int64(*w.CycleCount)),
		Volume: *w.SampleVolume,
	}, nil
}

func (cycleCountBinning) Classifier(cfg Configuration, measurements []Measurement) Classifier {
	counts := make([]int, len(measurements))
	for i, m := range measurements {
		counts[i] = int(m.Value.IntPart())
	}
	return NewDiscreteClassifier(counts, cfg.Bins)
}

func (cycleCountBinning) DestinationValue(_ Configuration, w plate.Well) (decimal.Decimal, error) {
	if w.CycleCount == nil {
		return decimal.Decimal{}, ErrMissingCycleCount
	}
	return decimal.NewFromInt(int64(*w.CycleCount)), nil
}

func fixedVolumeMeasurement(cfg Configuration, w plate.Well) (Measurement, error) {
	amount, err := wellAmount(w, cfg.SourceMultiplicationFactor())
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{
		Well:              w,
		Value:             amount,
		Volume:            cfg.SourceVolume,
		DiluentVolume:     decimal.NewNullDecimal(cfg.DiluentVolume),
		Amount:            decimal.NewNullDecimal(amount),
		DestConcentration: decimal.NewNullDecimal(amount.Div(cfg.DestMultiplicationFactor())),
	}, nil
}

func normalisedMeasurement(cfg Configuration, w plate.Well) (Measurement, error) {
	conc, err := concentration(w)
	if err != nil {
		return Measurement{}, err
	}
	n, err := SolveVolume(conc, cfg)
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{
		Well:              w,
		Value:             n.AmountInTarget,
		Volume:            n.SourceVolume,
		DiluentVolume:     decimal.NewNullDecimal(n.DiluentVolume),
		Amount:            decimal.NewNullDecimal(n.AmountInTarget),
		DestConcentration: decimal.NewNullDecimal(n.DestConcentration),
	}, nil
}
