package calculator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eugenenazirov/plate-binning/internal/plate"
)

// Option configures a calculator.
type Option func(*pipeline)

// WithLogger sets the logger used to report excluded wells.
func WithLogger(logger *zap.Logger) Option {
	return func(p *pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDestination places wells on a plate with a different geometry from the
// source plate. By default the destination matches the source.
func WithDestination(g plate.Geometry) Option {
	return func(p *pipeline) {
		p.destination = &g
	}
}

// pipeline runs the shared measure, classify, lay out and place steps for a strategy.
type pipeline struct {
	strategy    Strategy
	logger      *zap.Logger
	destination *plate.Geometry
}

// New creates a Calculator driven by strategy.
func New(strategy Strategy, opts ...Option) Calculator {
	p := &pipeline{strategy: strategy, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("variant", string(strategy.Variant())))
	return p
}

func (p *pipeline) Strategy() Strategy {
	return p.strategy
}

func (p *pipeline) Calculate(pl plate.Plate, cfg Configuration) (Result, error) {
	if err := cfg.Require(p.strategy.Requires()...); err != nil {
		return Result{}, err
	}
	wells, err := pl.WellsInColumns()
	if err != nil {
		return Result{}, fmt.Errorf("read source plate: %w", err)
	}

	result := Result{
		Variant:    p.strategy.Variant(),
		Version:    p.strategy.Version(),
		BinDetails: map[string]BinDetail{},
		WellErrors: WellErrors{},
	}

	measurements := make([]Measurement, 0, len(wells))
	for _, w := range wells {
		m, err := p.strategy.Measure(cfg, w)
		if err != nil {
			p.logger.Debug("well excluded", zap.String("well", w.Location), zap.Error(err))
			result.WellErrors[w.Location] = err
			continue
		}
		measurements = append(measurements, m)
	}

	dest := pl.Geometry
	if p.destination != nil {
		dest = *p.destination
	}

	classifier := p.strategy.Classifier(cfg, measurements)
	if classifier == nil {
		if err := fitsInPlace(measurements, dest); err != nil {
			return Result{}, err
		}
		result.Transfers = StampTransfers(measurements)
		return result, nil
	}

	bins, unbinned := Classify(classifier, measurements)
	result.Unbinned = p.reportUnbinned(unbinned)

	layout, err := PlanLayout(bins, dest)
	if err != nil {
		return Result{}, err
	}
	result.Compressed = layout.Compressed

	transfers, err := BuildTransfers(bins, NewCursor(dest, layout.Compressed))
	if err != nil {
		return Result{}, err
	}
	result.Transfers = transfers
	result.BinDetails = PresenterBinDetails(bins)
	return result, nil
}

func (p *pipeline) BinDetails(pl plate.Plate, cfg Configuration) (map[string]BinDetail, WellErrors, error) {
	if err := cfg.Require(p.strategy.Requires()...); err != nil {
		return nil, nil, err
	}
	wells, err := pl.WellsInColumns()
	if err != nil {
		return nil, nil, fmt.Errorf("read destination plate: %w", err)
	}

	wellErrors := WellErrors{}
	measurements := make([]Measurement, 0, len(wells))
	for _, w := range wells {
		value, err := p.strategy.DestinationValue(cfg, w)
		if err != nil {
			wellErrors[w.Location] = err
			continue
		}
		measurements = append(measurements, Measurement{Well: w, Value: value})
	}

	classifier := p.strategy.Classifier(cfg, measurements)
	if classifier == nil {
		return map[string]BinDetail{}, wellErrors, nil
	}
	bins, unbinned := Classify(classifier, measurements)
	p.reportUnbinned(unbinned)
	return PresenterBinDetails(bins), wellErrors, nil
}

func fitsInPlace(measurements []Measurement, dest plate.Geometry) error {
	if err := dest.Validate(); err != nil {
		return err
	}
	for _, m := range measurements {
		row, column, err := plate.ParseWellName(m.Well.Location)
		if err != nil {
			return err
		}
		if row > dest.Rows || column > dest.Columns {
			return fmt.Errorf("%w: %s is outside a %s plate", ErrPlateOverflow, m.Well.Location, dest)
		}
	}
	return nil
}

func (p *pipeline) reportUnbinned(unbinned []Measurement) []string {
	if len(unbinned) == 0 {
		return nil
	}
	locations := make([]string, len(unbinned))
	for i, m := range unbinned {
		locations[i] = m.Well.Location
	}
	p.logger.Warn("wells matched no bin", zap.Strings("wells", locations))
	return locations
}
