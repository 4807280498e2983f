package calculator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/plate-binning/internal/plate"
)

// Variant names one of the calculator strategies.
type Variant string

const (
	ConcentrationBinning       Variant = "concentration-binning"
	ConcentrationNormalisation Variant = "concentration-normalisation"
	FixedNormalisation         Variant = "fixed-normalisation"
	NormalisedBinning          Variant = "normalised-binning"
	CycleCountBinning          Variant = "cycle-count-binning"
)

// Measurement holds the per-well values a strategy computed for one source well.
// Value is what the well is classified on: an amount in ng, or a cycle count.
// Nothing here is rounded; rounding happens when transfers are assembled.
type Measurement struct {
	Well              plate.Well
	Value             decimal.Decimal
	Volume            decimal.Decimal
	DiluentVolume     decimal.NullDecimal
	Amount            decimal.NullDecimal
	DestConcentration decimal.NullDecimal
}

// Bin is the realised, ordered list of wells matching one template.
type Bin struct {
	Template BinTemplate
	Wells    []Measurement
}

// Transfer is the instruction to move material from one source well.
type Transfer struct {
	Source            string              `json:"source"`
	Destination       string              `json:"destination"`
	Volume            decimal.Decimal     `json:"volume"`
	DiluentVolume     decimal.NullDecimal `json:"diluentVolume"`
	DestConcentration decimal.NullDecimal `json:"destConcentration"`
	Amount            decimal.NullDecimal `json:"amount"`
	SubPool           *int                `json:"subPool,omitempty"`
}

// BinDetail is what the rendering layer needs to colour a well.
type BinDetail struct {
	Colour string `json:"colour"`
	Label  string `json:"label"`
}

// WellErrors collects per-well problems keyed by well coordinate.
type WellErrors map[string]error

// Locations returns the failing coordinates in column order.
func (we WellErrors) Locations() []string {
	locations := make([]string, 0, len(we))
	for loc := range we {
		locations = append(locations, loc)
	}
	sortColumnMajor(locations)
	return locations
}

// Err joins every well error into one, or returns nil when there are none.
func (we WellErrors) Err() error {
	if len(we) == 0 {
		return nil
	}
	errs := make([]error, 0, len(we))
	for _, loc := range we.Locations() {
		errs = append(errs, fmt.Errorf("well %s: %w", loc, we[loc]))
	}
	return errors.Join(errs...)
}

// Result is the output of a calculation.
type Result struct {
	Variant    Variant
	Version    string
	Compressed bool
	Transfers  map[string]Transfer
	BinDetails map[string]BinDetail
	WellErrors WellErrors
	// Unbinned lists wells whose value matched no bin template.
	Unbinned []string
}

// Calculator computes transfers and bin details for a plate.
type Calculator interface {
	Strategy() Strategy
	Calculate(p plate.Plate, cfg Configuration) (Result, error)
	BinDetails(p plate.Plate, cfg Configuration) (map[string]BinDetail, WellErrors, error)
}

func sortColumnMajor(locations []string) {
	sort.Slice(locations, func(i, j int) bool {
		ri, ci, erri := plate.ParseWellName(locations[i])
		rj, cj, errj := plate.ParseWellName(locations[j])
		if erri != nil || errj != nil {
			return locations[i] < locations[j]
		}
		if ci != cj {
			return ci < cj
		}
		return ri < rj
	})
}
