package calculator

import (
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/plate-binning/internal/plate"
)

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func intPtr(n int) *int {
	return &n
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

// columnPlate places one occupied well per concentration in column order.
// An empty string leaves the well occupied but without a concentration.
func columnPlate(g plate.Geometry, concentrations ...string) plate.Plate {
	p := plate.Plate{Geometry: g}
	for i, c := range concentrations {
		w := plate.Well{
			Location: plate.WellName(i%g.Rows+1, i/g.Rows+1),
			Occupied: true,
		}
		if c != "" {
			w.Concentration = decPtr(c)
		}
		p.Wells = append(p.Wells, w)
	}
	return p
}

func mustLoad(raw RawConfiguration, required ...Field) Configuration {
	cfg, err := LoadConfiguration(raw, required...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func measurementsOf(values ...string) []Measurement {
	out := make([]Measurement, len(values))
	for i, v := range values {
		out[i] = Measurement{
			Well:  plate.Well{Location: plate.WellName(i%8+1, i/8+1), Occupied: true},
			Value: dec(v),
		}
	}
	return out
}
