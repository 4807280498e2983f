package calculator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/plate-binning/internal/plate"
)

func binningConfig() Configuration {
	return mustLoad(RawConfiguration{
		SourceVolume:  "10",
		DiluentVolume: "25",
		Bins: []RawBin{
			{Max: "25", Colour: "1", Label: "16 PCR cycles"},
			{Min: "25", Max: "500", Colour: "2", Label: "12 PCR cycles"},
			{Min: "500", Colour: "3", Label: "8 PCR cycles"},
		},
	})
}

func newCalculator(t *testing.T, variant Variant) Calculator {
	t.Helper()
	s, err := StrategyFor(variant)
	if err != nil {
		t.Fatalf("StrategyFor: %v", err)
	}
	return New(s, WithLogger(zaptest.NewLogger(t)))
}

func TestConcentrationBinning(t *testing.T) {
	t.Parallel()

	p := columnPlate(plate.Standard96, "1", "56", "3", "", "0")
	p.Wells = append(p.Wells, plate.Well{Location: "H12", Occupied: false, Concentration: decPtr("9")})

	got, err := newCalculator(t, ConcentrationBinning).Calculate(p, binningConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]Transfer{
		"A1": {Source: "A1", Destination: "A1", Volume: dec("10"), DiluentVolume: nullDec("25"), DestConcentration: nullDec("0.286"), Amount: nullDec("10")},
		"C1": {Source: "C1", Destination: "A2", Volume: dec("10"), DiluentVolume: nullDec("25"), DestConcentration: nullDec("0.857"), Amount: nullDec("30")},
		"E1": {Source: "E1", Destination: "B1", Volume: dec("10"), DiluentVolume: nullDec("25"), DestConcentration: nullDec("0"), Amount: nullDec("0")},
		"B1": {Source: "B1", Destination: "A3", Volume: dec("10"), DiluentVolume: nullDec("25"), DestConcentration: nullDec("16"), Amount: nullDec("560")},
	}
	if diff := cmp.Diff(want, got.Transfers, decimalComparer); diff != "" {
		t.Fatalf("unexpected transfers (-want +got):\n%s", diff)
	}

	wantDetails := map[string]BinDetail{
		"A1": {Colour: "1", Label: "16 PCR cycles"},
		"E1": {Colour: "1", Label: "16 PCR cycles"},
		"C1": {Colour: "2", Label: "12 PCR cycles"},
		"B1": {Colour: "3", Label: "8 PCR cycles"},
	}
	if diff := cmp.Diff(wantDetails, got.BinDetails); diff != "" {
		t.Fatalf("unexpected bin details (-want +got):\n%s", diff)
	}

	if !errors.Is(got.WellErrors["D1"], ErrMissingConcentration) || len(got.WellErrors) != 1 {
		t.Fatalf("expected only D1 to fail, got %v", got.WellErrors)
	}
	if _, ok := got.Transfers["H12"]; ok {
		t.Fatalf("unoccupied well must not be transferred")
	}
	if got.Compressed || got.Version != "v1.0" || got.Variant != ConcentrationBinning {
		t.Fatalf("unexpected result metadata %+v", got)
	}
}

func TestBinsFillSeparateColumns(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(RawConfiguration{
		SourceVolume:  "1",
		DiluentVolume: "0",
		Bins: []RawBin{
			{Max: "10", Colour: "1"},
			{Min: "10", Max: "20", Colour: "2"},
			{Min: "20", Max: "30", Colour: "3"},
			{Min: "30", Colour: "4"},
		},
	})
	concs := make([]string, 96)
	for i := range concs {
		concs[i] = fmt.Sprint((i%4)*10 + 5)
	}

	got, err := newCalculator(t, ConcentrationBinning).Calculate(columnPlate(plate.Standard96, concs...), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Compressed {
		t.Fatalf("expected spacious layout")
	}

	for src, tr := range got.Transfers {
		_, column, err := plate.ParseWellName(tr.Destination)
		if err != nil {
			t.Fatalf("bad destination %s", tr.Destination)
		}
		bin := (column - 1) / 3
		if want := fmt.Sprint(bin + 1); got.BinDetails[src].Colour != want {
			t.Fatalf("well %s placed in column %d but belongs to bin %s", src, column, got.BinDetails[src].Colour)
		}
	}
	if got.Transfers["A1"].Destination != "A1" || got.Transfers["B1"].Destination != "A4" {
		t.Fatalf("unexpected bin starts: %s %s", got.Transfers["A1"].Destination, got.Transfers["B1"].Destination)
	}
}

func TestBinsCompressWhenColumnsRunOut(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(RawConfiguration{
		SourceVolume:  "1",
		DiluentVolume: "1",
		Bins: []RawBin{
			{Max: "10", Colour: "1"},
			{Min: "10", Max: "20", Colour: "2"},
			{Min: "20", Colour: "3"},
		},
	})
	var concs []string
	for i := 0; i < 30; i++ {
		concs = append(concs, "5")
	}
	for i := 0; i < 40; i++ {
		concs = append(concs, "15")
	}
	for i := 0; i < 26; i++ {
		concs = append(concs, "25")
	}

	got, err := newCalculator(t, ConcentrationBinning).Calculate(columnPlate(plate.Standard96, concs...), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Compressed {
		t.Fatalf("expected compressed layout")
	}

	// the 31st well in column order opens bin 2 directly below bin 1's last well
	if dest := got.Transfers["G4"].Destination; dest != "G4" {
		t.Fatalf("expected bin 2 to start at G4, got %s", dest)
	}
	seen := map[string]bool{}
	for _, tr := range got.Transfers {
		if seen[tr.Destination] {
			t.Fatalf("duplicate destination %s", tr.Destination)
		}
		seen[tr.Destination] = true
	}
	if len(seen) != 96 {
		t.Fatalf("expected 96 destinations, got %d", len(seen))
	}
}

func TestCalculateRejectsDuplicateWells(t *testing.T) {
	t.Parallel()

	p := columnPlate(plate.Standard96, "1", "2")
	p.Wells[1].Location = "a1"
	if _, err := newCalculator(t, ConcentrationBinning).Calculate(p, binningConfig()); !errors.Is(err, plate.ErrDuplicateLocation) {
		t.Fatalf("expected ErrDuplicateLocation, got %v", err)
	}
}

func TestCalculateRejectsOverflowingDestination(t *testing.T) {
	t.Parallel()

	s, err := StrategyFor(ConcentrationBinning)
	if err != nil {
		t.Fatalf("StrategyFor: %v", err)
	}
	p := columnPlate(plate.Standard96, "1", "2", "3", "4", "5")

	small := New(s, WithDestination(plate.Geometry{Rows: 2, Columns: 2}))
	if _, err := small.Calculate(p, binningConfig()); !errors.Is(err, ErrPlateOverflow) {
		t.Fatalf("expected ErrPlateOverflow, got %v", err)
	}

	// bins of two and three wells need exactly three columns of a 2x3 plate
	fits := New(s, WithDestination(plate.Geometry{Rows: 2, Columns: 3}))
	got, err := fits.Calculate(p, binningConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Transfers["E1"].Destination != "A3" {
		t.Fatalf("expected E1 at A3, got %s", got.Transfers["E1"].Destination)
	}

	stamp, err := StrategyFor(FixedNormalisation)
	if err != nil {
		t.Fatalf("StrategyFor: %v", err)
	}
	_, err = New(stamp, WithDestination(plate.Geometry{Rows: 4, Columns: 1})).
		Calculate(p, mustLoad(RawConfiguration{SourceVolume: "1", DiluentVolume: "1"}))
	if !errors.Is(err, ErrPlateOverflow) {
		t.Fatalf("expected ErrPlateOverflow for stamped well E1, got %v", err)
	}
}

func TestCalculateReportsUnbinnedWells(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(RawConfiguration{
		SourceVolume:  "1",
		DiluentVolume: "1",
		Bins:          []RawBin{{Min: "0", Max: "10", Colour: "1", Label: "low"}},
	})
	got, err := newCalculator(t, ConcentrationBinning).Calculate(columnPlate(plate.Standard96, "5", "50", "7", "70"), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"B1", "D1"}, got.Unbinned); diff != "" {
		t.Fatalf("unexpected unbinned (-want +got):\n%s", diff)
	}
	if len(got.Transfers) != 2 || len(got.BinDetails) != 2 {
		t.Fatalf("expected only binned wells in output, got %v", got.Transfers)
	}
}

func TestCalculateRequiresConfiguration(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(RawConfiguration{SourceVolume: "10", DiluentVolume: "5"})
	_, err := newCalculator(t, ConcentrationBinning).Calculate(columnPlate(plate.Standard96, "1"), cfg)
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestConcentrationNormalisationStampsWells(t *testing.T) {
	t.Parallel()

	got, err := newCalculator(t, ConcentrationNormalisation).Calculate(columnPlate(plate.Standard96, "5", "50", "1"), normalisationConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]Transfer{
		"A1": {Source: "A1", Destination: "A1", Volume: dec("10"), DiluentVolume: nullDec("20"), DestConcentration: nullDec("1.667"), Amount: nullDec("50")},
		"B1": {Source: "B1", Destination: "B1", Volume: dec("2"), DiluentVolume: nullDec("28"), DestConcentration: nullDec("3.333"), Amount: nullDec("100")},
		"C1": {Source: "C1", Destination: "C1", Volume: dec("30"), DiluentVolume: nullDec("0"), DestConcentration: nullDec("1"), Amount: nullDec("30")},
	}
	if diff := cmp.Diff(want, got.Transfers, decimalComparer); diff != "" {
		t.Fatalf("unexpected transfers (-want +got):\n%s", diff)
	}
	if len(got.BinDetails) != 0 {
		t.Fatalf("expected no bin details, got %v", got.BinDetails)
	}
}

func TestFixedNormalisation(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(RawConfiguration{SourceVolume: "2", DiluentVolume: "33"})
	got, err := newCalculator(t, FixedNormalisation).Calculate(columnPlate(plate.Standard96, "3.5"), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Transfer{Source: "A1", Destination: "A1", Volume: dec("2"), DiluentVolume: nullDec("33"), DestConcentration: nullDec("0.2"), Amount: nullDec("7")}
	if diff := cmp.Diff(want, got.Transfers["A1"], decimalComparer); diff != "" {
		t.Fatalf("unexpected transfer (-want +got):\n%s", diff)
	}
}

func TestNormalisedBinningClassifiesOnUnroundedAmount(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(RawConfiguration{
		TargetAmount:        "10",
		TargetVolume:        "30",
		MinimumSourceVolume: "1",
		Bins: []RawBin{
			{Max: "10", Colour: "1", Label: "under"},
			{Min: "10", Colour: "2", Label: "on target"},
		},
	})
	// 10/3 solves to 3.333µl carrying 9.999ng, which stays under the 10ng edge
	// even though its destination concentration rounds to the same 0.333 as B1.
	got, err := newCalculator(t, NormalisedBinning).Calculate(columnPlate(plate.Standard96, "3", "2"), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.BinDetails["A1"].Label != "under" || got.BinDetails["B1"].Label != "on target" {
		t.Fatalf("unexpected bins %v", got.BinDetails)
	}
	if got.Transfers["A1"].Destination != "A1" || got.Transfers["B1"].Destination != "A2" {
		t.Fatalf("unexpected destinations %+v", got.Transfers)
	}
	if !got.Transfers["A1"].DestConcentration.Decimal.Equal(dec("0.333")) {
		t.Fatalf("expected rounded output concentration, got %s", got.Transfers["A1"].DestConcentration.Decimal)
	}
}

func TestCycleCountBinning(t *testing.T) {
	t.Parallel()

	p := plate.Plate{
		Geometry: plate.Standard96,
		Wells: []plate.Well{
			{Location: "A1", Occupied: true, CycleCount: intPtr(12), SampleVolume: decPtr("5"), SubPool: intPtr(1)},
			{Location: "B1", Occupied: true, CycleCount: intPtr(16), SampleVolume: decPtr("4.5"), SubPool: intPtr(2)},
			{Location: "C1", Occupied: true, CycleCount: intPtr(12), SampleVolume: decPtr("5")},
			{Location: "D1", Occupied: true, SampleVolume: decPtr("5")},
			{Location: "E1", Occupied: true, CycleCount: intPtr(14)},
		},
	}
	cfg := mustLoad(RawConfiguration{Bins: []RawBin{{Colour: "red"}, {Colour: "green"}}})

	got, err := newCalculator(t, CycleCountBinning).Calculate(p, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]Transfer{
		"B1": {Source: "B1", Destination: "A1", Volume: dec("4.5"), SubPool: intPtr(2)},
		"A1": {Source: "A1", Destination: "A2", Volume: dec("5"), SubPool: intPtr(1)},
		"C1": {Source: "C1", Destination: "B2", Volume: dec("5")},
	}
	if diff := cmp.Diff(want, got.Transfers, decimalComparer); diff != "" {
		t.Fatalf("unexpected transfers (-want +got):\n%s", diff)
	}
	wantDetails := map[string]BinDetail{
		"B1": {Colour: "red", Label: "16 PCR cycles"},
		"A1": {Colour: "green", Label: "12 PCR cycles"},
		"C1": {Colour: "green", Label: "12 PCR cycles"},
	}
	if diff := cmp.Diff(wantDetails, got.BinDetails); diff != "" {
		t.Fatalf("unexpected bin details (-want +got):\n%s", diff)
	}
	if !errors.Is(got.WellErrors["D1"], ErrMissingCycleCount) || !errors.Is(got.WellErrors["E1"], ErrMissingSampleVolume) {
		t.Fatalf("unexpected well errors %v", got.WellErrors)
	}
	if diff := cmp.Diff([]string{"D1", "E1"}, got.WellErrors.Locations()); diff != "" {
		t.Fatalf("unexpected error locations (-want +got):\n%s", diff)
	}
	if err := got.WellErrors.Err(); !errors.Is(err, ErrMissingCycleCount) {
		t.Fatalf("expected joined error to wrap ErrMissingCycleCount, got %v", err)
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	t.Parallel()

	p := columnPlate(plate.Standard96, "1", "56", "3", "800", "0", "24.9", "25")
	shuffled := p
	shuffled.Wells = []plate.Well{p.Wells[6], p.Wells[2], p.Wells[0], p.Wells[4], p.Wells[1], p.Wells[5], p.Wells[3]}

	calc := newCalculator(t, ConcentrationBinning)
	first, err := calc.Calculate(p, binningConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := calc.Calculate(shuffled, binningConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(first.Transfers, second.Transfers, decimalComparer); diff != "" {
		t.Fatalf("input order changed transfers (-first +second):\n%s", diff)
	}
}

func TestBinDetailsForDestinationPlate(t *testing.T) {
	t.Parallel()

	// destination concentrations after a 10 + 25µl dilution
	dest := columnPlate(plate.Standard96, "0.2", "1", "20", "")

	details, wellErrors, err := newCalculator(t, ConcentrationBinning).BinDetails(dest, binningConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := map[string]BinDetail{
		"A1": {Colour: "1", Label: "16 PCR cycles"},
		"B1": {Colour: "2", Label: "12 PCR cycles"},
		"C1": {Colour: "3", Label: "8 PCR cycles"},
	}
	if diff := cmp.Diff(want, details); diff != "" {
		t.Fatalf("unexpected details (-want +got):\n%s", diff)
	}
	if !errors.Is(wellErrors["D1"], ErrMissingConcentration) {
		t.Fatalf("expected D1 error, got %v", wellErrors)
	}

	stamped, _, err := newCalculator(t, FixedNormalisation).BinDetails(dest, mustLoad(RawConfiguration{SourceVolume: "1", DiluentVolume: "1"}))
	if err != nil || len(stamped) != 0 {
		t.Fatalf("expected no details for unbinned variant, got %v %v", stamped, err)
	}
}

func TestWellAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		conc    *decimal.Decimal
		want    string
		wantErr error
	}{
		{name: "Scaled", conc: decPtr("2.5"), want: "25"},
		{name: "Zero", conc: decPtr("0"), want: "0"},
		{name: "Missing", wantErr: ErrMissingConcentration},
		{name: "Negative", conc: decPtr("-1"), wantErr: ErrInvalidConcentration},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := wellAmount(plate.Well{Location: "A1", Occupied: true, Concentration: tc.conc}, dec("10"))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestStrategyFor(t *testing.T) {
	t.Parallel()

	for _, s := range Strategies() {
		got, err := StrategyFor(s.Variant())
		if err != nil || got.Variant() != s.Variant() {
			t.Fatalf("StrategyFor(%s) = %v, %v", s.Variant(), got, err)
		}
	}
	if _, err := StrategyFor("guesswork"); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}
