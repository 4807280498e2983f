package calculator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const places = 3

// Field names a numeric (or bin list) entry of a dilution configuration.
type Field string

const (
	FieldSourceVolume        Field = "source_volume"
	FieldDiluentVolume       Field = "diluent_volume"
	FieldTargetAmount        Field = "target_amount"
	FieldTargetVolume        Field = "target_volume"
	FieldMinimumSourceVolume Field = "minimum_source_volume"
	FieldBins                Field = "bins"
)

var defaultBinMin = decimal.NewFromInt(-1)

// Quantity is a number kept in its textual form until the configuration is loaded.
// It decodes from YAML and JSON whether written as a number or a string.
type Quantity string

// UnmarshalYAML accepts any scalar.
func (q *Quantity) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected a number, got YAML node kind %d", node.Kind)
	}
	if node.Tag == "!!null" {
		*q = ""
		return nil
	}
	*q = Quantity(node.Value)
	return nil
}

// UnmarshalJSON accepts a JSON number, string or null.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*q = ""
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	*q = Quantity(raw)
	return nil
}

// RawBin is an unparsed bin template.
type RawBin struct {
	Min    Quantity `yaml:"min,omitempty" json:"min,omitempty"`
	Max    Quantity `yaml:"max,omitempty" json:"max,omitempty"`
	Colour string   `yaml:"colour,omitempty" json:"colour,omitempty"`
	Label  string   `yaml:"label,omitempty" json:"label,omitempty"`
}

// RawConfiguration is a dilution configuration as supplied by the configuration layer.
type RawConfiguration struct {
	SourceVolume        Quantity `yaml:"source_volume,omitempty" json:"source_volume,omitempty"`
	DiluentVolume       Quantity `yaml:"diluent_volume,omitempty" json:"diluent_volume,omitempty"`
	TargetAmount        Quantity `yaml:"target_amount,omitempty" json:"target_amount,omitempty"`
	TargetVolume        Quantity `yaml:"target_volume,omitempty" json:"target_volume,omitempty"`
	MinimumSourceVolume Quantity `yaml:"minimum_source_volume,omitempty" json:"minimum_source_volume,omitempty"`
	Bins                []RawBin `yaml:"bins,omitempty" json:"bins,omitempty"`
}

// BinTemplate is one entry of the ordered bin list. Threshold templates
// match amounts in [Min, Max); an unbounded template has no upper limit.
// Discrete templates match CycleCount exactly.
type BinTemplate struct {
	Min        decimal.Decimal `json:"min"`
	Max        decimal.Decimal `json:"max"`
	Bounded    bool            `json:"bounded"`
	CycleCount int             `json:"cycleCount,omitempty"`
	Colour     string          `json:"colour"`
	Label      string          `json:"label"`
}

// Contains reports whether value lies in the template's half-open range.
func (b BinTemplate) Contains(value decimal.Decimal) bool {
	if value.LessThan(b.Min) {
		return false
	}
	return !b.Bounded || value.LessThan(b.Max)
}

// Configuration is the immutable, parsed form of a RawConfiguration.
// Volumes are in µl and the target amount in ng, all rounded to 3 places.
type Configuration struct {
	SourceVolume        decimal.Decimal
	DiluentVolume       decimal.Decimal
	TargetAmount        decimal.Decimal
	TargetVolume        decimal.Decimal
	MinimumSourceVolume decimal.Decimal
	Bins                []BinTemplate

	present map[Field]bool
}

// SourceMultiplicationFactor converts a source well concentration to an amount.
func (c Configuration) SourceMultiplicationFactor() decimal.Decimal {
	return c.SourceVolume
}

// DestMultiplicationFactor converts a destination well concentration to an amount.
func (c Configuration) DestMultiplicationFactor() decimal.Decimal {
	return c.SourceVolume.Add(c.DiluentVolume)
}

// Has reports whether the field was supplied when the configuration was loaded.
func (c Configuration) Has(f Field) bool {
	return c.present[f]
}

// Require fails with ErrMissingField for the first field that was not supplied.
func (c Configuration) Require(fields ...Field) error {
	for _, f := range fields {
		if !c.Has(f) {
			return fmt.Errorf("%w: %s", ErrMissingField, f)
		}
	}
	return nil
}

// LoadConfiguration parses raw into a Configuration. Every field named in
// required must be present; any field that is present must be a
// non-negative number.
func LoadConfiguration(raw RawConfiguration, required ...Field) (Configuration, error) {
	cfg := Configuration{present: make(map[Field]bool)}

	numbers := []struct {
		field Field
		raw   Quantity
		dst   *decimal.Decimal
	}{
		{FieldSourceVolume, raw.SourceVolume, &cfg.SourceVolume},
		{FieldDiluentVolume, raw.DiluentVolume, &cfg.DiluentVolume},
		{FieldTargetAmount, raw.TargetAmount, &cfg.TargetAmount},
		{FieldTargetVolume, raw.TargetVolume, &cfg.TargetVolume},
		{FieldMinimumSourceVolume, raw.MinimumSourceVolume, &cfg.MinimumSourceVolume},
	}
	for _, n := range numbers {
		if strings.TrimSpace(string(n.raw)) == "" {
			continue
		}
		value, err := parseQuantity(n.raw)
		if err != nil {
			return Configuration{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, n.field, err)
		}
		if value.IsNegative() {
			return Configuration{}, fmt.Errorf("%w: %s must not be negative", ErrInvalidField, n.field)
		}
		*n.dst = value
		cfg.present[n.field] = true
	}

	if cfg.Has(FieldSourceVolume) && cfg.SourceVolume.IsZero() {
		return Configuration{}, fmt.Errorf("%w: %s must be positive", ErrInvalidField, FieldSourceVolume)
	}
	if cfg.Has(FieldTargetVolume) {
		if cfg.TargetVolume.IsZero() {
			return Configuration{}, fmt.Errorf("%w: %s must be positive", ErrInvalidField, FieldTargetVolume)
		}
		if cfg.MinimumSourceVolume.GreaterThan(cfg.TargetVolume) {
			return Configuration{}, fmt.Errorf("%w: %s exceeds %s", ErrInvalidField, FieldMinimumSourceVolume, FieldTargetVolume)
		}
		// the last 1µl below the target is rounded down to 0.5µl steps
		if cfg.MinimumSourceVolume.IsPositive() && cfg.MinimumSourceVolume.GreaterThan(cfg.TargetVolume.Sub(one)) {
			return Configuration{}, fmt.Errorf("%w: %s must be at least 1µl below %s", ErrInvalidField, FieldMinimumSourceVolume, FieldTargetVolume)
		}
	}

	bins, err := loadBins(raw.Bins)
	if err != nil {
		return Configuration{}, err
	}
	cfg.Bins = bins
	if len(bins) > 0 {
		cfg.present[FieldBins] = true
	}

	if err := cfg.Require(required...); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

func loadBins(raw []RawBin) ([]BinTemplate, error) {
	bins := make([]BinTemplate, 0, len(raw))
	for i, rb := range raw {
		bin := BinTemplate{Min: defaultBinMin, Colour: rb.Colour, Label: rb.Label}

		if strings.TrimSpace(string(rb.Min)) != "" {
			value, err := parseQuantity(rb.Min)
			if err != nil {
				return nil, fmt.Errorf("%w: bin %d min: %v", ErrInvalidBin, i+1, err)
			}
			bin.Min = value
		}
		if strings.TrimSpace(string(rb.Max)) != "" {
			value, err := parseQuantity(rb.Max)
			if err != nil {
				return nil, fmt.Errorf("%w: bin %d max: %v", ErrInvalidBin, i+1, err)
			}
			bin.Max = value
			bin.Bounded = true
		}
		if bin.Bounded && !bin.Min.LessThan(bin.Max) {
			return nil, fmt.Errorf("%w: bin %d range [%s, %s) is empty", ErrInvalidBin, i+1, bin.Min, bin.Max)
		}
		bins = append(bins, bin)
	}
	return bins, nil
}

func parseQuantity(q Quantity) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(string(q)))
	if err != nil {
		return decimal.Decimal{}, err
	}
	return value.Round(places), nil
}
