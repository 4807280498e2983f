package plate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const maxRows = 26

var (
	// ErrInvalidGeometry is returned when a plate has no rows or columns, or more rows than letters.
	ErrInvalidGeometry = errors.New("plate geometry must have 1-26 rows and at least 1 column")
	// ErrInvalidLocation is returned when a well coordinate cannot be parsed or lies outside the plate.
	ErrInvalidLocation = errors.New("invalid well location")
	// ErrDuplicateLocation is returned when two wells share a coordinate.
	ErrDuplicateLocation = errors.New("duplicate well location")
)

// Geometry is the coordinate space of a plate.
type Geometry struct {
	Rows    int `json:"rows" yaml:"rows"`
	Columns int `json:"columns" yaml:"columns"`
}

// Standard96 is the 8x12 layout used by most library plates.
var Standard96 = Geometry{Rows: 8, Columns: 12}

// Validate reports whether the geometry can be addressed with row letters.
func (g Geometry) Validate() error {
	if g.Rows <= 0 || g.Rows > maxRows || g.Columns <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, g.Rows, g.Columns)
	}
	return nil
}

// Capacity is the number of wells on the plate.
func (g Geometry) Capacity() int {
	return g.Rows * g.Columns
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Rows, g.Columns)
}

// ParseGeometry parses "ROWSxCOLUMNS" (e.g. "8x12") or a well count of 96 or 384.
func ParseGeometry(raw string) (Geometry, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	switch raw {
	case "96":
		return Standard96, nil
	case "384":
		return Geometry{Rows: 16, Columns: 24}, nil
	}

	rows, cols, ok := strings.Cut(raw, "x")
	if !ok {
		return Geometry{}, fmt.Errorf("%w: %q", ErrInvalidGeometry, raw)
	}
	r, err := strconv.Atoi(strings.TrimSpace(rows))
	if err != nil {
		return Geometry{}, fmt.Errorf("%w: %q", ErrInvalidGeometry, raw)
	}
	c, err := strconv.Atoi(strings.TrimSpace(cols))
	if err != nil {
		return Geometry{}, fmt.Errorf("%w: %q", ErrInvalidGeometry, raw)
	}
	g := Geometry{Rows: r, Columns: c}
	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// WellName formats a 1-based row and column as a coordinate, e.g. (1, 1) -> "A1".
func WellName(row, column int) string {
	return string(rune('A'+row-1)) + strconv.Itoa(column)
}

// ParseWellName splits a coordinate such as "H12" into its 1-based row and column.
func ParseWellName(name string) (row, column int, err error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if len(name) < 2 || name[0] < 'A' || name[0] > 'Z' {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLocation, name)
	}
	column, err = strconv.Atoi(name[1:])
	if err != nil || column <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidLocation, name)
	}
	return int(name[0]-'A') + 1, column, nil
}

// Well is a read-only snapshot of one plate well.
//
// Concentration is in ng/µl. CycleCount, SampleVolume and SubPool are only
// populated for plates whose cycle counts were assigned by a customer file.
type Well struct {
	Location      string           `json:"location"`
	Occupied      bool             `json:"occupied"`
	Concentration *decimal.Decimal `json:"concentration,omitempty"`
	CycleCount    *int             `json:"cycleCount,omitempty"`
	SampleVolume  *decimal.Decimal `json:"sampleVolume,omitempty"`
	SubPool       *int             `json:"subPool,omitempty"`
}

// Plate is a snapshot of a plate and its wells.
type Plate struct {
	Geometry Geometry `json:"geometry"`
	Wells    []Well   `json:"wells"`
}

// WellsInColumns returns the occupied wells ordered column by column (A1, B1, ... A2, ...).
// Unoccupied wells are skipped. Coordinates outside the geometry or repeated
// coordinates are rejected.
func (p Plate) WellsInColumns() ([]Well, error) {
	if err := p.Geometry.Validate(); err != nil {
		return nil, err
	}

	type indexed struct {
		well        Well
		row, column int
	}

	seen := make(map[string]struct{}, len(p.Wells))
	occupied := make([]indexed, 0, len(p.Wells))
	for _, w := range p.Wells {
		row, column, err := ParseWellName(w.Location)
		if err != nil {
			return nil, err
		}
		if row > p.Geometry.Rows || column > p.Geometry.Columns {
			return nil, fmt.Errorf("%w: %s outside %s plate", ErrInvalidLocation, w.Location, p.Geometry)
		}
		name := WellName(row, column)
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLocation, name)
		}
		seen[name] = struct{}{}
		if !w.Occupied {
			continue
		}
		w.Location = name
		occupied = append(occupied, indexed{well: w, row: row, column: column})
	}

	sort.Slice(occupied, func(i, j int) bool {
		if occupied[i].column != occupied[j].column {
			return occupied[i].column < occupied[j].column
		}
		return occupied[i].row < occupied[j].row
	})

	out := make([]Well, len(occupied))
	for i, o := range occupied {
		out[i] = o.well
	}
	return out, nil
}
