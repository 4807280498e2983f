package calculator

import (
	"fmt"

	"github.com/eugenenazirov/plate-binning/internal/plate"
)

// Layout is the placement decision for a set of bins.
type Layout struct {
	ColumnsRequired int
	// Compressed bins are packed back to back instead of each starting a fresh column.
	Compressed bool
}

// ColumnsRequired is the number of columns needed when every bin starts a new column.
func ColumnsRequired(sizes []int, rows int) int {
	columns := 0
	for _, size := range sizes {
		if size <= 0 {
			continue
		}
		columns += (size + rows - 1) / rows
	}
	return columns
}

// CompressionRequired reports whether one-bin-per-column placement would overflow the plate.
func CompressionRequired(sizes []int, g plate.Geometry) bool {
	return ColumnsRequired(sizes, g.Rows) > g.Columns
}

// PlanLayout decides between spacious and compressed placement. It fails with
// ErrPlateOverflow when the wells do not fit even when compressed.
func PlanLayout(bins []Bin, g plate.Geometry) (Layout, error) {
	if err := g.Validate(); err != nil {
		return Layout{}, err
	}

	sizes := make([]int, len(bins))
	total := 0
	for i, b := range bins {
		sizes[i] = len(b.Wells)
		total += sizes[i]
	}
	if total > g.Capacity() {
		return Layout{}, fmt.Errorf("%w: %d wells on a %s plate", ErrPlateOverflow, total, g)
	}

	return Layout{
		ColumnsRequired: ColumnsRequired(sizes, g.Rows),
		Compressed:      CompressionRequired(sizes, g),
	}, nil
}
