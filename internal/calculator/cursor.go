package calculator

import (
	"fmt"

	"github.com/eugenenazirov/plate-binning/internal/plate"
)

// Cursor walks a destination plate column by column. It is owned by a single
// calculation and must not be shared.
type Cursor struct {
	geometry plate.Geometry
	compress bool
	row      int
	column   int
}

// NewCursor starts a cursor at A1.
func NewCursor(g plate.Geometry, compress bool) *Cursor {
	return &Cursor{geometry: g, compress: compress, row: 1, column: 1}
}

// StartBin moves to the top of the next column unless bins are being
// compressed or the cursor already sits at the top of a fresh column.
func (c *Cursor) StartBin() {
	if c.compress || c.row == 1 {
		return
	}
	c.row = 1
	c.column++
}

// Next returns the current coordinate and advances one well down the column.
func (c *Cursor) Next() (string, error) {
	if c.column > c.geometry.Columns {
		return "", fmt.Errorf("%w: no wells left on a %s plate", ErrPlateOverflow, c.geometry)
	}
	location := plate.WellName(c.row, c.column)

	c.row++
	if c.row > c.geometry.Rows {
		c.row = 1
		c.column++
	}
	return location, nil
}
