// Package plate models sequencing library plates: their geometry, the wells
// they carry and the row-letter/column-number coordinate convention shared by
// source and destination plates.
package plate
