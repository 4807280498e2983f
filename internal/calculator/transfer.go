package calculator

import "github.com/shopspring/decimal"

// BuildTransfers assigns each binned well the next destination coordinate
// from cursor, skipping empty bins.
func BuildTransfers(bins []Bin, cursor *Cursor) (map[string]Transfer, error) {
	transfers := make(map[string]Transfer)
	for _, bin := range bins {
		if len(bin.Wells) == 0 {
			continue
		}
		cursor.StartBin()
		for _, m := range bin.Wells {
			dest, err := cursor.Next()
			if err != nil {
				return nil, err
			}
			transfers[m.Well.Location] = newTransfer(m, dest)
		}
	}
	return transfers, nil
}

// StampTransfers moves every well to the same coordinate on the destination plate.
func StampTransfers(measurements []Measurement) map[string]Transfer {
	transfers := make(map[string]Transfer, len(measurements))
	for _, m := range measurements {
		transfers[m.Well.Location] = newTransfer(m, m.Well.Location)
	}
	return transfers
}

func newTransfer(m Measurement, dest string) Transfer {
	return Transfer{
		Source:            m.Well.Location,
		Destination:       dest,
		Volume:            m.Volume.Round(places),
		DiluentVolume:     roundNull(m.DiluentVolume),
		DestConcentration: roundNull(m.DestConcentration),
		Amount:            roundNull(m.Amount),
		SubPool:           m.Well.SubPool,
	}
}

func roundNull(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid {
		return d
	}
	return decimal.NewNullDecimal(d.Decimal.Round(places))
}
