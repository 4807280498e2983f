package calculator

// PresenterBinDetails maps every binned well to its bin's colour and label.
func PresenterBinDetails(bins []Bin) map[string]BinDetail {
	details := make(map[string]BinDetail)
	for _, bin := range bins {
		for _, m := range bin.Wells {
			details[m.Well.Location] = BinDetail{Colour: bin.Template.Colour, Label: bin.Template.Label}
		}
	}
	return details
}
