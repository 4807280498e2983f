package calculator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Classifier assigns a well value to one of an ordered list of templates.
type Classifier interface {
	Templates() []BinTemplate
	Match(value decimal.Decimal) (int, bool)
}

type thresholdClassifier struct {
	templates []BinTemplate
}

// NewThresholdClassifier matches values against the templates' ranges.
// The first template in configured order that contains the value wins.
func NewThresholdClassifier(templates []BinTemplate) Classifier {
	return &thresholdClassifier{templates: templates}
}

func (c *thresholdClassifier) Templates() []BinTemplate {
	return c.templates
}

func (c *thresholdClassifier) Match(value decimal.Decimal) (int, bool) {
	for i, tpl := range c.templates {
		if tpl.Contains(value) {
			return i, true
		}
	}
	return 0, false
}

type discreteClassifier struct {
	templates []BinTemplate
	index     map[int]int
}

// NewDiscreteClassifier builds one bin per distinct cycle count, highest
// first. Colours are taken from palette in order and reused when there are
// more counts than palette entries.
func NewDiscreteClassifier(counts []int, palette []BinTemplate) Classifier {
	distinct := make(map[int]struct{}, len(counts))
	for _, n := range counts {
		distinct[n] = struct{}{}
	}
	ordered := make([]int, 0, len(distinct))
	for n := range distinct {
		ordered = append(ordered, n)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ordered)))

	c := &discreteClassifier{
		templates: make([]BinTemplate, len(ordered)),
		index:     make(map[int]int, len(ordered)),
	}
	for i, n := range ordered {
		colour := fmt.Sprint(i + 1)
		if len(palette) > 0 {
			colour = palette[i%len(palette)].Colour
		}
		c.templates[i] = BinTemplate{
			Min:        decimal.NewFromInt(int64(n)),
			Max:        decimal.NewFromInt(int64(n + 1)),
			Bounded:    true,
			CycleCount: n,
			Colour:     colour,
			Label:      fmt.Sprintf("%d PCR cycles", n),
		}
		c.index[n] = i
	}
	return c
}

func (c *discreteClassifier) Templates() []BinTemplate {
	return c.templates
}

func (c *discreteClassifier) Match(value decimal.Decimal) (int, bool) {
	if !value.IsInteger() {
		return 0, false
	}
	i, ok := c.index[int(value.IntPart())]
	return i, ok
}

// Classify partitions measurements into one bin per template, preserving
// their relative order. Measurements that match no template are returned
// separately. Empty bins are kept so bin positions follow template order.
func Classify(c Classifier, measurements []Measurement) ([]Bin, []Measurement) {
	templates := c.Templates()
	bins := make([]Bin, len(templates))
	for i, tpl := range templates {
		bins[i] = Bin{Template: tpl}
	}

	var unbinned []Measurement
	for _, m := range measurements {
		i, ok := c.Match(m.Value)
		if !ok {
			unbinned = append(unbinned, m)
			continue
		}
		bins[i].Wells = append(bins[i].Wells, m)
	}
	return bins, unbinned
}
