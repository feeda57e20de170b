package biascorrect

import (
	"github.com/YuminosukeSato/brainage/pkg/chart"
)

// Plot saves a scatter of true against corrected age, one series per
// workflow.
func Plot(t *Table, site, path string) error {
	s := chart.Scatter{
		Title:    site + ": bias-corrected brain age",
		XLabel:   "age",
		YLabel:   "corrected prediction",
		Identity: true,
	}
	for w, name := range t.Workflows {
		s.Series = append(s.Series, chart.Series{Name: name, X: t.Ages, Y: t.Values[w]})
	}
	return s.Save(path)
}
