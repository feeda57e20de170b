package aggregate

import (
	"github.com/YuminosukeSato/brainage/pkg/chart"
)

// Plot saves a scatter of CV MAE against test MAE, one series per model.
// Rows without test metrics are left out.
func Plot(rows []CombinedRow, path string) error {
	var order []string
	byModel := map[string]*chart.Series{}
	for _, r := range rows {
		s, ok := byModel[r.Model]
		if !ok {
			s = &chart.Series{Name: r.Model}
			byModel[r.Model] = s
			order = append(order, r.Model)
		}
		s.X = append(s.X, r.MAE)
		s.Y = append(s.Y, r.TestMAE)
	}
	sc := chart.Scatter{
		Title:    "CV vs. test MAE",
		XLabel:   "cv_mae",
		YLabel:   "test_mae",
		Identity: true,
	}
	for _, m := range order {
		sc.Series = append(sc.Series, *byModel[m])
	}
	return sc.Save(path)
}
