// Package aggregate summarises training artefacts across feature sets and
// models into CV and held-out test tables.
package aggregate

import (
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/YuminosukeSato/brainage/config"
	"github.com/YuminosukeSato/brainage/cv"
	"github.com/YuminosukeSato/brainage/metrics"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
	"github.com/YuminosukeSato/brainage/workflow"
)

// CVRow is the inner-CV summary of one (data, model) pair.
type CVRow struct {
	Model        string
	Data         string
	WorkflowName string
	MAE          float64
	MSE          float64
	R2           float64
}

// TestRow is the held-out summary of one (data, model) pair.
type TestRow struct {
	Model        string
	Data         string
	WorkflowName string
	MAE          float64
	MSE          float64
	Corr         float64
}

// CombinedRow joins a CV row with its test row. Test metrics are NaN when
// no test row matched.
type CombinedRow struct {
	CVRow
	TestMAE             float64
	TestMSE             float64
	TestCorr            float64
	WorkflowNameUpdated string
}

// Summary holds the four output tables.
type Summary struct {
	CV       []CVRow
	Test     []TestRow
	Combined []CombinedRow
	Selected []CombinedRow
}

// Aggregator reads artefacts under ResultsFolder as configured.
type Aggregator struct {
	cfg    config.Aggregate
	logger log.Logger
}

// New checks that the relabelling lists line up.
func New(cfg config.Aggregate) (*Aggregator, error) {
	if len(cfg.Data) != len(cfg.DataLabels) {
		return nil, errors.NewValidationError("data_labels", "must have one label per data entry", len(cfg.DataLabels))
	}
	if len(cfg.Models) != len(cfg.ModelLabels) {
		return nil, errors.NewValidationError("model_labels", "must have one label per model", len(cfg.ModelLabels))
	}
	return &Aggregator{cfg: cfg, logger: log.GetLoggerWithName("aggregate")}, nil
}

func (a *Aggregator) artefact(data, modelID, ext string) string {
	return workflow.ArtefactPath(a.cfg.ResultsFolder, a.cfg.Prefix+data, modelID, ext)
}

// OutputPath returns <ResultsFolder>/<Prefix><name>.
func (a *Aggregator) OutputPath(name string) string {
	return filepath.Join(a.cfg.ResultsFolder, a.cfg.Prefix+name)
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s / float64(len(xs))
}

// modelKeys returns the model ids found in any repeat, sorted.
func modelKeys[V any](file map[string]map[string]V) []string {
	seen := map[string]bool{}
	var keys []string
	for _, byModel := range file {
		for id := range byModel {
			if !seen[id] {
				seen[id] = true
				keys = append(keys, id)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// ReadCV builds one row per model key of every existing .scores file. The
// metrics are means over all repeats and inner folds, sign-flipped for the
// negated errors and rounded to 3 decimals.
func (a *Aggregator) ReadCV() ([]CVRow, error) {
	var rows []CVRow
	for _, data := range a.cfg.Data {
		for _, modelID := range a.cfg.Models {
			path := a.artefact(data, modelID, workflow.ScoresExt)
			if !exists(path) {
				continue
			}
			file, err := workflow.LoadScores(path)
			if err != nil {
				return nil, err
			}
			for _, key := range modelKeys(file) {
				var mae, mse, r2 []float64
				for _, byModel := range file {
					s, ok := byModel[key]
					if !ok {
						continue
					}
					mae = append(mae, s[cv.TestKey(metrics.NegMeanAbsoluteError)]...)
					mse = append(mse, s[cv.TestKey(metrics.NegMeanSquaredError)]...)
					r2 = append(r2, s[cv.TestKey(metrics.R2)]...)
				}
				rows = append(rows, CVRow{
					Model: key,
					Data:  data,
					MAE:   metrics.Round(-mean(mae), 3),
					MSE:   metrics.Round(-mean(mse), 3),
					R2:    metrics.Round(mean(r2), 3),
				})
			}
			a.logger.Debug("scores read", log.PathKey, path)
		}
	}
	return rows, nil
}

// ReadTest builds one row per model key of every existing .results file,
// averaging the per-repeat mae, mse and corr.
func (a *Aggregator) ReadTest() ([]TestRow, error) {
	var rows []TestRow
	for _, data := range a.cfg.Data {
		for _, modelID := range a.cfg.Models {
			path := a.artefact(data, modelID, workflow.ResultsExt)
			if !exists(path) {
				continue
			}
			file, err := workflow.LoadResults(path)
			if err != nil {
				return nil, err
			}
			for _, key := range modelKeys(file) {
				var mae, mse, corr []float64
				for _, byModel := range file {
					r, ok := byModel[key]
					if !ok {
						continue
					}
					mae = append(mae, r.MAE)
					mse = append(mse, r.MSE)
					corr = append(corr, r.Corr)
				}
				rows = append(rows, TestRow{
					Model: key,
					Data:  data,
					MAE:   metrics.Round(mean(mae), 3),
					MSE:   metrics.Round(mean(mse), 3),
					Corr:  metrics.Round(mean(corr), 3),
				})
			}
			a.logger.Debug("results read", log.PathKey, path)
		}
	}
	return rows, nil
}

func relabel(values, labels []string) map[string]string {
	m := make(map[string]string, len(values))
	for i, v := range values {
		m[v] = labels[i]
	}
	return m
}

func lookup(m map[string]string, v string) string {
	if l, ok := m[v]; ok {
		return l
	}
	return v
}

// Summarise reads all artefacts and builds the four tables.
func (a *Aggregator) Summarise() (*Summary, error) {
	cvRows, err := a.ReadCV()
	if err != nil {
		return nil, err
	}
	testRows, err := a.ReadTest()
	if err != nil {
		return nil, err
	}
	dataLabels := relabel(a.cfg.Data, a.cfg.DataLabels)
	modelLabels := relabel(a.cfg.Models, a.cfg.ModelLabels)

	for i := range cvRows {
		r := &cvRows[i]
		r.WorkflowName = workflow.WorkflowName(r.Data, r.Model)
		r.Data = lookup(dataLabels, r.Data)
		r.Model = lookup(modelLabels, r.Model)
	}
	for i := range testRows {
		r := &testRows[i]
		r.WorkflowName = workflow.WorkflowName(r.Data, r.Model)
		r.Data = lookup(dataLabels, r.Data)
		r.Model = lookup(modelLabels, r.Model)
	}

	s := &Summary{CV: cvRows, Test: testRows}
	s.Combined = LeftJoin(cvRows, testRows)
	s.Selected = SelectWorkflows(s.Combined, a.cfg.Selected)
	a.logger.Info("results aggregated",
		"cv_rows", len(s.CV),
		"test_rows", len(s.Test),
		"combined_rows", len(s.Combined),
		"selected_rows", len(s.Selected),
	)
	return s, nil
}

// LeftJoin keeps every CV row, attaching the test rows with the same data,
// model and workflow name. Unmatched rows get NaN test metrics.
func LeftJoin(cvRows []CVRow, testRows []TestRow) []CombinedRow {
	type key struct{ data, model, workflow string }
	index := map[key][]int{}
	for i, t := range testRows {
		k := key{t.Data, t.Model, t.WorkflowName}
		index[k] = append(index[k], i)
	}
	var out []CombinedRow
	for _, c := range cvRows {
		row := CombinedRow{
			CVRow:               c,
			TestMAE:             math.NaN(),
			TestMSE:             math.NaN(),
			TestCorr:            math.NaN(),
			WorkflowNameUpdated: workflow.WorkflowName(c.Data, c.Model),
		}
		matches := index[key{c.Data, c.Model, c.WorkflowName}]
		if len(matches) == 0 {
			out = append(out, row)
			continue
		}
		for _, i := range matches {
			t := testRows[i]
			row.TestMAE, row.TestMSE, row.TestCorr = t.MAE, t.MSE, t.Corr
			out = append(out, row)
		}
	}
	return out
}

// SelectWorkflows keeps the combined rows whose updated workflow name is in
// selected, in combined order.
func SelectWorkflows(rows []CombinedRow, selected []string) []CombinedRow {
	keep := make(map[string]bool, len(selected))
	for _, s := range selected {
		keep[s] = true
	}
	var out []CombinedRow
	for _, r := range rows {
		if keep[r.WorkflowNameUpdated] {
			out = append(out, r)
		}
	}
	return out
}

// Run summarises and writes the four CSV files, plus the optional SQLite
// export and plot. It returns the written CSV paths.
func (a *Aggregator) Run() ([]string, error) {
	s, err := a.Summarise()
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, out := range []struct {
		name string
		t    table
	}{
		{a.cfg.CVFile, s.cvTable()},
		{a.cfg.TestFile, s.testTable()},
		{a.cfg.CombinedFile, combinedTable("cv_test_scores", s.Combined)},
		{a.cfg.SelectedFile, combinedTable("cv_test_scores_selected", s.Selected)},
	} {
		path := a.OutputPath(out.name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
		}
		if err := out.t.writeCSVFile(path); err != nil {
			return nil, err
		}
		a.logger.Info("summary written", log.PathKey, path, log.SamplesKey, len(out.t.rows))
		paths = append(paths, path)
	}

	if a.cfg.SQLite != "" {
		if err := ExportSQLite(a.cfg.SQLite, s); err != nil {
			return paths, err
		}
		a.logger.Info("sqlite export written", log.PathKey, a.cfg.SQLite)
	}
	if a.cfg.Plot != "" {
		if err := Plot(s.Combined, a.cfg.Plot); err != nil {
			return paths, err
		}
		a.logger.Info("plot written", log.PathKey, a.cfg.Plot)
	}
	return paths, nil
}
