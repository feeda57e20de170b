package workflow

import (
	"bufio"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/brainage/dataset"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

// PredictionsFileSuffix names the combined out-of-fold prediction table.
const PredictionsFileSuffix = "_all_models_pred.csv"

// PredictionTable holds one out-of-fold prediction per subject and
// workflow. Missing predictions are NaN.
type PredictionTable struct {
	Subjects  []dataset.Subject
	Workflows []string
	Values    [][]float64 // [subject][workflow]
}

// PredictionsPath returns <resultsDir>/<site>/<site>_all_models_pred.csv.
func PredictionsPath(resultsDir, site string) string {
	return filepath.Join(resultsDir, site, site+PredictionsFileSuffix)
}

// WorkflowName joins a feature-set and a model name.
func WorkflowName(data, model string) string {
	return data + " + " + model
}

func subjectKey(s dataset.Subject) string {
	return s.Site + "\x00" + s.Subject + "\x00" + s.Session
}

// CollectPredictions gathers every .results file in dir into a table with
// one column per (stem, model) workflow. Rows are ordered by age, ties by
// first appearance.
func CollectPredictions(dir string) (*PredictionTable, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+ResultsExt))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s", dir)
	}
	if len(paths) == 0 {
		return nil, errors.NewValueError("CollectPredictions", "no "+ResultsExt+" files in "+dir)
	}
	sort.Strings(paths)
	logger := log.GetLoggerWithName("workflow.predictions")

	rowOf := map[string]int{}
	pt := &PredictionTable{}
	columns := map[string]map[int]float64{}

	for _, path := range paths {
		res, err := LoadResults(path)
		if err != nil {
			return nil, err
		}
		base := strings.TrimSuffix(filepath.Base(path), ResultsExt)
		stem := base
		if i := strings.LastIndex(base, "."); i >= 0 {
			stem = base[:i]
		}
		for _, repeat := range sortedKeys(res) {
			for modelID, r := range res[repeat] {
				name := WorkflowName(stem, modelID)
				col, ok := columns[name]
				if !ok {
					col = map[int]float64{}
					columns[name] = col
					pt.Workflows = append(pt.Workflows, name)
				}
				for i, s := range r.Subjects {
					row, ok := rowOf[subjectKey(s)]
					if !ok {
						row = len(pt.Subjects)
						rowOf[subjectKey(s)] = row
						pt.Subjects = append(pt.Subjects, s)
					}
					col[row] = r.Predictions[i]
				}
			}
		}
		logger.Debug("results collected", log.PathKey, path)
	}
	sort.Strings(pt.Workflows)

	order := make([]int, len(pt.Subjects))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pt.Subjects[order[a]].Age < pt.Subjects[order[b]].Age
	})

	subjects := make([]dataset.Subject, len(order))
	pt.Values = make([][]float64, len(order))
	for k, i := range order {
		subjects[k] = pt.Subjects[i]
		row := make([]float64, len(pt.Workflows))
		for w, name := range pt.Workflows {
			v, ok := columns[name][i]
			if !ok {
				v = math.NaN()
			}
			row[w] = v
		}
		pt.Values[k] = row
	}
	pt.Subjects = subjects
	logger.Info("predictions collected", log.SamplesKey, len(subjects), "workflows", len(pt.Workflows))
	return pt, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (pt *PredictionTable) hasSession() bool {
	for _, s := range pt.Subjects {
		if s.Session != "" {
			return true
		}
	}
	return false
}

// WriteCSV writes the identifier columns followed by the workflows.
func (pt *PredictionTable) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	w := csv.NewWriter(bw)
	session := pt.hasSession()
	header := []string{"site", "subject", "age", "gender"}
	if session {
		header = append(header, "session")
	}
	if err := w.Write(append(header, pt.Workflows...)); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	for i, s := range pt.Subjects {
		rec := []string{s.Site, s.Subject, strconv.FormatFloat(s.Age, 'g', -1, 64), s.Gender}
		if session {
			rec = append(rec, s.Session)
		}
		for _, v := range pt.Values[i] {
			rec = append(rec, FormatFloat(v))
		}
		if err := w.Write(rec); err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return bw.Flush()
}

// FormatFloat renders v for CSV output; NaN becomes an empty cell.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WritePredictions collects <resultsDir>/<site>/*.results into
// PredictionsPath and returns the path written.
func WritePredictions(resultsDir, site string) (string, error) {
	pt, err := CollectPredictions(filepath.Join(resultsDir, site))
	if err != nil {
		return "", err
	}
	path := PredictionsPath(resultsDir, site)
	if err := pt.WriteCSV(path); err != nil {
		return "", err
	}
	return path, nil
}
