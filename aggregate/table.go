package aggregate

import (
	"bufio"
	"encoding/csv"
	"math"
	"os"

	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/workflow"
)

// table is the column-ordered form shared by the CSV and SQLite writers.
// Cells are string or float64; a NaN float is a missing value.
type table struct {
	name    string
	columns []string
	rows    [][]interface{}
}

func (s *Summary) cvTable() table {
	t := table{
		name:    "cv_scores",
		columns: []string{"model", "data", "cv_mae", "cv_mse", "cv_r2", "workflow_name"},
	}
	for _, r := range s.CV {
		t.rows = append(t.rows, []interface{}{r.Model, r.Data, r.MAE, r.MSE, r.R2, r.WorkflowName})
	}
	return t
}

func (s *Summary) testTable() table {
	t := table{
		name:    "test_scores",
		columns: []string{"model", "data", "test_mae", "test_mse", "test_corr", "workflow_name"},
	}
	for _, r := range s.Test {
		t.rows = append(t.rows, []interface{}{r.Model, r.Data, r.MAE, r.MSE, r.Corr, r.WorkflowName})
	}
	return t
}

func combinedTable(name string, rows []CombinedRow) table {
	t := table{
		name: name,
		columns: []string{
			"model", "data", "cv_mae", "cv_mse", "cv_r2", "workflow_name",
			"test_mae", "test_mse", "test_corr", "workflow_name_updated",
		},
	}
	for _, r := range rows {
		t.rows = append(t.rows, []interface{}{
			r.Model, r.Data, r.MAE, r.MSE, r.R2, r.WorkflowName,
			r.TestMAE, r.TestMSE, r.TestCorr, r.WorkflowNameUpdated,
		})
	}
	return t
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return workflow.FormatFloat(x)
	default:
		return ""
	}
}

func (t table) writeCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	w := csv.NewWriter(bw)
	if err := w.Write(t.columns); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	rec := make([]string, len(t.columns))
	for _, row := range t.rows {
		for j, v := range row {
			rec[j] = cellString(v)
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

// sqlValue maps NaN to NULL.
func sqlValue(v interface{}) interface{} {
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return nil
	}
	return v
}
