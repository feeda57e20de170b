// Package biascorrect removes the age-dependent bias of out-of-fold
// predictions. Within stratified folds a linear model of predicted on true
// age is fitted on the training part and inverted on the held-out part.
package biascorrect

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/cv"
	"github.com/YuminosukeSato/brainage/linear"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

// NSplits is the number of correction folds.
const NSplits = 5

// Sites accepted by Run.
var Sites = []string{"ixi", "enki", "camcan", "1000brains"}

const (
	inputSuffix  = "_all_models_pred.csv"
	outputSuffix = "_all_models_pred_BC.csv"
)

// ValidateSite rejects sites outside Sites.
func ValidateSite(site string) error {
	for _, s := range Sites {
		if s == site {
			return nil
		}
	}
	return errors.NewValidationError("dataset_flag", "unknown site", site)
}

// InputPath returns <resultsDir>/<site>/<site>_all_models_pred.csv.
func InputPath(resultsDir, site string) string {
	return filepath.Join(resultsDir, site, site+inputSuffix)
}

// OutputPath returns <resultsDir>/<site>/<site>_all_models_pred_BC.csv.
func OutputPath(resultsDir, site string) string {
	return filepath.Join(resultsDir, site, site+outputSuffix)
}

// Table is a prediction file: identifier columns kept verbatim plus one
// numeric column per workflow.
type Table struct {
	IDHeader  []string
	IDs       [][]string
	Ages      []float64
	Workflows []string
	Values    [][]float64 // [workflow][row]
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Ages)
}

// ReadTable parses a prediction CSV. The identifier columns are
// site, subject, age, gender and, when present, session.
func ReadTable(r io.Reader) (*Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read predictions")
	}
	if len(records) < 2 {
		return nil, errors.ErrEmptyData
	}
	header := records[0]
	nID := 4
	for _, h := range header {
		if h == "session" {
			nID = 5
		}
	}
	if len(header) < nID {
		return nil, errors.NewValueError("biascorrect.ReadTable", "missing identifier columns")
	}
	ageCol := -1
	for j, h := range header[:nID] {
		if h == "age" {
			ageCol = j
		}
	}
	if ageCol < 0 {
		return nil, errors.NewValueError("biascorrect.ReadTable", "no age column")
	}

	t := &Table{
		IDHeader:  append([]string(nil), header[:nID]...),
		Workflows: append([]string(nil), header[nID:]...),
	}
	t.Values = make([][]float64, len(t.Workflows))
	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, errors.NewDimensionError("biascorrect.ReadTable", len(header), len(rec), 1)
		}
		age, err := strconv.ParseFloat(rec[ageCol], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: age", i+1)
		}
		t.Ages = append(t.Ages, age)
		t.IDs = append(t.IDs, append([]string(nil), rec[:nID]...))
		for w := range t.Workflows {
			v, err := strconv.ParseFloat(rec[nID+w], 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d: %s", i+1, t.Workflows[w])
			}
			t.Values[w] = append(t.Values[w], v)
		}
	}
	return t, nil
}

// WriteTo writes the table as CSV.
func (t *Table) WriteTo(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string(nil), t.IDHeader...), t.Workflows...)); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for i := range t.Ages {
		rec := append([]string(nil), t.IDs[i]...)
		for w := range t.Workflows {
			rec = append(rec, strconv.FormatFloat(t.Values[w][i], 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i+1)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Fit is the linear model of one workflow on one fold.
type Fit struct {
	Workflow  string
	Fold      int
	Intercept float64
	Slope     float64
}

// Folds returns the correction folds for n rows: a non-shuffled stratified
// k-fold over the row index cut into floor(n/NSplits) bins.
func Folds(n int) ([]cv.CVFold, error) {
	labels, err := cv.Cut(cv.Indices(n), n/NSplits)
	if err != nil {
		return nil, err
	}
	return cv.NewStratifiedKFold(NSplits, false, 0).Split(n, labels)
}

// CorrectColumn fits predicted on true age on each training part and
// returns (predicted - intercept) / slope for the held-out rows, in row
// order. A zero slope yields Inf or NaN.
func CorrectColumn(ages, pred []float64, folds []cv.CVFold) ([]float64, []Fit, error) {
	if len(ages) != len(pred) {
		return nil, nil, errors.NewDimensionError("biascorrect.CorrectColumn", len(ages), len(pred), 0)
	}
	x := mat.NewVecDense(len(ages), append([]float64(nil), ages...))
	y := mat.NewVecDense(len(pred), append([]float64(nil), pred...))
	out := make([]float64, len(pred))
	for i := range out {
		out[i] = math.NaN()
	}
	fits := make([]Fit, 0, len(folds))
	for f, fold := range folds {
		lr := linear.NewLinearRegression()
		if err := lr.Fit(cv.SelectVec(x, fold.TrainIndices), cv.SelectVec(y, fold.TrainIndices)); err != nil {
			return nil, nil, errors.Wrapf(err, "fold %d", f)
		}
		fit := Fit{Fold: f, Intercept: lr.Intercept, Slope: lr.Coef()[0]}
		for _, i := range fold.TestIndices {
			out[i] = (pred[i] - fit.Intercept) / fit.Slope
		}
		fits = append(fits, fit)
	}
	return out, fits, nil
}

// Correct returns a copy of t with every workflow column corrected.
func Correct(t *Table) (*Table, []Fit, error) {
	folds, err := Folds(t.Len())
	if err != nil {
		return nil, nil, err
	}
	logger := log.GetLoggerWithName("biascorrect")
	out := &Table{
		IDHeader:  t.IDHeader,
		IDs:       t.IDs,
		Ages:      t.Ages,
		Workflows: t.Workflows,
		Values:    make([][]float64, len(t.Workflows)),
	}
	var all []Fit
	for w, name := range t.Workflows {
		corrected, fits, err := CorrectColumn(t.Ages, t.Values[w], folds)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "workflow %s", name)
		}
		for i := range fits {
			fits[i].Workflow = name
			logger.Debug("fold fitted",
				log.WorkflowKey, name,
				log.FoldKey, fits[i].Fold,
				"intercept", fits[i].Intercept,
				"slope", fits[i].Slope,
			)
		}
		out.Values[w] = corrected
		all = append(all, fits...)
	}
	return out, all, nil
}

// Config configures one bias-correction run.
type Config struct {
	ResultsDir string
	Site       string
	// PlotPath, when set, receives a true vs. corrected age scatter.
	PlotPath string
}

// Run corrects <site>_all_models_pred.csv and writes the _BC file. A
// missing input is logged and nothing is written; the returned path is
// empty in that case.
func Run(cfg Config) (string, error) {
	if err := ValidateSite(cfg.Site); err != nil {
		return "", err
	}
	logger := log.GetLoggerWithName("biascorrect").With(log.SiteKey, cfg.Site)
	in := InputPath(cfg.ResultsDir, cfg.Site)
	f, err := os.Open(in)
	if os.IsNotExist(err) {
		logger.Error(in+" not found", log.PathKey, in)
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s", in)
	}
	defer f.Close()

	t, err := ReadTable(bufio.NewReader(f))
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", in)
	}
	logger.Info("predictions loaded", log.PathKey, in, log.SamplesKey, t.Len(), "workflows", len(t.Workflows))

	corrected, _, err := Correct(t)
	if err != nil {
		return "", err
	}

	path := OutputPath(cfg.ResultsDir, cfg.Site)
	out, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create %s", path)
	}
	defer out.Close()
	bw := bufio.NewWriter(out)
	if err := corrected.WriteTo(bw); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}
	if err := bw.Flush(); err != nil {
		return "", errors.Wrapf(err, "failed to write %s", path)
	}
	logger.Info("corrected predictions written", log.PathKey, path)

	if cfg.PlotPath != "" {
		if err := Plot(corrected, cfg.Site, cfg.PlotPath); err != nil {
			return path, err
		}
		logger.Info("plot written", log.PathKey, cfg.PlotPath)
	}
	return path, nil
}
