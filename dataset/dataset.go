// Package dataset loads per-subject feature tables and demographics and
// applies the age filtering used by the training driver.
package dataset

import (
	"bufio"
	"encoding/csv"
	"encoding/gob"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

// FeaturePrefix marks feature columns.
const FeaturePrefix = "f_"

// Age bounds kept by ReadData, inclusive.
const (
	MinAge = 18
	MaxAge = 90
)

// Subject holds the identifier columns of one row.
type Subject struct {
	Site    string
	Subject string
	Age     float64
	Gender  string
	Session string
}

// FeatureFile is the gob form of a feature table.
type FeatureFile struct {
	Names []string
	Rows  [][]float64
}

// FeatureTable is one row per subject with identifiers and features.
type FeatureTable struct {
	Subjects     []Subject
	FeatureNames []string
	Rows         [][]float64
}

// Len returns the number of rows.
func (t *FeatureTable) Len() int {
	return len(t.Subjects)
}

// X returns the features as a matrix.
func (t *FeatureTable) X() *mat.Dense {
	X := mat.NewDense(len(t.Rows), len(t.FeatureNames), nil)
	for i, row := range t.Rows {
		X.SetRow(i, row)
	}
	return X
}

// Ages returns the age column.
func (t *FeatureTable) Ages() *mat.VecDense {
	y := mat.NewVecDense(len(t.Subjects), nil)
	for i, s := range t.Subjects {
		y.SetVec(i, s.Age)
	}
	return y
}

// Subset returns the rows at idx in that order.
func (t *FeatureTable) Subset(idx []int) *FeatureTable {
	out := &FeatureTable{
		Subjects:     make([]Subject, len(idx)),
		FeatureNames: t.FeatureNames,
		Rows:         make([][]float64, len(idx)),
	}
	for k, i := range idx {
		out.Subjects[k] = t.Subjects[i]
		out.Rows[k] = t.Rows[i]
	}
	return out
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	header, err := r.Read()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read header of %s", path)
	}
	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to read %s", path)
		}
		records = append(records, rec)
	}
	return header, records, nil
}

// LoadFeatures reads a feature table. Files ending in .csv are parsed as CSV
// and only columns starting with FeaturePrefix are kept; anything else is
// decoded as a gob FeatureFile.
func LoadFeatures(path string) (*FeatureFile, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return loadFeaturesCSV(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	var ff FeatureFile
	if err := gob.NewDecoder(f).Decode(&ff); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}
	for _, row := range ff.Rows {
		if len(row) != len(ff.Names) {
			return nil, errors.NewDimensionError("LoadFeatures", len(ff.Names), len(row), 1)
		}
	}
	return &ff, nil
}

func loadFeaturesCSV(path string) (*FeatureFile, error) {
	header, records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	var cols []int
	ff := &FeatureFile{}
	for j, name := range header {
		if strings.HasPrefix(name, FeaturePrefix) {
			cols = append(cols, j)
			ff.Names = append(ff.Names, name)
		}
	}
	ff.Rows = make([][]float64, len(records))
	for i, rec := range records {
		row := make([]float64, len(cols))
		for k, j := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j]), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: row %d column %s", path, i+1, header[j])
			}
			row[k] = v
		}
		ff.Rows[i] = row
	}
	return ff, nil
}

// SaveFeatures writes a gob FeatureFile.
func SaveFeatures(ff *FeatureFile, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(ff); err != nil {
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	return nil
}

// LoadDemographics reads the site, subject, age and gender columns, plus
// session when present.
func LoadDemographics(path string) ([]Subject, error) {
	header, records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for j, name := range header {
		idx[strings.TrimSpace(name)] = j
	}
	for _, col := range []string{"site", "subject", "age", "gender"} {
		if _, ok := idx[col]; !ok {
			return nil, errors.NewValidationError("demographics", "missing column "+col, path)
		}
	}
	session, hasSession := idx["session"]

	subjects := make([]Subject, len(records))
	for i, rec := range records {
		age, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["age"]]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: row %d age", path, i+1)
		}
		subjects[i] = Subject{
			Site:    rec[idx["site"]],
			Subject: rec[idx["subject"]],
			Age:     age,
			Gender:  rec[idx["gender"]],
		}
		if hasSession {
			subjects[i].Session = rec[session]
		}
	}
	return subjects, nil
}

// ReadData joins demographics and features row by row and then
//   - rounds ages half to even,
//   - keeps ages in [MinAge, MaxAge],
//   - sorts by age (stable),
//   - keeps the first row of each subject.
func ReadData(dataPath, demoPath string) (*FeatureTable, error) {
	logger := log.GetLoggerWithName("dataset")

	ff, err := LoadFeatures(dataPath)
	if err != nil {
		return nil, err
	}
	subjects, err := LoadDemographics(demoPath)
	if err != nil {
		return nil, err
	}
	if len(subjects) != len(ff.Rows) {
		return nil, errors.NewDimensionError("ReadData", len(subjects), len(ff.Rows), 0)
	}
	if len(ff.Names) == 0 {
		return nil, errors.NewValueError("ReadData", "no feature columns with prefix "+FeaturePrefix)
	}

	table := &FeatureTable{Subjects: subjects, FeatureNames: ff.Names, Rows: ff.Rows}
	clean := Clean(table)
	logger.Info("data loaded",
		log.PathKey, dataPath,
		log.SamplesKey, clean.Len(),
		log.FeaturesKey, len(clean.FeatureNames),
		"dropped", table.Len()-clean.Len(),
	)
	return clean, nil
}

// Clean applies the age rounding, filtering, sorting and subject
// de-duplication of ReadData to an in-memory table.
func Clean(t *FeatureTable) *FeatureTable {
	idx := make([]int, 0, t.Len())
	subjects := make([]Subject, t.Len())
	copy(subjects, t.Subjects)
	for i := range subjects {
		subjects[i].Age = math.RoundToEven(subjects[i].Age)
		if subjects[i].Age >= MinAge && subjects[i].Age <= MaxAge {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return subjects[idx[a]].Age < subjects[idx[b]].Age
	})

	seen := make(map[string]bool, len(idx))
	keep := idx[:0]
	for _, i := range idx {
		if seen[subjects[i].Subject] {
			continue
		}
		seen[subjects[i].Subject] = true
		keep = append(keep, i)
	}

	out := &FeatureTable{
		Subjects:     make([]Subject, len(keep)),
		FeatureNames: t.FeatureNames,
		Rows:         make([][]float64, len(keep)),
	}
	for k, i := range keep {
		out.Subjects[k] = subjects[i]
		out.Rows[k] = t.Rows[i]
	}
	return out
}
