package workflow

import (
	"fmt"
	"path/filepath"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/cv"
	"github.com/YuminosukeSato/brainage/dataset"
)

// File extensions of the per-model artefacts.
const (
	ScoresExt  = ".scores"
	ResultsExt = ".results"
	ModelsExt  = ".models"
	MetaExt    = ".meta.json"
)

// Result holds the held-out predictions of one outer fold.
type Result struct {
	Predictions []float64
	True        []float64
	Delta       []float64 // true - predicted
	TestIdx     []int
	Subjects    []dataset.Subject
	MAE         float64
	MSE         float64
	Corr        float64
}

// ScoresFile maps repeat key and model id to the inner-CV scores.
type ScoresFile map[string]map[string]cv.Scores

// ResultsFile maps repeat key and model id to the held-out result.
type ResultsFile map[string]map[string]Result

// ModelsFile maps repeat key and model id to the final fitted workflow.
type ModelsFile map[string]map[string]model.Regressor

// ArtefactPath returns <dir>/<stem>.<model><ext>.
func ArtefactPath(dir, stem, modelID, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.%s%s", stem, modelID, ext))
}

// LoadScores reads a .scores file.
func LoadScores(path string) (ScoresFile, error) {
	var s ScoresFile
	if err := model.LoadModel(&s, path); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadResults reads a .results file.
func LoadResults(path string) (ResultsFile, error) {
	var r ResultsFile
	if err := model.LoadModel(&r, path); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadModels reads a .models file.
func LoadModels(path string) (ModelsFile, error) {
	var m ModelsFile
	if err := model.LoadModel(&m, path); err != nil {
		return nil, err
	}
	return m, nil
}
