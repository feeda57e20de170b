package workflow

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/dataset"
	"github.com/YuminosukeSato/brainage/metrics"
	"github.com/YuminosukeSato/brainage/pkg/errors"
)

// writeSite writes n subjects aged 20..20+n-1 with two features that track age.
func writeSite(t *testing.T, dir string, n int) (demo, data string) {
	t.Helper()
	var d, f strings.Builder
	d.WriteString("site,subject,age,gender\n")
	f.WriteString("f_a,f_b\n")
	for i := 0; i < n; i++ {
		age := 20 + i
		fmt.Fprintf(&d, "ixi,sub-%02d,%d,%s\n", i, age, []string{"F", "M"}[i%2])
		fmt.Fprintf(&f, "%g,%d\n", float64(age)+float64(i%3)*0.5, (i*7)%11)
	}
	demo = filepath.Join(dir, "demo.csv")
	data = filepath.Join(dir, "features.csv")
	require.NoError(t, os.WriteFile(demo, []byte(d.String()), 0o644))
	require.NoError(t, os.WriteFile(data, []byte(f.String()), 0o644))
	return demo, data
}

func testConfig(t *testing.T, n int) TrainConfig {
	dir := t.TempDir()
	demo, data := writeSite(t, dir, n)
	return TrainConfig{
		DemoPath:   demo,
		DataPath:   data,
		Output:     "ixi/toy",
		Models:     []string{"lin_reg"},
		ResultsDir: filepath.Join(dir, "results"),
		Seed:       200,
		Splits:     2,
		Repeats:    1,
	}
}

func TestTrainConfigValidate(t *testing.T) {
	base := TrainConfig{Output: "ixi/toy", Models: []string{"lin_reg"}, Splits: 5, Repeats: 5}
	require.NoError(t, base.Validate())
	assert.Equal(t, "toy", base.Stem())

	tests := []struct {
		name  string
		edit  func(c *TrainConfig)
		param string
	}{
		{"no slash", func(c *TrainConfig) { c.Output = "ixi" }, "output"},
		{"empty name", func(c *TrainConfig) { c.Output = "ixi/" }, "output"},
		{"unknown model", func(c *TrainConfig) { c.Models = []string{"svm"} }, "models"},
		{"no model", func(c *TrainConfig) { c.Models = nil }, "models"},
		{"one split", func(c *TrainConfig) { c.Splits = 1 }, "splits"},
		{"no repeat", func(c *TrainConfig) { c.Repeats = 0 }, "repeats"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.edit(&c)
			var verr *errors.ValidationError
			require.True(t, errors.As(c.Validate(), &verr))
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}
}

func TestTrainerRun(t *testing.T) {
	cfg := testConfig(t, 40)
	tr, err := NewTrainer(cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Run(context.Background()))

	dir := filepath.Join(cfg.ResultsDir, "ixi")
	for _, ext := range []string{ScoresExt, ResultsExt, ModelsExt, MetaExt} {
		assert.FileExists(t, filepath.Join(dir, "toy.lin_reg"+ext))
	}

	results, err := LoadResults(ArtefactPath(dir, "toy", "lin_reg", ResultsExt))
	require.NoError(t, err)
	require.Len(t, results, 2)

	// outer test folds partition the rows
	var seen []int
	for _, key := range []string{"repeat_0", "repeat_1"} {
		r := results[key]["lin_reg"]
		assert.Len(t, r.TestIdx, 20)
		assert.Len(t, r.Subjects, 20)
		seen = append(seen, r.TestIdx...)
		for i := range r.Predictions {
			assert.InDelta(t, r.True[i]-r.Predictions[i], r.Delta[i], 1e-12)
		}
		assert.Less(t, r.MAE, 2.0)
		assert.Equal(t, metrics.Round(r.MAE, 3), r.MAE)
	}
	sort.Ints(seen)
	for i, v := range seen {
		require.Equal(t, i, v)
	}

	scores, err := LoadScores(ArtefactPath(dir, "toy", "lin_reg", ScoresExt))
	require.NoError(t, err)
	s := scores["repeat_0"]["lin_reg"]
	assert.Len(t, s["test_r2"], 2)
	assert.Len(t, s["fit_time"], 2)
	assert.Less(t, s.Mean("test_neg_mean_absolute_error"), 0.0)

	models, err := LoadModels(ArtefactPath(dir, "toy", "lin_reg", ModelsExt))
	require.NoError(t, err)
	m := models["repeat_1"]["lin_reg"]
	require.NotNil(t, m)
	table, err := dataset.ReadData(cfg.DataPath, cfg.DemoPath)
	require.NoError(t, err)
	pred, err := m.Predict(table.Subset(results["repeat_1"]["lin_reg"].TestIdx).X())
	require.NoError(t, err)
	r, _ := pred.Dims()
	assert.Equal(t, 20, r)

	raw, err := os.ReadFile(filepath.Join(dir, "toy.lin_reg"+MetaExt))
	require.NoError(t, err)
	var meta RunMeta
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, tr.RunID(), meta.RunID)
	assert.Equal(t, "LiR", meta.Label)
	assert.Equal(t, 20, meta.Samples)
	assert.Equal(t, "repeat_1", meta.Repeat)
}

func TestTrainerCancelled(t *testing.T) {
	cfg := testConfig(t, 40)
	tr, err := NewTrainer(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = tr.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NoFileExists(t, filepath.Join(cfg.ResultsDir, "ixi", "toy.lin_reg"+ResultsExt))
}

func TestWritePredictions(t *testing.T) {
	cfg := testConfig(t, 40)
	cfg.Models = []string{"lin_reg", "ridge"}
	tr, err := NewTrainer(cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Run(context.Background()))

	path, err := WritePredictions(cfg.ResultsDir, "ixi")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ResultsDir, "ixi", "ixi_all_models_pred.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"site", "subject", "age", "gender", "toy + lin_reg", "toy + ridge"}, records[0])
	require.Len(t, records, 41)
	assert.Equal(t, []string{"ixi", "sub-00", "20", "F"}, records[1][:4])
	assert.Equal(t, "59", records[40][2])
	for _, rec := range records[1:] {
		assert.NotEmpty(t, rec[4])
		assert.NotEmpty(t, rec[5])
	}
}

func TestCollectPredictionsEmptyDir(t *testing.T) {
	_, err := CollectPredictions(t.TempDir())
	assert.Error(t, err)
}

// Every model of the table trains, persists and predicts the same after
// being reloaded, with and without PCA.
func TestTrainerAllModelsRoundTrip(t *testing.T) {
	slow := map[string]bool{"gauss": true, "rf": true}
	for _, id := range ModelIDs() {
		for _, pca := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/pca=%t", id, pca), func(t *testing.T) {
				if slow[id] && testing.Short() {
					t.Skip("slow model")
				}
				cfg := testConfig(t, 40)
				cfg.Models = []string{id}
				cfg.PCA = pca
				tr, err := NewTrainer(cfg)
				require.NoError(t, err)
				require.NoError(t, tr.Run(context.Background()))

				dir := filepath.Join(cfg.ResultsDir, "ixi")
				results, err := LoadResults(ArtefactPath(dir, "toy", id, ResultsExt))
				require.NoError(t, err)
				models, err := LoadModels(ArtefactPath(dir, "toy", id, ModelsExt))
				require.NoError(t, err)
				table, err := dataset.ReadData(cfg.DataPath, cfg.DemoPath)
				require.NoError(t, err)

				for _, key := range []string{"repeat_0", "repeat_1"} {
					r := results[key][id]
					m := models[key][id]
					require.NotNil(t, m, key)
					pred, err := m.Predict(table.Subset(r.TestIdx).X())
					require.NoError(t, err)
					rows, _ := pred.Dims()
					require.Equal(t, len(r.Predictions), rows)
					for i, want := range r.Predictions {
						assert.False(t, math.IsNaN(want), "%s row %d", key, i)
						assert.InDelta(t, want, pred.At(i, 0), 1e-9, "%s row %d", key, i)
					}
				}

				raw, err := os.ReadFile(ArtefactPath(dir, "toy", id, MetaExt))
				require.NoError(t, err)
				var meta RunMeta
				require.NoError(t, json.Unmarshal(raw, &meta))
				assert.Equal(t, pca, meta.PCA)
				if id == "rf" {
					require.NotEmpty(t, meta.FeatureImportances)
					sum := 0.0
					for _, v := range meta.FeatureImportances {
						sum += v
					}
					assert.InDelta(t, 1.0, sum, 1e-9)
				} else {
					assert.Empty(t, meta.FeatureImportances)
				}
			})
		}
	}
}

func TestNewResultRejectsNonFinitePredictions(t *testing.T) {
	test := &dataset.FeatureTable{
		Subjects: []dataset.Subject{
			{Site: "ixi", Subject: "sub-00", Age: 20},
			{Site: "ixi", Subject: "sub-01", Age: 30},
		},
		FeatureNames: []string{"f_a"},
		Rows:         [][]float64{{20}, {30}},
	}

	_, err := newResult(test, []int{0, 1}, mat.NewDense(2, 1, []float64{21, 29}))
	require.NoError(t, err)

	_, err = newResult(test, []int{0, 1}, mat.NewDense(2, 1, []float64{21, math.NaN()}))
	var numErr *errors.NumericalInstabilityError
	require.True(t, errors.As(err, &numErr), "got %v", err)
	assert.Equal(t, "predict", numErr.Operation)
}
