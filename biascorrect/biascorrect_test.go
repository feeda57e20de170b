package biascorrect

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

func predictionsCSV(n int, session bool, pred func(age float64) float64) string {
	var b strings.Builder
	b.WriteString("site,subject,age,gender")
	if session {
		b.WriteString(",session")
	}
	b.WriteString(",S4_R4 + rvr_lin,S4_R4 + gauss\n")
	for i := 0; i < n; i++ {
		age := float64(20 + i)
		fmt.Fprintf(&b, "ixi,sub-%02d,%g,F", i, age)
		if session {
			b.WriteString(",ses-1")
		}
		fmt.Fprintf(&b, ",%g,%g\n", pred(age), age+float64(i%4)-1.5)
	}
	return b.String()
}

func TestValidateSite(t *testing.T) {
	for _, s := range Sites {
		assert.NoError(t, ValidateSite(s))
	}
	var verr *errors.ValidationError
	require.True(t, errors.As(ValidateSite("oasis"), &verr))
	assert.Equal(t, "dataset_flag", verr.ParamName)
}

func TestReadTable(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader(predictionsCSV(10, true, func(a float64) float64 { return a })))
	require.NoError(t, err)
	assert.Equal(t, []string{"site", "subject", "age", "gender", "session"}, tbl.IDHeader)
	assert.Equal(t, []string{"S4_R4 + rvr_lin", "S4_R4 + gauss"}, tbl.Workflows)
	assert.Equal(t, 10, tbl.Len())
	assert.Equal(t, 29.0, tbl.Ages[9])

	tbl, err = ReadTable(strings.NewReader(predictionsCSV(10, false, func(a float64) float64 { return a })))
	require.NoError(t, err)
	assert.Len(t, tbl.IDHeader, 4)

	_, err = ReadTable(strings.NewReader("site,subject,age,gender,w\nixi,s1,30,F,\n"))
	assert.Error(t, err, "empty prediction cell")
}

func TestFoldsPartition(t *testing.T) {
	folds, err := Folds(23)
	require.NoError(t, err)
	require.Len(t, folds, NSplits)
	seen := make([]int, 23)
	for _, f := range folds {
		assert.InDelta(t, 23.0/5, float64(len(f.TestIndices)), 1)
		for _, i := range f.TestIndices {
			seen[i]++
		}
	}
	for i, c := range seen {
		assert.Equal(t, 1, c, "row %d", i)
	}
}

func TestCorrectColumn(t *testing.T) {
	ages := make([]float64, 30)
	for i := range ages {
		ages[i] = float64(20 + 2*i)
	}
	folds, err := Folds(len(ages))
	require.NoError(t, err)

	t.Run("identity is unchanged", func(t *testing.T) {
		out, fits, err := CorrectColumn(ages, ages, folds)
		require.NoError(t, err)
		for _, f := range fits {
			assert.InDelta(t, 1.0, f.Slope, 1e-9)
			assert.InDelta(t, 0.0, f.Intercept, 1e-7)
		}
		for i := range ages {
			assert.InDelta(t, ages[i], out[i], 1e-7)
		}
	})

	t.Run("linear bias is removed", func(t *testing.T) {
		pred := make([]float64, len(ages))
		for i, a := range ages {
			pred[i] = 0.6*a + 18
		}
		out, fits, err := CorrectColumn(ages, pred, folds)
		require.NoError(t, err)
		assert.Len(t, fits, NSplits)
		for i := range ages {
			assert.InDelta(t, ages[i], out[i], 1e-7)
		}
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, _, err := CorrectColumn(ages, ages[:3], folds)
		assert.Error(t, err)
	})
}

func TestCorrectTable(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader(predictionsCSV(25, false, func(a float64) float64 { return 0.5*a + 25 })))
	require.NoError(t, err)
	out, fits, err := Correct(tbl)
	require.NoError(t, err)
	assert.Len(t, fits, 2*NSplits)
	assert.Equal(t, "S4_R4 + rvr_lin", fits[0].Workflow)
	for i, a := range out.Ages {
		assert.InDelta(t, a, out.Values[0][i], 1e-7)
	}
	// input untouched
	assert.InDelta(t, 35.0, tbl.Values[0][0], 1e-12)

	var buf bytes.Buffer
	require.NoError(t, out.WriteTo(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 26)
	assert.Equal(t, "site,subject,age,gender,S4_R4 + rvr_lin,S4_R4 + gauss", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "ixi,sub-00,20,F,"))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "enki"), 0o755))
	in := InputPath(dir, "enki")
	require.NoError(t, os.WriteFile(in, []byte(predictionsCSV(20, true, func(a float64) float64 { return a + 3 })), 0o644))

	plot := filepath.Join(dir, "enki", "bc.png")
	path, err := Run(Config{ResultsDir: dir, Site: "enki", PlotPath: plot})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "enki", "enki_all_models_pred_BC.csv"), path)
	assert.FileExists(t, plot)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	out, err := ReadTable(f)
	require.NoError(t, err)
	assert.Len(t, out.IDHeader, 5)
	for i, a := range out.Ages {
		assert.InDelta(t, a, out.Values[0][i], 1e-6)
	}
}

func TestRunMissingInput(t *testing.T) {
	provider, _ := log.NewTestLoggerProvider(log.LevelDebug)
	log.SetProvider(provider)
	defer log.SetProvider(log.NewConsoleProvider(log.LevelInfo))

	dir := t.TempDir()
	path, err := Run(Config{ResultsDir: dir, Site: "camcan"})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.True(t, provider.Logger().ContainsMessage("camcan_all_models_pred.csv not found"))
	assert.NoFileExists(t, OutputPath(dir, "camcan"))
}

func TestRunInvalidSite(t *testing.T) {
	_, err := Run(Config{ResultsDir: t.TempDir(), Site: "oasis"})
	assert.Error(t, err)
}
