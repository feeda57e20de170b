package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/brainage/cv"
	"github.com/YuminosukeSato/brainage/pipeline"
	"github.com/YuminosukeSato/brainage/pkg/errors"
)

func TestModelTable(t *testing.T) {
	assert.Equal(t, []string{
		"lin_reg", "ridge", "rf", "rvr_lin", "kernel_ridge",
		"gauss", "lasso", "elasticnet", "rvr_poly", "xgb",
	}, ModelIDs())

	labels := map[string]string{}
	for _, m := range Models() {
		labels[m.ID] = m.Label
	}
	assert.Equal(t, "RVRlin", labels["rvr_lin"])
	assert.Equal(t, "GPR", labels["gauss"])
	assert.Equal(t, "XGB", labels["xgb"])
}

func TestLookup(t *testing.T) {
	spec, err := Lookup("kernel_ridge")
	require.NoError(t, err)
	assert.Len(t, spec.Grid.Combinations(), 18)
	assert.Equal(t, 5, spec.GridSplits)

	_, err = Lookup("svm")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownModel))
}

func TestParseModels(t *testing.T) {
	ids, err := ParseModels("lin_reg, rvr_lin,,gauss")
	require.NoError(t, err)
	assert.Equal(t, []string{"lin_reg", "rvr_lin", "gauss"}, ids)

	_, err = ParseModels("lin_reg,svm")
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "models", verr.ParamName)

	_, err = ParseModels(" , ")
	assert.Error(t, err)
}

func TestNewWorkflow(t *testing.T) {
	spec, err := Lookup("rvr_lin")
	require.NoError(t, err)

	p, ok := NewWorkflow(spec, true, 200).(*pipeline.Pipeline)
	require.True(t, ok)
	assert.Equal(t, "Pipeline(variancethreshold -> zscore -> pca -> *kernel.RVR)", p.String())

	p, ok = NewWorkflow(spec, false, 200).(*pipeline.Pipeline)
	require.True(t, ok)
	assert.Len(t, p.Steps, 2)

	spec, err = Lookup("xgb")
	require.NoError(t, err)
	gs, ok := NewWorkflow(spec, false, 200).(*cv.GridSearchCV)
	require.True(t, ok)
	assert.Equal(t, 5, gs.CV.GetNSplits())
}
