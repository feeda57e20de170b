// Package pipeline chains preprocessing transformers and a final regressor
// into a single estimator.
package pipeline

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/pkg/errors"
)

// Step is a named transformer.
type Step struct {
	Name        string
	Transformer model.Transformer
}

// Pipeline fits its steps in order, each on the output of the previous
// one, and fits Estimator on the result.
type Pipeline struct {
	model.BaseEstimator

	Steps     []Step
	Estimator model.Regressor
}

// New creates a pipeline.
func New(estimator model.Regressor, steps ...Step) *Pipeline {
	return &Pipeline{Steps: steps, Estimator: estimator}
}

// Fit fits every step and then the estimator.
func (p *Pipeline) Fit(X, y mat.Matrix) error {
	if p.Estimator == nil {
		return errors.NewValueError("Pipeline.Fit", "no estimator")
	}
	Xt := X
	for _, s := range p.Steps {
		out, err := s.Transformer.FitTransform(Xt)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %s", s.Name)
		}
		Xt = out
	}
	if err := p.Estimator.Fit(Xt, y); err != nil {
		return err
	}
	p.SetFitted()
	return nil
}

// Transform applies the fitted steps.
func (p *Pipeline) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Transform")
	}
	Xt := X
	for _, s := range p.Steps {
		out, err := s.Transformer.Transform(Xt)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %s", s.Name)
		}
		Xt = out
	}
	return Xt, nil
}

// Predict transforms X and predicts with the estimator.
func (p *Pipeline) Predict(X mat.Matrix) (mat.Matrix, error) {
	Xt, err := p.Transform(X)
	if err != nil {
		return nil, err
	}
	return p.Estimator.Predict(Xt)
}

// SetParams forwards to the estimator.
func (p *Pipeline) SetParams(params map[string]interface{}) error {
	setter, ok := p.Estimator.(model.ParameterSetter)
	if !ok {
		return errors.NewValueError("Pipeline.SetParams", fmt.Sprintf("%T does not accept parameters", p.Estimator))
	}
	return setter.SetParams(params)
}

// GetParams returns the estimator's parameters, if it exposes them.
func (p *Pipeline) GetParams() map[string]interface{} {
	if getter, ok := p.Estimator.(model.ParameterGetter); ok {
		return getter.GetParams()
	}
	return map[string]interface{}{}
}

// String lists the step names and the estimator type.
func (p *Pipeline) String() string {
	names := make([]string, 0, len(p.Steps)+1)
	for _, s := range p.Steps {
		names = append(names, s.Name)
	}
	names = append(names, fmt.Sprintf("%T", p.Estimator))
	return "Pipeline(" + strings.Join(names, " -> ") + ")"
}
