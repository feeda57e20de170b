package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う。戻り値は n×1
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Regressor is a supervised regression model.
type Regressor interface {
	Fitter
	Predictor
}

// Factory builds a fresh, unfitted regressor. Cross-validation calls it once
// per fold so no state leaks between folds.
type Factory func() Regressor

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// ParameterSetter is implemented by estimators whose hyperparameters can be
// set by name, as grid search does.
type ParameterSetter interface {
	SetParams(params map[string]interface{}) error
}

// ParameterGetter exposes an estimator's hyperparameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
