// Package brainage predicts brain age from neuroimaging features.
//
// The module holds three independent drivers, each exposed as a subcommand
// of cmd/brainage:
//
//   - train: nested cross-validation of a fixed table of regression models
//     on one site's feature set. Outer test folds are stratified on the age
//     ordering, the inner repeated stratified k-fold on binned age.
//   - correct: linear age-bias correction of out-of-fold predictions.
//   - aggregate: CV and held-out summaries across feature sets and models.
//
// # Quick Start
//
//	brainage train --demo-path ixi_demo.csv --data-path ixi_S4_R4.csv \
//	    --output ixi/ixi_S4_R4 --models rvr_lin,gauss --pca 0
//	brainage predictions --site ixi
//	brainage correct --dataset-flag ixi
//	brainage aggregate --prefix ixi/ixi_
//
// The estimators can also be used directly:
//
//	model := linear.NewLinearRegression()
//	if err := model.Fit(X, y); err != nil {
//	    log.Fatal(err)
//	}
//	predictions, err := model.Predict(XTest)
//
// # Packages
//
//   - linear: LinearRegression, ElasticNet with a cross-validated lambda path
//   - kernel: KernelRidge, GaussianProcessRegressor, RVR
//   - ensemble: RandomForestRegressor, GradientBoostingRegressor
//   - preprocessing: VarianceThreshold, StandardScaler, PCA
//   - pipeline: transformer chain ending in an estimator
//   - cv: Cut, k-fold splitters, CrossValidate, GridSearchCV
//   - metrics: MAE, MSE, R², Pearson correlation and named scorers
//   - dataset: feature and demographics loading and cleaning
//   - workflow: model table, training driver, prediction collection
//   - biascorrect, aggregate: the other two drivers
//   - config: viper-backed configuration
//   - core/model: estimator interfaces, state and gob persistence
//   - pkg/errors, pkg/log, pkg/chart: errors, structured logging, plots
package brainage
