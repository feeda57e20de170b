package linear

// Option is a function that configures ElasticNet
type Option func(*ElasticNet)

// WithL1Ratio sets the mix between the L1 (1) and L2 (0) penalties
func WithL1Ratio(ratio float64) Option {
	return func(en *ElasticNet) {
		en.L1Ratio = ratio
	}
}

// WithNLambda sets the length of the regularization path
func WithNLambda(n int) Option {
	return func(en *ElasticNet) {
		en.NLambda = n
	}
}

// WithMinLambdaRatio sets the smallest lambda as a fraction of the largest.
// Zero picks 1e-4 when samples outnumber features, 0.01 otherwise.
func WithMinLambdaRatio(ratio float64) Option {
	return func(en *ElasticNet) {
		en.MinLambdaRatio = ratio
	}
}

// WithNSplits sets the number of folds used to choose lambda
func WithNSplits(n int) Option {
	return func(en *ElasticNet) {
		en.NSplits = n
	}
}

// WithCutPoint sets how many standard errors below the best score the
// chosen lambda may fall
func WithCutPoint(cut float64) Option {
	return func(en *ElasticNet) {
		en.CutPoint = cut
	}
}

// WithTol sets the tolerance for the optimization
func WithTol(tol float64) Option {
	return func(en *ElasticNet) {
		en.Tol = tol
	}
}

// WithMaxIter sets the coordinate descent sweep limit per lambda
func WithMaxIter(n int) Option {
	return func(en *ElasticNet) {
		en.MaxIter = n
	}
}

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(en *ElasticNet) {
		en.FitIntercept = fit
	}
}

// WithRandomState seeds the lambda selection folds
func WithRandomState(seed int) Option {
	return func(en *ElasticNet) {
		en.RandomState = seed
	}
}
