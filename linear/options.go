package linear

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// WithRcond sets the relative cutoff for small singular values used by the
// minimum-norm fallback solver. Zero selects machine epsilon times the larger
// dimension of the design matrix.
func WithRcond(rcond float64) Option {
	return func(lr *LinearRegression) {
		lr.Rcond = rcond
	}
}
