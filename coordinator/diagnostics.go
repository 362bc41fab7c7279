package coordinator

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// WilsonConfidence computes the Wilson score confidence interval for
// a binomial proportion (successes out of trials), grounded on the
// teacher's hand-rolled Wilson score helper but using gonum's normal
// quantile instead of a fixed z-table.
func WilsonConfidence(successes, trials uint64, confidence float64) (lo, hi float64) {
	if trials == 0 {
		return 0, 0
	}

	n := float64(trials)
	p := float64(successes) / n
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(1 - (1-confidence)/2)

	denom := 1 + (z*z)/n
	center := p + (z*z)/(2*n)
	half := z * math.Sqrt((p*(1-p)+(z*z)/(4*n))/n)

	lo = math.Max(0, (center-half)/denom)
	hi = math.Min(1, (center+half)/denom)
	return lo, hi
}
