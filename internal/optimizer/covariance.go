package optimizer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"portfolio-lab/internal/domain"
)

// largeVariance stands in for a degenerate cluster variance so that the
// cluster receives a vanishing share of the weight.
const largeVariance = 1e12

// returnsDense copies returns into a T×N matrix with NaN replaced by 0.
func returnsDense(r domain.ReturnsMatrix) *mat.Dense {
	t, n := r.Len(), r.NumAssets()
	if t == 0 || n == 0 {
		return nil
	}
	x := mat.NewDense(t, n, nil)
	for i, row := range r.Values {
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				v = 0
			}
			x.Set(i, j, v)
		}
	}
	return x
}

func requireObservations(r domain.ReturnsMatrix) error {
	if r.NumAssets() == 0 {
		return fmt.Errorf("%w: no assets", domain.ErrInput)
	}
	if r.Len() < 2 {
		return fmt.Errorf("%w: need at least 2 return observations, got %d", domain.ErrInput, r.Len())
	}
	return nil
}

// SampleCovariance returns the unbiased (n-1) covariance of daily returns.
func SampleCovariance(r domain.ReturnsMatrix) (*mat.SymDense, error) {
	if err := requireObservations(r); err != nil {
		return nil, err
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, returnsDense(r), nil)
	return &cov, nil
}

// correlationFromCovariance converts a covariance matrix to correlations.
// Zero-variance assets produce NaN, which is mapped to 0; values are
// clipped to [-1, 1].
func correlationFromCovariance(cov *mat.SymDense) [][]float64 {
	n := cov.SymmetricDim()
	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			c := cov.At(i, j) / math.Sqrt(cov.At(i, i)*cov.At(j, j))
			if math.IsNaN(c) || math.IsInf(c, 0) {
				c = 0
			}
			corr[i][j] = math.Max(-1, math.Min(1, c))
		}
	}
	return corr
}

// LedoitWolf returns the covariance shrunk toward a scaled identity,
// annualized by tradingDays, and the shrinkage intensity.
// Returns are centred; the empirical covariance uses the biased (1/T) estimator.
func LedoitWolf(r domain.ReturnsMatrix, tradingDays int) (*mat.SymDense, float64, error) {
	if err := requireObservations(r); err != nil {
		return nil, 0, err
	}
	x := returnsDense(r)
	t, n := x.Dims()
	tf, nf := float64(t), float64(n)

	xc := mat.DenseCopyOf(x)
	for j := 0; j < n; j++ {
		m := stat.Mean(mat.Col(nil, j, x), nil)
		for i := 0; i < t; i++ {
			xc.Set(i, j, xc.At(i, j)-m)
		}
	}

	emp := mat.NewSymDense(n, nil)
	emp.SymOuterK(1/tf, xc.T())

	shrinkage := 0.0
	if n > 1 {
		x2 := mat.NewDense(t, n, nil)
		x2.MulElem(xc, xc)

		trace := mat.Trace(emp)
		mu := trace / nf

		var x2tx2 mat.Dense
		x2tx2.Mul(x2.T(), x2)
		betaRaw := mat.Sum(&x2tx2)

		deltaRaw := 0.0
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				deltaRaw += emp.At(i, j) * emp.At(i, j)
			}
		}

		beta := (betaRaw/tf - deltaRaw) / (nf * tf)
		delta := (deltaRaw - 2*mu*trace + nf*mu*mu) / nf
		beta = math.Min(beta, delta)
		if beta != 0 && delta != 0 {
			shrinkage = beta / delta
		}

		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				v := (1 - shrinkage) * emp.At(i, j)
				if i == j {
					v += shrinkage * mu
				}
				emp.SetSym(i, j, v)
			}
		}
	}

	emp.ScaleSym(float64(annualization(tradingDays)), emp)
	return emp, shrinkage, nil
}

// checkQuality rejects covariance matrices that are not positive definite
// or whose condition number exceeds domain.CovarianceConditionThreshold.
// A failed eigen decomposition is not treated as an error.
func checkQuality(cov *mat.SymDense) error {
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, false); !ok {
		return nil
	}
	vals := eig.Values(nil)
	lo, hi := floats.Min(vals), floats.Max(vals)
	if lo <= 0 {
		return fmt.Errorf("%w: covariance matrix is not positive definite", ErrIllConditioned)
	}
	if cond := hi / lo; cond > domain.CovarianceConditionThreshold {
		return fmt.Errorf("%w: condition number %.0f", ErrIllConditioned, cond)
	}
	return nil
}

// EMAReturns estimates annualized expected returns from an exponentially
// weighted mean of daily returns (span = number of observations, adjusted
// weights), compounded: (1 + ewm)^tradingDays - 1. NaN cells are skipped.
func EMAReturns(r domain.ReturnsMatrix, tradingDays int) []float64 {
	n := r.NumAssets()
	mu := make([]float64, n)
	t := r.Len()
	if t == 0 {
		return mu
	}
	alpha := 2 / (float64(t) + 1)
	td := float64(annualization(tradingDays))
	for j := 0; j < n; j++ {
		num, den := 0.0, 0.0
		for i, row := range r.Values {
			v := row[j]
			if math.IsNaN(v) {
				continue
			}
			w := math.Pow(1-alpha, float64(t-1-i))
			num += w * v
			den += w
		}
		if den == 0 {
			continue
		}
		mu[j] = math.Pow(1+num/den, td) - 1
	}
	return mu
}

// MeanHistoricalReturns returns the compounded annual growth of each asset:
// prod(1+r)^(tradingDays/count) - 1.
func MeanHistoricalReturns(r domain.ReturnsMatrix, tradingDays int) []float64 {
	n := r.NumAssets()
	mu := make([]float64, n)
	td := float64(annualization(tradingDays))
	for j := 0; j < n; j++ {
		growth, count := 1.0, 0
		for _, row := range r.Values {
			if v := row[j]; !math.IsNaN(v) {
				growth *= 1 + v
				count++
			}
		}
		if count > 0 && growth > 0 {
			mu[j] = math.Pow(growth, td/float64(count)) - 1
		}
	}
	return mu
}

// ShrinkToGrandMean pulls each estimate toward the cross-sectional mean:
// shrunk = lambda*grand + (1-lambda)*mu.
func ShrinkToGrandMean(mu []float64, lambda float64) []float64 {
	out := make([]float64, len(mu))
	if len(mu) == 0 {
		return out
	}
	grand := floats.Sum(mu) / float64(len(mu))
	for i, m := range mu {
		out[i] = lambda*grand + (1-lambda)*m
	}
	return out
}

// portfolioVariance returns w'Σw.
func portfolioVariance(w []float64, cov mat.Symmetric) float64 {
	v := mat.NewVecDense(len(w), w)
	return mat.Inner(v, cov, v)
}

func annualization(tradingDays int) int {
	if tradingDays <= 0 {
		return domain.TradingDaysPerYear
	}
	return tradingDays
}
