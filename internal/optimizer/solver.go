package optimizer

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// projectionPenalty weighs the distance between the free variable and its
// projection onto the feasible set.
const projectionPenalty = 1000.0

// acceptedStatuses are the optimize statuses treated as convergence.
var acceptedStatuses = map[optimize.Status]bool{
	optimize.Success:             true,
	optimize.GradientThreshold:   true,
	optimize.FunctionConvergence: true,
	optimize.MethodConverge:      true,
}

// checkBounds reports ErrInfeasible when no fully invested vector of n
// weights fits inside [lo, hi].
func checkBounds(n int, lo, hi float64) error {
	if n == 0 {
		return fmt.Errorf("%w: no assets", ErrInfeasible)
	}
	if lo > hi {
		return fmt.Errorf("%w: min weight %.4f above max weight %.4f", ErrInfeasible, lo, hi)
	}
	if float64(n)*lo > 1+1e-9 {
		return fmt.Errorf("%w: %d x min weight %.4f exceeds 1", ErrInfeasible, n, lo)
	}
	if float64(n)*hi < 1-1e-9 {
		return fmt.Errorf("%w: %d x max weight %.4f below 1", ErrInfeasible, n, hi)
	}
	return nil
}

// projectBoxSimplex returns the Euclidean projection of x onto
// {w : sum(w) = 1, lo <= w_i <= hi}. The projection has the form
// w_i = clip(x_i - tau, lo, hi); tau is found by bisection.
// Bounds must be feasible.
func projectBoxSimplex(x []float64, lo, hi float64) []float64 {
	w := make([]float64, len(x))
	if len(x) == 0 {
		return w
	}
	fill := func(tau float64) float64 {
		s := 0.0
		for i, v := range x {
			w[i] = math.Max(lo, math.Min(hi, v-tau))
			s += w[i]
		}
		return s
	}

	// fill is non-increasing in tau: every weight is at hi at tauLo and at lo at tauHi.
	tauLo := floats.Min(x) - hi - 1
	tauHi := floats.Max(x) - lo + 1
	for iter := 0; iter < 200 && tauHi-tauLo > 1e-15; iter++ {
		mid := (tauLo + tauHi) / 2
		if fill(mid) > 1 {
			tauLo = mid
		} else {
			tauHi = mid
		}
	}
	fill((tauLo + tauHi) / 2)
	return w
}

// minimizeOnBox minimizes objective over fully invested weights in [lo, hi].
// The free variable x is mapped to weights by projectBoxSimplex, and the
// projection distance is penalized so the search stays near the feasible set.
// BFGS with a central-difference gradient runs first; Nelder-Mead is the
// fallback when BFGS fails or ends without converging.
func minimizeOnBox(objective func(w []float64) float64, n int, lo, hi float64) ([]float64, error) {
	if err := checkBounds(n, lo, hi); err != nil {
		return nil, err
	}

	f := func(x []float64) float64 {
		w := projectBoxSimplex(x, lo, hi)
		dist := 0.0
		for i := range x {
			d := x[i] - w[i]
			dist += d * d
		}
		return objective(w) + projectionPenalty*dist
	}
	problem := optimize.Problem{
		Func: f,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, f, x, &fd.Settings{Formula: fd.Central})
		},
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}
	settings := &optimize.Settings{
		MajorIterations: 1000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Iterations: 50,
		},
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err != nil || result == nil || !acceptedStatuses[result.Status] {
		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotConverged, err)
		}
		if !acceptedStatuses[result.Status] {
			return nil, fmt.Errorf("%w: status=%v", ErrNotConverged, result.Status)
		}
	}

	w := projectBoxSimplex(result.X, lo, hi)
	for _, v := range w {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("%w: solution contains NaN", ErrNotConverged)
		}
	}
	return w, nil
}
