package optimizer

import "errors"

// Errors returned by allocators. The dispatcher turns them into fallbacks.
var (
	ErrInfeasible     = errors.New("weight bounds are infeasible")
	ErrIllConditioned = errors.New("covariance matrix is ill-conditioned")
	ErrNotConverged   = errors.New("optimization did not converge")
)
