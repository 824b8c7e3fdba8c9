package domain

import "errors"

// ErrInput marks caller mistakes that abort a run before any simulation:
// insufficient data, too few tickers, infeasible weight bounds, out-of-range windows.
var ErrInput = errors.New("invalid input")
