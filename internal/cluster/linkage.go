// Package cluster implements agglomerative hierarchical clustering on a
// precomputed distance matrix. Output follows the scipy linkage layout:
// merge k creates cluster N+k from (Left, Right) with Left < Right.
package cluster

import (
	"errors"
	"fmt"
	"math"
)

// Method selects the Lance-Williams update rule.
type Method string

// Supported linkage methods.
const (
	Ward    Method = "ward"
	Average Method = "average"
)

// Errors returned by Linkage.
var (
	ErrNotSquare     = errors.New("distance matrix is not square")
	ErrUnknownMethod = errors.New("unknown linkage method")
)

// Merge is one row of a linkage matrix.
type Merge struct {
	Left     int
	Right    int
	Distance float64
	Size     int
}

// Linkage clusters n observations given their pairwise distances.
// The pair with the smallest distance is merged first; ties go to the pair
// with the lowest cluster ids. Returns n-1 merges.
func Linkage(dist [][]float64, method Method) ([]Merge, error) {
	n := len(dist)
	for i, row := range dist {
		if len(row) != n {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrNotSquare, i, len(row), n)
		}
	}
	if method != Ward && method != Average {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	if n < 2 {
		return nil, nil
	}

	total := 2*n - 1
	d := make([][]float64, total)
	for i := range d {
		d[i] = make([]float64, total)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d[i][j] = dist[i][j]
		}
	}

	size := make([]int, total)
	for i := 0; i < n; i++ {
		size[i] = 1
	}
	active := make([]int, n)
	for i := range active {
		active[i] = i
	}

	merges := make([]Merge, 0, n-1)
	for k := 0; k < n-1; k++ {
		bi, bj := -1, -1
		best := math.Inf(1)
		for x := 0; x < len(active); x++ {
			for y := x + 1; y < len(active); y++ {
				v := d[active[x]][active[y]]
				if v < best {
					best, bi, bj = v, x, y
				}
			}
		}
		if bi < 0 {
			// All remaining distances are NaN or +Inf; merge in id order.
			bi, bj = 0, 1
			best = d[active[0]][active[1]]
		}

		a, b := active[bi], active[bj]
		if a > b {
			a, b = b, a
		}
		id := n + k
		size[id] = size[a] + size[b]
		merges = append(merges, Merge{Left: a, Right: b, Distance: best, Size: size[id]})

		rest := make([]int, 0, len(active)-1)
		for _, c := range active {
			if c == a || c == b {
				continue
			}
			v := update(method, d[c][a], d[c][b], best, size[c], size[a], size[b])
			d[c][id], d[id][c] = v, v
			rest = append(rest, c)
		}
		active = append(rest, id)
	}
	return merges, nil
}

// update is the Lance-Williams distance from cluster c to the union of a and b.
func update(method Method, dca, dcb, dab float64, nc, na, nb int) float64 {
	switch method {
	case Ward:
		t := float64(nc + na + nb)
		v := (float64(nc+na)*dca*dca + float64(nc+nb)*dcb*dcb - float64(nc)*dab*dab) / t
		if v < 0 {
			v = 0
		}
		return math.Sqrt(v)
	default:
		return (float64(na)*dca + float64(nb)*dcb) / float64(na+nb)
	}
}
