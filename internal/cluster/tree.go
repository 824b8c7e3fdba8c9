package cluster

// Leaves returns original observation indices in dendrogram order
// (in-order traversal, left child first).
func Leaves(merges []Merge, n int) []int {
	if n == 0 {
		return nil
	}
	if len(merges) == 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}

	out := make([]int, 0, n)
	stack := []int{n + len(merges) - 1}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id < n {
			out = append(out, id)
			continue
		}
		m := merges[id-n]
		stack = append(stack, m.Right, m.Left)
	}
	return out
}

// Tree is dendrogram drawing data. Each merge contributes one U-shaped link:
// ICoord holds its four x positions and DCoord its four heights.
type Tree struct {
	ICoord [][]float64
	DCoord [][]float64
	IVL    []string
	Leaves []int
}

// Dendrogram computes drawing coordinates. Leaf k in display order sits at
// x = 5 + 10k; a link spans the centres of its two children at the merge height.
func Dendrogram(merges []Merge, labels []string) Tree {
	n := len(labels)
	leaves := Leaves(merges, n)

	pos := make(map[int]float64, n)
	ivl := make([]string, len(leaves))
	for k, leaf := range leaves {
		pos[leaf] = 5 + 10*float64(k)
		ivl[k] = labels[leaf]
	}

	t := Tree{
		ICoord: make([][]float64, 0, len(merges)),
		DCoord: make([][]float64, 0, len(merges)),
		IVL:    ivl,
		Leaves: leaves,
	}
	if len(merges) == 0 {
		return t
	}

	var walk func(id int) (x, h float64)
	walk = func(id int) (float64, float64) {
		if id < n {
			return pos[id], 0
		}
		m := merges[id-n]
		ua, uah := walk(m.Left)
		ub, ubh := walk(m.Right)
		t.ICoord = append(t.ICoord, []float64{ua, ua, ub, ub})
		t.DCoord = append(t.DCoord, []float64{uah, m.Distance, m.Distance, ubh})
		return (ua + ub) / 2, m.Distance
	}
	walk(n + len(merges) - 1)
	return t
}
