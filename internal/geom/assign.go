package geom

import "math"

// AssignRoots pairs previous sibling positions with freshly computed roots
// so that the total displacement is minimal. The result has one entry per
// previous position: the index into roots it should move to, or -1 when
// there are fewer roots than siblings and that sibling is left unmatched.
//
// Sibling counts are tiny (two roots at most for conics), so the search
// enumerates injective assignments exhaustively. Ties keep the earlier
// assignment in enumeration order, which makes the result deterministic.
func AssignRoots(prev, roots []Vec) []int {
	out := make([]int, len(prev))
	for i := range out {
		out[i] = -1
	}
	if len(prev) == 0 || len(roots) == 0 {
		return out
	}

	best := math.Inf(1)
	cur := make([]int, len(prev))
	used := make([]bool, len(roots))
	matched := min(len(prev), len(roots))

	var walk func(i, count int, cost float64)
	walk = func(i, count int, cost float64) {
		if cost >= best {
			return
		}
		if i == len(prev) {
			if count == matched {
				best = cost
				copy(out, cur)
			}
			return
		}
		for j := range roots {
			if used[j] {
				continue
			}
			used[j] = true
			cur[i] = j
			walk(i+1, count+1, cost+Dist(prev[i], roots[j]))
			used[j] = false
		}
		// Leave sibling i unmatched only if the others can still absorb
		// every root.
		if len(prev)-i-1 >= matched-count {
			cur[i] = -1
			walk(i+1, count, cost)
		}
	}
	walk(0, 0, 0)
	return out
}
