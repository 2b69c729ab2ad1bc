package track

import "sort"

// MatcherKind selects the detection-to-track assignment algorithm.
type MatcherKind string

const (
	// MatcherGreedy matches pairs in descending IoU order. Deterministic:
	// equal-IoU ties prefer the track with the smaller ID, then the
	// detection with the smaller index.
	MatcherGreedy MatcherKind = "greedy"

	// MatcherHungarian solves the globally optimal assignment.
	MatcherHungarian MatcherKind = "hungarian"
)

// greedyAssign matches detections (rows) to tracks (columns) greedily by
// descending IoU. Pairs with IoU at or below threshold are never matched:
// the gate requires strict inequality, so an overlap exactly at the
// threshold is a non-match. Columns must be ordered by ascending track ID
// so the tie-break resolves to the smaller ID.
//
// Returns assignments[d] = column index, or -1 if detection d is unmatched.
func greedyAssign(iou [][]float64, threshold float64) []int {
	n := len(iou)
	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	if n == 0 {
		return assignments
	}

	type pair struct {
		det   int
		col   int
		value float64
	}
	var pairs []pair
	for d := range iou {
		for t, v := range iou[d] {
			if v > threshold {
				pairs = append(pairs, pair{det: d, col: t, value: v})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].value != pairs[j].value {
			return pairs[i].value > pairs[j].value
		}
		if pairs[i].col != pairs[j].col {
			return pairs[i].col < pairs[j].col
		}
		return pairs[i].det < pairs[j].det
	})

	usedCol := make(map[int]bool, len(iou[0]))
	for _, p := range pairs {
		if assignments[p.det] != -1 || usedCol[p.col] {
			continue
		}
		assignments[p.det] = p.col
		usedCol[p.col] = true
	}
	return assignments
}

// hungarianGatedAssign wraps hungarianAssign with the same IoU gate the
// greedy matcher applies: pairs at or below the threshold are forbidden.
func hungarianGatedAssign(iou [][]float64, threshold float64) []int {
	n := len(iou)
	if n == 0 {
		return nil
	}
	cost := make([][]float64, n)
	for d := range iou {
		cost[d] = make([]float64, len(iou[d]))
		for t, v := range iou[d] {
			if v > threshold {
				cost[d][t] = 1 - v
			} else {
				cost[d][t] = hungarianInf
			}
		}
	}
	return hungarianAssign(cost)
}
