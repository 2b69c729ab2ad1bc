package track

import "math"

// IoU computes the Intersection-over-Union of two boxes: the ratio of
// the overlapping area to the union area, in [0, 1]. Boxes with zero or
// negative area contribute no overlap.
func IoU(a, b Box) float64 {
	areaA := a.Area()
	areaB := b.Area()
	if areaA == 0 && areaB == 0 {
		return 0
	}

	ix := math.Max(a.X, b.X)
	iy := math.Max(a.Y, b.Y)
	ix2 := math.Min(a.X+a.W, b.X+b.W)
	iy2 := math.Min(a.Y+a.H, b.Y+b.H)

	iw := ix2 - ix
	ih := iy2 - iy
	if iw <= 0 || ih <= 0 {
		return 0
	}

	inter := iw * ih
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func hypot(x, y float64) float64 {
	return math.Sqrt(x*x + y*y)
}
