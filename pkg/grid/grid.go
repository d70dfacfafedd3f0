// Package grid aligns pixel dimensions to the training grid.
//
// Training resolutions stored in dataset metadata must be multiples of
// the grid size on both axes, and at least as large as the actual image.
package grid

// Size is the alignment unit for training resolutions.
const Size = 64

// RoundUp returns the smallest Size-multiple that fits v.
// Non-positive values map to one full grid cell.
func RoundUp(v int) int {
	if v <= 0 {
		return Size
	}
	if v%Size == 0 {
		return v
	}
	return (v/Size + 1) * Size
}

// Aligned computes the training resolution for an image of the given
// actual pixel size. The result is [height, width].
func Aligned(height, width int) [2]int {
	return [2]int{RoundUp(height), RoundUp(width)}
}

// Merged combines the actual [height, width] of an image with a
// previously stored training resolution. Each axis takes the max of the
// two before rounding, so a stored value never shrinks. A stored slice
// that is not a pair is ignored.
func Merged(actual [2]int, stored []int) [2]int {
	h, w := actual[0], actual[1]
	if len(stored) == 2 {
		if stored[0] > h {
			h = stored[0]
		}
		if stored[1] > w {
			w = stored[1]
		}
	}
	return Aligned(h, w)
}
