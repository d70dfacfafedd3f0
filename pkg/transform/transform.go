// Package transform performs geometry operations on single image files:
// crop, aspect-preserving fit-resize, and padding out to the next
// grid-aligned canvas size.
//
// Every operation rewrites the image in place, preserving the container
// format implied by the file extension, and returns the resulting pixel
// size as [height, width].
package transform

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"capset/pkg/grid"
)

// ErrInvalidInput reports non-positive crop dimensions, a non-positive
// resize bound, or a transform that would produce an empty image.
var ErrInvalidInput = errors.New("invalid transform input")

// Box is an operator-supplied crop rectangle in pixel units. It may lie
// partially outside the image; coordinates are clamped before use.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Status reports whether an extend operation rewrote the file.
type Status string

const (
	StatusUnchanged Status = "unchanged"
	StatusExtended  Status = "extended"
)

// DefaultAnchor places the image centered on the padded canvas.
const DefaultAnchor = "cm"

// File extensions whose container keeps an alpha channel; padding added
// by extend is transparent for these and opaque white otherwise.
var transparentExtensions = map[string]bool{
	".png":  true,
	".webp": true,
}

// Engine executes transforms against image files.
type Engine struct {
	quality int
}

// New returns an Engine with default encoding quality.
func New() *Engine {
	return &Engine{quality: 90}
}

// NewWithQuality returns an Engine using the given JPEG/WebP quality.
func NewWithQuality(quality int) *Engine {
	if quality < 1 || quality > 100 {
		quality = 90
	}
	return &Engine{quality: quality}
}

// Dimensions returns the image's [height, width] without modifying it.
func (e *Engine) Dimensions(path string) ([2]int, error) {
	img, err := Open(path)
	if err != nil {
		return [2]int{}, err
	}
	b := img.Bounds()
	return [2]int{b.Dy(), b.Dx()}, nil
}

// Crop cuts the image down to box, clamped to stay fully inside the
// image, and overwrites the file. Returns the cropped [height, width].
func (e *Engine) Crop(path string, box Box) ([2]int, error) {
	if box.Width <= 0 || box.Height <= 0 {
		return [2]int{}, fmt.Errorf("%w: non-positive crop size %gx%g", ErrInvalidInput, box.Width, box.Height)
	}

	img, err := Open(path)
	if err != nil {
		return [2]int{}, err
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	cropWidth := int(math.Round(box.Width))
	cropHeight := int(math.Round(box.Height))
	if cropWidth <= 0 || cropHeight <= 0 {
		return [2]int{}, fmt.Errorf("%w: crop rounds to empty", ErrInvalidInput)
	}
	if cropWidth > width {
		cropWidth = width
	}
	if cropHeight > height {
		cropHeight = height
	}

	left := clampInt(int(math.Round(box.X)), 0, width-cropWidth)
	top := clampInt(int(math.Round(box.Y)), 0, height-cropHeight)

	cropped := imaging.Crop(img, image.Rect(left, top, left+cropWidth, top+cropHeight))
	if err := e.save(cropped, path); err != nil {
		return [2]int{}, err
	}
	return [2]int{cropHeight, cropWidth}, nil
}

// ResizeToFit shrinks the image so its longest side is at most maxSide,
// preserving aspect ratio. Images already within the bound are left
// untouched. Never upsizes.
func (e *Engine) ResizeToFit(path string, maxSide int) ([2]int, error) {
	if maxSide <= 0 {
		return [2]int{}, fmt.Errorf("%w: max side %d", ErrInvalidInput, maxSide)
	}

	img, err := Open(path)
	if err != nil {
		return [2]int{}, err
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	longest := width
	if height > longest {
		longest = height
	}
	if longest <= maxSide {
		return [2]int{height, width}, nil
	}

	scale := float64(maxSide) / float64(longest)
	newWidth := atLeastOne(int(math.Round(float64(width) * scale)))
	newHeight := atLeastOne(int(math.Round(float64(height) * scale)))

	// Rounding can nudge an axis past the bound; re-derive the short
	// axis from the original aspect ratio with the long axis pinned.
	if newWidth > maxSide || newHeight > maxSide {
		aspect := float64(width) / float64(height)
		if newWidth >= newHeight {
			newWidth = maxSide
			newHeight = atLeastOne(int(math.Round(float64(newWidth) / aspect)))
		} else {
			newHeight = maxSide
			newWidth = atLeastOne(int(math.Round(float64(newHeight) * aspect)))
		}
	}

	if newWidth == width && newHeight == height {
		return [2]int{height, width}, nil
	}

	resized := imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
	if err := e.save(resized, path); err != nil {
		return [2]int{}, err
	}
	return [2]int{newHeight, newWidth}, nil
}

// ExtendToGrid pads the image up to the next grid-aligned size on each
// axis, placing the original according to anchor. Anchors combine a
// horizontal choice (l, c, r) with a vertical one (u, m, d); malformed
// anchors fall back to centered. Returns StatusUnchanged without
// touching the file when both axes are already aligned.
func (e *Engine) ExtendToGrid(path, anchor string) ([2]int, Status, error) {
	img, err := Open(path)
	if err != nil {
		return [2]int{}, "", err
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	targetWidth := grid.RoundUp(width)
	targetHeight := grid.RoundUp(height)
	if targetWidth == width && targetHeight == height {
		return [2]int{height, width}, StatusUnchanged, nil
	}

	offsetX, offsetY := anchorOffset(anchor, targetWidth-width, targetHeight-height)

	var canvas image.Image
	if transparentExtensions[strings.ToLower(filepath.Ext(path))] {
		canvas = imaging.Paste(
			imaging.New(targetWidth, targetHeight, color.NRGBA{}),
			img, image.Pt(offsetX, offsetY))
	} else if isGray(img) {
		gray := image.NewGray(image.Rect(0, 0, targetWidth, targetHeight))
		draw.Draw(gray, gray.Bounds(), image.White, image.Point{}, draw.Src)
		draw.Draw(gray, image.Rect(offsetX, offsetY, offsetX+width, offsetY+height), img, bounds.Min, draw.Src)
		canvas = gray
	} else {
		canvas = imaging.Paste(
			imaging.New(targetWidth, targetHeight, color.NRGBA{R: 255, G: 255, B: 255, A: 255}),
			img, image.Pt(offsetX, offsetY))
	}

	if err := e.save(canvas, path); err != nil {
		return [2]int{}, "", err
	}
	return [2]int{targetHeight, targetWidth}, StatusExtended, nil
}

// anchorOffset maps an anchor code to the pixel offset of the original
// image on the padded canvas. Unknown characters center that axis.
func anchorOffset(anchor string, extraWidth, extraHeight int) (int, int) {
	normalized := strings.ToLower(strings.TrimSpace(anchor))
	if len(normalized) < 2 {
		normalized = DefaultAnchor
	}

	offsetX := extraWidth / 2
	switch normalized[0] {
	case 'l':
		offsetX = 0
	case 'r':
		offsetX = extraWidth
	}

	offsetY := extraHeight / 2
	switch normalized[1] {
	case 'u':
		offsetY = 0
	case 'd':
		offsetY = extraHeight
	}
	return offsetX, offsetY
}

func isGray(img image.Image) bool {
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return true
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func atLeastOne(v int) int {
	if v < 1 {
		return 1
	}
	return v
}
