package imageproc

import (
	"image"
	"math"
)

// estimateSkew finds the small rotation angle (degrees, -5..+5) that best
// aligns printed lines with the horizontal axis, using a projection profile:
// dark pixels are projected onto the y axis for each candidate angle and the
// angle maximizing the squared row-density is chosen. Returns 0 when the
// image has too little ink to estimate.
func estimateSkew(gray *image.NRGBA) float64 {
	b := gray.Rect
	w, h := b.Dx(), b.Dy()
	if w < 16 || h < 16 {
		return 0
	}

	// Collect dark-pixel coordinates on a sparse grid; full resolution adds
	// nothing to the estimate.
	stepX, stepY := max(1, w/400), max(1, h/400)
	type pt struct{ x, y float64 }
	var ink []pt
	for y := 0; y < h; y += stepY {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x += stepX {
			if row[x*4] < 96 {
				ink = append(ink, pt{float64(x), float64(y)})
			}
		}
	}
	if len(ink) < 64 {
		return 0
	}

	bins := h/stepY + 2
	best, bestScore := 0.0, -1.0
	for deg := -5.0; deg <= 5.0; deg += 0.25 {
		rad := deg * math.Pi / 180
		sin, cos := math.Sin(rad), math.Cos(rad)
		hist := make([]float64, bins)
		for _, p := range ink {
			yp := p.y*cos - p.x*sin
			idx := int(yp / float64(stepY))
			if idx >= 0 && idx < bins {
				hist[idx]++
			}
		}
		score := 0.0
		for _, c := range hist {
			score += c * c
		}
		if score > bestScore {
			bestScore = score
			best = deg
		}
	}
	return best
}
