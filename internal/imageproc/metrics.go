package imageproc

import "image"

// sharpness returns a normalized variance-of-Laplacian metric in 0..1.
// Blurry captures produce near-zero edge response; crisp thermal-paper print
// produces a large one. The variance is squashed through v/(v+k) so the
// result is comparable across image sizes.
func sharpness(gray *image.NRGBA) float64 {
	b := gray.Rect
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	var sum, sumSq float64
	var n int
	for y := 1; y < h-1; y++ {
		row := gray.Pix[y*gray.Stride:]
		up := gray.Pix[(y-1)*gray.Stride:]
		down := gray.Pix[(y+1)*gray.Stride:]
		for x := 1; x < w-1; x++ {
			c := float64(row[x*4])
			lap := 4*c - float64(row[(x-1)*4]) - float64(row[(x+1)*4]) -
				float64(up[x*4]) - float64(down[x*4])
			sum += lap
			sumSq += lap * lap
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}

	const k = 1500.0
	return variance / (variance + k)
}

// contrast measures histogram spread as the luminance distance between the
// 5th and 95th percentile, normalized to 0..1.
func contrast(gray *image.NRGBA) float64 {
	b := gray.Rect
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	var hist [256]int
	total := 0
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x++ {
			hist[row[x*4]]++
			total++
		}
	}

	lo := percentile(hist[:], total, 0.05)
	hi := percentile(hist[:], total, 0.95)
	if hi <= lo {
		return 0
	}
	return float64(hi-lo) / 255.0
}

func percentile(hist []int, total int, p float64) int {
	target := int(p * float64(total))
	acc := 0
	for v, c := range hist {
		acc += c
		if acc >= target {
			return v
		}
	}
	return 255
}

// qualityScore blends sharpness and contrast into the strategy-selection
// score. Sharpness dominates: a blurry high-contrast shot still OCRs badly.
func qualityScore(gray *image.NRGBA) float64 {
	score := 0.55*sharpness(gray) + 0.45*contrast(gray)
	if score > 1 {
		score = 1
	}
	return score
}
