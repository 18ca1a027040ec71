package imageproc

import "image"

// detectPageContour locates the paper region of a photographed receipt as the
// span of rows and columns dominated by bright (paper-colored) pixels. It
// returns ok=false when no region distinct from the background can be found,
// which callers treat as non-fatal.
func detectPageContour(gray *image.NRGBA) (image.Rectangle, bool) {
	b := gray.Rect
	w, h := b.Dx(), b.Dy()
	if w < 8 || h < 8 {
		return image.Rectangle{}, false
	}

	// Threshold halfway between the mean and white: paper sits well above the
	// average of a scene that includes a darker background.
	var sum uint64
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x++ {
			sum += uint64(row[x*4])
		}
	}
	mean := float64(sum) / float64(w*h)
	thr := uint8((mean + 255) / 2)

	rowBright := make([]int, h)
	colBright := make([]int, w)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x++ {
			if row[x*4] >= thr {
				rowBright[y]++
				colBright[x]++
			}
		}
	}

	top, bottom := spanAbove(rowBright, w/2)
	left, right := spanAbove(colBright, h/2)
	if top < 0 || left < 0 {
		return image.Rectangle{}, false
	}

	rect := image.Rect(left, top, right+1, bottom+1)
	area := rect.Dx() * rect.Dy()
	// A contour covering nearly the full frame (flatbed scan) or almost
	// nothing gives no useful crop.
	if area < w*h*3/10 || area > w*h*97/100 {
		return image.Rectangle{}, false
	}
	return rect, true
}

// spanAbove returns the first and last index whose count exceeds min,
// or (-1, -1) when none does.
func spanAbove(counts []int, min int) (int, int) {
	first, last := -1, -1
	for i, c := range counts {
		if c > min {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return first, last
}
