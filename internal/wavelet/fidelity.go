package wavelet

import (
	"fmt"
	"math"
)

// Peak is the dynamic range of samples of the given size, as used by
// PSNR and SSIM.
func Peak(elemSize int) float64 {
	return math.Exp2(float64(8*elemSize)) - 1
}

// MSE is the mean squared error between two planes.
func MSE(ref, test []float64) (float64, error) {
	if len(ref) != len(test) || len(ref) == 0 {
		return 0, fmt.Errorf("%w: %d and %d", ErrPlaneSize, len(ref), len(test))
	}
	var sum float64
	for i, r := range ref {
		d := r - test[i]
		sum += d * d
	}
	return sum / float64(len(ref)), nil
}

// PSNR is the peak signal to noise ratio in dB; identical planes give +Inf.
func PSNR(ref, test []float64, peak float64) (float64, error) {
	mse, err := MSE(ref, test)
	if err != nil {
		return 0, err
	}
	if mse == 0 {
		return math.Inf(1), nil
	}
	return 10 * math.Log10(peak*peak/mse), nil
}

const ssimWindow = 8

// SSIM is the mean structural similarity of two h by w planes over
// non-overlapping 8x8 windows; edge windows are clipped and a plane
// smaller than a window is one window.
func SSIM(ref, test []float64, h, w int, peak float64) (float64, error) {
	if len(ref) != len(test) || len(ref) != h*w || len(ref) == 0 {
		return 0, fmt.Errorf("%w: %d and %d for %dx%d", ErrPlaneSize, len(ref), len(test), h, w)
	}
	c1 := (0.01 * peak) * (0.01 * peak)
	c2 := (0.03 * peak) * (0.03 * peak)

	var total float64
	windows := 0
	for y0 := 0; y0 < h; y0 += ssimWindow {
		for x0 := 0; x0 < w; x0 += ssimWindow {
			y1, x1 := min(y0+ssimWindow, h), min(x0+ssimWindow, w)
			n := float64((y1 - y0) * (x1 - x0))
			var sx, sy float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sx += ref[y*w+x]
					sy += test[y*w+x]
				}
			}
			mx, my := sx/n, sy/n
			var vx, vy, cov float64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					dx, dy := ref[y*w+x]-mx, test[y*w+x]-my
					vx += dx * dx
					vy += dy * dy
					cov += dx * dy
				}
			}
			vx, vy, cov = vx/n, vy/n, cov/n
			total += ((2*mx*my + c1) * (2*cov + c2)) / ((mx*mx + my*my + c1) * (vx + vy + c2))
			windows++
		}
	}
	return total / float64(windows), nil
}
