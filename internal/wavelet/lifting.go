package wavelet

import "golang.org/x/sync/errgroup"

// transform runs the 2-D CDF 5/3 lifting over a row-major plane. Rows and
// then columns of the current low band are lifted at each level, split
// into contiguous bands across workers.
type transform struct {
	height  int
	width   int
	levels  int
	threads int
	scratch [][]int64 // one per worker, 2*max(height, width)
}

func newTransform(h, w, levels, threads int) *transform {
	t := &transform{height: h, width: w, levels: levels, threads: threads}
	t.scratch = make([][]int64, threads)
	for i := range t.scratch {
		t.scratch[i] = make([]int64, 2*max(h, w))
	}
	return t
}

func (t *transform) forward(plane []int64) {
	h, w := t.height, t.width
	for l := 0; l < t.levels; l++ {
		t.rows(plane, h, w, lift)
		t.cols(plane, h, w, lift)
		h, w = (h+1)/2, (w+1)/2
	}
}

func (t *transform) inverse(plane []int64) {
	dims := make([][2]int, t.levels)
	h, w := t.height, t.width
	for l := range dims {
		dims[l] = [2]int{h, w}
		h, w = (h+1)/2, (w+1)/2
	}
	for l := t.levels - 1; l >= 0; l-- {
		h, w := dims[l][0], dims[l][1]
		t.cols(plane, h, w, unlift)
		t.rows(plane, h, w, unlift)
	}
}

func (t *transform) rows(plane []int64, h, w int, fn func(dst, src []int64)) {
	t.parallel(h, func(worker, lo, hi int) {
		tmp := t.scratch[worker][:w]
		for y := lo; y < hi; y++ {
			row := plane[y*t.width : y*t.width+w]
			copy(tmp, row)
			fn(row, tmp)
		}
	})
}

func (t *transform) cols(plane []int64, h, w int, fn func(dst, src []int64)) {
	t.parallel(w, func(worker, lo, hi int) {
		src := t.scratch[worker][:h]
		dst := t.scratch[worker][h : 2*h]
		for x := lo; x < hi; x++ {
			for y := range src {
				src[y] = plane[y*t.width+x]
			}
			fn(dst, src)
			for y, v := range dst {
				plane[y*t.width+x] = v
			}
		}
	})
}

// parallel calls fn over [0,n) split into at most t.threads bands.
func (t *transform) parallel(n int, fn func(worker, lo, hi int)) {
	workers := min(t.threads, n)
	if workers <= 1 {
		fn(0, 0, n)
		return
	}
	per := (n + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		lo, hi := w*per, min(n, (w+1)*per)
		if lo >= hi {
			break
		}
		w := w
		g.Go(func() error {
			fn(w, lo, hi)
			return nil
		})
	}
	g.Wait()
}

// lift writes the low band of src followed by its high band into dst.
// Boundaries use whole-sample symmetric extension.
func lift(dst, src []int64) {
	n := len(src)
	if n < 2 {
		copy(dst, src)
		return
	}
	ns, nd := (n+1)/2, n/2
	low, high := dst[:ns], dst[ns:n]
	for i := 0; i < nd; i++ {
		right := src[2*i]
		if 2*i+2 < n {
			right = src[2*i+2]
		}
		high[i] = src[2*i+1] - (src[2*i]+right)>>1
	}
	for i := 0; i < ns; i++ {
		low[i] = src[2*i] + (high[max(i-1, 0)]+high[min(i, nd-1)]+2)>>2
	}
}

// unlift inverts lift.
func unlift(dst, src []int64) {
	n := len(src)
	if n < 2 {
		copy(dst, src)
		return
	}
	ns, nd := (n+1)/2, n/2
	low, high := src[:ns], src[ns:n]
	for i := 0; i < ns; i++ {
		dst[2*i] = low[i] - (high[max(i-1, 0)]+high[min(i, nd-1)]+2)>>2
	}
	for i := 0; i < nd; i++ {
		right := dst[2*i]
		if 2*i+2 < n {
			right = dst[2*i+2]
		}
		dst[2*i+1] = high[i] + (dst[2*i]+right)>>1
	}
}
