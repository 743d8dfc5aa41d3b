package audio

// ramp is a linear per-sample gain envelope.
type ramp struct {
	cur       float64
	target    float64
	step      float64
	remaining int
}

func (r *ramp) set(v float64) {
	r.cur, r.target, r.step, r.remaining = v, v, 0, 0
}

// to starts a new ramp over n samples. A non-positive n snaps immediately.
func (r *ramp) to(from, to float64, n int) {
	if n <= 0 {
		r.set(to)
		return
	}
	r.cur = from
	r.target = to
	r.step = (to - from) / float64(n)
	r.remaining = n
}

func (r *ramp) next() float64 {
	if r.remaining > 0 {
		r.cur += r.step
		r.remaining--
		if r.remaining == 0 {
			r.cur = r.target
		}
	}
	return r.cur
}

func (r *ramp) active() bool {
	return r.remaining > 0
}
