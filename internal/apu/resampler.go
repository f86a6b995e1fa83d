package apu

import "math"

// Resampler is a windowed-sinc stereo resampler converting from a fixed
// input rate to an arbitrary output rate, writing completed output frames
// into a RingBuffer. It keeps a trailing window of recent input frames and,
// once enough history has accumulated, evaluates a Blackman-windowed sinc
// kernel centered on the fractional output position for every output frame
// that has come due.
type Resampler struct {
	taps int
	step float64 // input samples per output sample: inRate/outRate

	history     []stereoFrame // trailing window, oldest first
	historyBase int           // absolute input-sample index of history[0]
	inputCount  int           // total input frames written so far

	outputPos float64 // absolute input-sample position of the next output frame
}

type stereoFrame struct {
	l, r float32
}

// NewResampler returns a resampler with the given tap count (per side; the
// kernel spans 2*taps+1 input samples) converting inRate to outRate.
func NewResampler(taps int, inRate, outRate float64) *Resampler {
	return &Resampler{
		taps:      taps,
		step:      inRate / outRate,
		outputPos: float64(taps),
	}
}

// Write feeds one input-rate stereo sample into the resampler, emitting
// zero or more output-rate frames into ring as the fractional output
// position catches up.
func (r *Resampler) Write(l, r2 float32, ring *RingBuffer) {
	r.history = append(r.history, stereoFrame{l, r2})
	r.inputCount++

	// Trim history older than taps samples behind the oldest position we
	// might still need (outputPos - taps).
	keepFrom := int(math.Floor(r.outputPos)) - r.taps - 1
	for r.historyBase < keepFrom && len(r.history) > 0 {
		r.history = r.history[1:]
		r.historyBase++
	}

	latest := r.inputCount - 1
	for int(r.outputPos)+r.taps <= latest {
		l, rr := r.evaluate(r.outputPos)
		ring.Write(l, rr)
		r.outputPos += r.step
	}
}

// evaluate computes the windowed-sinc interpolated sample at fractional
// input-sample position pos, using the taps samples on either side of it
// currently held in history.
func (r *Resampler) evaluate(pos float64) (float32, float32) {
	base := int(math.Floor(pos))
	var accL, accR, weightSum float64
	for k := -r.taps; k <= r.taps; k++ {
		idx := base + k
		slot := idx - r.historyBase
		if slot < 0 || slot >= len(r.history) {
			continue
		}
		x := pos - float64(idx)
		w := sincKernel(x, float64(r.taps))
		accL += float64(r.history[slot].l) * w
		accR += float64(r.history[slot].r) * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0, 0
	}
	return float32(accL / weightSum), float32(accR / weightSum)
}

// sincKernel is a normalized sinc windowed by a Blackman window over
// [-taps, +taps].
func sincKernel(x, taps float64) float64 {
	if x == 0 {
		return blackman(x, taps)
	}
	if x < -taps || x > taps {
		return 0
	}
	s := math.Sin(math.Pi*x) / (math.Pi * x)
	return s * blackman(x, taps)
}

func blackman(x, taps float64) float64 {
	n := (x + taps) / (2 * taps) // normalize to [0,1]
	const a0, a1, a2 = 0.42, 0.5, 0.08
	return a0 - a1*math.Cos(2*math.Pi*n) + a2*math.Cos(4*math.Pi*n)
}
