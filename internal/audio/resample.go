package audio

// Resample converts mono samples from one rate to another with linear
// interpolation. The output holds floor(len(samples) * to / from) samples.
// When the rates match the input is returned unchanged.
func Resample(samples []float32, from, to int) []float32 {
	if from == to || len(samples) == 0 {
		return samples
	}
	if from <= 0 || to <= 0 {
		return nil
	}

	n := len(samples) * to / from
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	if n == 1 {
		out[0] = samples[0]
		return out
	}

	// Output points are spread evenly over [0, len-1] of the input.
	step := float64(len(samples)-1) / float64(n-1)
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx] + (samples[idx+1]-samples[idx])*frac
	}
	return out
}
