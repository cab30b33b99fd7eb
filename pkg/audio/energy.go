package audio

import "math"

// RMSEnergy computes the root-mean-square energy of linear samples,
// normalized to 0.0..1.0.
func RMSEnergy(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		n := float64(s) / 32768.0
		sum += n * n
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// PeakAmplitude returns the maximum absolute amplitude, normalized to 0.0..1.0.
func PeakAmplitude(samples []int16) float64 {
	var maxAbs float64
	for _, s := range samples {
		abs := math.Abs(float64(s))
		if abs > maxAbs {
			maxAbs = abs
		}
	}
	return maxAbs / 32768.0
}
