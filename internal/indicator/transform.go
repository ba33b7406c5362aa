package indicator

import "math"

// Diff returns values[i] - values[i-window], NaN for the first window
// positions. Applied to CDX spreads it gives basis point changes.
func Diff(values []float64, window int) []float64 {
	lagged := Shift(values, window)
	out := make([]float64, len(values))
	for i := range values {
		out[i] = values[i] - lagged[i]
	}
	return out
}

// PctChange returns simple returns values[i]/values[i-window] - 1 as
// fractions. A zero base yields NaN.
func PctChange(values []float64, window int) []float64 {
	lagged := Shift(values, window)
	out := make([]float64, len(values))
	for i := range values {
		out[i] = Divide(values[i], lagged[i]) - 1
	}
	return out
}

// LogReturns returns ln(values[i]/values[i-window]). Non-positive prices
// yield NaN.
func LogReturns(values []float64, window int) []float64 {
	lagged := Shift(values, window)
	out := make([]float64, len(values))
	for i := range values {
		if !(values[i] > 0) || !(lagged[i] > 0) {
			out[i] = math.NaN()
			continue
		}
		out[i] = math.Log(values[i] / lagged[i])
	}
	return out
}

// MeanStd returns the mean and sample standard deviation of the non-NaN
// values and how many there were. Std is 0 with fewer than two values.
func MeanStd(values []float64) (mean, std float64, n int) {
	var sum float64
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN(), 0, 0
	}
	mean = sum / float64(n)
	if n < 2 {
		return mean, 0, n
	}
	var variance float64
	for _, v := range values {
		if !math.IsNaN(v) {
			variance += (v - mean) * (v - mean)
		}
	}
	return mean, math.Sqrt(variance / float64(n-1)), n
}
