package indicator

import "math"

// RollingMean calculates a trailing mean over window observations.
// NaN inputs are skipped; the output is NaN until at least minPeriods valid
// values fall inside the window. Output has the same length as values.
func RollingMean(values []float64, window, minPeriods int) []float64 {
	return rolling(values, window, minPeriods, func(w []float64) float64 {
		var sum float64
		for _, v := range w {
			sum += v
		}
		return sum / float64(len(w))
	})
}

// RollingStd calculates a trailing sample (n-1) standard deviation
// with the same window semantics as RollingMean. Windows with fewer than
// two valid values yield NaN.
func RollingStd(values []float64, window, minPeriods int) []float64 {
	return rolling(values, window, minPeriods, func(w []float64) float64 {
		if len(w) < 2 {
			return math.NaN()
		}
		var sum float64
		for _, v := range w {
			sum += v
		}
		mean := sum / float64(len(w))
		var variance float64
		for _, v := range w {
			variance += (v - mean) * (v - mean)
		}
		return math.Sqrt(variance / float64(len(w)-1))
	})
}

// ZScore standardizes each value against its trailing mean and standard
// deviation: (x - mean) / std. A zero deviation yields NaN.
func ZScore(values []float64, window, minPeriods int) []float64 {
	mean := RollingMean(values, window, minPeriods)
	std := RollingStd(values, window, minPeriods)
	out := make([]float64, len(values))
	for i := range values {
		out[i] = Divide(values[i]-mean[i], std[i])
	}
	return out
}

// Shift lags values by n positions, padding the front with NaN
func Shift(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i < n {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i-n]
	}
	return out
}

// Divide returns a/b, or NaN when b is zero or either operand is NaN
func Divide(a, b float64) float64 {
	if b == 0 || math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return a / b
}

func rolling(values []float64, window, minPeriods int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	if minPeriods < 1 {
		minPeriods = 1
	}
	buf := make([]float64, 0, window)
	for i := range values {
		buf = buf[:0]
		for j := max(0, i-window+1); j <= i; j++ {
			if !math.IsNaN(values[j]) {
				buf = append(buf, values[j])
			}
		}
		if len(buf) < minPeriods {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(buf)
	}
	return out
}
