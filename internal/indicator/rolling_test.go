package indicator

import (
	"math"
	"testing"
)

func TestRollingMean_Calculate(t *testing.T) {
	values := []float64{10, 11, 12, 13, 14, 15}

	mean := RollingMean(values, 3, 3)

	// RollingMean(3) for [10,11,12,13,14,15]:
	// [2] = (10+11+12)/3 = 11
	// [3] = (11+12+13)/3 = 12
	// [4] = (12+13+14)/3 = 13
	// [5] = (13+14+15)/3 = 14
	expected := []float64{math.NaN(), math.NaN(), 11, 12, 13, 14}

	if len(mean) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(mean))
	}
	for i, v := range expected {
		if math.IsNaN(v) {
			if !math.IsNaN(mean[i]) {
				t.Errorf("mean[%d] = %f, want NaN", i, mean[i])
			}
			continue
		}
		if mean[i] != v {
			t.Errorf("mean[%d] = %f, want %f", i, mean[i], v)
		}
	}
}

func TestRollingMean_MinPeriods(t *testing.T) {
	mean := RollingMean([]float64{2, 4, 6}, 5, 2)

	if !math.IsNaN(mean[0]) {
		t.Errorf("mean[0] = %f, want NaN before min periods", mean[0])
	}
	if mean[1] != 3 || mean[2] != 4 {
		t.Errorf("got %v, want [NaN 3 4]", mean)
	}
}

func TestRollingMean_SkipsNaN(t *testing.T) {
	mean := RollingMean([]float64{1, math.NaN(), 3}, 3, 2)

	if mean[2] != 2 {
		t.Errorf("mean[2] = %f, want 2", mean[2])
	}
	if !math.IsNaN(mean[1]) {
		t.Errorf("mean[1] = %f, want NaN with one valid value", mean[1])
	}
}

func TestRollingStd_Sample(t *testing.T) {
	std := RollingStd([]float64{1, 2, 3, 4, 5}, 5, 5)

	if math.Abs(std[4]-math.Sqrt(2.5)) > 1e-12 {
		t.Errorf("std[4] = %f, want %f", std[4], math.Sqrt(2.5))
	}
	for i := 0; i < 4; i++ {
		if !math.IsNaN(std[i]) {
			t.Errorf("std[%d] = %f, want NaN", i, std[i])
		}
	}
}

func TestZScore(t *testing.T) {
	z := ZScore([]float64{1, 2, 3, 4, 5}, 5, 5)

	want := (5 - 3) / math.Sqrt(2.5)
	if math.Abs(z[4]-want) > 1e-12 {
		t.Errorf("z[4] = %f, want %f", z[4], want)
	}
}

func TestZScore_ConstantIsNaN(t *testing.T) {
	z := ZScore([]float64{7, 7, 7}, 3, 2)
	for i, v := range z {
		if !math.IsNaN(v) {
			t.Errorf("z[%d] = %f, want NaN for zero deviation", i, v)
		}
	}
}

func TestShift(t *testing.T) {
	got := Shift([]float64{1, 2, 3, 4}, 2)

	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Errorf("expected NaN padding, got %v", got)
	}
	if got[2] != 1 || got[3] != 2 {
		t.Errorf("got %v, want [NaN NaN 1 2]", got)
	}
}

func TestDivide(t *testing.T) {
	if Divide(6, 3) != 2 {
		t.Error("expected 6/3 = 2")
	}
	if !math.IsNaN(Divide(1, 0)) {
		t.Error("expected NaN for zero divisor")
	}
	if !math.IsNaN(Divide(math.NaN(), 1)) {
		t.Error("expected NaN for NaN numerator")
	}
}
