package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	if norm := NormalizeL2(v); math.Abs(norm-5) > 1e-9 {
		t.Errorf("norm = %f, want 5", norm)
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("normalized = %v", v)
	}
	zero := []float32{0, 0}
	if norm := NormalizeL2(zero); norm != 0 || zero[0] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}
