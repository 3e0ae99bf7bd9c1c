package stack

import (
	"math"
	"testing"

	"github.com/five82/seqstack/internal/config"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRobustLocationScaleConstantSamples(t *testing.T) {
	loc, scale := RobustLocationScale([]float64{5, 5, 5, 5})
	if !almostEqual(loc, 5) {
		t.Fatalf("location = %v, want 5", loc)
	}
	if !almostEqual(scale, 0) {
		t.Fatalf("scale = %v, want 0", scale)
	}
}

func TestBuildNormCoefficientsReferenceIsIdentity(t *testing.T) {
	stats := []FrameStats{
		{Location: []float64{10}, Scale: []float64{2}},
		{Location: []float64{20}, Scale: []float64{4}},
	}
	coeffs := BuildNormCoefficients(stats, config.NormAdditiveScaling, 0)
	ref := coeffs[0][0]
	if ref.Offset != 0 || ref.Multiplier != 1 || ref.Scale != 1 {
		t.Fatalf("reference coefficient = %+v, want identity", ref)
	}
}

func TestApplyNormNonePassesThrough(t *testing.T) {
	c := NormCoeff{Offset: 100, Multiplier: 5, Scale: 9}
	if v := ApplyNorm(42, c, config.NormNone); v != 42 {
		t.Fatalf("got %v, want 42 (NormNone must ignore the coefficient)", v)
	}
}

func TestApplyNormAdditiveAlignsToReference(t *testing.T) {
	stats := []FrameStats{
		{Location: []float64{100}, Scale: []float64{1}},
		{Location: []float64{120}, Scale: []float64{1}},
	}
	coeffs := BuildNormCoefficients(stats, config.NormAdditive, 0)
	// Frame 1's location sits 20 above the reference; a pixel equal to
	// frame 1's own location should normalize down to the reference location.
	got := ApplyNorm(120, coeffs[0][1], config.NormAdditive)
	if !almostEqual(got, 100) {
		t.Fatalf("got %v, want 100", got)
	}
}

func TestApplyNormMultiplicativeScalesToReference(t *testing.T) {
	stats := []FrameStats{
		{Location: []float64{100}, Scale: []float64{1}},
		{Location: []float64{50}, Scale: []float64{1}},
	}
	coeffs := BuildNormCoefficients(stats, config.NormMultiplicative, 0)
	got := ApplyNorm(50, coeffs[0][1], config.NormMultiplicative)
	if !almostEqual(got, 100) {
		t.Fatalf("got %v, want 100", got)
	}
}
