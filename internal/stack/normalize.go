package stack

import (
	"math"

	"github.com/five82/seqstack/internal/config"
)

// FrameStats holds per-channel robust location/scale estimates for one
// selected frame, computed once before block reduction begins (spec.md
// §4.4.5's normalization pre-pass).
type FrameStats struct {
	Location []float64
	Scale    []float64
}

// RobustLocationScale estimates a frame channel's location via an
// iterative kappa-sigma mean (kappa=3, capped at 5 iterations) and its
// scale via the mean absolute deviation from that location.
func RobustLocationScale(samples []float64) (location, scale float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	location = mean(samples)
	const kappa = 3.0
	for iter := 0; iter < 5; iter++ {
		sigma := stddev(samples, location)
		if sigma == 0 {
			break
		}
		var sum, count float64
		for _, v := range samples {
			if math.Abs(v-location) <= kappa*sigma {
				sum += v
				count++
			}
		}
		if count == 0 {
			break
		}
		next := sum / count
		if math.Abs(next-location) < 1e-9 {
			location = next
			break
		}
		location = next
	}
	var sumAbs float64
	for _, v := range samples {
		sumAbs += math.Abs(v - location)
	}
	scale = sumAbs / float64(len(samples))
	return location, scale
}

// BuildNormCoefficients derives per (channel, frame) NormCoeff triples from
// each frame's FrameStats relative to referenceFrame (an index into stats,
// i.e. an output/selection index), per spec.md §4.4.5's four modes. The
// reference frame always receives the identity coefficient.
func BuildNormCoefficients(stats []FrameStats, mode config.NormalizationKind, referenceFrame int) [][]NormCoeff {
	nFrames := len(stats)
	if nFrames == 0 {
		return nil
	}
	nChannels := len(stats[0].Location)
	coeffs := make([][]NormCoeff, nChannels)
	for ch := 0; ch < nChannels; ch++ {
		coeffs[ch] = make([]NormCoeff, nFrames)
		loc0 := stats[referenceFrame].Location[ch]
		scale0 := stats[referenceFrame].Scale[ch]
		for f := 0; f < nFrames; f++ {
			c := NormCoeff{Multiplier: 1, Scale: 1}
			switch mode {
			case config.NormAdditive:
				c.Offset = stats[f].Location[ch] - loc0
			case config.NormMultiplicative:
				if stats[f].Location[ch] != 0 {
					c.Multiplier = loc0 / stats[f].Location[ch]
				}
			case config.NormAdditiveScaling:
				if stats[f].Scale[ch] != 0 {
					c.Scale = scale0 / stats[f].Scale[ch]
				}
				c.Offset = c.Scale*stats[f].Location[ch] - loc0
			case config.NormMultiplicativeScaling:
				if stats[f].Scale[ch] != 0 {
					c.Scale = scale0 / stats[f].Scale[ch]
				}
				if stats[f].Location[ch] != 0 {
					c.Multiplier = loc0 / stats[f].Location[ch]
				}
			}
			coeffs[ch][f] = c
		}
		coeffs[ch][referenceFrame] = NormCoeff{Offset: 0, Multiplier: 1, Scale: 1}
	}
	return coeffs
}

// ApplyNorm normalizes one raw pixel value using its precomputed
// coefficient, per spec.md §4.4.5. NormNone passes the value through
// unchanged regardless of the coefficient's contents.
func ApplyNorm(v float64, c NormCoeff, mode config.NormalizationKind) float64 {
	switch mode {
	case config.NormNone:
		return v
	case config.NormAdditive, config.NormAdditiveScaling:
		return c.Scale*v - c.Offset
	case config.NormMultiplicative, config.NormMultiplicativeScaling:
		return c.Scale * v * c.Multiplier
	default:
		return v
	}
}
