package stack

import "github.com/five82/seqstack/internal/config"

func rejectionFuncFor(kind config.RejectionKind) rejectFunc {
	switch kind {
	case config.RejectPercentile:
		return rejectPercentile
	case config.RejectSigma:
		return rejectSigma
	case config.RejectSigmaMedian:
		return rejectSigmaMedian
	case config.RejectWinsorized:
		return rejectWinsorized
	case config.RejectLinearFit:
		return rejectLinearFit
	default:
		return nil
	}
}

// allEqual reports whether every sample is numerically identical, the
// no-rejection short-circuit required by spec.md §8's universal invariant
// "if all input samples are equal at a pixel, the output equals that value
// and no rejection is recorded".
func allEqual(samples []float64) bool {
	if len(samples) == 0 {
		return true
	}
	first := samples[0]
	for _, v := range samples[1:] {
		if v != first {
			return false
		}
	}
	return true
}

// ReducePixel combines one pixel's normalized per-frame samples into a
// single output value, per spec.md §4.4.3/§4.4.4. useMedian selects plain
// median stacking; otherwise rejection (possibly RejectNone, a no-op) is
// applied and the surviving samples are averaged. counts, when non-nil, is
// updated atomically with this pixel's rejection tally for channel ch.
func ReducePixel(samples []float64, useMedian bool, rejection config.RejectionKind, sigmaLow, sigmaHigh float64, counts *RejectionCounts, ch int) float64 {
	if useMedian {
		return median(samples)
	}
	if allEqual(samples) {
		return samples[0]
	}
	fn := rejectionFuncFor(rejection)
	if fn == nil {
		return mean(samples)
	}
	kept, low, high := fn(samples, sigmaLow, sigmaHigh)
	if counts != nil {
		if low > 0 {
			addRejection(&counts.Low[ch], low)
		}
		if high > 0 {
			addRejection(&counts.High[ch], high)
		}
	}
	return mean(kept)
}
