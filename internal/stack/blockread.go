package stack

import (
	"context"

	"github.com/five82/seqstack/internal/seqio"
)

// readBlockRows fills dst (block.Height() rows of width float64 samples
// each, row-major) with one frame's contribution to a block, handling the
// three y-shift clipping cases of spec.md §4.4.2: entirely off-image,
// partially off the bottom, and partially off the top. dst is always
// zeroed first so the off-image and partial cases degrade to zero-fill
// without a separate code path.
func readBlockRows(ctx context.Context, store seqio.FrameStore, srcIdx, channel, width, height int, rowStart, rowEnd, shiftY, threadID int, dst []float64) error {
	for i := range dst {
		dst[i] = 0
	}
	blockHeight := rowEnd - rowStart
	srcStart := rowStart + shiftY
	srcEnd := rowEnd + shiftY
	if srcEnd <= 0 || srcStart >= height {
		return nil // entirely off-image: leave zero-filled
	}
	clippedStart := srcStart
	if clippedStart < 0 {
		clippedStart = 0
	}
	clippedEnd := srcEnd
	if clippedEnd > height {
		clippedEnd = height
	}
	validRows := clippedEnd - clippedStart
	if validRows <= 0 {
		return nil
	}
	destOffset := clippedStart - srcStart // rows skipped at the block's top
	if destOffset < 0 || destOffset+validRows > blockHeight {
		// shouldn't happen given the clipping above; guard defensively
		if destOffset < 0 {
			destOffset = 0
		}
		if destOffset+validRows > blockHeight {
			validRows = blockHeight - destOffset
		}
	}
	rect := seqio.Rect{X: 0, Y: clippedStart, W: width, H: validRows}
	buf := make([]float64, width*validRows)
	if err := store.ReadPartial(ctx, srcIdx, channel, rect, threadID, buf); err != nil {
		return err
	}
	copy(dst[destOffset*width:(destOffset+validRows)*width], buf)
	return nil
}
