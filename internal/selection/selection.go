// Package selection builds the dense output-index -> source-index mapping
// the engine and stacker iterate over.
package selection

import "fmt"

// Map is a dense array of length N_selected mapping output index o to
// source index i. It is built once at job start and never mutated.
type Map []int

// Build scans [0, frameCount) in order and keeps every index for which
// include reports true. A nil include selects every frame. It fails if the
// result would be empty, per spec.md 4.2: "If the resulting count is zero,
// fail the job."
func Build(frameCount int, include func(index int) bool) (Map, error) {
	m := make(Map, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		if include == nil || include(i) {
			m = append(m, i)
		}
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("selection: no frames selected out of %d", frameCount)
	}
	return m, nil
}

// Len is the number of selected frames (N_selected).
func (m Map) Len() int { return len(m) }

// Source resolves output index o to its source index i.
func (m Map) Source(o int) int { return m[o] }
