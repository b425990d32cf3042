// Package sampler walks a video in fixed-size frame windows and yields the
// first and last frame of each window.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// DefaultWindowSize is the number of source frames covered by one window.
const DefaultWindowSize = 15

// ErrFrameRead is returned when the first frame of a window cannot be
// decoded. It aborts the run.
var ErrFrameRead = errors.New("frame read failed")

// Window is a pair of source frame indices.
type Window struct {
	Index int
	First int
	Last  int
}

// Windows returns the floor(total/size) candidate windows, dropping any
// whose first and last index coincide. A non-positive size uses
// DefaultWindowSize.
func Windows(total, size int) []Window {
	if size <= 0 {
		size = DefaultWindowSize
	}
	if total <= 0 {
		return nil
	}
	n := total / size
	out := make([]Window, 0, n)
	for i := 0; i < n; i++ {
		first := i * size
		last := min(first+size-1, total-1)
		if last <= first {
			continue
		}
		out = append(out, Window{Index: i, First: first, Last: last})
	}
	return out
}

// FrameReader decodes the frame at a source index.
type FrameReader interface {
	Frame(idx int) (image.Image, error)
}

// Pair is a decoded window.
type Pair struct {
	Window
	FirstFrame image.Image
	LastFrame  image.Image
}

// Stats counts what a Sample call did.
type Stats struct {
	Windows int
	Yielded int
	Skipped int
}

// Sample decodes each window in order and hands it to visit. A failure on
// a window's last frame skips that window. The context is checked between
// windows only. An error from visit stops sampling and is returned as is.
func Sample(ctx context.Context, r FrameReader, total, size int, visit func(Pair) error) (Stats, error) {
	ws := Windows(total, size)
	st := Stats{Windows: len(ws)}
	for _, w := range ws {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		first, err := r.Frame(w.First)
		if err != nil {
			return st, fmt.Errorf("%w: window %d frame %d: %v", ErrFrameRead, w.Index, w.First, err)
		}
		last, err := r.Frame(w.Last)
		if err != nil {
			diagf("skipping window %d: frame %d: %v", w.Index, w.Last, err)
			st.Skipped++
			continue
		}

		tracef("window %d frames %d..%d", w.Index, w.First, w.Last)
		if err := visit(Pair{Window: w, FirstFrame: first, LastFrame: last}); err != nil {
			return st, err
		}
		st.Yielded++
	}
	return st, nil
}
