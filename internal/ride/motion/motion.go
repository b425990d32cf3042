// Package motion derives speed and steering signals from a dense
// two-channel motion field computed between the first and last frame of a
// window.
package motion

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"
)

// SpeedStatus is the coarse speed band derived from mean flow magnitude.
type SpeedStatus string

const (
	Stationary SpeedStatus = "stationary"
	Slow       SpeedStatus = "slow"
	Fast       SpeedStatus = "fast"
)

// Field is a per-pixel (dx, dy) motion field stored row-major.
type Field struct {
	W, H int
	DX   []float64
	DY   []float64
}

// NewField allocates a zeroed w x h field.
func NewField(w, h int) *Field {
	return &Field{W: w, H: h, DX: make([]float64, w*h), DY: make([]float64, w*h)}
}

// Empty reports whether the field carries no samples.
func (f *Field) Empty() bool {
	return f == nil || f.W <= 0 || f.H <= 0 || len(f.DX) < f.W*f.H || len(f.DY) < f.W*f.H
}

// Set stores the flow vector at (x, y).
func (f *Field) Set(x, y int, dx, dy float64) {
	i := y*f.W + x
	f.DX[i] = dx
	f.DY[i] = dy
}

// Bounds returns the field extent as a rectangle.
func (f *Field) Bounds() image.Rectangle {
	if f == nil {
		return image.Rectangle{}
	}
	return image.Rect(0, 0, f.W, f.H)
}

// MeanDX returns the mean horizontal flow inside r, clipped to the field.
// ok is false when the clipped region is empty.
func (f *Field) MeanDX(r image.Rectangle) (mean float64, ok bool) {
	if f.Empty() {
		return 0, false
	}
	r = r.Intersect(f.Bounds())
	if r.Empty() {
		return 0, false
	}
	sum := 0.0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := f.DX[y*f.W : (y+1)*f.W]
		for x := r.Min.X; x < r.Max.X; x++ {
			sum += row[x]
		}
	}
	return sum / float64(r.Dx()*r.Dy()), true
}

// Signals are the scalar motion signals for one window.
type Signals struct {
	AvgMotion    float64     `json:"avg_motion"`
	LateralFlow  float64     `json:"lateral_flow"`
	VerticalFlow float64     `json:"vertical_flow"`
	Jerk         float64     `json:"jerk"`
	Speed        SpeedStatus `json:"speed"`
}

// Bands holds the speed-band thresholds on mean flow magnitude.
type Bands struct {
	Fast float64
	Slow float64
}

// Status maps a mean flow magnitude onto a speed band.
func (b Bands) Status(avgMotion float64) SpeedStatus {
	switch {
	case avgMotion > b.Fast:
		return Fast
	case avgMotion > b.Slow:
		return Slow
	default:
		return Stationary
	}
}

// Compute derives the window signals from f. prevLateral is the lateral
// flow of the previous window; callers carry LateralFlow forward. An empty
// field yields zero motion, with jerk still measured against prevLateral.
func Compute(f *Field, prevLateral float64, bands Bands) Signals {
	var s Signals
	if !f.Empty() {
		n := f.W * f.H
		dx, dy := f.DX[:n], f.DY[:n]
		mag := make([]float64, n)
		for i := range mag {
			mag[i] = math.Hypot(dx[i], dy[i])
		}
		s.AvgMotion = stat.Mean(mag, nil)
		s.LateralFlow = stat.Mean(dx, nil)
		s.VerticalFlow = stat.Mean(dy, nil)
	}
	s.Jerk = math.Abs(s.LateralFlow - prevLateral)
	s.Speed = bands.Status(s.AvgMotion)
	return s
}
