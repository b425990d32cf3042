package cv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/banshee-data/ride.report/internal/ride/motion"
)

// Farneback estimates dense optical flow between grayscale frames.
type Farneback struct {
	PyrScale   float64
	Levels     int
	WinSize    int
	Iterations int
	PolyN      int
	PolySigma  float64
}

// NewFarneback returns the flow settings used for ride footage.
func NewFarneback() *Farneback {
	return &Farneback{
		PyrScale:   0.5,
		Levels:     3,
		WinSize:    15,
		Iterations: 3,
		PolyN:      5,
		PolySigma:  1.2,
	}
}

// Flow returns the per-pixel displacement from prev to next.
func (f *Farneback) Flow(prev, next image.Image) (*motion.Field, error) {
	if prev.Bounds().Size() != next.Bounds().Size() {
		return nil, fmt.Errorf("flow: frame sizes differ: %v vs %v", prev.Bounds().Size(), next.Bounds().Size())
	}
	a, err := grayMat(prev)
	if err != nil {
		return nil, fmt.Errorf("flow: %w", err)
	}
	defer a.Close()
	b, err := grayMat(next)
	if err != nil {
		return nil, fmt.Errorf("flow: %w", err)
	}
	defer b.Close()

	flow := gocv.NewMat()
	defer flow.Close()
	gocv.CalcOpticalFlowFarneback(a, b, &flow, f.PyrScale, f.Levels, f.WinSize, f.Iterations, f.PolyN, f.PolySigma, 0)
	if flow.Empty() {
		return nil, fmt.Errorf("flow: empty result")
	}

	data, err := flow.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("flow: %w", err)
	}
	w, h := flow.Cols(), flow.Rows()
	field := motion.NewField(w, h)
	for i := 0; i < w*h; i++ {
		field.DX[i] = float64(data[2*i])
		field.DY[i] = float64(data[2*i+1])
	}
	return field, nil
}
