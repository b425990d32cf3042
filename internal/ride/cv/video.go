package cv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Video decodes frames from a file by index.
type Video struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
	frames  int
	width   int
	next    int
}

// OpenVideo opens path and reads its frame count and width.
func OpenVideo(path string) (*Video, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open video %s: capture not opened", path)
	}
	return &Video{
		capture: vc,
		frame:   gocv.NewMat(),
		frames:  int(vc.Get(gocv.VideoCaptureFrameCount)),
		width:   int(vc.Get(gocv.VideoCaptureFrameWidth)),
	}, nil
}

func (v *Video) FrameCount() int { return v.frames }
func (v *Video) Width() int      { return v.width }

// Frame seeks to idx when it is not the next frame and decodes it.
func (v *Video) Frame(idx int) (image.Image, error) {
	if idx < 0 || idx >= v.frames {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", idx, v.frames)
	}
	if idx != v.next {
		v.capture.Set(gocv.VideoCapturePosFrames, float64(idx))
	}
	if ok := v.capture.Read(&v.frame); !ok || v.frame.Empty() {
		v.next = -1
		return nil, fmt.Errorf("frame %d: decode failed", idx)
	}
	v.next = idx + 1
	return v.frame.ToImage()
}

// Close releases the capture.
func (v *Video) Close() error {
	v.frame.Close()
	return v.capture.Close()
}
