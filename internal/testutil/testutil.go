// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files: HTTP assertions, synthetic frames and motion fields,
// and fake collaborators for the ride pipeline.
package testutil

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/ride.report/internal/ride/motion"
	"github.com/banshee-data/ride.report/internal/ride/objects"
	"github.com/banshee-data/ride.report/internal/ride/risk"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request with an optional body.
func NewTestRequest(method, path string, body ...string) *http.Request {
	var r io.Reader
	if len(body) > 0 {
		r = strings.NewReader(strings.Join(body, ""))
	}
	return httptest.NewRequest(method, path, r)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// SolidImage returns a w x h RGBA image filled with c.
func SolidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	FillRect(img, img.Bounds(), c)
	return img
}

// FillRect paints r on img with c.
func FillRect(img *image.RGBA, r image.Rectangle, c color.Color) {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.Set(x, y, c)
		}
	}
}

// UniformField returns a w x h motion field with the same vector everywhere.
func UniformField(w, h int, dx, dy float64) *motion.Field {
	f := motion.NewField(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			f.Set(x, y, dx, dy)
		}
	}
	return f
}

// Object builds a detection with the given label and box.
func Object(label string, x1, y1, x2, y2 float64) objects.DetectedObject {
	return objects.DetectedObject{
		Label:      label,
		Box:        objects.Box{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Confidence: 0.9,
	}
}

// FakeVideo is an in-memory video. Frames listed in Fail return an error
// on read.
type FakeVideo struct {
	Frames []image.Image
	Fail   map[int]bool
	W      int
}

// NewFakeVideo returns n distinct gray frames of size w x h.
func NewFakeVideo(n, w, h int) *FakeVideo {
	v := &FakeVideo{W: w, Fail: map[int]bool{}}
	for i := 0; i < n; i++ {
		v.Frames = append(v.Frames, SolidImage(w, h, color.Gray{Y: uint8(64 + i%64)}))
	}
	return v
}

func (v *FakeVideo) FrameCount() int { return len(v.Frames) }
func (v *FakeVideo) Width() int      { return v.W }

func (v *FakeVideo) Frame(i int) (image.Image, error) {
	if i < 0 || i >= len(v.Frames) {
		return nil, fmt.Errorf("frame %d out of range", i)
	}
	if v.Fail[i] {
		return nil, fmt.Errorf("frame %d: decode failed", i)
	}
	return v.Frames[i], nil
}

// FakeFlow returns the field registered for the later frame of a pair, or a
// zero field of the frame's size.
type FakeFlow struct {
	ByFrame map[image.Image]*motion.Field
}

func (f *FakeFlow) Flow(prev, next image.Image) (*motion.Field, error) {
	if fld, ok := f.ByFrame[next]; ok {
		return fld, nil
	}
	b := next.Bounds()
	return motion.NewField(b.Dx(), b.Dy()), nil
}

// FakeDetector returns the detections registered for a frame.
type FakeDetector struct {
	ByFrame map[image.Image][]objects.DetectedObject
}

func (d *FakeDetector) Detect(img image.Image) ([]objects.DetectedObject, error) {
	return append([]objects.DetectedObject(nil), d.ByFrame[img]...), nil
}

// FakePixels reports the red ratio registered for a box and the mean gray
// registered for a frame. Unregistered lookups measure zero; Err fails
// every call.
type FakePixels struct {
	Red  map[objects.Box]float64
	Gray map[image.Image]float64
	Err  error
}

func (p *FakePixels) RedRatio(img image.Image, box objects.Box) (float64, error) {
	if p.Err != nil {
		return 0, p.Err
	}
	return p.Red[box], nil
}

func (p *FakePixels) MeanGray(img image.Image) (float64, error) {
	if p.Err != nil {
		return 0, p.Err
	}
	return p.Gray[img], nil
}

// FakeClassifier assigns tiers with Tier, or DANGER to any description
// containing one of DangerTokens and SAFE otherwise.
type FakeClassifier struct {
	Tier         func(desc string) risk.Tier
	DangerTokens []string
}

func (c *FakeClassifier) Predict(descs []string) ([]risk.Tier, error) {
	if len(descs) == 0 {
		return nil, fmt.Errorf("empty descriptions")
	}
	out := make([]risk.Tier, len(descs))
	for i, d := range descs {
		if c.Tier != nil {
			out[i] = c.Tier(d)
			continue
		}
		out[i] = risk.Safe
		for _, tok := range c.DangerTokens {
			if containsToken(d, tok) {
				out[i] = risk.Danger
				break
			}
		}
	}
	return out, nil
}

func containsToken(desc, tok string) bool {
	for _, f := range strings.Fields(desc) {
		if f == tok {
			return true
		}
	}
	return false
}
