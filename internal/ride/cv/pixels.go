package cv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/banshee-data/ride.report/internal/ride/objects"
)

// Red hue bands in OpenCV's 8-bit HSV, where H spans [0,180].
var (
	redLowerA = gocv.NewScalar(0, 70, 50, 0)
	redUpperA = gocv.NewScalar(10, 255, 255, 0)
	redLowerB = gocv.NewScalar(170, 70, 50, 0)
	redUpperB = gocv.NewScalar(180, 255, 255, 0)
)

// Pixels measures colour statistics of decoded frames.
type Pixels struct{}

// NewPixels returns a pixel analyser.
func NewPixels() *Pixels { return &Pixels{} }

// RedRatio returns the fraction of pixels inside box that fall in either
// red hue band. A box that clamps to nothing yields zero.
func (p *Pixels) RedRatio(img image.Image, box objects.Box) (float64, error) {
	b := img.Bounds()
	r := image.Rect(int(box.X1), int(box.Y1), int(box.X2), int(box.Y2)).
		Intersect(image.Rect(0, 0, b.Dx(), b.Dy()))
	if r.Empty() {
		return 0, nil
	}

	bgr, err := bgrMat(img)
	if err != nil {
		return 0, fmt.Errorf("red ratio: %w", err)
	}
	defer bgr.Close()
	region := bgr.Region(r)
	defer region.Close()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(region, &hsv, gocv.ColorBGRToHSV)

	lower, upper, mask := gocv.NewMat(), gocv.NewMat(), gocv.NewMat()
	defer lower.Close()
	defer upper.Close()
	defer mask.Close()
	gocv.InRangeWithScalar(hsv, redLowerA, redUpperA, &lower)
	gocv.InRangeWithScalar(hsv, redLowerB, redUpperB, &upper)
	gocv.BitwiseOr(lower, upper, &mask)

	return float64(gocv.CountNonZero(mask)) / float64(r.Dx()*r.Dy()), nil
}

// MeanGray returns the mean grayscale intensity of img (0-255).
func (p *Pixels) MeanGray(img image.Image) (float64, error) {
	gray, err := grayMat(img)
	if err != nil {
		return 0, fmt.Errorf("mean gray: %w", err)
	}
	defer gray.Close()
	if gray.Empty() {
		return 0, nil
	}
	return gray.Mean().Val1, nil
}

// bgrMat converts img to an 8-bit three-channel Mat in OpenCV's BGR order.
func bgrMat(img image.Image) (gocv.Mat, error) {
	m, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("convert frame: %w", err)
	}
	return m, nil
}

func grayMat(img image.Image) (gocv.Mat, error) {
	bgr, err := bgrMat(img)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer bgr.Close()
	gray := gocv.NewMat()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)
	return gray, nil
}
