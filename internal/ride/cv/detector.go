package cv

import (
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/banshee-data/ride.report/internal/ride/cv/yolo"
	"github.com/banshee-data/ride.report/internal/ride/objects"
)

// DetectorConfig configures the YOLOv8 ONNX detector.
type DetectorConfig struct {
	ModelPath     string
	InputSize     int
	ConfThreshold float32
	NMSThreshold  float32
}

// Detector runs a YOLOv8 ONNX model restricted to the ride class allowlist.
// A gocv.Net is not safe for concurrent use, so Detect serialises calls.
type Detector struct {
	cfg DetectorConfig

	mu  sync.Mutex
	net gocv.Net
}

// NewDetector loads the ONNX model at cfg.ModelPath.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("detector model: %w", err)
	}
	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("detector model %s: failed to load", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return &Detector{cfg: cfg, net: net}, nil
}

// Detect returns allowlisted detections for img in source pixels.
func (d *Detector) Detect(img image.Image) ([]objects.DetectedObject, error) {
	src, err := bgrMat(img)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	defer src.Close()

	size := d.cfg.InputSize
	blob := gocv.BlobFromImage(src, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	sizes := out.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("detect: unexpected output rank %d", len(sizes))
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	b := img.Bounds()
	cands, err := yolo.Decode(data, sizes[1], sizes[2], d.cfg.ConfThreshold,
		yolo.NewScale(b.Dx(), b.Dy(), size), yolo.COCO)
	if err != nil {
		return nil, err
	}
	return d.suppress(cands), nil
}

// suppress runs per-class non-maximum suppression and returns the
// survivors ordered by descending confidence.
func (d *Detector) suppress(cands []yolo.Candidate) []objects.DetectedObject {
	var out []objects.DetectedObject
	for class, group := range yolo.ByClass(cands) {
		rects := make([]image.Rectangle, len(group))
		scores := make([]float32, len(group))
		for i, c := range group {
			rects[i] = image.Rect(int(c.X1), int(c.Y1), int(c.X2), int(c.Y2))
			scores[i] = c.Score
		}
		for _, i := range gocv.NMSBoxes(rects, scores, d.cfg.ConfThreshold, d.cfg.NMSThreshold) {
			c := group[i]
			out = append(out, objects.DetectedObject{
				Label:      yolo.COCO[class],
				Class:      class,
				Box:        objects.Box{X1: c.X1, Y1: c.Y1, X2: c.X2, Y2: c.Y2},
				Confidence: float64(c.Score),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Class < out[j].Class
	})
	return out
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
