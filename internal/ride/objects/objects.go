// Package objects holds the detected-object model shared by the ride
// pipeline: pixel-space boxes, the locale-specific geometry reclassifier,
// and greedy box matching between consecutive windows.
package objects

import (
	"math"
	"sort"

	"github.com/banshee-data/ride.report/internal/config"
)

// Raw detector labels the pipeline keeps, plus the locale categories
// produced by Classify.
const (
	Person       = "person"
	Bicycle      = "bicycle"
	Car          = "car"
	Motorcycle   = "motorcycle"
	Bus          = "bus"
	Truck        = "truck"
	CellPhone    = "cell phone"
	TrafficLight = "traffic light"

	Rickshaw = "rickshaw"
	CNG      = "cng"
)

// roadUsers is the allowlist of detector labels treated as scene objects.
// Traffic lights are carried separately (see Split).
var roadUsers = map[string]bool{
	Person:     true,
	Bicycle:    true,
	Car:        true,
	Motorcycle: true,
	Bus:        true,
	Truck:      true,
	CellPhone:  true,
}

// Box is an axis-aligned bounding box in pixel space.
type Box struct {
	X1, Y1, X2, Y2 float64
}

func (b Box) Width() float64   { return b.X2 - b.X1 }
func (b Box) Height() float64  { return b.Y2 - b.Y1 }
func (b Box) CenterX() float64 { return (b.X1 + b.X2) / 2 }
func (b Box) CenterY() float64 { return (b.Y1 + b.Y2) / 2 }

// Degenerate reports whether the box has no positive area or carries NaNs.
func (b Box) Degenerate() bool {
	if math.IsNaN(b.X1) || math.IsNaN(b.Y1) || math.IsNaN(b.X2) || math.IsNaN(b.Y2) {
		return true
	}
	return b.Width() <= 0 || b.Height() <= 0
}

// DetectedObject is one detection after reclassification.
type DetectedObject struct {
	Label      string  `json:"label"`
	RawLabel   string  `json:"raw_label"`
	Class      int     `json:"class"`
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// Geometry reclassifies raw labels into locale categories by aspect ratio.
type Geometry struct {
	RickshawAspectMin float64
	CNGWidthToHeight  float64
}

// NewGeometry builds a Geometry from resolved thresholds.
func NewGeometry(t config.Thresholds) Geometry {
	return Geometry{
		RickshawAspectMin: t.RickshawAspectMin,
		CNGWidthToHeight:  t.CNGWidthToHeight,
	}
}

// Classify returns the locale label for a raw detector label. Boxes with
// zero height pass through unchanged.
func (g Geometry) Classify(label string, box Box) string {
	w, h := box.Width(), box.Height()
	if h == 0 {
		return label
	}
	if label == Bicycle && w/h > g.RickshawAspectMin {
		return Rickshaw
	}
	if label == Car && w < h*g.CNGWidthToHeight {
		return CNG
	}
	return label
}

// Split filters raw detections against the allowlist, reclassifies road
// users and returns traffic lights separately. Input order is preserved.
func (g Geometry) Split(raw []DetectedObject) (road, lights []DetectedObject) {
	for _, o := range raw {
		switch {
		case o.Label == TrafficLight:
			lights = append(lights, o)
		case roadUsers[o.Label]:
			o.RawLabel = o.Label
			o.Label = g.Classify(o.Label, o.Box)
			road = append(road, o)
		}
	}
	return road, lights
}

// Labels returns the label of every object, in order.
func Labels(objs []DetectedObject) []string {
	out := make([]string, len(objs))
	for i, o := range objs {
		out[i] = o.Label
	}
	return out
}

// Boxes returns the box of every object, in order.
func Boxes(objs []DetectedObject) []Box {
	out := make([]Box, len(objs))
	for i, o := range objs {
		out[i] = o.Box
	}
	return out
}

// MaxWidthRatio is the widest object's width as a fraction of frameWidth,
// in [0,1]. Boxes are clamped to the frame horizontally first.
func MaxWidthRatio(objs []DetectedObject, frameWidth float64) float64 {
	if frameWidth <= 0 {
		return 0
	}
	best := 0.0
	for _, o := range objs {
		w := math.Min(o.Box.X2, frameWidth) - math.Max(o.Box.X1, 0)
		if r := w / frameWidth; r > best {
			best = r
		}
	}
	return best
}

// WidthGrowth returns (cur.W - prev.W) / prev.W. ok is false when the
// previous width is not positive.
func WidthGrowth(cur, prev Box) (growth float64, ok bool) {
	pw := prev.Width()
	if pw <= 0 {
		return 0, false
	}
	return (cur.Width() - pw) / pw, true
}

// Unmatched marks a current object with no counterpart in the previous window.
const Unmatched = -1

type candidate struct {
	cur, prev int
	dist      float64
}

// Match pairs each current object with at most one previous object of the
// same label, greedily by nearest box centre. maxDist bounds the centre
// distance in pixels; a non-positive maxDist disables the bound. The result
// has one entry per current object: the previous index or Unmatched.
func Match(prev, cur []DetectedObject, maxDist float64) []int {
	out := make([]int, len(cur))
	for i := range out {
		out[i] = Unmatched
	}
	if len(prev) == 0 || len(cur) == 0 {
		return out
	}

	cands := make([]candidate, 0, len(prev)*len(cur))
	for i, c := range cur {
		for j, p := range prev {
			if c.Label != p.Label {
				continue
			}
			d := math.Hypot(c.Box.CenterX()-p.Box.CenterX(), c.Box.CenterY()-p.Box.CenterY())
			if math.IsNaN(d) || (maxDist > 0 && d > maxDist) {
				continue
			}
			cands = append(cands, candidate{cur: i, prev: j, dist: d})
		}
	}
	sort.SliceStable(cands, func(a, b int) bool {
		if cands[a].dist != cands[b].dist {
			return cands[a].dist < cands[b].dist
		}
		if cands[a].cur != cands[b].cur {
			return cands[a].cur < cands[b].cur
		}
		return cands[a].prev < cands[b].prev
	})

	usedPrev := make([]bool, len(prev))
	for _, c := range cands {
		if out[c.cur] != Unmatched || usedPrev[c.prev] {
			continue
		}
		out[c.cur] = c.prev
		usedPrev[c.prev] = true
	}
	return out
}
