// Package yolo decodes YOLOv8 detection tensors into class-scored boxes.
// It has no OpenCV dependency; the gocv adapter feeds it raw output.
package yolo

import (
	"fmt"
	"sort"
)

// COCO class ids the ride pipeline cares about, with the detector's
// class names.
var COCO = map[int]string{
	0:  "person",
	1:  "bicycle",
	2:  "car",
	3:  "motorcycle",
	5:  "bus",
	7:  "truck",
	9:  "traffic light",
	67: "cell phone",
}

// NumCOCOClasses is the class count of the stock YOLOv8 heads.
const NumCOCOClasses = 80

// Candidate is one pre-NMS detection in source image pixels.
type Candidate struct {
	Class          int
	Score          float32
	X1, Y1, X2, Y2 float64
}

// Scale maps network input coordinates back onto the source image.
type Scale struct {
	X, Y float64
}

// NewScale returns the factors for a source frame resized to size x size.
func NewScale(srcW, srcH, size int) Scale {
	if size <= 0 {
		return Scale{X: 1, Y: 1}
	}
	return Scale{X: float64(srcW) / float64(size), Y: float64(srcH) / float64(size)}
}

// Decode reads a YOLOv8 output laid out as attrs rows of anchors columns,
// where attrs = 4 + classes and the first four rows are cx, cy, w, h.
// Only classes present in keep are considered; a nil keep admits all.
// Candidates below minScore are dropped. The result is sorted by
// descending score, then class.
func Decode(out []float32, attrs, anchors int, minScore float32, sc Scale, keep map[int]string) ([]Candidate, error) {
	if attrs <= 4 || anchors <= 0 {
		return nil, fmt.Errorf("yolo: bad output shape %dx%d", attrs, anchors)
	}
	if len(out) < attrs*anchors {
		return nil, fmt.Errorf("yolo: output has %d values, want %d", len(out), attrs*anchors)
	}
	at := func(row, col int) float32 { return out[row*anchors+col] }

	var cands []Candidate
	for a := 0; a < anchors; a++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < attrs-4; c++ {
			if keep != nil {
				if _, ok := keep[c]; !ok {
					continue
				}
			}
			if s := at(4+c, a); s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || bestScore < minScore {
			continue
		}
		cx, cy := float64(at(0, a)), float64(at(1, a))
		w, h := float64(at(2, a)), float64(at(3, a))
		cands = append(cands, Candidate{
			Class: best,
			Score: bestScore,
			X1:    (cx - w/2) * sc.X,
			Y1:    (cy - h/2) * sc.Y,
			X2:    (cx + w/2) * sc.X,
			Y2:    (cy + h/2) * sc.Y,
		})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Class < cands[j].Class
	})
	return cands, nil
}

// ByClass groups candidates by class id, keeping score order.
func ByClass(cands []Candidate) map[int][]Candidate {
	g := make(map[int][]Candidate)
	for _, c := range cands {
		g[c.Class] = append(g[c.Class], c)
	}
	return g
}
