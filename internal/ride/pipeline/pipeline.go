package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/banshee-data/ride.report/internal/config"
	"github.com/banshee-data/ride.report/internal/ride/advice"
	"github.com/banshee-data/ride.report/internal/ride/hazards"
	"github.com/banshee-data/ride.report/internal/ride/motion"
	"github.com/banshee-data/ride.report/internal/ride/objects"
	"github.com/banshee-data/ride.report/internal/ride/risk"
	"github.com/banshee-data/ride.report/internal/ride/sampler"
	"github.com/banshee-data/ride.report/internal/ride/tokens"
	"github.com/banshee-data/ride.report/internal/ride/verdict"
	"github.com/banshee-data/ride.report/internal/timeutil"
)

var (
	// ErrInput marks a video that cannot be analysed at all: missing,
	// unreadable, empty or without frames.
	ErrInput = errors.New("invalid input video")
	// ErrNoSamples is returned when every window was skipped.
	ErrNoSamples = errors.New("no windows could be sampled")
)

// VideoSource decodes frames by source index.
type VideoSource interface {
	FrameCount() int
	Width() int
	Frame(idx int) (image.Image, error)
}

// FlowEstimator computes a dense motion field between two frames of the
// same size.
type FlowEstimator interface {
	Flow(prev, next image.Image) (*motion.Field, error)
}

// ObjectDetector localises objects in a frame. Labels use the detector's
// raw class names.
type ObjectDetector interface {
	Detect(img image.Image) ([]objects.DetectedObject, error)
}

// PixelAnalyzer measures colour statistics of a frame: the red share of a
// traffic-light box and the mean grayscale intensity.
type PixelAnalyzer interface {
	RedRatio(img image.Image, box objects.Box) (float64, error)
	MeanGray(img image.Image) (float64, error)
}

// TierClassifier assigns a risk tier to each description, in order.
type TierClassifier interface {
	Predict(descs []string) ([]risk.Tier, error)
}

// FrameSample is the per-window output of the detection stages.
type FrameSample struct {
	FrameID   int                      `json:"frame_id"`
	Objects   []objects.DetectedObject `json:"objects"`
	Speed     motion.SpeedStatus       `json:"speed"`
	Jerk      float64                  `json:"jerk"`
	Proximity float64                  `json:"proximity"`
	Signals   motion.Signals           `json:"signals"`
	Flags     hazards.Flags            `json:"flags"`
}

// TimelinePoint is one classified window.
type TimelinePoint struct {
	FrameID     int    `json:"frame_id"`
	Tier        string `json:"tier"`
	Description string `json:"description"`
}

// Result is the full outcome of a ride analysis.
type Result struct {
	verdict.Summary
	Recommendations []advice.Recommendation `json:"recommendations"`
	Timeline        []TimelinePoint         `json:"timeline"`
	SkippedWindows  int                     `json:"skipped_windows"`
	Elapsed         time.Duration           `json:"elapsed_ns"`
}

// Engine analyses videos. An Engine holds no per-video state, so one
// engine may run several videos concurrently; each Run gets fresh state.
type Engine struct {
	Flow       FlowEstimator
	Detector   ObjectDetector
	Pixels     PixelAnalyzer
	Classifier TierClassifier
	Tuning     config.Thresholds
	Clock      timeutil.Clock
}

// NewEngine wires an engine with the given collaborators.
func NewEngine(t config.Thresholds, flow FlowEstimator, det ObjectDetector, px PixelAnalyzer, cls TierClassifier) *Engine {
	return &Engine{
		Flow:       flow,
		Detector:   det,
		Pixels:     px,
		Classifier: cls,
		Tuning:     t,
		Clock:      timeutil.RealClock{},
	}
}

// ValidatePath checks that path names a non-empty regular file.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInput)
	}
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInput, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrInput, path)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInput, path)
	}
	return nil
}

// Samples runs the detection stages over every window of src.
func (e *Engine) Samples(ctx context.Context, src VideoSource) ([]FrameSample, int, error) {
	if src == nil {
		return nil, 0, fmt.Errorf("%w: no video source", ErrInput)
	}
	total := src.FrameCount()
	if total <= 0 {
		return nil, 0, fmt.Errorf("%w: video has no frames", ErrInput)
	}
	if e.Flow == nil || e.Detector == nil || e.Pixels == nil {
		return nil, 0, errors.New("pipeline: flow estimator, object detector and pixel analyser are required")
	}

	t := e.Tuning
	bank := hazards.NewBank(t)
	state := bank.State()
	geom := objects.NewGeometry(t)
	bands := motion.Bands{Fast: t.FastMotion, Slow: t.SlowMotion}

	var samples []FrameSample
	skipped := 0
	st, err := sampler.Sample(ctx, src, total, t.WindowSize, func(p sampler.Pair) error {
		field, err := e.Flow.Flow(p.FirstFrame, p.LastFrame)
		if err != nil {
			opsf("window %d: flow failed, skipping: %v", p.Index, err)
			skipped++
			return nil
		}
		raw, err := e.Detector.Detect(p.LastFrame)
		if err != nil {
			opsf("window %d: detection failed, skipping: %v", p.Index, err)
			skipped++
			return nil
		}

		width := float64(src.Width())
		if width <= 0 {
			width = float64(p.LastFrame.Bounds().Dx())
		}

		sig := motion.Compute(field, state.PreviousLateralFlow, bands)
		state.PreviousLateralFlow = sig.LateralFlow

		road, lights := geom.Split(raw)
		flags := bank.Evaluate(hazards.Scene{
			Objects: road,
			Lights:  lights,
			Signals: sig,
			Field:   field,
			Image:   p.LastFrame,
			Width:   width,
			Pixels:  e.Pixels,
		})

		s := FrameSample{
			FrameID:   p.First,
			Objects:   road,
			Speed:     sig.Speed,
			Jerk:      sig.Jerk,
			Proximity: objects.MaxWidthRatio(road, width),
			Signals:   sig,
			Flags:     flags,
		}
		tracef("window %d frame %d speed=%s jerk=%.3f proximity=%.3f objects=%d",
			p.Index, s.FrameID, s.Speed, s.Jerk, s.Proximity, len(road))
		samples = append(samples, s)
		return nil
	})
	skipped += st.Skipped
	if err != nil {
		return samples, skipped, err
	}
	if len(samples) == 0 {
		return nil, skipped, fmt.Errorf("%w: %d of %d windows skipped", ErrNoSamples, skipped, st.Windows)
	}
	return samples, skipped, nil
}

// Describe encodes each sample into its token description.
func (e *Engine) Describe(samples []FrameSample) []*tokens.Set {
	enc := tokens.NewEncoder(e.Tuning)
	out := make([]*tokens.Set, len(samples))
	for i, s := range samples {
		out[i] = enc.Encode(tokens.Input{
			Speed:     s.Speed,
			Jerk:      s.Jerk,
			Proximity: s.Proximity,
			Labels:    objects.Labels(s.Objects),
			Flags:     s.Flags,
		})
	}
	return out
}

// Run analyses one video end to end. Cancellation is honoured between
// windows.
func (e *Engine) Run(ctx context.Context, src VideoSource) (*Result, error) {
	if e.Classifier == nil {
		return nil, errors.New("pipeline: tier classifier is required")
	}
	clock := e.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	start := clock.Now()

	samples, skipped, err := e.Samples(ctx, src)
	if err != nil {
		return nil, err
	}
	descs := e.Describe(samples)

	texts := make([]string, len(descs))
	for i, d := range descs {
		texts[i] = d.String()
	}
	tiers, err := e.Classifier.Predict(texts)
	if err != nil {
		return nil, fmt.Errorf("classify windows: %w", err)
	}
	if len(tiers) != len(texts) {
		return nil, fmt.Errorf("classify windows: got %d tiers for %d descriptions", len(tiers), len(texts))
	}

	windows := make([]verdict.Window, len(samples))
	timeline := make([]TimelinePoint, len(samples))
	for i, s := range samples {
		windows[i] = verdict.Window{FrameID: s.FrameID, Tier: tiers[i], Description: descs[i]}
		timeline[i] = TimelinePoint{FrameID: s.FrameID, Tier: tiers[i].String(), Description: texts[i]}
		tracef("frame %d tier=%s desc=%q", s.FrameID, tiers[i], texts[i])
	}

	sum := verdict.Aggregate(windows)
	res := &Result{
		Summary:         sum,
		Recommendations: advice.Select(sum.Verdict, sum.Stats, descs),
		Timeline:        timeline,
		SkippedWindows:  skipped,
		Elapsed:         clock.Since(start),
	}
	diagf("ride analysed: %d windows (%d skipped), %d critical, verdict %s, style %s, took %v",
		sum.TotalSamples, skipped, sum.CriticalFrames, sum.Verdict, sum.RiderStyle, res.Elapsed)
	return res, nil
}
