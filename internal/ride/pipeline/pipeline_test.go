package pipeline

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ride.report/internal/config"
	"github.com/banshee-data/ride.report/internal/ride/motion"
	"github.com/banshee-data/ride.report/internal/ride/objects"
	"github.com/banshee-data/ride.report/internal/ride/risk"
	"github.com/banshee-data/ride.report/internal/ride/sampler"
	"github.com/banshee-data/ride.report/internal/ride/verdict"
	"github.com/banshee-data/ride.report/internal/testutil"
	"github.com/banshee-data/ride.report/internal/timeutil"
)

func newTestEngine(t *testing.T, flow FlowEstimator, det ObjectDetector, cls TierClassifier) *Engine {
	t.Helper()
	return newTestEngineWithPixels(t, flow, det, &testutil.FakePixels{}, cls)
}

func newTestEngineWithPixels(t *testing.T, flow FlowEstimator, det ObjectDetector, px PixelAnalyzer, cls TierClassifier) *Engine {
	t.Helper()
	if cls == nil {
		m, err := risk.NewTrainedModel()
		require.NoError(t, err)
		cls = m
	}
	e := NewEngine(config.DefaultThresholds(), flow, det, px, cls)
	e.Clock = timeutil.NewMockClock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	return e
}

func TestRunCleanRide(t *testing.T) {
	v := testutil.NewFakeVideo(45, 64, 48)
	e := newTestEngine(t, &testutil.FakeFlow{}, &testutil.FakeDetector{}, nil)

	res, err := e.Run(context.Background(), v)
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalSamples)
	assert.Equal(t, 3, res.SafeFrames)
	assert.Equal(t, 0, res.CriticalFrames)
	assert.Equal(t, 0.0, res.RiskPercentage)
	assert.Equal(t, verdict.Safe, res.Verdict)
	assert.Equal(t, verdict.StyleProactive, res.RiderStyle)
	assert.Empty(t, res.CriticalEvents)

	require.Len(t, res.Timeline, 3)
	assert.Equal(t, []int{0, 15, 30}, []int{res.Timeline[0].FrameID, res.Timeline[1].FrameID, res.Timeline[2].FrameID})
	assert.Equal(t, "STABLE_LANE", res.Timeline[0].Description)
	assert.Equal(t, "SAFE", res.Timeline[0].Tier)

	require.NotEmpty(t, res.Recommendations)
	assert.Equal(t, "Safety Streak Badge", res.Recommendations[0].Title)
}

func TestRunIsIdempotent(t *testing.T) {
	v := testutil.NewFakeVideo(90, 64, 48)
	flow := &testutil.FakeFlow{ByFrame: map[image.Image]*motion.Field{
		v.Frames[14]: testutil.UniformField(64, 48, 3, 0),
		v.Frames[29]: testutil.UniformField(64, 48, -3, 0),
		v.Frames[44]: testutil.UniformField(64, 48, 20, 1),
		v.Frames[59]: testutil.UniformField(64, 48, -2.5, 0),
	}}
	det := &testutil.FakeDetector{ByFrame: map[image.Image][]objects.DetectedObject{
		v.Frames[14]: {testutil.Object("bus", 0, 10, 30, 40)},
		v.Frames[29]: {testutil.Object("bus", 0, 10, 34, 40), testutil.Object("bicycle", 40, 20, 50, 30)},
		v.Frames[44]: {testutil.Object("car", 20, 10, 50, 40)},
	}}
	e := newTestEngine(t, flow, det, nil)

	first, err := e.Run(context.Background(), v)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), v)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
	assert.Contains(t, first.Timeline[0].Description, "reactive_swerve")
	assert.Contains(t, first.Timeline[0].Description, "heavy_vehicle_conflict")
}

func TestRunPhoneMakesRideUnsafe(t *testing.T) {
	v := testutil.NewFakeVideo(150, 64, 48)
	det := &testutil.FakeDetector{ByFrame: map[image.Image][]objects.DetectedObject{
		v.Frames[14]: {testutil.Object(objects.CellPhone, 10, 10, 14, 16)},
	}}
	cls := &testutil.FakeClassifier{DangerTokens: []string{"distracted_riding"}}
	e := newTestEngine(t, &testutil.FakeFlow{}, det, cls)

	res, err := e.Run(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, 10, res.TotalSamples)
	assert.Equal(t, 1, res.CriticalFrames)
	assert.Equal(t, 1, res.Stats.DistractedRiding)
	assert.Equal(t, verdict.Unsafe, res.Verdict)
	assert.Contains(t, res.Reason, "phone distraction")
	require.Len(t, res.CriticalEvents, 1)
	assert.Equal(t, 0, res.CriticalEvents[0].FrameID)
	assert.Equal(t, "DANGER", res.CriticalEvents[0].TierLabel)
}

func TestRunTrafficLightsAreNotRoadUsers(t *testing.T) {
	v := testutil.NewFakeVideo(15, 64, 48)
	det := &testutil.FakeDetector{ByFrame: map[image.Image][]objects.DetectedObject{
		v.Frames[14]: {
			testutil.Object(objects.TrafficLight, 0, 0, 60, 10),
			testutil.Object("dog", 0, 0, 60, 40),
		},
	}}
	e := newTestEngine(t, &testutil.FakeFlow{}, det, nil)

	samples, _, err := e.Samples(context.Background(), v)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Empty(t, samples[0].Objects)
	assert.Equal(t, 0.0, samples[0].Proximity)
}

func TestRunRedLightAtSpeed(t *testing.T) {
	v := testutil.NewFakeVideo(30, 64, 48)
	light := testutil.Object(objects.TrafficLight, 20, 0, 30, 20)
	flow := &testutil.FakeFlow{ByFrame: map[image.Image]*motion.Field{
		v.Frames[14]: testutil.UniformField(64, 48, 4, 0),
		v.Frames[29]: testutil.UniformField(64, 48, 0, 0),
	}}
	det := &testutil.FakeDetector{ByFrame: map[image.Image][]objects.DetectedObject{
		v.Frames[14]: {light},
		v.Frames[29]: {light},
	}}
	px := &testutil.FakePixels{Red: map[objects.Box]float64{light.Box: 0.3}}
	e := newTestEngineWithPixels(t, flow, det, px, nil)

	samples, _, err := e.Samples(context.Background(), v)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.True(t, samples[0].Flags.RedLightViolation, "moving through a red light")
	assert.False(t, samples[1].Flags.RedLightViolation, "stopped at the light")
}

func TestRunRequiresPixelAnalyzer(t *testing.T) {
	e := newTestEngineWithPixels(t, &testutil.FakeFlow{}, &testutil.FakeDetector{}, nil, nil)
	_, err := e.Run(context.Background(), testutil.NewFakeVideo(15, 8, 8))
	assert.ErrorContains(t, err, "pixel analyser")
}

func TestRunSkipsWindowOnLastFrameFailure(t *testing.T) {
	v := testutil.NewFakeVideo(45, 16, 16)
	v.Fail[14] = true
	e := newTestEngine(t, &testutil.FakeFlow{}, &testutil.FakeDetector{}, nil)

	res, err := e.Run(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalSamples)
	assert.Equal(t, 1, res.SkippedWindows)
	assert.Equal(t, 15, res.Timeline[0].FrameID)
}

type failingFlow struct{ at image.Image }

func (f failingFlow) Flow(prev, next image.Image) (*motion.Field, error) {
	if next == f.at {
		return nil, errors.New("flow exploded")
	}
	b := next.Bounds()
	return motion.NewField(b.Dx(), b.Dy()), nil
}

func TestRunSkipsWindowOnFlowFailure(t *testing.T) {
	v := testutil.NewFakeVideo(45, 16, 16)
	e := newTestEngine(t, failingFlow{at: v.Frames[29]}, &testutil.FakeDetector{}, nil)

	res, err := e.Run(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalSamples)
	assert.Equal(t, 1, res.SkippedWindows)
}

func TestRunErrors(t *testing.T) {
	trained, err := risk.NewTrainedModel()
	require.NoError(t, err)

	tests := []struct {
		name  string
		video VideoSource
		cls   TierClassifier
		want  error
	}{
		{"no frames", testutil.NewFakeVideo(0, 8, 8), trained, ErrInput},
		{"shorter than a window", testutil.NewFakeVideo(10, 8, 8), trained, ErrNoSamples},
		{"untrained classifier", testutil.NewFakeVideo(30, 8, 8), risk.NewModel(), risk.ErrNotTrained},
		{"first frame unreadable", func() VideoSource {
			v := testutil.NewFakeVideo(30, 8, 8)
			v.Fail[0] = true
			return v
		}(), trained, sampler.ErrFrameRead},
		{"every window skipped", func() VideoSource {
			v := testutil.NewFakeVideo(30, 8, 8)
			v.Fail[14] = true
			v.Fail[29] = true
			return v
		}(), trained, ErrNoSamples},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, &testutil.FakeFlow{}, &testutil.FakeDetector{}, tt.cls)
			res, err := e.Run(context.Background(), tt.video)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunNilSource(t *testing.T) {
	e := newTestEngine(t, &testutil.FakeFlow{}, &testutil.FakeDetector{}, nil)
	_, err := e.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInput)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newTestEngine(t, &testutil.FakeFlow{}, &testutil.FakeDetector{}, nil)
	_, err := e.Run(ctx, testutil.NewFakeVideo(45, 8, 8))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEnginesRunConcurrently(t *testing.T) {
	e := newTestEngine(t, &testutil.FakeFlow{}, &testutil.FakeDetector{}, nil)

	var wg sync.WaitGroup
	results := make([]*Result, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Run(context.Background(), testutil.NewFakeVideo(15*(i+1), 8, 8))
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, i+1, res.TotalSamples)
	}
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.mp4")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	ride := filepath.Join(dir, "ride.mp4")
	require.NoError(t, os.WriteFile(ride, []byte("not really a video"), 0o644))

	assert.ErrorIs(t, ValidatePath(""), ErrInput)
	assert.ErrorIs(t, ValidatePath(filepath.Join(dir, "missing.mp4")), ErrInput)
	assert.ErrorIs(t, ValidatePath(dir), ErrInput)
	assert.ErrorIs(t, ValidatePath(empty), ErrInput)
	assert.NoError(t, ValidatePath(ride))
}
