package hazards

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ride.report/internal/ride/motion"
	"github.com/banshee-data/ride.report/internal/ride/objects"
	"github.com/banshee-data/ride.report/internal/testutil"
)

func TestLateralHistoryFIFO(t *testing.T) {
	s := NewState(30)
	flows := make([]float64, 31)
	want := make([]int, 0, 31)
	for i := range flows {
		// alternate right, straight, left
		switch i % 3 {
		case 0:
			flows[i] = 3
		case 1:
			flows[i] = 0
		case 2:
			flows[i] = -3
		}
		want = append(want, Direction(flows[i], th))
	}

	for i, f := range flows {
		s.ObserveLateral(f, th)
		assert.LessOrEqual(t, len(s.LateralHistory), 30, "after push %d", i)
	}

	require.Len(t, s.LateralHistory, 30)
	if diff := cmp.Diff(want[1:], s.LateralHistory); diff != "" {
		t.Errorf("history after 31 pushes (-want +got):\n%s", diff)
	}
}

func TestWeavingThreshold(t *testing.T) {
	s := NewState(30)
	got := StableLane
	// right,left alternation: every push after the first is a change
	for i := 0; i < 6; i++ {
		flow := 3.0
		if i%2 == 1 {
			flow = -3
		}
		got = s.ObserveLateral(flow, th)
	}
	assert.Equal(t, 5, s.DirectionChanges())
	assert.Equal(t, StableLane, got, "five changes is not weaving")

	got = s.ObserveLateral(3, th)
	assert.Equal(t, 6, s.DirectionChanges())
	assert.Equal(t, AggressiveWeaving, got)
}

func TestDirectionChangesIgnoreReturnToStraight(t *testing.T) {
	s := NewState(30)
	for _, d := range []int{1, 0, 1, 0, -1, -1} {
		s.PushDirection(d)
	}
	// 1->0 no, 0->1 yes, 1->0 no, 0->-1 yes, -1->-1 no
	assert.Equal(t, 2, s.DirectionChanges())
}

func TestBlindSpotDwell(t *testing.T) {
	const w = 1000.0
	s := NewState(30)
	side := []objects.DetectedObject{testutil.Object(objects.Bus, 0, 0, 150, 300)}  // centre 75
	front := []objects.DetectedObject{testutil.Object(objects.Bus, 400, 0, 600, 300)} // centre 500

	for i := 1; i <= 35; i++ {
		fired := s.ObserveBlindSpot(side, w, th)
		require.Equal(t, i, s.BlindSpotDwell)
		assert.Equal(t, i > 30, fired, "window %d", i)
	}

	assert.False(t, s.ObserveBlindSpot(front, w, th))
	assert.Equal(t, 0, s.BlindSpotDwell)

	right := []objects.DetectedObject{testutil.Object(objects.Truck, 850, 0, 990, 300)}
	s.ObserveBlindSpot(right, w, th)
	assert.Equal(t, 1, s.BlindSpotDwell)

	car := []objects.DetectedObject{testutil.Object(objects.Car, 0, 0, 150, 300)}
	s.ObserveBlindSpot(car, w, th)
	assert.Equal(t, 0, s.BlindSpotDwell, "cars do not loiter")
}

func TestSlalomCounter(t *testing.T) {
	s := NewState(30)
	dense := []objects.DetectedObject{
		testutil.Object(objects.Car, 0, 0, 10, 10),
		testutil.Object(objects.Bus, 20, 0, 30, 10),
		testutil.Object(objects.Truck, 40, 0, 50, 10),
	}

	assert.False(t, s.ObserveSlalom(AggressiveWeaving, dense, th))
	assert.False(t, s.ObserveSlalom(AggressiveWeaving, dense, th))
	assert.True(t, s.ObserveSlalom(AggressiveWeaving, dense, th))
	assert.True(t, s.ObserveSlalom(AggressiveWeaving, dense, th))
	assert.False(t, s.ObserveSlalom(AggressiveWeaving, dense[:2], th), "sparse traffic resets")
	assert.Equal(t, 0, s.SlalomCounter)
	assert.False(t, s.ObserveSlalom(StableLane, dense, th))
}

func TestBankMatchesReorderedObjects(t *testing.T) {
	const w = 1000.0
	b := NewBank(th)

	first := []objects.DetectedObject{
		testutil.Object(objects.Bus, 50, 0, 150, 100),
		testutil.Object(objects.Bus, 700, 0, 900, 100),
	}
	b.Evaluate(Scene{Objects: first, Width: w})

	// Same vehicles, listed in the opposite order and unchanged in size.
	second := []objects.DetectedObject{first[1], first[0]}
	f := b.Evaluate(Scene{Objects: second, Width: w})

	assert.False(t, f.BusBlockade, "index pairing would compare unrelated buses")
	assert.False(t, f.LegunaBrake)
}

func TestBankEvaluateFlagsAndState(t *testing.T) {
	const w = 1000.0
	b := NewBank(th)

	bus := testutil.Object(objects.Bus, 450, 0, 550, 100)
	f := b.Evaluate(Scene{
		Objects: []objects.DetectedObject{bus},
		Signals: motion.Signals{AvgMotion: 3, Speed: motion.Slow},
		Width:   w,
	})
	assert.Equal(t, NoHazards(), f)
	assert.Equal(t, 3.0, b.State().PreviousSpeedScore)
	require.Len(t, b.State().PreviousObjects, 1)

	grown := testutil.Object(objects.Bus, 440, 0, 560, 110)
	phone := testutil.Object(objects.CellPhone, 10, 10, 20, 30)
	f = b.Evaluate(Scene{
		Objects: []objects.DetectedObject{grown, phone},
		Signals: motion.Signals{AvgMotion: 5, Speed: motion.Slow},
		Width:   w,
	})
	assert.True(t, f.LegunaBrake)
	assert.True(t, f.WrongWay)
	assert.True(t, f.BusBlockade)
	assert.True(t, f.Phone)
	assert.Equal(t, StableLane, f.Weaving)
	assert.Len(t, b.State().LateralHistory, 2)
}

func TestBankPixelDetectors(t *testing.T) {
	img := testutil.SolidImage(100, 60, color.White)
	light := testutil.Object(objects.TrafficLight, 10, 0, 20, 30)
	px := &testutil.FakePixels{
		Red:  map[objects.Box]float64{light.Box: 0.4},
		Gray: map[image.Image]float64{img: 240},
	}

	f := NewBank(th).Evaluate(Scene{
		Lights:  []objects.DetectedObject{light},
		Signals: motion.Signals{Speed: motion.Fast},
		Image:   img,
		Width:   100,
		Pixels:  px,
	})
	assert.True(t, f.RedLightViolation)
	assert.True(t, f.Glare)

	f = NewBank(th).Evaluate(Scene{
		Lights:  []objects.DetectedObject{light},
		Signals: motion.Signals{Speed: motion.Fast},
		Image:   img,
		Width:   100,
	})
	assert.False(t, f.RedLightViolation, "no analyser")
	assert.False(t, f.Glare, "no analyser")
}

func TestBankGapShootingUsesPreviousSpeed(t *testing.T) {
	const w = 1000.0
	b := NewBank(th)
	wide := []objects.DetectedObject{testutil.Object(objects.Truck, 100, 0, 800, 300)}

	f := b.Evaluate(Scene{Objects: wide, Signals: motion.Signals{AvgMotion: 0.5}, Width: w})
	assert.False(t, f.GapShooting, "first window accelerates only 0.5 from zero")

	f = b.Evaluate(Scene{Objects: wide, Signals: motion.Signals{AvgMotion: 2.0}, Width: w})
	assert.True(t, f.GapShooting)
}

func TestGuardRecovers(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	defer SetLogWriters(nil, nil, nil)

	got := guard("boom", StationaryPedestrian, func() Pedestrian {
		var f *motion.Field
		_ = f.DX[0]
		return ActiveCrossingRisk
	})
	assert.Equal(t, StationaryPedestrian, got)
	assert.Contains(t, ops.String(), "detector boom recovered")

	assert.True(t, guard("ok", false, func() bool { return true }))
}
