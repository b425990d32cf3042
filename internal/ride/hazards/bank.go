package hazards

import (
	"image"

	"github.com/banshee-data/ride.report/internal/config"
	"github.com/banshee-data/ride.report/internal/ride/motion"
	"github.com/banshee-data/ride.report/internal/ride/objects"
)

// PixelAnalyzer measures colour statistics of a frame for the red-light
// and glare detectors.
type PixelAnalyzer interface {
	// RedRatio is the fraction of pixels inside box in a red hue band.
	RedRatio(img image.Image, box objects.Box) (float64, error)
	// MeanGray is the mean grayscale intensity of img, 0-255.
	MeanGray(img image.Image) (float64, error)
}

// Scene is everything the detectors see for one window.
type Scene struct {
	Objects []objects.DetectedObject // road users, reclassified
	Lights  []objects.DetectedObject // traffic lights
	Signals motion.Signals
	Field   *motion.Field
	Image   image.Image // last frame of the window
	Width   float64     // decoded frame width in pixels
	Pixels  PixelAnalyzer
}

// Bank runs every detector against a window and carries State forward.
type Bank struct {
	t     config.Thresholds
	state *State
}

// NewBank returns a bank with fresh state.
func NewBank(t config.Thresholds) *Bank {
	return &Bank{t: t, state: NewState(t.WeavingHistoryLength)}
}

// State exposes the bank's temporal state for inspection.
func (b *Bank) State() *State { return b.state }

// Evaluate runs the detectors for one window. A detector that panics
// yields its default and the remaining detectors still run. State is
// advanced after all detectors have read it.
func (b *Bank) Evaluate(sc Scene) Flags {
	t, st := b.t, b.state
	f := NoHazards()

	if n := degenerateCount(sc.Objects); n > 0 {
		diagf("%d degenerate boxes in window (width=%.0f)", n, sc.Width)
	}
	boxes := objects.Boxes(sc.Objects)
	prevBoxes := objects.Boxes(st.PreviousObjects)

	f.Pinch = guard("pinch_point", false, func() bool {
		return PinchPoint(boxes, sc.Width, t)
	})
	if f.Pinch && len(prevBoxes) > 0 {
		f.IntentionalPinchEntry = guard("intentional_pinch_entry", false, func() bool {
			return IntentionalPinchEntry(boxes, prevBoxes, sc.Signals.LateralFlow, sc.Width, t)
		})
	}
	f.Glare = guard("glare", false, func() bool { return Glare(sc.Pixels, sc.Image, t) })

	matches := guard("match", []int(nil), func() []int {
		return objects.Match(st.PreviousObjects, sc.Objects, t.MatchMaxCenterDistance*sc.Width)
	})
	centerX := sc.Width / 2
	for i, o := range sc.Objects {
		var prev *objects.Box
		if i < len(matches) && matches[i] != objects.Unmatched {
			p := st.PreviousObjects[matches[i]].Box
			prev = &p
		}

		if guard("leguna_brake", false, func() bool { return LegunaBrake(o, prev, t) }) {
			f.LegunaBrake = true
		}
		if guard("wrong_way", false, func() bool { return WrongWay(o.Box, prev, centerX, t) }) {
			f.WrongWay = true
		}
		if o.Label == objects.Person {
			state := guard("jaywalker", StationaryPedestrian, func() Pedestrian {
				return Jaywalker(o.Box, sc.Field, t)
			})
			if state == ActiveCrossingRisk {
				f.Jaywalker = ActiveCrossingRisk
			}
		}
		if !f.BusBlockade && o.Label == objects.Bus {
			f.BusBlockade = guard("bus_blockade", false, func() bool { return BusBlockade(o.Box, prev, t) })
		}
	}

	f.BlindSpotLoitering = guard("blind_spot_loitering", false, func() bool {
		return st.ObserveBlindSpot(sc.Objects, sc.Width, t)
	})
	f.RedLightViolation = guard("red_light_violation", false, func() bool {
		return RedLightViolation(sc.Pixels, sc.Image, sc.Lights, sc.Signals.Speed, t)
	})
	f.GapShooting = guard("gap_shooting", false, func() bool {
		ttc := TTC(objects.MaxWidthRatio(sc.Objects, sc.Width), t)
		return GapShooting(ttc, sc.Signals.AvgMotion, st.PreviousSpeedScore, t)
	})
	f.SpeedBreaker = guard("speed_breaker", false, func() bool {
		return SpeedBreaker(sc.Field, sc.Signals.VerticalFlow, t)
	})
	f.Weaving = guard("weaving", StableLane, func() Lane {
		return st.ObserveLateral(sc.Signals.LateralFlow, t)
	})
	f.SlalomAggressive = guard("slalom_aggressive", false, func() bool {
		return st.ObserveSlalom(f.Weaving, sc.Objects, t)
	})
	f.Phone = Phone(sc.Objects)

	st.PreviousSpeedScore = sc.Signals.AvgMotion
	st.PreviousObjects = append([]objects.DetectedObject(nil), sc.Objects...)

	tracef("flags pinch=%v entry=%v leguna=%v wrong_way=%v jaywalker=%s blind_spot=%v(dwell=%d) red=%v gap=%v breaker=%v bus=%v weaving=%s slalom=%v(run=%d) glare=%v phone=%v",
		f.Pinch, f.IntentionalPinchEntry, f.LegunaBrake, f.WrongWay, f.Jaywalker,
		f.BlindSpotLoitering, st.BlindSpotDwell, f.RedLightViolation, f.GapShooting,
		f.SpeedBreaker, f.BusBlockade, f.Weaving, f.SlalomAggressive, st.SlalomCounter,
		f.Glare, f.Phone)
	return f
}

// guard runs a detector, converting a panic into its default value.
func guard[T any](name string, fallback T, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			opsf("detector %s recovered: %v", name, r)
			out = fallback
		}
	}()
	return fn()
}

func degenerateCount(objs []objects.DetectedObject) int {
	n := 0
	for _, o := range objs {
		if o.Box.Degenerate() {
			n++
		}
	}
	return n
}
