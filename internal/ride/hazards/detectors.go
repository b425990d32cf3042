package hazards

import (
	"image"
	"math"

	"github.com/banshee-data/ride.report/internal/config"
	"github.com/banshee-data/ride.report/internal/ride/motion"
	"github.com/banshee-data/ride.report/internal/ride/objects"
)

// PinchPoint reports whether the escape gap around the frame centre is
// narrower than PinchGapFraction of the frame width. Objects starting past
// DividerEdgeFraction are treated as a lane divider: they count as right
// side objects but do not narrow the gap beyond the frame edge. With no
// right side object the right bound is capped at DividerMarginFraction.
func PinchPoint(boxes []objects.Box, width float64, t config.Thresholds) bool {
	if width <= 0 {
		return false
	}
	centerX := width / 2
	dividerX := width * t.DividerEdgeFraction
	left, right := 0.0, width
	rightSide := 0

	for _, b := range boxes {
		if b.CenterX() < centerX {
			left = math.Max(left, b.X2)
			continue
		}
		rightSide++
		if b.X1 > dividerX {
			continue
		}
		right = math.Min(right, b.X1)
	}
	if rightSide == 0 {
		right = math.Min(right, width*t.DividerMarginFraction)
	}
	return right-left < width*t.PinchGapFraction
}

// CenterGap is the distance between the nearest obstacle edges either side
// of the frame centre, with the frame edges as fallback bounds.
func CenterGap(boxes []objects.Box, width float64) float64 {
	centerX := width / 2
	left, right := 0.0, width
	for _, b := range boxes {
		if b.CenterX() < centerX {
			left = math.Max(left, b.X2)
		} else {
			right = math.Min(right, b.X1)
		}
	}
	return right - left
}

// IntentionalPinchEntry reports a rider steering into a narrowing gap:
// the gap is already tight, it shrank since the previous window, and the
// rider is moving sideways.
func IntentionalPinchEntry(cur, prev []objects.Box, lateralFlow, width float64, t config.Thresholds) bool {
	if len(prev) == 0 || len(cur) < 2 || width <= 0 {
		return false
	}
	curGap := CenterGap(cur, width)
	prevGap := CenterGap(prev, width)

	narrowing := prevGap > curGap && prevGap-curGap > width*t.PinchEntryNarrowingFraction
	moving := math.Abs(lateralFlow) > t.PinchEntryLateralFlow
	tight := curGap < width*t.PinchEntryGapFraction
	return narrowing && moving && tight
}

// LegunaBrake reports a boxy bus, truck or car whose width grew sharply
// since its matched previous box. prev is nil when the object is new.
func LegunaBrake(o objects.DetectedObject, prev *objects.Box, t config.Thresholds) bool {
	switch o.Label {
	case objects.Bus, objects.Truck, objects.Car:
	default:
		return false
	}
	h := o.Box.Height()
	if h == 0 || prev == nil {
		return false
	}
	aspect := o.Box.Width() / h
	if aspect <= t.LegunaAspectMin || aspect >= t.LegunaAspectMax {
		return false
	}
	growth, ok := objects.WidthGrowth(o.Box, *prev)
	return ok && growth > t.LegunaWidthGrowth
}

// WrongWay reports an object approaching head-on in the ego lane.
func WrongWay(cur objects.Box, prev *objects.Box, centerX float64, t config.Thresholds) bool {
	if prev == nil {
		return false
	}
	expanding := cur.Width() > prev.Width()*(1+t.WrongWayWidthGrowth)
	inLane := math.Abs(cur.CenterX()-centerX) < t.WrongWayCenterBand
	return expanding && inLane
}

// Jaywalker classifies a person box by the mean horizontal flow inside it.
// A missing field or a box that clamps to nothing is stationary.
func Jaywalker(box objects.Box, f *motion.Field, t config.Thresholds) Pedestrian {
	if f.Empty() {
		return StationaryPedestrian
	}
	r := image.Rect(int(box.X1), int(box.Y1), int(box.X2), int(box.Y2))
	mean, ok := f.MeanDX(r)
	if !ok {
		return StationaryPedestrian
	}
	if math.Abs(mean) > t.JaywalkerLateralFlow {
		return ActiveCrossingRisk
	}
	return StationaryPedestrian
}

// RedLightViolation reports a red traffic light while the rider is moving.
// A light whose pixels cannot be measured is skipped.
func RedLightViolation(px PixelAnalyzer, img image.Image, lights []objects.DetectedObject, speed motion.SpeedStatus, t config.Thresholds) bool {
	if px == nil || img == nil || speed == motion.Stationary {
		return false
	}
	for _, l := range lights {
		ratio, err := px.RedRatio(img, l.Box)
		if err != nil {
			diagf("red light: skipping light at %+v: %v", l.Box, err)
			continue
		}
		if ratio > t.RedLightPixelRatio {
			return true
		}
	}
	return false
}

// TTC bands the widest object's share of the frame width.
func TTC(maxWidthRatio float64, t config.Thresholds) TTCStatus {
	switch {
	case maxWidthRatio > t.TTCCriticalFraction:
		return TTCCritical
	case maxWidthRatio > t.TTCWarningFraction:
		return TTCWarning
	default:
		return TTCSafe
	}
}

// GapShooting reports acceleration while time-to-collision is critical.
func GapShooting(ttc TTCStatus, speedScore, prevSpeedScore float64, t config.Thresholds) bool {
	return ttc == TTCCritical && speedScore-prevSpeedScore > t.GapShootingAcceleration
}

// SpeedBreaker reports a vertical camera jolt from the mean vertical flow.
func SpeedBreaker(f *motion.Field, verticalFlow float64, t config.Thresholds) bool {
	if f.Empty() {
		return false
	}
	return math.Abs(verticalFlow) > t.SpeedBreakerVerticalFlow
}

// BusBlockade reports a bus widening quickly, as when it swings across
// the lane.
func BusBlockade(cur objects.Box, prev *objects.Box, t config.Thresholds) bool {
	if prev == nil {
		return false
	}
	pw := prev.Width()
	if pw <= 0 {
		return false
	}
	return cur.Width()/pw > t.BusBlockadeWidthRatio
}

// Glare reports a washed-out frame.
func Glare(px PixelAnalyzer, img image.Image, t config.Thresholds) bool {
	if px == nil || img == nil {
		return false
	}
	mean, err := px.MeanGray(img)
	if err != nil {
		diagf("glare: %v", err)
		return false
	}
	return mean > t.GlareIntensity
}

// Phone reports whether any object is a phone.
func Phone(objs []objects.DetectedObject) bool {
	for _, o := range objs {
		if o.Label == objects.CellPhone {
			return true
		}
	}
	return false
}

// Direction maps lateral flow onto -1 (left), 0 (straight) or 1 (right).
func Direction(lateralFlow float64, t config.Thresholds) int {
	switch {
	case lateralFlow > t.WeavingLateralFlow:
		return 1
	case lateralFlow < -t.WeavingLateralFlow:
		return -1
	default:
		return 0
	}
}

// ObserveBlindSpot updates the dwell counter from a window's objects and
// reports loitering once the dwell exceeds BlindSpotDwellWindows.
func (s *State) ObserveBlindSpot(objs []objects.DetectedObject, width float64, t config.Thresholds) bool {
	onSide := false
	for _, o := range objs {
		if o.Label != objects.Bus && o.Label != objects.Truck {
			continue
		}
		cx := o.Box.CenterX()
		if cx < width*t.BlindSpotEdgeFraction || cx > width*(1-t.BlindSpotEdgeFraction) {
			onSide = true
			break
		}
	}
	if onSide {
		s.BlindSpotDwell++
	} else {
		s.BlindSpotDwell = 0
	}
	return s.BlindSpotDwell > t.BlindSpotDwellWindows
}

// ObserveLateral pushes the window's direction into the history and
// classifies the lane discipline over it.
func (s *State) ObserveLateral(lateralFlow float64, t config.Thresholds) Lane {
	s.PushDirection(Direction(lateralFlow, t))
	if s.DirectionChanges() > t.WeavingDirectionChanges {
		return AggressiveWeaving
	}
	return StableLane
}

// ObserveSlalom counts consecutive weaving windows in dense traffic and
// reports once the run reaches SlalomMinWindows.
func (s *State) ObserveSlalom(lane Lane, objs []objects.DetectedObject, t config.Thresholds) bool {
	vehicles := 0
	for _, o := range objs {
		switch o.Label {
		case objects.Car, objects.Bus, objects.Truck:
			vehicles++
		}
	}
	if lane == AggressiveWeaving && vehicles >= t.SlalomMinVehicles {
		s.SlalomCounter++
	} else {
		s.SlalomCounter = 0
	}
	return s.SlalomCounter >= t.SlalomMinWindows
}
