// Package tokens encodes one window's signals and hazard flags into the
// semantic token set ("description") consumed by the risk classifier and
// the verdict aggregator. Token spellings are an external contract.
package tokens

import (
	"strings"

	"github.com/banshee-data/ride.report/internal/config"
	"github.com/banshee-data/ride.report/internal/ride/hazards"
	"github.com/banshee-data/ride.report/internal/ride/motion"
	"github.com/banshee-data/ride.report/internal/ride/objects"
)

// Token is one semantic hazard or context marker.
type Token string

const (
	ReactiveSwerve        Token = "reactive_swerve"
	StableControl         Token = "stable_control"
	TightFiltering        Token = "tight_filtering"
	CriticalPinchPoint    Token = "critical_pinch_point"
	AggressivePinchEntry  Token = "AGGRESSIVE_PINCH_ENTRY"
	RickshawProximity     Token = "rickshaw_proximity"
	CNGProximity          Token = "cng_proximity"
	HeavyVehicleConflict  Token = "heavy_vehicle_conflict"
	TrafficJamSafe        Token = "traffic_jam_safe"
	TailgatingCritical    Token = "tailgating_critical"
	VisibilityBlindness   Token = "visibility_blindness"
	DistractedRiding      Token = "distracted_riding"
	CriticalLegunaStop    Token = "CRITICAL_LEGUNA_STOP"
	WrongWayHazard        Token = "WRONG_WAY_HAZARD"
	ActiveCrossingRisk    Token = "ACTIVE_CROSSING_RISK"
	StationaryPedestrian  Token = "STATIONARY_PEDESTRIAN"
	BlindSpotLoitering    Token = "BLIND_SPOT_LOITERING"
	RedLightViolation     Token = "RED_LIGHT_VIOLATION"
	AggressiveGapShooting Token = "AGGRESSIVE_GAP_SHOOTING"
	SpeedBreakerImpact    Token = "SPEED_BREAKER_IMPACT"
	BusBlockingLane       Token = "BUS_BLOCKING_LANE"
	AggressiveWeaving     Token = "AGGRESSIVE_WEAVING"
	StableLane            Token = "STABLE_LANE"
	SlalomAggressive      Token = "SLALOM_AGGRESSIVE"

	// Corpus-only markers used by the risk model and the SAFE advice branch.
	SafeGap      Token = "safe_gap"
	SmoothRiding Token = "smooth_riding"
)

// Set is an insertion-ordered set of tokens.
type Set struct {
	order []Token
	seen  map[Token]struct{}
}

// NewSet returns a set holding toks in first-seen order.
func NewSet(toks ...Token) *Set {
	s := &Set{seen: make(map[Token]struct{}, len(toks))}
	for _, t := range toks {
		s.Add(t)
	}
	return s
}

// Parse splits a space-separated description into a set.
func Parse(desc string) *Set {
	s := NewSet()
	for _, f := range strings.Fields(desc) {
		s.Add(Token(f))
	}
	return s
}

// Add inserts t if not already present.
func (s *Set) Add(t Token) {
	if s.seen == nil {
		s.seen = make(map[Token]struct{})
	}
	if _, ok := s.seen[t]; ok {
		return
	}
	s.seen[t] = struct{}{}
	s.order = append(s.order, t)
}

// Has reports literal membership.
func (s *Set) Has(t Token) bool {
	if s == nil {
		return false
	}
	_, ok := s.seen[t]
	return ok
}

// Tokens returns the tokens in insertion order.
func (s *Set) Tokens() []Token {
	if s == nil {
		return nil
	}
	return append([]Token(nil), s.order...)
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// String joins the tokens with single spaces.
func (s *Set) String() string {
	if s == nil {
		return ""
	}
	parts := make([]string, len(s.order))
	for i, t := range s.order {
		parts[i] = string(t)
	}
	return strings.Join(parts, " ")
}

// Input is the subset of a frame sample the encoder reads.
type Input struct {
	Speed     motion.SpeedStatus
	Jerk      float64
	Proximity float64
	Labels    []string
	Flags     hazards.Flags
}

// Encoder maps frame inputs onto token sets.
type Encoder struct {
	ReactiveJerk   float64
	StableJerk     float64
	CloseProximity float64
}

// NewEncoder builds an encoder from resolved thresholds.
func NewEncoder(t config.Thresholds) Encoder {
	return Encoder{
		ReactiveJerk:   t.ReactiveJerk,
		StableJerk:     t.StableJerk,
		CloseProximity: t.CloseProximity,
	}
}

// Encode builds the description for one window.
func (e Encoder) Encode(in Input) *Set {
	s := NewSet()
	jam := in.Speed == motion.Stationary || in.Speed == motion.Slow

	switch {
	case in.Jerk > e.ReactiveJerk:
		s.Add(ReactiveSwerve)
	case in.Jerk < e.StableJerk && in.Speed == motion.Fast:
		s.Add(StableControl)
	}

	if in.Flags.Pinch {
		if in.Speed == motion.Stationary {
			s.Add(TightFiltering)
		} else {
			if in.Flags.IntentionalPinchEntry {
				s.Add(AggressivePinchEntry)
			}
			s.Add(CriticalPinchPoint)
		}
	}

	if hasLabel(in.Labels, objects.Rickshaw) {
		s.Add(RickshawProximity)
	}
	if hasLabel(in.Labels, objects.CNG) {
		s.Add(CNGProximity)
	}
	if hasLabel(in.Labels, objects.Bus) || hasLabel(in.Labels, objects.Truck) {
		s.Add(HeavyVehicleConflict)
	}

	if in.Proximity > e.CloseProximity {
		if jam {
			s.Add(TrafficJamSafe)
		} else {
			s.Add(TailgatingCritical)
		}
	}

	if in.Flags.Glare {
		s.Add(VisibilityBlindness)
	}
	if in.Flags.Phone {
		s.Add(DistractedRiding)
	}

	f := in.Flags
	if f.LegunaBrake {
		s.Add(CriticalLegunaStop)
	}
	if f.WrongWay {
		s.Add(WrongWayHazard)
	}
	if f.Jaywalker == hazards.ActiveCrossingRisk {
		s.Add(ActiveCrossingRisk)
	}
	if f.BlindSpotLoitering {
		s.Add(BlindSpotLoitering)
	}
	if f.RedLightViolation {
		s.Add(RedLightViolation)
	}
	if f.GapShooting {
		s.Add(AggressiveGapShooting)
	}
	if f.SpeedBreaker {
		s.Add(SpeedBreakerImpact)
	}
	if f.BusBlockade {
		s.Add(BusBlockingLane)
	}
	if f.Weaving == hazards.AggressiveWeaving {
		s.Add(AggressiveWeaving)
	} else {
		s.Add(StableLane)
	}
	if f.SlalomAggressive {
		s.Add(SlalomAggressive)
	}
	if f.IntentionalPinchEntry {
		s.Add(AggressivePinchEntry)
	}
	return s
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}
