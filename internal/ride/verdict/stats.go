package verdict

import (
	"github.com/banshee-data/ride.report/internal/ride/tokens"
)

// Stats holds the per-ride hazard counters.
type Stats struct {
	ReactiveSwerves        int `json:"reactive_swerves"`
	PinchPoints            int `json:"pinch_points"`
	DistractedRiding       int `json:"distracted_riding"`
	HeavyVehicleConflicts  int `json:"heavy_vehicle_conflicts"`
	Tailgating             int `json:"tailgating"`
	LegunaEmergencyStops   int `json:"leguna_emergency_stops"`
	WrongWayVehicles       int `json:"wrong_way_vehicles"`
	JaywalkerCrossings     int `json:"jaywalker_crossings"`
	BlindSpotLoitering     int `json:"blind_spot_loitering"`
	RedLightViolations     int `json:"red_light_violations"`
	GapShooting            int `json:"gap_shooting"`
	SpeedBreakerHits       int `json:"speed_breaker_hits"`
	BusBlockades           int `json:"bus_blockades"`
	WeavingEvents          int `json:"weaving_events"`
	SlalomManeuvers        int `json:"slalom_maneuvers"`
	AggressivePinchEntries int `json:"aggressive_pinch_entries"`
}

// Count is one named counter.
type Count struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Breakdown lists the counters in report order with their display names.
func (s Stats) Breakdown() []Count {
	return []Count{
		{"Reactive Swerves", s.ReactiveSwerves},
		{"Pinch Points", s.PinchPoints},
		{"Distracted Riding", s.DistractedRiding},
		{"Heavy Vehicle Conflicts", s.HeavyVehicleConflicts},
		{"Tailgating", s.Tailgating},
		{"Leguna Emergency Stops", s.LegunaEmergencyStops},
		{"Wrong-Way Vehicles", s.WrongWayVehicles},
		{"Jaywalker Crossings", s.JaywalkerCrossings},
		{"Blind Spot Loitering", s.BlindSpotLoitering},
		{"Red Light Violations", s.RedLightViolations},
		{"Gap Shooting", s.GapShooting},
		{"Speed Breaker Hits", s.SpeedBreakerHits},
		{"Bus Blockades", s.BusBlockades},
		{"Weaving Events", s.WeavingEvents},
		{"Slalom Maneuvers", s.SlalomManeuvers},
		{"Aggressive Pinch Entries", s.AggressivePinchEntries},
	}
}

// Total sums every counter.
func (s Stats) Total() int {
	n := 0
	for _, c := range s.Breakdown() {
		n += c.Value
	}
	return n
}

// counter binds a token to the counter it increments.
type counter struct {
	token tokens.Token
	field func(*Stats) *int
}

// criticalCounters are incremented once per DANGER window containing the token.
var criticalCounters = []counter{
	{tokens.ReactiveSwerve, func(s *Stats) *int { return &s.ReactiveSwerves }},
	{tokens.CriticalPinchPoint, func(s *Stats) *int { return &s.PinchPoints }},
	{tokens.DistractedRiding, func(s *Stats) *int { return &s.DistractedRiding }},
	{tokens.HeavyVehicleConflict, func(s *Stats) *int { return &s.HeavyVehicleConflicts }},
	{tokens.TailgatingCritical, func(s *Stats) *int { return &s.Tailgating }},
	{tokens.CriticalLegunaStop, func(s *Stats) *int { return &s.LegunaEmergencyStops }},
	{tokens.WrongWayHazard, func(s *Stats) *int { return &s.WrongWayVehicles }},
	{tokens.ActiveCrossingRisk, func(s *Stats) *int { return &s.JaywalkerCrossings }},
	{tokens.BlindSpotLoitering, func(s *Stats) *int { return &s.BlindSpotLoitering }},
	{tokens.RedLightViolation, func(s *Stats) *int { return &s.RedLightViolations }},
	{tokens.AggressiveGapShooting, func(s *Stats) *int { return &s.GapShooting }},
	{tokens.SpeedBreakerImpact, func(s *Stats) *int { return &s.SpeedBreakerHits }},
	{tokens.BusBlockingLane, func(s *Stats) *int { return &s.BusBlockades }},
	{tokens.AggressiveWeaving, func(s *Stats) *int { return &s.WeavingEvents }},
	{tokens.SlalomAggressive, func(s *Stats) *int { return &s.SlalomManeuvers }},
	{tokens.AggressivePinchEntry, func(s *Stats) *int { return &s.AggressivePinchEntries }},
}

// backFillCounters are topped up from every window when still zero.
var backFillCounters = []counter{
	{tokens.CriticalLegunaStop, func(s *Stats) *int { return &s.LegunaEmergencyStops }},
	{tokens.WrongWayHazard, func(s *Stats) *int { return &s.WrongWayVehicles }},
	{tokens.ActiveCrossingRisk, func(s *Stats) *int { return &s.JaywalkerCrossings }},
	{tokens.StationaryPedestrian, func(s *Stats) *int { return &s.JaywalkerCrossings }},
	{tokens.BlindSpotLoitering, func(s *Stats) *int { return &s.BlindSpotLoitering }},
	{tokens.RedLightViolation, func(s *Stats) *int { return &s.RedLightViolations }},
	{tokens.AggressiveGapShooting, func(s *Stats) *int { return &s.GapShooting }},
	{tokens.SpeedBreakerImpact, func(s *Stats) *int { return &s.SpeedBreakerHits }},
	{tokens.BusBlockingLane, func(s *Stats) *int { return &s.BusBlockades }},
	{tokens.AggressiveWeaving, func(s *Stats) *int { return &s.WeavingEvents }},
	{tokens.SlalomAggressive, func(s *Stats) *int { return &s.SlalomManeuvers }},
	{tokens.AggressivePinchEntry, func(s *Stats) *int { return &s.AggressivePinchEntries }},
}

// CountCritical increments every counter whose token is in desc.
func (s *Stats) CountCritical(desc *tokens.Set) {
	for _, c := range criticalCounters {
		if desc.Has(c.token) {
			*c.field(s)++
		}
	}
}

// BackFill sets each back-fill counter that is still zero to the number of
// descriptions, of any tier, containing its token. A counter already above
// zero is left as is even if non-critical windows also carry the token, so
// totals can under-count hazards seen in both tiers.
func (s *Stats) BackFill(descs []*tokens.Set) {
	for _, c := range backFillCounters {
		n := CountToken(descs, c.token)
		if p := c.field(s); n > 0 && *p == 0 {
			*p = n
		}
	}
}

// CountToken returns how many descriptions contain t.
func CountToken(descs []*tokens.Set, t tokens.Token) int {
	n := 0
	for _, d := range descs {
		if d.Has(t) {
			n++
		}
	}
	return n
}
