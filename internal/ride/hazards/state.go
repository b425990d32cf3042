package hazards

import (
	"github.com/banshee-data/ride.report/internal/ride/objects"
)

// Pedestrian is the jaywalker detector outcome.
type Pedestrian string

const (
	StationaryPedestrian Pedestrian = "STATIONARY_PEDESTRIAN"
	ActiveCrossingRisk   Pedestrian = "ACTIVE_CROSSING_RISK"
)

// Lane is the weaving detector outcome.
type Lane string

const (
	StableLane        Lane = "STABLE_LANE"
	AggressiveWeaving Lane = "AGGRESSIVE_WEAVING"
)

// TTCStatus is a coarse time-to-collision band from width occupancy.
type TTCStatus string

const (
	TTCSafe     TTCStatus = "safe"
	TTCWarning  TTCStatus = "warning"
	TTCCritical TTCStatus = "critical"
)

// Flags are the detector outputs for one window. The zero value is not
// "no hazard" for Jaywalker; use NoHazards.
type Flags struct {
	Pinch                 bool       `json:"pinch"`
	IntentionalPinchEntry bool       `json:"intentional_pinch_entry"`
	LegunaBrake           bool       `json:"leguna_brake"`
	WrongWay              bool       `json:"wrong_way"`
	Jaywalker             Pedestrian `json:"jaywalker"`
	BlindSpotLoitering    bool       `json:"blind_spot_loitering"`
	RedLightViolation     bool       `json:"red_light_violation"`
	GapShooting           bool       `json:"gap_shooting"`
	SpeedBreaker          bool       `json:"speed_breaker"`
	BusBlockade           bool       `json:"bus_blockade"`
	Weaving               Lane       `json:"weaving"`
	SlalomAggressive      bool       `json:"slalom_aggressive"`
	Glare                 bool       `json:"glare"`
	Phone                 bool       `json:"phone"`
}

// NoHazards returns flags with every detector at its default.
func NoHazards() Flags {
	return Flags{Jaywalker: StationaryPedestrian, Weaving: StableLane}
}

// State is the temporal state carried between windows of one video. It is
// owned by a single Bank and must not be shared between runs.
type State struct {
	BlindSpotDwell      int
	LateralHistory      []int
	SlalomCounter       int
	PreviousObjects     []objects.DetectedObject
	PreviousSpeedScore  float64
	PreviousLateralFlow float64

	historyLimit int
}

// NewState returns a zeroed state whose lateral history holds at most
// historyLimit entries.
func NewState(historyLimit int) *State {
	if historyLimit < 1 {
		historyLimit = 1
	}
	return &State{
		LateralHistory: make([]int, 0, historyLimit),
		historyLimit:   historyLimit,
	}
}

// PushDirection appends a lateral direction (-1, 0, 1), evicting the
// oldest entry once the history is full.
func (s *State) PushDirection(d int) {
	if len(s.LateralHistory) >= s.historyLimit {
		copy(s.LateralHistory, s.LateralHistory[1:])
		s.LateralHistory = s.LateralHistory[:len(s.LateralHistory)-1]
	}
	s.LateralHistory = append(s.LateralHistory, d)
}

// DirectionChanges counts adjacent history entries that differ where the
// newer entry is non-zero.
func (s *State) DirectionChanges() int {
	changes := 0
	for i := 1; i < len(s.LateralHistory); i++ {
		if s.LateralHistory[i] != s.LateralHistory[i-1] && s.LateralHistory[i] != 0 {
			changes++
		}
	}
	return changes
}
