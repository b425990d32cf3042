package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Thresholds holds every heuristic constant used by the hazard engine,
// resolved to concrete values. Fractions are relative to the decoded frame
// width unless stated otherwise; flow values are pixels per window.
type Thresholds struct {
	// Sampler
	WindowSize int // source frames per window

	// Motion estimator (mean flow magnitude, px)
	FastMotion float64
	SlowMotion float64

	// Object geometry classifier (box width/height)
	RickshawAspectMin float64 // bicycle wider than this is a rickshaw
	CNGWidthToHeight  float64 // car narrower than height*this is a CNG

	// Box matching between consecutive windows (fraction of frame width)
	MatchMaxCenterDistance float64

	// Pinch point
	PinchGapFraction      float64 // escape gap below this is a pinch
	DividerEdgeFraction   float64 // object x1 beyond this is a lane divider
	DividerMarginFraction float64 // right bound when nothing is on the right

	// Intentional pinch entry
	PinchEntryGapFraction       float64
	PinchEntryNarrowingFraction float64
	PinchEntryLateralFlow       float64 // px

	// Leguna emergency stop
	LegunaAspectMin   float64
	LegunaAspectMax   float64
	LegunaWidthGrowth float64 // relative width change per window

	// Wrong-way vehicle
	WrongWayWidthGrowth float64 // relative width change per window
	WrongWayCenterBand  float64 // px from frame centre

	// Jaywalker
	JaywalkerLateralFlow float64 // px, mean dx inside the person box

	// Blind-spot loitering
	BlindSpotEdgeFraction float64 // outer band on each side
	BlindSpotDwellWindows int     // flag fires once dwell exceeds this

	// Red-light violation
	RedLightPixelRatio float64 // red pixels / box area

	// Time-to-collision status and gap shooting
	TTCCriticalFraction     float64 // object width / frame width
	TTCWarningFraction      float64
	GapShootingAcceleration float64 // increase in mean flow magnitude

	// Speed breaker
	SpeedBreakerVerticalFlow float64 // px, |mean dy|

	// Bus blockade
	BusBlockadeWidthRatio float64 // current/previous width

	// Weaving and slalom
	WeavingLateralFlow      float64 // px, |mean dx| that counts as a direction
	WeavingHistoryLength    int     // windows kept in the direction history
	WeavingDirectionChanges int     // more changes than this is weaving
	SlalomMinVehicles       int
	SlalomMinWindows        int

	// Glare (mean grayscale intensity, 0-255)
	GlareIntensity float64

	// Token encoder
	ReactiveJerk   float64
	StableJerk     float64
	CloseProximity float64 // object width / frame width
}

// DefaultThresholds returns the built-in tuning values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WindowSize: 15,

		FastMotion: 15.0,
		SlowMotion: 2.0,

		RickshawAspectMin: 0.6,
		CNGWidthToHeight:  1.1,

		MatchMaxCenterDistance: 0.25,

		PinchGapFraction:      0.30,
		DividerEdgeFraction:   0.95,
		DividerMarginFraction: 0.90,

		PinchEntryGapFraction:       0.40,
		PinchEntryNarrowingFraction: 0.05,
		PinchEntryLateralFlow:       1.0,

		LegunaAspectMin:   0.7,
		LegunaAspectMax:   1.2,
		LegunaWidthGrowth: 0.08,

		WrongWayWidthGrowth: 0.05,
		WrongWayCenterBand:  200,

		JaywalkerLateralFlow: 2.0,

		BlindSpotEdgeFraction: 0.2,
		BlindSpotDwellWindows: 30,

		RedLightPixelRatio: 0.08,

		TTCCriticalFraction:     0.6,
		TTCWarningFraction:      0.35,
		GapShootingAcceleration: 1.0,

		SpeedBreakerVerticalFlow: 5.0,

		BusBlockadeWidthRatio: 1.05,

		WeavingLateralFlow:      2.0,
		WeavingHistoryLength:    30,
		WeavingDirectionChanges: 5,
		SlalomMinVehicles:       3,
		SlalomMinWindows:        3,

		GlareIntensity: 230,

		ReactiveJerk:   1.0,
		StableJerk:     0.5,
		CloseProximity: 0.4,
	}
}

// TuningConfig represents the root configuration for tuning parameters.
// Every field is optional; nil fields fall back to DefaultThresholds.
type TuningConfig struct {
	WindowSize *int `json:"window_size,omitempty"`

	FastMotion *float64 `json:"fast_motion,omitempty"`
	SlowMotion *float64 `json:"slow_motion,omitempty"`

	RickshawAspectMin *float64 `json:"rickshaw_aspect_min,omitempty"`
	CNGWidthToHeight  *float64 `json:"cng_width_to_height,omitempty"`

	MatchMaxCenterDistance *float64 `json:"match_max_center_distance,omitempty"`

	PinchGapFraction      *float64 `json:"pinch_gap_fraction,omitempty"`
	DividerEdgeFraction   *float64 `json:"divider_edge_fraction,omitempty"`
	DividerMarginFraction *float64 `json:"divider_margin_fraction,omitempty"`

	PinchEntryGapFraction       *float64 `json:"pinch_entry_gap_fraction,omitempty"`
	PinchEntryNarrowingFraction *float64 `json:"pinch_entry_narrowing_fraction,omitempty"`
	PinchEntryLateralFlow       *float64 `json:"pinch_entry_lateral_flow,omitempty"`

	LegunaAspectMin   *float64 `json:"leguna_aspect_min,omitempty"`
	LegunaAspectMax   *float64 `json:"leguna_aspect_max,omitempty"`
	LegunaWidthGrowth *float64 `json:"leguna_width_growth,omitempty"`

	WrongWayWidthGrowth *float64 `json:"wrong_way_width_growth,omitempty"`
	WrongWayCenterBand  *float64 `json:"wrong_way_center_band,omitempty"`

	JaywalkerLateralFlow *float64 `json:"jaywalker_lateral_flow,omitempty"`

	BlindSpotEdgeFraction *float64 `json:"blind_spot_edge_fraction,omitempty"`
	BlindSpotDwellWindows *int     `json:"blind_spot_dwell_windows,omitempty"`

	RedLightPixelRatio *float64 `json:"red_light_pixel_ratio,omitempty"`

	TTCCriticalFraction     *float64 `json:"ttc_critical_fraction,omitempty"`
	TTCWarningFraction      *float64 `json:"ttc_warning_fraction,omitempty"`
	GapShootingAcceleration *float64 `json:"gap_shooting_acceleration,omitempty"`

	SpeedBreakerVerticalFlow *float64 `json:"speed_breaker_vertical_flow,omitempty"`

	BusBlockadeWidthRatio *float64 `json:"bus_blockade_width_ratio,omitempty"`

	WeavingLateralFlow      *float64 `json:"weaving_lateral_flow,omitempty"`
	WeavingHistoryLength    *int     `json:"weaving_history_length,omitempty"`
	WeavingDirectionChanges *int     `json:"weaving_direction_changes,omitempty"`
	SlalomMinVehicles       *int     `json:"slalom_min_vehicles,omitempty"`
	SlalomMinWindows        *int     `json:"slalom_min_windows,omitempty"`

	GlareIntensity *float64 `json:"glare_intensity,omitempty"`

	ReactiveJerk   *float64 `json:"reactive_jerk,omitempty"`
	StableJerk     *float64 `json:"stable_jerk,omitempty"`
	CloseProximity *float64 `json:"close_proximity,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from DefaultThresholds. Useful for writing a defaults file.
func DefaultTuningConfig() *TuningConfig {
	d := DefaultThresholds()
	return &TuningConfig{
		WindowSize:                  ptrInt(d.WindowSize),
		FastMotion:                  ptrFloat64(d.FastMotion),
		SlowMotion:                  ptrFloat64(d.SlowMotion),
		RickshawAspectMin:           ptrFloat64(d.RickshawAspectMin),
		CNGWidthToHeight:            ptrFloat64(d.CNGWidthToHeight),
		MatchMaxCenterDistance:      ptrFloat64(d.MatchMaxCenterDistance),
		PinchGapFraction:            ptrFloat64(d.PinchGapFraction),
		DividerEdgeFraction:         ptrFloat64(d.DividerEdgeFraction),
		DividerMarginFraction:       ptrFloat64(d.DividerMarginFraction),
		PinchEntryGapFraction:       ptrFloat64(d.PinchEntryGapFraction),
		PinchEntryNarrowingFraction: ptrFloat64(d.PinchEntryNarrowingFraction),
		PinchEntryLateralFlow:       ptrFloat64(d.PinchEntryLateralFlow),
		LegunaAspectMin:             ptrFloat64(d.LegunaAspectMin),
		LegunaAspectMax:             ptrFloat64(d.LegunaAspectMax),
		LegunaWidthGrowth:           ptrFloat64(d.LegunaWidthGrowth),
		WrongWayWidthGrowth:         ptrFloat64(d.WrongWayWidthGrowth),
		WrongWayCenterBand:          ptrFloat64(d.WrongWayCenterBand),
		JaywalkerLateralFlow:        ptrFloat64(d.JaywalkerLateralFlow),
		BlindSpotEdgeFraction:       ptrFloat64(d.BlindSpotEdgeFraction),
		BlindSpotDwellWindows:       ptrInt(d.BlindSpotDwellWindows),
		RedLightPixelRatio:          ptrFloat64(d.RedLightPixelRatio),
		TTCCriticalFraction:         ptrFloat64(d.TTCCriticalFraction),
		TTCWarningFraction:          ptrFloat64(d.TTCWarningFraction),
		GapShootingAcceleration:     ptrFloat64(d.GapShootingAcceleration),
		SpeedBreakerVerticalFlow:    ptrFloat64(d.SpeedBreakerVerticalFlow),
		BusBlockadeWidthRatio:       ptrFloat64(d.BusBlockadeWidthRatio),
		WeavingLateralFlow:          ptrFloat64(d.WeavingLateralFlow),
		WeavingHistoryLength:        ptrInt(d.WeavingHistoryLength),
		WeavingDirectionChanges:     ptrInt(d.WeavingDirectionChanges),
		SlalomMinVehicles:           ptrInt(d.SlalomMinVehicles),
		SlalomMinWindows:            ptrInt(d.SlalomMinWindows),
		GlareIntensity:              ptrFloat64(d.GlareIntensity),
		ReactiveJerk:                ptrFloat64(d.ReactiveJerk),
		StableJerk:                  ptrFloat64(d.StableJerk),
		CloseProximity:              ptrFloat64(d.CloseProximity),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/ride/<pkg>/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.WindowSize != nil && *c.WindowSize < 2 {
		return fmt.Errorf("window_size must be at least 2, got %d", *c.WindowSize)
	}

	fractions := map[string]*float64{
		"pinch_gap_fraction":             c.PinchGapFraction,
		"divider_edge_fraction":          c.DividerEdgeFraction,
		"divider_margin_fraction":        c.DividerMarginFraction,
		"pinch_entry_gap_fraction":       c.PinchEntryGapFraction,
		"pinch_entry_narrowing_fraction": c.PinchEntryNarrowingFraction,
		"blind_spot_edge_fraction":       c.BlindSpotEdgeFraction,
		"red_light_pixel_ratio":          c.RedLightPixelRatio,
		"ttc_critical_fraction":          c.TTCCriticalFraction,
		"ttc_warning_fraction":           c.TTCWarningFraction,
		"close_proximity":                c.CloseProximity,
		"match_max_center_distance":      c.MatchMaxCenterDistance,
	}
	for name, v := range fractions {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	if c.BlindSpotEdgeFraction != nil && *c.BlindSpotEdgeFraction >= 0.5 {
		return fmt.Errorf("blind_spot_edge_fraction must be below 0.5, got %f", *c.BlindSpotEdgeFraction)
	}

	if c.WeavingHistoryLength != nil && *c.WeavingHistoryLength < 2 {
		return fmt.Errorf("weaving_history_length must be at least 2, got %d", *c.WeavingHistoryLength)
	}

	t := c.Thresholds()
	if t.SlowMotion >= t.FastMotion {
		return fmt.Errorf("slow_motion (%f) must be below fast_motion (%f)", t.SlowMotion, t.FastMotion)
	}
	if t.LegunaAspectMin >= t.LegunaAspectMax {
		return fmt.Errorf("leguna_aspect_min (%f) must be below leguna_aspect_max (%f)", t.LegunaAspectMin, t.LegunaAspectMax)
	}
	if t.TTCWarningFraction >= t.TTCCriticalFraction {
		return fmt.Errorf("ttc_warning_fraction (%f) must be below ttc_critical_fraction (%f)", t.TTCWarningFraction, t.TTCCriticalFraction)
	}

	for name, v := range map[string]*int{
		"blind_spot_dwell_windows":  c.BlindSpotDwellWindows,
		"weaving_direction_changes": c.WeavingDirectionChanges,
		"slalom_min_vehicles":       c.SlalomMinVehicles,
		"slalom_min_windows":        c.SlalomMinWindows,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, *v)
		}
	}

	return nil
}

// GetWindowSize returns the window_size value or the default.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return DefaultThresholds().WindowSize
	}
	return *c.WindowSize
}

// Thresholds resolves the config against DefaultThresholds.
func (c *TuningConfig) Thresholds() Thresholds {
	t := DefaultThresholds()
	if c == nil {
		return t
	}

	setInt(&t.WindowSize, c.WindowSize)
	setFloat(&t.FastMotion, c.FastMotion)
	setFloat(&t.SlowMotion, c.SlowMotion)
	setFloat(&t.RickshawAspectMin, c.RickshawAspectMin)
	setFloat(&t.CNGWidthToHeight, c.CNGWidthToHeight)
	setFloat(&t.MatchMaxCenterDistance, c.MatchMaxCenterDistance)
	setFloat(&t.PinchGapFraction, c.PinchGapFraction)
	setFloat(&t.DividerEdgeFraction, c.DividerEdgeFraction)
	setFloat(&t.DividerMarginFraction, c.DividerMarginFraction)
	setFloat(&t.PinchEntryGapFraction, c.PinchEntryGapFraction)
	setFloat(&t.PinchEntryNarrowingFraction, c.PinchEntryNarrowingFraction)
	setFloat(&t.PinchEntryLateralFlow, c.PinchEntryLateralFlow)
	setFloat(&t.LegunaAspectMin, c.LegunaAspectMin)
	setFloat(&t.LegunaAspectMax, c.LegunaAspectMax)
	setFloat(&t.LegunaWidthGrowth, c.LegunaWidthGrowth)
	setFloat(&t.WrongWayWidthGrowth, c.WrongWayWidthGrowth)
	setFloat(&t.WrongWayCenterBand, c.WrongWayCenterBand)
	setFloat(&t.JaywalkerLateralFlow, c.JaywalkerLateralFlow)
	setFloat(&t.BlindSpotEdgeFraction, c.BlindSpotEdgeFraction)
	setInt(&t.BlindSpotDwellWindows, c.BlindSpotDwellWindows)
	setFloat(&t.RedLightPixelRatio, c.RedLightPixelRatio)
	setFloat(&t.TTCCriticalFraction, c.TTCCriticalFraction)
	setFloat(&t.TTCWarningFraction, c.TTCWarningFraction)
	setFloat(&t.GapShootingAcceleration, c.GapShootingAcceleration)
	setFloat(&t.SpeedBreakerVerticalFlow, c.SpeedBreakerVerticalFlow)
	setFloat(&t.BusBlockadeWidthRatio, c.BusBlockadeWidthRatio)
	setFloat(&t.WeavingLateralFlow, c.WeavingLateralFlow)
	setInt(&t.WeavingHistoryLength, c.WeavingHistoryLength)
	setInt(&t.WeavingDirectionChanges, c.WeavingDirectionChanges)
	setInt(&t.SlalomMinVehicles, c.SlalomMinVehicles)
	setInt(&t.SlalomMinWindows, c.SlalomMinWindows)
	setFloat(&t.GlareIntensity, c.GlareIntensity)
	setFloat(&t.ReactiveJerk, c.ReactiveJerk)
	setFloat(&t.StableJerk, c.StableJerk)
	setFloat(&t.CloseProximity, c.CloseProximity)

	return t
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
