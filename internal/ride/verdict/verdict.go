// Package verdict reduces a ride's per-window tiers and descriptions into
// hazard counters, a severity verdict and a rider-style profile.
package verdict

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/ride.report/internal/ride/risk"
	"github.com/banshee-data/ride.report/internal/ride/tokens"
)

// Level is the whole-ride severity, ordered from least to most severe.
type Level int

const (
	Safe Level = iota
	Caution
	ModerateRisk
	Unsafe
)

func (l Level) String() string {
	switch l {
	case Safe:
		return "SAFE"
	case Caution:
		return "CAUTION"
	case ModerateRisk:
		return "MODERATE RISK"
	case Unsafe:
		return "UNSAFE"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevel is the inverse of Level.String.
func ParseLevel(s string) (Level, error) {
	for l := Safe; l <= Unsafe; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return Safe, fmt.Errorf("unknown verdict %q", s)
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Rider styles and their analyses.
const (
	StyleReactive  = "REACTIVE (Over-Sensitive)"
	StyleDefensive = "DEFENSIVE (Appropriate for Dhaka)"
	StyleProactive = "PROACTIVE (Safe)"

	analysisReactive  = "Rider reacts to minor threats excessively, even in light traffic."
	analysisDefensive = "Rider responds well to heavy traffic with quick reflexes."
	analysisProactive = "Rider maintains smooth lane discipline and anticipates hazards."
)

// RiskPercentage is the share of windows classified DANGER.
func RiskPercentage(critical, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(critical) / float64(total) * 100
}

// Decide applies the verdict cascade in order; the first matching rule wins.
func Decide(s Stats, critical, total int) (Level, string) {
	riskPct := RiskPercentage(critical, total)
	swerveRatio := float64(s.ReactiveSwerves) / float64(max(critical, 1))
	pinch := s.AggressivePinchEntries

	switch {
	case s.DistractedRiding > 0:
		return Unsafe, "Active phone distraction detected. Any phone use while riding is considered unsafe."
	case pinch > 2:
		return ModerateRisk, fmt.Sprintf("Multiple intentional pinch point entries detected (%d instances). This is aggressive riding behavior that increases collision risk.", pinch)
	case s.WrongWayVehicles > 5 || s.BusBlockades > 10:
		return Unsafe, fmt.Sprintf("High-severity hazards detected (wrong-way: %d, bus blockades: %d). Immediate awareness training needed.", s.WrongWayVehicles, s.BusBlockades)
	case s.ReactiveSwerves > 20 && swerveRatio > 0.5:
		return Unsafe, fmt.Sprintf("Excessive reactive swerving (%d instances, %.0f%% of critical frames). Indicates poor hazard anticipation.", s.ReactiveSwerves, swerveRatio*100)
	case pinch > 0 && riskPct > 10:
		return ModerateRisk, fmt.Sprintf("Intentional aggressive pinch point entry detected (%d instances) combined with other risks (%.1f%% of ride). This indicates aggressive riding behavior.", pinch, riskPct)
	case riskPct > 25:
		return Unsafe, fmt.Sprintf("High frequency of critical risks (%.1f%% of ride). Immediate correction needed.", riskPct)
	case riskPct > 15:
		return ModerateRisk, fmt.Sprintf("Occasional risky behaviors detected (%.1f%% of ride). Caution and practice advised.", riskPct)
	case riskPct > 5:
		return Caution, fmt.Sprintf("Minor hazards detected (%.1f%% of ride). Stay vigilant.", riskPct)
	default:
		return Safe, "Excellent defensive riding. Minimal hazards detected."
	}
}

// RiderStyle classifies the rider from swerve and heavy-traffic counts.
func RiderStyle(s Stats) (style, analysis string) {
	heavyTraffic := s.HeavyVehicleConflicts > 50
	switch {
	case s.ReactiveSwerves > 30 && !heavyTraffic:
		return StyleReactive, analysisReactive
	case heavyTraffic && s.ReactiveSwerves > 10:
		return StyleDefensive, analysisDefensive
	default:
		return StyleProactive, analysisProactive
	}
}

// Window is one classified window as seen by the aggregator.
type Window struct {
	FrameID     int
	Tier        risk.Tier
	Description *tokens.Set
}

// CriticalEvent is a DANGER window kept for reporting.
type CriticalEvent struct {
	FrameID     int    `json:"frame_id"`
	TierLabel   string `json:"tier_label"`
	Description string `json:"description"`
}

// Summary is the aggregated outcome of a ride.
type Summary struct {
	// Stats are the reported counters, back-filled from all windows.
	Stats Stats `json:"stats"`
	// CriticalStats are the DANGER-only counters the verdict was decided on.
	CriticalStats Stats `json:"critical_stats"`

	CriticalEvents []CriticalEvent `json:"critical_events"`
	TotalSamples   int             `json:"total_samples"`
	CriticalFrames int             `json:"critical_frames"`
	SafeFrames     int             `json:"safe_frames"`
	RiskPercentage float64         `json:"risk_percentage"`
	Verdict        Level           `json:"verdict"`
	Reason         string          `json:"reason"`
	RiderStyle     string          `json:"rider_style"`
	StyleAnalysis  string          `json:"style_analysis"`
}

// Aggregate counts DANGER windows, decides the verdict from those counts,
// then back-fills zero counters from every window for reporting.
func Aggregate(windows []Window) Summary {
	var sum Summary
	sum.TotalSamples = len(windows)
	sum.CriticalEvents = []CriticalEvent{}

	descs := make([]*tokens.Set, len(windows))
	for i, w := range windows {
		descs[i] = w.Description
		switch w.Tier {
		case risk.Danger:
			sum.CriticalFrames++
			sum.CriticalEvents = append(sum.CriticalEvents, CriticalEvent{
				FrameID:     w.FrameID,
				TierLabel:   w.Tier.String(),
				Description: w.Description.String(),
			})
			sum.CriticalStats.CountCritical(w.Description)
		case risk.Safe:
			sum.SafeFrames++
		}
	}

	sum.RiskPercentage = RiskPercentage(sum.CriticalFrames, sum.TotalSamples)
	sum.Verdict, sum.Reason = Decide(sum.CriticalStats, sum.CriticalFrames, sum.TotalSamples)

	sum.Stats = sum.CriticalStats
	sum.Stats.BackFill(descs)
	sum.RiderStyle, sum.StyleAnalysis = RiderStyle(sum.Stats)
	return sum
}
