package advice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ride.report/internal/ride/tokens"
	"github.com/banshee-data/ride.report/internal/ride/verdict"
)

func titles(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title
	}
	return out
}

func descs(ds ...string) []*tokens.Set {
	out := make([]*tokens.Set, len(ds))
	for i, d := range ds {
		out[i] = tokens.Parse(d)
	}
	return out
}

func TestGeneralTipsAlwaysAppended(t *testing.T) {
	for _, level := range []verdict.Level{verdict.Safe, verdict.Caution, verdict.ModerateRisk, verdict.Unsafe} {
		recs := Select(level, verdict.Stats{}, nil)
		require.GreaterOrEqual(t, len(recs), 4, level.String())
		tail := recs[len(recs)-4:]
		for _, r := range tail {
			assert.Equal(t, General, r.Category, level.String())
		}
		assert.Equal(t, "The 'Look-Look-Go' Rule", tail[0].Title)
		assert.Equal(t, "The 'Sandwich' Exit", tail[3].Title)
	}
}

func TestUnsafeBranch(t *testing.T) {
	s := verdict.Stats{
		Tailgating:             1,
		AggressivePinchEntries: 2,
		DistractedRiding:       1,
		ReactiveSwerves:        5,
	}
	recs := Select(verdict.Unsafe, s, descs("visibility_blindness STABLE_LANE"))

	got := titles(recs[:len(recs)-4])
	assert.Equal(t, []string{
		"The '3-Second Rule' Drill",
		"Intentional Pinch Point Entry - High Risk Behavior",
		"Phone Lockout Challenge",
		"Glare Recovery Tips",
	}, got)
	assert.Contains(t, recs[1].Text, "You intentionally entered 2 pinch point(s)")
	assert.Equal(t, Warning, recs[3].Category)
}

func TestUnsafeSwerveThreshold(t *testing.T) {
	recs := Select(verdict.Unsafe, verdict.Stats{ReactiveSwerves: 6}, nil)
	assert.Contains(t, titles(recs), "Mandatory Cooling Period")

	recs = Select(verdict.Unsafe, verdict.Stats{ReactiveSwerves: 5}, nil)
	assert.NotContains(t, titles(recs), "Mandatory Cooling Period")
}

func TestUnsafeAdvancedHazards(t *testing.T) {
	s := verdict.Stats{
		LegunaEmergencyStops: 1,
		WrongWayVehicles:     1,
		JaywalkerCrossings:   1,
		BlindSpotLoitering:   1,
		RedLightViolations:   1,
		GapShooting:          1,
		SpeedBreakerHits:     1,
		BusBlockades:         1,
		WeavingEvents:        1,
		SlalomManeuvers:      1,
	}
	recs := Select(verdict.Unsafe, s, nil)
	assert.Len(t, recs, 10+4)
	for _, r := range recs[:10] {
		assert.Equal(t, Critical, r.Category, r.Title)
	}
}

func TestModerateAndCautionShareBranch(t *testing.T) {
	s := verdict.Stats{ReactiveSwerves: 1, WeavingEvents: 2, GapShooting: 1}
	d := descs("rickshaw_proximity tight_filtering", "visibility_blindness")

	moderate := Select(verdict.ModerateRisk, s, d)
	caution := Select(verdict.Caution, s, d)
	assert.Equal(t, moderate, caution)
	assert.Equal(t, []string{
		"The 'Smoothness' Score (Gamified)",
		"Rickshaw Prediction Module",
		"The 'Pinch Point' Warning",
		"Intersection Scanner",
		"Edge Trap Alert",
		"Late-Night Speed Cap",
		"Lane Control Practice",
		"Gap Shooting Awareness",
	}, titles(moderate[:len(moderate)-4]))
}

func TestModerateGates(t *testing.T) {
	recs := Select(verdict.ModerateRisk, verdict.Stats{WeavingEvents: 3, GapShooting: 2}, nil)
	got := titles(recs)
	assert.NotContains(t, got, "Lane Control Practice")
	assert.NotContains(t, got, "Gap Shooting Awareness")
	assert.Contains(t, got, "Intersection Scanner")
}

func TestSafeBranch(t *testing.T) {
	d := descs(
		"traffic_jam_safe STABLE_LANE",
		"traffic_jam_safe STABLE_LANE",
		"safe_gap STABLE_LANE",
		"traffic_jam_safe safe_gap",
	)
	recs := Select(verdict.Safe, verdict.Stats{}, d)
	assert.Equal(t, []string{
		"Safety Streak Badge",
		"Route Optimization",
		"Defensive Mentor Status",
		"Pothole Contribution",
	}, titles(recs[:len(recs)-4]))

	recs = Select(verdict.Safe, verdict.Stats{PinchPoints: 1}, d[:3])
	got := titles(recs)
	assert.NotContains(t, got, "Safety Streak Badge")
	assert.NotContains(t, got, "Defensive Mentor Status", "three mentor windows is not enough")
}

func TestGroupPreservesOrder(t *testing.T) {
	recs := Select(verdict.ModerateRisk, verdict.Stats{}, nil)
	g := Group(recs)
	require.Len(t, g[Awareness], 2)
	assert.Equal(t, "Intersection Scanner", g[Awareness][0].Title)
	assert.Len(t, g[General], 4)

	for _, sec := range Sections {
		assert.NotEmpty(t, sec.Heading)
	}
	assert.Equal(t, General, Sections[len(Sections)-1].Category)
}
