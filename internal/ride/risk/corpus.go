package risk

// Corpus returns the curated training set: smooth riding with objects
// around is safe, occasional swerves are caution, and panic, pinch,
// tailgating, distraction and every advanced detector token are danger.
func Corpus() ([]string, []Tier) {
	safe := []string{
		"STABLE_LANE",
		"traffic_jam_safe stable_control",
		"tight_filtering rickshaw_proximity",
		"stable_control safe_gap",
		"STABLE_LANE smooth_riding",
		"traffic_jam_safe heavy_vehicle_conflict",
		"cng_proximity stable_control",
		"rickshaw_proximity traffic_jam_safe",
		"SPEED_BREAKER_IMPACT traffic_jam_safe",
		"heavy_vehicle_conflict STABLE_LANE",
		"cng_proximity STABLE_LANE",
	}
	caution := []string{
		"heavy_vehicle_conflict moderate",
		"rickshaw_proximity cng_proximity",
		"reactive_swerve traffic_jam_safe",
		"SPEED_BREAKER_IMPACT reactive_swerve",
		"tight_filtering reactive_swerve",
		"rickshaw_proximity reactive_swerve",
	}
	danger := []string{
		"reactive_swerve tailgating_critical",
		"critical_pinch_point heavy_vehicle_conflict",
		"distracted_riding reactive_swerve",
		"tailgating_critical",
		"visibility_blindness reactive_swerve",
		"critical_pinch_point",
		"critical_pinch_point AGGRESSIVE_PINCH_ENTRY",
		"AGGRESSIVE_PINCH_ENTRY heavy_vehicle_conflict",
		"AGGRESSIVE_PINCH_ENTRY reactive_swerve",
		"critical_pinch_point AGGRESSIVE_PINCH_ENTRY cng_proximity",
		"AGGRESSIVE_PINCH_ENTRY",
		"CRITICAL_LEGUNA_STOP",
		"WRONG_WAY_HAZARD",
		"ACTIVE_CROSSING_RISK",
		"BLIND_SPOT_LOITERING",
		"RED_LIGHT_VIOLATION",
		"AGGRESSIVE_GAP_SHOOTING",
		"BUS_BLOCKING_LANE",
		"AGGRESSIVE_WEAVING",
		"SLALOM_AGGRESSIVE",
	}

	docs := make([]string, 0, len(safe)+len(caution)+len(danger))
	labels := make([]Tier, 0, cap(docs))
	for _, group := range []struct {
		docs []string
		tier Tier
	}{{safe, Safe}, {caution, Caution}, {danger, Danger}} {
		for _, d := range group.docs {
			docs = append(docs, d)
			labels = append(labels, group.tier)
		}
	}
	return docs, labels
}
