package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/ride.report/internal/ride/advice"
	"github.com/banshee-data/ride.report/internal/ride/pipeline"
	"github.com/banshee-data/ride.report/internal/ride/verdict"
	"github.com/banshee-data/ride.report/internal/timeutil"
)

func newTestDB(t *testing.T) (*DB, *timeutil.MockClock) {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	db.clock = clock
	return db, clock
}

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		Summary: verdict.Summary{
			Stats:          verdict.Stats{ReactiveSwerves: 2, DistractedRiding: 1},
			CriticalStats:  verdict.Stats{DistractedRiding: 1},
			CriticalEvents: []verdict.CriticalEvent{{FrameID: 30, TierLabel: "DANGER", Description: "distracted_riding"}},
			TotalSamples:   4,
			CriticalFrames: 1,
			SafeFrames:     3,
			RiskPercentage: 25,
			Verdict:        verdict.Unsafe,
			Reason:         "phone distraction",
			RiderStyle:     "Reactive",
			StyleAnalysis:  "Late reactions",
		},
		Recommendations: []advice.Recommendation{{Category: advice.Critical, Title: "Put the phone away", Text: "Mount it."}},
		Timeline: []pipeline.TimelinePoint{
			{FrameID: 0, Tier: "SAFE", Description: "STABLE_LANE"},
			{FrameID: 30, Tier: "DANGER", Description: "distracted_riding"},
		},
		SkippedWindows: 1,
		Elapsed:        1500 * time.Millisecond,
	}
}
