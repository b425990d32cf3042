// Package report renders a ride analysis as a plain-text safety report, an
// interactive HTML chart page and a PNG tier timeline.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/ride.report/internal/ride/advice"
	"github.com/banshee-data/ride.report/internal/ride/pipeline"
	"github.com/banshee-data/ride.report/internal/ride/verdict"
)

var rule = strings.Repeat("-", 40)

var styleAdvice = map[string]string{
	verdict.StyleReactive:  "Build confidence and trust your space awareness.",
	verdict.StyleDefensive: "Continue defensive riding. Consider anticipation techniques.",
	verdict.StyleProactive: "Maintain current riding discipline.",
}

// errWriter remembers the first write error so the layout code stays flat.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func heading(ew *errWriter, title string) {
	ew.printf("%s\n%s\n", title, strings.Repeat("=", len(title)))
}

// WriteText writes the ride safety report: critical events, rider profile,
// risk summary, final verdict and grouped recommendations.
func WriteText(w io.Writer, res *pipeline.Result) error {
	if res == nil {
		return fmt.Errorf("report: nil result")
	}
	ew := &errWriter{w: w}

	heading(ew, "DHAKA-RIDE SAFETY REPORT")
	ew.printf("CRITICAL EVENTS:\n%s\n", rule)
	for _, ev := range res.CriticalEvents {
		ew.printf("[Frame %d] %s: %s\n", ev.FrameID, ev.TierLabel, ev.Description)
	}
	if len(res.CriticalEvents) == 0 {
		ew.printf("None.\n")
	}

	ew.printf("\n\n")
	heading(ew, "RIDER BEHAVIOR PROFILE")
	ew.printf("STYLE: %s\n", res.RiderStyle)
	ew.printf("Analysis: %s\n", res.StyleAnalysis)
	if tip, ok := styleAdvice[res.RiderStyle]; ok {
		ew.printf("Recommendation: %s\n", tip)
	}

	ew.printf("\n\n")
	heading(ew, "RISK SUMMARY")
	ew.printf("Total Samples Analyzed: %d\n", res.TotalSamples)
	ew.printf("Safe Frames: %d\n", res.SafeFrames)
	ew.printf("Critical Events: %d\n", res.CriticalFrames)
	if res.SkippedWindows > 0 {
		ew.printf("Skipped Windows: %d\n", res.SkippedWindows)
	}
	ew.printf("\nBREAKDOWN:\n")
	for _, c := range res.Stats.Breakdown() {
		ew.printf("  %s: %d\n", c.Name, c.Value)
	}

	ew.printf("\n\n")
	heading(ew, "FINAL VERDICT")
	ew.printf("RIDE STATUS: %s\n", res.Verdict)
	ew.printf("REASON: %s\n", res.Reason)

	writeRecommendations(ew, res.Recommendations)
	return ew.err
}

func writeRecommendations(ew *errWriter, recs []advice.Recommendation) {
	if len(recs) == 0 {
		return
	}
	ew.printf("\n\n")
	heading(ew, "ACTIONABLE RECOMMENDATIONS")
	groups := advice.Group(recs)
	first := true
	for _, sec := range advice.Sections {
		items := groups[sec.Category]
		if len(items) == 0 {
			continue
		}
		if !first {
			ew.printf("\n\n")
		} else {
			ew.printf("\n")
		}
		first = false
		ew.printf("%s\n%s\n", sec.Heading, rule)
		for _, r := range items {
			ew.printf("\n%s:\n%s\n", r.Title, r.Text)
		}
	}
}

// Summary is the short console digest printed after an analysis.
func Summary(w io.Writer, res *pipeline.Result) error {
	ew := &errWriter{w: w}
	ew.printf("Critical Events: %d / %d\n", res.CriticalFrames, res.TotalSamples)
	ew.printf("Reactive Swerves: %d\n", res.Stats.ReactiveSwerves)
	ew.printf("Pinch Points: %d\n", res.Stats.PinchPoints)
	ew.printf("Verdict: %s (%.1f%% risk)\n", res.Verdict, res.RiskPercentage)
	return ew.err
}
