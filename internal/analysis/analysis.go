// Package analysis runs one ride video through the pipeline and fans the
// result out to the ride store, the report writer and the event publisher.
// The CLI and the HTTP API share it.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/ride.report/internal/db"
	"github.com/banshee-data/ride.report/internal/events"
	"github.com/banshee-data/ride.report/internal/report"
	"github.com/banshee-data/ride.report/internal/ride/pipeline"
	"github.com/banshee-data/ride.report/internal/timeutil"
)

// VideoOpener opens a video for decoding. The returned closer releases it.
type VideoOpener func(path string) (pipeline.VideoSource, io.Closer, error)

// Runner is satisfied by *pipeline.Engine.
type Runner interface {
	Run(ctx context.Context, src pipeline.VideoSource) (*pipeline.Result, error)
}

// RideSaver persists results. *db.DB implements it.
type RideSaver interface {
	SaveRide(ctx context.Context, videoPath string, res *pipeline.Result) (*db.Ride, error)
}

// Service wires the analysis collaborators. Store, Publisher and Reports
// are optional.
type Service struct {
	Runner    Runner
	Open      VideoOpener
	Store     RideSaver
	Publisher events.Publisher
	Reports   *report.Writer
	Clock     timeutil.Clock
}

// Outcome is what one Analyze call produced.
type Outcome struct {
	RideID    string           `json:"ride_id"`
	VideoPath string           `json:"video_path"`
	Stored    bool             `json:"stored"`
	Published int              `json:"published_events"`
	Reports   *report.Paths    `json:"reports,omitempty"`
	Result    *pipeline.Result `json:"result"`
	Warnings  []string         `json:"warnings,omitempty"`
}

func (s *Service) clock() timeutil.Clock {
	if s.Clock == nil {
		return timeutil.RealClock{}
	}
	return s.Clock
}

// Analyze validates and opens path, runs the pipeline, then stores,
// reports and publishes the result. Analysis and storage failures are
// returned; report and publish failures become warnings on the outcome.
func (s *Service) Analyze(ctx context.Context, path string) (*Outcome, error) {
	if err := pipeline.ValidatePath(path); err != nil {
		return nil, err
	}
	src, closer, err := s.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrInput, err)
	}
	defer closer.Close()

	res, err := s.Runner.Run(ctx, src)
	if err != nil {
		return nil, err
	}

	out := &Outcome{VideoPath: path, Result: res}
	if s.Store != nil {
		ride, err := s.Store.SaveRide(ctx, path, res)
		if err != nil {
			return nil, fmt.Errorf("store ride: %w", err)
		}
		out.RideID = ride.ID
		out.Stored = true
	} else {
		out.RideID = uuid.NewString()
	}

	if s.Reports != nil {
		payload, err := json.MarshalIndent(res, "", "  ")
		if err == nil {
			out.Reports, err = s.Reports.Write(out.RideID, res, payload)
		}
		if err != nil {
			out.warn("report: %v", err)
		}
	}

	if s.Publisher != nil {
		evs := events.FromResult(out.RideID, path, res, s.clock().Now().UTC().Truncate(time.Millisecond))
		if err := s.Publisher.Publish(ctx, evs); err != nil {
			out.warn("publish: %v", err)
		} else {
			out.Published = len(evs)
		}
	}

	for _, w := range out.Warnings {
		opsf("ride %s: %s", out.RideID, w)
	}
	diagf("ride %s analysed: %s, stored=%v, published=%d", out.RideID, res.Verdict, out.Stored, out.Published)
	return out, nil
}

func (o *Outcome) warn(format string, args ...interface{}) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}
