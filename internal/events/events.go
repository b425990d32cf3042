// Package events publishes a ride's critical windows to Kafka so that
// downstream consumers can follow dangerous moments without polling the
// ride store.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/banshee-data/ride.report/internal/ride/pipeline"
)

// CriticalEvent is the message published for each DANGER window.
type CriticalEvent struct {
	RideID      string    `json:"ride_id"`
	VideoPath   string    `json:"video_path"`
	FrameID     int       `json:"frame_id"`
	Tier        string    `json:"tier"`
	Description string    `json:"description"`
	Verdict     string    `json:"verdict"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// Key is the partition key; events of one ride stay ordered.
func (e CriticalEvent) Key() []byte { return []byte(e.RideID) }

func (e CriticalEvent) Payload() ([]byte, error) { return json.Marshal(e) }

// Publisher delivers critical events.
type Publisher interface {
	Publish(ctx context.Context, evs []CriticalEvent) error
	Close() error
}

// FromResult builds one event per critical window of res.
func FromResult(rideID, videoPath string, res *pipeline.Result, at time.Time) []CriticalEvent {
	if res == nil {
		return nil
	}
	out := make([]CriticalEvent, 0, len(res.CriticalEvents))
	for _, ce := range res.CriticalEvents {
		out = append(out, CriticalEvent{
			RideID:      rideID,
			VideoPath:   videoPath,
			FrameID:     ce.FrameID,
			Tier:        ce.TierLabel,
			Description: ce.Description,
			Verdict:     res.Verdict.String(),
			EmittedAt:   at,
		})
	}
	return out
}

// Nop discards events. It is used when Kafka is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, []CriticalEvent) error { return nil }
func (Nop) Close() error                                   { return nil }
