package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/ride.report/internal/ride/pipeline"
)

// ErrRideNotFound is returned when no ride matches the requested id.
var ErrRideNotFound = errors.New("ride not found")

// Ride is a stored analysis. Result is only populated by GetRide.
type Ride struct {
	ID             string           `json:"ride_id"`
	VideoPath      string           `json:"video_path"`
	CreatedAt      time.Time        `json:"created_at"`
	Verdict        string           `json:"verdict"`
	RiderStyle     string           `json:"rider_style"`
	RiskPercentage float64          `json:"risk_percentage"`
	TotalSamples   int              `json:"total_samples"`
	CriticalFrames int              `json:"critical_frames"`
	SkippedWindows int              `json:"skipped_windows"`
	Result         *pipeline.Result `json:"result,omitempty"`
}

// RideEvent is a stored critical window.
type RideEvent struct {
	RideID      string `json:"ride_id"`
	FrameID     int    `json:"frame_id"`
	Tier        string `json:"tier"`
	Description string `json:"description"`
}

// SaveRide stores res under a new ride id together with its critical
// events, in one transaction.
func (db *DB) SaveRide(ctx context.Context, videoPath string, res *pipeline.Result) (*Ride, error) {
	if res == nil {
		return nil, errors.New("nil ride result")
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ride result: %w", err)
	}

	ride := &Ride{
		ID:             uuid.NewString(),
		VideoPath:      videoPath,
		CreatedAt:      db.clock.Now().UTC().Truncate(time.Second),
		Verdict:        res.Verdict.String(),
		RiderStyle:     res.RiderStyle,
		RiskPercentage: res.RiskPercentage,
		TotalSamples:   res.TotalSamples,
		CriticalFrames: res.CriticalFrames,
		SkippedWindows: res.SkippedWindows,
		Result:         res,
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO rides (
			ride_id, video_path, created_unix, verdict, rider_style, risk_percentage,
			total_samples, critical_frames, skipped_windows, result_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ride.ID, ride.VideoPath, ride.CreatedAt.Unix(), ride.Verdict, ride.RiderStyle, ride.RiskPercentage,
		ride.TotalSamples, ride.CriticalFrames, ride.SkippedWindows, string(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ride: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ride_events (ride_id, frame_id, tier, description) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	for _, ev := range res.CriticalEvents {
		if _, err := stmt.ExecContext(ctx, ride.ID, ev.FrameID, ev.TierLabel, ev.Description); err != nil {
			return nil, fmt.Errorf("failed to insert ride event at frame %d: %w", ev.FrameID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ride, nil
}

// ListRides returns up to limit rides, newest first, without results.
func (db *DB) ListRides(ctx context.Context, limit int) ([]Ride, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `SELECT ride_id, video_path, created_unix, verdict, rider_style,
			risk_percentage, total_samples, critical_frames, skipped_windows
		FROM rides ORDER BY created_unix DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rides := []Ride{}
	for rows.Next() {
		var r Ride
		var created int64
		if err := rows.Scan(&r.ID, &r.VideoPath, &created, &r.Verdict, &r.RiderStyle,
			&r.RiskPercentage, &r.TotalSamples, &r.CriticalFrames, &r.SkippedWindows); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		rides = append(rides, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rides, nil
}

// GetRide loads one ride including its decoded result.
func (db *DB) GetRide(ctx context.Context, id string) (*Ride, error) {
	var r Ride
	var created int64
	var payload string
	err := db.QueryRowContext(ctx, `SELECT ride_id, video_path, created_unix, verdict, rider_style,
			risk_percentage, total_samples, critical_frames, skipped_windows, result_json
		FROM rides WHERE ride_id = ?`, id).Scan(
		&r.ID, &r.VideoPath, &created, &r.Verdict, &r.RiderStyle,
		&r.RiskPercentage, &r.TotalSamples, &r.CriticalFrames, &r.SkippedWindows, &payload,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRideNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(created, 0).UTC()

	var res pipeline.Result
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, fmt.Errorf("failed to decode ride %s: %w", id, err)
	}
	r.Result = &res
	return &r, nil
}

// RideEvents lists a ride's critical windows in frame order.
func (db *DB) RideEvents(ctx context.Context, id string) ([]RideEvent, error) {
	rows, err := db.QueryContext(ctx, `SELECT ride_id, frame_id, tier, description
		FROM ride_events WHERE ride_id = ? ORDER BY frame_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []RideEvent{}
	for rows.Next() {
		var ev RideEvent
		if err := rows.Scan(&ev.RideID, &ev.FrameID, &ev.Tier, &ev.Description); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteRide removes a ride and, by cascade, its events.
func (db *DB) DeleteRide(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM rides WHERE ride_id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRideNotFound, id)
	}
	return nil
}
