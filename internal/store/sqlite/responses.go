package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// InsertResponseTime stores the self-reported histogram of one instance for one slot
func (s *Store) InsertResponseTime(ctx context.Context, app models.Application, instanceID string, timestamp time.Time, h histogram.Histogram) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO response_times (app_name, app_code, instance_id, ts, fast, normal, slow, very_slow, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, app.Name, app.Type.Code, instanceID, timeToMs(timestamp), h.Fast, h.Normal, h.Slow, h.VerySlow, h.Error)
	if err != nil {
		return fmt.Errorf("failed to insert response time for %s/%s: %w", app, instanceID, err)
	}
	return nil
}

// SelectResponseTime returns the response rows of app in window, one per timestamp, oldest first
func (s *Store) SelectResponseTime(ctx context.Context, app models.Application, window models.TimeWindow) ([]*histogram.ResponseTime, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT instance_id, ts, fast, normal, slow, very_slow, error
		FROM response_times
		WHERE app_name = ? AND app_code = ? AND ts >= ? AND ts < ?
		ORDER BY ts, instance_id
	`, app.Name, app.Type.Code, timeToMs(window.From), timeToMs(window.To))
	if err != nil {
		return nil, fmt.Errorf("failed to query response times: %w", err)
	}
	defer rows.Close()

	out := make([]*histogram.ResponseTime, 0)
	byTimestamp := make(map[int64]*histogram.ResponseTime)
	for rows.Next() {
		var (
			instanceID string
			ts         int64
			h          = histogram.New(app.Type)
		)
		dest := append([]any{&instanceID, &ts}, histogramColumns(&h)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan response time: %w", err)
		}

		row, ok := byTimestamp[ts]
		if !ok {
			row = histogram.NewResponseTime(app, msToTime(ts))
			byTimestamp[ts] = row
			out = append(out, row)
		}
		row.AddInstance(instanceID, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating response times: %w", err)
	}
	return out, nil
}
