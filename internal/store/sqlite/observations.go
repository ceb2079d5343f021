package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/internal/histogram"
	"github.com/GoSim-25-26J-441/topology-core/internal/rawdata"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

const insertObservationSQL = `
	INSERT INTO edge_observations (
		direction, from_name, from_code, to_name, to_code,
		source, source_code, target, target_code, ts,
		fast, normal, slow, very_slow, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertObservation stores one slot of call data reported by one side of an edge
func (s *Store) InsertObservation(ctx context.Context, direction rawdata.Direction, from, to models.Application, key rawdata.CallKey, timestamp time.Time, h histogram.Histogram) error {
	return insertObservation(ctx, s.db, direction, from, to, key, timestamp, h)
}

// InsertObservationSet stores every row of set, and its acceptors, in one transaction
func (s *Store) InsertObservationSet(ctx context.Context, set *rawdata.DualEdgeObservationSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sides := []struct {
		direction rawdata.Direction
		rows      []*rawdata.EdgeObservationRow
	}{
		{rawdata.DirectionSource, set.SourceRows()},
		{rawdata.DirectionTarget, set.TargetRows()},
	}
	for _, side := range sides {
		for _, row := range side.rows {
			for _, calls := range row.Calls.CallData() {
				for _, p := range calls.Points() {
					if err := insertObservation(ctx, tx, side.direction, row.From, row.To, calls.Key, p.Time, p.Histogram); err != nil {
						return err
					}
				}
			}
		}
	}
	for host, app := range set.Acceptors {
		if err := putAcceptor(ctx, tx, host, app); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit observations: %w", err)
	}
	return nil
}

// PutAcceptor records which application accepts calls addressed to host
func (s *Store) PutAcceptor(ctx context.Context, host string, app models.Application) error {
	return putAcceptor(ctx, s.db, host, app)
}

// QueryObservations loads the rows of both directions whose slot falls in window, plus every acceptor host
func (s *Store) QueryObservations(ctx context.Context, window models.TimeWindow) (*rawdata.DualEdgeObservationSet, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT direction, from_name, from_code, to_name, to_code,
			source, source_code, target, target_code, ts,
			fast, normal, slow, very_slow, error
		FROM edge_observations
		WHERE ts >= ? AND ts < ?
		ORDER BY ts
	`, timeToMs(window.From), timeToMs(window.To))
	if err != nil {
		return nil, fmt.Errorf("failed to query edge observations: %w", err)
	}
	defer rows.Close()

	set := rawdata.NewDualEdgeObservationSet()
	for rows.Next() {
		var (
			direction                                int
			fromName, toName, source, target         string
			fromCode, toCode, sourceCode, targetCode int16
			ts                                       int64
			h                                        histogram.Histogram
		)
		dest := append([]any{&direction, &fromName, &fromCode, &toName, &toCode,
			&source, &sourceCode, &target, &targetCode, &ts}, histogramColumns(&h)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan edge observation: %w", err)
		}

		from := s.application(fromName, fromCode)
		to := s.application(toName, toCode)
		key := rawdata.CallKey{
			Source:     source,
			SourceType: s.catalog.Resolve(sourceCode),
			Target:     target,
			TargetType: s.catalog.Resolve(targetCode),
		}
		h = h.WithType(key.TargetType)
		if rawdata.Direction(direction) == rawdata.DirectionTarget {
			set.AddTarget(from, to, key, msToTime(ts), h)
		} else {
			set.AddSource(from, to, key, msToTime(ts), h)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edge observations: %w", err)
	}

	if err := s.loadAcceptors(ctx, set); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *Store) loadAcceptors(ctx context.Context, set *rawdata.DualEdgeObservationSet) error {
	rows, err := s.db.QueryContext(ctx, `SELECT host, app_name, app_code FROM host_applications`)
	if err != nil {
		return fmt.Errorf("failed to query host applications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			host, name string
			code       int16
		)
		if err := rows.Scan(&host, &name, &code); err != nil {
			return fmt.Errorf("failed to scan host application: %w", err)
		}
		set.AddAcceptor(host, s.application(name, code))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating host applications: %w", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertObservation(ctx context.Context, db execer, direction rawdata.Direction, from, to models.Application, key rawdata.CallKey, timestamp time.Time, h histogram.Histogram) error {
	_, err := db.ExecContext(ctx, insertObservationSQL,
		int(direction), from.Name, from.Type.Code, to.Name, to.Type.Code,
		key.Source, key.SourceType.Code, key.Target, key.TargetType.Code, timeToMs(timestamp),
		h.Fast, h.Normal, h.Slow, h.VerySlow, h.Error)
	if err != nil {
		return fmt.Errorf("failed to insert %s observation %s -> %s: %w", direction, from, to, err)
	}
	return nil
}

func putAcceptor(ctx context.Context, db execer, host string, app models.Application) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO host_applications (host, app_name, app_code) VALUES (?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET app_name = excluded.app_name, app_code = excluded.app_code
	`, host, app.Name, app.Type.Code)
	if err != nil {
		return fmt.Errorf("failed to put acceptor %s: %w", host, err)
	}
	return nil
}
