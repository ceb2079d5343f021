package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// PutAgent inserts or replaces an agent and records its state as of StartedAt
func (s *Store) PutAgent(ctx context.Context, agent models.AgentSnapshot) error {
	if agent.InstanceID == "" || agent.ApplicationName == "" {
		return fmt.Errorf("agent requires instance id and application name")
	}
	state := agent.State
	if state == "" {
		state = models.LifecycleUnknown
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agents (instance_id, app_name, hostname, ip, service_code, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET
			app_name = excluded.app_name,
			hostname = excluded.hostname,
			ip = excluded.ip,
			service_code = excluded.service_code,
			started_at = excluded.started_at
	`, agent.InstanceID, agent.ApplicationName, agent.Hostname, stringToNull(agent.IP), agent.ServiceType.Code, timeToMs(agent.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert agent %s: %w", agent.InstanceID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM agent_states WHERE instance_id = ?`, agent.InstanceID); err != nil {
		return fmt.Errorf("failed to reset agent states %s: %w", agent.InstanceID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO agent_states (instance_id, ts, state) VALUES (?, ?, ?)`,
		agent.InstanceID, timeToMs(agent.StartedAt), string(state)); err != nil {
		return fmt.Errorf("failed to insert agent state %s: %w", agent.InstanceID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit agent %s: %w", agent.InstanceID, err)
	}
	return nil
}

// PutAgentState records a lifecycle change of an agent
func (s *Store) PutAgentState(ctx context.Context, instanceID string, state models.LifecycleState, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO agent_states (instance_id, ts, state) VALUES (?, ?, ?)`,
		instanceID, timeToMs(at), string(state))
	if err != nil {
		return fmt.Errorf("failed to insert agent state %s: %w", instanceID, err)
	}
	return nil
}

// InstancesFor returns the agents of an application started by asOf, with their last state at or before asOf
func (s *Store) InstancesFor(ctx context.Context, applicationName string, asOf time.Time) ([]models.AgentSnapshot, error) {
	asOfMs := timeToMs(asOf)
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.instance_id, a.app_name, a.hostname, a.ip, a.service_code, a.started_at,
			(SELECT st.state FROM agent_states st
				WHERE st.instance_id = a.instance_id AND st.ts <= ?
				ORDER BY st.ts DESC, st.rowid DESC LIMIT 1) AS state
		FROM agents a
		WHERE a.app_name = ? AND a.started_at <= ?
		ORDER BY a.instance_id
	`, asOfMs, applicationName, asOfMs)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	out := make([]models.AgentSnapshot, 0)
	for rows.Next() {
		var (
			agent     models.AgentSnapshot
			ip, state sql.NullString
			code      int16
			startedAt int64
		)
		if err := rows.Scan(&agent.InstanceID, &agent.ApplicationName, &agent.Hostname, &ip, &code, &startedAt, &state); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agent.IP = nullToString(ip)
		agent.ServiceType = s.catalog.Resolve(code)
		agent.StartedAt = msToTime(startedAt)
		agent.State = models.LifecycleUnknown
		if parsed, err := models.ParseLifecycleState(nullToString(state)); err == nil {
			agent.State = parsed
		}
		out = append(out, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}
	return out, nil
}
