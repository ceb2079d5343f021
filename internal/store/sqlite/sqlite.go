// Package sqlite persists edge observations, response times, agents and
// acceptor hosts, and serves them to the topology builder.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// Store implements the edge store, response time store and instance registry on SQLite
type Store struct {
	db      *sql.DB
	catalog *models.Catalog
}

// Open opens (and migrates) the database at path. ":memory:" gives a private in-memory database.
// Service type codes read back are resolved through catalog.
func Open(path string, catalog *models.Catalog) (*Store, error) {
	if catalog == nil {
		catalog = models.DefaultCatalog()
	}

	dsn := path
	if path != ":memory:" && !strings.Contains(path, "?") {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, catalog: catalog}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS edge_observations (
		direction INTEGER NOT NULL,
		from_name TEXT NOT NULL,
		from_code INTEGER NOT NULL,
		to_name TEXT NOT NULL,
		to_code INTEGER NOT NULL,
		source TEXT NOT NULL,
		source_code INTEGER NOT NULL,
		target TEXT NOT NULL,
		target_code INTEGER NOT NULL,
		ts INTEGER NOT NULL,
		fast INTEGER NOT NULL DEFAULT 0,
		normal INTEGER NOT NULL DEFAULT 0,
		slow INTEGER NOT NULL DEFAULT 0,
		very_slow INTEGER NOT NULL DEFAULT 0,
		error INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS response_times (
		app_name TEXT NOT NULL,
		app_code INTEGER NOT NULL,
		instance_id TEXT NOT NULL,
		ts INTEGER NOT NULL,
		fast INTEGER NOT NULL DEFAULT 0,
		normal INTEGER NOT NULL DEFAULT 0,
		slow INTEGER NOT NULL DEFAULT 0,
		very_slow INTEGER NOT NULL DEFAULT 0,
		error INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS agents (
		instance_id TEXT PRIMARY KEY,
		app_name TEXT NOT NULL,
		hostname TEXT NOT NULL,
		ip TEXT,
		service_code INTEGER NOT NULL,
		started_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS agent_states (
		instance_id TEXT NOT NULL,
		ts INTEGER NOT NULL,
		state TEXT NOT NULL,
		FOREIGN KEY (instance_id) REFERENCES agents(instance_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS host_applications (
		host TEXT PRIMARY KEY,
		app_name TEXT NOT NULL,
		app_code INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_edge_observations_ts ON edge_observations(ts);
	CREATE INDEX IF NOT EXISTS idx_response_times_app ON response_times(app_name, app_code, ts);
	CREATE INDEX IF NOT EXISTS idx_agents_app ON agents(app_name);
	CREATE INDEX IF NOT EXISTS idx_agent_states_instance ON agent_states(instance_id, ts);
	`

	_, err := s.db.Exec(schema)
	return err
}
