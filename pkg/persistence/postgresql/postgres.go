// Package postgresql provides the PostgreSQL persistence implementation.
// Records are stored as JSONB documents alongside the scalar columns the
// dispatcher and scheduler filter on; every write is a single-row upsert so
// an execution's status, current node and runtime data land atomically.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	_ "github.com/lib/pq"

	"github.com/veilstream/conduit/pkg/persistence"
)

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	workflows  *WorkflowRepository
	executions *ExecutionRepository
	logs       *LogRepository
	schedules  *ScheduleRepository
	approvals  *ApprovalRepository
}

// NewPersistence connects, runs pending migrations and returns the
// persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Persistence{
		db:         database,
		logger:     logger.With("module", "postgresql"),
		workflows:  &WorkflowRepository{db: database},
		executions: &ExecutionRepository{db: database},
		logs:       &LogRepository{db: database},
		schedules:  &ScheduleRepository{db: database},
		approvals:  &ApprovalRepository{db: database},
	}

	if err := p.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return p, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository   { return p.workflows }
func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository { return p.executions }
func (p *Persistence) LogRepository() persistence.LogRepository             { return p.logs }
func (p *Persistence) ScheduleRepository() persistence.ScheduleRepository   { return p.schedules }
func (p *Persistence) ApprovalRepository() persistence.ApprovalRepository   { return p.approvals }

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db == nil {
		return nil
	}

	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

func (p *Persistence) migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`); err != nil {
		return err
	}

	applied := make(map[int]bool)

	rows, err := p.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return err
		}

		applied[version] = true
	}

	if err := rows.Err(); err != nil {
		return err
	}

	all := migrations()

	versions := make([]int, 0, len(all))
	for version := range all {
		versions = append(versions, version)
	}

	sort.Ints(versions)

	for _, version := range versions {
		if applied[version] {
			continue
		}

		p.logger.Info("Applying migration", "version", version)

		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, all[version]); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("migration %d failed: %w", version, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("migration %d failed: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return err
		}
	}

	return nil
}
