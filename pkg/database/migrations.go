package database

import (
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration represents a versioned schema change
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the full ordered schema history. New changes append a new
// version; applied versions are never edited.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_claims",
		SQL: `
			CREATE TABLE IF NOT EXISTS claims (
				hospital_id        TEXT NOT NULL,
				preauth_id         TEXT NOT NULL,
				patient_id         TEXT NOT NULL,
				claim_type         TEXT NOT NULL,
				insurance_provider TEXT NOT NULL,
				policy_number      TEXT NOT NULL,
				policy_holder_name TEXT NOT NULL DEFAULT '',
				policy_holder_rel  TEXT NOT NULL DEFAULT '',
				treatment_type     TEXT NOT NULL,
				diagnosis_code     TEXT NOT NULL,
				procedure_codes    TEXT NOT NULL DEFAULT '[]',
				estimated_cost     TEXT NOT NULL,
				requested_amount   TEXT NOT NULL,
				approved_amount    TEXT NOT NULL DEFAULT '0',
				current_state      TEXT NOT NULL,
				priority           TEXT NOT NULL DEFAULT 'normal',
				is_urgent          INTEGER NOT NULL DEFAULT 0,
				urgent_reason      TEXT NOT NULL DEFAULT '',
				doctor_name        TEXT NOT NULL DEFAULT '',
				tpa_name           TEXT NOT NULL DEFAULT '',
				approval_reference TEXT NOT NULL DEFAULT '',
				rejection_reason   TEXT NOT NULL DEFAULT '',
				created_at         DATETIME NOT NULL,
				last_transition_at DATETIME NOT NULL,
				PRIMARY KEY (hospital_id, preauth_id)
			);
			CREATE INDEX IF NOT EXISTS idx_claims_state ON claims(hospital_id, current_state);
			CREATE INDEX IF NOT EXISTS idx_claims_created ON claims(hospital_id, created_at);
		`,
	},
	{
		Version: 2,
		Name:    "create_transitions",
		SQL: `
			CREATE TABLE IF NOT EXISTS transitions (
				id               TEXT PRIMARY KEY,
				preauth_id       TEXT NOT NULL,
				hospital_id      TEXT NOT NULL,
				state            TEXT NOT NULL,
				previous_state   TEXT NOT NULL DEFAULT '',
				payload_kind     TEXT NOT NULL DEFAULT '',
				payload_data     TEXT NOT NULL DEFAULT '',
				remarks          TEXT NOT NULL DEFAULT '',
				changed_by       TEXT NOT NULL,
				changed_by_role  TEXT NOT NULL,
				changed_at       DATETIME NOT NULL,
				duration_minutes INTEGER NOT NULL DEFAULT 0,
				escalation_level INTEGER NOT NULL DEFAULT 0,
				sla_breach       INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_transitions_preauth ON transitions(hospital_id, preauth_id, changed_at);
		`,
	},
}

// Migrator applies pending schema migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// Run applies every migration not yet recorded in schema_migrations.
func (m *Migrator) Run() error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	pending := make([]Migration, 0, len(migrations))
	for _, mig := range migrations {
		if !applied[mig.Version] {
			pending = append(pending, mig)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, mig := range pending {
		m.logger.Info("Applying migration",
			zap.Int("version", mig.Version),
			zap.String("name", mig.Name))
		if err := m.apply(mig); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
	}

	m.logger.Info("Database migrations completed", zap.Int("applied", len(pending)))
	return nil
}

func (m *Migrator) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := m.db.Exec(query)
	return err
}

func (m *Migrator) appliedVersions() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(mig Migration) error {
	return m.db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(mig.SQL); err != nil {
			return err
		}
		_, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", mig.Version, mig.Name)
		return err
	})
}
