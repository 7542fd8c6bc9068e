package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Files holds the SQL migrations shipped with the binary.
//
//go:embed *.sql
var Files embed.FS

// Migration represents a database migration
type Migration struct {
	Version int
	Up      string
	Down    string
}

// LoadMigrations collects NNNN_name.up.sql / NNNN_name.down.sql pairs from
// the root of fsys, sorted by version.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[int]*Migration)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		var version int
		var rest string
		if _, err := fmt.Sscanf(name, "%d_%s", &version, &rest); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Skipping invalid migration file")
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version}
			byVersion[version] = m
		}

		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			m.Up = string(content)
		case strings.HasSuffix(rest, ".down.sql"):
			m.Down = string(content)
		default:
			log.Warn().Str("file", name).Msg("Migration file has no direction suffix, skipping")
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	log.Debug().Int("count", len(migrations)).Msg("Loaded migrations")
	return migrations, nil
}

// RunMigrations applies every migration whose version is not yet recorded.
func RunMigrations(db *sql.DB, migrations []Migration) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(db, "SELECT version FROM migrations ORDER BY version")
	if err != nil {
		return err
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.Version] {
			log.Debug().Int("version", m.Version).Msg("Migration already applied, skipping")
			continue
		}
		if m.Up == "" {
			return fmt.Errorf("migration %d has no up script", m.Version)
		}

		log.Info().Int("version", m.Version).Msg("Running migration")
		err := inTx(db, m.Up, "INSERT INTO migrations (version) VALUES (?)", m.Version)
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.Version, err)
		}
		log.Info().Int("version", m.Version).Msg("Migration completed successfully")
	}

	return nil
}

// RollbackMigrations rolls back the last n applied migrations, newest first.
func RollbackMigrations(db *sql.DB, migrations []Migration, n int) error {
	versions, err := appliedVersions(db, "SELECT version FROM migrations ORDER BY version DESC LIMIT ?", n)
	if err != nil {
		return err
	}

	byVersion := make(map[int]Migration, len(migrations))
	for _, m := range migrations {
		byVersion[m.Version] = m
	}

	for _, version := range versions {
		m := byVersion[version]
		if m.Down == "" {
			log.Warn().Int("version", version).Msg("No down migration found, skipping")
			continue
		}

		log.Info().Int("version", version).Msg("Rolling back migration")
		if err := inTx(db, m.Down, "DELETE FROM migrations WHERE version = ?", version); err != nil {
			return fmt.Errorf("rollback of migration %d: %w", version, err)
		}
		log.Info().Int("version", version).Msg("Rollback completed successfully")
	}

	return nil
}

func appliedVersions(db *sql.DB, query string, args ...any) ([]int, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// inTx runs script and the bookkeeping statement atomically.
func inTx(db *sql.DB, script, bookkeeping string, version int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(script); err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}
	if _, err := tx.Exec(bookkeeping, version); err != nil {
		return fmt.Errorf("failed to update migrations table: %w", err)
	}
	return tx.Commit()
}
