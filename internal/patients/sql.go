// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package patients

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/pdiddy/field-triage/pkg/types"
)

// sqlStore implements Repository over database/sql. Queries are written with
// ? placeholders and rebound for drivers that number them.
type sqlStore struct {
	db       *sql.DB
	numbered bool
}

// SQLiteRepository stores records in a local SQLite file, through either the
// cgo driver (sqlite3) or the pure-Go one (sqlite).
type SQLiteRepository struct {
	sqlStore
}

// PostgresRepository stores records on a clinic server.
type PostgresRepository struct {
	sqlStore
}

// OpenSQLite opens or creates the database at path and its schema.
func OpenSQLite(ctx context.Context, path string, driver types.StoreDriver) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	var dsn string
	switch driver {
	case types.StoreSQLite:
		dsn = path + "?_journal_mode=WAL&_foreign_keys=on"
	case types.StoreSQLitePure:
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	default:
		return nil, fmt.Errorf("driver %q is not a SQLite driver", driver)
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	r := &SQLiteRepository{sqlStore: sqlStore{db: db}}
	if err := r.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return r, nil
}

// OpenPostgres connects with lib/pq and creates the schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	r := &PostgresRepository{sqlStore: sqlStore{db: db, numbered: true}}
	if err := r.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return r, nil
}

// Close releases the database connection.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			id_number TEXT PRIMARY KEY,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			first_name_norm TEXT NOT NULL,
			last_name_norm TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS patient_history (
			id_number TEXT NOT NULL REFERENCES patients(id_number) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			entry TEXT NOT NULL,
			PRIMARY KEY (id_number, position)
		)`,
		`CREATE TABLE IF NOT EXISTS patient_scans (
			id_number TEXT NOT NULL REFERENCES patients(id_number) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			entry TEXT NOT NULL,
			PRIMARY KEY (id_number, position)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (s *sqlStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FindPatient looks the patient up by trimmed id and normalized names.
func (s *sqlStore) FindPatient(ctx context.Context, firstName, lastName, idNumber string) (*types.PatientRecord, error) {
	rec := types.PatientRecord{}
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id_number, first_name, last_name FROM patients
		 WHERE id_number = ? AND first_name_norm = ? AND last_name_norm = ?`),
		strings.TrimSpace(idNumber), normalizeName(firstName), normalizeName(lastName),
	).Scan(&rec.IDNumber, &rec.FirstName, &rec.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying patient: %w", err)
	}

	if rec.History, err = s.entries(ctx, "patient_history", rec.IDNumber); err != nil {
		return nil, err
	}
	if rec.Scans, err = s.entries(ctx, "patient_scans", rec.IDNumber); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *sqlStore) entries(ctx context.Context, table, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT entry FROM `+table+` WHERE id_number = ? ORDER BY position`), id)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Import upserts records in one transaction, replacing the history and scans
// of patients already on file. It returns the number of records written.
func (s *sqlStore) Import(ctx context.Context, records []types.PatientRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		id := strings.TrimSpace(rec.IDNumber)
		if id == "" {
			return 0, fmt.Errorf("patient %s %s has no id_number", rec.FirstName, rec.LastName)
		}
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO patients (id_number, first_name, last_name, first_name_norm, last_name_norm)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(id_number) DO UPDATE SET
				first_name=excluded.first_name, last_name=excluded.last_name,
				first_name_norm=excluded.first_name_norm, last_name_norm=excluded.last_name_norm`),
			id, strings.TrimSpace(rec.FirstName), strings.TrimSpace(rec.LastName),
			normalizeName(rec.FirstName), normalizeName(rec.LastName),
		)
		if err != nil {
			return 0, fmt.Errorf("upserting patient %s: %w", id, err)
		}

		for table, entries := range map[string][]string{"patient_history": rec.History, "patient_scans": rec.Scans} {
			if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM `+table+` WHERE id_number = ?`), id); err != nil {
				return 0, fmt.Errorf("clearing %s for %s: %w", table, id, err)
			}
			for i, entry := range entries {
				if _, err := tx.ExecContext(ctx, s.rebind(
					`INSERT INTO `+table+` (id_number, position, entry) VALUES (?, ?, ?)`), id, i, entry); err != nil {
					return 0, fmt.Errorf("inserting %s for %s: %w", table, id, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing import: %w", err)
	}
	return len(records), nil
}
