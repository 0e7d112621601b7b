// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package patients looks up stored history for a verified patient. The store
// is read-only from the pipeline's point of view; Import exists for the CLI
// that provisions an edge device.
package patients

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/field-triage/internal/secrets"
	"github.com/pdiddy/field-triage/pkg/types"
)

// Repository finds a patient by identity. A patient that is not on file is
// reported as (nil, nil); errors mean the store itself failed.
type Repository interface {
	FindPatient(ctx context.Context, firstName, lastName, idNumber string) (*types.PatientRecord, error)
}

// Store is a Repository that holds resources.
type Store interface {
	Repository
	Close() error
}

// recordsFile is the layout of a YAML or JSON record file.
type recordsFile struct {
	Patients []types.PatientRecord `json:"patients" yaml:"patients"`
}

// Matches reports whether rec is the patient identified by the given fields:
// the id must match exactly after trimming, names case-insensitively.
func Matches(rec types.PatientRecord, firstName, lastName, idNumber string) bool {
	return strings.TrimSpace(rec.IDNumber) == strings.TrimSpace(idNumber) &&
		normalizeName(rec.FirstName) == normalizeName(firstName) &&
		normalizeName(rec.LastName) == normalizeName(lastName)
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LoadRecords reads a record file. JSON is accepted because it is valid YAML.
func LoadRecords(path string) ([]types.PatientRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading patient records %s: %w", path, err)
	}
	var file recordsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing patient records %s: %w", path, err)
	}
	for i, rec := range file.Patients {
		if strings.TrimSpace(rec.IDNumber) == "" {
			return nil, fmt.Errorf("patient record %d in %s has no id_number", i, path)
		}
	}
	return file.Patients, nil
}

// FileRepository reads a record file on every lookup so edits on the device
// are picked up without a restart. A missing file is an empty store.
type FileRepository struct {
	path string
}

// NewFileRepository returns a repository backed by path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

// FindPatient scans the record file for a matching entry.
func (r *FileRepository) FindPatient(_ context.Context, firstName, lastName, idNumber string) (*types.PatientRecord, error) {
	records, err := LoadRecords(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	for _, rec := range records {
		if Matches(rec, firstName, lastName, idNumber) {
			found := rec
			return &found, nil
		}
	}
	return nil, nil
}

// Close is a no-op.
func (r *FileRepository) Close() error { return nil }

// Open returns the store selected by cfg.Driver. An empty path and DSN means
// no store is configured and (nil, nil) is returned. The Postgres DSN falls
// back to the postgres-dsn secret.
func Open(ctx context.Context, cfg types.PatientStoreConfig, sec secrets.Secrets) (Store, error) {
	switch cfg.Driver {
	case "", types.StoreFile:
		if cfg.Path == "" {
			return nil, nil
		}
		return NewFileRepository(cfg.Path), nil
	case types.StoreSQLite, types.StoreSQLitePure:
		if cfg.Path == "" {
			return nil, fmt.Errorf("patient store driver %s needs a path", cfg.Driver)
		}
		repo, err := OpenSQLite(ctx, cfg.Path, cfg.Driver)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case types.StorePostgres:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = sec.Get(secrets.PostgresDSN)
		}
		if dsn == "" {
			return nil, fmt.Errorf("patient store driver postgres needs a DSN")
		}
		repo, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown patient store driver %q", cfg.Driver)
	}
}
