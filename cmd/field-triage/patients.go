// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/field-triage/internal/patients"
	"github.com/pdiddy/field-triage/internal/secrets"
	"github.com/pdiddy/field-triage/pkg/types"
)

var patientsCmd = &cobra.Command{
	Use:   "patients",
	Short: "Manage the patient record store",
}

var patientsImportCmd = &cobra.Command{
	Use:   "import <records-file>",
	Short: "Load a YAML or JSON record file into the database store",
	Long: `Import reads {patients: [...]} records and upserts them into the
configured SQLite or Postgres store. Existing history and scans for an
imported patient are replaced. File stores are read directly and need no
import.`,
	Args: cobra.ExactArgs(1),
	RunE: runPatientsImport,
}

func init() {
	patientsCmd.AddCommand(patientsImportCmd)
	rootCmd.AddCommand(patientsCmd)
}

// importer is implemented by the database-backed stores.
type importer interface {
	Import(ctx context.Context, records []types.PatientRecord) (int, error)
	Close() error
}

func openImporter(ctx context.Context, cfg types.PatientStoreConfig) (importer, error) {
	switch cfg.Driver {
	case types.StoreSQLite, types.StoreSQLitePure:
		if cfg.Path == "" {
			return nil, fmt.Errorf("patient_store.path is required for driver %s", cfg.Driver)
		}
		repo, err := patients.OpenSQLite(ctx, cfg.Path, cfg.Driver)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case types.StorePostgres:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = loadedSecrets.Get(secrets.PostgresDSN)
		}
		if dsn == "" {
			return nil, fmt.Errorf("patient_store.dsn or the %s secret is required for postgres", secrets.PostgresDSN)
		}
		repo, err := patients.OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("patient store driver %q does not support import", cfg.Driver)
	}
}

func runPatientsImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := pipelineConfig(viper.GetViper())

	records, err := patients.LoadRecords(args[0])
	if err != nil {
		return err
	}

	store, err := openImporter(ctx, cfg.PatientStore)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Import(ctx, records)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d patient record(s) into %s store\n", n, cfg.PatientStore.Driver)
	return nil
}
