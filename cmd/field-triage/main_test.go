// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/field-triage/internal/pipeline"
	"github.com/pdiddy/field-triage/pkg/types"
)

func newViper(t *testing.T, configYAML string) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FIELD_TRIAGE")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	if configYAML != "" {
		path := filepath.Join(t.TempDir(), "field-triage.yaml")
		require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o644))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestPipelineConfigDefaults(t *testing.T) {
	cfg := pipelineConfig(newViper(t, ""))

	assert.Equal(t, types.EnvironmentStandard, cfg.Environment)
	assert.Equal(t, types.DefaultTriageConfig(), cfg.Triage)
	assert.Equal(t, types.SummaryStatic, cfg.Summary.Backend)
	assert.Equal(t, 20*time.Second, cfg.Summary.Timeout)
	assert.Equal(t, types.StoreFile, cfg.PatientStore.Driver)
	assert.Empty(t, cfg.PatientStore.Path)
	assert.Equal(t, "data/audit.db", cfg.Audit.Path)
}

func TestPipelineConfigFileAndEnv(t *testing.T) {
	t.Setenv("FIELD_TRIAGE_SUMMARY_BACKEND", "local")

	cfg := pipelineConfig(newViper(t, `environment: remote_village
location_label: Clinic 4
triage:
  urgent_spo2_threshold: 93
  disable_escalation: true
summary:
  backend: openai
  model: medgemma
  timeout: 5s
patient_store:
  driver: sqlite
  path: /var/lib/field-triage/patients.db
`))

	assert.Equal(t, types.EnvironmentRemoteVillage, cfg.Environment)
	assert.Equal(t, "Clinic 4", cfg.LocationLabel)
	assert.Equal(t, 93, cfg.Triage.UrgentSpO2Threshold)
	assert.Equal(t, 90, cfg.Triage.EmergencySpO2Threshold)
	assert.True(t, cfg.Triage.DisableEscalation)
	assert.Equal(t, types.SummaryLocal, cfg.Summary.Backend, "environment overrides the file")
	assert.Equal(t, "medgemma", cfg.Summary.Model)
	assert.Equal(t, 5*time.Second, cfg.Summary.Timeout)
	assert.Equal(t, types.StoreSQLitePure, cfg.PatientStore.Driver)
}

func TestEngineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	records := filepath.Join(dir, "patients.yaml")
	require.NoError(t, os.WriteFile(records, []byte(`patients:
  - first_name: Anna
    last_name: Nowak
    id_number: PL-1001
    history: ["COPD diagnosed 2019"]
    scans: ["2025 chest X-ray: no change"]
`), 0o644))

	cfg := pipelineConfig(newViper(t, ""))
	cfg.PatientStore.Path = records
	cfg.LocationLabel = "Village A"

	eng, err := newEngine(context.Background(), cfg)
	require.NoError(t, err)
	defer eng.Close()

	in := types.Intake{
		FirstName:   "anna",
		LastName:    "NOWAK",
		IDNumber:    "PL-1001",
		Symptoms:    []string{"mild cough"},
		Environment: types.EnvironmentRemoteVillage,
	}
	res, err := eng.Run(context.Background(), pipeline.Request{Intake: in, Verified: true})
	require.NoError(t, err)
	assert.True(t, res.PatientRecordFound)
	assert.Equal(t, types.PriorityUrgent, res.Priority)

	var out bytes.Buffer
	writeResult(&out, res, cfg.LocationLabel)
	text := out.String()
	assert.Contains(t, text, "Priority:     urgent")
	assert.Contains(t, text, "Environment:  remote_village (Village A)")
	assert.Contains(t, text, "nurse_assessment_today")
	assert.Contains(t, text, "instead of physician_same_day")
	assert.Contains(t, text, "Not available here:")
	assert.Contains(t, text, "Summary (static):")
}

func TestEngineWithoutStore(t *testing.T) {
	cfg := pipelineConfig(newViper(t, ""))
	cfg.PatientStore = types.PatientStoreConfig{Driver: types.StorePostgres}

	// A store that cannot be opened is skipped.
	eng, err := newEngine(context.Background(), cfg)
	require.NoError(t, err)
	defer eng.Close()
	assert.Nil(t, eng.store)
}

func TestLoadRegistryFromPath(t *testing.T) {
	cfg := pipelineConfig(newViper(t, ""))
	cfg.ProfilesPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := loadRegistry(cfg)
	assert.Error(t, err)

	cfg.ProfilesPath = ""
	reg, err := loadRegistry(cfg)
	require.NoError(t, err)
	assert.Len(t, reg.Names(), 3)
}

func TestReadConfig(t *testing.T) {
	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "field-triage.yaml")
		require.NoError(t, os.WriteFile(path, []byte("triage:\n  disable_escalation: [true\n"), 0o644))
		v := viper.New()
		v.SetConfigFile(path)
		assert.ErrorContains(t, readConfig(v), "reading config")
	})

	t.Run("no file on the search path", func(t *testing.T) {
		v := viper.New()
		v.SetConfigName("field-triage")
		v.SetConfigType("yaml")
		v.AddConfigPath(t.TempDir())
		assert.NoError(t, readConfig(v))
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "field-triage.yaml")
		require.NoError(t, os.WriteFile(path, []byte("triage:\n  disable_escalation: true\n"), 0o644))
		v := viper.New()
		setDefaults(v)
		v.SetConfigFile(path)
		require.NoError(t, readConfig(v))
		assert.True(t, pipelineConfig(v).Triage.DisableEscalation)
	})
}

func TestBatchSkipsUnloadedIntakes(t *testing.T) {
	dir := t.TempDir()
	single := filepath.Join(dir, "anna.yaml")
	require.NoError(t, os.WriteFile(single, []byte("first_name: Anna\nsymptoms: [mild cough]\n"), 0o644))
	list := filepath.Join(dir, "clinic.yaml")
	require.NoError(t, os.WriteFile(list, []byte(`intakes:
  - {first_name: Jan, symptoms: [stroke], environment: remote_village}
  - {first_name: Ewa, symptoms: [persistent vomiting]}
`), 0o644))
	missing := filepath.Join(dir, "missing.yaml")

	items := loadBatch([]string{single, missing, list})
	require.Len(t, items, 4)
	assert.Equal(t, single, items[0].label)
	assert.Equal(t, missing, items[1].label)
	assert.Error(t, items[1].err)
	assert.Equal(t, list+"[0]", items[2].label)
	assert.Equal(t, list+"[1]", items[3].label)

	cfg := pipelineConfig(newViper(t, ""))
	reqs, slot := batchRequests(batchCmd, items, cfg)
	require.Len(t, reqs, 3)
	assert.Equal(t, []int{0, 2, 3}, slot)
	assert.Equal(t, "Anna", reqs[0].Intake.FirstName)
	assert.Equal(t, types.EnvironmentStandard, reqs[0].Intake.Environment)
	assert.Equal(t, types.EnvironmentRemoteVillage, reqs[1].Intake.Environment)
	assert.Equal(t, "Ewa", reqs[2].Intake.FirstName)
	for _, r := range reqs {
		assert.NotEmpty(t, r.Intake.FirstName)
	}
}
