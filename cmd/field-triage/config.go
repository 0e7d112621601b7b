// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/field-triage/internal/environment"
	"github.com/pdiddy/field-triage/internal/patients"
	"github.com/pdiddy/field-triage/internal/pipeline"
	"github.com/pdiddy/field-triage/internal/summarize"
	"github.com/pdiddy/field-triage/pkg/types"
)

// envKeyReplacer maps nested keys to env names, e.g. summary.backend to
// FIELD_TRIAGE_SUMMARY_BACKEND.
var envKeyReplacer = strings.NewReplacer(".", "_")

const defaultSummaryTimeout = 20 * time.Second

// readConfig loads the config file. Only a file that was searched for and
// not found is tolerated; defaults apply then.
func readConfig(v *viper.Viper) error {
	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err == nil || errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("reading config: %w", err)
}

func setDefaults(v *viper.Viper) {
	triage := types.DefaultTriageConfig()

	v.SetDefault("environment", string(types.EnvironmentStandard))
	v.SetDefault("location_label", "")
	v.SetDefault("profiles_path", "")

	v.SetDefault("triage.emergency_keywords", triage.EmergencyKeywords)
	v.SetDefault("triage.urgent_keywords", triage.UrgentKeywords)
	v.SetDefault("triage.chronic_conditions", triage.ChronicConditions)
	v.SetDefault("triage.acute_symptoms", triage.AcuteSymptoms)
	v.SetDefault("triage.emergency_spo2_threshold", triage.EmergencySpO2Threshold)
	v.SetDefault("triage.urgent_spo2_threshold", triage.UrgentSpO2Threshold)
	v.SetDefault("triage.disable_escalation", false)

	v.SetDefault("summary.backend", string(types.SummaryStatic))
	v.SetDefault("summary.model", "")
	v.SetDefault("summary.endpoint", "")
	v.SetDefault("summary.timeout", defaultSummaryTimeout)
	v.SetDefault("summary.max_retries", 3)

	v.SetDefault("patient_store.driver", string(types.StoreFile))
	v.SetDefault("patient_store.path", "")
	v.SetDefault("patient_store.dsn", "")

	v.SetDefault("audit.path", "data/audit.db")
}

// pipelineConfig reads the settings resolved by viper: flags and environment
// override the config file, which overrides the defaults.
func pipelineConfig(v *viper.Viper) types.PipelineConfig {
	return types.PipelineConfig{
		Environment:   types.EnvironmentType(v.GetString("environment")),
		LocationLabel: v.GetString("location_label"),
		ProfilesPath:  v.GetString("profiles_path"),
		Triage: types.TriageConfig{
			EmergencyKeywords:      v.GetStringSlice("triage.emergency_keywords"),
			UrgentKeywords:         v.GetStringSlice("triage.urgent_keywords"),
			ChronicConditions:      v.GetStringSlice("triage.chronic_conditions"),
			AcuteSymptoms:          v.GetStringSlice("triage.acute_symptoms"),
			EmergencySpO2Threshold: v.GetInt("triage.emergency_spo2_threshold"),
			UrgentSpO2Threshold:    v.GetInt("triage.urgent_spo2_threshold"),
			DisableEscalation:      v.GetBool("triage.disable_escalation"),
		},
		Summary: types.SummaryConfig{
			AIConfig: types.AIConfig{
				Model:      v.GetString("summary.model"),
				APIKey:     v.GetString("summary.api_key"),
				MaxRetries: v.GetInt("summary.max_retries"),
			},
			HTTPConfig: types.HTTPConfig{
				Timeout:  v.GetDuration("summary.timeout"),
				Endpoint: v.GetString("summary.endpoint"),
			},
			Backend: types.SummaryBackend(v.GetString("summary.backend")),
		},
		PatientStore: types.PatientStoreConfig{
			Driver: types.StoreDriver(v.GetString("patient_store.driver")),
			Path:   v.GetString("patient_store.path"),
			DSN:    v.GetString("patient_store.dsn"),
		},
		Audit: types.AuditConfig{
			Path: v.GetString("audit.path"),
		},
	}
}

func loadRegistry(cfg types.PipelineConfig) (*environment.Registry, error) {
	if cfg.ProfilesPath != "" {
		return environment.LoadRegistry(cfg.ProfilesPath)
	}
	return environment.DefaultRegistry()
}

// engine is an orchestrator plus the resources it holds open.
type engine struct {
	*pipeline.Orchestrator
	store patients.Store
}

func (e *engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// newEngine wires the configured patient store and summarizer into an
// orchestrator. A patient store that cannot be opened is logged and skipped;
// triage must still work on a device without one.
func newEngine(ctx context.Context, cfg types.PipelineConfig) (*engine, error) {
	log := zap.L()

	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	sum, err := summarize.New(ctx, cfg.Summary, loadedSecrets)
	if err != nil {
		if !errors.Is(err, summarize.ErrBackendUnavailable) {
			return nil, err
		}
		log.Warn("summarization backend unavailable, using static summaries", zap.Error(err))
		sum = summarize.Static{}
	}

	pcfg := pipeline.Config{
		Registry:       reg,
		Summarizer:     sum,
		SummaryTimeout: cfg.Summary.Timeout,
		Triage:         cfg.Triage,
		Logger:         log,
	}

	e := &engine{}
	store, err := patients.Open(ctx, cfg.PatientStore, loadedSecrets)
	switch {
	case err != nil:
		log.Warn("patient store unavailable, continuing without history", zap.Error(err))
	case store != nil:
		e.store = store
		pcfg.Resolver = patients.NewResolver(store)
	}

	o, err := pipeline.New(pcfg)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Orchestrator = o
	return e, nil
}
