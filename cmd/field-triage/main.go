// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the field-triage CLI.
package main

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/field-triage/internal/logging"
	"github.com/pdiddy/field-triage/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// configErr is set by initConfig and reported before any command runs.
var configErr error

var rootCmd = &cobra.Command{
	Use:   "field-triage",
	Short: "Deterministic triage decisions for field health workers",
	Long: `field-triage turns a structured intake into a priority, a set of
immediate actions, a next step and referrals that fit the care setting.

Red-flag symptoms always force emergency priority. Recommendations are
adapted to the environment profile (standard, remote_village,
limited_access_region) and every referral that cannot be offered there is
replaced by a feasible alternative or an explicit note.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		logger, err := logging.New(verbose)
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)

		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./field-triage.yaml or ~/.config/field-triage/field-triage.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log pipeline transitions at debug level")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("field-triage")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "field-triage"))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("FIELD_TRIAGE")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	configErr = readConfig(viper.GetViper())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
