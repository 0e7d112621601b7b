// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List or export environment policy tables",
	Long: `Profiles lists the environment profiles known to the pipeline. With
--export the full policy tables are written as YAML; the output can be edited
and loaded back through profiles_path in the config file.`,
	RunE: runProfiles,
}

func init() {
	profilesCmd.Flags().Bool("export", false, "write the policy tables as YAML")
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	cfg := pipelineConfig(viper.GetViper())
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	if export, _ := cmd.Flags().GetBool("export"); export {
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(reg); err != nil {
			return fmt.Errorf("encoding profiles: %w", err)
		}
		return enc.Close()
	}

	fmt.Fprintf(os.Stdout, "%-24s  %-8s  %s\n", "Profile", "Default", "Guidance")
	for _, name := range reg.Names() {
		p, err := reg.Lookup(name)
		if err != nil {
			return err
		}
		def := ""
		if name == cfg.Environment {
			def = "yes"
		}
		fmt.Fprintf(os.Stdout, "%-24s  %-8s  %s\n", name, def, p.GuidanceNote)
	}
	fmt.Fprintf(os.Stdout, "\n%s\n", reg.Version())
	return nil
}
