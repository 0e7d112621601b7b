// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/field-triage/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect recorded triage runs",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the most recent triage runs",
	RunE:  runAuditList,
}

func init() {
	auditListCmd.Flags().Int("limit", 20, "number of runs to show")
	auditListCmd.Flags().Bool("json", false, "print full results as JSON")

	auditCmd.AddCommand(auditListCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := pipelineConfig(viper.GetViper())
	limit, _ := cmd.Flags().GetInt("limit")

	log, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		return err
	}
	defer log.Close()

	entries, err := log.Recent(ctx, limit)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No triage runs recorded.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-9s  %-22s  %-9s  %s\n",
		"Run", "Recorded", "Priority", "Environment", "Guardrail", "Escalate")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 112))
	for _, e := range entries {
		fmt.Fprintf(os.Stdout, "%-36s  %-20s  %-9s  %-22s  %-9t  %t\n",
			e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Priority, e.Environment,
			e.GuardrailTriggered, e.Escalate)
	}
	fmt.Fprintf(os.Stdout, "\n%d run(s)\n", len(entries))
	return nil
}
