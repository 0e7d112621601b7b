// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/field-triage/internal/audit"
	"github.com/pdiddy/field-triage/internal/intake"
	"github.com/pdiddy/field-triage/internal/pipeline"
	"github.com/pdiddy/field-triage/pkg/types"
)

var triageCmd = &cobra.Command{
	Use:   "triage <intake-file>",
	Short: "Triage one intake and print the recommendation",
	Long: `Triage reads a YAML or JSON intake ("-" for stdin), looks up stored
history when the patient is verified and a patient store is configured, runs
the decision pipeline and prints the result.

The environment comes from --environment, then the intake's own tag, then
the configured default.`,
	Args: cobra.ExactArgs(1),
	RunE: runTriage,
}

var batchCmd = &cobra.Command{
	Use:   "batch <intake-file>...",
	Short: "Triage several intakes concurrently",
	Long: `Batch triages each intake independently, printing one line per
intake in the order given. A file may hold one intake or a list under a
top-level intakes key. A failing intake does not stop the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	for _, c := range []*cobra.Command{triageCmd, batchCmd} {
		c.Flags().String("environment", "", "environment profile to apply, overriding the intake")
		c.Flags().Bool("unverified", false, "treat the patient identity as not verified; stored history is not used")
		c.Flags().Bool("audit", false, "record the run in the audit log")
	}
	triageCmd.Flags().Bool("json", false, "print the result as JSON")
	batchCmd.Flags().Int("concurrency", 4, "maximum intakes triaged at once")

	rootCmd.AddCommand(triageCmd)
	rootCmd.AddCommand(batchCmd)
}

// request builds a pipeline request, filling the environment tag from the
// flag or the configured default when needed.
func request(cmd *cobra.Command, in types.Intake, cfg types.PipelineConfig) pipeline.Request {
	if env, _ := cmd.Flags().GetString("environment"); env != "" {
		in.Environment = types.EnvironmentType(env)
	} else if strings.TrimSpace(string(in.Environment)) == "" {
		in.Environment = cfg.Environment
	}
	unverified, _ := cmd.Flags().GetBool("unverified")
	return pipeline.Request{Intake: in, Verified: !unverified}
}

func runTriage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := pipelineConfig(viper.GetViper())

	in, err := intake.LoadFile(args[0])
	if err != nil {
		return err
	}

	eng, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	result, err := eng.Run(ctx, request(cmd, in, cfg))
	if err != nil {
		return err
	}

	if record, _ := cmd.Flags().GetBool("audit"); record {
		if err := recordRuns(ctx, cfg, []types.TriageResult{result}); err != nil {
			return err
		}
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	writeResult(os.Stdout, result, cfg.LocationLabel)
	return nil
}

// batchItem is one row of batch output.
type batchItem struct {
	label  string
	in     types.Intake
	result types.TriageResult
	err    error
}

// loadBatch expands paths into one item per intake. A file that fails to load
// becomes a single failed item.
func loadBatch(paths []string) []batchItem {
	var items []batchItem
	for _, path := range paths {
		intakes, err := intake.Load(path)
		if err != nil {
			items = append(items, batchItem{label: path, err: err})
			continue
		}
		for i, in := range intakes {
			label := path
			if len(intakes) > 1 {
				label = fmt.Sprintf("%s[%d]", path, i)
			}
			items = append(items, batchItem{label: label, in: in})
		}
	}
	return items
}

// batchRequests builds requests for the items that loaded. slot[j] is the
// index in items of reqs[j].
func batchRequests(cmd *cobra.Command, items []batchItem, cfg types.PipelineConfig) (reqs []pipeline.Request, slot []int) {
	for i, it := range items {
		if it.err != nil {
			continue
		}
		reqs = append(reqs, request(cmd, it.in, cfg))
		slot = append(slot, i)
	}
	return reqs, slot
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := pipelineConfig(viper.GetViper())
	limit, _ := cmd.Flags().GetInt("concurrency")

	eng, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	items := loadBatch(args)
	reqs, slot := batchRequests(cmd, items, cfg)
	for j, br := range pipeline.RunBatch(ctx, eng.Orchestrator, reqs, limit) {
		items[slot[j]].result, items[slot[j]].err = br.Result, br.Err
	}

	var (
		failed    int
		completed []types.TriageResult
	)
	for _, it := range items {
		if it.err != nil {
			failed++
			fmt.Fprintf(os.Stdout, "%s\terror\t%v\n", it.label, it.err)
			continue
		}
		completed = append(completed, it.result)
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", it.label, it.result.Priority, it.result.Recommendation.NextStep)
	}

	if record, _ := cmd.Flags().GetBool("audit"); record && len(completed) > 0 {
		if err := recordRuns(ctx, cfg, completed); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d intake(s) failed triage", failed)
	}
	return nil
}

func recordRuns(ctx context.Context, cfg types.PipelineConfig, results []types.TriageResult) error {
	log, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		return err
	}
	defer log.Close()

	for _, r := range results {
		id, err := log.Record(ctx, r)
		if err != nil {
			return err
		}
		zap.L().Info("triage run recorded", zap.String("run_id", id), zap.Stringer("priority", r.Priority))
	}
	return nil
}

// writeResult prints a result for a field worker.
func writeResult(w io.Writer, r types.TriageResult, location string) {
	rec := r.Recommendation

	fmt.Fprintf(w, "Priority:     %s\n", r.Priority)
	env := string(rec.Environment)
	if location != "" {
		env += " (" + location + ")"
	}
	fmt.Fprintf(w, "Environment:  %s\n", env)
	if r.Guardrail.Triggered {
		fmt.Fprintf(w, "Guardrail:    %s\n", r.Guardrail.ReasonCode)
	}
	escalate := "no"
	if r.Escalate {
		escalate = "yes"
	}
	fmt.Fprintf(w, "Escalate:     %s (%s)\n", escalate, r.EscalationReason)
	fmt.Fprintf(w, "Next step:    %s\n", rec.NextStep)

	writeSection(w, "Immediate actions", rec.ImmediateActions)

	refs := make([]string, 0, len(rec.Referrals))
	for _, ref := range rec.Referrals {
		line := fmt.Sprintf("%s: %s [%s cost]", ref.Kind, ref.Description, ref.Cost)
		if ref.Disposition == types.DispositionSubstituted {
			line += fmt.Sprintf(" instead of %s, %s", ref.SubstitutedFor, ref.Reason)
		}
		refs = append(refs, line)
	}
	writeSection(w, "Referrals", refs)

	notes := make([]string, 0, len(rec.ConstraintNotes))
	for _, n := range rec.ConstraintNotes {
		notes = append(notes, fmt.Sprintf("%s: %s Fallback: %s", n.Kind, n.Reason, n.Fallback))
	}
	writeSection(w, "Not available here", notes)
	writeSection(w, "Setting", rec.EnvironmentGuidance)
	writeSection(w, "Rationale", r.Rationale)

	fmt.Fprintf(w, "\nSummary (%s):\n  %s\n", r.SummarySource, r.Summary)
}

func writeSection(w io.Writer, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, l := range lines {
		fmt.Fprintf(w, "  - %s\n", l)
	}
}
