// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline sequences the triage stages as a fixed-order state
// machine. It holds no clinical rules of its own: it validates, calls the
// rule packages in order, carries their outputs between states and assembles
// the TriageResult.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/field-triage/internal/environment"
	"github.com/pdiddy/field-triage/internal/guardrail"
	"github.com/pdiddy/field-triage/internal/logging"
	"github.com/pdiddy/field-triage/internal/priority"
	"github.com/pdiddy/field-triage/internal/recommend"
	"github.com/pdiddy/field-triage/internal/signals"
	"github.com/pdiddy/field-triage/internal/summarize"
	"github.com/pdiddy/field-triage/pkg/types"
)

const defaultSummaryTimeout = 20 * time.Second

// ContextResolver fetches patient history for a verified intake.
type ContextResolver interface {
	Resolve(ctx context.Context, in types.Intake) (*types.PatientContext, error)
}

// Config assembles an Orchestrator. Zero-valued tables are replaced by the
// defaults built from Triage.
type Config struct {
	Guardrail      guardrail.Table
	Priority       priority.Table
	Recommendation recommend.Table
	Registry       *environment.Registry

	// Resolver is optional; without it only Request.Context is used.
	Resolver ContextResolver

	// Summarizer is optional; without it the static summary is used.
	Summarizer     summarize.Summarizer
	SummaryTimeout time.Duration

	Triage types.TriageConfig
	Logger *zap.Logger
}

// Orchestrator runs triage requests. It is immutable after New and safe for
// concurrent use; each Run owns its own state.
type Orchestrator struct {
	cfg Config
	log *zap.Logger
}

// Request is one intake handed to the pipeline.
type Request struct {
	Intake types.Intake

	// Verified is the external identity verification outcome.
	Verified bool

	// Context, when set, is used instead of consulting the resolver.
	Context *types.PatientContext

	// Profile, when set, overrides the intake's environment tag.
	Profile *environment.Profile
}

// New validates every rule table and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Guardrail.Version == "" {
		cfg.Guardrail = guardrail.DefaultTable(cfg.Triage)
	}
	if cfg.Priority.Version == "" {
		cfg.Priority = priority.DefaultTable(cfg.Triage)
	}
	if cfg.Recommendation.Version == "" {
		cfg.Recommendation = recommend.DefaultTable()
	}
	if cfg.Registry == nil {
		reg, err := environment.DefaultRegistry()
		if err != nil {
			return nil, err
		}
		cfg.Registry = reg
	}
	if cfg.SummaryTimeout <= 0 {
		cfg.SummaryTimeout = defaultSummaryTimeout
	}

	if err := cfg.Guardrail.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Priority.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Recommendation.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{cfg: cfg, log: logging.OrNop(cfg.Logger)}, nil
}

// Registry returns the environment profiles the orchestrator resolves tags against.
func (o *Orchestrator) Registry() *environment.Registry {
	return o.cfg.Registry
}

// run carries the outputs of each stage through a single request.
type run struct {
	req   Request
	state State
	prev  State

	verified  bool
	checked   bool
	pctx      *types.PatientContext
	sig       *signals.Signals
	profile   *environment.Profile
	guard     *types.GuardrailResult
	priority  *types.Priority
	base      *types.Recommendation
	adapted   *types.Recommendation
	result    *types.TriageResult
	rationale []string
}

// Run drives one request from verifying to finalized. Validation, unknown
// environment and rule table errors are fatal; patient store and summarizer
// failures degrade and are recorded in the rationale.
func (o *Orchestrator) Run(ctx context.Context, req Request) (types.TriageResult, error) {
	r := &run{req: req, state: StateVerifying}
	for {
		next, err := o.step(ctx, r)
		if err != nil {
			return types.TriageResult{}, err
		}
		if r.state == StateFinalized {
			return *r.result, nil
		}
		o.log.Debug("triage state transition",
			zap.Stringer("from", r.state), zap.Stringer("to", next))
		r.prev, r.state = r.state, next
	}
}

// step runs the handler for r.state and returns the next state.
func (o *Orchestrator) step(ctx context.Context, r *run) (State, error) {
	switch r.state {
	case StateVerifying:
		return o.verify(r)
	case StateContextualizing:
		return o.contextualize(ctx, r)
	case StatePreparing:
		return o.prepare(r)
	case StateGuardrailCheck:
		return o.checkGuardrail(r)
	case StatePriorityAssignment:
		return o.assignPriority(r)
	case StateRecommending:
		return o.recommend(r)
	case StateConstraining:
		return o.constrain(r)
	case StateSummarizing:
		return o.summarize(ctx, r)
	case StateFinalized:
		return StateFinalized, o.finalize(r)
	default:
		return 0, fmt.Errorf("unknown pipeline state %s", r.state)
	}
}

func (r *run) require(present bool, missing string) error {
	if present {
		return nil
	}
	return &StateError{From: r.prev, To: r.state, Missing: missing}
}

func (o *Orchestrator) verify(r *run) (State, error) {
	if err := r.req.Intake.Validate(); err != nil {
		return 0, fmt.Errorf("%s: %w", StateVerifying, err)
	}
	r.checked = true
	r.verified = r.req.Verified
	return StateContextualizing, nil
}

func (o *Orchestrator) contextualize(ctx context.Context, r *run) (State, error) {
	if err := r.require(r.checked, "validated intake"); err != nil {
		return 0, err
	}

	switch {
	case !r.verified:
		r.rationale = append(r.rationale, "Patient identity not verified; stored history was not consulted.")
	case r.req.Context != nil:
		pctx := *r.req.Context
		r.pctx = &pctx
	case o.cfg.Resolver == nil:
		r.rationale = append(r.rationale, "No patient record store configured; proceeding without history.")
	default:
		pctx, err := o.cfg.Resolver.Resolve(ctx, r.req.Intake)
		if err != nil {
			o.log.Warn("patient context unavailable, continuing without history", zap.Error(err))
			r.rationale = append(r.rationale, "Patient record store unavailable; proceeding without history.")
			break
		}
		r.pctx = pctx
	}
	return StatePreparing, nil
}

func (o *Orchestrator) prepare(r *run) (State, error) {
	if err := r.require(r.checked, "validated intake"); err != nil {
		return 0, err
	}

	if r.req.Profile != nil {
		p := *r.req.Profile
		r.profile = &p
	} else {
		p, err := o.cfg.Registry.Lookup(r.req.Intake.Environment)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", StatePreparing, err)
		}
		r.profile = &p
	}

	sig := signals.From(r.req.Intake, r.pctx)
	r.sig = &sig
	return StateGuardrailCheck, nil
}

func (o *Orchestrator) checkGuardrail(r *run) (State, error) {
	if err := r.require(r.sig != nil, "prepared signals"); err != nil {
		return 0, err
	}

	g := guardrail.Screen(o.cfg.Guardrail, *r.sig)
	r.guard = &g
	if !g.Triggered {
		return StatePriorityAssignment, nil
	}

	o.log.Info("guardrail triggered", zap.String("reason_code", g.ReasonCode))
	forced := *g.ForcedPriority
	r.priority = &forced
	r.rationale = append(r.rationale, g.Reasons...)
	r.rationale = append(r.rationale, "Safety guardrail override applied.")
	return StateRecommending, nil
}

func (o *Orchestrator) assignPriority(r *run) (State, error) {
	if err := r.require(r.guard != nil, "guardrail result"); err != nil {
		return 0, err
	}
	if err := r.require(!r.guard.Triggered, "untriggered guardrail"); err != nil {
		return 0, err
	}

	a, err := priority.Assign(o.cfg.Priority, *r.sig)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", StatePriorityAssignment, err)
	}
	r.priority = &a.Priority
	r.rationale = append(r.rationale, a.Rationale...)
	return StateRecommending, nil
}

func (o *Orchestrator) recommend(r *run) (State, error) {
	if err := r.require(r.priority != nil, "priority"); err != nil {
		return 0, err
	}

	rec, err := recommend.Build(o.cfg.Recommendation, *r.priority, *r.sig)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", StateRecommending, err)
	}
	r.base = &rec
	return StateConstraining, nil
}

func (o *Orchestrator) constrain(r *run) (State, error) {
	if err := r.require(r.base != nil, "base recommendation"); err != nil {
		return 0, err
	}
	if err := r.require(r.profile != nil, "environment profile"); err != nil {
		return 0, err
	}

	rec, err := environment.Adapt(*r.base, *r.profile)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", StateConstraining, err)
	}
	if rec.Priority != *r.priority {
		return 0, &types.InconsistentRuleTableError{
			Table: r.profile.TableName(), Version: r.profile.Version,
			Detail: fmt.Sprintf("environment changed priority from %s to %s", *r.priority, rec.Priority),
		}
	}
	if note := r.profile.AdaptationNote; note != "" {
		r.rationale = append(r.rationale, note)
	}
	r.adapted = &rec
	return StateSummarizing, nil
}

func (o *Orchestrator) summarize(ctx context.Context, r *run) (State, error) {
	if err := r.require(r.adapted != nil, "constrained recommendation"); err != nil {
		return 0, err
	}

	result := types.TriageResult{
		Priority:           *r.priority,
		Recommendation:     *r.adapted,
		Guardrail:          *r.guard,
		PatientVerified:    r.verified,
		PatientRecordFound: r.pctx != nil && r.pctx.RecordFound,
		Rationale:          append([]string(nil), r.rationale...),
		RuleVersions: types.RuleVersions{
			Guardrail:      o.cfg.Guardrail.Version,
			Recommendation: o.cfg.Recommendation.Version,
			Environment:    r.profile.RuleVersion(),
		},
	}
	if !r.guard.Triggered {
		result.RuleVersions.Priority = o.cfg.Priority.Version
	}
	result.Escalate, result.EscalationReason = escalation(result.Priority, o.cfg.Triage.DisableEscalation)

	var degraded bool
	result.Summary, result.SummarySource, degraded = o.summaryFor(ctx, result)
	if degraded {
		result.Rationale = append(result.Rationale, "Summarization backend unavailable; static summary used.")
	}
	r.result = &result
	return StateFinalized, nil
}

// escalation decides whether richer model-based reasoning should follow. It
// uses the same priority order as the guardrail override.
func escalation(p types.Priority, disabled bool) (bool, string) {
	switch {
	case !p.AtLeast(types.PriorityUrgent):
		return false, fmt.Sprintf("Priority %s; the deterministic plan is sufficient.", p)
	case disabled:
		return false, fmt.Sprintf("Priority %s would escalate, but escalation is disabled by configuration.", p)
	default:
		return true, fmt.Sprintf("Priority %s requires richer model-based review.", p)
	}
}

// summaryFor calls the configured summarizer within SummaryTimeout and falls
// back to the static renderer on any failure, reporting that it did.
func (o *Orchestrator) summaryFor(ctx context.Context, result types.TriageResult) (text, source string, degraded bool) {
	if o.cfg.Summarizer == nil {
		return summarize.Render(result), types.SummarySourceStatic, false
	}

	sctx, cancel := context.WithTimeout(ctx, o.cfg.SummaryTimeout)
	defer cancel()

	text, err := o.cfg.Summarizer.Summarize(sctx, result)
	if err != nil || text == "" {
		o.log.Warn("summarizer failed, using static summary",
			zap.String("backend", o.cfg.Summarizer.Name()), zap.Error(err))
		return summarize.Render(result), types.SummarySourceStatic, true
	}
	return text, o.cfg.Summarizer.Name(), false
}

func (o *Orchestrator) finalize(r *run) error {
	if err := r.require(r.result != nil, "triage result"); err != nil {
		return err
	}
	res := r.result
	if res.Summary == "" {
		return r.require(false, "summary")
	}
	if res.Recommendation.Priority != res.Priority {
		return &types.InconsistentRuleTableError{
			Table: recommend.TableName, Version: o.cfg.Recommendation.Version,
			Detail: "recommendation priority differs from result priority",
		}
	}
	return res.Recommendation.CheckConsistency(r.profile.TableName(), r.profile.Version)
}
