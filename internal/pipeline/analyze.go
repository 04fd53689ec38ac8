package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/facts"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/netlist"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/policy"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/validator"
)

// Report is the lint view of a design.
type Report struct {
	Tables facts.Tables
	// Delta is the change against the previous run's tables; HasDelta is
	// false when there was no previous run.
	Delta    facts.Delta
	HasDelta bool
	Result   *policy.Result
	// PipelineErrors are cache failures and other problems that did not
	// stop the run.
	PipelineErrors []error
}

// LintOutput is the JSON document printed by the lint command.
type LintOutput struct {
	Files       []string           `json:"files"`
	Violations  []policy.Violation `json:"violations"`
	Summary     policy.Summary     `json:"summary"`
	ParseErrors []string           `json:"parse_errors,omitempty"`
}

// Output assembles the lint document for loaded.
func (r *Report) Output(loaded *Loaded) LintOutput {
	out := LintOutput{
		Files:      loaded.Files,
		Violations: r.Result.Violations,
		Summary:    r.Result.Summary,
	}
	for _, fe := range loaded.Errors {
		out.ParseErrors = append(out.ParseErrors, fe.Error())
	}
	return out
}

// Tables builds the fact tables of every module in loaded. Design-level
// diagnostics (duplicate modules) are included.
func Tables(loaded *Loaded) facts.Tables {
	d := loaded.Design
	tops := make(map[string]bool)
	for _, m := range d.Tops() {
		tops[m] = true
	}
	defined := make(map[string]bool, len(d.Order))
	for _, m := range d.Order {
		defined[m] = true
	}
	tables := facts.BuildTables(d.Flows(), tops, defined)
	for _, dg := range d.Diagnostics {
		tables.Diagnostics = append(tables.Diagnostics, diagnosticRow(dg))
	}
	for _, fe := range loaded.Errors {
		tables.Diagnostics = append(tables.Diagnostics, facts.DiagnosticRow{
			Rule:     "parse_error",
			Severity: netlist.SeverityError,
			File:     fe.File,
			Message:  fe.Error(),
		})
	}
	return tables
}

func diagnosticRow(d netlist.Diagnostic) facts.DiagnosticRow {
	return facts.DiagnosticRow{
		Rule:     d.Rule,
		Severity: d.Severity,
		Module:   d.Module,
		Signal:   d.Signal,
		File:     d.File,
		Line:     d.Line,
		Message:  d.Message,
	}
}

// Analyze builds and validates the fact tables of loaded and evaluates the
// lint policies over them.
func (p *Pipeline) Analyze(ctx context.Context, loaded *Loaded) (*Report, error) {
	report := &Report{}
	recordPipelineErr := func(err error) {
		report.PipelineErrors = append(report.PipelineErrors, err)
		p.Log.Warn("pipeline", zap.Error(err))
	}

	stepStart := time.Now()
	report.Tables = Tables(loaded)
	p.timing.RecordStage("facts", stepStart, "")

	stepStart = time.Now()
	factsValidator, err := validator.NewFactsValidator()
	if err != nil {
		return nil, fmt.Errorf("init facts validator: %w", err)
	}
	if err := factsValidator.Validate(report.Tables); err != nil {
		return nil, fmt.Errorf("fact tables invalid: %w", err)
	}
	input := policy.NewInput(report.Tables, p.Config.Lint.Rules)
	inputValidator, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("init input validator: %w", err)
	}
	if err := inputValidator.Validate(input); err != nil {
		return nil, fmt.Errorf("policy input invalid: %w", err)
	}
	p.timing.RecordStage("validate", stepStart, "")

	if p.Config.CacheEnabled() {
		dir := p.Config.CacheDir(p.Root)
		prev, ok, err := loadFactTablesCache(dir)
		if err != nil {
			recordPipelineErr(fmt.Errorf("fact tables cache load failed: %w", err))
		} else if ok {
			report.Delta = facts.ComputeDelta(prev, report.Tables)
			report.HasDelta = true
		}
		if err := saveFactTablesCache(dir, report.Tables); err != nil {
			recordPipelineErr(fmt.Errorf("fact tables cache save failed: %w", err))
		}
	}

	stepStart = time.Now()
	engine, err := policy.New(p.Config.Lint.PolicyDir)
	if err != nil {
		return nil, fmt.Errorf("initialize policy engine: %w", err)
	}
	result, err := engine.Evaluate(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}
	report.Result = result
	p.timing.RecordStage("policy", stepStart, "")

	p.Log.Info("lint finished",
		zap.Int("errors", result.Summary.Errors),
		zap.Int("warnings", result.Summary.Warnings),
		zap.Int("info", result.Summary.Info))
	return report, nil
}
