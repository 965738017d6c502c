package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sandboxrunner/sandboxrunner/pkg/apperrors"
	"github.com/sandboxrunner/sandboxrunner/pkg/redact"
	"github.com/sandboxrunner/sandboxrunner/pkg/screener"
	"github.com/sandboxrunner/sandboxrunner/pkg/workspace"
)

// Generator is the capability the orchestrator needs from the LLM client:
// compose a program for a query, and (optionally) summarize a finished
// run's outputs into natural-language insights.
type Generator interface {
	GenerateProgram(ctx context.Context, query string, dc DataContext, hint string) (GeneratedProgram, error)
	SummarizeResult(ctx context.Context, query string, outputs map[string]Artifact, exec ExecutionResult) string
}

// SandboxRunner is the capability the orchestrator needs from the
// container driver.
type SandboxRunner interface {
	Execute(ctx context.Context, ws *workspace.Workspace, executionID string) (ExecutionResult, error)
}

// Orchestrator drives one query end to end: build the data context,
// generate a candidate program, screen it, execute it in the sandbox,
// summarize the result, and assemble the structured response.
type Orchestrator struct {
	Generator    Generator
	Sandbox      SandboxRunner
	WorkspaceDir string

	// ExecutionTimeout bounds each sandbox run; zero means the caller's
	// context deadline (if any) governs instead.
	ExecutionTimeout time.Duration
}

// NewOrchestrator wires a Generator and SandboxRunner together.
// workspaceDir is the parent directory under which per-execution scratch
// trees are created (see pkg/workspace).
func NewOrchestrator(gen Generator, sb SandboxRunner, workspaceDir string) *Orchestrator {
	return &Orchestrator{Generator: gen, Sandbox: sb, WorkspaceDir: workspaceDir}
}

// Analyze runs the full pipeline for a single natural-language query
// against data, with an optional analysis-type hint steering generation.
// A program rejected by the static screener never reaches the sandbox;
// its violations are folded into the returned error without incurring a
// container launch.
func (o *Orchestrator) Analyze(ctx context.Context, query string, data any, hint string) (AnalysisResult, error) {
	executionID := uuid.New().String()

	dc := BuildDataContext(data)

	program, err := o.Generator.GenerateProgram(ctx, query, dc, hint)
	if err != nil {
		return AnalysisResult{}, apperrors.New(apperrors.KindGeneration, executionID, err)
	}

	report := screener.Validate(program.Source)
	if !report.Safe {
		slog.Warn("generated program rejected by screener",
			"executionId", executionID, "riskLevel", report.RiskLevel, "violations", report.Violations)
		return AnalysisResult{}, apperrors.New(apperrors.KindValidation, executionID,
			fmt.Errorf("unsafe generated program (risk=%s): %v", report.RiskLevel, report.Violations))
	}

	ws, err := workspace.Prepare(o.WorkspaceDir, program.Source, data)
	if err != nil {
		return AnalysisResult{}, apperrors.New(apperrors.KindSandboxInfra, executionID, err)
	}
	defer func() {
		if err := ws.Destroy(); err != nil {
			slog.Warn("failed to destroy workspace", "executionId", executionID, "error", err)
		}
	}()

	execCtx := ctx
	if o.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, o.ExecutionTimeout)
		defer cancel()
	}

	exec, err := o.Sandbox.Execute(execCtx, ws, executionID)
	exec.Stdout = redact.Text(exec.Stdout)
	exec.Stderr = redact.Text(exec.Stderr)
	if err != nil {
		return Assemble(query, exec, ""), err
	}

	outputs, err := ws.Collect()
	if err != nil {
		slog.Warn("failed to collect sandbox outputs", "executionId", executionID, "error", err)
		outputs = map[string]Artifact{}
	}
	exec.Outputs = outputs

	var insights string
	if exec.Success {
		insights = redact.Text(o.Generator.SummarizeResult(ctx, query, outputs, exec))
	}

	return Assemble(query, exec, insights), nil
}

// batchItem pairs an index with its outcome so concurrent completions can
// be written back into the caller's requested order.
type batchItem struct {
	index  int
	result AnalysisResult
}

// BatchAnalyze runs queries concurrently, bounded by maxConcurrent, and
// returns results in the same order as the input queries regardless of
// completion order. A single query's failure is isolated into its own
// slot (Success: false, Error populated) rather than aborting the rest
// of the batch.
func (o *Orchestrator) BatchAnalyze(ctx context.Context, queries []string, data any, maxConcurrent int) []AnalysisResult {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	results := make([]AnalysisResult, len(queries))

	sem := make(chan struct{}, maxConcurrent)
	items := make(chan batchItem, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := o.Analyze(ctx, q, data, "")
			if err != nil {
				result = AnalysisResult{Success: false, Query: q, Error: err.Error()}
			}
			items <- batchItem{index: i, result: result}
		}(i, q)
	}

	go func() {
		wg.Wait()
		close(items)
	}()

	for item := range items {
		results[item.index] = item.result
	}

	return results
}

// BuildDataContext derives a DataContext from an arbitrary JSON-shaped
// input value by inspecting it as a slice of row maps. It never holds
// onto the full dataset: only column names/types, a row count, and a
// short preview survive into the returned context.
func BuildDataContext(data any) DataContext {
	rows, ok := data.([]map[string]any)
	if !ok || len(rows) == 0 {
		return DataContext{}
	}

	columnOrder := make([]string, 0)
	seen := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				columnOrder = append(columnOrder, k)
			}
		}
	}

	columns := make([]Column, 0, len(columnOrder))
	for _, name := range columnOrder {
		columns = append(columns, Column{Name: name, Type: inferColumnType(rows, name)})
	}

	preview := previewRows(rows, 5)

	return DataContext{
		Columns:        columns,
		Rows:           len(rows),
		Preview:        preview,
		NumericSummary: summarizeNumericColumns(rows, columns),
	}
}

// summarizeNumericColumns computes min/max/mean/stddev for every column
// inferred as numeric, so the generation prompt can ground the model in
// actual value ranges rather than just column names and types.
func summarizeNumericColumns(rows []map[string]any, columns []Column) map[string]Summary {
	summaries := make(map[string]Summary)
	for _, col := range columns {
		if col.Type != ColumnNumeric {
			continue
		}
		values := make([]float64, 0, len(rows))
		for _, row := range rows {
			if f, ok := numericValue(row[col.Name]); ok {
				values = append(values, f)
			}
		}
		if len(values) == 0 {
			continue
		}
		summaries[col.Name] = summarizeFloats(values)
	}
	if len(summaries) == 0 {
		return nil
	}
	return summaries
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func summarizeFloats(values []float64) Summary {
	min, max, sum := values[0], values[0], 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))

	return Summary{Min: min, Max: max, Mean: mean, StdDev: math.Sqrt(variance)}
}

func inferColumnType(rows []map[string]any, name string) ColumnType {
	for _, row := range rows {
		v, ok := row[name]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case float64, int, int64:
			return ColumnNumeric
		case string:
			return ColumnCategorical
		default:
			return ColumnOther
		}
	}
	return ColumnOther
}

func previewRows(rows []map[string]any, n int) string {
	if len(rows) < n {
		n = len(rows)
	}
	var out string
	for i := 0; i < n; i++ {
		out += fmt.Sprintf("%v\n", rows[i])
	}
	return out
}
