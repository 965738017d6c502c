// Package analysis holds the shared data model for the analysis pipeline
// (DataContext, GeneratedProgram, Artifact, ExecutionResult, AnalysisResult)
// plus the Result Assembler and the Analysis Orchestrator that drives the
// pipeline end to end.
package analysis

import "time"

// ColumnType is the semantic type tag assigned to a DataContext column.
type ColumnType string

const (
	ColumnNumeric     ColumnType = "numeric"
	ColumnTemporal    ColumnType = "temporal"
	ColumnCategorical ColumnType = "categorical"
	ColumnOther       ColumnType = "other"
)

// Column describes one column of the input table.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// DataContext is the immutable description of the input table handed to
// the LLM when composing a generation prompt. It never carries the full
// dataset — only enough shape, typing, and preview information for the
// model to write code against it.
type DataContext struct {
	Columns        []Column           `json:"columns"`
	Rows           int                `json:"rows"`
	Preview        string             `json:"preview,omitempty"`
	NumericSummary map[string]Summary `json:"numericSummary,omitempty"`
}

// Summary holds basic descriptive statistics for one numeric column.
type Summary struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
}

// GeneratedProgram is the LLM's source output, plus a fingerprint used for
// log correlation and optional caching.
type GeneratedProgram struct {
	Source      string `json:"source"`
	Fingerprint string `json:"fingerprint"`
}

// ArtifactKind tags the variant held by an Artifact.
type ArtifactKind string

const (
	ArtifactImage  ArtifactKind = "image"
	ArtifactHTML   ArtifactKind = "html"
	ArtifactJSON   ArtifactKind = "json"
	ArtifactCSV    ArtifactKind = "csv"
	ArtifactText   ArtifactKind = "text"
	ArtifactBinary ArtifactKind = "binary"
)

// Artifact is a single file collected from the sandbox's outputs
// directory, classified by extension (falling back to content sniffing
// for unknown extensions).
type Artifact struct {
	Kind  ArtifactKind `json:"kind"`
	Text  string       `json:"text,omitempty"` // Html, Csv, Text content
	Bytes []byte       `json:"-"`              // Image, Binary content
	Mime  string       `json:"mime,omitempty"` // Image mime type
	JSON  any          `json:"json,omitempty"` // decoded Json tree
}

// ExecutionResult is the outcome of one sandbox run.
type ExecutionResult struct {
	Success     bool                `json:"success"`
	Stdout      string              `json:"stdout"`
	Stderr      string              `json:"stderr"`
	Outputs     map[string]Artifact `json:"-"`
	Elapsed     time.Duration       `json:"elapsed"`
	ExitCode    int                 `json:"exitCode"`
	Error       string              `json:"error,omitempty"`
	ExecutionID string              `json:"executionId"`
}

// Visualization is a rendered chart/plot artifact surfaced to the client.
type Visualization struct {
	Type   string `json:"type"`   // "image" or "html"
	Format string `json:"format"` // "png", "jpg", "html"
	Data   string `json:"data"`   // base64 for images, raw markup for html
	Title  string `json:"title"`
}

// DataOutput is a passthrough tabular/text artifact.
type DataOutput struct {
	Type    string `json:"type"` // "csv" or "text"
	Content string `json:"content"`
}

// AnalysisResult is the structured outcome returned to callers, derived
// from an ExecutionResult by the Result Assembler.
type AnalysisResult struct {
	Success        bool                  `json:"success"`
	Query          string                `json:"query"`
	Insights       string                `json:"insights"`
	Visualizations []Visualization       `json:"visualizations"`
	Metrics        map[string]any        `json:"metrics"`
	DataOutputs    map[string]DataOutput `json:"dataOutputs"`
	Elapsed        time.Duration         `json:"elapsed"`
	Error          string                `json:"error,omitempty"`
	RawOutput      string                `json:"rawOutput,omitempty"`
}
