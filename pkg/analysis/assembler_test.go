package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAssemble_FailureShortCircuits(t *testing.T) {
	result := Assemble("q", ExecutionResult{Success: false, Error: "boom"}, "should not appear")
	assert.False(t, result.Success)
	assert.Equal(t, "boom", result.Error)
	assert.Empty(t, result.Insights)
	assert.Nil(t, result.Visualizations)
}

func TestAssemble_ExtractsVisualizationsMetricsAndDataOutputs(t *testing.T) {
	outputs := map[string]Artifact{
		"plot_age_distribution.png": {Kind: ArtifactImage, Bytes: []byte{0x1, 0x2}},
		"report.html":               {Kind: ArtifactHTML, Text: "<h1>hi</h1>"},
		"metrics.json":              {Kind: ArtifactJSON, JSON: map[string]any{"mean": 4.2}},
		"extra.json":                {Kind: ArtifactJSON, JSON: map[string]any{"x": 1.0}},
		"results.csv":               {Kind: ArtifactCSV, Text: "a,b\n1,2\n"},
		"insights.txt":              {Kind: ArtifactText, Text: "three findings"},
		"notes.txt":                 {Kind: ArtifactText, Text: "a note"},
	}
	exec := ExecutionResult{Success: true, Elapsed: 1500 * time.Millisecond, Outputs: outputs}

	result := Assemble("q", exec, "three findings")

	assert.True(t, result.Success)
	assert.Equal(t, "three findings", result.Insights)

	assert.Len(t, result.Visualizations, 2)

	assert.Equal(t, 4.2, result.Metrics["mean"])
	assert.NotNil(t, result.Metrics["extra"])

	assert.Len(t, result.DataOutputs, 2)
	assert.Equal(t, "csv", result.DataOutputs["results.csv"].Type)
	assert.Equal(t, "text", result.DataOutputs["notes.txt"].Type)
	_, hasInsights := result.DataOutputs["insights.txt"]
	assert.False(t, hasInsights)
}

func TestFilenameToTitle(t *testing.T) {
	assert.Equal(t, "Age Distribution", filenameToTitle("plot_age_distribution.png"))
	assert.Equal(t, "Revenue Trend", filenameToTitle("chart_revenue-trend.html"))
}

func TestFormatValue_ScientificNotationForExtremes(t *testing.T) {
	assert.Contains(t, formatValue(0.001), "e")
	assert.Contains(t, formatValue(15000.0), "e")
	assert.Equal(t, "5.00", formatValue(5.0))
}

func TestFormatValue_TruncatesLongLists(t *testing.T) {
	list := []any{1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0}
	got := formatValue(list)
	assert.Contains(t, got, "+2 more")
}

func TestFormatValue_RendersNestedMap(t *testing.T) {
	got := formatValue(map[string]any{"mean": 4.2, "count": 10.0})
	assert.Equal(t, "{count: 10.00, mean: 4.20}", got)
}

func TestFormatForChat_FlattensNestedMapMetric(t *testing.T) {
	result := AnalysisResult{
		Success: true,
		Metrics: map[string]any{
			"age": map[string]any{"mean": 30.5, "max": 65.0},
		},
	}
	out := FormatForChat(result)
	assert.Contains(t, out, "- **age**:\n")
	assert.Contains(t, out, "  - max: 65.00\n")
	assert.Contains(t, out, "  - mean: 30.50\n")
}

func TestFormatForChat_FailurePath(t *testing.T) {
	result := AnalysisResult{Success: false, Error: "container timeout"}
	out := FormatForChat(result)
	assert.Contains(t, out, "Analysis Failed")
	assert.Contains(t, out, "container timeout")
}
