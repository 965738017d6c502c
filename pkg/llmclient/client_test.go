package llmclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandboxrunner/sandboxrunner/pkg/analysis"
)

func TestNew_NoAPIKeyReturnsNilClient(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.False(t, c.IsConfigured())
}

func TestExtractCode(t *testing.T) {
	cases := map[string]string{
		"```python\nprint(1)\n```": "print(1)",
		"```\nprint(1)\n```":       "print(1)",
		"print(1)":                 "print(1)",
		"  print(1)  ":             "print(1)",
	}
	for in, want := range cases {
		assert.Equal(t, want, extractCode(in))
	}
}

func TestSummarizeResult_PrefersInsightsFile(t *testing.T) {
	var c *Client
	outputs := map[string]analysis.Artifact{
		"insights.txt": {Kind: analysis.ArtifactText, Text: "three key findings"},
	}
	got := c.SummarizeResult(nil, "query", outputs, analysis.ExecutionResult{Success: true})
	assert.Equal(t, "three key findings", got)
}

func TestSummarizeResult_FallsBackWhenUnconfigured(t *testing.T) {
	var c *Client
	got := c.SummarizeResult(nil, "query", map[string]analysis.Artifact{}, analysis.ExecutionResult{Success: true})
	assert.Equal(t, "Could not generate insights from the analysis results.", got)
}

func TestBuildGenerationPrompt_IncludesColumnsAndHint(t *testing.T) {
	dc := analysis.DataContext{
		Columns: []analysis.Column{{Name: "age", Type: analysis.ColumnNumeric}},
		Rows:    10,
	}
	prompt := buildGenerationPrompt("find outliers", dc, "outlier detection")
	assert.Contains(t, prompt, "find outliers")
	assert.Contains(t, prompt, "age")
	assert.Contains(t, prompt, "outlier detection")
	assert.Contains(t, prompt, "10 rows, 1 columns")
}

func TestBuildSummarizationPrompt_IncludesStatusAndTail(t *testing.T) {
	exec := analysis.ExecutionResult{Success: true, Stdout: "done", Elapsed: 2 * time.Second}
	prompt := buildSummarizationPrompt("query", map[string]analysis.Artifact{}, exec)
	assert.Contains(t, prompt, "Success")
	assert.Contains(t, prompt, "done")
	assert.Contains(t, prompt, "No metrics generated")
}
