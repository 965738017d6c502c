package llmclient

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sandboxrunner/sandboxrunner/pkg/analysis"
)

// buildGenerationPrompt mirrors the reference code generator's
// _build_prompt: user query, column/type listing, shape, optional
// preview, output filename conventions, and an optional analysis-type
// hint, ending in an instruction to emit only source.
func buildGenerationPrompt(query string, dc analysis.DataContext, hint string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a Python data analysis code generator. Generate a complete, "+
		"production-ready Python script that performs the requested analysis.\n\n")
	fmt.Fprintf(&b, "# User Query\n%s\n\n", query)
	fmt.Fprintf(&b, "# Available Data Context\n")
	fmt.Fprintf(&b, "The data is available as a pandas DataFrame loaded from '/sandbox/data/data.json'.\n\n")
	fmt.Fprintf(&b, "**Shape**: %d rows, %d columns\n\n", dc.Rows, len(dc.Columns))
	fmt.Fprintf(&b, "**Columns and Types**:\n%s\n\n", formatColumns(dc.Columns))

	if dc.Preview != "" {
		fmt.Fprintf(&b, "**Sample Data** (first few rows):\n```\n%s\n```\n\n", dc.Preview)
	}

	if len(dc.NumericSummary) > 0 {
		fmt.Fprintf(&b, "**Numeric Column Ranges**:\n%s\n\n", formatNumericSummary(dc.NumericSummary))
	}

	b.WriteString("# Code Requirements\n\n")
	b.WriteString("1. Load the DataFrame from /sandbox/data/data.json\n")
	b.WriteString("2. Perform the analysis requested in the query\n")
	b.WriteString("3. Save results to /sandbox/outputs/:\n")
	b.WriteString("   - Visualizations as PNG or HTML files (plot_*.png or plot_*.html)\n")
	b.WriteString("   - Metrics/statistics as metrics.json\n")
	b.WriteString("   - Insights as insights.txt\n")
	b.WriteString("   - Processed data as results.csv, if applicable\n")
	b.WriteString("4. Include try/except blocks for robustness\n")
	b.WriteString("5. Use pandas, numpy, matplotlib, seaborn, plotly, scikit-learn, scipy, statsmodels as needed\n\n")

	if hint != "" {
		fmt.Fprintf(&b, "# Analysis Type Hint\n%s\n\n", hint)
	}

	b.WriteString("Generate ONLY the Python code, no explanations before or after. " +
		"The code should be complete and ready to execute.\n")

	return b.String()
}

func formatColumns(columns []analysis.Column) string {
	if len(columns) == 0 {
		return "No column information available"
	}
	var lines []string
	for _, col := range columns {
		lines = append(lines, fmt.Sprintf("  - `%s`: %s", col.Name, col.Type))
	}
	return strings.Join(lines, "\n")
}

func formatNumericSummary(summary map[string]analysis.Summary) string {
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		s := summary[name]
		lines = append(lines, fmt.Sprintf("  - `%s`: min=%.2f, max=%.2f, mean=%.2f, stddev=%.2f",
			name, s.Min, s.Max, s.Mean, s.StdDev))
	}
	return strings.Join(lines, "\n")
}

// buildSummarizationPrompt mirrors the reference's generate_insights
// fallback prompt: execution status, metrics JSON, truncated console
// tail, and the list of produced filenames.
func buildSummarizationPrompt(query string, outputs map[string]analysis.Artifact, exec analysis.ExecutionResult) string {
	var b strings.Builder

	status := "Success"
	if !exec.Success {
		status = "Failed"
	}

	var metricsText string
	if art, ok := outputs["metrics.json"]; ok && art.JSON != nil {
		if encoded, err := json.MarshalIndent(art.JSON, "", "  "); err == nil {
			metricsText = string(encoded)
		}
	}
	if metricsText == "" {
		metricsText = "No metrics generated"
	}

	var names []string
	for name := range outputs {
		names = append(names, name)
	}

	tail := exec.Stdout
	if len(tail) > 1000 {
		tail = tail[len(tail)-1000:]
	}

	fmt.Fprintf(&b, "You are a data analyst providing insights to a user.\n\n")
	fmt.Fprintf(&b, "# User Query\n%s\n\n", query)
	fmt.Fprintf(&b, "# Analysis Results\n\n")
	fmt.Fprintf(&b, "**Execution Status**: %s\n", status)
	fmt.Fprintf(&b, "**Execution Time**: %.2f seconds\n\n", exec.Elapsed.Seconds())
	fmt.Fprintf(&b, "**Generated Outputs**: %s\n\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "**Metrics**:\n```json\n%s\n```\n\n", metricsText)
	fmt.Fprintf(&b, "**Console Output**:\n```\n%s\n```\n\n", tail)
	b.WriteString("# Task\n\n")
	b.WriteString("Provide a clear, concise summary of the analysis results in 3-5 bullet points. Focus on:\n")
	b.WriteString("1. What was analyzed\n2. Key findings and metrics\n3. Notable patterns or insights\n")
	b.WriteString("4. Recommendations or next steps (if applicable)\n\n")
	b.WriteString("Be specific and reference actual numbers from the metrics.\n")

	return b.String()
}
