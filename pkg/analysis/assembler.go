package analysis

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

// Assemble turns one sandbox ExecutionResult plus its derived insight text
// into the structured AnalysisResult returned to callers. A failed
// execution short-circuits: no attempt is made to interpret partial
// outputs from a program that did not finish cleanly.
func Assemble(query string, exec ExecutionResult, insights string) AnalysisResult {
	result := AnalysisResult{
		Success:   exec.Success,
		Query:     query,
		Elapsed:   exec.Elapsed,
		Error:     exec.Error,
		RawOutput: exec.Stdout,
	}

	if !exec.Success {
		return result
	}

	result.Insights = insights
	result.Visualizations = extractVisualizations(exec.Outputs)
	result.Metrics = extractMetrics(exec.Outputs)
	result.DataOutputs = extractDataOutputs(exec.Outputs)

	return result
}

func extractVisualizations(outputs map[string]Artifact) []Visualization {
	var viz []Visualization
	for name, art := range outputs {
		switch art.Kind {
		case ArtifactImage:
			viz = append(viz, Visualization{
				Type:   "image",
				Format: imageFormat(name),
				Data:   base64.StdEncoding.EncodeToString(art.Bytes),
				Title:  filenameToTitle(name),
			})
		case ArtifactHTML:
			viz = append(viz, Visualization{
				Type:   "html",
				Format: "html",
				Data:   art.Text,
				Title:  filenameToTitle(name),
			})
		}
	}
	sort.Slice(viz, func(i, j int) bool { return viz[i].Title < viz[j].Title })
	return viz
}

func imageFormat(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "jpg"
	default:
		return "png"
	}
}

// extractMetrics folds metrics.json (if present) plus any other *.json
// artifact under its filename stem, matching the reference's convention
// of a primary metrics file and optional supplementary JSON outputs.
func extractMetrics(outputs map[string]Artifact) map[string]any {
	metrics := make(map[string]any)

	if art, ok := outputs["metrics.json"]; ok && art.JSON != nil {
		if m, ok := art.JSON.(map[string]any); ok {
			for k, v := range m {
				metrics[k] = v
			}
		} else {
			metrics["metrics.json"] = art.JSON
		}
	}

	for name, art := range outputs {
		if name == "metrics.json" || art.Kind != ArtifactJSON {
			continue
		}
		stem := strings.TrimSuffix(name, ".json")
		metrics[stem] = art.JSON
	}

	if len(metrics) == 0 {
		return nil
	}
	return metrics
}

func extractDataOutputs(outputs map[string]Artifact) map[string]DataOutput {
	results := make(map[string]DataOutput)
	for name, art := range outputs {
		switch {
		case art.Kind == ArtifactCSV:
			results[name] = DataOutput{Type: "csv", Content: art.Text}
		case art.Kind == ArtifactText && name != "insights.txt":
			results[name] = DataOutput{Type: "text", Content: art.Text}
		}
	}
	if len(results) == 0 {
		return nil
	}
	return results
}

var titlePrefixes = []string{"plot_", "chart_", "fig_", "graph_"}

func filenameToTitle(name string) string {
	stem := name
	if idx := strings.LastIndex(stem, "."); idx >= 0 {
		stem = stem[:idx]
	}
	for _, prefix := range titlePrefixes {
		stem = strings.TrimPrefix(stem, prefix)
	}
	stem = strings.ReplaceAll(stem, "_", " ")
	stem = strings.ReplaceAll(stem, "-", " ")

	words := strings.Fields(stem)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	if len(words) == 0 {
		return name
	}
	return strings.Join(words, " ")
}

// FormatForChat renders an AnalysisResult as chat-ready markdown, matching
// the reference formatter's section layout: a heading, key metrics,
// visualization titles, and an elapsed-time footer.
func FormatForChat(result AnalysisResult) string {
	var b strings.Builder

	if !result.Success {
		b.WriteString("## Analysis Failed\n\n")
		if result.Error != "" {
			fmt.Fprintf(&b, "Error: %s\n", result.Error)
		}
		return b.String()
	}

	b.WriteString("## Analysis Results\n\n")
	if result.Insights != "" {
		b.WriteString(result.Insights)
		b.WriteString("\n\n")
	}

	if len(result.Metrics) > 0 {
		b.WriteString("### Key Metrics\n\n")
		keys := make([]string, 0, len(result.Metrics))
		for k := range result.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if nested, ok := result.Metrics[k].(map[string]any); ok {
				fmt.Fprintf(&b, "- **%s**:\n", k)
				b.WriteString(formatNestedMetric(nested))
				continue
			}
			fmt.Fprintf(&b, "- **%s**: %s\n", k, formatValue(result.Metrics[k]))
		}
		b.WriteString("\n")
	}

	if len(result.Visualizations) > 0 {
		b.WriteString("### Visualizations\n\n")
		for _, v := range result.Visualizations {
			fmt.Fprintf(&b, "- %s\n", v.Title)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "*Completed in %.2fs*\n", result.Elapsed.Seconds())

	return b.String()
}

// formatNestedMetric renders a one-level-deep map metric as indented
// sub-bullets, flattening the two-level tree the same way the reference
// formatter's isinstance(value, dict) branch does.
func formatNestedMetric(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "  - %s: %s\n", k, formatValue(m[k]))
	}
	return b.String()
}

// formatValue mirrors the reference's scalar/list rendering: small or
// large floats switch to scientific notation, and lists longer than five
// elements are truncated with a trailing count.
func formatValue(v any) string {
	switch val := v.(type) {
	case float64:
		abs := val
		if abs < 0 {
			abs = -abs
		}
		if abs != 0 && (abs < 0.01 || abs > 10000) {
			return fmt.Sprintf("%.4e", val)
		}
		return fmt.Sprintf("%.2f", val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, formatValue(val[k]))
		}
		return fmt.Sprintf("{%s}", strings.Join(parts, ", "))
	case []any:
		if len(val) > 5 {
			parts := make([]string, 5)
			for i := 0; i < 5; i++ {
				parts[i] = formatValue(val[i])
			}
			return fmt.Sprintf("[%s, ... +%d more]", strings.Join(parts, ", "), len(val)-5)
		}
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
	default:
		return fmt.Sprintf("%v", val)
	}
}
