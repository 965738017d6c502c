package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sandboxrunner/sandboxrunner/pkg/analysis"
)

// Collect reads every regular file in the workspace's outputs directory
// (non-recursive) and classifies each by extension, falling back to a
// UTF-8 decode check for unrecognized ones. Filenames are preserved
// verbatim as map keys.
func (ws *Workspace) Collect() (map[string]analysis.Artifact, error) {
	outputs := make(map[string]analysis.Artifact)

	entries, err := os.ReadDir(ws.OutputsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return outputs, nil
		}
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(ws.OutputsDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		outputs[entry.Name()] = classify(entry.Name(), data)
	}

	return outputs, nil
}

// classify maps a filename+content pair to an Artifact, following the
// extension rules from the data model: .json parses (falling back to
// Text on malformed JSON), .png/.jpg/.jpeg are images, .html is Html,
// .csv is Csv, .txt is Text, anything else decodes as UTF-8 Text or
// falls back to Binary.
func classify(name string, data []byte) analysis.Artifact {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json":
		var tree any
		if err := json.Unmarshal(data, &tree); err == nil {
			return analysis.Artifact{Kind: analysis.ArtifactJSON, JSON: tree}
		}
		return analysis.Artifact{Kind: analysis.ArtifactText, Text: string(data)}
	case ".png":
		return analysis.Artifact{Kind: analysis.ArtifactImage, Bytes: data, Mime: "image/png"}
	case ".jpg", ".jpeg":
		return analysis.Artifact{Kind: analysis.ArtifactImage, Bytes: data, Mime: "image/jpeg"}
	case ".html":
		return analysis.Artifact{Kind: analysis.ArtifactHTML, Text: string(data)}
	case ".csv":
		return analysis.Artifact{Kind: analysis.ArtifactCSV, Text: string(data)}
	case ".txt":
		return analysis.Artifact{Kind: analysis.ArtifactText, Text: string(data)}
	default:
		if utf8.Valid(data) {
			return analysis.Artifact{Kind: analysis.ArtifactText, Text: string(data)}
		}
		return analysis.Artifact{Kind: analysis.ArtifactBinary, Bytes: data}
	}
}
