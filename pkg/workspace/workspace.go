// Package workspace manages the per-execution scratch directory tree that
// is bind-mounted into the sandbox container: the generated script, the
// serialized input dataset, and the output directory the analysis program
// writes artifacts into.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is the filesystem triple described in the data model: a
// script file and data directory (read-only in the container) and an
// outputs directory (read-write).
type Workspace struct {
	Root       string
	ScriptPath string
	DataDir    string
	OutputsDir string
}

// dirPerm matches the reference implementation's directory permissions;
// world-unreadable would break the container's non-root user.
const dirPerm = 0o755

// Prepare creates a uniquely named scratch directory tree under root,
// writes script as script.py, and serializes data (if non-nil) as
// data/data.json. The directory name embeds a random UUID so concurrent
// executions never collide.
func Prepare(root, script string, data any) (*Workspace, error) {
	id := uuid.New().String()
	base := filepath.Join(root, "sandbox_"+id)

	ws := &Workspace{
		Root:       base,
		ScriptPath: filepath.Join(base, "script.py"),
		DataDir:    filepath.Join(base, "data"),
		OutputsDir: filepath.Join(base, "outputs"),
	}

	for _, dir := range []string{base, ws.DataDir, ws.OutputsDir} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("create workspace dir %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(ws.ScriptPath, []byte(script), 0o644); err != nil {
		return nil, fmt.Errorf("write script: %w", err)
	}

	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("serialize input data: %w", err)
		}
		dataPath := filepath.Join(ws.DataDir, "data.json")
		if err := os.WriteFile(dataPath, payload, 0o644); err != nil {
			return nil, fmt.Errorf("write input data: %w", err)
		}
	}

	return ws, nil
}

// Destroy removes the entire workspace tree. It is idempotent and safe
// to call on every exit path (success, failure, timeout, cancellation,
// panic via a deferred call).
func (ws *Workspace) Destroy() error {
	if ws == nil || ws.Root == "" {
		return nil
	}
	return os.RemoveAll(ws.Root)
}

// Exists reports whether the workspace root is still present on disk;
// used by tests asserting the "destroyed on every exit path" invariant.
func (ws *Workspace) Exists() bool {
	if ws == nil {
		return false
	}
	_, err := os.Stat(ws.Root)
	return err == nil
}
