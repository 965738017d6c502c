// Package sandbox implements the Container Runtime Driver: it ensures the
// analysis image is present, launches a network-denied, resource-capped
// container with the workspace mounted, waits for completion under a
// caller-supplied deadline, and always reaps the container.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sandboxrunner/sandboxrunner/pkg/analysis"
	"github.com/sandboxrunner/sandboxrunner/pkg/apperrors"
	"github.com/sandboxrunner/sandboxrunner/pkg/workspace"
)

// ImageName is the contractual tag of the pre-built analysis image.
const ImageName = "python-analysis-sandbox:latest"

// Limits are the per-execution resource caps (normative defaults match
// the container launch table: 2 GiB RAM, swap equal to RAM, 2 vCPU,
// 512 MiB tmpfs scratch, 128 PIDs).
type Limits struct {
	MemoryBytes int64
	NanoCPUs    int64
	PidsLimit   int64
	TmpfsSize   string
}

// DefaultLimits returns the resource caps named in the container launch
// table.
func DefaultLimits() Limits {
	return Limits{
		MemoryBytes: 2 * 1024 * 1024 * 1024,
		NanoCPUs:    2_000_000_000,
		PidsLimit:   128,
		TmpfsSize:   "512m",
	}
}

// Config controls driver initialization.
type Config struct {
	DockerHost      string // empty uses client.FromEnv
	BuildImage      bool   // whether to build the image from BuildContextDir if missing
	BuildContextDir string // sibling directory containing the image's Dockerfile
	Limits          Limits
}

// DefaultBuildContextDir is used when Config.BuildContextDir is empty.
const DefaultBuildContextDir = "./sandbox-image"

// Driver owns the Docker SDK client and runs sandbox executions.
type Driver struct {
	client *client.Client
	cfg    Config

	mu     sync.Mutex
	active map[string]bool // container ID -> in-flight
}

// New creates a Driver, connecting to the Docker daemon via the standard
// environment variables (DOCKER_HOST, etc.), negotiating the API version.
func New(cfg Config) (*Driver, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.DockerHost != "" {
		opts = append(opts, client.WithHost(cfg.DockerHost))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSandboxUnavailable, err)
	}
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultLimits()
	}
	if cfg.BuildContextDir == "" {
		cfg.BuildContextDir = DefaultBuildContextDir
	}
	return &Driver{client: cli, cfg: cfg, active: make(map[string]bool)}, nil
}

// EnsureImage probes for the analysis image. If absent and BuildImage is
// enabled, it is built from the sibling build context named by
// BuildContextDir; otherwise a missing image is a SandboxInfraError —
// the driver never implicitly pulls a remote image.
func (d *Driver) EnsureImage(ctx context.Context) error {
	_, _, err := d.client.ImageInspectWithRaw(ctx, ImageName)
	if err == nil {
		return nil
	}

	if !d.cfg.BuildImage {
		return apperrors.New(apperrors.KindSandboxInfra, "",
			fmt.Errorf("%w: %s (build disabled)", apperrors.ErrImageMissing, ImageName))
	}

	slog.Info("sandbox image not found locally, building from context",
		"image", ImageName, "context", d.cfg.BuildContextDir)
	return d.buildImage(ctx)
}

// buildImage builds ImageName from the Dockerfile in BuildContextDir.
func (d *Driver) buildImage(ctx context.Context) error {
	buildCtx, err := archive.TarWithOptions(d.cfg.BuildContextDir, &archive.TarOptions{})
	if err != nil {
		return apperrors.New(apperrors.KindSandboxInfra, "",
			fmt.Errorf("%w: read build context %s: %v", apperrors.ErrImageMissing, d.cfg.BuildContextDir, err))
	}
	defer buildCtx.Close()

	resp, err := d.client.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:       []string{ImageName},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return apperrors.New(apperrors.KindSandboxInfra, "",
			fmt.Errorf("%w: build: %v", apperrors.ErrImageMissing, err))
	}
	defer resp.Body.Close()

	out, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		slog.Warn("failed to fully read image build output", "error", readErr)
	}
	if bytes.Contains(out, []byte(`"error"`)) {
		return apperrors.New(apperrors.KindSandboxInfra, "",
			fmt.Errorf("%w: build reported an error: %s", apperrors.ErrImageMissing, lastLine(out)))
	}

	slog.Info("sandbox image built", "image", ImageName)
	return nil
}

// lastLine returns the final non-empty line of build output, a cheap way
// to surface the most relevant Docker build-log line in an error message
// without parsing the JSON stream frame-by-frame.
func lastLine(b []byte) string {
	lines := bytes.Split(bytes.TrimRight(b, "\n"), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(lines[len(lines)-1])
}

// Execute runs the workspace's script in a freshly created container,
// honoring ctx's deadline, and always removes the container before
// returning regardless of outcome.
func (d *Driver) Execute(ctx context.Context, ws *workspace.Workspace, executionID string) (analysis.ExecutionResult, error) {
	start := time.Now()
	result := analysis.ExecutionResult{ExecutionID: executionID}

	hostCfg := d.hostConfig(ws)
	containerName := "sandbox_" + executionID

	created, err := d.client.ContainerCreate(ctx, &container.Config{
		Image:           ImageName,
		WorkingDir:      "/sandbox",
		Cmd:             []string{"python", "-u", "/sandbox/script.py"},
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
	}, hostCfg, &network.NetworkingConfig{}, nil, containerName)
	if err != nil {
		return result, apperrors.New(apperrors.KindSandboxInfra, executionID, err)
	}
	containerID := created.ID
	d.trackActive(containerID, true)

	defer func() {
		d.trackActive(containerID, false)
		removeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.client.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			slog.Warn("failed to remove sandbox container", "container", containerName, "error", err)
		}
	}()

	if err := d.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return result, apperrors.New(apperrors.KindSandboxInfra, executionID, err)
	}

	waitCh, errCh := d.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	select {
	case <-ctx.Done():
		d.forceStop(containerID)
		result.Elapsed = time.Since(start)
		result.Success = false
		result.ExitCode = -1
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Error = "timeout"
			return result, apperrors.New(apperrors.KindTimeout, executionID, apperrors.ErrTimeout)
		}
		result.Error = "cancelled"
		return result, apperrors.New(apperrors.KindCancelled, executionID, apperrors.ErrCancelled)

	case waitErr := <-errCh:
		return result, apperrors.New(apperrors.KindSandboxInfra, executionID, waitErr)

	case resp := <-waitCh:
		stdout, stderr, logErr := d.readLogs(context.Background(), containerID)
		result.Stdout = stdout
		result.Stderr = stderr
		result.Elapsed = time.Since(start)
		result.ExitCode = int(resp.StatusCode)
		result.Success = resp.StatusCode == 0
		if logErr != nil {
			slog.Warn("failed to read container logs", "container", containerName, "error", logErr)
		}
	}

	return result, nil
}

func (d *Driver) forceStop(containerID string) {
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	timeoutSecs := 5
	if err := d.client.ContainerStop(stopCtx, containerID, container.StopOptions{Timeout: &timeoutSecs}); err != nil {
		_ = d.client.ContainerKill(context.Background(), containerID, "SIGKILL")
	}
}

func (d *Driver) hostConfig(ws *workspace.Workspace) *container.HostConfig {
	limits := d.cfg.Limits
	pids := limits.PidsLimit
	return &container.HostConfig{
		ReadonlyRootfs: true,
		SecurityOpt:    []string{"no-new-privileges:true"},
		CapDrop:        []string{"ALL"},
		NetworkMode:    "none",
		Tmpfs:          map[string]string{"/tmp": "size=" + limits.TmpfsSize},
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: ws.ScriptPath, Target: "/sandbox/script.py", ReadOnly: true},
			{Type: mount.TypeBind, Source: ws.DataDir, Target: "/sandbox/data", ReadOnly: true},
			{Type: mount.TypeBind, Source: ws.OutputsDir, Target: "/sandbox/outputs", ReadOnly: false},
		},
		Resources: container.Resources{
			Memory:     limits.MemoryBytes,
			MemorySwap: limits.MemoryBytes,
			NanoCPUs:   limits.NanoCPUs,
			PidsLimit:  &pids,
		},
	}
}

func (d *Driver) readLogs(ctx context.Context, containerID string) (stdout, stderr string, err error) {
	rc, err := d.client.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", err
	}
	defer rc.Close()

	var outBuf, errBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, rc); err != nil {
		return outBuf.String(), errBuf.String(), err
	}
	return outBuf.String(), errBuf.String(), nil
}

func (d *Driver) trackActive(containerID string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if active {
		d.active[containerID] = true
	} else {
		delete(d.active, containerID)
	}
}

// ListOrphans returns the IDs of containers named with the sandbox_ prefix
// that are still present and NOT currently owned by an in-flight Execute
// call (used by the reaper in reaper.go).
func (d *Driver) ListOrphans(ctx context.Context) ([]string, error) {
	containers, err := d.client.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var ids []string
	for _, c := range containers {
		if d.active[c.ID] {
			continue
		}
		for _, name := range c.Names {
			if len(name) > 9 && name[:9] == "/sandbox_" {
				ids = append(ids, c.ID)
				break
			}
		}
	}
	return ids, nil
}

// RemoveContainer force-removes a container by id, ignoring "not found".
func (d *Driver) RemoveContainer(ctx context.Context, id string) error {
	return d.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}

// Close releases the underlying Docker SDK client connection.
func (d *Driver) Close() error {
	return d.client.Close()
}
