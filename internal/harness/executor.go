// Package harness executes one resolved resource per built invocation
// context, each invocation in its own child process. The harness and the
// child communicate over a narrow serialized channel: the request envelope on
// stdin, the result envelope through a result file, and nothing else. Child
// stdout/stderr is captured verbatim as sequenced log lines.
package harness

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"agentcli/internal/resolver"
	"agentcli/internal/runctx"
)

//go:embed bootstrap.py
var bootstrapSource string

// DefaultTimeout bounds a single invocation unless overridden.
const DefaultTimeout = 60 * time.Second

// DefaultRuntime is the interpreter used to run the child bootstrap.
const DefaultRuntime = "python3"

// waitGrace bounds how long Execute lingers after the deadline before the
// child's pipes are forcibly closed. User code may fork, and a surviving
// grandchild inherits the pipe write ends; without a cutoff the capture
// goroutines would block until that grandchild exits.
const waitGrace = 2 * time.Second

// Executor runs invocations against a staging directory that lives for one
// run and is removed on every exit path by the caller.
type Executor struct {
	Runtime  string
	Timeout  time.Duration
	StageDir string
}

// NewExecutor returns an executor staging its per-invocation files under
// stageDir.
func NewExecutor(stageDir string) *Executor {
	return &Executor{
		Runtime:  DefaultRuntime,
		Timeout:  DefaultTimeout,
		StageDir: stageDir,
	}
}

// Execute runs the resource once with the given context. The returned error
// is reserved for infrastructure failures (cannot stage files, cannot spawn a
// process), which abort the whole run; everything the unit under test does
// wrong is reported inside the ExecutionResult instead.
func (e *Executor) Execute(ctx context.Context, res *resolver.ResolvedResource, ictx *runctx.InvocationContext, testID string) (*ExecutionResult, error) {
	start := time.Now()

	invocationDir, err := os.MkdirTemp(e.StageDir, "invocation-")
	if err != nil {
		return nil, fmt.Errorf("failed to create invocation directory: %w", err)
	}
	bootstrapPath := filepath.Join(invocationDir, "bootstrap.py")
	if err := os.WriteFile(bootstrapPath, []byte(bootstrapSource), 0o644); err != nil {
		return nil, fmt.Errorf("failed to stage bootstrap: %w", err)
	}
	resultPath := filepath.Join(invocationDir, "result.json")

	request, err := json.Marshal(envelope{
		Parameters:  ictx.Parameters,
		Credentials: ictx.Credentials,
		Globals:     ictx.Globals,
		SourceDir:   res.SourceDir,
		Entrypoint:  entrypointRef{Module: res.Module, Target: res.Target},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode invocation envelope: %w", err)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, e.Runtime, bootstrapPath, resultPath)
	cmd.Dir = res.SourceDir
	cmd.Stdin = bytes.NewReader(request)
	cmd.WaitDelay = waitGrace
	configureProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", e.Runtime, err)
	}

	capture := newLogCapture()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		capture.consume("stdout", stdout)
	}()
	go func() {
		defer wg.Done()
		capture.consume("stderr", stderr)
	}()
	wg.Wait()
	waitErr := cmd.Wait()

	result := &ExecutionResult{
		TestID:   testID,
		Logs:     capture.lines(),
		Duration: time.Since(start),
	}

	if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		result.Status = StatusErrored
		result.Err = &ExecutionError{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("execution exceeded the %s timeout and was terminated", timeout),
		}
		return result, nil
	}

	child, readErr := readChildResult(resultPath)
	switch {
	case readErr != nil && waitErr != nil:
		// The child died without reporting. Logs are preserved up to the
		// failure point.
		result.Status = StatusErrored
		result.Err = &ExecutionError{
			Kind:    KindExecutionFailure,
			Message: fmt.Sprintf("child process exited without a result: %v", waitErr),
		}
	case readErr != nil:
		result.Status = StatusFailed
		result.Err = &ExecutionError{
			Kind:    KindExecutionFailure,
			Message: "child process produced no response envelope",
		}
	case child.Status == childStatusSuccess:
		result.Status = StatusPassed
		result.Response = child.Response
	case child.Kind == childKindResolution:
		result.Status = StatusErrored
		result.Err = &ExecutionError{
			Kind:    KindResolutionFailure,
			Message: child.Message,
			Detail:  child.Traceback,
		}
	default:
		result.Status = StatusErrored
		result.Err = &ExecutionError{
			Kind:    KindExecutionFailure,
			Message: child.Message,
			Detail:  child.Traceback,
		}
	}
	return result, nil
}

func readChildResult(path string) (*childResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var child childResult
	if err := json.Unmarshal(data, &child); err != nil {
		return nil, fmt.Errorf("malformed result envelope: %w", err)
	}
	if child.Status != childStatusSuccess && child.Status != childStatusError {
		return nil, fmt.Errorf("unknown result status %q", child.Status)
	}
	return &child, nil
}

// logCapture collects lines from both child streams under one monotonic
// sequence, so verbose mode can replay output in the order it appeared.
type logCapture struct {
	mu      sync.Mutex
	seq     int
	entries []LogLine
}

func newLogCapture() *logCapture {
	return &logCapture{}
}

func (c *logCapture) consume(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		c.mu.Lock()
		c.entries = append(c.entries, LogLine{Seq: c.seq, Stream: stream, Text: scanner.Text()})
		c.seq++
		c.mu.Unlock()
	}
}

func (c *logCapture) lines() []LogLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]LogLine, len(c.entries))
	copy(lines, c.entries)
	sort.Slice(lines, func(i, j int) bool { return lines[i].Seq < lines[j].Seq })
	return lines
}
