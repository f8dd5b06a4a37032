package harness

import (
	"fmt"
	"time"
)

// Status is the outcome of one test-case execution.
type Status string

const (
	// StatusPassed means the unit under test returned a well-formed response
	// without raising. The harness does not compare the response against an
	// expected value; fixtures carry inputs only.
	StatusPassed Status = "passed"
	// StatusFailed means the child exited cleanly but did not produce a
	// well-formed response envelope.
	StatusFailed Status = "failed"
	// StatusErrored means the execution itself broke: a raised exception, a
	// timeout, or an entrypoint that could not be loaded.
	StatusErrored Status = "errored"
)

// ErrorKind classifies an errored execution.
type ErrorKind string

const (
	// KindTimeout: the invocation exceeded its deadline and was killed.
	KindTimeout ErrorKind = "Timeout"
	// KindExecutionFailure: the unit under test raised while running.
	KindExecutionFailure ErrorKind = "ExecutionFailure"
	// KindResolutionFailure: the child could not even load the target symbol
	// (missing module, import error, missing attribute).
	KindResolutionFailure ErrorKind = "ResolutionFailure"
	// KindContextBuild: the invocation context could not be built; the child
	// was never spawned.
	KindContextBuild ErrorKind = "ContextBuildError"
)

// ExecutionError is the error half of an errored ExecutionResult. Detail
// carries longer diagnostics (e.g. the child's traceback) shown only in
// verbose output.
type ExecutionError struct {
	Kind    ErrorKind
	Message string
	Detail  string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// LogLine is one line the unit under test wrote to stdout or stderr, tagged
// with a sequence number that is monotonic across both streams.
type LogLine struct {
	Seq    int
	Stream string
	Text   string
}

// ExecutionResult is the immutable outcome of executing one test case.
type ExecutionResult struct {
	TestID   string
	Status   Status
	Response any
	Logs     []LogLine
	Duration time.Duration
	Err      *ExecutionError
}

// Passed reports whether the result counts toward a zero exit status.
func (r *ExecutionResult) Passed() bool {
	return r.Status == StatusPassed
}
