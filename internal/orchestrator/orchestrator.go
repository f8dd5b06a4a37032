// Package orchestrator dispatches the test cases of a resolved resource onto
// a bounded worker pool and aggregates their results in declared order.
package orchestrator

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc/pool"

	"agentcli/internal/definition"
	"agentcli/internal/event"
	"agentcli/internal/harness"
	"agentcli/internal/resolver"
	"agentcli/internal/runctx"
	"agentcli/pkg/panicerr"
)

// DefaultMaxConcurrency caps the worker pool so a large fixture does not
// exhaust the developer's machine with child processes.
const DefaultMaxConcurrency = 4

// Invoker executes one invocation. Satisfied by *harness.Executor.
type Invoker interface {
	Execute(ctx context.Context, res *resolver.ResolvedResource, ictx *runctx.InvocationContext, testID string) (*harness.ExecutionResult, error)
}

// Orchestrator runs every test case of a fixture against one resource.
type Orchestrator struct {
	invoker     Invoker
	bus         *event.Bus
	concurrency int
	overrides   runctx.Overrides
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency overrides the worker pool bound.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithOverrides sets CLI-level value overrides, the highest merge layer.
func WithOverrides(ov runctx.Overrides) Option {
	return func(o *Orchestrator) { o.overrides = ov }
}

// New creates an orchestrator publishing lifecycle events to bus. The bus may
// be nil when nobody listens (tests).
func New(invoker Invoker, bus *event.Bus, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		invoker:     invoker,
		bus:         bus,
		concurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Summary is the aggregate of one resource run.
type Summary struct {
	RunID       string
	AgentID     string
	ResourceKey string
	Results     []*harness.ExecutionResult
	Passed      int
	Failed      int
	Errored     int
	Duration    time.Duration
}

// AllPassed reports whether the run earns a zero exit status.
func (s *Summary) AllPassed() bool {
	return s.Errored == 0 && s.Failed == 0 && s.Passed == len(s.Results)
}

// Run executes every test case of the fixture. Results come back in declared
// fixture order regardless of completion order. A context-build failure is
// that case's result and never spawns a child; an execution failure never
// cancels sibling cases. Only infrastructure errors abort the run.
func (o *Orchestrator) Run(ctx context.Context, res *resolver.ResolvedResource, td *definition.TestDefinition) (*Summary, error) {
	runID := ulid.Make().String()
	o.publish(ctx, event.RunStartedData{
		RunID:       runID,
		AgentID:     res.AgentID,
		ResourceKey: res.Key,
		Total:       len(td.Cases),
	})

	local := runctx.LoadLocal(res.SourceDir)
	start := time.Now()

	// Each worker writes only its own slot; the slice is the synchronized,
	// append-only result collection.
	results := make([]*harness.ExecutionResult, len(td.Cases))

	workers := o.concurrency
	if len(td.Cases) < workers {
		workers = len(td.Cases)
	}
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
	for i, tc := range td.Cases {
		i, tc := i, tc
		p.Go(panicerr.SafeContext(func(ctx context.Context) error {
			results[i] = o.runCase(ctx, runID, res, local, i, tc)
			return o.infraErr(results[i])
		}))
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:       runID,
		AgentID:     res.AgentID,
		ResourceKey: res.Key,
		Results:     results,
		Duration:    time.Since(start),
	}
	for _, r := range results {
		switch r.Status {
		case harness.StatusPassed:
			summary.Passed++
		case harness.StatusFailed:
			summary.Failed++
		case harness.StatusErrored:
			summary.Errored++
		}
	}
	o.publish(ctx, event.RunCompletedData{
		RunID:   runID,
		Passed:  summary.Passed,
		Failed:  summary.Failed,
		Errored: summary.Errored,
	})
	return summary, nil
}

// runCase builds the invocation context and executes one test case. All
// per-case failures are folded into the returned result.
func (o *Orchestrator) runCase(ctx context.Context, runID string, res *resolver.ResolvedResource, local runctx.Local, index int, tc definition.TestCase) *harness.ExecutionResult {
	o.publish(ctx, event.TestStartedData{RunID: runID, TestID: tc.ID, Index: index})

	result := o.execute(ctx, res, local, tc)

	for _, line := range result.Logs {
		o.publish(ctx, event.TestLogData{
			RunID:  runID,
			TestID: tc.ID,
			Seq:    line.Seq,
			Stream: line.Stream,
			Text:   line.Text,
		})
	}
	completed := event.TestCompletedData{
		RunID:      runID,
		TestID:     tc.ID,
		Index:      index,
		Status:     string(result.Status),
		DurationMs: result.Duration.Milliseconds(),
	}
	if result.Err != nil {
		completed.Error = result.Err.Error()
	}
	o.publish(ctx, completed)
	return result
}

func (o *Orchestrator) execute(ctx context.Context, res *resolver.ResolvedResource, local runctx.Local, tc definition.TestCase) *harness.ExecutionResult {
	ictx, err := runctx.Build(res, tc, local, o.overrides)
	if err != nil {
		// Reported as this case's result; the child is never spawned.
		return &harness.ExecutionResult{
			TestID: tc.ID,
			Status: harness.StatusErrored,
			Err:    &harness.ExecutionError{Kind: harness.KindContextBuild, Message: err.Error()},
		}
	}

	result, err := o.invoker.Execute(ctx, res, ictx, tc.ID)
	if err != nil {
		// Infrastructure failure: marked on the result and turned back into
		// an error by infraErr to cancel the pool.
		return &harness.ExecutionResult{
			TestID: tc.ID,
			Status: harness.StatusErrored,
			Err:    &harness.ExecutionError{Kind: kindInfrastructure, Message: err.Error()},
		}
	}
	return result
}

const kindInfrastructure harness.ErrorKind = "InfrastructureError"

func (o *Orchestrator) infraErr(r *harness.ExecutionResult) error {
	if r.Err != nil && r.Err.Kind == kindInfrastructure {
		return r.Err
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, data any) {
	if o.bus == nil {
		return
	}
	// Reporting must never break a run.
	_ = o.bus.Publish(ctx, data)
}
