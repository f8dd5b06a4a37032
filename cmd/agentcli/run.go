package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"agentcli/internal/definition"
	"agentcli/internal/event"
	"agentcli/internal/harness"
	"agentcli/internal/orchestrator"
	"agentcli/internal/report"
	"agentcli/internal/resolver"
	"agentcli/internal/runctx"
)

type runOptions struct {
	definitionPath string
	agentID        string
	resourceKey    string
	fixturePath    string
	adHoc          bool
	watch          bool
	timeout        time.Duration
	workers        int
	params         map[string]string
	credentials    map[string]string
	globals        map[string]string
}

func handleRun(ctx context.Context, reporter *report.Reporter, opts runOptions) int {
	if !opts.watch {
		return runOnce(ctx, reporter, opts)
	}
	return runWatching(ctx, reporter, opts)
}

// runOnce executes one full validate-resolve-execute cycle and returns the
// process exit code.
func runOnce(ctx context.Context, reporter *report.Reporter, opts runOptions) int {
	def, err := definition.Load(opts.definitionPath)
	if err != nil {
		var verr *definition.ValidationError
		if errors.As(err, &verr) {
			reporter.ValidationError(verr)
			return report.ExitValidation
		}
		reporter.Errorf("%v", err)
		return report.ExitInfrastructure
	}

	baseDir := filepath.Dir(opts.definitionPath)
	var resources []*resolver.ResolvedResource
	if opts.adHoc {
		resources, err = resolver.ResolveAdHoc(def, baseDir, opts.agentID, opts.resourceKey)
	} else {
		resources, err = resolver.Resolve(def, baseDir, opts.agentID, opts.resourceKey, opts.fixturePath)
	}
	if err != nil {
		reporter.Errorf("%v", err)
		return report.ExitResolution
	}

	stageDir, err := os.MkdirTemp("", "agentcli-run-")
	if err != nil {
		reporter.Errorf("failed to create staging directory: %v", err)
		return report.ExitInfrastructure
	}
	defer os.RemoveAll(stageDir)

	executor := harness.NewExecutor(stageDir)
	executor.Timeout = opts.timeout

	bus, err := event.NewBus()
	if err != nil {
		reporter.Errorf("failed to create event bus: %v", err)
		return report.ExitInfrastructure
	}
	reporter.Attach(bus)

	busCtx, cancelBus := context.WithCancel(ctx)
	defer cancelBus()
	go func() { _ = bus.Start(busCtx) }()
	defer bus.Stop()
	<-bus.Running()

	overrides := runctx.Overrides{
		Parameters:  stringMapToAny(opts.params),
		Credentials: opts.credentials,
		Globals:     opts.globals,
	}

	var summaries []*orchestrator.Summary
	completedCases := 0
	for _, res := range resources {
		var td *definition.TestDefinition
		if opts.adHoc {
			td = &definition.TestDefinition{Cases: []definition.TestCase{{
				ID:          "adhoc",
				Parameters:  stringMapToAny(opts.params),
				Credentials: opts.credentials,
			}}}
		} else {
			td, err = definition.LoadTestDefinition(res.FixturePath)
			if err != nil {
				reporter.Errorf("failed to load test fixture %s: %v", res.FixturePath, err)
				return report.ExitResolution
			}
		}
		reporter.Header(res, td)

		orch := orchestrator.New(executor, bus,
			orchestrator.WithConcurrency(opts.workers),
			orchestrator.WithOverrides(overrides),
		)
		summary, err := orch.Run(ctx, res, td)
		if err != nil {
			reporter.Errorf("run aborted: %v", err)
			return report.ExitInfrastructure
		}
		// Run returns once results are aggregated, which can be before the bus
		// has delivered the last progress lines.
		completedCases += len(td.Cases)
		reporter.WaitDelivered(completedCases, 2*time.Second)
		reporter.Summary(summary)
		summaries = append(summaries, summary)
	}
	return report.ExitCode(summaries)
}

// runWatching re-runs on every change to the definition file, the resolved
// fixture, or anything under the resolved source folders. The exit code of
// the last completed cycle is returned when the context ends.
func runWatching(ctx context.Context, reporter *report.Reporter, opts runOptions) int {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		reporter.Errorf("failed to start watcher: %v", err)
		return report.ExitInfrastructure
	}
	defer watcher.Close()

	lastCode := runOnce(ctx, reporter, opts)

	for {
		resetWatchPaths(watcher, opts)

		select {
		case <-ctx.Done():
			return lastCode
		case err := <-watcher.Errors:
			reporter.Errorf("watcher failed: %v", err)
			return report.ExitInfrastructure
		case ev := <-watcher.Events:
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// Editors fire bursts of events per save; let them settle.
			drainEvents(watcher, 300*time.Millisecond)
			reporter.Infof("change detected in %s, re-running", ev.Name)
			lastCode = runOnce(ctx, reporter, opts)
		}
	}
}

// resetWatchPaths re-resolves the watch set each cycle, since a definition
// edit can repoint source folders.
func resetWatchPaths(watcher *fsnotify.Watcher, opts runOptions) {
	for _, path := range watcher.WatchList() {
		_ = watcher.Remove(path)
	}

	_ = watcher.Add(filepath.Dir(opts.definitionPath))

	def, err := definition.Load(opts.definitionPath)
	if err != nil {
		return
	}
	baseDir := filepath.Dir(opts.definitionPath)
	resources, err := resolver.Resolve(def, baseDir, opts.agentID, opts.resourceKey, opts.fixturePath)
	if err != nil {
		return
	}
	for _, res := range resources {
		_ = watcher.Add(res.SourceDir)
		_ = watcher.Add(filepath.Dir(res.FixturePath))
	}
}

func drainEvents(watcher *fsnotify.Watcher, quiet time.Duration) {
	timer := time.NewTimer(quiet)
	defer timer.Stop()
	for {
		select {
		case <-watcher.Events:
			timer.Reset(quiet)
		case <-timer.C:
			return
		}
	}
}

func stringMapToAny(m map[string]string) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
