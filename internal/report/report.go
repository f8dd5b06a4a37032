// Package report renders run progress and results to the terminal and
// computes the process exit status.
package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"agentcli/internal/definition"
	"agentcli/internal/event"
	"agentcli/internal/harness"
	"agentcli/internal/orchestrator"
	"agentcli/internal/resolver"
)

// Exit codes. Distinct codes let scripts tell apart where a run died.
const (
	ExitOK             = 0
	ExitInfrastructure = 1
	ExitValidation     = 2
	ExitResolution     = 3
	ExitContextBuild   = 4
	ExitExecution      = 5
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	dim    = color.New(color.Faint)
)

// Reporter writes human-readable run output. It is safe for concurrent use
// by bus handlers.
type Reporter struct {
	mu        sync.Mutex
	out       io.Writer
	verbose   bool
	delivered int
}

// New creates a reporter. With verbose set, captured logs and error detail
// are replayed for every case, not only failing ones.
func New(out io.Writer, verbose bool) *Reporter {
	return &Reporter{out: out, verbose: verbose}
}

// Attach subscribes progress handlers to the run lifecycle bus. Must be
// called before the bus starts.
func (r *Reporter) Attach(bus *event.Bus) {
	event.SubscribeTyped(bus, event.TestStarted, "report_test_started", func(data event.TestStartedData) error {
		r.printf("%s %s\n", dim.Sprint("▸"), dim.Sprintf("%s running...", data.TestID))
		return nil
	})
	event.SubscribeTyped(bus, event.TestCompleted, "report_test_completed", func(data event.TestCompletedData) error {
		icon := statusIcon(harness.Status(data.Status))
		line := fmt.Sprintf("%s %s %s %s", icon, data.TestID, data.Status, dim.Sprintf("(%dms)", data.DurationMs))
		if data.Error != "" {
			line += " " + red.Sprint(data.Error)
		}
		r.printf("%s\n", line)
		r.markDelivered()
		return nil
	})
}

func (r *Reporter) markDelivered() {
	r.mu.Lock()
	r.delivered++
	r.mu.Unlock()
}

// WaitDelivered blocks until n completion lines have been rendered, or the
// timeout passes. Bus delivery is asynchronous, so the run loop waits here
// before printing a summary; otherwise late progress lines could land inside
// or after the summary block.
func (r *Reporter) WaitDelivered(n int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for {
		r.mu.Lock()
		done := r.delivered >= n
		r.mu.Unlock()
		if done || time.Now().After(deadline) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Header announces what is about to run.
func (r *Reporter) Header(res *resolver.ResolvedResource, td *definition.TestDefinition) {
	origin := dim.Sprintf("(%d test cases from %s)", len(td.Cases), res.FixturePath)
	if res.FixturePath == "" {
		origin = dim.Sprint("(1 ad-hoc case from command-line values)")
	}
	r.printf("%s %s.%s %s\n", cyan.Sprint("agentcli run"), res.AgentID, res.Key, origin)
}

// Summary renders the aggregate outcome of one resource run, with per-case
// detail for failing cases and, in verbose mode, for every case.
func (r *Reporter) Summary(s *orchestrator.Summary) {
	r.printf("\n%s %s.%s: ", cyan.Sprint("results"), s.AgentID, s.ResourceKey)
	r.printf("%s", green.Sprintf("%d passed", s.Passed))
	if s.Failed > 0 {
		r.printf(", %s", yellow.Sprintf("%d failed", s.Failed))
	}
	if s.Errored > 0 {
		r.printf(", %s", red.Sprintf("%d errored", s.Errored))
	}
	r.printf(" %s\n", dim.Sprintf("in %s", s.Duration.Round(time.Millisecond)))

	for _, result := range s.Results {
		if r.verbose || !result.Passed() {
			r.caseDetail(result)
		}
	}
}

func (r *Reporter) caseDetail(result *harness.ExecutionResult) {
	r.printf("\n%s %s %s %s\n",
		statusIcon(result.Status),
		result.TestID,
		result.Status,
		dim.Sprintf("(%s)", result.Duration.Round(time.Millisecond)),
	)
	if result.Err != nil {
		r.printf("  %s %s\n", red.Sprintf("%s:", result.Err.Kind), result.Err.Message)
		if r.verbose && result.Err.Detail != "" {
			r.indented(result.Err.Detail)
		}
	}
	if result.Passed() && r.verbose && result.Response != nil {
		r.printf("  %s %v\n", dim.Sprint("response:"), result.Response)
	}
	if len(result.Logs) > 0 {
		r.printf("  %s\n", dim.Sprint("logs:"))
		for _, line := range result.Logs {
			r.printf("    %s %s\n", dim.Sprintf("[%d %s]", line.Seq, line.Stream), line.Text)
		}
	}
}

// ValidationError renders the full accumulated error list.
func (r *Reporter) ValidationError(verr *definition.ValidationError) {
	r.printf("%s the definition file has %d problem(s):\n", red.Sprint("invalid definition:"), len(verr.Errors))
	for _, fe := range verr.Errors {
		r.printf("  %s %s\n", yellow.Sprint(fe.Path+":"), fe.Message)
	}
}

// Errorf renders a one-line fatal error.
func (r *Reporter) Errorf(format string, args ...any) {
	r.printf("%s %s\n", red.Sprint("error:"), fmt.Sprintf(format, args...))
}

// Infof renders a one-line status message.
func (r *Reporter) Infof(format string, args ...any) {
	r.printf("%s\n", fmt.Sprintf(format, args...))
}

func (r *Reporter) indented(text string) {
	for _, line := range splitLines(text) {
		r.printf("    %s\n", dim.Sprint(line))
	}
}

func (r *Reporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func statusIcon(status harness.Status) string {
	switch status {
	case harness.StatusPassed:
		return green.Sprint("✔")
	case harness.StatusFailed:
		return yellow.Sprint("✖")
	default:
		return red.Sprint("✖")
	}
}

// ExitCode folds all run summaries into one process exit status. Context
// build failures get their own code when they are the only kind of failure,
// since they point at the fixture rather than the unit under test.
func ExitCode(summaries []*orchestrator.Summary) int {
	code := ExitOK
	for _, s := range summaries {
		for _, result := range s.Results {
			if result.Passed() {
				continue
			}
			if result.Err != nil && result.Err.Kind == harness.KindContextBuild {
				if code == ExitOK {
					code = ExitContextBuild
				}
				continue
			}
			return ExitExecution
		}
	}
	return code
}

func splitLines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
