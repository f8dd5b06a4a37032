package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"agentcli/internal/report"
)

var (
	app = kingpin.New("agentcli", "Agent definition tool: validate definitions, run tools locally, push to the platform")

	loginCmd = app.Command("login", "Authenticate through the browser and store the access token")

	initCmd = app.Command("init", "Create a sample agent definition with one working tool")

	// Project commands
	projectCmd = app.Command("project", "Project management commands")

	projectListCmd = projectCmd.Command("list", "List the projects you can push to")
	projectListOrg = projectListCmd.Flag("org", "Restrict the listing to one organization UUID").String()

	projectUseCmd  = projectCmd.Command("use", "Select the active project")
	projectUseUUID = projectUseCmd.Arg("uuid", "Project UUID").Required().String()

	projectCurrentCmd = projectCmd.Command("current", "Show the active project")

	// Run command
	runCmd         = app.Command("run", "Run a tool or the rules of an agent against its test fixture")
	runDefinition  = runCmd.Arg("definition", "Path to the definition file").Required().String()
	runAgent       = runCmd.Arg("agent", "Agent id as declared in the definition").Required().String()
	runResource    = runCmd.Arg("resource", "Tool key (optional for active agents: all rules run)").String()
	runFixture     = runCmd.Flag("file", "Test fixture path, overriding the declared one").Short('f').String()
	runAdHoc       = runCmd.Flag("ad-hoc", "Skip the fixture and run one case built from --param/--credential values").Bool()
	runVerbose     = runCmd.Flag("verbose", "Replay captured logs and responses for every test case").Short('v').Bool()
	runWatch       = runCmd.Flag("watch", "Re-run whenever the definition, fixture or source folder changes").Short('w').Bool()
	runTimeout     = runCmd.Flag("timeout", "Per-invocation timeout").Default("60s").Duration()
	runWorkers     = runCmd.Flag("workers", "Maximum concurrent invocations").Default("4").Int()
	runParams      = runCmd.Flag("param", "Parameter override as name=value (repeatable)").StringMap()
	runCredentials = runCmd.Flag("credential", "Credential override as key=value (repeatable)").StringMap()
	runGlobals     = runCmd.Flag("global", "Global override as key=value (repeatable)").StringMap()

	// Push command
	pushCmd         = app.Command("push", "Validate, package and upload a definition to the active project")
	pushDefinition  = pushCmd.Arg("definition", "Path to the definition file").Required().String()
	pushForceUpdate = pushCmd.Flag("force-update", "Update agents that already exist on the project").Bool()

	// Logs command
	logsCmd     = app.Command("logs", "Fetch remote logs of a deployed tool")
	logsAgent   = logsCmd.Flag("agent", "Agent key").Required().String()
	logsTool    = logsCmd.Flag("tool", "Tool key").Required().String()
	logsStart   = logsCmd.Flag("start-time", "Start of the time range (RFC 3339)").String()
	logsEnd     = logsCmd.Flag("end-time", "End of the time range (RFC 3339)").String()
	logsPattern = logsCmd.Flag("pattern", "Filter pattern applied server-side").String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reporter := report.New(os.Stdout, *runVerbose)

	var exitCode int
	switch command {
	case loginCmd.FullCommand():
		exitCode = handleLogin(ctx, reporter)
	case initCmd.FullCommand():
		exitCode = handleInit(reporter)
	case projectListCmd.FullCommand():
		exitCode = handleProjectList(ctx, reporter, *projectListOrg)
	case projectUseCmd.FullCommand():
		exitCode = handleProjectUse(reporter, *projectUseUUID)
	case projectCurrentCmd.FullCommand():
		exitCode = handleProjectCurrent(reporter)
	case runCmd.FullCommand():
		exitCode = handleRun(ctx, reporter, runOptions{
			definitionPath: *runDefinition,
			agentID:        *runAgent,
			resourceKey:    *runResource,
			fixturePath:    *runFixture,
			adHoc:          *runAdHoc,
			watch:          *runWatch,
			timeout:        *runTimeout,
			workers:        *runWorkers,
			params:         *runParams,
			credentials:    *runCredentials,
			globals:        *runGlobals,
		})
	case pushCmd.FullCommand():
		exitCode = handlePush(ctx, reporter, *pushDefinition, *pushForceUpdate)
	case logsCmd.FullCommand():
		exitCode = handleLogs(ctx, reporter, *logsAgent, *logsTool, *logsStart, *logsEnd, *logsPattern)
	}

	stop()
	os.Exit(exitCode)
}

// waitHint is printed while the login flow blocks on the browser.
func waitHint(deadline time.Duration) string {
	return fmt.Sprintf("waiting up to %s for the browser login to complete...", deadline)
}
