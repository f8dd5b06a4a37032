package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"agentcli/internal/auth"
	"agentcli/internal/client"
	"agentcli/internal/definition"
	"agentcli/internal/packager"
	"agentcli/internal/report"
	"agentcli/internal/scaffold"
	"agentcli/internal/store"
)

// toolkitVersion is reported to the platform on push so it can match the
// runtime toolkit against the uploaded code.
const toolkitVersion = "3.2.0"

// loginTimeout bounds how long the CLI waits for the browser round trip.
const loginTimeout = 5 * time.Minute

func openStore(reporter *report.Reporter) (*store.Store, *store.Settings, bool) {
	s, err := store.NewDefault()
	if err != nil {
		reporter.Errorf("%v", err)
		return nil, nil, false
	}
	settings, err := s.Settings()
	if err != nil {
		reporter.Errorf("%v", err)
		return nil, nil, false
	}
	return s, settings, true
}

func requireSession(reporter *report.Reporter, settings *store.Settings) bool {
	if settings.Token == "" {
		reporter.Errorf("not logged in, run 'agentcli login' first")
		return false
	}
	return true
}

func handleLogin(ctx context.Context, reporter *report.Reporter) int {
	s, settings, ok := openStore(reporter)
	if !ok {
		return report.ExitInfrastructure
	}

	authenticator := auth.New(settings)
	reporter.Infof("Open the link below in your browser to log in:\n\n  %s\n", authenticator.LoginURL())
	reporter.Infof(waitHint(loginTimeout))

	loginCtx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	code, err := authenticator.WaitForCallback(loginCtx)
	if err != nil {
		reporter.Errorf("login failed: %v", err)
		return report.ExitInfrastructure
	}
	token, err := authenticator.ExchangeCode(loginCtx, code)
	if err != nil {
		reporter.Errorf("login failed: %v", err)
		return report.ExitInfrastructure
	}
	if err := s.SetToken(token); err != nil {
		reporter.Errorf("failed to persist token: %v", err)
		return report.ExitInfrastructure
	}
	reporter.Infof("Logged in.")
	return report.ExitOK
}

func handleInit(reporter *report.Reporter) int {
	if err := scaffold.Generate("."); err != nil {
		reporter.Errorf("%v", err)
		return report.ExitInfrastructure
	}
	for _, rel := range scaffold.Created {
		reporter.Infof("created %s", rel)
	}
	reporter.Infof("\nTry it: agentcli run %s sample_agent get_order_status", scaffold.DefinitionFileName)
	return report.ExitOK
}

func handleProjectList(ctx context.Context, reporter *report.Reporter, orgUUID string) int {
	_, settings, ok := openStore(reporter)
	if !ok {
		return report.ExitInfrastructure
	}
	if !requireSession(reporter, settings) {
		return report.ExitInfrastructure
	}

	orgs, err := client.New(settings).ListProjects(ctx, orgUUID)
	if err != nil {
		reporter.Errorf("%v", err)
		return report.ExitInfrastructure
	}
	if len(orgs) == 0 {
		reporter.Infof("No organizations found.")
		return report.ExitOK
	}

	for _, org := range orgs {
		reporter.Infof("%s", org.Name)
		for _, project := range org.Projects {
			marker := " "
			if project.UUID == settings.ProjectUUID {
				marker = "*"
			}
			reporter.Infof("  %s %s  %s", marker, project.UUID, project.Name)
		}
	}
	return report.ExitOK
}

func handleProjectUse(reporter *report.Reporter, uuid string) int {
	s, _, ok := openStore(reporter)
	if !ok {
		return report.ExitInfrastructure
	}
	if err := s.SetProjectUUID(uuid); err != nil {
		reporter.Errorf("failed to persist project: %v", err)
		return report.ExitInfrastructure
	}
	reporter.Infof("Active project set to %s", uuid)
	return report.ExitOK
}

func handleProjectCurrent(reporter *report.Reporter) int {
	_, settings, ok := openStore(reporter)
	if !ok {
		return report.ExitInfrastructure
	}
	if settings.ProjectUUID == "" {
		reporter.Infof("No active project. Pick one with 'agentcli project use <uuid>'.")
		return report.ExitOK
	}
	reporter.Infof("%s", settings.ProjectUUID)
	return report.ExitOK
}

func handlePush(ctx context.Context, reporter *report.Reporter, definitionPath string, forceUpdate bool) int {
	_, settings, ok := openStore(reporter)
	if !ok {
		return report.ExitInfrastructure
	}
	if !requireSession(reporter, settings) {
		return report.ExitInfrastructure
	}
	if settings.ProjectUUID == "" {
		reporter.Errorf("no active project, pick one with 'agentcli project use <uuid>'")
		return report.ExitInfrastructure
	}

	def, err := definition.Load(definitionPath)
	if err != nil {
		var verr *definition.ValidationError
		if errors.As(err, &verr) {
			reporter.ValidationError(verr)
			return report.ExitValidation
		}
		reporter.Errorf("%v", err)
		return report.ExitInfrastructure
	}

	archives, cleanup, err := packageResources(def, filepath.Dir(definitionPath))
	if err != nil {
		reporter.Errorf("%v", err)
		return report.ExitResolution
	}
	defer cleanup()

	req := client.PushRequest{
		ProjectUUID:    settings.ProjectUUID,
		Definition:     def.PushPayload(),
		ToolkitVersion: toolkitVersion,
		ForceUpdate:    forceUpdate,
		Archives:       archives,
	}
	err = client.New(settings).PushAgents(ctx, req, func(p client.PushProgress) {
		if p.Message != "" {
			reporter.Infof("[%3.0f%%] %s", p.Progress*100, p.Message)
		}
	})
	if err != nil {
		reporter.Errorf("push failed: %v", err)
		return report.ExitInfrastructure
	}
	reporter.Infof("Agents pushed to project %s.", settings.ProjectUUID)
	return report.ExitOK
}

func handleLogs(ctx context.Context, reporter *report.Reporter, agentKey, toolKey, startTime, endTime, pattern string) int {
	_, settings, ok := openStore(reporter)
	if !ok {
		return report.ExitInfrastructure
	}
	if !requireSession(reporter, settings) {
		return report.ExitInfrastructure
	}
	if settings.ProjectUUID == "" {
		reporter.Errorf("no active project, pick one with 'agentcli project use <uuid>'")
		return report.ExitInfrastructure
	}

	c := client.New(settings)
	req := client.ToolLogsRequest{
		ProjectUUID: settings.ProjectUUID,
		AgentKey:    agentKey,
		ToolKey:     toolKey,
		StartTime:   startTime,
		EndTime:     endTime,
		Pattern:     pattern,
	}

	total := 0
	for {
		page, err := c.ToolLogs(ctx, req)
		if err != nil {
			reporter.Errorf("%v", err)
			return report.ExitInfrastructure
		}
		for _, log := range page.Logs {
			reporter.Infof("[%s] %s", log.Time().Format("2006-01-02 15:04:05"), log.Message)
		}
		total += len(page.Logs)
		if page.NextToken == "" {
			break
		}
		req.NextToken = page.NextToken
	}
	if total == 0 {
		reporter.Infof("No logs found.")
	}
	return report.ExitOK
}

// packageResources zips every source folder referenced by the definition,
// keyed the way the upload endpoint expects: "<agent_slug>:<resource_slug>".
func packageResources(def *definition.Definition, baseDir string) (map[string]string, func(), error) {
	stageDir, err := os.MkdirTemp("", "agentcli-push-")
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to create staging directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(stageDir) }

	archives := map[string]string{}
	for _, agent := range def.Agents {
		for _, res := range agent.Tools {
			path, err := packager.Archive(res.Slug, filepath.Join(baseDir, res.Source.Path), stageDir)
			if err != nil {
				cleanup()
				return nil, func() {}, fmt.Errorf("failed to package %s of agent %s: %w", res.Key, agent.ID, err)
			}
			archives[agent.Slug+":"+res.Slug] = path
		}
		for _, rule := range agent.Rules {
			path, err := packager.Archive(rule.Slug, filepath.Join(baseDir, rule.Source.Path), stageDir)
			if err != nil {
				cleanup()
				return nil, func() {}, fmt.Errorf("failed to package rule %s of agent %s: %w", rule.Key, agent.ID, err)
			}
			archives[agent.Slug+":"+rule.Slug] = path
		}
		if agent.PreProcessing != nil {
			path, err := packager.Archive("preprocessing", filepath.Join(baseDir, agent.PreProcessing.Source.Path), stageDir)
			if err != nil {
				cleanup()
				return nil, func() {}, fmt.Errorf("failed to package pre-processing of agent %s: %w", agent.ID, err)
			}
			archives[agent.Slug+":preprocessing"] = path
		}
	}
	return archives, cleanup, nil
}
