// Package client talks to the hosted platform: agent uploads, project
// listing, and remote tool logs.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"agentcli/internal/store"
)

// Client issues authenticated requests against both platform APIs. The CLI
// API hosts agent uploads and tool logs; the platform API hosts the
// organization and project catalog.
type Client struct {
	httpClient      *http.Client
	cliBaseURL      string
	platformBaseURL string
	token           string
}

// New builds a client from resolved settings.
func New(settings *store.Settings) *Client {
	return &Client{
		// Uploads stream progress for as long as the deploy takes, so no
		// client-wide timeout; per-request contexts bound each call.
		httpClient:      &http.Client{},
		cliBaseURL:      settings.CLIBaseURL,
		platformBaseURL: settings.PlatformBaseURL,
		token:           settings.Token,
	}
}

// PushProgress is one line of the streamed upload response.
type PushProgress struct {
	Success   bool    `json:"success"`
	Progress  float64 `json:"progress"`
	Message   string  `json:"message"`
	Data      any     `json:"data"`
	RequestID string  `json:"request_id"`
}

// PushRequest is one agent upload.
type PushRequest struct {
	ProjectUUID    string
	Definition     map[string]any
	ToolkitVersion string
	ForceUpdate    bool
	// Archives maps "<agent_slug>:<resource_slug>" to a zip file path.
	Archives map[string]string
}

// PushAgents uploads a definition with its resource archives and follows the
// server's line-delimited progress stream, invoking onProgress per update.
// A stream line with success=false aborts with that line's message.
func (c *Client) PushAgents(ctx context.Context, req PushRequest, onProgress func(PushProgress)) error {
	body, contentType, err := buildPushBody(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cliBaseURL+"/api/v1/agents", body)
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to push agents: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to push agents: %s", readErrorBody(resp.Body))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var progress PushProgress
		if err := json.Unmarshal(line, &progress); err != nil {
			return fmt.Errorf("failed to parse push progress line: %w", err)
		}
		if !progress.Success {
			if progress.Message == "" {
				return fmt.Errorf("unknown error while pushing agents (request %s)", progress.RequestID)
			}
			return fmt.Errorf("%s (request %s)", progress.Message, progress.RequestID)
		}
		if onProgress != nil {
			onProgress(progress)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("push progress stream broke: %w", err)
	}
	return nil
}

func buildPushBody(req PushRequest) (io.Reader, string, error) {
	definition, err := json.Marshal(req.Definition)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode definition: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := map[string]string{
		"project_uuid":    req.ProjectUUID,
		"definition":      string(definition),
		"toolkit_version": req.ToolkitVersion,
	}
	if req.ForceUpdate {
		fields["force_update"] = "true"
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	for key, archivePath := range req.Archives {
		part, err := w.CreateFormFile(key, filepath.Base(archivePath))
		if err != nil {
			return nil, "", fmt.Errorf("failed to attach archive %s: %w", key, err)
		}
		f, err := os.Open(archivePath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open archive %s: %w", archivePath, err)
		}
		_, err = io.Copy(part, f)
		f.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read archive %s: %w", archivePath, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize upload body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// ToolLog is one remote log entry.
type ToolLog struct {
	Timestamp int64  `json:"timestamp"` // milliseconds since epoch
	Message   string `json:"message"`
}

// Time converts the millisecond timestamp.
func (l ToolLog) Time() time.Time {
	return time.UnixMilli(l.Timestamp)
}

// ToolLogsPage is one page of remote logs.
type ToolLogsPage struct {
	Logs      []ToolLog `json:"logs"`
	NextToken string    `json:"next_token"`
}

// ToolLogsRequest selects which logs to fetch.
type ToolLogsRequest struct {
	ProjectUUID string
	AgentKey    string
	ToolKey     string
	StartTime   string
	EndTime     string
	Pattern     string
	NextToken   string
}

// ToolLogs fetches one page of logs for a deployed tool. Pass the returned
// NextToken back in to page forward.
func (c *Client) ToolLogs(ctx context.Context, req ToolLogsRequest) (*ToolLogsPage, error) {
	query := url.Values{}
	query.Set("project_uuid", req.ProjectUUID)
	query.Set("agent_key", req.AgentKey)
	query.Set("tool_key", req.ToolKey)
	for name, value := range map[string]string{
		"start_time": req.StartTime,
		"end_time":   req.EndTime,
		"pattern":    req.Pattern,
		"next_token": req.NextToken,
	} {
		if value != "" {
			query.Set(name, value)
		}
	}

	var page ToolLogsPage
	if err := c.getJSON(ctx, c.cliBaseURL+"/api/v1/tool-logs?"+query.Encode(), &page); err != nil {
		return nil, fmt.Errorf("failed to fetch tool logs: %w", err)
	}
	return &page, nil
}

// Org is an organization with its projects.
type Org struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Projects []Project
}

// Project identifies one deployable project.
type Project struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// ListProjects returns every org visible to the token with its projects.
// With orgUUID set, only that org is listed.
func (c *Client) ListProjects(ctx context.Context, orgUUID string) ([]Org, error) {
	var orgs []Org
	if orgUUID != "" {
		var org Org
		if err := c.getJSON(ctx, c.platformBaseURL+"/v2/organizations/"+orgUUID+"/", &org); err != nil {
			return nil, fmt.Errorf("failed to get organization: %w", err)
		}
		orgs = []Org{org}
	} else {
		var list struct {
			Results []Org `json:"results"`
		}
		if err := c.getJSON(ctx, c.platformBaseURL+"/v2/organizations/", &list); err != nil {
			return nil, fmt.Errorf("failed to list organizations: %w", err)
		}
		orgs = list.Results
	}

	for i := range orgs {
		var list struct {
			Results []Project `json:"results"`
		}
		if err := c.getJSON(ctx, c.platformBaseURL+"/v2/organizations/"+orgs[i].UUID+"/projects", &list); err != nil {
			return nil, fmt.Errorf("failed to list projects of %s: %w", orgs[i].Name, err)
		}
		orgs[i].Projects = list.Results
	}
	return orgs, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readErrorBody(resp.Body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readErrorBody(r io.Reader) string {
	body, _ := io.ReadAll(io.LimitReader(r, 4*1024))
	return string(bytes.TrimSpace(body))
}
