package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcli/internal/store"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(&store.Settings{
		Token:           "test-token",
		CLIBaseURL:      srv.URL,
		PlatformBaseURL: srv.URL,
	})
}

func TestPushAgentsStreamsProgress(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "get_address.zip")
	require.NoError(t, os.WriteFile(archive, []byte("PK"), 0644))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "proj-uuid", r.FormValue("project_uuid"))
		assert.Contains(t, r.FormValue("definition"), "agents")
		assert.Equal(t, "3.2.0", r.FormValue("toolkit_version"))

		_, _, err := r.FormFile("cep_agent:get_address")
		require.NoError(t, err)

		fmt.Fprintln(w, `{"success": true, "progress": 0.5, "message": "Processing agents"}`)
		fmt.Fprintln(w, `{"success": true, "progress": 1.0, "message": "Agents deployed"}`)
	})

	c := newTestClient(t, handler)
	var messages []string
	err := c.PushAgents(context.Background(), PushRequest{
		ProjectUUID:    "proj-uuid",
		Definition:     map[string]any{"agents": map[string]any{}},
		ToolkitVersion: "3.2.0",
		Archives:       map[string]string{"cep_agent:get_address": archive},
	}, func(p PushProgress) {
		messages = append(messages, p.Message)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Processing agents", "Agents deployed"}, messages)
}

func TestPushAgentsFailureLineAborts(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"success": true, "progress": 0.3, "message": "Validating"}`)
		fmt.Fprintln(w, `{"success": false, "message": "Invalid agent definition", "request_id": "req-9"}`)
	})

	c := newTestClient(t, handler)
	err := c.PushAgents(context.Background(), PushRequest{ProjectUUID: "p"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid agent definition")
	assert.Contains(t, err.Error(), "req-9")
}

func TestPushAgentsNon200(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	})

	c := newTestClient(t, handler)
	err := c.PushAgents(context.Background(), PushRequest{ProjectUUID: "p"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}

func TestToolLogsPagination(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tool-logs", r.URL.Path)
		assert.Equal(t, "proj-uuid", r.URL.Query().Get("project_uuid"))
		assert.Equal(t, "cep_agent", r.URL.Query().Get("agent_key"))

		if r.URL.Query().Get("next_token") == "" {
			fmt.Fprintln(w, `{"logs": [{"timestamp": 1756100000000, "message": "looked up cep"}], "next_token": "page-2"}`)
			return
		}
		fmt.Fprintln(w, `{"logs": [{"timestamp": 1756100001000, "message": "done"}]}`)
	})

	c := newTestClient(t, handler)
	req := ToolLogsRequest{ProjectUUID: "proj-uuid", AgentKey: "cep_agent", ToolKey: "get_address"}

	page, err := c.ToolLogs(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, page.Logs, 1)
	assert.Equal(t, "looked up cep", page.Logs[0].Message)
	assert.Equal(t, "page-2", page.NextToken)
	assert.Equal(t, int64(1756100000000), page.Logs[0].Timestamp)

	req.NextToken = page.NextToken
	page, err = c.ToolLogs(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, page.NextToken)
}

func TestListProjectsAggregatesOrgs(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/organizations/":
			fmt.Fprintln(w, `{"results": [{"uuid": "org-1", "name": "Acme"}]}`)
		case "/v2/organizations/org-1/projects":
			fmt.Fprintln(w, `{"results": [{"uuid": "proj-1", "name": "Support"}, {"uuid": "proj-2", "name": "Sales"}]}`)
		default:
			http.NotFound(w, r)
		}
	})

	c := newTestClient(t, handler)
	orgs, err := c.ListProjects(context.Background(), "")
	require.NoError(t, err)

	require.Len(t, orgs, 1)
	assert.Equal(t, "Acme", orgs[0].Name)
	require.Len(t, orgs[0].Projects, 2)
	assert.Equal(t, "Support", orgs[0].Projects[0].Name)
}
