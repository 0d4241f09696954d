package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	triageErrors "github.com/harunnryd/triage/internal/errors"
	"github.com/harunnryd/triage/internal/tracker"
)

const (
	defaultAsanaBaseURL = "https://app.asana.com/api/1.0"
	defaultAsanaTimeout = 15 * time.Second
	asanaPageLimit      = 100
	asanaMaxPages       = 10
	asanaItemFields     = "name,notes,completed,due_on,created_at,permalink_url,projects.name"
	maxResponseBytes    = 4 << 20
)

// AsanaAdapter talks to the Asana REST API as the token owner.
type AsanaAdapter struct {
	Client    *http.Client
	BaseURL   string
	Token     string
	Workspace string

	mu       sync.Mutex
	resolved string
}

func NewAsanaAdapter(token, workspace, baseURL string, timeout time.Duration) *AsanaAdapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultAsanaBaseURL
	}
	if timeout <= 0 {
		timeout = defaultAsanaTimeout
	}
	return &AsanaAdapter{
		Client:    &http.Client{Timeout: timeout},
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Token:     token,
		Workspace: workspace,
	}
}

var _ tracker.Tracker = (*AsanaAdapter)(nil)

func (a *AsanaAdapter) Name() string { return "asana" }

func (a *AsanaAdapter) Health(ctx context.Context) error {
	_, err := a.me(ctx)
	return err
}

type asanaTask struct {
	GID          string `json:"gid"`
	Name         string `json:"name"`
	Notes        string `json:"notes"`
	Completed    bool   `json:"completed"`
	DueOn        string `json:"due_on"`
	CreatedAt    string `json:"created_at"`
	PermalinkURL string `json:"permalink_url"`
	Projects     []struct {
		Name string `json:"name"`
	} `json:"projects"`
}

type asanaNextPage struct {
	Offset string `json:"offset"`
}

type asanaUser struct {
	GID        string `json:"gid"`
	Name       string `json:"name"`
	Workspaces []struct {
		GID string `json:"gid"`
	} `json:"workspaces"`
}

// ListAssignedItems returns the incomplete tasks assigned to the token owner.
func (a *AsanaAdapter) ListAssignedItems(ctx context.Context) ([]tracker.Item, error) {
	ws, err := a.workspaceID(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"assignee":        {"me"},
		"workspace":       {ws},
		"completed_since": {"now"},
		"opt_fields":      {asanaItemFields},
		"limit":           {fmt.Sprint(asanaPageLimit)},
	}

	var items []tracker.Item
	for page := 0; page < asanaMaxPages; page++ {
		var resp struct {
			Data     []asanaTask    `json:"data"`
			NextPage *asanaNextPage `json:"next_page"`
		}
		if err := a.do(ctx, http.MethodGet, "/tasks?"+query.Encode(), nil, &resp); err != nil {
			if len(items) > 0 {
				slog.Warn("Asana task listing incomplete", "kept", len(items), "error", err)
				return items, nil
			}
			return nil, err
		}
		for _, t := range resp.Data {
			items = append(items, toItem(t))
		}
		if resp.NextPage == nil || resp.NextPage.Offset == "" {
			break
		}
		query.Set("offset", resp.NextPage.Offset)
	}
	return items, nil
}

func (a *AsanaAdapter) ListCategories(ctx context.Context) ([]tracker.Category, error) {
	ws, err := a.workspaceID(ctx)
	if err != nil {
		return nil, err
	}
	query := url.Values{
		"workspace":  {ws},
		"archived":   {"false"},
		"opt_fields": {"name"},
		"limit":      {fmt.Sprint(asanaPageLimit)},
	}

	var resp struct {
		Data []struct {
			GID  string `json:"gid"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := a.do(ctx, http.MethodGet, "/projects?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	out := make([]tracker.Category, 0, len(resp.Data))
	for _, p := range resp.Data {
		out = append(out, tracker.Category{ID: p.GID, Name: p.Name})
	}
	return out, nil
}

func (a *AsanaAdapter) CompleteItem(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return triageErrors.InvalidInput("task id is required")
	}
	body := map[string]any{"data": map[string]any{"completed": true}}
	return a.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), body, nil)
}

// CreateItem creates a task assigned to the token owner. The category is
// matched against project names case-insensitively; an unknown category
// leaves the task without a project.
func (a *AsanaAdapter) CreateItem(ctx context.Context, title, category, notes string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", triageErrors.InvalidInput("task title is required")
	}
	ws, err := a.workspaceID(ctx)
	if err != nil {
		return "", err
	}

	data := map[string]any{
		"name":      title,
		"notes":     notes,
		"assignee":  "me",
		"workspace": ws,
	}
	if category = strings.TrimSpace(category); category != "" {
		categories, err := a.ListCategories(ctx)
		if err != nil {
			return "", err
		}
		if project, ok := findCategory(categories, category); ok {
			data["projects"] = []string{project.ID}
		} else {
			slog.Warn("Unknown Asana project, creating task without one", "project", category)
		}
	}

	var resp struct {
		Data struct {
			GID string `json:"gid"`
		} `json:"data"`
	}
	if err := a.do(ctx, http.MethodPost, "/tasks", map[string]any{"data": data}, &resp); err != nil {
		return "", err
	}
	if resp.Data.GID == "" {
		return "", triageErrors.Internal("asana returned no task id")
	}
	return resp.Data.GID, nil
}

func (a *AsanaAdapter) CreateSubItem(ctx context.Context, parentID, title string) error {
	if strings.TrimSpace(parentID) == "" || strings.TrimSpace(title) == "" {
		return triageErrors.InvalidInput("parent id and title are required")
	}
	body := map[string]any{"data": map[string]any{"name": title, "assignee": "me"}}
	return a.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(parentID)+"/subtasks", body, nil)
}

func (a *AsanaAdapter) me(ctx context.Context) (asanaUser, error) {
	var resp struct {
		Data asanaUser `json:"data"`
	}
	err := a.do(ctx, http.MethodGet, "/users/me?opt_fields=name,workspaces", nil, &resp)
	return resp.Data, err
}

// workspaceID returns the configured workspace or the first workspace of the
// token owner.
func (a *AsanaAdapter) workspaceID(ctx context.Context) (string, error) {
	if ws := strings.TrimSpace(a.Workspace); ws != "" {
		return ws, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.resolved != "" {
		return a.resolved, nil
	}

	me, err := a.me(ctx)
	if err != nil {
		return "", err
	}
	if len(me.Workspaces) == 0 {
		return "", triageErrors.Configuration("asana user has no workspace")
	}
	a.resolved = me.Workspaces[0].GID
	return a.resolved, nil
}

func (a *AsanaAdapter) do(ctx context.Context, method, path string, body any, out any) error {
	if strings.TrimSpace(a.Token) == "" {
		return triageErrors.Configuration("asana token is required (set ASANA_TOKEN or tracker.token)")
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := a.Client
	if client == nil {
		client = &http.Client{Timeout: defaultAsanaTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return triageErrors.WrapWithCategory(err, "asana request failed", triageErrors.ErrTransient)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return asanaError(method, path, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode asana response: %w", err)
	}
	return nil
}

// StatusError carries the HTTP status of a failed tracker request.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

func (e *StatusError) StatusCode() int { return e.Status }

func asanaError(method, path string, status int, body []byte) error {
	var payload struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	message := http.StatusText(status)
	if json.Unmarshal(body, &payload) == nil && len(payload.Errors) > 0 && payload.Errors[0].Message != "" {
		message = payload.Errors[0].Message
	}

	category := triageErrors.ErrConnectivity
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		category = triageErrors.ErrConfiguration
	case status == http.StatusNotFound:
		category = triageErrors.ErrNotFound
	case status == http.StatusBadRequest:
		category = triageErrors.ErrInvalidInput
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		category = triageErrors.ErrTransient
	}

	endpoint := path
	if i := strings.Index(endpoint, "?"); i >= 0 {
		endpoint = endpoint[:i]
	}
	return triageErrors.WrapWithCategory(&StatusError{Status: status, Message: message}, "asana "+method+" "+endpoint, category)
}

func toItem(t asanaTask) tracker.Item {
	item := tracker.Item{
		ID:        t.GID,
		Name:      strings.TrimSpace(t.Name),
		Notes:     t.Notes,
		Completed: t.Completed,
		URL:       t.PermalinkURL,
	}
	if len(t.Projects) > 0 {
		item.Project = t.Projects[0].Name
	}
	if due, err := time.Parse(time.DateOnly, t.DueOn); err == nil {
		item.Due = &due
	}
	if created, err := time.Parse(time.RFC3339, t.CreatedAt); err == nil {
		item.CreatedAt = created.UTC()
	}
	return item
}

func findCategory(categories []tracker.Category, name string) (tracker.Category, bool) {
	for _, c := range categories {
		if strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return c, true
		}
	}
	return tracker.Category{}, false
}
