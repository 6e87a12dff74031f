// Asana API implementation of [Source]
//
// Asana REST API reference: https://developers.asana.com/reference/rest-api-reference
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"

	"github.com/desertthunder/a2yt/internal/shared"
)

const (
	AsanaBaseURL  = "https://app.asana.com/api/1.0"
	asanaPageSize = 100
)

type asanaNextPage struct {
	Offset string `json:"offset"`
}

// asanaEnvelope is the wrapper around every Asana response body.
type asanaEnvelope struct {
	Data     json.RawMessage `json:"data"`
	NextPage *asanaNextPage  `json:"next_page"`
}

// AsanaService implements [Source] over the Asana REST API using a personal access token.
type AsanaService struct {
	t *transport
}

// NewAsanaService creates an Asana client authenticated with a personal access token.
func NewAsanaService(token string, opts ClientOptions) (*AsanaService, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: asana personal access token", shared.ErrMissingCredentials)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = AsanaBaseURL
	}

	base := opts.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))

	return &AsanaService{t: newTransport("asana", client, opts)}, nil
}

// get fetches a single resource and returns the unwrapped data payload.
func (s *AsanaService) get(ctx context.Context, path string) (json.RawMessage, error) {
	body, err := s.t.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return nil, err
	}

	var env asanaEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return env.Data, nil
}

// list follows next_page offsets and returns every element of every page.
func (s *AsanaService) list(ctx context.Context, path string, query url.Values) ([]json.RawMessage, error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("limit", fmt.Sprint(asanaPageSize))

	var items []json.RawMessage
	for {
		body, err := s.t.do(ctx, request{method: http.MethodGet, path: path + "?" + query.Encode()})
		if err != nil {
			return nil, err
		}

		var env asanaEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		var page []json.RawMessage
		if err := json.Unmarshal(env.Data, &page); err != nil {
			return nil, fmt.Errorf("failed to decode page: %w", err)
		}
		items = append(items, page...)

		if env.NextPage == nil || env.NextPage.Offset == "" {
			return items, nil
		}
		query.Set("offset", env.NextPage.Offset)
	}
}

func decodeAll[T any](items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for _, raw := range items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode item: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeOne[T any](raw json.RawMessage, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &v, nil
}

// Me retrieves the user that owns the access token.
func (s *AsanaService) Me(ctx context.Context) (*AsanaUser, error) {
	return decodeOne[AsanaUser](s.get(ctx, "/users/me"))
}

// Workspaces lists every workspace visible to the token.
func (s *AsanaService) Workspaces(ctx context.Context) ([]AsanaWorkspace, error) {
	items, err := s.list(ctx, "/workspaces", nil)
	if err != nil {
		return nil, err
	}
	return decodeAll[AsanaWorkspace](items)
}

// WorkspaceUsers lists workspace members.
func (s *AsanaService) WorkspaceUsers(ctx context.Context, workspaceGID string) ([]AsanaUser, error) {
	items, err := s.list(ctx, "/workspaces/"+url.PathEscape(workspaceGID)+"/users", nil)
	if err != nil {
		return nil, err
	}
	return decodeAll[AsanaUser](items)
}

// User retrieves a full user profile including email.
func (s *AsanaService) User(ctx context.Context, gid string) (*AsanaUser, error) {
	return decodeOne[AsanaUser](s.get(ctx, "/users/"+url.PathEscape(gid)))
}

// Projects lists workspace projects filtered by archived state.
func (s *AsanaService) Projects(ctx context.Context, workspaceGID string, archived bool) ([]AsanaProject, error) {
	query := url.Values{}
	query.Set("workspace", workspaceGID)
	query.Set("archived", fmt.Sprint(archived))

	items, err := s.list(ctx, "/projects", query)
	if err != nil {
		return nil, err
	}
	return decodeAll[AsanaProject](items)
}

// Project retrieves a full project record.
func (s *AsanaService) Project(ctx context.Context, gid string) (*AsanaProject, error) {
	return decodeOne[AsanaProject](s.get(ctx, "/projects/"+url.PathEscape(gid)))
}

// Tasks lists tasks assigned to a user in a workspace.
func (s *AsanaService) Tasks(ctx context.Context, workspaceGID, assigneeGID string) ([]AsanaTask, error) {
	query := url.Values{}
	query.Set("workspace", workspaceGID)
	query.Set("assignee", assigneeGID)

	items, err := s.list(ctx, "/tasks", query)
	if err != nil {
		return nil, err
	}
	return decodeAll[AsanaTask](items)
}

// TaskRaw retrieves the full task record as raw JSON.
func (s *AsanaService) TaskRaw(ctx context.Context, gid string) ([]byte, error) {
	return s.get(ctx, "/tasks/"+url.PathEscape(gid))
}

// TaskStoriesRaw retrieves every story of a task as a raw JSON array.
func (s *AsanaService) TaskStoriesRaw(ctx context.Context, taskGID string) ([]byte, error) {
	items, err := s.list(ctx, "/tasks/"+url.PathEscape(taskGID)+"/stories", nil)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return json.Marshal(items)
}

// StoryRaw retrieves a full story record as raw JSON.
func (s *AsanaService) StoryRaw(ctx context.Context, gid string) ([]byte, error) {
	return s.get(ctx, "/stories/"+url.PathEscape(gid))
}
