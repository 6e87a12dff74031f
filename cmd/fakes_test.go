package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/desertthunder/a2yt/internal/services"
)

// stubSource serves a fixed Asana workspace with one user and one task.
type stubSource struct {
	mu    sync.Mutex
	calls map[string]int
}

func (s *stubSource) count(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[name]++
}

func (s *stubSource) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *stubSource) Me(ctx context.Context) (*services.AsanaUser, error) {
	return &services.AsanaUser{GID: "u1", Name: "Alice", Email: "alice@example.com"}, nil
}

func (s *stubSource) Workspaces(ctx context.Context) ([]services.AsanaWorkspace, error) {
	return []services.AsanaWorkspace{
		{GID: "ws0", Name: "Personal Projects"},
		{GID: "ws1", Name: "Acme Corp"},
	}, nil
}

func (s *stubSource) WorkspaceUsers(ctx context.Context, workspaceGID string) ([]services.AsanaUser, error) {
	return []services.AsanaUser{{GID: "u1", Name: "Alice"}}, nil
}

func (s *stubSource) User(ctx context.Context, gid string) (*services.AsanaUser, error) {
	if gid != "u1" {
		return nil, fmt.Errorf("user %s not found", gid)
	}
	return &services.AsanaUser{GID: "u1", Name: "Alice", Email: "alice@example.com"}, nil
}

func (s *stubSource) Projects(ctx context.Context, workspaceGID string, archived bool) ([]services.AsanaProject, error) {
	return nil, nil
}

func (s *stubSource) Project(ctx context.Context, gid string) (*services.AsanaProject, error) {
	return nil, fmt.Errorf("project %s not found", gid)
}

func (s *stubSource) Tasks(ctx context.Context, workspaceGID, assigneeGID string) ([]services.AsanaTask, error) {
	if assigneeGID != "u1" {
		return nil, nil
	}
	return []services.AsanaTask{{GID: "t1", Name: "Write docs"}}, nil
}

func (s *stubSource) TaskRaw(ctx context.Context, gid string) ([]byte, error) {
	s.count("TaskRaw")
	return json.Marshal(services.AsanaTask{
		GID:       gid,
		Name:      "Write docs",
		CreatedAt: "2024-01-02T03:04:05.000Z",
		Assignee:  &services.AsanaRef{GID: "u1", Name: "Alice"},
	})
}

func (s *stubSource) TaskStoriesRaw(ctx context.Context, taskGID string) ([]byte, error) {
	s.count("TaskStoriesRaw")
	return []byte(`[]`), nil
}

func (s *stubSource) StoryRaw(ctx context.Context, gid string) ([]byte, error) {
	return nil, fmt.Errorf("story %s not found", gid)
}

// stubDest is an in-memory YouTrack that keeps whatever is written to it.
type stubDest struct {
	mu       sync.Mutex
	projects []services.YouTrackProject
	users    []services.YouTrackUser
	fields   map[string]bool
	issues   []services.NewIssue
}

func newStubDest() *stubDest {
	return &stubDest{
		users:  []services.YouTrackUser{{Login: "root", FullName: "Admin", Email: "admin@example.com"}},
		fields: make(map[string]bool),
	}
}

func (d *stubDest) Login() string { return "root" }

func (d *stubDest) Projects(ctx context.Context) ([]services.YouTrackProject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]services.YouTrackProject(nil), d.projects...), nil
}

func (d *stubDest) Project(ctx context.Context, id string) (*services.YouTrackProject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.projects {
		if p.Key() == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (d *stubDest) CreateProject(ctx context.Context, project services.YouTrackProject) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.projects = append(d.projects, project)
	return nil
}

func (d *stubDest) Users(ctx context.Context) ([]services.YouTrackUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]services.YouTrackUser(nil), d.users...), nil
}

func (d *stubDest) User(ctx context.Context, login string) (*services.YouTrackUser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if u.Login == login {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s not found", login)
}

func (d *stubDest) ImportUsers(ctx context.Context, users []services.YouTrackUser) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = append(d.users, users...)
	return nil
}

func (d *stubDest) Subsystems(ctx context.Context, projectID string) ([]services.YouTrackSubsystem, error) {
	return nil, nil
}

func (d *stubDest) Subsystem(ctx context.Context, projectID, name string) (*services.YouTrackSubsystem, error) {
	return nil, nil
}

func (d *stubDest) CreateSubsystem(ctx context.Context, projectID string, subsystem services.YouTrackSubsystem) error {
	return nil
}

func (d *stubDest) CustomField(ctx context.Context, name string) (*services.YouTrackCustomField, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fields[name] {
		return &services.YouTrackCustomField{Name: name, Type: "string"}, nil
	}
	return nil, nil
}

func (d *stubDest) CreateCustomField(ctx context.Context, field services.YouTrackCustomField) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields[field.Name] = true
	return nil
}

func (d *stubDest) ProjectCustomField(ctx context.Context, projectID, name string) (*services.YouTrackProjectCustomField, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fields[projectID+"/"+name] {
		return &services.YouTrackProjectCustomField{Name: name, Type: "string"}, nil
	}
	return nil, nil
}

func (d *stubDest) CreateProjectCustomField(ctx context.Context, projectID, name, emptyText string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fields[projectID+"/"+name] = true
	return nil
}

func (d *stubDest) Issues(ctx context.Context, projectID, filter string, after, max int) ([]services.YouTrackIssue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if after > 0 {
		return nil, nil
	}

	var out []services.YouTrackIssue
	for _, issue := range d.issues {
		summary, _ := json.Marshal(issue.Summary)
		number, _ := json.Marshal(fmt.Sprint(issue.NumberInProject))
		out = append(out, services.YouTrackIssue{
			ID: fmt.Sprintf("%s-%d", projectID, issue.NumberInProject),
			Fields: []services.YouTrackField{
				{Name: "summary", Value: summary},
				{Name: "numberInProject", Value: number},
			},
		})
	}
	return out, nil
}

func (d *stubDest) ImportIssues(ctx context.Context, projectID string, issues []services.NewIssue, test bool) (*services.ImportResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := &services.ImportResult{}
	for _, issue := range issues {
		result.Items = append(result.Items, services.ImportItem{ID: fmt.Sprint(issue.NumberInProject), Imported: true})
	}
	if !test {
		d.issues = append(d.issues, issues...)
	}
	return result, nil
}

func (d *stubDest) Imported() []services.NewIssue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]services.NewIssue(nil), d.issues...)
}
