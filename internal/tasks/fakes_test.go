package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/a2yt/internal/models"
	"github.com/desertthunder/a2yt/internal/services"
	"github.com/desertthunder/a2yt/internal/shared"
)

type fakeSource struct {
	mu sync.Mutex

	me         services.AsanaUser
	meErr      error
	workspaces []services.AsanaWorkspace
	users      []services.AsanaUser
	projects   []services.AsanaProject
	tasks      map[string][]services.AsanaTask // by assignee gid
	stories    map[string][]services.AsanaStory
	calls      map[string]int
	archived   []bool
}

func (f *fakeSource) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeSource) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSource) Me(ctx context.Context) (*services.AsanaUser, error) {
	if f.meErr != nil {
		return nil, f.meErr
	}
	return &f.me, nil
}

func (f *fakeSource) Workspaces(ctx context.Context) ([]services.AsanaWorkspace, error) {
	return f.workspaces, nil
}

func (f *fakeSource) WorkspaceUsers(ctx context.Context, workspaceGID string) ([]services.AsanaUser, error) {
	compact := make([]services.AsanaUser, 0, len(f.users))
	for _, u := range f.users {
		compact = append(compact, services.AsanaUser{GID: u.GID, Name: u.Name})
	}
	return compact, nil
}

func (f *fakeSource) User(ctx context.Context, gid string) (*services.AsanaUser, error) {
	for _, u := range f.users {
		if u.GID == gid {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("%w: user %s", shared.ErrNotFound, gid)
}

func (f *fakeSource) Projects(ctx context.Context, workspaceGID string, archived bool) ([]services.AsanaProject, error) {
	f.archived = append(f.archived, archived)
	var compact []services.AsanaProject
	for _, p := range f.projects {
		if p.Archived == archived {
			compact = append(compact, services.AsanaProject{GID: p.GID, Name: p.Name})
		}
	}
	return compact, nil
}

func (f *fakeSource) Project(ctx context.Context, gid string) (*services.AsanaProject, error) {
	for _, p := range f.projects {
		if p.GID == gid {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: project %s", shared.ErrNotFound, gid)
}

func (f *fakeSource) Tasks(ctx context.Context, workspaceGID, assigneeGID string) ([]services.AsanaTask, error) {
	var compact []services.AsanaTask
	for _, t := range f.tasks[assigneeGID] {
		compact = append(compact, services.AsanaTask{GID: t.GID, Name: t.Name})
	}
	return compact, nil
}

func (f *fakeSource) TaskRaw(ctx context.Context, gid string) ([]byte, error) {
	f.count("task")
	for _, tasks := range f.tasks {
		for _, t := range tasks {
			if t.GID == gid {
				return json.Marshal(t)
			}
		}
	}
	return nil, fmt.Errorf("%w: task %s", shared.ErrNotFound, gid)
}

func (f *fakeSource) TaskStoriesRaw(ctx context.Context, taskGID string) ([]byte, error) {
	f.count("task_stories")
	compact := []map[string]string{}
	for _, s := range f.stories[taskGID] {
		compact = append(compact, map[string]string{"gid": s.GID})
	}
	return json.Marshal(compact)
}

func (f *fakeSource) StoryRaw(ctx context.Context, gid string) ([]byte, error) {
	f.count("story")
	for _, stories := range f.stories {
		for _, s := range stories {
			if s.GID == gid {
				return json.Marshal(s)
			}
		}
	}
	return nil, fmt.Errorf("%w: story %s", shared.ErrNotFound, gid)
}

type fakeDest struct {
	login string

	projects      []services.YouTrackProject
	users         []services.YouTrackUser
	subsystems    map[string][]services.YouTrackSubsystem
	fields        map[string]services.YouTrackCustomField
	projectFields map[string][]string
	issues        map[string][]services.YouTrackIssue

	createdProjects   []services.YouTrackProject
	createdFields     []services.YouTrackCustomField
	attachedFields    []string
	importedUsers     [][]services.YouTrackUser
	createdSubsystems []services.YouTrackSubsystem
	imports           [][]services.NewIssue
	importTests       []bool
	importErr         error
}

func newFakeDest(login string) *fakeDest {
	return &fakeDest{
		login:         login,
		subsystems:    make(map[string][]services.YouTrackSubsystem),
		fields:        make(map[string]services.YouTrackCustomField),
		projectFields: make(map[string][]string),
		issues:        make(map[string][]services.YouTrackIssue),
	}
}

func (f *fakeDest) Login() string { return f.login }

func (f *fakeDest) Projects(ctx context.Context) ([]services.YouTrackProject, error) {
	return f.projects, nil
}

func (f *fakeDest) Project(ctx context.Context, id string) (*services.YouTrackProject, error) {
	for _, p := range f.projects {
		if p.Key() == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeDest) CreateProject(ctx context.Context, project services.YouTrackProject) error {
	f.createdProjects = append(f.createdProjects, project)
	f.projects = append(f.projects, project)
	return nil
}

func (f *fakeDest) Users(ctx context.Context) ([]services.YouTrackUser, error) {
	logins := make([]services.YouTrackUser, 0, len(f.users))
	for _, u := range f.users {
		logins = append(logins, services.YouTrackUser{Login: u.Login})
	}
	return logins, nil
}

func (f *fakeDest) User(ctx context.Context, login string) (*services.YouTrackUser, error) {
	for _, u := range f.users {
		if u.Login == login {
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeDest) ImportUsers(ctx context.Context, users []services.YouTrackUser) error {
	f.importedUsers = append(f.importedUsers, users)
	f.users = append(f.users, users...)
	return nil
}

func (f *fakeDest) Subsystems(ctx context.Context, projectID string) ([]services.YouTrackSubsystem, error) {
	names := make([]services.YouTrackSubsystem, 0, len(f.subsystems[projectID]))
	for _, s := range f.subsystems[projectID] {
		names = append(names, services.YouTrackSubsystem{Name: s.Name})
	}
	return names, nil
}

func (f *fakeDest) Subsystem(ctx context.Context, projectID, name string) (*services.YouTrackSubsystem, error) {
	for _, s := range f.subsystems[projectID] {
		if s.Name == name {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeDest) CreateSubsystem(ctx context.Context, projectID string, subsystem services.YouTrackSubsystem) error {
	f.createdSubsystems = append(f.createdSubsystems, subsystem)
	f.subsystems[projectID] = append(f.subsystems[projectID], subsystem)
	return nil
}

func (f *fakeDest) CustomField(ctx context.Context, name string) (*services.YouTrackCustomField, error) {
	if field, ok := f.fields[name]; ok {
		return &field, nil
	}
	return nil, nil
}

func (f *fakeDest) CreateCustomField(ctx context.Context, field services.YouTrackCustomField) error {
	f.createdFields = append(f.createdFields, field)
	f.fields[field.Name] = field
	return nil
}

func (f *fakeDest) ProjectCustomField(ctx context.Context, projectID, name string) (*services.YouTrackProjectCustomField, error) {
	if slices.Contains(f.projectFields[projectID], name) {
		return &services.YouTrackProjectCustomField{Name: name}, nil
	}
	return nil, nil
}

func (f *fakeDest) CreateProjectCustomField(ctx context.Context, projectID, name, emptyText string) error {
	f.attachedFields = append(f.attachedFields, projectID+"/"+name)
	f.projectFields[projectID] = append(f.projectFields[projectID], name)
	return nil
}

func (f *fakeDest) Issues(ctx context.Context, projectID, filter string, after, max int) ([]services.YouTrackIssue, error) {
	var matched []services.YouTrackIssue
	for _, issue := range f.issues[projectID] {
		if login, ok := strings.CutPrefix(filter, "Assignee: "); ok && issue.Field("Assignee") != login {
			continue
		}
		matched = append(matched, issue)
	}
	if after >= len(matched) {
		return nil, nil
	}
	return matched[after:min(after+max, len(matched))], nil
}

func (f *fakeDest) ImportIssues(ctx context.Context, projectID string, issues []services.NewIssue, test bool) (*services.ImportResult, error) {
	f.imports = append(f.imports, issues)
	f.importTests = append(f.importTests, test)
	if f.importErr != nil {
		return nil, f.importErr
	}
	if test {
		return &services.ImportResult{}, nil
	}

	for _, n := range issues {
		fields := map[string]string{
			"numberInProject": strconv.Itoa(n.NumberInProject),
			"summary":         n.Summary,
			"Assignee":        n.Assignee,
		}
		for k, v := range n.CustomFields {
			fields[k] = v
		}
		f.issues[projectID] = append(f.issues[projectID], existingIssue(fields))
	}
	return &services.ImportResult{}, nil
}

// existingIssue builds a destination issue from field values, skipping empty ones.
func existingIssue(fields map[string]string) services.YouTrackIssue {
	issue := services.YouTrackIssue{}
	for name, value := range fields {
		if value == "" {
			continue
		}
		issue.Fields = append(issue.Fields, services.YouTrackField{Name: name, Value: jsonString(value)})
	}
	return issue
}

type fakeRecorder struct {
	runs    []*models.MigrationRun
	updates int
}

func (r *fakeRecorder) Create(run *models.MigrationRun) error {
	run.SetID(fmt.Sprintf("run-%d", len(r.runs)+1))
	run.SetSequence(len(r.runs) + 1)
	r.runs = append(r.runs, run)
	return nil
}

func (r *fakeRecorder) Update(run *models.MigrationRun) error {
	r.updates++
	return nil
}

func ref(gid, name string) *services.AsanaRef {
	return &services.AsanaRef{GID: gid, Name: name}
}

// newFixture returns a source with one migratable workspace and an empty destination with an operator
// and one pre-existing user.
//
// Alice already has a YouTrack account, Bob does not and Nomail has no email.
func newFixture() (*fakeSource, *fakeDest) {
	src := &fakeSource{
		me: services.AsanaUser{GID: "u1", Name: "Alice Smith", Email: "alice@example.com"},
		workspaces: []services.AsanaWorkspace{
			{GID: "ws0", Name: "Personal Projects"},
			{GID: "ws1", Name: "Acme Corp", IsOrganization: true},
		},
		users: []services.AsanaUser{
			{GID: "u2", Name: "Bob  Jones", Email: "bob@example.com"},
			{GID: "u1", Name: "Alice Smith", Email: "alice@example.com"},
			{GID: "u3", Name: "Nomail"},
		},
		projects: []services.AsanaProject{
			{GID: "p1", Name: "Website", Archived: true, Owner: ref("u1", "Alice Smith")},
			{GID: "p2", Name: "Mobile App", Owner: ref("u2", "Bob  Jones")},
			{GID: "p3", Name: "Ops", Owner: ref("u9", "Former Employee")},
		},
		tasks: map[string][]services.AsanaTask{
			"u1": {
				{
					GID:         "t1",
					Name:        "Design homepage",
					Notes:       "Hero and footer",
					Completed:   true,
					CompletedAt: "2023-06-16T08:00:00.500Z",
					CreatedAt:   "2023-06-15T10:30:45.123456Z",
					ModifiedAt:  "2023-06-16T08:00:00.500Z",
					DueOn:       "2023-06-15",
					Assignee:    ref("u1", "Alice Smith"),
					Projects:    []services.AsanaRef{{GID: "p1", Name: "Website"}, {GID: "p2", Name: "Mobile App"}},
				},
				{
					GID:       "t2",
					Name:      "Fix login",
					CreatedAt: "2023-06-15T10:30:45.123456Z",
					Assignee:  ref("u1", "Alice Smith"),
				},
			},
			"u2": {
				{
					GID:       "t3",
					Name:      "Release v1",
					CreatedAt: "2023-07-01T00:00:00Z",
					Assignee:  ref("u2", "Bob  Jones"),
					Projects:  []services.AsanaRef{{GID: "p2", Name: "Mobile App"}},
				},
			},
		},
		stories: map[string][]services.AsanaStory{
			"t1": {
				{GID: "s1", Type: services.StoryTypeSystem, Text: "assigned to Alice Smith", CreatedBy: ref("u2", "Bob  Jones")},
				{GID: "s2", Type: services.StoryTypeComment, Text: "Looks good", CreatedAt: "2023-06-15T10:30:45.123456Z", CreatedBy: ref("u2", "Bob  Jones")},
				{GID: "s3", Type: services.StoryTypeComment, Text: "Ship it", CreatedAt: "2023-06-16T00:00:00Z", CreatedBy: ref("u9", "Former Employee")},
			},
		},
	}

	dst := newFakeDest("root")
	dst.users = []services.YouTrackUser{
		{Login: "root", FullName: "Administrator", Email: "admin@example.com"},
		{Login: "alice", FullName: "Alice Smith", Email: "alice@example.com"},
	}
	return src, dst
}
