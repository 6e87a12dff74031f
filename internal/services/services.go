// package services defines the Source and Destination interfaces for the two HTTP APIs
//
// Asana (source), YouTrack (destination)
package services

import (
	"context"
	"encoding/json"
	"strconv"
)

// Source defines the read-only operations consumed from the task-tracking service.
type Source interface {
	// Me returns the authenticated user. Used as an authentication check.
	Me(ctx context.Context) (*AsanaUser, error)

	// Workspaces lists every workspace visible to the token.
	Workspaces(ctx context.Context) ([]AsanaWorkspace, error)

	// WorkspaceUsers lists the members of a workspace (compact records, no email).
	WorkspaceUsers(ctx context.Context, workspaceGID string) ([]AsanaUser, error)

	// User retrieves a full user profile.
	User(ctx context.Context, gid string) (*AsanaUser, error)

	// Projects lists the projects of a workspace with the given archived flag.
	Projects(ctx context.Context, workspaceGID string, archived bool) ([]AsanaProject, error)

	// Project retrieves a full project record including its owner.
	Project(ctx context.Context, gid string) (*AsanaProject, error)

	// Tasks lists the tasks assigned to a user within a workspace (compact records).
	Tasks(ctx context.Context, workspaceGID, assigneeGID string) ([]AsanaTask, error)

	// TaskRaw, TaskStoriesRaw and StoryRaw return the unwrapped data payload verbatim so it can be cached.
	TaskRaw(ctx context.Context, gid string) ([]byte, error)
	TaskStoriesRaw(ctx context.Context, taskGID string) ([]byte, error)
	StoryRaw(ctx context.Context, gid string) ([]byte, error)
}

// Destination defines the operations consumed from the issue tracker.
//
// Existence queries ([Destination.Project], [Destination.CustomField], [Destination.ProjectCustomField])
// return nil with a nil error when the record does not exist.
type Destination interface {
	// Login returns the operator login used for authentication.
	Login() string

	Projects(ctx context.Context) ([]YouTrackProject, error)
	Project(ctx context.Context, id string) (*YouTrackProject, error)
	CreateProject(ctx context.Context, project YouTrackProject) error

	Users(ctx context.Context) ([]YouTrackUser, error)
	User(ctx context.Context, login string) (*YouTrackUser, error)
	ImportUsers(ctx context.Context, users []YouTrackUser) error

	Subsystems(ctx context.Context, projectID string) ([]YouTrackSubsystem, error)
	Subsystem(ctx context.Context, projectID, name string) (*YouTrackSubsystem, error)
	CreateSubsystem(ctx context.Context, projectID string, subsystem YouTrackSubsystem) error

	CustomField(ctx context.Context, name string) (*YouTrackCustomField, error)
	CreateCustomField(ctx context.Context, field YouTrackCustomField) error
	ProjectCustomField(ctx context.Context, projectID, name string) (*YouTrackProjectCustomField, error)
	CreateProjectCustomField(ctx context.Context, projectID, name, emptyText string) error

	// Issues lists issues in a project matching a search query, starting at offset after.
	Issues(ctx context.Context, projectID, filter string, after, max int) ([]YouTrackIssue, error)

	// ImportIssues bulk-imports issues. When test is true the server validates without writing.
	ImportIssues(ctx context.Context, projectID string, issues []NewIssue, test bool) (*ImportResult, error)
}

// AsanaRef is the compact form of any Asana resource.
type AsanaRef struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

// AsanaUser represents an Asana user. Email is only present on full records.
type AsanaUser struct {
	GID   string `json:"gid"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AsanaWorkspace represents an Asana workspace or organization.
type AsanaWorkspace struct {
	GID            string `json:"gid"`
	Name           string `json:"name"`
	IsOrganization bool   `json:"is_organization"`
}

// AsanaProject represents an Asana project. Owner is nil on compact records and on ownerless projects.
type AsanaProject struct {
	GID      string    `json:"gid"`
	Name     string    `json:"name"`
	Archived bool      `json:"archived"`
	Owner    *AsanaRef `json:"owner"`
}

// AsanaTask represents an Asana task.
//
// Timestamps are kept as the raw ISO-8601 strings returned by the API; DueOn is a date-only string.
type AsanaTask struct {
	GID         string     `json:"gid"`
	Name        string     `json:"name"`
	Notes       string     `json:"notes"`
	Completed   bool       `json:"completed"`
	CompletedAt string     `json:"completed_at"`
	CreatedAt   string     `json:"created_at"`
	ModifiedAt  string     `json:"modified_at"`
	DueOn       string     `json:"due_on"`
	Assignee    *AsanaRef  `json:"assignee"`
	Projects    []AsanaRef `json:"projects"`
}

// AsanaStory represents an activity entry on a task: a comment or a system event.
type AsanaStory struct {
	GID       string    `json:"gid"`
	Type      string    `json:"type"`
	Text      string    `json:"text"`
	CreatedAt string    `json:"created_at"`
	CreatedBy *AsanaRef `json:"created_by"`
}

const (
	StoryTypeComment = "comment"
	StoryTypeSystem  = "system"
)

// YouTrackUser represents a YouTrack user account.
type YouTrackUser struct {
	Login    string `json:"login"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

// YouTrackProject represents a YouTrack project. ID is the short name used in issue IDs.
type YouTrackProject struct {
	ID          string `json:"id"`
	ShortName   string `json:"shortName"`
	Name        string `json:"name"`
	Lead        string `json:"lead"`
	Description string `json:"description"`
}

// Key returns the project short name regardless of which endpoint produced the record.
func (p YouTrackProject) Key() string {
	if p.ShortName != "" {
		return p.ShortName
	}
	return p.ID
}

// YouTrackSubsystem represents a subsystem within a project.
type YouTrackSubsystem struct {
	Name            string `json:"name"`
	IsDefault       bool   `json:"isDefault"`
	DefaultAssignee string `json:"defaultAssignee"`
}

// YouTrackCustomField represents a global custom field prototype.
type YouTrackCustomField struct {
	Name             string `json:"name"`
	Type             string `json:"type"`
	IsPrivate        bool   `json:"isPrivate"`
	VisibleByDefault bool   `json:"visibleByDefault"`
}

// YouTrackProjectCustomField represents a custom field attached to a project.
type YouTrackProjectCustomField struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	EmptyText string `json:"emptyText"`
}

// YouTrackField is a single named field on an existing issue.
//
// Value holds either a JSON string or an array of strings/objects depending on the field type.
type YouTrackField struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// YouTrackIssue represents an existing issue as returned by the legacy REST API.
type YouTrackIssue struct {
	ID     string          `json:"id"`
	Fields []YouTrackField `json:"field"`
}

// Field returns the first value of the named field, or "" when the field is absent.
func (i YouTrackIssue) Field(name string) string {
	for _, f := range i.Fields {
		if f.Name == name {
			return fieldValue(f.Value)
		}
	}
	return ""
}

// Summary returns the issue summary.
func (i YouTrackIssue) Summary() string {
	return i.Field("summary")
}

// NumberInProject returns the issue's sequence number, or 0 when absent or malformed.
func (i YouTrackIssue) NumberInProject() int {
	n, err := strconv.Atoi(i.Field("numberInProject"))
	if err != nil {
		return 0
	}
	return n
}

func fieldValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		if err := json.Unmarshal(list[0], &s); err == nil {
			return s
		}
		var obj struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(list[0], &obj); err == nil {
			return obj.Value
		}
	}
	return ""
}

// NewIssue is an issue to be created through the bulk import endpoint.
type NewIssue struct {
	NumberInProject int
	Summary         string
	Description     string
	State           string
	Assignee        string
	ReporterName    string
	Subsystem       string
	Created         string
	Updated         string
	Resolved        string
	// CustomFields holds project custom field values keyed by field name (external ID, due date).
	CustomFields map[string]string
	Comments     []NewComment
}

// NewComment is a comment attached to a [NewIssue].
type NewComment struct {
	Author  string
	Text    string
	Created string
}

// ImportResult reports per-issue outcomes of a bulk import.
type ImportResult struct {
	Items []ImportItem
}

// ImportItem is the outcome for a single imported record.
type ImportItem struct {
	ID       string
	Imported bool
	Errors   []string
}

// Failed returns the items the server rejected.
func (r *ImportResult) Failed() []ImportItem {
	if r == nil {
		return nil
	}
	var failed []ImportItem
	for _, item := range r.Items {
		if !item.Imported || len(item.Errors) > 0 {
			failed = append(failed, item)
		}
	}
	return failed
}
