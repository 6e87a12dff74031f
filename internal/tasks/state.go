package tasks

import (
	"encoding/json"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/a2yt/internal/identity"
	"github.com/desertthunder/a2yt/internal/services"
)

// RunState holds the identity maps and sequence counter for one workspace migration.
//
// It is rebuilt on every run and only touched by the orchestrating goroutine.
type RunState struct {
	ProjectID string
	// ProjectExists is false only in dry-run mode when the destination project would have been created.
	ProjectExists bool

	Users       *identity.Map[services.AsanaUser, services.YouTrackUser]
	Subsystems  *identity.Map[services.AsanaProject, services.YouTrackSubsystem]
	Tasks       *identity.Map[services.AsanaTask, services.YouTrackIssue]
	ExternalIDs *identity.Map[services.AsanaTask, services.YouTrackIssue]

	externalIDField string
	emails          map[string]string // source user gid → email
	sequence        int
}

// NewRunState creates empty maps for a migration into projectID.
func NewRunState(projectID, externalIDField string, logger *log.Logger) *RunState {
	return &RunState{
		ProjectID:       projectID,
		ProjectExists:   true,
		Users:           identity.New[services.AsanaUser, services.YouTrackUser]("users", logger),
		Subsystems:      identity.New[services.AsanaProject, services.YouTrackSubsystem]("subsystems", logger),
		Tasks:           identity.New[services.AsanaTask, services.YouTrackIssue]("tasks", logger),
		ExternalIDs:     identity.New[services.AsanaTask, services.YouTrackIssue]("external_ids", logger),
		externalIDField: externalIDField,
		emails:          make(map[string]string),
	}
}

// AddSourceUsers merges full source profiles into the user map and indexes them by GID.
func (s *RunState) AddSourceUsers(users []services.AsanaUser) {
	for _, u := range users {
		if u.Email != "" {
			s.emails[u.GID] = u.Email
		}
	}
	s.Users.MergeSource(users, asanaUserEmail)
}

// AddDestUsers merges destination users into the user map.
func (s *RunState) AddDestUsers(users []services.YouTrackUser) {
	s.Users.MergeDest(users, youTrackUserEmail)
}

// SourceUsers returns the source users with an email, ordered by GID.
func (s *RunState) SourceUsers() []services.AsanaUser {
	var users []services.AsanaUser
	for _, key := range s.Users.Keys() {
		if u := s.Users.Source(key); u != nil {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].GID < users[j].GID })
	return users
}

// LoginFor resolves a source user GID to a destination login through the user's email.
func (s *RunState) LoginFor(gid string) (string, bool) {
	email, ok := s.emails[gid]
	if !ok {
		return "", false
	}
	e, ok := s.Users.Get(email)
	if !ok || e.Dest == nil || e.Dest.Login == "" {
		return "", false
	}
	return e.Dest.Login, true
}

// AddIssues merges existing destination issues by summary and by external ID, raising the
// sequence counter to the highest number seen.
func (s *RunState) AddIssues(issues []services.YouTrackIssue) {
	s.Tasks.MergeDest(issues, issueSummary)
	s.ExternalIDs.MergeDest(issues, issueField(s.externalIDField))
	for _, issue := range issues {
		s.Observe(issue.NumberInProject())
	}
}

// AddTasks merges source task details by name and by GID.
func (s *RunState) AddTasks(tasks []services.AsanaTask) {
	s.Tasks.MergeSource(tasks, taskName)
	s.ExternalIDs.MergeSource(tasks, taskGID)
}

// Migrated reports whether a task already has a destination counterpart and which key matched.
func (s *RunState) Migrated(task services.AsanaTask) (string, bool) {
	if task.GID != "" && s.ExternalIDs.HasDest(task.GID) {
		return SkipExternalID, true
	}
	if task.Name != "" && s.Tasks.HasDest(task.Name) {
		return SkipSummary, true
	}
	return "", false
}

// MarkImported records the GID of a task whose issue was built in this run so a task listed again is skipped.
//
// The summary is not recorded: distinct tasks may share a name and each gets its own issue.
func (s *RunState) MarkImported(task services.AsanaTask) {
	record := services.YouTrackIssue{Fields: []services.YouTrackField{
		{Name: s.externalIDField, Value: jsonString(task.GID)},
	}}
	s.ExternalIDs.MergeDest([]services.YouTrackIssue{record}, issueField(s.externalIDField))
}

// Observe raises the sequence counter to n.
func (s *RunState) Observe(n int) {
	if n > s.sequence {
		s.sequence = n
	}
}

// Next returns the next sequence number.
func (s *RunState) Next() int {
	s.sequence++
	return s.sequence
}

// Sequence returns the highest number allocated or observed so far.
func (s *RunState) Sequence() int {
	return s.sequence
}

func asanaUserEmail(u services.AsanaUser) (string, bool) { return u.Email, u.Email != "" }
func youTrackUserEmail(u services.YouTrackUser) (string, bool) { return u.Email, u.Email != "" }
func projectName(p services.AsanaProject) (string, bool) { return p.Name, p.Name != "" }
func subsystemName(s services.YouTrackSubsystem) (string, bool) { return s.Name, s.Name != "" }
func taskName(t services.AsanaTask) (string, bool) { return t.Name, t.Name != "" }
func taskGID(t services.AsanaTask) (string, bool) { return t.GID, t.GID != "" }

func issueSummary(i services.YouTrackIssue) (string, bool) {
	s := i.Summary()
	return s, s != ""
}

func issueField(name string) identity.KeyFunc[services.YouTrackIssue] {
	return func(i services.YouTrackIssue) (string, bool) {
		v := i.Field(name)
		return v, v != ""
	}
}

func jsonString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
