// YouTrack legacy REST API implementation of [Destination]
//
// Endpoints are the /rest/admin, /rest/import and /rest/issue families. Reads are JSON, imports are XML.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/desertthunder/a2yt/internal/shared"
)

// YouTrackCredentials selects the authentication mode: a permanent Token, or Login + Password.
type YouTrackCredentials struct {
	Login    string
	Password string
	Token    string
}

// YouTrackService implements [Destination] over the YouTrack legacy REST API.
type YouTrackService struct {
	t             *transport
	creds         YouTrackCredentials
	login         string
	authenticated bool
}

// NewYouTrackService creates a YouTrack client. Call [YouTrackService.Authenticate] before any other method.
func NewYouTrackService(creds YouTrackCredentials, opts ClientOptions) (*YouTrackService, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: youtrack url", shared.ErrMissingCredentials)
	}
	if creds.Token == "" && (creds.Login == "" || creds.Password == "") {
		return nil, fmt.Errorf("%w: youtrack token or login and password", shared.ErrMissingCredentials)
	}

	base := opts.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}

	var client *http.Client
	if creds.Token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"}))
	} else {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client = &http.Client{Transport: base.Transport, Jar: jar}
	}

	return &YouTrackService{
		t:     newTransport("youtrack", client, opts),
		creds: creds,
		login: creds.Login,
	}, nil
}

// Authenticate opens a cookie session for password credentials, or resolves the operator login for token credentials.
func (s *YouTrackService) Authenticate(ctx context.Context) error {
	if s.creds.Token == "" {
		form := url.Values{}
		form.Set("login", s.creds.Login)
		form.Set("password", s.creds.Password)

		_, err := s.t.do(ctx, request{
			method:      http.MethodPost,
			path:        "/rest/user/login",
			body:        []byte(form.Encode()),
			contentType: "application/x-www-form-urlencoded",
			accept:      "application/xml",
		})
		if err != nil {
			return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
		}
		s.authenticated = true
		return nil
	}

	var me YouTrackUser
	if err := s.getJSON(ctx, "/rest/user/current", &me); err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	if s.login == "" {
		s.login = me.Login
	}
	s.authenticated = true
	return nil
}

// Login returns the operator login.
func (s *YouTrackService) Login() string {
	return s.login
}

func (s *YouTrackService) getJSON(ctx context.Context, path string, result any) error {
	body, err := s.t.do(ctx, request{method: http.MethodGet, path: path})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (s *YouTrackService) put(ctx context.Context, path string, query url.Values, body []byte) ([]byte, error) {
	if !s.authenticated {
		return nil, shared.ErrNotAuthenticated
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	r := request{method: http.MethodPut, path: path, accept: "application/xml"}
	if body != nil {
		r.body = body
		r.contentType = "application/xml; charset=UTF-8"
	}
	return s.t.do(ctx, r)
}

// lookup runs an existence query: a 404 yields (nil, nil), any other failure is returned.
func lookup[T any](ctx context.Context, s *YouTrackService, path string) (*T, error) {
	var v T
	err := s.getJSON(ctx, path, &v)
	if err == nil {
		return &v, nil
	}
	if IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}

func escape(segment string) string {
	return url.PathEscape(segment)
}

// Projects lists every project visible to the operator.
func (s *YouTrackService) Projects(ctx context.Context) ([]YouTrackProject, error) {
	var projects []YouTrackProject
	if err := s.getJSON(ctx, "/rest/project/all", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Project retrieves a project by short name, or nil when it does not exist.
func (s *YouTrackService) Project(ctx context.Context, id string) (*YouTrackProject, error) {
	return lookup[YouTrackProject](ctx, s, "/rest/admin/project/"+escape(id))
}

// CreateProject creates a project numbered from 1.
func (s *YouTrackService) CreateProject(ctx context.Context, project YouTrackProject) error {
	query := url.Values{}
	query.Set("projectName", project.Name)
	query.Set("startingNumber", "1")
	query.Set("projectLeadLogin", project.Lead)
	query.Set("description", project.Description)

	_, err := s.put(ctx, "/rest/admin/project/"+escape(project.Key()), query, nil)
	return err
}

// Users lists every user login. The endpoint pages by start offset until an empty page.
func (s *YouTrackService) Users(ctx context.Context) ([]YouTrackUser, error) {
	var users []YouTrackUser
	seen := make(map[string]bool)
	for start := 0; ; {
		var page []YouTrackUser
		if err := s.getJSON(ctx, fmt.Sprintf("/rest/admin/user?start=%d", start), &page); err != nil {
			return nil, err
		}

		added := 0
		for _, u := range page {
			if seen[u.Login] {
				continue
			}
			seen[u.Login] = true
			users = append(users, u)
			added++
		}
		if len(page) == 0 || added == 0 {
			return users, nil
		}
		start += len(page)
	}
}

// User retrieves a full user record including email.
func (s *YouTrackService) User(ctx context.Context, login string) (*YouTrackUser, error) {
	var user YouTrackUser
	if err := s.getJSON(ctx, "/rest/admin/user/"+escape(login), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ImportUsers bulk-creates users.
func (s *YouTrackService) ImportUsers(ctx context.Context, users []YouTrackUser) error {
	if len(users) == 0 {
		return nil
	}

	body, err := marshalUsers(users)
	if err != nil {
		return err
	}

	resp, err := s.put(ctx, "/rest/import/users", nil, body)
	if err != nil {
		return err
	}

	result, err := parseImportResult(resp)
	if err != nil {
		return err
	}
	return rejected("users", result)
}

// Subsystems lists the subsystems of a project (names only).
func (s *YouTrackService) Subsystems(ctx context.Context, projectID string) ([]YouTrackSubsystem, error) {
	var subsystems []YouTrackSubsystem
	if err := s.getJSON(ctx, "/rest/admin/project/"+escape(projectID)+"/subsystem", &subsystems); err != nil {
		return nil, err
	}
	return subsystems, nil
}

// Subsystem retrieves a subsystem with its default assignee.
func (s *YouTrackService) Subsystem(ctx context.Context, projectID, name string) (*YouTrackSubsystem, error) {
	var subsystem YouTrackSubsystem
	path := "/rest/admin/project/" + escape(projectID) + "/subsystem/" + escape(name)
	if err := s.getJSON(ctx, path, &subsystem); err != nil {
		return nil, err
	}
	return &subsystem, nil
}

// CreateSubsystem creates a subsystem. An empty DefaultAssignee leaves the subsystem unassigned.
func (s *YouTrackService) CreateSubsystem(ctx context.Context, projectID string, subsystem YouTrackSubsystem) error {
	query := url.Values{}
	query.Set("isDefault", fmt.Sprint(subsystem.IsDefault))
	if subsystem.DefaultAssignee != "" {
		query.Set("defaultAssignee", subsystem.DefaultAssignee)
	}

	path := "/rest/admin/project/" + escape(projectID) + "/subsystem/" + escape(subsystem.Name)
	_, err := s.put(ctx, path, query, nil)
	return err
}

// CustomField retrieves a global custom field prototype, or nil when it does not exist.
func (s *YouTrackService) CustomField(ctx context.Context, name string) (*YouTrackCustomField, error) {
	return lookup[YouTrackCustomField](ctx, s, "/rest/admin/customfield/field/"+escape(name))
}

// CreateCustomField creates a global custom field prototype.
func (s *YouTrackService) CreateCustomField(ctx context.Context, field YouTrackCustomField) error {
	query := url.Values{}
	query.Set("type", field.Type)
	query.Set("isPrivate", fmt.Sprint(field.IsPrivate))
	query.Set("defaultVisibility", fmt.Sprint(field.VisibleByDefault))

	_, err := s.put(ctx, "/rest/admin/customfield/field/"+escape(field.Name), query, nil)
	return err
}

// ProjectCustomField retrieves a project's custom field, or nil when it is not attached.
func (s *YouTrackService) ProjectCustomField(ctx context.Context, projectID, name string) (*YouTrackProjectCustomField, error) {
	path := "/rest/admin/project/" + escape(projectID) + "/customfield/" + escape(name)
	return lookup[YouTrackProjectCustomField](ctx, s, path)
}

// CreateProjectCustomField attaches an existing custom field prototype to a project.
func (s *YouTrackService) CreateProjectCustomField(ctx context.Context, projectID, name, emptyText string) error {
	query := url.Values{}
	query.Set("emptyFieldText", emptyText)

	path := "/rest/admin/project/" + escape(projectID) + "/customfield/" + escape(name)
	_, err := s.put(ctx, path, query, nil)
	return err
}

// Issues lists issues in a project matching filter.
func (s *YouTrackService) Issues(ctx context.Context, projectID, filter string, after, max int) ([]YouTrackIssue, error) {
	query := url.Values{}
	query.Set("filter", filter)
	query.Set("after", fmt.Sprint(after))
	query.Set("max", fmt.Sprint(max))

	var issues []YouTrackIssue
	path := "/rest/issue/byproject/" + escape(projectID) + "?" + query.Encode()
	if err := s.getJSON(ctx, path, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// ImportIssues bulk-imports issues. Rejected items are reported through the returned error.
func (s *YouTrackService) ImportIssues(ctx context.Context, projectID string, issues []NewIssue, test bool) (*ImportResult, error) {
	if len(issues) == 0 {
		return &ImportResult{}, nil
	}

	body, err := marshalIssues(issues)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("test", fmt.Sprint(test))

	resp, err := s.put(ctx, "/rest/import/"+escape(projectID)+"/issues", query, body)
	if err != nil {
		return nil, err
	}

	result, err := parseImportResult(resp)
	if err != nil {
		return nil, err
	}
	return result, rejected("issues", result)
}

func rejected(kind string, result *ImportResult) error {
	failed := result.Failed()
	if len(failed) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(failed))
	for _, item := range failed {
		msgs = append(msgs, fmt.Sprintf("%s: %s", item.ID, strings.Join(item.Errors, "; ")))
	}
	return fmt.Errorf("%w: %d %s: %s", shared.ErrImportRejected, len(failed), kind, strings.Join(msgs, ", "))
}

var _ Destination = (*YouTrackService)(nil)
var _ Source = (*AsanaService)(nil)

// errUnexpectedBody is returned when an import response cannot be parsed.
var errUnexpectedBody = errors.New("unexpected response body")
