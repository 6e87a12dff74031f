package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/a2yt/internal/shared"
)

func newAsanaTestServer(t *testing.T, handler http.HandlerFunc) (*AsanaService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	srv, err := NewAsanaService("test-pat", ClientOptions{BaseURL: server.URL, HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("failed to create asana service: %v", err)
	}
	return srv, server
}

func TestAsanaService(t *testing.T) {
	t.Run("NewAsanaService Missing Token", func(t *testing.T) {
		_, err := NewAsanaService("", ClientOptions{})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Me Sends Bearer Token", func(t *testing.T) {
		srv, _ := newAsanaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test-pat" {
				t.Errorf("expected bearer token, got %q", got)
			}
			if r.URL.Path != "/users/me" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"data":{"gid":"1","name":"Jane Doe","email":"jane@example.com"}}`))
		})

		me, err := srv.Me(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if me.Name != "Jane Doe" || me.Email != "jane@example.com" {
			t.Errorf("unexpected user %+v", me)
		}
	})

	t.Run("Workspaces Follows Pagination", func(t *testing.T) {
		calls := 0
		srv, _ := newAsanaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			if r.URL.Query().Get("limit") != "100" {
				t.Errorf("expected limit=100, got %s", r.URL.RawQuery)
			}
			switch r.URL.Query().Get("offset") {
			case "":
				w.Write([]byte(`{"data":[{"gid":"1","name":"Acme"}],"next_page":{"offset":"abc"}}`))
			case "abc":
				w.Write([]byte(`{"data":[{"gid":"2","name":"Personal Projects"}],"next_page":null}`))
			default:
				t.Errorf("unexpected offset %s", r.URL.Query().Get("offset"))
			}
		})

		workspaces, err := srv.Workspaces(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(workspaces) != 2 {
			t.Fatalf("expected 2 workspaces, got %d", len(workspaces))
		}
		if workspaces[1].Name != "Personal Projects" {
			t.Errorf("expected second page workspace, got %s", workspaces[1].Name)
		}
		if calls != 2 {
			t.Errorf("expected 2 requests, got %d", calls)
		}
	})

	t.Run("Projects Passes Archived Filter", func(t *testing.T) {
		srv, _ := newAsanaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("workspace") != "ws1" || q.Get("archived") != "true" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"data":[{"gid":"p1","name":"Old"}]}`))
		})

		projects, err := srv.Projects(context.Background(), "ws1", true)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(projects) != 1 || projects[0].Name != "Old" {
			t.Errorf("unexpected projects %+v", projects)
		}
	})

	t.Run("Project With Owner", func(t *testing.T) {
		srv, _ := newAsanaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":{"gid":"p1","name":"Backend","archived":false,"owner":{"gid":"u1","name":"Jane"}}}`))
		})

		project, err := srv.Project(context.Background(), "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if project.Owner == nil || project.Owner.GID != "u1" {
			t.Errorf("expected owner u1, got %+v", project.Owner)
		}
	})

	t.Run("Tasks Filters By Assignee", func(t *testing.T) {
		srv, _ := newAsanaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("workspace") != "ws1" || q.Get("assignee") != "u1" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"data":[{"gid":"t1","name":"Fix login"},{"gid":"t2","name":"Ship"}]}`))
		})

		tasks, err := srv.Tasks(context.Background(), "ws1", "u1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tasks) != 2 {
			t.Errorf("expected 2 tasks, got %d", len(tasks))
		}
	})

	t.Run("TaskRaw Returns Data Payload", func(t *testing.T) {
		srv, _ := newAsanaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":{"gid":"t1","name":"Fix login","due_on":null}}`))
		})

		raw, err := srv.TaskRaw(context.Background(), "t1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var task AsanaTask
		if err := json.Unmarshal(raw, &task); err != nil {
			t.Fatalf("raw payload should be the task object: %v", err)
		}
		if task.GID != "t1" || task.DueOn != "" {
			t.Errorf("unexpected task %+v", task)
		}
	})

	t.Run("TaskStoriesRaw Joins Pages", func(t *testing.T) {
		srv, _ := newAsanaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/tasks/t1/stories") {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("offset") == "" {
				w.Write([]byte(`{"data":[{"gid":"s1","type":"comment"}],"next_page":{"offset":"n"}}`))
				return
			}
			w.Write([]byte(`{"data":[{"gid":"s2","type":"system"}]}`))
		})

		raw, err := srv.TaskStoriesRaw(context.Background(), "t1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var stories []AsanaStory
		if err := json.Unmarshal(raw, &stories); err != nil {
			t.Fatalf("expected JSON array: %v", err)
		}
		if len(stories) != 2 || stories[1].Type != StoryTypeSystem {
			t.Errorf("unexpected stories %+v", stories)
		}
	})

	t.Run("TaskStoriesRaw Empty", func(t *testing.T) {
		srv, _ := newAsanaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data":[]}`))
		})

		raw, err := srv.TaskStoriesRaw(context.Background(), "t1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(raw) != "[]" {
			t.Errorf("expected empty array, got %s", raw)
		}
	})

	t.Run("Not Found", func(t *testing.T) {
		srv, _ := newAsanaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"errors":[{"message":"Not a recognized ID"}]}`, http.StatusNotFound)
		})

		_, err := srv.User(context.Background(), "missing")
		if !IsNotFound(err) {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("Unauthorized", func(t *testing.T) {
		srv, _ := newAsanaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := srv.Me(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", err)
		}
	})

	t.Run("Malformed Response", func(t *testing.T) {
		srv, _ := newAsanaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		})

		if _, err := srv.Me(context.Background()); err == nil {
			t.Error("expected decode error")
		}
	})
}
