// package formatter renders migration run reports in various formats (JSON, CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/a2yt/internal/shared"
	"github.com/desertthunder/a2yt/internal/tasks"
)

// Format identifies a report encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat resolves a user-supplied format name. "md" and "txt" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatText:
		return "txt"
	default:
		return string(f)
	}
}

// Render encodes a run result in the given format.
func Render(result *tasks.RunResult, format Format) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: nil run result", shared.ErrInvalidInput)
	}

	switch format {
	case FormatJSON:
		return ExportToJSON(result)
	case FormatCSV:
		return ExportToCSV(result)
	case FormatMarkdown:
		return ExportToMarkdown(result)
	case FormatText:
		return ExportToText(result)
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToJSON converts a RunResult to indented JSON
func ExportToJSON(result *tasks.RunResult) ([]byte, error) {
	return shared.MarshalJSON(result, true)
}

// ExportToCSV converts a RunResult to CSV with one row per created or skipped record and columns:
// Workspace, Project, Kind, ID, Name, Detail
func ExportToCSV(result *tasks.RunResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Workspace", "Project", "Kind", "ID", "Name", "Detail"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, ws := range result.Workspaces {
		var records [][]string
		row := func(kind, id, name, detail string) {
			records = append(records, []string{ws.Workspace.Name, ws.ProjectID, kind, id, name, detail})
		}

		for _, u := range ws.UsersCreated {
			row("user", u.Login, u.FullName, u.Email)
		}
		for _, s := range ws.SubsystemsCreated {
			row("subsystem", s.Name, s.Name, s.DefaultAssignee)
		}
		for _, i := range ws.IssuesCreated {
			row("issue", issueID(ws.ProjectID, i.NumberInProject), i.Summary, i.TaskGID)
		}
		for _, s := range ws.IssuesSkipped {
			row("skipped", s.TaskGID, s.Summary, s.Reason)
		}

		if err := writer.WriteAll(records); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a RunResult to Markdown with a section per workspace
func ExportToMarkdown(result *tasks.RunResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Migration Report\n\n")
	fmt.Fprintf(&buf, "**Workspaces**: %d\n", len(result.Workspaces))
	fmt.Fprintf(&buf, "**Cache**: %d hits, %d misses\n\n", result.Cache.Hits, result.Cache.Misses)

	for _, ws := range result.Workspaces {
		fmt.Fprintf(&buf, "## %s → %s\n\n", ws.Workspace.Name, ws.ProjectID)
		if ws.DryRun {
			buf.WriteString("_Dry run: nothing was written._\n\n")
		}
		if ws.ProjectCreated {
			fmt.Fprintf(&buf, "Project %s was created.\n\n", ws.ProjectID)
		}
		if !ws.StartedAt.IsZero() && !ws.CompletedAt.IsZero() {
			fmt.Fprintf(&buf, "**Duration**: %s\n\n", ws.CompletedAt.Sub(ws.StartedAt).Round(time.Millisecond))
		}

		fmt.Fprintf(&buf, "### Users (%d)\n\n", len(ws.UsersCreated))
		for _, u := range ws.UsersCreated {
			fmt.Fprintf(&buf, "- %s (%s) <%s>\n", u.Login, u.FullName, u.Email)
		}

		fmt.Fprintf(&buf, "\n### Subsystems (%d)\n\n", len(ws.SubsystemsCreated))
		for _, s := range ws.SubsystemsCreated {
			if s.DefaultAssignee != "" {
				fmt.Fprintf(&buf, "- %s, assigned to %s\n", s.Name, s.DefaultAssignee)
			} else {
				fmt.Fprintf(&buf, "- %s\n", s.Name)
			}
		}

		fmt.Fprintf(&buf, "\n### Issues (%d)\n\n", len(ws.IssuesCreated))
		if len(ws.IssuesCreated) > 0 {
			buf.WriteString("| Issue | Summary | Assignee | Reporter | Comments |\n")
			buf.WriteString("|---|---|---|---|---|\n")
			for _, i := range ws.IssuesCreated {
				fmt.Fprintf(&buf, "| %s | %s | %s | %s | %d |\n",
					issueID(ws.ProjectID, i.NumberInProject), escapeCell(i.Summary), i.Assignee, i.Reporter, i.Comments)
			}
		}

		fmt.Fprintf(&buf, "\n### Skipped (%d)\n\n", len(ws.IssuesSkipped))
		for _, s := range ws.IssuesSkipped {
			fmt.Fprintf(&buf, "- %s (%s): matched by %s\n", s.Summary, s.TaskGID, s.Reason)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a RunResult to a plain text summary
func ExportToText(result *tasks.RunResult) ([]byte, error) {
	var buf bytes.Buffer

	for _, ws := range result.Workspaces {
		fmt.Fprintf(&buf, "Workspace: %s\n", ws.Workspace.Name)
		fmt.Fprintf(&buf, "Project: %s\n", ws.ProjectID)
		if ws.DryRun {
			buf.WriteString("Dry run: yes\n")
		}
		fmt.Fprintf(&buf, "Users created: %d\n", len(ws.UsersCreated))
		fmt.Fprintf(&buf, "Subsystems created: %d\n", len(ws.SubsystemsCreated))
		fmt.Fprintf(&buf, "Issues created: %d\n", len(ws.IssuesCreated))
		fmt.Fprintf(&buf, "Tasks skipped: %d\n\n", len(ws.IssuesSkipped))
	}
	fmt.Fprintf(&buf, "Cache: %d hits, %d misses\n", result.Cache.Hits, result.Cache.Misses)

	return buf.Bytes(), nil
}

// Write renders a run result to w.
func Write(w io.Writer, result *tasks.RunResult, format Format) error {
	data, err := Render(result, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteReport writes a run result to a file.
//
// Defaults to a2yt_report_{epoch}.{ext} as the filename.
func WriteReport(result *tasks.RunResult, format Format, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("a2yt_report_%d.%s", time.Now().Unix(), format.Extension())
	}

	data, err := Render(result, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}

func issueID(projectID string, number int) string {
	return projectID + "-" + strconv.Itoa(number)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
