// package shared defines shared helpers
package shared

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// DiscardLogger returns a logger that writes nowhere. Used where a logger is optional.
func DiscardLogger() *log.Logger {
	return log.New(io.Discard)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// LoginFromName derives a YouTrack login from a display name by joining its words with no separator.
//
// "Jane  Q. Doe" becomes "JaneQ.Doe".
func LoginFromName(name string) string {
	return strings.Join(strings.Fields(name), "")
}

// ProjectIDFromName derives a YouTrack project short name from an Asana workspace name.
func ProjectIDFromName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, " ", ""))
}

// MarshalJSON encodes v as JSON, indented with two spaces when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}
