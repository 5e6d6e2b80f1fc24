package gha

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"strings"

	"github.com/arturoeanton/go-pr-dedup/internal/domain"
)

// MatchesJSON renders matches as the job's JSON output. An empty match set
// renders as "[]", never "null".
func MatchesJSON(matches []domain.SimilarityMatch) (string, error) {
	if matches == nil {
		matches = []domain.SimilarityMatch{}
	}
	b, err := json.Marshal(matches)
	if err != nil {
		return "", fmt.Errorf("marshal matches: %w", err)
	}
	return string(b), nil
}

var matchesTemplate = template.Must(template.New("matches").Parse(
	`<table>
<thead><tr><th>Pull Request</th><th>Similarity</th></tr></thead>
<tbody>
{{- range . }}
<tr><td><a href="{{ .PRURL }}">{{ .PRURL }}</a></td><td>{{ printf "%.1f" .Percentage }}%</td></tr>
{{- end }}
</tbody>
</table>`))

// MatchesHTML renders the same matches as an HTML table suitable for a PR
// comment.
func MatchesHTML(matches []domain.SimilarityMatch) (string, error) {
	var sb strings.Builder
	if err := matchesTemplate.Execute(&sb, matches); err != nil {
		return "", fmt.Errorf("render matches table: %w", err)
	}
	return sb.String(), nil
}

// Writer appends workflow output values to the file named by GITHUB_OUTPUT.
// Outside a workflow (no GITHUB_OUTPUT) values go to stdout so local runs
// stay inspectable.
type Writer struct {
	path string
}

// NewWriter creates a writer bound to the current job's output channel.
func NewWriter() *Writer {
	return &Writer{path: os.Getenv("GITHUB_OUTPUT")}
}

// Set writes one name=value pair. Multiline values use the heredoc form with
// a random delimiter so the value cannot terminate the block early.
func (w *Writer) Set(name, value string) error {
	line := fmt.Sprintf("%s=%s\n", name, value)
	if strings.Contains(value, "\n") {
		delim := "ghadelimiter_" + randomHex(16)
		line = fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delim, value, delim)
	}

	if w.path == "" {
		fmt.Print(line)
		return nil
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// SetError records a fatal error for the workflow before the process exits
// nonzero.
func (w *Writer) SetError(msg string) {
	// Keep the error on one line; the workflow reads it as a plain value.
	msg = strings.ReplaceAll(msg, "\n", " ")
	_ = w.Set("error", msg)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
