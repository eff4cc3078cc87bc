package state

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"gopkg.in/yaml.v3"
)

// Status is where an issue is in its lifecycle.
type Status string

const (
	StatusWorking     Status = "working"
	StatusBuildFailed Status = "build_failed"
	StatusComplete    Status = "complete"
	StatusFailed      Status = "failed"
)

// Record tracks the agent's work on one issue. It is stored as a markdown
// document: the fields below as YAML frontmatter, Log as the body.
type Record struct {
	Owner      string    `yaml:"owner"`
	Repo       string    `yaml:"repo"`
	Number     int       `yaml:"number"`
	Title      string    `yaml:"title"`
	Branch     string    `yaml:"branch,omitempty"`
	Status     Status    `yaml:"status"`
	Iterations int       `yaml:"iterations"`
	PRURL      string    `yaml:"pr_url,omitempty"`
	Updated    time.Time `yaml:"updated"`

	// Log holds one "- <RFC3339> <message>" line per event.
	Log []string `yaml:"-"`
}

// Logf appends a timestamped line to the activity log.
func (r *Record) Logf(format string, args ...any) {
	line := fmt.Sprintf("- %s %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	r.Log = append(r.Log, strings.ReplaceAll(line, "\n", " "))
}

func (r *Record) marshal() ([]byte, error) {
	fm, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	fmt.Fprintf(&buf, "# %s/%s#%d\n\n", r.Owner, r.Repo, r.Number)
	for _, l := range r.Log {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func unmarshalRecord(data []byte) (*Record, error) {
	var r Record
	body, err := frontmatter.MustParse(bytes.NewReader(data), &r)
	if err != nil {
		return nil, fmt.Errorf("parsing frontmatter: %w", err)
	}
	for _, line := range strings.Split(string(body), "\n") {
		if strings.HasPrefix(line, "- ") {
			r.Log = append(r.Log, line)
		}
	}
	return &r, nil
}
