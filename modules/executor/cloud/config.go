package cloud

import (
	"fmt"
	"os"
	"strings"
)

const defaultEventType = "execute-task"

// Config holds the cloud executor's workflow target.
type Config struct {
	// Repo is the workflow repository as "owner/name". Required.
	Repo string `yaml:"repo"`

	// Token authenticates the dispatch call. Env: GITHUB_TOKEN.
	Token string `yaml:"token"`

	// EventType names the repository_dispatch event the workflow
	// listens for. Defaults to "execute-task".
	EventType string `yaml:"event_type"`

	// APIURL overrides the API endpoint for GitHub Enterprise.
	APIURL string `yaml:"api_url"`
}

func (c *Config) defaults() {
	if c.Token == "" {
		c.Token = os.Getenv("GITHUB_TOKEN")
	}
	if c.EventType == "" {
		c.EventType = defaultEventType
	}
}

func (c *Config) validate() error {
	if c.Repo == "" {
		return fmt.Errorf("cloud: repo is required (owner/name)")
	}
	if _, _, err := c.splitRepo(); err != nil {
		return err
	}
	if c.Token == "" {
		return fmt.Errorf("cloud: token is required (set token or GITHUB_TOKEN)")
	}
	return nil
}

func (c *Config) splitRepo() (owner, name string, err error) {
	owner, name, ok := strings.Cut(c.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("cloud: repo must be owner/name, got %q", c.Repo)
	}
	return owner, name, nil
}

// knownTokenPrefixes are the credential shapes GitHub issues. The check
// is advisory only: Enterprise deployments can mint other formats.
var knownTokenPrefixes = []string{"ghp_", "gho_", "ghs_", "ghu_", "github_pat_"}

func (c *Config) tokenShapeKnown() bool {
	for _, p := range knownTokenPrefixes {
		if strings.HasPrefix(c.Token, p) {
			return true
		}
	}
	return false
}
