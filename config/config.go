package config

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	"github.com/viant/mcp-bridge/backend"
)

// Document mirrors the conventional mcpServers configuration shape used by
// MCP hosts (e.g. claude_desktop_config.json).
type Document struct {
	McpServers map[string]Server `yaml:"mcpServers" json:"mcpServers"`
}

// Server describes one configured backend command.
type Server struct {
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args" json:"args,omitempty"`
	Env     map[string]string `yaml:"env" json:"env,omitempty"`
	Cwd     string            `yaml:"cwd" json:"cwd,omitempty"`
}

// Load resolves the backend command tuple for serverName from the document
// at URL (file path or afs URL, JSON or YAML by extension).
func Load(ctx context.Context, URL, serverName string) (*backend.Config, error) {
	if serverName == "" {
		return nil, fmt.Errorf("server name is required with a config document")
	}
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %v: %w", URL, err)
	}
	document := &Document{}
	switch strings.ToLower(path.Ext(URL)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, document)
	default:
		err = json.Unmarshal(data, document)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %v: %w", URL, err)
	}
	server, ok := document.McpServers[serverName]
	if !ok {
		return nil, fmt.Errorf("server %q not found in mcpServers configuration", serverName)
	}
	if server.Command == "" {
		return nil, fmt.Errorf("no command specified for server %q", serverName)
	}
	return &backend.Config{
		Command: server.Command,
		Args:    server.Args,
		Dir:     server.Cwd,
		Env:     flattenEnv(server.Env),
	}, nil
}

// Parse resolves the backend command tuple from a flat command line string,
// honoring single and double quotes.
func Parse(command string) (*backend.Config, error) {
	words, err := splitCommand(command)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("command is empty")
	}
	return &backend.Config{Command: words[0], Args: words[1:]}, nil
}

// flattenEnv converts an env map into sorted KEY=VALUE entries.
func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	result := make([]string, 0, len(env))
	for k, v := range env {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// splitCommand tokenizes a command line the way a POSIX shell splits
// words: whitespace separates tokens unless quoted.
func splitCommand(command string) ([]string, error) {
	var words []string
	var current strings.Builder
	var quote rune
	inWord := false
	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unbalanced quote in command: %v", command)
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}
