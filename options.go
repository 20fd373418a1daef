package bridge

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/viant/mcp-bridge/backend"
	"github.com/viant/mcp-bridge/config"
)

// Options defines the bridge runtime settings; every flag falls back to
// the matching MCP_* environment variable.
type Options struct {
	ConfigURL  string   `short:"c" long:"config" description:"mcpServers config document (file path or URL)" env:"MCP_CONFIG_FILE"`
	ServerName string   `short:"n" long:"name" description:"server name within the config document" env:"MCP_SERVER_NAME"`
	Command    string   `short:"C" long:"command" description:"backend command line (fallback when no config document is used)" env:"MCP_COMMAND"`
	Cwd        string   `long:"cwd" description:"backend working directory" env:"MCP_CWD"`
	Host       string   `long:"host" description:"listen host" default:"0.0.0.0" env:"MCP_HOST"`
	Port       int      `short:"p" long:"port" description:"listen port" default:"8000" env:"MCP_PORT"`
	AuthToken  string   `long:"token" description:"shared bearer token gating every endpoint except /health" env:"MCP_AUTH_TOKEN"`
	JWTAuth    bool     `long:"jwt" description:"treat the bearer as an HS256 JWT signed with the shared token" env:"MCP_AUTH_JWT"`
	Timeout    int      `short:"t" long:"timeout" description:"correlated reply timeout in seconds" default:"30" env:"MCP_REQUEST_TIMEOUT"`
	QueueDepth int      `long:"queue" description:"per subscriber delivery queue depth" default:"256" env:"MCP_QUEUE_DEPTH"`
	Origins    []string `long:"allow-origin" description:"allowed browser origins" env:"MCP_ALLOW_ORIGINS" env-delim:","`
	LogLevel   string   `long:"log-level" description:"zerolog level" default:"info" env:"MCP_LOG_LEVEL"`
}

// Addr returns the host:port the HTTP surface binds to.
func (o *Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// backendConfig resolves the (command, args, cwd, env) tuple once at
// startup, mirroring the config-document-then-flat-command fallback chain.
func (o *Options) backendConfig(ctx context.Context) (*backend.Config, error) {
	var cfg *backend.Config
	var err error
	switch {
	case o.ConfigURL != "" && o.ServerName != "":
		cfg, err = config.Load(ctx, o.ConfigURL, o.ServerName)
	case o.Command != "":
		cfg, err = config.Parse(o.Command)
	default:
		return nil, fmt.Errorf("configuration missing: set MCP_CONFIG_FILE and MCP_SERVER_NAME, or MCP_COMMAND")
	}
	if err != nil {
		return nil, err
	}
	if o.Cwd != "" {
		cfg.Dir = o.Cwd
	}
	return cfg, nil
}
