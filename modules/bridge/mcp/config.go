package mcp

import (
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	defaultListen          = "127.0.0.1:8765"
	defaultPath            = "/mcp"
	defaultShutdownTimeout = 5 * time.Second
)

// Config holds the MCP bridge listener settings.
type Config struct {
	// Listen is the address the bridge binds. Must be loopback: the
	// server exposes task control without authentication.
	Listen string `yaml:"listen"`

	// Path is the HTTP endpoint the MCP protocol is served under.
	Path string `yaml:"path"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Path == "" {
		c.Path = defaultPath
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
}

func (c *Config) validate() error {
	host, _, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return fmt.Errorf("mcp: invalid listen address %q: %w", c.Listen, err)
	}
	if !loopbackHost(host) {
		return fmt.Errorf("mcp: listen address %q is not loopback; the bridge serves the local agent only", c.Listen)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("mcp: path must start with /, got %q", c.Path)
	}
	return nil
}

func loopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
