package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full client configuration. Values come from an optional
// YAML file overlaid with AGENTSTREAM_* environment variables.
type Config struct {
	Agent   AgentConfig   `koanf:"agent"`
	GitHub  GitHubConfig  `koanf:"github"`
	History HistoryConfig `koanf:"history"`
	Mock    MockConfig    `koanf:"mock"`
}

// AgentConfig locates the agent service.
type AgentConfig struct {
	BaseURL string `koanf:"base_url"`
	Token   string `koanf:"token"`
}

// GitHubConfig holds the credential forwarded to the implement endpoint.
type GitHubConfig struct {
	Token string `koanf:"token"`
}

// HistoryConfig configures the local exchange history store.
type HistoryConfig struct {
	Path string `koanf:"path"`
}

// MockConfig configures the development mock server.
type MockConfig struct {
	Port int `koanf:"port"`
}

// Load reads configuration from path (skipped when the file does not
// exist) overlaid with the environment. AGENTSTREAM_AGENT_BASE_URL
// becomes agent.base_url, and so on: the first underscore after the
// prefix separates section from key.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	if err := k.Load(env.Provider("AGENTSTREAM_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AGENTSTREAM_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("agent.base_url") {
		k.Set("agent.base_url", "http://localhost:8000")
	}
	if !k.Exists("history.path") {
		k.Set("history.path", "./agentstream.db")
	}
	if !k.Exists("mock.port") {
		k.Set("mock.port", 8000)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
