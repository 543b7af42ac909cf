package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.BaseURL != "http://localhost:8000" {
		t.Errorf("base URL = %q, want default", cfg.Agent.BaseURL)
	}
	if cfg.History.Path != "./agentstream.db" {
		t.Errorf("history path = %q, want default", cfg.History.Path)
	}
	if cfg.Mock.Port != 8000 {
		t.Errorf("mock port = %d, want 8000", cfg.Mock.Port)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AGENTSTREAM_AGENT_BASE_URL", "https://agent.example.com")
	t.Setenv("AGENTSTREAM_AGENT_TOKEN", "jwt-token")
	t.Setenv("AGENTSTREAM_GITHUB_TOKEN", "gh-token")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.BaseURL != "https://agent.example.com" {
		t.Errorf("base URL = %q", cfg.Agent.BaseURL)
	}
	if cfg.Agent.Token != "jwt-token" {
		t.Errorf("agent token = %q", cfg.Agent.Token)
	}
	if cfg.GitHub.Token != "gh-token" {
		t.Errorf("github token = %q", cfg.GitHub.Token)
	}
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "agent:\n  base_url: https://file.example.com\n  token: file-token\nmock:\n  port: 9999\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AGENTSTREAM_AGENT_TOKEN", "env-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Agent.BaseURL != "https://file.example.com" {
		t.Errorf("base URL = %q, want file value", cfg.Agent.BaseURL)
	}
	if cfg.Agent.Token != "env-token" {
		t.Errorf("token = %q, env must override file", cfg.Agent.Token)
	}
	if cfg.Mock.Port != 9999 {
		t.Errorf("mock port = %d, want 9999", cfg.Mock.Port)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("Load() with missing file error = %v", err)
	}
}
