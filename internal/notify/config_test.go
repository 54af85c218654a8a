package notify

import (
	"os"
	"path/filepath"
	"testing"

	"cipher-rooms/internal/config"
)

func TestConfigFromServerFiltersTargets(t *testing.T) {
	cfg, err := ConfigFromServer(config.ServerConfig{
		NotifyEnabled:     true,
		NotifyWorkers:     2,
		NotifyRetryMax:    3,
		NotifyRetryBaseMS: 200,
		NotifyTargetsJSON: `[
		  {"platform":"Discord","endpoint":"https://a","scope_type":"room","scope_value":"1","enabled":true},
		  {"platform":"feishu","endpoint":"","enabled":true},
		  {"platform":"discord","endpoint":"https://b","scope_type":"table","enabled":true},
		  {"platform":"webhook","endpoint":"https://c","enabled":false},
		  {"platform":"webhook","endpoint":"https://d","event_allowlist":[" Session_Finished "],"enabled":true}
		]`,
	})
	if err != nil {
		t.Fatalf("ConfigFromServer() error = %v", err)
	}
	if len(cfg.Targets) != 2 {
		t.Fatalf("targets = %d, want 2", len(cfg.Targets))
	}
	if cfg.Targets[0].Platform != "discord" {
		t.Fatalf("platform = %q, want discord", cfg.Targets[0].Platform)
	}
	if cfg.Targets[1].ScopeType != "all" || cfg.Targets[1].EventAllowlist[0] != "session_finished" {
		t.Fatalf("second target = %+v", cfg.Targets[1])
	}
}

func TestConfigFromServerUsesConfigPathFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	if err := os.WriteFile(path, []byte(`[{"platform":"discord","endpoint":"https://from-file","enabled":true}]`), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	cfg, err := ConfigFromServer(config.ServerConfig{
		NotifyEnabled:     true,
		NotifyConfigPath:  path,
		NotifyTargetsJSON: `[{"platform":"discord","endpoint":"https://from-env","enabled":true}]`,
	})
	if err != nil {
		t.Fatalf("ConfigFromServer() error = %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Endpoint != "https://from-file" {
		t.Fatalf("targets = %+v", cfg.Targets)
	}
}

func TestConfigFromServerDisabledSkipsParsing(t *testing.T) {
	cfg, err := ConfigFromServer(config.ServerConfig{NotifyTargetsJSON: "not json"})
	if err != nil {
		t.Fatalf("ConfigFromServer() error = %v", err)
	}
	if cfg.Enabled || len(cfg.Targets) != 0 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if _, err := ConfigFromServer(config.ServerConfig{NotifyEnabled: true, NotifyTargetsJSON: "not json"}); err == nil {
		t.Fatal("expected parse error")
	}
}
