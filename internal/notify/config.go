package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"cipher-rooms/internal/config"
)

func ConfigFromServer(cfg config.ServerConfig) (Config, error) {
	out := Config{
		Enabled:             cfg.NotifyEnabled,
		Workers:             cfg.NotifyWorkers,
		RetryMax:            cfg.NotifyRetryMax,
		RetryBase:           time.Duration(cfg.NotifyRetryBaseMS) * time.Millisecond,
		FailureThreshold:    3,
		CircuitOpenDuration: 30 * time.Second,
		RequestTimeout:      5 * time.Second,
		DispatchBuffer:      1024,
	}
	if !out.Enabled {
		return out, nil
	}
	if out.Workers <= 0 {
		out.Workers = 2
	}
	if out.RetryMax < 0 {
		out.RetryMax = 0
	}
	if out.RetryBase <= 0 {
		out.RetryBase = 500 * time.Millisecond
	}

	raw, err := loadTargetsJSON(cfg)
	if err != nil {
		return Config{}, err
	}
	if raw == "" {
		return out, nil
	}
	targets, err := parseTargetsJSON(raw)
	if err != nil {
		return Config{}, err
	}
	out.Targets = targets
	return out, nil
}

// loadTargetsJSON prefers the file at NOTIFY_CONFIG_PATH over the inline value.
func loadTargetsJSON(cfg config.ServerConfig) (string, error) {
	if path := strings.TrimSpace(cfg.NotifyConfigPath); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read notify config %q: %w", path, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return strings.TrimSpace(cfg.NotifyTargetsJSON), nil
}

func parseTargetsJSON(raw string) ([]Target, error) {
	var targets []Target
	if err := json.Unmarshal([]byte(raw), &targets); err != nil {
		return nil, fmt.Errorf("parse notify targets: %w", err)
	}
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		t.Platform = strings.ToLower(strings.TrimSpace(t.Platform))
		t.ScopeType = strings.ToLower(strings.TrimSpace(t.ScopeType))
		if t.ScopeType == "" {
			t.ScopeType = "all"
		}
		if t.ScopeType != "all" && t.ScopeType != "room" {
			continue
		}
		t.Endpoint = strings.TrimSpace(t.Endpoint)
		if t.Endpoint == "" || !t.Enabled {
			continue
		}
		for i := range t.EventAllowlist {
			t.EventAllowlist[i] = strings.ToLower(strings.TrimSpace(t.EventAllowlist[i]))
		}
		out = append(out, t)
	}
	return out, nil
}
