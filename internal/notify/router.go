package notify

import (
	"strconv"
	"strings"

	"cipher-rooms/internal/ledger"
)

type Router struct{}

func (r Router) MatchTargets(targets []Target, ev ledger.Event) []Target {
	if len(targets) == 0 {
		return nil
	}
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		if !t.Enabled || !scopeMatches(t, ev) || !eventAllowed(t.EventAllowlist, string(ev.Type)) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func scopeMatches(t Target, ev ledger.Event) bool {
	switch t.ScopeType {
	case "all":
		return true
	case "room":
		return ev.SessionID != 0 && t.ScopeValue == strconv.FormatUint(ev.SessionID, 10)
	default:
		return false
	}
}

func eventAllowed(allowlist []string, evType string) bool {
	if len(allowlist) == 0 {
		return true
	}
	evType = strings.ToLower(strings.TrimSpace(evType))
	for _, v := range allowlist {
		if v != "" && strings.ToLower(strings.TrimSpace(v)) == evType {
			return true
		}
	}
	return false
}
