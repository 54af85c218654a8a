package notify

import (
	"testing"

	"cipher-rooms/internal/ledger"
)

func TestRouterMatchTargets(t *testing.T) {
	targets := []Target{
		{Platform: "discord", Endpoint: "a", ScopeType: "all", Enabled: true},
		{Platform: "discord", Endpoint: "b", ScopeType: "room", ScopeValue: "7", Enabled: true},
		{Platform: "discord", Endpoint: "c", ScopeType: "room", ScopeValue: "8", Enabled: true},
		{Platform: "feishu", Endpoint: "d", ScopeType: "all", EventAllowlist: []string{"session_finished"}, Enabled: true},
		{Platform: "feishu", Endpoint: "e", ScopeType: "all", Enabled: false},
	}
	cases := []struct {
		name string
		ev   ledger.Event
		want []string
	}{
		{"join in room 7", ledger.Event{Type: ledger.EventPlayerJoined, SessionID: 7}, []string{"a", "b"}},
		{"finish in room 8", ledger.Event{Type: ledger.EventSessionFinished, SessionID: 8}, []string{"a", "c", "d"}},
		{"withdraw has no room", ledger.Event{Type: ledger.EventFeesWithdrawn}, []string{"a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Router{}.MatchTargets(targets, tc.ev)
			if len(got) != len(tc.want) {
				t.Fatalf("matched %d targets, want %d", len(got), len(tc.want))
			}
			for i, target := range got {
				if target.Endpoint != tc.want[i] {
					t.Fatalf("target[%d] = %s, want %s", i, target.Endpoint, tc.want[i])
				}
			}
		})
	}
}
