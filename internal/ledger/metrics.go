package ledger

import "expvar"

var (
	metricSessionsCreated    = expvar.NewInt("ledger_sessions_created_total")
	metricPlayersJoined      = expvar.NewInt("ledger_players_joined_total")
	metricSessionsStarted    = expvar.NewInt("ledger_sessions_started_total")
	metricMovesSubmitted     = expvar.NewInt("ledger_moves_submitted_total")
	metricSessionsFinished   = expvar.NewInt("ledger_sessions_finished_total")
	metricSessionsTerminated = expvar.NewInt("ledger_sessions_terminated_total")
	metricFeesWithdrawn      = expvar.NewInt("ledger_fees_withdrawn_total")
	metricCommitErrors       = expvar.NewInt("ledger_commit_errors_total")
)
