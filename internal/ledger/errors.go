package ledger

import "errors"

var (
	ErrInvalidParameters = errors.New("invalid_parameters")
	ErrSessionInactive   = errors.New("session_inactive")
	ErrAlreadyJoined     = errors.New("already_joined")
	ErrSessionFull       = errors.New("session_full")
	ErrIncorrectStake    = errors.New("incorrect_stake")
	ErrNotAParticipant   = errors.New("not_a_participant")
	ErrSessionFinished   = errors.New("session_finished")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrTransferFailed    = errors.New("transfer_failed")
	ErrSessionNotFound   = errors.New("session_not_found")

	// ErrStateDiverged means a committed event could not be applied in
	// memory. The ledger refuses writes until it is restored from the store.
	ErrStateDiverged = errors.New("ledger_state_diverged")
)
