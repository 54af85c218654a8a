package rooms

import (
	"errors"

	"cipher-rooms/internal/ledger"
)

var ErrInvalidCiphertext = errors.New("invalid_ciphertext")

var codes = []struct {
	err  error
	code string
}{
	{ledger.ErrInvalidParameters, "invalid_parameters"},
	{ledger.ErrIncorrectStake, "incorrect_stake"},
	{ErrInvalidCiphertext, "invalid_ciphertext"},
	{ledger.ErrUnauthorized, "unauthorized"},
	{ledger.ErrNotAParticipant, "not_a_participant"},
	{ledger.ErrSessionInactive, "session_inactive"},
	{ledger.ErrAlreadyJoined, "already_joined"},
	{ledger.ErrSessionFull, "session_full"},
	{ledger.ErrSessionFinished, "session_finished"},
	{ledger.ErrTransferFailed, "transfer_failed"},
	{ledger.ErrSessionNotFound, "not_found"},
}

// ErrorCode maps a service error to the snake_case code every transport
// reports. Unknown errors are internal_error.
func ErrorCode(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal_error"
}
