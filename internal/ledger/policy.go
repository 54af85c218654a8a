package ledger

import "errors"

// WinnerPolicy decides the outcome of an evaluated session. Moves are
// ciphertexts; a policy that needs plaintext must bring its own decryptor.
type WinnerPolicy interface {
	Winner(s Session, moves []Move) (string, error)
}

// FirstJoinerWins declares the first participant to join the winner,
// regardless of the submitted moves.
type FirstJoinerWins struct{}

func (FirstJoinerWins) Winner(s Session, _ []Move) (string, error) {
	if len(s.Participants) == 0 {
		return "", errors.New("session has no participants")
	}
	return s.Participants[0], nil
}
