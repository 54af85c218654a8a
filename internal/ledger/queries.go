package ledger

import (
	"context"

	"cipher-rooms/internal/confidential"
)

// ActiveSessions lists active sessions in ascending id order.
func (l *Ledger) ActiveSessions() []SessionSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]SessionSummary, 0, len(l.order))
	for _, id := range l.order {
		if s := l.sessions[id]; s.Active {
			out = append(out, s.summary())
		}
	}
	return out
}

// Session returns a copy of the session record, finished or not.
func (l *Ledger) Session(id uint64) (Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.sessions[id]
	if s == nil {
		return Session{}, ErrSessionNotFound
	}
	return s.clone(), nil
}

func (l *Ledger) Settlement(id uint64) (Settlement, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sessions[id] == nil {
		return Settlement{}, ErrSessionNotFound
	}
	return l.settlements[id], nil
}

func (l *Ledger) MoveCount(id uint64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.moves[id])
}

// ParticipantStats returns zero values for principals never seen.
func (l *Ledger) ParticipantStats(principal string) ParticipantRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec := l.participants[principal]; rec != nil {
		return *rec
	}
	return ParticipantRecord{}
}

func (l *Ledger) ParticipantAnonymity(sessionID uint64, participant, caller string) (confidential.Ciphertext, error) {
	flags, err := l.privacyFlags(sessionID, participant, caller)
	return flags.Anonymous, err
}

func (l *Ledger) ParticipantMaxPrivacy(sessionID uint64, participant, caller string) (confidential.Ciphertext, error) {
	flags, err := l.privacyFlags(sessionID, participant, caller)
	return flags.MaxPrivacy, err
}

func (l *Ledger) privacyFlags(sessionID uint64, participant, caller string) (PrivacyFlags, error) {
	if caller == "" || (caller != participant && caller != l.cfg.Admin) {
		return PrivacyFlags{}, ErrUnauthorized
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.sessions[sessionID]
	if s == nil {
		return PrivacyFlags{}, ErrSessionNotFound
	}
	flags, ok := s.privacy[participant]
	if !ok {
		return PrivacyFlags{}, ErrNotAParticipant
	}
	return flags, nil
}

// Holdings is what the house account should hold: stakes of active sessions
// plus fees retained since the last withdrawal.
func (l *Ledger) Holdings() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holdingsLocked()
}

// HouseSnapshot reads the house balance from the store and the holdings under
// the ledger lock, so no commit can land between the two reads.
func (l *Ledger) HouseSnapshot(ctx context.Context) (balance, holdings int64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, err = l.store.Balance(ctx, l.cfg.House)
	if err != nil {
		return 0, 0, err
	}
	return balance, l.holdingsLocked(), nil
}

func (l *Ledger) holdingsLocked() int64 {
	total := l.retainedFees
	for _, id := range l.order {
		if s := l.sessions[id]; s.Active {
			total += s.Stake * int64(s.Occupancy)
		}
	}
	return total
}
