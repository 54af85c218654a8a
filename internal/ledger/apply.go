package ledger

import "fmt"

// apply folds one committed event into memory. It is the only place ledger
// state changes, for live commits and for replay alike.
func (l *Ledger) apply(ev Event) error {
	if ev.Seq > l.seq {
		l.seq = ev.Seq
	}
	switch ev.Type {
	case EventSessionCreated:
		return l.applyCreated(ev)
	case EventPlayerJoined:
		return l.applyJoined(ev)
	case EventSessionStarted:
		return l.applyStarted(ev)
	case EventMoveSubmitted:
		return l.applyMove(ev)
	case EventSessionFinished:
		return l.applyFinished(ev)
	case EventSessionTerminated:
		return l.applyTerminated(ev)
	case EventFeesWithdrawn:
		if ev.Withdrawn == nil {
			return fmt.Errorf("%s: missing payload", ev.Type)
		}
		l.retainedFees = 0
		return nil
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func (l *Ledger) applyCreated(ev Event) error {
	d := ev.Created
	if d == nil {
		return fmt.Errorf("%s: missing payload", ev.Type)
	}
	if _, ok := l.sessions[ev.SessionID]; ok || ev.SessionID <= l.lastID {
		return fmt.Errorf("%s: session id %d reused", ev.Type, ev.SessionID)
	}
	l.sessions[ev.SessionID] = &Session{
		ID:         ev.SessionID,
		Name:       d.Name,
		Category:   d.Category,
		Capacity:   d.Capacity,
		Difficulty: d.Difficulty,
		Stake:      d.Stake,
		Creator:    ev.Principal,
		Active:     true,
		CreatedAt:  ev.At,
		joined:     map[string]struct{}{},
		privacy:    map[string]PrivacyFlags{},
	}
	l.order = append(l.order, ev.SessionID)
	l.lastID = ev.SessionID
	l.record(ev.Principal).IsRegistered = true
	return nil
}

func (l *Ledger) applyJoined(ev Event) error {
	s, err := l.sessionFor(ev)
	if err != nil {
		return err
	}
	d := ev.Joined
	if d == nil {
		return fmt.Errorf("%s: missing payload", ev.Type)
	}
	if s.hasJoined(ev.Principal) {
		return fmt.Errorf("%s: %s already in session %d", ev.Type, ev.Principal, s.ID)
	}
	s.Participants = append(s.Participants, ev.Principal)
	s.joined[ev.Principal] = struct{}{}
	s.privacy[ev.Principal] = PrivacyFlags{Anonymous: d.Anonymous, MaxPrivacy: d.MaxPrivacy}
	s.Occupancy = d.Occupancy

	rec := l.record(ev.Principal)
	rec.IsRegistered = true
	rec.TotalStaked += d.Payment
	return nil
}

func (l *Ledger) applyStarted(ev Event) error {
	if _, err := l.sessionFor(ev); err != nil {
		return err
	}
	if ev.Started == nil {
		return fmt.Errorf("%s: missing payload", ev.Type)
	}
	for _, p := range ev.Started.Participants {
		l.record(p).TotalGames++
	}
	return nil
}

func (l *Ledger) applyMove(ev Event) error {
	if _, err := l.sessionFor(ev); err != nil {
		return err
	}
	if ev.Move == nil {
		return fmt.Errorf("%s: missing payload", ev.Type)
	}
	l.moves[ev.SessionID] = append(l.moves[ev.SessionID], Move{
		SessionID:   ev.SessionID,
		Participant: ev.Principal,
		Move:        ev.Move.Move,
		Valid:       ev.Move.Valid,
		SubmittedAt: ev.At,
	})
	return nil
}

func (l *Ledger) applyFinished(ev Event) error {
	s, err := l.sessionFor(ev)
	if err != nil {
		return err
	}
	d := ev.Finished
	if d == nil {
		return fmt.Errorf("%s: missing payload", ev.Type)
	}
	if l.settlements[s.ID].Finished {
		return fmt.Errorf("%s: session %d settled twice", ev.Type, s.ID)
	}
	s.Active = false
	l.settlements[s.ID] = Settlement{
		Finished:    true,
		Winner:      d.Winner,
		WinnerPrize: d.WinnerPrize,
		PlatformFee: d.PlatformFee,
	}
	l.record(d.Winner).GamesWon++
	l.retainedFees += d.PlatformFee
	return nil
}

func (l *Ledger) applyTerminated(ev Event) error {
	s, err := l.sessionFor(ev)
	if err != nil {
		return err
	}
	if ev.Terminated == nil {
		return fmt.Errorf("%s: missing payload", ev.Type)
	}
	if l.settlements[s.ID].Finished {
		return fmt.Errorf("%s: session %d settled twice", ev.Type, s.ID)
	}
	s.Active = false
	l.settlements[s.ID] = Settlement{Finished: true, Terminated: true}
	return nil
}

func (l *Ledger) sessionFor(ev Event) (*Session, error) {
	s := l.sessions[ev.SessionID]
	if s == nil {
		return nil, fmt.Errorf("%s: unknown session %d", ev.Type, ev.SessionID)
	}
	return s, nil
}

func (l *Ledger) record(principal string) *ParticipantRecord {
	rec := l.participants[principal]
	if rec == nil {
		rec = &ParticipantRecord{}
		l.participants[principal] = rec
	}
	return rec
}
