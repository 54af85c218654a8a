// Package ledger is the authoritative store of game rooms, registrations,
// submitted moves and settlements. All mutations run under one lock and
// commit their value transfers and events atomically through a Store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cipher-rooms/internal/confidential"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("cipher-rooms/ledger")

type Config struct {
	Admin    string
	House    string
	MinStake int64
	MaxStake int64
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Admin) == "" {
		return errors.New("ledger admin is required")
	}
	if strings.TrimSpace(c.House) == "" {
		return errors.New("ledger house account is required")
	}
	if c.Admin == c.House {
		return errors.New("ledger admin and house account must differ")
	}
	if c.MinStake <= 0 || c.MaxStake < c.MinStake {
		return fmt.Errorf("invalid stake bounds [%d, %d]", c.MinStake, c.MaxStake)
	}
	return nil
}

type Option func(*Ledger)

func WithPolicy(p WinnerPolicy) Option {
	return func(l *Ledger) {
		if p != nil {
			l.policy = p
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(l *Ledger) {
		if p != nil {
			l.publishers = append(l.publishers, p)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

type Ledger struct {
	cfg        Config
	store      Store
	cipher     confidential.Cipher
	policy     WinnerPolicy
	publishers []Publisher
	now        func() time.Time

	mu           sync.Mutex
	seq          int64
	lastID       uint64
	sessions     map[uint64]*Session
	order        []uint64
	participants map[string]*ParticipantRecord
	moves        map[uint64][]Move
	settlements  map[uint64]Settlement
	retainedFees int64
	diverged     bool
}

// New builds a ledger and replays the store's event log into it.
func New(ctx context.Context, cfg Config, st Store, c confidential.Cipher, opts ...Option) (*Ledger, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if st == nil || c == nil {
		return nil, errors.New("ledger store and cipher are required")
	}
	l := &Ledger{
		cfg:          cfg,
		store:        st,
		cipher:       c,
		policy:       FirstJoinerWins{},
		now:          time.Now,
		sessions:     map[uint64]*Session{},
		participants: map[string]*ParticipantRecord{},
		moves:        map[uint64][]Move{},
		settlements:  map[uint64]Settlement{},
	}
	for _, opt := range opts {
		opt(l)
	}
	events, err := st.LoadEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger events: %w", err)
	}
	for _, ev := range events {
		if err := l.apply(ev); err != nil {
			return nil, fmt.Errorf("replay event %d: %w", ev.Seq, err)
		}
	}
	if len(events) > 0 {
		log.Info().Int("events", len(events)).Int("sessions", len(l.order)).Msg("ledger restored")
	}
	return l, nil
}

func (l *Ledger) Admin() string { return l.cfg.Admin }

func (l *Ledger) House() string { return l.cfg.House }

func (l *Ledger) CreateSession(ctx context.Context, p CreateParams) (uint64, error) {
	ctx, span := tracer.Start(ctx, "ledger.CreateSession")
	defer span.End()

	p.Name = strings.TrimSpace(p.Name)
	p.Creator = strings.TrimSpace(p.Creator)
	if p.Name == "" || p.Creator == "" {
		return 0, fail(span, ErrInvalidParameters)
	}
	if p.Capacity < MinCapacity || p.Capacity > MaxCapacity {
		return 0, fail(span, ErrInvalidParameters)
	}
	if p.Stake < l.cfg.MinStake || p.Stake > l.cfg.MaxStake {
		return 0, fail(span, ErrInvalidParameters)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.lastID + 1
	ev := Event{
		Type:      EventSessionCreated,
		SessionID: id,
		Principal: p.Creator,
		At:        l.now(),
		Created: &CreatedData{
			Name:       p.Name,
			Category:   p.Category,
			Capacity:   p.Capacity,
			Difficulty: p.Difficulty,
			Stake:      p.Stake,
		},
	}
	if err := l.commitLocked(ctx, []Event{ev}, nil); err != nil {
		return 0, fail(span, err)
	}
	span.SetAttributes(attribute.Int64("session_id", int64(id)))
	return id, nil
}

func (l *Ledger) JoinSession(ctx context.Context, p JoinParams) error {
	ctx, span := tracer.Start(ctx, "ledger.JoinSession", trace.WithAttributes(attribute.Int64("session_id", int64(p.SessionID))))
	defer span.End()

	p.Caller = strings.TrimSpace(p.Caller)
	if p.Caller == "" || p.Caller == l.cfg.House {
		return fail(span, ErrInvalidParameters)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.sessions[p.SessionID]
	switch {
	case s == nil || !s.Active:
		return fail(span, ErrSessionInactive)
	case s.hasJoined(p.Caller):
		return fail(span, ErrAlreadyJoined)
	case s.full():
		return fail(span, ErrSessionFull)
	case p.Payment != s.Stake:
		return fail(span, ErrIncorrectStake)
	}

	anonymous, err := l.sealFor(confidential.KindBool, confidential.Bool(p.Anonymous), p.Caller)
	if err != nil {
		return fail(span, err)
	}
	maxPrivacy, err := l.sealFor(confidential.KindBool, confidential.Bool(p.MaxPrivacy), p.Caller)
	if err != nil {
		return fail(span, err)
	}

	now := l.now()
	occupancy := s.Occupancy + 1
	events := []Event{{
		Type:      EventPlayerJoined,
		SessionID: s.ID,
		Principal: p.Caller,
		At:        now,
		Joined: &JoinedData{
			Occupancy:  occupancy,
			Payment:    p.Payment,
			Anonymous:  anonymous,
			MaxPrivacy: maxPrivacy,
		},
	}}
	if occupancy == s.Capacity {
		participants := append(append([]string(nil), s.Participants...), p.Caller)
		events = append(events, Event{
			Type:      EventSessionStarted,
			SessionID: s.ID,
			At:        now,
			Started:   &StartedData{Occupancy: occupancy, Participants: participants},
		})
	}
	transfers := []Transfer{{
		From:      p.Caller,
		To:        l.cfg.House,
		Amount:    p.Payment,
		Kind:      TransferStakeDeposit,
		SessionID: s.ID,
	}}
	return fail(span, l.commitLocked(ctx, events, transfers))
}

func (l *Ledger) SubmitMove(ctx context.Context, p MoveParams) error {
	ctx, span := tracer.Start(ctx, "ledger.SubmitMove", trace.WithAttributes(attribute.Int64("session_id", int64(p.SessionID))))
	defer span.End()

	p.Caller = strings.TrimSpace(p.Caller)

	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.sessions[p.SessionID]
	if s == nil || !s.hasJoined(p.Caller) {
		return fail(span, ErrNotAParticipant)
	}
	if l.settlements[s.ID].Finished {
		return fail(span, ErrSessionFinished)
	}

	move, err := l.sealFor(confidential.KindUint8, uint64(p.Move), p.Caller)
	if err != nil {
		return fail(span, err)
	}
	valid, err := l.sealFor(confidential.KindBool, confidential.Bool(p.Valid), p.Caller)
	if err != nil {
		return fail(span, err)
	}

	now := l.now()
	events := []Event{{
		Type:      EventMoveSubmitted,
		SessionID: s.ID,
		Principal: p.Caller,
		At:        now,
		Move:      &MoveData{Move: move, Valid: valid},
	}}
	var transfers []Transfer
	pending := Move{SessionID: s.ID, Participant: p.Caller, Move: move, Valid: valid, SubmittedAt: now}
	if len(l.moves[s.ID])+1 >= s.Occupancy {
		ev, tr, err := l.evaluateLocked(s, append(cloneMoves(l.moves[s.ID]), pending), now)
		if err != nil {
			return fail(span, err)
		}
		events = append(events, ev)
		transfers = append(transfers, tr)
	}
	return fail(span, l.commitLocked(ctx, events, transfers))
}

// evaluateLocked picks the winner and prices the settlement. It does not
// mutate state; the returned event does once committed.
func (l *Ledger) evaluateLocked(s *Session, moves []Move, now time.Time) (Event, Transfer, error) {
	winner, err := l.policy.Winner(s.clone(), moves)
	if err != nil {
		return Event{}, Transfer{}, fmt.Errorf("evaluate session %d: %w", s.ID, err)
	}
	if !s.hasJoined(winner) {
		return Event{}, Transfer{}, fmt.Errorf("evaluate session %d: winner %q is not a participant", s.ID, winner)
	}
	prizePool := s.Stake * int64(s.Occupancy)
	fee := prizePool / FeeDivisor
	prize := prizePool - fee
	ev := Event{
		Type:      EventSessionFinished,
		SessionID: s.ID,
		Principal: winner,
		At:        now,
		Finished: &FinishedData{
			Winner:      winner,
			PrizePool:   prizePool,
			PlatformFee: fee,
			WinnerPrize: prize,
		},
	}
	tr := Transfer{
		From:      l.cfg.House,
		To:        winner,
		Amount:    prize,
		Kind:      TransferPrizePayout,
		SessionID: s.ID,
	}
	return ev, tr, nil
}

func (l *Ledger) sealFor(kind confidential.Kind, value uint64, owner string) (confidential.Ciphertext, error) {
	ct, err := l.cipher.Encrypt(kind, value)
	if err != nil {
		return confidential.Ciphertext{}, fmt.Errorf("encrypt: %w", err)
	}
	for _, p := range []string{owner, l.cfg.Admin} {
		if ct, err = l.cipher.Authorize(ct, p); err != nil {
			return confidential.Ciphertext{}, fmt.Errorf("authorize %s: %w", p, err)
		}
	}
	return ct, nil
}

// commitLocked persists events and transfers as one unit, then applies and
// publishes the events. Nothing in memory changes when the store rejects the
// batch. An event that commits but fails to apply marks the ledger diverged.
func (l *Ledger) commitLocked(ctx context.Context, events []Event, transfers []Transfer) error {
	if l.diverged {
		return ErrStateDiverged
	}
	seq := l.seq
	for i := range events {
		seq++
		events[i].Seq = seq
	}
	if err := l.store.Commit(ctx, Batch{Events: events, Transfers: transfers}); err != nil {
		metricCommitErrors.Add(1)
		if errors.Is(err, ErrTransferFailed) {
			return err
		}
		return fmt.Errorf("commit ledger batch: %w", err)
	}
	for _, ev := range events {
		if err := l.apply(ev); err != nil {
			// The batch was built from current state, so this is a bug.
			l.diverged = true
			metricCommitErrors.Add(1)
			log.Error().Err(err).Int64("seq", ev.Seq).Str("event", string(ev.Type)).Msg("apply committed event failed")
			return fmt.Errorf("%w: event %d: %v", ErrStateDiverged, ev.Seq, err)
		}
		countEvent(ev)
		log.Info().
			Int64("seq", ev.Seq).
			Uint64("session_id", ev.SessionID).
			Str("principal", ev.Principal).
			Str("event", string(ev.Type)).
			Msg("ledger event committed")
		for _, p := range l.publishers {
			p.Publish(ev)
		}
	}
	return nil
}

func countEvent(ev Event) {
	switch ev.Type {
	case EventSessionCreated:
		metricSessionsCreated.Add(1)
	case EventPlayerJoined:
		metricPlayersJoined.Add(1)
	case EventSessionStarted:
		metricSessionsStarted.Add(1)
	case EventMoveSubmitted:
		metricMovesSubmitted.Add(1)
	case EventSessionFinished:
		metricSessionsFinished.Add(1)
	case EventSessionTerminated:
		metricSessionsTerminated.Add(1)
	case EventFeesWithdrawn:
		metricFeesWithdrawn.Add(1)
	}
}

func fail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func cloneMoves(in []Move) []Move {
	return append([]Move(nil), in...)
}
