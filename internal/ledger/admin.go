package ledger

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EmergencyEndSession terminates an active session and refunds the stake to
// every participant. No prize or fee is paid.
func (l *Ledger) EmergencyEndSession(ctx context.Context, sessionID uint64, caller string) error {
	ctx, span := tracer.Start(ctx, "ledger.EmergencyEndSession", trace.WithAttributes(attribute.Int64("session_id", int64(sessionID))))
	defer span.End()

	if caller != l.cfg.Admin {
		return fail(span, ErrUnauthorized)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.sessions[sessionID]
	if s == nil || !s.Active {
		return fail(span, ErrSessionInactive)
	}

	participants := append([]string(nil), s.Participants...)
	transfers := make([]Transfer, 0, len(participants))
	for _, p := range participants {
		transfers = append(transfers, Transfer{
			From:      l.cfg.House,
			To:        p,
			Amount:    s.Stake,
			Kind:      TransferStakeRefund,
			SessionID: s.ID,
		})
	}
	ev := Event{
		Type:       EventSessionTerminated,
		SessionID:  s.ID,
		Principal:  caller,
		At:         l.now(),
		Terminated: &TerminatedData{Refund: s.Stake, Participants: participants},
	}
	return fail(span, l.commitLocked(ctx, []Event{ev}, transfers))
}

// WithdrawFees moves the house account's whole balance to the administrator
// and returns the amount. A zero balance is a no-op.
func (l *Ledger) WithdrawFees(ctx context.Context, caller string) (int64, error) {
	ctx, span := tracer.Start(ctx, "ledger.WithdrawFees")
	defer span.End()

	if caller != l.cfg.Admin {
		return 0, fail(span, ErrUnauthorized)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance, err := l.store.Balance(ctx, l.cfg.House)
	if err != nil {
		return 0, fail(span, fmt.Errorf("read house balance: %w", err))
	}
	if balance <= 0 {
		return 0, nil
	}
	ev := Event{
		Type:      EventFeesWithdrawn,
		Principal: caller,
		At:        l.now(),
		Withdrawn: &WithdrawnData{Amount: balance, To: caller},
	}
	tr := Transfer{
		From:   l.cfg.House,
		To:     caller,
		Amount: balance,
		Kind:   TransferFeeWithdrawal,
	}
	if err := l.commitLocked(ctx, []Event{ev}, []Transfer{tr}); err != nil {
		return 0, fail(span, err)
	}
	span.SetAttributes(attribute.Int64("amount", balance))
	return balance, nil
}
