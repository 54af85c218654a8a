package notify

import (
	"context"
	"errors"
	"time"

	"cipher-rooms/internal/notify/platforms"

	"github.com/rs/zerolog/log"
)

var errCircuitOpen = errors.New("circuit_open")

func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case j := <-m.dispatchCh:
			metricQueueLen.Set(int64(len(m.dispatchCh)))
			m.processJob(ctx, j)
		}
	}
}

func (m *Manager) processJob(ctx context.Context, j job) {
	adapter := m.adapters[j.Target.Platform]
	if adapter == nil {
		metricDroppedTotal.Add(1)
		return
	}
	if err := m.beforeSend(j.key(), time.Now()); err != nil {
		metricCircuitOpenTotal.Add(1)
		m.retryOrDrop(j, err)
		return
	}
	if err := adapter.Send(ctx, j.Target.Endpoint, j.Target.Secret, toPlatformMessage(j.Message)); err != nil {
		metricFailedTotal.Add(1)
		m.afterFailure(j.key(), time.Now())
		m.retryOrDrop(j, err)
		return
	}
	metricSentTotal.Add(1)
	m.afterSuccess(j.key())
}

// retryOrDrop schedules another attempt with exponential backoff and reports
// whether it did.
func (m *Manager) retryOrDrop(j job, err error) bool {
	if j.Attempt >= m.cfg.RetryMax {
		metricRetryDroppedTotal.Add(1)
		log.Warn().Err(err).Str("platform", j.Target.Platform).Str("event", j.EventType).Int("attempts", j.Attempt+1).
			Msg("notify delivery dropped")
		return false
	}
	j.Attempt++
	metricRetryTotal.Add(1)
	m.retryQ.Enqueue(j, m.cfg.RetryBase*time.Duration(1<<(j.Attempt-1)))
	return true
}

func (m *Manager) beforeSend(key string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakerByKey[key]
	if !state.openUntil.IsZero() && now.Before(state.openUntil) {
		return errCircuitOpen
	}
	return nil
}

func (m *Manager) afterFailure(key string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.breakerByKey[key]
	state.consecutiveFailures++
	if state.consecutiveFailures >= m.cfg.FailureThreshold {
		state.openUntil = now.Add(m.cfg.CircuitOpenDuration)
		state.consecutiveFailures = 0
	}
	m.breakerByKey[key] = state
}

func (m *Manager) afterSuccess(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakerByKey, key)
}

func toPlatformMessage(msg Message) platforms.Message {
	fields := make([]platforms.Field, 0, len(msg.Fields))
	for _, f := range msg.Fields {
		fields = append(fields, platforms.Field{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	return platforms.Message{
		Title:       msg.Title,
		Content:     msg.Content,
		Description: msg.Description,
		Color:       msg.Color,
		Timestamp:   msg.Timestamp,
		Footer:      msg.Footer,
		Fields:      fields,
	}
}
