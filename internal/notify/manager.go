// Package notify pushes public ledger events to chat webhooks.
package notify

import (
	"context"
	"sync"
	"time"

	"cipher-rooms/internal/ledger"
	"cipher-rooms/internal/notify/platforms"

	"github.com/rs/zerolog/log"
)

type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

// Manager is a ledger.Publisher. Publish never blocks the ledger: jobs that
// do not fit in the dispatch buffer are dropped.
type Manager struct {
	cfg      Config
	router   Router
	adapters map[string]platforms.Adapter

	dispatchCh chan job
	retryQ     *retryQueue
	done       chan struct{}
	stopOnce   sync.Once

	mu           sync.Mutex
	started      bool
	breakerByKey map[string]breakerState
}

var _ ledger.Publisher = (*Manager)(nil)

func NewManager(cfg Config) *Manager {
	client := platforms.NewHTTPClient(cfg.RequestTimeout)
	if cfg.DispatchBuffer <= 0 {
		cfg.DispatchBuffer = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.CircuitOpenDuration <= 0 {
		cfg.CircuitOpenDuration = 30 * time.Second
	}
	m := &Manager{
		cfg:    cfg,
		router: Router{},
		adapters: map[string]platforms.Adapter{
			"discord": platforms.NewDiscordAdapter(client),
			"feishu":  platforms.NewFeishuAdapter(client),
			"webhook": platforms.NewWebhookAdapter(client),
		},
		dispatchCh:   make(chan job, cfg.DispatchBuffer),
		done:         make(chan struct{}),
		breakerByKey: map[string]breakerState{},
	}
	m.retryQ = newRetryQueue(m.dispatchCh, m.done)
	return m
}

// Start launches the workers. They exit when ctx ends or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.Enabled {
		return
	}
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	for i := 0; i < m.cfg.Workers; i++ {
		go m.worker(ctx)
	}
	go func() {
		select {
		case <-ctx.Done():
			m.Stop()
		case <-m.done:
		}
	}()
	log.Info().Int("targets", len(m.cfg.Targets)).Int("workers", m.cfg.Workers).Msg("notify started")
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Manager) Publish(ev ledger.Event) {
	if !m.cfg.Enabled {
		return
	}
	targets := m.router.MatchTargets(m.cfg.Targets, ev)
	if len(targets) == 0 {
		return
	}
	msg, ok := FormatMessage(ev)
	if !ok {
		return
	}
	for _, t := range targets {
		m.enqueue(job{Target: t, EventType: string(ev.Type), Message: msg})
	}
}

func (m *Manager) enqueue(j job) {
	select {
	case <-m.done:
		metricDroppedTotal.Add(1)
	case m.dispatchCh <- j:
		metricQueuedTotal.Add(1)
		metricQueueLen.Set(int64(len(m.dispatchCh)))
	default:
		metricDroppedTotal.Add(1)
		log.Warn().Str("platform", j.Target.Platform).Str("event", j.EventType).Msg("notify queue full, dropping")
	}
}
