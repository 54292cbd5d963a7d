package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"outdial/internal/campaign"
)

// Registry owns the recurring tick loop of every running campaign. Each
// armed campaign gets one goroutine with a ticker at the campaign's
// configured cadence; the first tick fires immediately on start. All
// loop state lives on the Registry instance.
type Registry struct {
	engine    *Engine
	campaigns campaign.Store
	log       *slog.Logger

	mu    sync.Mutex
	loops map[string]*loop
}

type loop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRegistry(engine *Engine, campaigns campaign.Store, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		engine:    engine,
		campaigns: campaigns,
		log:       log,
		loops:     make(map[string]*loop),
	}
}

// Start marks the campaign running and arms its tick loop. Starting an
// already-running campaign restarts the loop, picking up a changed
// cadence. The config must be complete enough to dial.
func (r *Registry) Start(ctx context.Context, campaignID string) error {
	if !campaign.IsValidID(campaignID) {
		return campaign.ErrUnknownCampaign
	}
	cfg, err := r.campaigns.GetConfig(ctx, campaignID)
	if err != nil {
		return err
	}
	if !cfg.Complete() {
		return fmt.Errorf("campaign %s: assistant, caller IDs and dataset must be configured before starting", campaignID)
	}

	if _, err := r.campaigns.UpdateState(ctx, func(st *campaign.State) {
		run := st.Campaigns[campaignID]
		run.Running = true
		run.Paused = false
	}); err != nil {
		return err
	}

	r.arm(campaignID, time.Duration(cfg.CallEverySeconds)*time.Second)
	r.log.Info("campaign started", "campaign", campaignID, "call_every_s", cfg.CallEverySeconds)
	return nil
}

// Stop disarms the loop and marks the campaign stopped. In-flight calls
// are left to resolve through their outcome events.
func (r *Registry) Stop(ctx context.Context, campaignID string) error {
	if !campaign.IsValidID(campaignID) {
		return campaign.ErrUnknownCampaign
	}
	r.disarm(campaignID)
	if _, err := r.campaigns.UpdateState(ctx, func(st *campaign.State) {
		run := st.Campaigns[campaignID]
		run.Running = false
		run.Paused = false
	}); err != nil {
		return err
	}
	r.log.Info("campaign stopped", "campaign", campaignID)
	return nil
}

// Pause keeps the loop armed but makes ticks no-ops until Resume.
func (r *Registry) Pause(ctx context.Context, campaignID string) error {
	return r.setPaused(ctx, campaignID, true)
}

// Resume lifts a pause. It has no effect on a stopped campaign.
func (r *Registry) Resume(ctx context.Context, campaignID string) error {
	return r.setPaused(ctx, campaignID, false)
}

func (r *Registry) setPaused(ctx context.Context, campaignID string, paused bool) error {
	if !campaign.IsValidID(campaignID) {
		return campaign.ErrUnknownCampaign
	}
	_, err := r.campaigns.UpdateState(ctx, func(st *campaign.State) {
		run := st.Campaigns[campaignID]
		if run.Running {
			run.Paused = paused
		}
	})
	if err == nil {
		r.log.Info("campaign pause state changed", "campaign", campaignID, "paused", paused)
	}
	return err
}

// StopAll disarms every loop and marks every campaign stopped. Used by
// the panic endpoint and by graceful shutdown.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.loops))
	for id := range r.loops {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.disarm(id)
	}

	_, err := r.campaigns.UpdateState(ctx, func(st *campaign.State) {
		for _, run := range st.Campaigns {
			run.Running = false
			run.Paused = false
		}
	})
	if err != nil {
		return err
	}
	r.log.Info("all campaigns stopped")
	return nil
}

// Shutdown disarms every loop without touching persisted state, so
// campaigns marked running resume on the next boot.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.loops))
	for id := range r.loops {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.disarm(id)
	}
}

// ResumePersisted arms loops for campaigns whose persisted state says
// running. Called once at boot so a restart does not silently strand
// campaigns that were mid-run.
func (r *Registry) ResumePersisted(ctx context.Context) error {
	st, err := r.campaigns.GetState(ctx)
	if err != nil {
		return err
	}
	for _, id := range campaign.SlotIDs {
		run := st.Campaigns[id]
		if run == nil || !run.Running {
			continue
		}
		cfg, err := r.campaigns.GetConfig(ctx, id)
		if err != nil {
			r.log.Error("resume: read config failed", "campaign", id, "err", err)
			continue
		}
		if !cfg.Complete() {
			r.log.Warn("resume: campaign marked running but not configured", "campaign", id)
			continue
		}
		r.arm(id, time.Duration(cfg.CallEverySeconds)*time.Second)
		r.log.Info("campaign resumed after restart", "campaign", id)
	}
	return nil
}

// Armed reports whether a tick loop is currently running for the id.
func (r *Registry) Armed(campaignID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.loops[campaignID]
	return ok
}

func (r *Registry) arm(campaignID string, every time.Duration) {
	if every <= 0 {
		every = 30 * time.Second
	}

	r.mu.Lock()
	if old, ok := r.loops[campaignID]; ok {
		delete(r.loops, campaignID)
		r.mu.Unlock()
		old.cancel()
		<-old.done
		r.mu.Lock()
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{cancel: cancel, done: make(chan struct{})}
	r.loops[campaignID] = l
	r.mu.Unlock()

	go r.run(ctx, campaignID, every, l.done)
}

func (r *Registry) disarm(campaignID string) {
	r.mu.Lock()
	l, ok := r.loops[campaignID]
	if ok {
		delete(r.loops, campaignID)
	}
	r.mu.Unlock()
	if ok {
		l.cancel()
		<-l.done
	}
}

func (r *Registry) run(ctx context.Context, campaignID string, every time.Duration, done chan struct{}) {
	defer close(done)

	tick := func() {
		tctx, cancel := context.WithTimeout(ctx, every)
		defer cancel()
		if err := r.engine.Tick(tctx, campaignID); err != nil {
			r.log.Error("tick failed", "campaign", campaignID, "err", err)
		}
	}

	tick()

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tick()
		}
	}
}
