// File: internal/session/runner.go
// Description: Manages the high-level lifecycle of one training session. It is
// injected with fully configured components, making it decoupled and testable.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/calmacil/vitalsim/internal/audio"
	"github.com/calmacil/vitalsim/internal/config"
	"github.com/calmacil/vitalsim/internal/engine"
	"github.com/calmacil/vitalsim/internal/metrics"
	"github.com/calmacil/vitalsim/internal/persistence"
	"github.com/calmacil/vitalsim/internal/replication"
	"github.com/calmacil/vitalsim/internal/store"
)

// Runner owns the lifecycle of one session: the engine clocks, the
// replication role, autosave and the audio cue. Components it was not given
// are simply skipped.
type Runner struct {
	session string
	cfg     *config.Config
	logger  *zap.Logger

	st  *store.Store
	eng *engine.Engine

	broadcaster *replication.Broadcaster
	monitor     *replication.Monitor
	snapshots   *persistence.SnapshotStore
	collector   *metrics.Collector
	beeper      *audio.Scheduler
}

// New wires a runner. The store and engine are mandatory; everything else is
// optional.
func New(session string, cfg *config.Config, st *store.Store, eng *engine.Engine, logger *zap.Logger) (*Runner, error) {
	if cfg == nil || st == nil || eng == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize session runner with nil dependencies")
	}
	return &Runner{
		session: session,
		cfg:     cfg,
		logger:  logger.Named("session"),
		st:      st,
		eng:     eng,
	}, nil
}

func (r *Runner) SetBroadcaster(b *replication.Broadcaster)   { r.broadcaster = b }
func (r *Runner) SetMonitor(m *replication.Monitor)           { r.monitor = m }
func (r *Runner) SetSnapshots(s *persistence.SnapshotStore)   { r.snapshots = s }
func (r *Runner) SetCollector(c *metrics.Collector)           { r.collector = c }
func (r *Runner) SetAudio(a *audio.Scheduler)                 { r.beeper = a }

// Engine exposes the instructor command surface for the console.
func (r *Runner) Engine() *engine.Engine { return r.eng }

// Store exposes read access for the console renderer.
func (r *Runner) Store() *store.Store { return r.st }

// Restore replaces the aggregate from the last checkpoint, if one exists.
func (r *Runner) Restore(ctx context.Context) error {
	if r.snapshots == nil {
		return fmt.Errorf("persistence is not configured")
	}
	state, err := r.snapshots.LoadSnapshot(ctx, r.session)
	if errors.Is(err, persistence.ErrNoSnapshot) {
		return err
	}
	if err != nil {
		return fmt.Errorf("restoring session %s: %w", r.session, err)
	}
	// A restored session resumes paused so the instructor chooses when the
	// clocks pick back up.
	state.Running = false
	r.st.Dispatch(store.RestoreSession{State: state})
	r.logger.Info("Session restored from checkpoint",
		zap.String("session", r.session),
		zap.Int("sim_time", state.SimTime))
	return nil
}

// Run blocks until the context is cancelled, then shuts the components down
// in order.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("Session starting", zap.String("session", r.session))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.eng.Run(ctx)
	}()

	if r.broadcaster != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.broadcaster.Run(ctx)
		}()
	}
	if r.monitor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warn("Monitor stopped", zap.Error(err))
			}
		}()
	}
	if r.snapshots != nil && r.cfg.Persistence().Autosave {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.autosaveLoop(ctx)
		}()
	}
	if r.collector != nil && r.cfg.Metrics().Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.Serve(ctx, r.cfg.Metrics().ListenAddr, r.logger)
		}()
	}
	if r.beeper != nil {
		r.beeper.Start()
	}

	<-ctx.Done()
	r.logger.Info("Session shutting down", zap.String("session", r.session))

	if r.beeper != nil {
		r.beeper.Stop()
	}
	wg.Wait()

	if r.snapshots != nil {
		// Final checkpoint outside the cancelled context.
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.checkpoint(saveCtx); err != nil {
			r.logger.Warn("Final checkpoint failed", zap.Error(err))
		}
	}

	r.logger.Info("Session finished", zap.String("session", r.session))
	return nil
}

// autosaveLoop checkpoints on every state change, coalesced by the store's
// subscription so a burst of dispatches costs one save.
func (r *Runner) autosaveLoop(ctx context.Context) {
	changes, unsubscribe := r.st.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := r.checkpoint(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warn("Autosave failed", zap.Error(err))
			}
		}
	}
}

// checkpoint saves the snapshot, appends the journal tails and refreshes
// the patient gauges. A finished session clears its snapshot instead, so a
// later restore cannot resurrect a stopped session; the journals stay for
// debrief.
func (r *Runner) checkpoint(ctx context.Context) error {
	state := r.st.State()
	if !state.Loaded {
		return nil
	}
	if state.Finished {
		if err := r.snapshots.ClearSnapshot(ctx, r.session); err != nil {
			return err
		}
	} else if err := r.snapshots.SaveSnapshot(ctx, r.session, state); err != nil {
		return err
	}
	logRows, vitalsRows, err := r.snapshots.JournalCounts(ctx, r.session)
	if err != nil {
		return err
	}
	if logRows < len(state.Log) {
		if err := r.snapshots.AppendLogEntries(ctx, r.session, state.Log[logRows:]); err != nil {
			return err
		}
	}
	if vitalsRows < len(state.History) {
		if err := r.snapshots.AppendVitalsSamples(ctx, r.session, state.History[vitalsRows:]); err != nil {
			return err
		}
	}
	if r.collector != nil {
		r.collector.HeartRate.Set(float64(state.Vitals.HR))
		r.collector.SpO2.Set(float64(state.Vitals.SpO2))
		r.collector.SimTime.Set(float64(state.SimTime))
	}
	return nil
}
