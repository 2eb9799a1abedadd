// Package engine owns the simulation timers. It is the only component that
// reads the wall clock or a random source; everything it decides is folded
// into the store as actions, so the state transitions stay pure and the
// timers stay dumb.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/calmacil/vitalsim/api/schemas"
	"github.com/calmacil/vitalsim/internal/config"
	"github.com/calmacil/vitalsim/internal/metrics"
	"github.com/calmacil/vitalsim/internal/model"
	"github.com/calmacil/vitalsim/internal/scenario"
	"github.com/calmacil/vitalsim/internal/store"
)

// Engine drives the session clocks and translates instructor commands into
// store actions.
type Engine struct {
	st        *store.Store
	catalog   scenario.Catalog
	cfg       config.EngineConfig
	rng       model.Source
	logger    *zap.Logger
	collector *metrics.Collector

	// passive disables the timer loops and mutating commands; a monitor
	// process replays replicated state instead of simulating.
	passive bool

	// generation invalidates pending reveal timers across scenario
	// reloads: a timer armed against generation N fires into the void
	// once a new scenario bumps it to N+1.
	generation atomic.Int64

	wg sync.WaitGroup
}

// Option customises engine construction.
type Option func(*Engine)

// WithRandom substitutes the random source, for deterministic tests.
func WithRandom(rng model.Source) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithCollector attaches the prometheus collector.
func WithCollector(c *metrics.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// Passive builds a monitor-role engine: no timers, no mutations.
func Passive() Option {
	return func(e *Engine) { e.passive = true }
}

// New builds an engine. A zero seed in the config seeds from the wall
// clock; any other value pins the stochastic branches for reproducible
// sessions.
func New(st *store.Store, catalog scenario.Catalog, cfg config.EngineConfig, logger *zap.Logger, opts ...Option) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	e := &Engine{
		st:      st,
		catalog: catalog,
		cfg:     cfg,
		rng:     model.NewSource(seed),
		logger:  logger.Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts the clock and physiology loops and blocks until the context is
// cancelled and the loops have drained. Passive engines return immediately.
func (e *Engine) Run(ctx context.Context) {
	if e.passive {
		return
	}
	e.wg.Add(2)
	go e.clockLoop(ctx)
	go e.physiologyLoop(ctx)
	e.wg.Wait()
}

// clockLoop advances the scenario clock one second at a time while the
// simulation is running, and fires any scenario-scripted events whose time
// has come.
func (e *Engine) clockLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.ClockPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := e.st.State()
			if !state.Running {
				continue
			}
			e.st.Dispatch(store.TickTime{Now: time.Now()})
			if e.collector != nil {
				e.collector.TicksTotal.Inc()
			}
			e.fireDueEvents()
		}
	}
}

// physiologyLoop applies one physiological step per period while running.
func (e *Engine) physiologyLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.PhysiologyPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state := e.st.State()
			if !state.Running {
				continue
			}
			e.stepPhysiology(state)
		}
	}
}

func (e *Engine) stepPhysiology(state store.State) {
	vitals, events := model.TickPhysiology(state.Vitals, state.Rhythm, state.CPRInProgress, e.rng)
	e.st.Dispatch(store.UpdateVitals{Vitals: vitals})
	now := time.Now()
	for _, msg := range events {
		e.st.Dispatch(store.AppendLog{Message: msg, Category: schemas.LogPhysiology, Now: now})
	}
	e.driftVBG(state, vitals)
}

// driftVBG moves the working blood gas toward (or back from) derangement.
// Sub-epsilon pH movement is absorbed rather than dispatched.
func (e *Engine) driftVBG(state store.State, vitals schemas.Vitals) {
	if state.Scenario == nil || state.Scenario.VBG == nil || state.BaselineVBG == nil {
		return
	}
	current := *state.Scenario.VBG
	next := model.DynamicVBG(*state.BaselineVBG, current, vitals, e.cfg.VBGDriftRate)
	if delta := next.PH - current.PH; delta < model.PHEpsilon && delta > -model.PHEpsilon {
		return
	}
	e.st.Dispatch(store.UpdateScenarioVBG{VBG: next})
}

// fireDueEvents dispatches each scripted deterioration step exactly once
// when the clock reaches it.
func (e *Engine) fireDueEvents() {
	state := e.st.State()
	if state.Scenario == nil {
		return
	}
	now := time.Now()
	for _, ev := range state.Scenario.Deterioration {
		if state.SimTime < ev.AtSeconds {
			continue
		}
		if _, done := state.ProcessedEvents[ev.ID]; done {
			continue
		}
		e.st.Dispatch(store.MarkEventProcessed{ID: ev.ID})
		e.logger.Info("Scripted event fired",
			zap.String("event", ev.ID),
			zap.Int("sim_time", state.SimTime))
		if !ev.Effect.Zero() {
			arrest := model.InArrestContext(state.Vitals, state.Rhythm)
			vitals := model.ApplyInterventionEffect(state.Vitals, ev.Effect, arrest)
			e.st.Dispatch(store.UpdateVitals{Vitals: vitals})
		}
		if ev.Rhythm != "" && ev.Rhythm.Valid() {
			e.st.Dispatch(store.UpdateRhythm{Rhythm: ev.Rhythm})
		}
		if ev.Message != "" {
			e.st.Dispatch(store.AppendLog{Message: ev.Message, Category: schemas.LogEvent, Now: now})
			e.st.Dispatch(store.SetFlash{Color: "red"})
		}
		// Re-read so a chain of due events sees its predecessors.
		state = e.st.State()
	}
}
