package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/calmacil/vitalsim/api/schemas"
	"github.com/calmacil/vitalsim/internal/model"
	"github.com/calmacil/vitalsim/internal/store"
)

// LoadScenario installs a scenario, resetting the session. Pending reveal
// timers from the previous scenario are invalidated.
func (e *Engine) LoadScenario(sc *schemas.Scenario) {
	if e.passive {
		return
	}
	e.generation.Add(1)
	e.st.Dispatch(store.LoadScenario{
		Scenario:    sc,
		CycleLength: int(e.cfg.CycleLength.Seconds()),
		Now:         time.Now(),
	})
	e.logger.Info("Scenario loaded", zap.String("title", sc.Title))
}

// Start begins (or resumes) the simulation.
func (e *Engine) Start() {
	if e.passive {
		return
	}
	e.st.Dispatch(store.StartSim{Now: time.Now()})
}

// Pause halts the clocks without losing state.
func (e *Engine) Pause() {
	if e.passive {
		return
	}
	e.st.Dispatch(store.PauseSim{Now: time.Now()})
}

// Stop ends the session permanently.
func (e *Engine) Stop() {
	if e.passive {
		return
	}
	e.generation.Add(1)
	e.st.Dispatch(store.StopSim{Now: time.Now()})
}

// FastForward skips the clock ahead, expiring whatever would have expired.
func (e *Engine) FastForward(seconds int) {
	if e.passive || seconds <= 0 {
		return
	}
	e.st.Dispatch(store.FastForward{Seconds: seconds, Now: time.Now()})
}

// NextCycle skips a full CPR cycle. If a rhythm is staged it is revealed as
// the rhythm check at the cycle boundary.
func (e *Engine) NextCycle() {
	if e.passive {
		return
	}
	state := e.st.State()
	if !state.Loaded {
		return
	}
	now := time.Now()
	e.st.Dispatch(store.FastForward{Seconds: int(e.cfg.CycleLength.Seconds()), Now: now})
	if state.QueuedRhythm != "" {
		e.st.Dispatch(store.UpdateRhythm{Rhythm: state.QueuedRhythm})
		e.st.Dispatch(store.AppendLog{
			Message:  fmt.Sprintf("Rhythm check: %s", state.QueuedRhythm.Label()),
			Category: schemas.LogEvent,
			Now:      now,
		})
	}
}

// QueueRhythm stages what the next rhythm check or shock will reveal.
func (e *Engine) QueueRhythm(r schemas.Rhythm) error {
	if e.passive {
		return nil
	}
	if !r.Valid() {
		return fmt.Errorf("unknown rhythm %q", r)
	}
	e.st.Dispatch(store.QueueRhythm{Rhythm: r})
	return nil
}

// SetRhythm switches the rhythm immediately.
func (e *Engine) SetRhythm(r schemas.Rhythm) error {
	if e.passive {
		return nil
	}
	if !r.Valid() {
		return fmt.Errorf("unknown rhythm %q", r)
	}
	e.st.Dispatch(store.UpdateRhythm{Rhythm: r})
	return nil
}

// Improve merges the scenario's improved bundle.
func (e *Engine) Improve() {
	if e.passive {
		return
	}
	e.st.Dispatch(store.TriggerImprove{Now: time.Now()})
}

// Deteriorate merges the scenario's deteriorated bundle.
func (e *Engine) Deteriorate() {
	if e.passive {
		return
	}
	e.st.Dispatch(store.TriggerDeteriorate{Now: time.Now()})
}

// TriggerArrest puts the patient into a witnessed VF arrest.
func (e *Engine) TriggerArrest() {
	if e.passive {
		return
	}
	state := e.st.State()
	if !state.Loaded {
		return
	}
	now := time.Now()
	vitals := state.Vitals
	vitals.HR = 0
	vitals.BPSys = 0
	vitals.BPDia = 0
	e.st.Dispatch(store.UpdateRhythm{Rhythm: schemas.RhythmVFCoarse})
	e.st.Dispatch(store.UpdateVitals{Vitals: vitals})
	e.st.Dispatch(store.SetFlash{Color: "red"})
	e.st.Dispatch(store.AppendLog{Message: "Patient has arrested", Category: schemas.LogEvent, Now: now})
}

// TriggerROSC restores circulation at the instructor's say-so, with the
// same baseline reset a successful shock produces.
func (e *Engine) TriggerROSC() {
	if e.passive {
		return
	}
	state := e.st.State()
	if !state.Loaded {
		return
	}
	e.st.Dispatch(store.UpdateRhythm{Rhythm: schemas.RhythmSinus})
	e.applyROSC(time.Now())
}

// applyROSC resets vitals to the post-ROSC baseline. Temperature, glucose
// and pupils are not circulation-dependent, so the current values carry
// forward. Any running CPR stops.
func (e *Engine) applyROSC(now time.Time) {
	state := e.st.State()
	vitals := model.ROSCBaseline()
	vitals.Temp = state.Vitals.Temp
	vitals.Glucose = state.Vitals.Glucose
	vitals.Pupils = state.Vitals.Pupils
	e.st.Dispatch(store.UpdateVitals{Vitals: vitals})
	e.st.Dispatch(store.SetFlash{Color: "green"})

	if _, cpr := state.ActiveInterventions[schemas.InterventionCPR]; cpr {
		active, counts := snapshotInterventions(state)
		delete(active, schemas.InterventionCPR)
		e.st.Dispatch(store.UpdateInterventionState{Active: setToList(active), Counts: counts})
	}
	e.st.Dispatch(store.AppendLog{Message: "Return of spontaneous circulation", Category: schemas.LogEvent, Now: now})
}

// ApplyIntervention performs one intervention from the catalog. Unknown
// keys are a silent no-op so a stale client button cannot wedge a session.
func (e *Engine) ApplyIntervention(key string) {
	if e.passive {
		return
	}
	item, ok := e.catalog.Lookup(key)
	if !ok {
		e.logger.Debug("Ignoring unknown intervention", zap.String("key", key))
		return
	}
	state := e.st.State()
	if !state.Loaded || state.Finished {
		return
	}
	now := time.Now()

	active, counts := snapshotInterventions(state)
	_, wasActive := active[key]

	switch item.Type {
	case schemas.Continuous:
		if wasActive {
			delete(active, key)
			e.st.Dispatch(store.UpdateInterventionState{Active: setToList(active), Counts: counts})
			e.st.Dispatch(store.StopInterventionTimer{Key: key})
			e.st.Dispatch(store.AppendLog{
				Message:  fmt.Sprintf("%s stopped", item.Label),
				Category: schemas.LogIntervention,
				Now:      now,
			})
			if key == "intubation" {
				e.st.Dispatch(store.SetCapnography{Enabled: false})
			}
			return
		}
		active[key] = struct{}{}
		e.st.Dispatch(store.UpdateInterventionState{Active: setToList(active), Counts: counts})
		if key == "intubation" {
			e.st.Dispatch(store.SetCapnography{Enabled: true})
		}
	default:
		counts[key]++
		e.st.Dispatch(store.UpdateInterventionState{Active: setToList(active), Counts: counts})
	}

	// The duration timer is independent of type; the reducer ignores the
	// dispatch when one is already running for the key.
	if item.DurationSeconds > 0 {
		e.st.Dispatch(store.StartInterventionTimer{Key: key, Duration: item.DurationSeconds})
	}

	if item.LogMessage != "" {
		e.st.Dispatch(store.AppendLog{Message: item.LogMessage, Category: schemas.LogIntervention, Now: now})
	}

	e.applyEffect(state, item, now)
	e.applyScenarioRules(state, key, counts[key], now)
}

// applyEffect resolves the vitals and rhythm consequences of one
// application.
func (e *Engine) applyEffect(state store.State, item schemas.Intervention, now time.Time) {
	if item.Effect.ChangeRhythm == schemas.RhythmChangeDefib {
		// A shock only resolves against a shockable rhythm. Delivered into
		// anything else it is logged and leaves the rhythm, and any staged
		// rhythm, untouched.
		if !state.Rhythm.Shockable() {
			e.st.Dispatch(store.AppendLog{
				Message:  "Shock delivered: no shockable rhythm, no effect",
				Category: schemas.LogEvent,
				Now:      now,
			})
			return
		}
		outcome := model.ResolveDefibrillation(state.Rhythm, state.QueuedRhythm,
			model.DefibOdds{NoChange: e.cfg.DefibNoChange}, e.rng)
		e.st.Dispatch(store.UpdateRhythm{Rhythm: outcome.Rhythm})
		e.st.Dispatch(store.AppendLog{Message: outcome.Log, Category: schemas.LogEvent, Now: now})
		if outcome.ROSC {
			e.applyROSC(now)
		}
		return
	}

	if !item.Effect.Zero() {
		arrest := model.InArrestContext(state.Vitals, state.Rhythm)
		vitals := model.ApplyInterventionEffect(state.Vitals, item.Effect, arrest)
		e.st.Dispatch(store.UpdateVitals{Vitals: vitals})
	}
	if r := schemas.Rhythm(item.Effect.ChangeRhythm); r != "" && r.Valid() {
		e.st.Dispatch(store.UpdateRhythm{Rhythm: r})
	}
}

// applyScenarioRules runs the scenario's data-driven responses to an
// intervention: stabilisers, dose triggers and investigation fixes.
func (e *Engine) applyScenarioRules(state store.State, key string, newCount int, now time.Time) {
	if state.Scenario == nil {
		return
	}
	for _, stab := range state.Scenario.Stabilisers {
		if stab == key {
			e.st.Dispatch(store.TriggerImprove{Now: now})
			break
		}
	}
	for _, dt := range state.Scenario.DoseTriggers {
		if dt.Intervention == key && newCount == dt.Dose {
			e.st.Dispatch(store.TriggerImprove{Now: now})
		}
	}
	for _, fix := range state.Scenario.InvestigationFixes {
		if fix.Intervention == key {
			e.st.Dispatch(store.ResolveInvestigationFinding{
				Investigation: fix.Investigation,
				Result:        fix.Result,
			})
		}
	}
}

// ManualUpdateVital sets one vital directly from instructor input. Numeric
// fields reject anything that does not parse to a finite number.
func (e *Engine) ManualUpdateVital(field, value string) error {
	if e.passive {
		return nil
	}
	field = strings.ToLower(strings.TrimSpace(field))
	if field == "pupils" {
		e.st.Dispatch(store.ManualVitalUpdate{Field: field, Text: strings.TrimSpace(value)})
		return nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("parsing %s value %q: %w", field, value, err)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fmt.Errorf("%s value must be finite", field)
	}
	e.st.Dispatch(store.ManualVitalUpdate{Field: field, Number: n})
	return nil
}

// RevealInvestigation orders an investigation: it goes pending immediately
// and the result is revealed after the configured latency. Ordering an
// already-revealed investigation does nothing; ordering twice while pending
// reveals once.
func (e *Engine) RevealInvestigation(inv schemas.Investigation) {
	if e.passive {
		return
	}
	state := e.st.State()
	if !state.Loaded {
		return
	}
	if _, done := state.RevealedInvestigations[inv]; done {
		return
	}
	if _, pending := state.LoadingInvestigations[inv]; pending {
		return
	}
	e.st.Dispatch(store.SetLoadingInvestigation{Investigation: inv})

	gen := e.generation.Load()
	time.AfterFunc(e.cfg.RevealDelay, func() {
		if e.generation.Load() != gen {
			return
		}
		e.st.Dispatch(store.RevealInvestigation{Investigation: inv, Now: time.Now()})
		if e.collector != nil {
			e.collector.RevealsTotal.Inc()
		}
	})
}

func snapshotInterventions(state store.State) (map[string]struct{}, map[string]int) {
	active := make(map[string]struct{}, len(state.ActiveInterventions))
	for k := range state.ActiveInterventions {
		active[k] = struct{}{}
	}
	counts := make(map[string]int, len(state.InterventionCounts))
	for k, v := range state.InterventionCounts {
		counts[k] = v
	}
	return active, counts
}

func setToList(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
