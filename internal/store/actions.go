package store

import (
	"time"

	"github.com/calmacil/vitalsim/api/schemas"
)

// Action is the closed union of state transitions. Each variant corresponds
// to exactly one reducer case, so exhaustiveness is checked where the
// reducer switches on the concrete type. Actions carry any wall-clock or
// random inputs their transition needs; the reducer itself never reads the
// clock or a random source.
type Action interface {
	actionName() string
}

// LoadScenario resets to a fresh state and installs the scenario.
type LoadScenario struct {
	Scenario    *schemas.Scenario
	CycleLength int
	Now         time.Time
}

// StartSim marks the session running.
type StartSim struct{ Now time.Time }

// PauseSim halts the session without clearing accumulated state.
type PauseSim struct{ Now time.Time }

// StopSim ends the session permanently.
type StopSim struct{ Now time.Time }

// TickTime advances the sim clock one second and expires any
// duration-backed effects whose time is up.
type TickTime struct{ Now time.Time }

// FastForward advances the sim clock by an arbitrary offset, running the
// same duration-expiry scan as the ticks it skips, and resets the cycle
// countdown.
type FastForward struct {
	Seconds int
	Now     time.Time
}

// UpdateVitals replaces the vitals from the physiology tick pathway,
// carrying the prior vitals into PrevVitals and appending a history sample.
type UpdateVitals struct{ Vitals schemas.Vitals }

// ManualVitalUpdate sets one named vital directly. The pre-edit vitals are
// captured into PrevVitals; no history sample is recorded, so trends keep
// reflecting the automatic pathway.
type ManualVitalUpdate struct {
	Field  string
	Number float64
	Text   string
}

// UpdateRhythm replaces the rhythm tag and consumes any staged rhythm.
type UpdateRhythm struct{ Rhythm schemas.Rhythm }

// QueueRhythm pre-stages the rhythm the next defibrillation or rhythm check
// will reveal.
type QueueRhythm struct{ Rhythm schemas.Rhythm }

// TriggerImprove merges the scenario's improved evolution bundle. No-op if
// the scenario declares none.
type TriggerImprove struct{ Now time.Time }

// TriggerDeteriorate merges the scenario's deteriorated evolution bundle.
type TriggerDeteriorate struct{ Now time.Time }

// StartInterventionTimer registers a duration-backed effect, only if one is
// not already running for the key.
type StartInterventionTimer struct {
	Key      string
	Duration int
}

// StopInterventionTimer removes a running duration entry without the
// worn-off log an expiry produces, for effects cancelled by retoggling.
type StopInterventionTimer struct{ Key string }

// UpdateInterventionState atomically replaces the active set and counts.
type UpdateInterventionState struct {
	Active []string
	Counts map[string]int
}

// SetLoadingInvestigation marks an investigation as ordered and pending.
type SetLoadingInvestigation struct{ Investigation schemas.Investigation }

// RevealInvestigation marks an investigation's result available.
type RevealInvestigation struct {
	Investigation schemas.Investigation
	Now           time.Time
}

// ResolveInvestigationFinding rewrites one authored investigation result
// (scenario-declared fixes, e.g. a chest drain clearing the pneumothorax).
type ResolveInvestigationFinding struct {
	Investigation schemas.Investigation
	Result        string
}

// UpdateScenarioVBG installs the drifted working blood gas.
type UpdateScenarioVBG struct{ VBG schemas.VBG }

// SyncFromMaster overwrites the monitor's observed projection. It is a full
// replacement of the replicated fields and touches nothing else.
type SyncFromMaster struct{ Projection schemas.Projection }

// MarkEventProcessed records a scenario-scripted event id so it fires
// exactly once.
type MarkEventProcessed struct{ ID string }

// AppendLog adds one clinical log entry.
type AppendLog struct {
	Message  string
	Category string
	Now      time.Time
}

// SetFlash sets or clears the transient colour cue.
type SetFlash struct{ Color string }

// SetCapnography toggles the capnography trace flag replicated to monitors.
type SetCapnography struct{ Enabled bool }

// RestoreSession replaces the whole aggregate from a persisted snapshot.
type RestoreSession struct{ State State }

func (LoadScenario) actionName() string                { return "load_scenario" }
func (StartSim) actionName() string                    { return "start_sim" }
func (PauseSim) actionName() string                    { return "pause_sim" }
func (StopSim) actionName() string                     { return "stop_sim" }
func (TickTime) actionName() string                    { return "tick_time" }
func (FastForward) actionName() string                 { return "fast_forward" }
func (UpdateVitals) actionName() string                { return "update_vitals" }
func (ManualVitalUpdate) actionName() string           { return "manual_vital_update" }
func (UpdateRhythm) actionName() string                { return "update_rhythm" }
func (QueueRhythm) actionName() string                 { return "queue_rhythm" }
func (TriggerImprove) actionName() string              { return "trigger_improve" }
func (TriggerDeteriorate) actionName() string          { return "trigger_deteriorate" }
func (StartInterventionTimer) actionName() string      { return "start_intervention_timer" }
func (StopInterventionTimer) actionName() string       { return "stop_intervention_timer" }
func (UpdateInterventionState) actionName() string     { return "update_intervention_state" }
func (SetLoadingInvestigation) actionName() string     { return "set_loading_investigation" }
func (RevealInvestigation) actionName() string         { return "reveal_investigation" }
func (ResolveInvestigationFinding) actionName() string { return "resolve_investigation_finding" }
func (UpdateScenarioVBG) actionName() string           { return "update_scenario_vbg" }
func (SyncFromMaster) actionName() string              { return "sync_from_master" }
func (MarkEventProcessed) actionName() string          { return "mark_event_processed" }
func (AppendLog) actionName() string                   { return "append_log" }
func (SetFlash) actionName() string                    { return "set_flash" }
func (SetCapnography) actionName() string              { return "set_capnography" }
func (RestoreSession) actionName() string              { return "restore_session" }

// ActionName exposes the variant tag for metrics labels.
func ActionName(a Action) string {
	if a == nil {
		return "nil"
	}
	return a.actionName()
}
