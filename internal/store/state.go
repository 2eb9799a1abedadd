package store

import (
	"fmt"

	"github.com/calmacil/vitalsim/api/schemas"
)

// DurationEntry tracks a running intervention effect so TICK_TIME can
// expire it once its elapsed sim time reaches Duration.
type DurationEntry struct {
	StartedAt int `json:"started_at"`
	Duration  int `json:"duration"`
}

// State is the single consolidated simulation aggregate. It is owned
// exclusively by the Store; everything else reads snapshots and dispatches
// actions.
type State struct {
	Scenario *schemas.Scenario
	// BaselineVBG is the authored blood gas captured at load time, kept
	// separate so dynamic drift always has a fixed point to recover toward.
	BaselineVBG *schemas.VBG

	Loaded   bool
	Running  bool
	Finished bool

	// SimTime is the scenario clock in seconds.
	SimTime int
	// CycleLength and CycleRemaining implement the two-minute countdown
	// pacing rhythm checks during an arrest.
	CycleLength    int
	CycleRemaining int

	Vitals     schemas.Vitals
	PrevVitals schemas.Vitals

	Rhythm       schemas.Rhythm
	QueuedRhythm schemas.Rhythm

	CPRInProgress      bool
	CapnographyEnabled bool
	Flash              string

	ActiveInterventions map[string]struct{}
	InterventionCounts  map[string]int
	ActiveDurations     map[string]DurationEntry

	Log     []schemas.LogEntry
	History []schemas.VitalsSample

	ProcessedEvents        map[string]struct{}
	LoadingInvestigations  map[schemas.Investigation]struct{}
	RevealedInvestigations map[schemas.Investigation]struct{}

	// ObservedTitle/ObservedPathology hold the scenario identity a monitor
	// learns from inbound projections; a monitor never owns a Scenario.
	ObservedTitle     string
	ObservedPathology string
}

// NewState returns an empty aggregate with all collections allocated.
func NewState() State {
	return State{
		ActiveInterventions:    map[string]struct{}{},
		InterventionCounts:     map[string]int{},
		ActiveDurations:        map[string]DurationEntry{},
		ProcessedEvents:        map[string]struct{}{},
		LoadingInvestigations:  map[schemas.Investigation]struct{}{},
		RevealedInvestigations: map[schemas.Investigation]struct{}{},
	}
}

// clone deep-copies the aggregate so a reduced state never aliases the
// previous one.
func (s State) clone() State {
	out := s
	out.Scenario = s.Scenario.Clone()
	if s.BaselineVBG != nil {
		v := *s.BaselineVBG
		out.BaselineVBG = &v
	}
	out.ActiveInterventions = cloneSet(s.ActiveInterventions)
	out.InterventionCounts = make(map[string]int, len(s.InterventionCounts))
	for k, v := range s.InterventionCounts {
		out.InterventionCounts[k] = v
	}
	out.ActiveDurations = make(map[string]DurationEntry, len(s.ActiveDurations))
	for k, v := range s.ActiveDurations {
		out.ActiveDurations[k] = v
	}
	out.ProcessedEvents = cloneSet(s.ProcessedEvents)
	out.LoadingInvestigations = cloneSet(s.LoadingInvestigations)
	out.RevealedInvestigations = cloneSet(s.RevealedInvestigations)
	out.Log = append([]schemas.LogEntry(nil), s.Log...)
	out.History = append([]schemas.VitalsSample(nil), s.History...)
	return out
}

func cloneSet[K comparable](in map[K]struct{}) map[K]struct{} {
	out := make(map[K]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

// FormatSimTime renders a sim clock value as MM:SS for log entries.
func FormatSimTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
