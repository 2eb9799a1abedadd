package store

import (
	"sort"

	"github.com/calmacil/vitalsim/api/schemas"
)

// WireState is the storage representation of the aggregate. Sets and maps
// become ordered lists so the encoded form is stable and diffable; the
// in-memory representation stays set/map shaped. Conversion happens only at
// the persistence boundary.
type WireState struct {
	Scenario    *schemas.Scenario `json:"scenario,omitempty"`
	BaselineVBG *schemas.VBG      `json:"baseline_vbg,omitempty"`

	Loaded   bool `json:"loaded"`
	Running  bool `json:"running"`
	Finished bool `json:"finished"`

	SimTime        int `json:"sim_time"`
	CycleLength    int `json:"cycle_length"`
	CycleRemaining int `json:"cycle_remaining"`

	Vitals     schemas.Vitals `json:"vitals"`
	PrevVitals schemas.Vitals `json:"prev_vitals"`

	Rhythm       schemas.Rhythm `json:"rhythm"`
	QueuedRhythm schemas.Rhythm `json:"queued_rhythm,omitempty"`

	CPRInProgress      bool   `json:"cpr_in_progress"`
	CapnographyEnabled bool   `json:"capnography_enabled"`
	Flash              string `json:"flash,omitempty"`

	ActiveInterventions []string            `json:"active_interventions"`
	InterventionCounts  []WireCount         `json:"intervention_counts"`
	ActiveDurations     []WireDuration      `json:"active_durations"`
	ProcessedEvents     []string            `json:"processed_events"`
	Loading             []string            `json:"loading_investigations"`
	Revealed            []string            `json:"revealed_investigations"`

	Log     []schemas.LogEntry     `json:"log"`
	History []schemas.VitalsSample `json:"history"`
}

// WireCount is one intervention-count pair in stable order.
type WireCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// WireDuration is one running duration entry in stable order.
type WireDuration struct {
	Key       string `json:"key"`
	StartedAt int    `json:"started_at"`
	Duration  int    `json:"duration"`
}

// ToWire flattens the aggregate for storage.
func ToWire(s State) WireState {
	w := WireState{
		Scenario:           s.Scenario.Clone(),
		Loaded:             s.Loaded,
		Running:            s.Running,
		Finished:           s.Finished,
		SimTime:            s.SimTime,
		CycleLength:        s.CycleLength,
		CycleRemaining:     s.CycleRemaining,
		Vitals:             s.Vitals,
		PrevVitals:         s.PrevVitals,
		Rhythm:             s.Rhythm,
		QueuedRhythm:       s.QueuedRhythm,
		CPRInProgress:      s.CPRInProgress,
		CapnographyEnabled: s.CapnographyEnabled,
		Flash:              s.Flash,
		Log:                append([]schemas.LogEntry(nil), s.Log...),
		History:            append([]schemas.VitalsSample(nil), s.History...),
	}
	if s.BaselineVBG != nil {
		v := *s.BaselineVBG
		w.BaselineVBG = &v
	}
	w.ActiveInterventions = sortedKeys(s.ActiveInterventions)
	w.ProcessedEvents = sortedKeys(s.ProcessedEvents)
	w.Loading = sortedInvKeys(s.LoadingInvestigations)
	w.Revealed = sortedInvKeys(s.RevealedInvestigations)
	for _, k := range sortedCountKeys(s.InterventionCounts) {
		w.InterventionCounts = append(w.InterventionCounts, WireCount{Key: k, Count: s.InterventionCounts[k]})
	}
	durKeys := make([]string, 0, len(s.ActiveDurations))
	for k := range s.ActiveDurations {
		durKeys = append(durKeys, k)
	}
	sort.Strings(durKeys)
	for _, k := range durKeys {
		e := s.ActiveDurations[k]
		w.ActiveDurations = append(w.ActiveDurations, WireDuration{Key: k, StartedAt: e.StartedAt, Duration: e.Duration})
	}
	return w
}

// FromWire rebuilds the in-memory aggregate from its storage form.
func FromWire(w WireState) State {
	s := NewState()
	s.Scenario = w.Scenario.Clone()
	if w.BaselineVBG != nil {
		v := *w.BaselineVBG
		s.BaselineVBG = &v
	}
	s.Loaded = w.Loaded
	s.Running = w.Running
	s.Finished = w.Finished
	s.SimTime = w.SimTime
	s.CycleLength = w.CycleLength
	s.CycleRemaining = w.CycleRemaining
	s.Vitals = w.Vitals
	s.PrevVitals = w.PrevVitals
	s.Rhythm = w.Rhythm
	s.QueuedRhythm = w.QueuedRhythm
	s.CPRInProgress = w.CPRInProgress
	s.CapnographyEnabled = w.CapnographyEnabled
	s.Flash = w.Flash
	for _, k := range w.ActiveInterventions {
		s.ActiveInterventions[k] = struct{}{}
	}
	for _, c := range w.InterventionCounts {
		s.InterventionCounts[c.Key] = c.Count
	}
	for _, d := range w.ActiveDurations {
		s.ActiveDurations[d.Key] = DurationEntry{StartedAt: d.StartedAt, Duration: d.Duration}
	}
	for _, k := range w.ProcessedEvents {
		s.ProcessedEvents[k] = struct{}{}
	}
	for _, k := range w.Loading {
		s.LoadingInvestigations[schemas.Investigation(k)] = struct{}{}
	}
	for _, k := range w.Revealed {
		s.RevealedInvestigations[schemas.Investigation(k)] = struct{}{}
	}
	s.Log = append([]schemas.LogEntry(nil), w.Log...)
	s.History = append([]schemas.VitalsSample(nil), w.History...)
	return s
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedInvKeys(set map[schemas.Investigation]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

func sortedCountKeys(counts map[string]int) []string {
	out := make([]string, 0, len(counts))
	for k := range counts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
