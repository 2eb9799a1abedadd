package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/calmacil/vitalsim/api/schemas"
	"github.com/calmacil/vitalsim/internal/model"
)

// Reduce is the single pure transition function: (state, action) -> state'.
// It is total over the action set; an unrecognised action returns the state
// unchanged. All I/O, timing and randomness happen before dispatch, so the
// reducer is deterministic and directly testable.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case LoadScenario:
		return reduceLoadScenario(act)
	case StartSim:
		if !s.Loaded || s.Running || s.Finished {
			return s
		}
		out := s.clone()
		out.Running = true
		appendLog(&out, act.Now, fmt.Sprintf("Simulation started at %s", FormatSimTime(out.SimTime)), schemas.LogSystem)
		return out
	case PauseSim:
		if !s.Running {
			return s
		}
		out := s.clone()
		out.Running = false
		appendLog(&out, act.Now, fmt.Sprintf("Simulation paused at %s", FormatSimTime(out.SimTime)), schemas.LogSystem)
		return out
	case StopSim:
		if !s.Loaded || s.Finished {
			return s
		}
		out := s.clone()
		out.Running = false
		out.Finished = true
		appendLog(&out, act.Now, fmt.Sprintf("Simulation ended at %s", FormatSimTime(out.SimTime)), schemas.LogSystem)
		return out
	case TickTime:
		if !s.Loaded {
			return s
		}
		out := s.clone()
		out.SimTime++
		if out.CycleRemaining > 0 {
			out.CycleRemaining--
		}
		expireDurations(&out, act.Now)
		return out
	case FastForward:
		if !s.Loaded || act.Seconds <= 0 {
			return s
		}
		out := s.clone()
		out.SimTime += act.Seconds
		out.CycleRemaining = out.CycleLength
		expireDurations(&out, act.Now)
		appendLog(&out, act.Now, fmt.Sprintf("Skipped ahead to %s", FormatSimTime(out.SimTime)), schemas.LogSystem)
		return out
	case UpdateVitals:
		out := s.clone()
		out.PrevVitals = out.Vitals
		out.Vitals = model.ClampVitals(act.Vitals)
		out.History = append(out.History, schemas.VitalsSample{
			SimTime: out.SimTime,
			HR:      out.Vitals.HR,
			BPSys:   out.Vitals.BPSys,
			SpO2:    out.Vitals.SpO2,
			RR:      out.Vitals.RR,
		})
		return out
	case ManualVitalUpdate:
		return reduceManualVital(s, act)
	case UpdateRhythm:
		out := s.clone()
		out.Rhythm = act.Rhythm
		out.QueuedRhythm = ""
		return out
	case QueueRhythm:
		out := s.clone()
		out.QueuedRhythm = act.Rhythm
		return out
	case TriggerImprove:
		if s.Scenario == nil || s.Scenario.Evolution == nil || s.Scenario.Evolution.Improved == nil {
			return s
		}
		return mergeEvolution(s, s.Scenario.Evolution.Improved, "green", "Patient condition improving", act.Now)
	case TriggerDeteriorate:
		if s.Scenario == nil || s.Scenario.Evolution == nil || s.Scenario.Evolution.Deteriorated == nil {
			return s
		}
		return mergeEvolution(s, s.Scenario.Evolution.Deteriorated, "red", "Patient condition deteriorating", act.Now)
	case StartInterventionTimer:
		if _, exists := s.ActiveDurations[act.Key]; exists || act.Duration <= 0 {
			return s
		}
		out := s.clone()
		out.ActiveDurations[act.Key] = DurationEntry{StartedAt: out.SimTime, Duration: act.Duration}
		return out
	case StopInterventionTimer:
		if _, exists := s.ActiveDurations[act.Key]; !exists {
			return s
		}
		out := s.clone()
		delete(out.ActiveDurations, act.Key)
		return out
	case UpdateInterventionState:
		out := s.clone()
		out.ActiveInterventions = make(map[string]struct{}, len(act.Active))
		for _, k := range act.Active {
			out.ActiveInterventions[k] = struct{}{}
		}
		out.InterventionCounts = make(map[string]int, len(act.Counts))
		for k, v := range act.Counts {
			out.InterventionCounts[k] = v
		}
		_, out.CPRInProgress = out.ActiveInterventions[schemas.InterventionCPR]
		return out
	case SetLoadingInvestigation:
		if _, done := s.RevealedInvestigations[act.Investigation]; done {
			return s
		}
		if _, loading := s.LoadingInvestigations[act.Investigation]; loading {
			return s
		}
		out := s.clone()
		out.LoadingInvestigations[act.Investigation] = struct{}{}
		return out
	case RevealInvestigation:
		if _, done := s.RevealedInvestigations[act.Investigation]; done {
			return s
		}
		out := s.clone()
		delete(out.LoadingInvestigations, act.Investigation)
		out.RevealedInvestigations[act.Investigation] = struct{}{}
		appendLog(&out, act.Now, fmt.Sprintf("%s result available", invLabel(act.Investigation)), schemas.LogInvestigation)
		return out
	case ResolveInvestigationFinding:
		if s.Scenario == nil {
			return s
		}
		out := s.clone()
		out.Scenario.Investigations.SetResult(act.Investigation, act.Result)
		return out
	case UpdateScenarioVBG:
		if s.Scenario == nil || s.Scenario.VBG == nil {
			return s
		}
		out := s.clone()
		*out.Scenario.VBG = act.VBG
		return out
	case SyncFromMaster:
		return reduceSync(s, act.Projection)
	case MarkEventProcessed:
		if _, done := s.ProcessedEvents[act.ID]; done {
			return s
		}
		out := s.clone()
		out.ProcessedEvents[act.ID] = struct{}{}
		return out
	case AppendLog:
		out := s.clone()
		appendLog(&out, act.Now, act.Message, act.Category)
		return out
	case SetFlash:
		out := s.clone()
		out.Flash = act.Color
		return out
	case SetCapnography:
		out := s.clone()
		out.CapnographyEnabled = act.Enabled
		return out
	case RestoreSession:
		return act.State.clone()
	default:
		return s
	}
}

func reduceLoadScenario(act LoadScenario) State {
	out := NewState()
	if act.Scenario == nil {
		return out
	}
	out.Scenario = act.Scenario.Clone()
	out.Loaded = true
	out.Vitals = model.ClampVitals(out.Scenario.Vitals)
	out.PrevVitals = out.Vitals
	out.Rhythm = out.Scenario.Rhythm
	if out.Rhythm == "" {
		out.Rhythm = schemas.RhythmSinus
	}
	out.CycleLength = act.CycleLength
	out.CycleRemaining = act.CycleLength
	if out.Scenario.VBG != nil {
		v := *out.Scenario.VBG
		out.BaselineVBG = &v
	}
	appendLog(&out, act.Now, fmt.Sprintf("Scenario loaded: %s", out.Scenario.Title), schemas.LogSystem)
	return out
}

func reduceManualVital(s State, act ManualVitalUpdate) State {
	out := s.clone()
	out.PrevVitals = out.Vitals
	switch act.Field {
	case "hr":
		out.Vitals.HR = int(act.Number)
	case "bp_sys":
		out.Vitals.BPSys = int(act.Number)
	case "bp_dia":
		out.Vitals.BPDia = int(act.Number)
	case "rr":
		out.Vitals.RR = int(act.Number)
	case "spo2":
		out.Vitals.SpO2 = int(act.Number)
	case "gcs":
		out.Vitals.GCS = int(act.Number)
	case "temp":
		out.Vitals.Temp = act.Number
	case "glucose":
		out.Vitals.Glucose = act.Number
	case "pupils":
		out.Vitals.Pupils = act.Text
	default:
		return s
	}
	out.Vitals = model.ClampVitals(out.Vitals)
	return out
}

func mergeEvolution(s State, bundle *schemas.EvolutionBundle, flash, fallback string, now time.Time) State {
	out := s.clone()
	if bundle.Vitals != nil {
		out.PrevVitals = out.Vitals
		out.Vitals = model.ClampVitals(*bundle.Vitals)
	}
	if bundle.Rhythm != "" {
		out.Rhythm = bundle.Rhythm
	}
	out.Flash = flash
	msg := bundle.Note
	if msg == "" {
		msg = fallback
	}
	appendLog(&out, now, msg, schemas.LogEvent)
	return out
}

// reduceSync overwrites the replicated projection wholesale. The monitor is
// memoryless: whatever arrives last wins, with no merging, so dropped or
// reordered messages cannot leave artifacts behind.
func reduceSync(s State, p schemas.Projection) State {
	out := s.clone()
	out.Loaded = true
	// A projection only arrives from a live controller, so the mirrored
	// patient is considered running. This is what arms the pulse beep on
	// the monitor side.
	out.Running = true
	out.PrevVitals = out.Vitals
	out.Vitals = p.Vitals
	out.Rhythm = p.Rhythm
	out.Flash = p.Flash
	out.CPRInProgress = p.CPRInProgress
	out.CapnographyEnabled = p.CapnographyEnabled
	out.CycleRemaining = p.CycleRemaining
	out.ObservedTitle = p.ScenarioTitle
	out.ObservedPathology = p.Pathology
	out.ActiveInterventions = make(map[string]struct{}, len(p.ActiveInterventions))
	for _, k := range p.ActiveInterventions {
		out.ActiveInterventions[k] = struct{}{}
	}
	return out
}

// expireDurations removes duration-backed effects whose elapsed sim time has
// reached their duration. This scan is the only path to expiry.
func expireDurations(s *State, now time.Time) {
	var expired []string
	for key, entry := range s.ActiveDurations {
		if s.SimTime-entry.StartedAt >= entry.Duration {
			expired = append(expired, key)
		}
	}
	sort.Strings(expired)
	for _, key := range expired {
		delete(s.ActiveDurations, key)
		appendLog(s, now, fmt.Sprintf("Effect of %s has worn off", key), schemas.LogIntervention)
	}
}

func appendLog(s *State, now time.Time, message, category string) {
	s.Log = append(s.Log, schemas.LogEntry{
		WallTime: now,
		SimTime:  s.SimTime,
		Message:  message,
		Category: category,
	})
}

func invLabel(inv schemas.Investigation) string {
	switch inv {
	case schemas.InvestigationECG:
		return "ECG"
	case schemas.InvestigationXRay:
		return "Chest X-ray"
	case schemas.InvestigationUltrasound:
		return "Ultrasound"
	case schemas.InvestigationVBG:
		return "VBG"
	case schemas.InvestigationCT:
		return "CT"
	case schemas.InvestigationUrine:
		return "Urinalysis"
	}
	return strings.ToUpper(string(inv))
}
