package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmacil/vitalsim/api/schemas"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testScenario() *schemas.Scenario {
	return &schemas.Scenario{
		Title:    "Anaphylaxis",
		Category: "anaphylaxis",
		AgeYears: 34,
		Vitals:   schemas.Vitals{HR: 128, BPSys: 82, BPDia: 54, RR: 28, SpO2: 90, GCS: 14, Temp: 37.1, Glucose: 5.6},
		Rhythm:   schemas.RhythmSinusTachy,
		Evolution: &schemas.Evolution{
			Improved: &schemas.EvolutionBundle{
				Vitals: &schemas.Vitals{HR: 96, BPSys: 110, BPDia: 70, RR: 18, SpO2: 97, GCS: 15, Temp: 37.0, Glucose: 5.6},
				Rhythm: schemas.RhythmSinus,
				Note:   "Airway swelling settling",
			},
			Deteriorated: &schemas.EvolutionBundle{
				Vitals: &schemas.Vitals{HR: 150, BPSys: 60, BPDia: 38, RR: 36, SpO2: 78, GCS: 11, Temp: 37.1, Glucose: 5.6},
			},
		},
		VBG: &schemas.VBG{PH: 7.31, PCO2: 4.2, PO2: 7.1, HCO3: 19, BE: -5, Lactate: 2.8},
	}
}

func loadedState(t *testing.T) State {
	t.Helper()
	s := Reduce(NewState(), LoadScenario{Scenario: testScenario(), CycleLength: 120, Now: testNow})
	require.True(t, s.Loaded)
	return s
}

func runningState(t *testing.T) State {
	t.Helper()
	return Reduce(loadedState(t), StartSim{Now: testNow})
}

func TestReduceLoadScenario(t *testing.T) {
	s := loadedState(t)
	assert.Equal(t, 128, s.Vitals.HR)
	assert.Equal(t, schemas.RhythmSinusTachy, s.Rhythm)
	assert.Equal(t, 120, s.CycleLength)
	assert.Equal(t, 120, s.CycleRemaining)
	require.NotNil(t, s.BaselineVBG)
	assert.InDelta(t, 7.31, s.BaselineVBG.PH, 1e-9)
	require.Len(t, s.Log, 1)
	assert.Contains(t, s.Log[0].Message, "Anaphylaxis")

	t.Run("defaults missing rhythm to sinus", func(t *testing.T) {
		sc := testScenario()
		sc.Rhythm = ""
		s := Reduce(NewState(), LoadScenario{Scenario: sc, CycleLength: 120, Now: testNow})
		assert.Equal(t, schemas.RhythmSinus, s.Rhythm)
	})

	t.Run("reload resets accumulated session state", func(t *testing.T) {
		s := runningState(t)
		s = Reduce(s, UpdateInterventionState{Active: []string{"oxygen"}, Counts: map[string]int{"adrenaline": 2}})
		s = Reduce(s, MarkEventProcessed{ID: "ev-1"})
		s = Reduce(s, LoadScenario{Scenario: testScenario(), CycleLength: 120, Now: testNow})
		assert.False(t, s.Running)
		assert.Empty(t, s.ActiveInterventions)
		assert.Empty(t, s.InterventionCounts)
		assert.Empty(t, s.ProcessedEvents)
		assert.Zero(t, s.SimTime)
	})
}

func TestReduceLifecycleGuards(t *testing.T) {
	t.Run("start requires a loaded scenario", func(t *testing.T) {
		s := Reduce(NewState(), StartSim{Now: testNow})
		assert.False(t, s.Running)
	})
	t.Run("pause is a no-op unless running", func(t *testing.T) {
		s := loadedState(t)
		out := Reduce(s, PauseSim{Now: testNow})
		assert.Equal(t, len(s.Log), len(out.Log))
	})
	t.Run("a finished session cannot restart", func(t *testing.T) {
		s := Reduce(runningState(t), StopSim{Now: testNow})
		require.True(t, s.Finished)
		out := Reduce(s, StartSim{Now: testNow})
		assert.False(t, out.Running)
	})
	t.Run("tick is inert before load", func(t *testing.T) {
		s := Reduce(NewState(), TickTime{Now: testNow})
		assert.Zero(t, s.SimTime)
	})
}

func TestReduceTickTime(t *testing.T) {
	s := runningState(t)
	s = Reduce(s, TickTime{Now: testNow})
	assert.Equal(t, 1, s.SimTime)
	assert.Equal(t, 119, s.CycleRemaining)

	t.Run("cycle countdown floors at zero", func(t *testing.T) {
		s := runningState(t)
		for i := 0; i < 150; i++ {
			s = Reduce(s, TickTime{Now: testNow})
		}
		assert.Equal(t, 150, s.SimTime)
		assert.Zero(t, s.CycleRemaining)
	})
}

func TestReduceDurationExpiry(t *testing.T) {
	s := runningState(t)
	s = Reduce(s, StartInterventionTimer{Key: "iv-fluids", Duration: 120})
	require.Contains(t, s.ActiveDurations, "iv-fluids")

	for i := 0; i < 119; i++ {
		s = Reduce(s, TickTime{Now: testNow})
	}
	assert.Contains(t, s.ActiveDurations, "iv-fluids", "still running one second before expiry")

	s = Reduce(s, TickTime{Now: testNow})
	assert.NotContains(t, s.ActiveDurations, "iv-fluids")
	last := s.Log[len(s.Log)-1]
	assert.Contains(t, last.Message, "worn off")
	assert.Equal(t, schemas.LogIntervention, last.Category)

	t.Run("starting an already-running timer is a no-op", func(t *testing.T) {
		s := runningState(t)
		s = Reduce(s, TickTime{Now: testNow})
		s = Reduce(s, StartInterventionTimer{Key: "nebuliser", Duration: 300})
		first := s.ActiveDurations["nebuliser"]
		s = Reduce(s, StartInterventionTimer{Key: "nebuliser", Duration: 300})
		assert.Equal(t, first, s.ActiveDurations["nebuliser"])
	})

	t.Run("manual stop removes the entry without a worn-off log", func(t *testing.T) {
		s := runningState(t)
		s = Reduce(s, StartInterventionTimer{Key: "nebuliser", Duration: 300})
		before := len(s.Log)
		s = Reduce(s, StopInterventionTimer{Key: "nebuliser"})
		assert.NotContains(t, s.ActiveDurations, "nebuliser")
		assert.Len(t, s.Log, before)
		assert.Equal(t, s, Reduce(s, StopInterventionTimer{Key: "nebuliser"}), "stopping an absent timer is a no-op")
	})

	t.Run("fast forward expires skipped durations", func(t *testing.T) {
		s := runningState(t)
		s = Reduce(s, StartInterventionTimer{Key: "nebuliser", Duration: 300})
		s = Reduce(s, FastForward{Seconds: 300, Now: testNow})
		assert.NotContains(t, s.ActiveDurations, "nebuliser")
		assert.Equal(t, 120, s.CycleRemaining, "fast forward resets the cycle countdown")
	})
}

func TestReduceVitalsPathways(t *testing.T) {
	t.Run("automatic update records history and prev", func(t *testing.T) {
		s := runningState(t)
		prior := s.Vitals
		next := prior
		next.HR = 131
		s = Reduce(s, UpdateVitals{Vitals: next})
		assert.Equal(t, prior, s.PrevVitals)
		assert.Equal(t, 131, s.Vitals.HR)
		require.Len(t, s.History, 1)
		assert.Equal(t, 131, s.History[0].HR)
	})

	t.Run("manual update captures prev but no history", func(t *testing.T) {
		s := runningState(t)
		prior := s.Vitals
		s = Reduce(s, ManualVitalUpdate{Field: "hr", Number: 55})
		assert.Equal(t, prior, s.PrevVitals)
		assert.Equal(t, 55, s.Vitals.HR)
		assert.Empty(t, s.History)
	})

	t.Run("manual update clamps out-of-range input", func(t *testing.T) {
		s := Reduce(runningState(t), ManualVitalUpdate{Field: "spo2", Number: 400})
		assert.Equal(t, schemas.SpO2Max, s.Vitals.SpO2)
	})

	t.Run("manual pupils update is textual", func(t *testing.T) {
		s := Reduce(runningState(t), ManualVitalUpdate{Field: "pupils", Text: "fixed and dilated"})
		assert.Equal(t, "fixed and dilated", s.Vitals.Pupils)
	})

	t.Run("unknown field leaves state untouched", func(t *testing.T) {
		s := runningState(t)
		out := Reduce(s, ManualVitalUpdate{Field: "bogus", Number: 1})
		assert.Equal(t, s.Vitals, out.Vitals)
		assert.Equal(t, s.PrevVitals, out.PrevVitals)
	})
}

func TestReduceRhythms(t *testing.T) {
	s := runningState(t)
	s = Reduce(s, QueueRhythm{Rhythm: schemas.RhythmVT})
	assert.Equal(t, schemas.RhythmVT, s.QueuedRhythm)

	s = Reduce(s, UpdateRhythm{Rhythm: schemas.RhythmVFCoarse})
	assert.Equal(t, schemas.RhythmVFCoarse, s.Rhythm)
	assert.Empty(t, s.QueuedRhythm, "rhythm replacement consumes the staged rhythm")
}

func TestReduceEvolutions(t *testing.T) {
	t.Run("improve merges bundle and flashes green", func(t *testing.T) {
		s := Reduce(runningState(t), TriggerImprove{Now: testNow})
		assert.Equal(t, 96, s.Vitals.HR)
		assert.Equal(t, schemas.RhythmSinus, s.Rhythm)
		assert.Equal(t, "green", s.Flash)
		assert.Contains(t, s.Log[len(s.Log)-1].Message, "settling")
	})
	t.Run("deteriorate without a note uses the fallback", func(t *testing.T) {
		s := Reduce(runningState(t), TriggerDeteriorate{Now: testNow})
		assert.Equal(t, 150, s.Vitals.HR)
		assert.Equal(t, "red", s.Flash)
		assert.Contains(t, s.Log[len(s.Log)-1].Message, "deteriorating")
	})
	t.Run("missing bundle is a no-op", func(t *testing.T) {
		sc := testScenario()
		sc.Evolution = nil
		s := Reduce(NewState(), LoadScenario{Scenario: sc, CycleLength: 120, Now: testNow})
		out := Reduce(s, TriggerImprove{Now: testNow})
		assert.Equal(t, s.Vitals, out.Vitals)
	})
}

func TestReduceInterventionState(t *testing.T) {
	s := runningState(t)
	s = Reduce(s, UpdateInterventionState{
		Active: []string{"oxygen", schemas.InterventionCPR},
		Counts: map[string]int{"adrenaline": 1},
	})
	assert.Contains(t, s.ActiveInterventions, "oxygen")
	assert.True(t, s.CPRInProgress, "CPR flag derives from active-set membership")

	s = Reduce(s, UpdateInterventionState{Active: []string{"oxygen"}, Counts: map[string]int{"adrenaline": 2}})
	assert.False(t, s.CPRInProgress)
	assert.Equal(t, 2, s.InterventionCounts["adrenaline"])
}

func TestReduceInvestigations(t *testing.T) {
	s := runningState(t)
	s = Reduce(s, SetLoadingInvestigation{Investigation: schemas.InvestigationECG})
	assert.Contains(t, s.LoadingInvestigations, schemas.InvestigationECG)

	s = Reduce(s, RevealInvestigation{Investigation: schemas.InvestigationECG, Now: testNow})
	assert.NotContains(t, s.LoadingInvestigations, schemas.InvestigationECG)
	assert.Contains(t, s.RevealedInvestigations, schemas.InvestigationECG)
	logLen := len(s.Log)

	t.Run("second reveal is idempotent", func(t *testing.T) {
		out := Reduce(s, RevealInvestigation{Investigation: schemas.InvestigationECG, Now: testNow})
		assert.Equal(t, logLen, len(out.Log))
	})
	t.Run("ordering a revealed investigation is a no-op", func(t *testing.T) {
		out := Reduce(s, SetLoadingInvestigation{Investigation: schemas.InvestigationECG})
		assert.NotContains(t, out.LoadingInvestigations, schemas.InvestigationECG)
	})
}

func TestReduceSyncFromMaster(t *testing.T) {
	// A monitor that applied P1 then receives P2 must show exactly P2.
	monitor := NewState()
	p1 := schemas.Projection{
		Vitals:              schemas.Vitals{HR: 130, BPSys: 80, SpO2: 88},
		Rhythm:              schemas.RhythmSinusTachy,
		CPRInProgress:       true,
		ActiveInterventions: []string{"cpr", "oxygen"},
		ScenarioTitle:       "Anaphylaxis",
		Pathology:           "anaphylaxis",
		CycleRemaining:      90,
	}
	p2 := schemas.Projection{
		Vitals:              schemas.Vitals{HR: 96, BPSys: 112, SpO2: 97},
		Rhythm:              schemas.RhythmSinus,
		ActiveInterventions: []string{"oxygen"},
		ScenarioTitle:       "Anaphylaxis",
		Pathology:           "anaphylaxis",
		CycleRemaining:      120,
	}

	monitor = Reduce(monitor, SyncFromMaster{Projection: p1})
	monitor = Reduce(monitor, SyncFromMaster{Projection: p2})

	assert.True(t, monitor.Loaded)
	assert.True(t, monitor.Running)
	assert.Equal(t, 96, monitor.Vitals.HR)
	assert.Equal(t, 130, monitor.PrevVitals.HR)
	assert.False(t, monitor.CPRInProgress)
	assert.NotContains(t, monitor.ActiveInterventions, "cpr", "full replacement leaves no artifacts of P1")
	assert.Equal(t, "Anaphylaxis", monitor.ObservedTitle)
	assert.Equal(t, 120, monitor.CycleRemaining)
	assert.Nil(t, monitor.Scenario, "a monitor never owns scenario content")
}

func TestReduceScenarioContent(t *testing.T) {
	t.Run("vbg rewrite keeps the baseline fixed", func(t *testing.T) {
		s := runningState(t)
		s = Reduce(s, UpdateScenarioVBG{VBG: schemas.VBG{PH: 7.05, Lactate: 7.5}})
		assert.InDelta(t, 7.05, s.Scenario.VBG.PH, 1e-9)
		assert.InDelta(t, 7.31, s.BaselineVBG.PH, 1e-9)
	})
	t.Run("investigation fix rewrites the authored result", func(t *testing.T) {
		s := runningState(t)
		s = Reduce(s, ResolveInvestigationFinding{Investigation: schemas.InvestigationXRay, Result: "Re-expanded lung, drain in situ"})
		assert.Equal(t, "Re-expanded lung, drain in situ", s.Scenario.Investigations.Result(schemas.InvestigationXRay))
	})
	t.Run("event processing is exactly once", func(t *testing.T) {
		s := runningState(t)
		s = Reduce(s, MarkEventProcessed{ID: "collapse"})
		out := Reduce(s, MarkEventProcessed{ID: "collapse"})
		assert.Len(t, out.ProcessedEvents, 1)
	})
}

func TestRestoreSessionRoundTrip(t *testing.T) {
	s := runningState(t)
	s = Reduce(s, TickTime{Now: testNow})
	s = Reduce(s, UpdateInterventionState{Active: []string{"oxygen"}, Counts: map[string]int{"adrenaline": 1}})
	s = Reduce(s, StartInterventionTimer{Key: "iv-fluids", Duration: 120})
	s = Reduce(s, SetLoadingInvestigation{Investigation: schemas.InvestigationVBG})

	restored := Reduce(NewState(), RestoreSession{State: FromWire(ToWire(s))})

	assert.Equal(t, s.SimTime, restored.SimTime)
	assert.Equal(t, s.Vitals, restored.Vitals)
	assert.Equal(t, s.ActiveInterventions, restored.ActiveInterventions)
	assert.Equal(t, s.ActiveDurations, restored.ActiveDurations)
	assert.Equal(t, s.LoadingInvestigations, restored.LoadingInvestigations)
	assert.Equal(t, len(s.Log), len(restored.Log))
}

func TestFormatSimTime(t *testing.T) {
	assert.Equal(t, "00:00", FormatSimTime(0))
	assert.Equal(t, "02:05", FormatSimTime(125))
	assert.Equal(t, "00:00", FormatSimTime(-3))
}
