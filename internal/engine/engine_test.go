package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/calmacil/vitalsim/api/schemas"
	"github.com/calmacil/vitalsim/internal/config"
	"github.com/calmacil/vitalsim/internal/scenario"
	"github.com/calmacil/vitalsim/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedSource plays back fixed floats for the stochastic branches.
type scriptedSource struct {
	floats []float64
	i      int
}

func (s *scriptedSource) Float64() float64 {
	if s.i >= len(s.floats) {
		return 0.99
	}
	v := s.floats[s.i]
	s.i++
	return v
}

func (s *scriptedSource) IntN(n int) int { return n / 2 }

func testConfig() config.EngineConfig {
	return config.EngineConfig{
		ClockPeriod:      5 * time.Millisecond,
		PhysiologyPeriod: 5 * time.Millisecond,
		RevealDelay:      10 * time.Millisecond,
		CycleLength:      2 * time.Minute,
		DefibNoChange:    0.60,
		VBGDriftRate:     0.15,
		Seed:             1,
	}
}

func testScenario() *schemas.Scenario {
	return &schemas.Scenario{
		Title:    "Pneumothorax",
		Category: "tension-pneumothorax",
		Vitals:   schemas.Vitals{HR: 120, BPSys: 88, BPDia: 60, RR: 32, SpO2: 84, GCS: 14, Temp: 36.9, Glucose: 5.1},
		Rhythm:   schemas.RhythmSinusTachy,
		Evolution: &schemas.Evolution{
			Improved: &schemas.EvolutionBundle{
				Vitals: &schemas.Vitals{HR: 92, BPSys: 118, BPDia: 74, RR: 18, SpO2: 96, GCS: 15, Temp: 36.9, Glucose: 5.1},
				Rhythm: schemas.RhythmSinus,
			},
		},
		Stabilisers: []string{"chest-drain"},
		DoseTriggers: []schemas.DoseTrigger{
			{Intervention: "adrenaline", Dose: 2},
		},
		InvestigationFixes: []schemas.InvestigationFix{
			{Intervention: "chest-drain", Investigation: schemas.InvestigationXRay, Result: "Lung re-expanded, drain in situ"},
		},
		Investigations: schemas.Investigations{XRay: "Large right-sided pneumothorax"},
	}
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *store.Store) {
	t.Helper()
	st := store.New(zaptest.NewLogger(t))
	eng := New(st, scenario.DefaultCatalog(), testConfig(), zaptest.NewLogger(t), opts...)
	eng.LoadScenario(testScenario())
	eng.Start()
	return eng, st
}

func TestApplyInterventionOneShot(t *testing.T) {
	eng, st := newTestEngine(t)
	before := st.State().Vitals

	eng.ApplyIntervention("atropine")

	state := st.State()
	assert.Equal(t, 1, state.InterventionCounts["atropine"])
	assert.NotContains(t, state.ActiveInterventions, "atropine")
	assert.Equal(t, before.HR+20, state.Vitals.HR)
	assert.Contains(t, state.Log[len(state.Log)-1].Message, "Atropine")

	t.Run("durationed dose starts its timer", func(t *testing.T) {
		eng.ApplyIntervention("iv-fluids")
		state := st.State()
		require.Contains(t, state.ActiveDurations, "iv-fluids")
		assert.Equal(t, 120, state.ActiveDurations["iv-fluids"].Duration)
	})
}

func TestApplyInterventionContinuousToggle(t *testing.T) {
	eng, st := newTestEngine(t)

	eng.ApplyIntervention("oxygen")
	assert.Contains(t, st.State().ActiveInterventions, "oxygen")

	eng.ApplyIntervention("oxygen")
	state := st.State()
	assert.NotContains(t, state.ActiveInterventions, "oxygen")
	assert.Contains(t, state.Log[len(state.Log)-1].Message, "stopped")

	t.Run("cpr drives the replicated flag", func(t *testing.T) {
		eng.ApplyIntervention("cpr")
		assert.True(t, st.State().CPRInProgress)
		eng.ApplyIntervention("cpr")
		assert.False(t, st.State().CPRInProgress)
	})

	t.Run("intubation enables capnography", func(t *testing.T) {
		eng.ApplyIntervention("intubation")
		assert.True(t, st.State().CapnographyEnabled)
		eng.ApplyIntervention("intubation")
		assert.False(t, st.State().CapnographyEnabled)
	})
}

func TestApplyInterventionUnknownKeyIsNoOp(t *testing.T) {
	eng, st := newTestEngine(t)
	before := st.State()
	eng.ApplyIntervention("placebo")
	after := st.State()
	assert.Equal(t, len(before.Log), len(after.Log))
	assert.Equal(t, before.Vitals, after.Vitals)
}

func TestApplyInterventionArrestSuppression(t *testing.T) {
	eng, st := newTestEngine(t)
	eng.TriggerArrest()
	require.True(t, st.State().Rhythm.Shockable())

	eng.ApplyIntervention("adrenaline")
	state := st.State()
	assert.Zero(t, state.Vitals.HR, "haemodynamic deltas are suppressed mid-arrest")
	assert.Zero(t, state.Vitals.BPSys)
	assert.Equal(t, 1, state.InterventionCounts["adrenaline"], "the dose is still recorded")
}

func TestDefibrillation(t *testing.T) {
	t.Run("queued sinus produces ROSC with baseline reset", func(t *testing.T) {
		eng, st := newTestEngine(t)
		eng.TriggerArrest()
		eng.ApplyIntervention("cpr")
		require.NoError(t, eng.QueueRhythm(schemas.RhythmSinus))

		eng.ApplyIntervention("defib")

		state := st.State()
		assert.Equal(t, schemas.RhythmSinus, state.Rhythm)
		assert.Equal(t, 90, state.Vitals.HR)
		assert.Equal(t, 110, state.Vitals.BPSys)
		assert.InDelta(t, 36.9, state.Vitals.Temp, 1e-9, "temperature carries forward through ROSC")
		assert.Equal(t, "green", state.Flash)
		assert.False(t, state.CPRInProgress, "CPR stops on ROSC")
		assert.Empty(t, state.QueuedRhythm)
	})

	t.Run("unstaged shock below threshold leaves rhythm unchanged", func(t *testing.T) {
		eng, st := newTestEngine(t, WithRandom(&scriptedSource{floats: []float64{0.10}}))
		eng.TriggerArrest()
		eng.ApplyIntervention("defib")
		assert.Equal(t, schemas.RhythmVFCoarse, st.State().Rhythm)
	})

	t.Run("unstaged shock above threshold degrades to asystole", func(t *testing.T) {
		eng, st := newTestEngine(t, WithRandom(&scriptedSource{floats: []float64{0.95}}))
		eng.TriggerArrest()
		eng.ApplyIntervention("defib")
		assert.Equal(t, schemas.RhythmAsystole, st.State().Rhythm)
	})

	t.Run("shock into a non-shockable rhythm has no effect", func(t *testing.T) {
		eng, st := newTestEngine(t, WithRandom(&scriptedSource{floats: []float64{0.95}}))
		require.NoError(t, eng.QueueRhythm(schemas.RhythmSinus))

		eng.ApplyIntervention("defib")

		state := st.State()
		assert.Equal(t, schemas.RhythmSinusTachy, state.Rhythm, "rhythm is untouched")
		assert.Equal(t, schemas.RhythmSinus, state.QueuedRhythm, "staged rhythm survives for the next cycle")
		assert.Equal(t, 1, state.InterventionCounts["defib"], "the attempt is still recorded")
		assert.Contains(t, state.Log[len(state.Log)-1].Message, "no shockable rhythm")
	})
}

func TestApplyInterventionContinuousWithDuration(t *testing.T) {
	st := store.New(zaptest.NewLogger(t))
	catalog := scenario.DefaultCatalog()
	catalog["warming-blanket"] = schemas.Intervention{
		Key:             "warming-blanket",
		Label:           "Warming Blanket",
		Type:            schemas.Continuous,
		DurationSeconds: 120,
		LogMessage:      "Warming blanket applied",
	}
	eng := New(st, catalog, testConfig(), zaptest.NewLogger(t))
	eng.LoadScenario(testScenario())
	eng.Start()

	eng.ApplyIntervention("warming-blanket")
	state := st.State()
	assert.Contains(t, state.ActiveInterventions, "warming-blanket")
	require.Contains(t, state.ActiveDurations, "warming-blanket")
	assert.Equal(t, 120, state.ActiveDurations["warming-blanket"].Duration)

	eng.ApplyIntervention("warming-blanket")
	state = st.State()
	assert.NotContains(t, state.ActiveInterventions, "warming-blanket")
	assert.NotContains(t, state.ActiveDurations, "warming-blanket", "toggling off cancels the timer")
	assert.Contains(t, state.Log[len(state.Log)-1].Message, "stopped")
	for _, e := range state.Log {
		assert.NotContains(t, e.Message, "worn off", "a cancelled timer never expires")
	}
}

func TestScenarioRules(t *testing.T) {
	t.Run("stabiliser improves the patient", func(t *testing.T) {
		eng, st := newTestEngine(t)
		eng.ApplyIntervention("chest-drain")
		state := st.State()
		assert.Equal(t, 92, state.Vitals.HR)
		assert.Equal(t, schemas.RhythmSinus, state.Rhythm)
	})

	t.Run("stabiliser rewrites the repeat film", func(t *testing.T) {
		eng, st := newTestEngine(t)
		eng.ApplyIntervention("chest-drain")
		result := st.State().Scenario.Investigations.Result(schemas.InvestigationXRay)
		assert.Equal(t, "Lung re-expanded, drain in situ", result)
	})

	t.Run("dose trigger fires on the exact dose", func(t *testing.T) {
		eng, st := newTestEngine(t)
		eng.ApplyIntervention("adrenaline")
		assert.NotEqual(t, 92, st.State().Vitals.HR, "first dose does not stabilise")
		eng.ApplyIntervention("adrenaline")
		assert.Equal(t, 92, st.State().Vitals.HR, "second dose triggers the improvement")
	})
}

func TestManualUpdateVital(t *testing.T) {
	eng, st := newTestEngine(t)

	require.NoError(t, eng.ManualUpdateVital("hr", "55"))
	assert.Equal(t, 55, st.State().Vitals.HR)

	require.NoError(t, eng.ManualUpdateVital("pupils", "sluggish"))
	assert.Equal(t, "sluggish", st.State().Vitals.Pupils)

	assert.Error(t, eng.ManualUpdateVital("hr", "fast"))
	assert.Error(t, eng.ManualUpdateVital("temp", "NaN"))
	assert.Error(t, eng.ManualUpdateVital("temp", "+Inf"))
}

func TestRevealInvestigation(t *testing.T) {
	eng, st := newTestEngine(t)

	eng.RevealInvestigation(schemas.InvestigationXRay)
	// Ordering twice while pending must not double-reveal.
	eng.RevealInvestigation(schemas.InvestigationXRay)
	assert.Contains(t, st.State().LoadingInvestigations, schemas.InvestigationXRay)

	require.Eventually(t, func() bool {
		_, ok := st.State().RevealedInvestigations[schemas.InvestigationXRay]
		return ok
	}, time.Second, 2*time.Millisecond)

	state := st.State()
	reveals := 0
	for _, e := range state.Log {
		if e.Category == schemas.LogInvestigation {
			reveals++
		}
	}
	assert.Equal(t, 1, reveals, "exactly one reveal despite the double order")

	t.Run("a reload invalidates pending reveals", func(t *testing.T) {
		eng.RevealInvestigation(schemas.InvestigationCT)
		eng.LoadScenario(testScenario())
		time.Sleep(30 * time.Millisecond)
		assert.Empty(t, st.State().RevealedInvestigations)
	})
}

func TestNextCycle(t *testing.T) {
	eng, st := newTestEngine(t)
	require.NoError(t, eng.QueueRhythm(schemas.RhythmVT))

	eng.NextCycle()

	state := st.State()
	assert.Equal(t, 120, state.SimTime)
	assert.Equal(t, 120, state.CycleRemaining)
	assert.Equal(t, schemas.RhythmVT, state.Rhythm)
	assert.Empty(t, state.QueuedRhythm)
}

func TestPassiveEngineIgnoresCommands(t *testing.T) {
	st := store.New(zaptest.NewLogger(t))
	eng := New(st, scenario.DefaultCatalog(), testConfig(), zaptest.NewLogger(t), Passive())

	eng.LoadScenario(testScenario())
	eng.Start()
	eng.ApplyIntervention("oxygen")

	state := st.State()
	assert.False(t, state.Loaded)
	assert.False(t, state.Running)

	// Run returns immediately for a passive engine.
	done := make(chan struct{})
	go func() {
		eng.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("passive Run should return immediately")
	}
}

func TestRunLoopsAdvanceAndStop(t *testing.T) {
	eng, st := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return st.State().SimTime >= 3
	}, time.Second, 2*time.Millisecond, "clock should advance while running")

	require.Eventually(t, func() bool {
		return len(st.State().History) > 0
	}, time.Second, 2*time.Millisecond, "physiology should record history samples")

	eng.Pause()
	paused := st.State().SimTime
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, st.State().SimTime, paused+1, "pause halts the clock")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine loops did not drain on cancellation")
	}
}

func TestScriptedEventsFireOnce(t *testing.T) {
	sc := testScenario()
	sc.Deterioration = []schemas.TimedEvent{
		{ID: "decomp", AtSeconds: 2, Rhythm: schemas.RhythmVT, Message: "Patient decompensating"},
	}

	st := store.New(zaptest.NewLogger(t))
	eng := New(st, scenario.DefaultCatalog(), testConfig(), zaptest.NewLogger(t))
	eng.LoadScenario(sc)
	eng.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return st.State().Rhythm == schemas.RhythmVT
	}, time.Second, 2*time.Millisecond)

	cancel()
	<-done

	state := st.State()
	assert.Contains(t, state.ProcessedEvents, "decomp")
	fired := 0
	for _, e := range state.Log {
		if e.Message == "Patient decompensating" {
			fired++
		}
	}
	assert.Equal(t, 1, fired)
}
