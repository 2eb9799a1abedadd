package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRhythmClassification(t *testing.T) {
	cases := []struct {
		rhythm      Rhythm
		shockable   bool
		lethal      bool
		sinusFamily bool
	}{
		{RhythmSinus, false, false, true},
		{RhythmSinusTachy, false, false, true},
		{RhythmSinusBrady, false, false, true},
		{RhythmAF, false, false, false},
		{RhythmSVT, false, false, false},
		{RhythmVT, true, false, false},
		{RhythmVFCoarse, true, true, false},
		{RhythmVFFine, true, true, false},
		{RhythmAsystole, false, true, false},
		{RhythmPEA, false, false, false},
		{RhythmSTEMI, false, false, false},
		{RhythmHeartBlock2, false, false, false},
		{RhythmHeartBlock3, false, false, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.rhythm), func(t *testing.T) {
			assert.True(t, tc.rhythm.Valid())
			assert.Equal(t, tc.shockable, tc.rhythm.Shockable(), "shockable")
			assert.Equal(t, tc.lethal, tc.rhythm.Lethal(), "lethal")
			assert.Equal(t, tc.sinusFamily, tc.rhythm.SinusFamily(), "sinus family")
			assert.NotEmpty(t, tc.rhythm.Label())
		})
	}
}

func TestRhythmUnknown(t *testing.T) {
	r := Rhythm("wobble")
	assert.False(t, r.Valid())
	assert.Equal(t, "wobble", r.Label(), "unknown tags label as themselves")
}

func TestEffectZero(t *testing.T) {
	assert.True(t, Effect{}.Zero())
	assert.False(t, Effect{SpO2: 1}.Zero())
	hr := 80
	assert.False(t, Effect{SetHR: &hr}.Zero())
	assert.False(t, Effect{ChangeRhythm: RhythmChangeDefib}.Zero())
}

func TestScenarioCloneIsDeep(t *testing.T) {
	hrVitals := Vitals{HR: 120}
	sc := &Scenario{
		Title: "Original",
		Evolution: &Evolution{
			Improved: &EvolutionBundle{Vitals: &hrVitals},
		},
		VBG:         &VBG{PH: 7.30},
		Stabilisers: []string{"oxygen"},
	}

	clone := sc.Clone()
	clone.Title = "Mutated"
	clone.Evolution.Improved.Vitals.HR = 1
	clone.VBG.PH = 6.9
	clone.Stabilisers[0] = "mutated"

	assert.Equal(t, "Original", sc.Title)
	assert.Equal(t, 120, sc.Evolution.Improved.Vitals.HR)
	assert.InDelta(t, 7.30, sc.VBG.PH, 1e-9)
	assert.Equal(t, "oxygen", sc.Stabilisers[0])

	var nilScenario *Scenario
	assert.Nil(t, nilScenario.Clone())
}
