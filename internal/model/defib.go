package model

import (
	"fmt"

	"github.com/calmacil/vitalsim/api/schemas"
)

// DefibOdds carries the configured shock-outcome probabilities. Keeping
// these configurable guards against an unintended imbalance creeping in as
// a hardcoded constant.
type DefibOdds struct {
	// NoChange is the probability an unstaged shock leaves the rhythm
	// unchanged; the remainder degrades to asystole.
	NoChange float64
}

// DefaultDefibOdds returns the stock 60/40 split.
func DefaultDefibOdds() DefibOdds {
	return DefibOdds{NoChange: 0.60}
}

// DefibOutcome is the resolved result of one shock.
type DefibOutcome struct {
	Rhythm schemas.Rhythm
	// ROSC is set when the shock restored a perfusing sinus-family rhythm.
	ROSC bool
	Log  string
}

// ResolveDefibrillation decides what one shock does. A pre-queued rhythm is
// honoured deterministically, letting the instructor stage the reveal of the
// next rhythm check; without one the outcome is stochastic per odds.
func ResolveDefibrillation(current, queued schemas.Rhythm, odds DefibOdds, rng Source) DefibOutcome {
	if queued != "" {
		out := DefibOutcome{Rhythm: queued, ROSC: queued.SinusFamily()}
		if out.ROSC {
			out.Log = fmt.Sprintf("Shock delivered: %s restored", queued.Label())
		} else {
			out.Log = fmt.Sprintf("Shock delivered: rhythm now %s", queued.Label())
		}
		return out
	}

	if rng.Float64() < odds.NoChange {
		return DefibOutcome{
			Rhythm: current,
			Log:    fmt.Sprintf("Shock delivered: no change, still %s", current.Label()),
		}
	}
	return DefibOutcome{
		Rhythm: schemas.RhythmAsystole,
		Log:    "Shock delivered: rhythm degraded to asystole",
	}
}
