package model

import (
	"math"

	"github.com/calmacil/vitalsim/api/schemas"
)

// PHEpsilon is the smallest pH movement worth dispatching as a state
// update; smaller drifts are absorbed to avoid churning the store every
// physiology tick.
const PHEpsilon = 0.01

const (
	phFloor        = 6.80
	lactateCeil    = 20.0
	hypoxiaPHStep  = 0.015
	hypotnPHStep   = 0.004
	hypoxiaLacStep = 0.12
	hypotnLacStep  = 0.05
)

// DynamicVBG drifts the working blood gas toward derangement while the
// patient is hypoxic or hypotensive, and back toward the authored baseline
// once stabilised. driftRate is the fraction of the gap closed per call.
func DynamicVBG(baseline, current schemas.VBG, vitals schemas.Vitals, driftRate float64) schemas.VBG {
	if driftRate <= 0 {
		return current
	}
	if driftRate > 1 {
		driftRate = 1
	}

	hypoxia := math.Max(0, float64(94-vitals.SpO2))
	hypotension := math.Max(0, float64(90-vitals.BPSys))

	targetPH := math.Max(phFloor, baseline.PH-hypoxia*hypoxiaPHStep-hypotension*hypotnPHStep)
	targetLactate := math.Min(lactateCeil, baseline.Lactate+hypoxia*hypoxiaLacStep+hypotension*hypotnLacStep)

	out := current
	out.PH = current.PH + (targetPH-current.PH)*driftRate
	out.Lactate = current.Lactate + (targetLactate-current.Lactate)*driftRate
	// Bicarbonate and base excess track the pH displacement from baseline.
	out.HCO3 = baseline.HCO3 - (baseline.PH-out.PH)*20
	out.BE = baseline.BE - (baseline.PH-out.PH)*25
	out.Glucose = vitals.Glucose
	return out
}
