package model

import (
	"math"

	"github.com/calmacil/vitalsim/api/schemas"
)

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampF bounds v to [lo, hi] for float-valued vitals.
func ClampF(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// ClampVitals applies every documented physiological range. Called after
// each mutation so no action sequence can push a vital out of range.
func ClampVitals(v schemas.Vitals) schemas.Vitals {
	v.HR = Clamp(v.HR, schemas.HRMin, schemas.HRMax)
	v.BPSys = Clamp(v.BPSys, schemas.BPSysMin, schemas.BPSysMax)
	v.BPDia = Clamp(v.BPDia, schemas.BPDiaMin, schemas.BPDiaMax)
	v.RR = Clamp(v.RR, schemas.RRMin, schemas.RRMax)
	v.SpO2 = Clamp(v.SpO2, schemas.SpO2Min, schemas.SpO2Max)
	v.GCS = Clamp(v.GCS, schemas.GCSMin, schemas.GCSMax)
	v.Temp = ClampF(v.Temp, schemas.TempMin, schemas.TempMax)
	v.Glucose = ClampF(v.Glucose, schemas.GlucoseMin, schemas.GlucoseMax)
	return v
}

// Tunables for the per-tick drift. The compensation band is the HR range
// inside which a hypoxic patient mounts a tachycardic response.
const (
	arrestSpO2DecayPerTick = 2
	spo2DriftChance        = 0.20
	compensationSpO2       = 85
	compensationBandLow    = 50
	compensationBandHigh   = 160
	profoundHypoxiaSpO2    = 60
	bradycardiaChance      = 0.30
	bradycardiaDrop        = 20
)

// TickPhysiology computes one physiological step (nominally three seconds of
// patient time). It is pure: randomness comes from rng, and any log-worthy
// observations are returned as event strings for the caller to record.
func TickPhysiology(v schemas.Vitals, rhythm schemas.Rhythm, cprInProgress bool, rng Source) (schemas.Vitals, []string) {
	var events []string

	if rhythm.Lethal() {
		v.HR = 0
		v.BPSys = 0
		v.BPDia = 0
		if !cprInProgress {
			v.SpO2 -= arrestSpO2DecayPerTick
		}
		return ClampVitals(v), events
	}

	v.HR += jitter(rng, 1)
	v.BPSys += jitter(rng, 1)
	// Diastolic tracks at ~65% of systolic with a little noise.
	v.BPDia = int(math.Round(float64(v.BPSys)*0.65)) + jitter(rng, 2)
	if rng.Float64() < spo2DriftChance {
		v.SpO2 += jitter(rng, 1)
	}

	// Hypoxia drives a compensatory tachycardia in sinus-family rhythms.
	if v.SpO2 < compensationSpO2 &&
		v.HR >= compensationBandLow && v.HR <= compensationBandHigh &&
		rhythm.SinusFamily() {
		v.HR++
	}

	// Profound hypoxia eventually tips compensation into bradycardia.
	if v.SpO2 < profoundHypoxiaSpO2 && v.HR > 60 && rng.Float64() < bradycardiaChance {
		v.HR -= bradycardiaDrop
		events = append(events, "Profound hypoxia: patient developing bradycardia")
	}

	return ClampVitals(v), events
}

// InArrestContext reports whether routine interventions should be suppressed:
// the patient has effectively no output and is in a non-perfusing rhythm.
func InArrestContext(v schemas.Vitals, rhythm schemas.Rhythm) bool {
	return v.BPSys < 10 && (rhythm.Shockable() || rhythm == schemas.RhythmAsystole)
}

// ApplyInterventionEffect adds an effect's deltas to the vitals and clamps.
// In an arrest context HR/BP/RR deltas are suppressed; oxygenation and
// neurology deltas still apply, reflecting that routine drugs do not restart
// an arrested heart.
func ApplyInterventionEffect(v schemas.Vitals, eff schemas.Effect, arrestContext bool) schemas.Vitals {
	if !arrestContext {
		if eff.SetHR != nil {
			v.HR = *eff.SetHR
		} else {
			v.HR += eff.HR
		}
		v.BPSys += eff.BPSys
		v.BPDia += eff.BPDia
		v.RR += eff.RR
	}
	v.SpO2 += eff.SpO2
	v.GCS += eff.GCS
	return ClampVitals(v)
}

// ROSCBaseline is the fixed post-ROSC vitals reset applied when a shock (or
// an instructor command) restores circulation.
func ROSCBaseline() schemas.Vitals {
	return schemas.Vitals{
		HR:    90,
		BPSys: 110,
		BPDia: 70,
		RR:    16,
		SpO2:  96,
		GCS:   6,
		Temp:  36.5,
	}
}
