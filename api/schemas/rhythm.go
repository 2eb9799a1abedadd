package schemas

// Rhythm is the cardiac electrical state tag. It drives both the numeric
// constraints the physiology model enforces and the waveform category a
// monitor display selects.
type Rhythm string

const (
	RhythmSinus       Rhythm = "sinus"
	RhythmSinusTachy  Rhythm = "sinus-tachycardia"
	RhythmSinusBrady  Rhythm = "sinus-bradycardia"
	RhythmAF          Rhythm = "af"
	RhythmSVT         Rhythm = "svt"
	RhythmVT          Rhythm = "vt"
	RhythmVFCoarse    Rhythm = "vf-coarse"
	RhythmVFFine      Rhythm = "vf-fine"
	RhythmAsystole    Rhythm = "asystole"
	RhythmPEA         Rhythm = "pea"
	RhythmSTEMI       Rhythm = "stemi"
	RhythmHeartBlock2 Rhythm = "heart-block-2"
	RhythmHeartBlock3 Rhythm = "heart-block-3"
)

// labels maps rhythm tags to display names.
var labels = map[Rhythm]string{
	RhythmSinus:       "Sinus Rhythm",
	RhythmSinusTachy:  "Sinus Tachycardia",
	RhythmSinusBrady:  "Sinus Bradycardia",
	RhythmAF:          "Atrial Fibrillation",
	RhythmSVT:         "Supraventricular Tachycardia",
	RhythmVT:          "Ventricular Tachycardia",
	RhythmVFCoarse:    "Ventricular Fibrillation (Coarse)",
	RhythmVFFine:      "Ventricular Fibrillation (Fine)",
	RhythmAsystole:    "Asystole",
	RhythmPEA:         "Pulseless Electrical Activity",
	RhythmSTEMI:       "STEMI",
	RhythmHeartBlock2: "Second Degree Heart Block",
	RhythmHeartBlock3: "Complete Heart Block",
}

// Label returns the human-readable name for the rhythm, falling back to the
// raw tag for rhythms authored outside the built-in set.
func (r Rhythm) Label() string {
	if l, ok := labels[r]; ok {
		return l
	}
	return string(r)
}

// Valid reports whether the tag is one of the built-in rhythms.
func (r Rhythm) Valid() bool {
	_, ok := labels[r]
	return ok
}

// Shockable reports whether a defibrillation attempt can alter this rhythm.
func (r Rhythm) Shockable() bool {
	switch r {
	case RhythmVT, RhythmVFCoarse, RhythmVFFine:
		return true
	}
	return false
}

// Lethal reports whether the rhythm produces no cardiac output at all.
// The physiology model forces HR and BP to zero while one of these is active.
func (r Rhythm) Lethal() bool {
	switch r {
	case RhythmAsystole, RhythmVFCoarse, RhythmVFFine:
		return true
	}
	return false
}

// SinusFamily reports whether the rhythm is a perfusing sinus variant.
// Hypoxic compensation only applies inside this family.
func (r Rhythm) SinusFamily() bool {
	switch r {
	case RhythmSinus, RhythmSinusTachy, RhythmSinusBrady:
		return true
	}
	return false
}
