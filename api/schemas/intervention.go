package schemas

// InterventionType distinguishes ongoing states from discrete doses.
type InterventionType string

const (
	// Continuous interventions represent an ongoing state (oxygen running,
	// CPR in progress). Re-applying one toggles it off.
	Continuous InterventionType = "continuous"
	// OneShot interventions represent a discrete administered dose. Each
	// application increments a per-key count.
	OneShot InterventionType = "one-shot"
)

// RhythmChangeDefib marks an effect whose rhythm change is resolved through
// the defibrillation pathway rather than a direct rhythm switch.
const RhythmChangeDefib = "defib"

// InterventionCPR is the catalog key whose active-set membership drives the
// replicated CPR flag and suspends arrest desaturation.
const InterventionCPR = "cpr"

// Effect describes the physiological deltas one application of an
// intervention produces. Zero-valued fields are inert.
type Effect struct {
	HR    int `json:"hr,omitempty" yaml:"hr,omitempty"`
	BPSys int `json:"bp_sys,omitempty" yaml:"bp_sys,omitempty"`
	BPDia int `json:"bp_dia,omitempty" yaml:"bp_dia,omitempty"`
	RR    int `json:"rr,omitempty" yaml:"rr,omitempty"`
	SpO2  int `json:"spo2,omitempty" yaml:"spo2,omitempty"`
	GCS   int `json:"gcs,omitempty" yaml:"gcs,omitempty"`

	// SetHR, when non-nil, replaces the heart rate outright instead of
	// adding a delta (rate-control drugs reset rather than nudge).
	SetHR *int `json:"set_hr,omitempty" yaml:"set_hr,omitempty"`

	// ChangeRhythm either names a rhythm tag to switch to directly, or the
	// special value "defib" to route through shock resolution.
	ChangeRhythm string `json:"change_rhythm,omitempty" yaml:"change_rhythm,omitempty"`
}

// Zero reports whether the effect carries no vitals change at all.
func (e Effect) Zero() bool {
	return e.HR == 0 && e.BPSys == 0 && e.BPDia == 0 && e.RR == 0 &&
		e.SpO2 == 0 && e.GCS == 0 && e.SetHR == nil && e.ChangeRhythm == ""
}

// Intervention is one entry of the clinical reference table: a keyed,
// read-only descriptor of what applying the intervention does. The engine
// treats the table as injected configuration.
type Intervention struct {
	Key      string           `json:"key" yaml:"key"`
	Label    string           `json:"label" yaml:"label"`
	Category string           `json:"category" yaml:"category"`
	Type     InterventionType `json:"type" yaml:"type"`
	// DurationSeconds, when positive, drives the decaying progress
	// indicator and auto-expiry of the effect.
	DurationSeconds int    `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
	LogMessage      string `json:"log" yaml:"log"`
	Effect          Effect `json:"effect" yaml:"effect"`
}

// Investigation identifies one of the orderable bedside investigations.
type Investigation string

const (
	InvestigationECG        Investigation = "ecg"
	InvestigationXRay       Investigation = "xray"
	InvestigationUltrasound Investigation = "ultrasound"
	InvestigationVBG        Investigation = "vbg"
	InvestigationCT         Investigation = "ct"
	InvestigationUrine      Investigation = "urine"
)

// Investigations is the scenario's result bundle, revealed per-type after
// the reveal latency elapses.
type Investigations struct {
	ECG        string `json:"ecg,omitempty" yaml:"ecg,omitempty"`
	XRay       string `json:"xray,omitempty" yaml:"xray,omitempty"`
	Ultrasound string `json:"ultrasound,omitempty" yaml:"ultrasound,omitempty"`
	VBG        string `json:"vbg,omitempty" yaml:"vbg,omitempty"`
	CT         string `json:"ct,omitempty" yaml:"ct,omitempty"`
	Urine      string `json:"urine,omitempty" yaml:"urine,omitempty"`
}

// Result returns the authored result text for the given investigation.
func (i Investigations) Result(inv Investigation) string {
	switch inv {
	case InvestigationECG:
		return i.ECG
	case InvestigationXRay:
		return i.XRay
	case InvestigationUltrasound:
		return i.Ultrasound
	case InvestigationVBG:
		return i.VBG
	case InvestigationCT:
		return i.CT
	case InvestigationUrine:
		return i.Urine
	}
	return ""
}

// SetResult rewrites the authored result text for the given investigation.
// Used by scenario-declared investigation fixes (a chest drain resolving a
// pneumothorax film).
func (i *Investigations) SetResult(inv Investigation, text string) {
	switch inv {
	case InvestigationECG:
		i.ECG = text
	case InvestigationXRay:
		i.XRay = text
	case InvestigationUltrasound:
		i.Ultrasound = text
	case InvestigationVBG:
		i.VBG = text
	case InvestigationCT:
		i.CT = text
	case InvestigationUrine:
		i.Urine = text
	}
}
