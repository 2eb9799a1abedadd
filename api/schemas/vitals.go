package schemas

import "time"

// Vitals is the flat record of patient observations the engine mutates.
// Every numeric field is clamped to its physiological range after each
// mutation; see the Clamp* bounds below.
type Vitals struct {
	HR      int     `json:"hr" yaml:"hr"`
	BPSys   int     `json:"bp_sys" yaml:"bp_sys"`
	BPDia   int     `json:"bp_dia" yaml:"bp_dia"`
	RR      int     `json:"rr" yaml:"rr"`
	SpO2    int     `json:"spo2" yaml:"spo2"`
	Temp    float64 `json:"temp" yaml:"temp"`
	Glucose float64 `json:"glucose" yaml:"glucose"`
	GCS     int     `json:"gcs" yaml:"gcs"`
	Pupils  string  `json:"pupils,omitempty" yaml:"pupils,omitempty"`
}

// Documented physiological ranges. The model clamps to these after every
// update so no action sequence can push a vital out of range.
const (
	HRMin, HRMax           = 0, 250
	BPSysMin, BPSysMax     = 0, 300
	BPDiaMin, BPDiaMax     = 0, 200
	RRMin, RRMax           = 0, 60
	SpO2Min, SpO2Max       = 0, 100
	GCSMin, GCSMax         = 3, 15
	TempMin, TempMax       = 25.0, 43.0
	GlucoseMin, GlucoseMax = 0.0, 40.0
)

// VitalsSample is one row of the trend history, appended on every
// tick-driven vitals update.
type VitalsSample struct {
	SimTime int `json:"sim_time"`
	HR      int `json:"hr"`
	BPSys   int `json:"bp_sys"`
	SpO2    int `json:"spo2"`
	RR      int `json:"rr"`
}

// LogEntry is one row of the append-only clinical event log. Entries are
// never mutated or removed; the log is the audit trail feeding debrief.
type LogEntry struct {
	WallTime time.Time `json:"wall_time"`
	SimTime  int       `json:"sim_time"`
	Message  string    `json:"message"`
	Category string    `json:"category"`
}

// Log entry categories.
const (
	LogSystem        = "system"
	LogIntervention  = "intervention"
	LogPhysiology    = "physiology"
	LogEvent         = "event"
	LogInvestigation = "investigation"
)

// VBG holds venous blood gas values. The scenario carries a baseline; the
// engine drifts a working copy toward derangement or recovery as the
// patient's state changes.
type VBG struct {
	PH      float64 `json:"ph" yaml:"ph"`
	PCO2    float64 `json:"pco2" yaml:"pco2"`
	PO2     float64 `json:"po2" yaml:"po2"`
	HCO3    float64 `json:"hco3" yaml:"hco3"`
	BE      float64 `json:"be" yaml:"be"`
	Lactate float64 `json:"lactate" yaml:"lactate"`
	Glucose float64 `json:"glucose" yaml:"glucose"`
}
