package schemas

// EvolutionBundle is an alternate vitals/rhythm package the instructor can
// merge into a running scenario.
type EvolutionBundle struct {
	Vitals *Vitals `json:"vitals,omitempty" yaml:"vitals,omitempty"`
	Rhythm Rhythm  `json:"rhythm,omitempty" yaml:"rhythm,omitempty"`
	Note   string  `json:"note,omitempty" yaml:"note,omitempty"`
}

// Evolution carries the scenario's authored improved/deteriorated bundles.
type Evolution struct {
	Improved     *EvolutionBundle `json:"improved,omitempty" yaml:"improved,omitempty"`
	Deteriorated *EvolutionBundle `json:"deteriorated,omitempty" yaml:"deteriorated,omitempty"`
}

// TimedEvent is a scenario-scripted deterioration step fired once when the
// sim clock reaches AtSeconds.
type TimedEvent struct {
	ID        string `json:"id" yaml:"id"`
	AtSeconds int    `json:"at_seconds" yaml:"at_seconds"`
	Effect    Effect `json:"effect,omitempty" yaml:"effect,omitempty"`
	Rhythm    Rhythm `json:"rhythm,omitempty" yaml:"rhythm,omitempty"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
}

// DoseTrigger is a scenario-authored dosing rule: once the named
// intervention has been applied Dose times, the scenario improves.
// This keeps disease-specific special cases in data rather than code.
type DoseTrigger struct {
	Intervention string `json:"intervention" yaml:"intervention"`
	Dose         int    `json:"dose" yaml:"dose"`
}

// InvestigationFix rewrites an investigation result once a named
// intervention has been applied (a chest drain resolving the pneumothorax
// on the repeat film).
type InvestigationFix struct {
	Intervention  string        `json:"intervention" yaml:"intervention"`
	Investigation Investigation `json:"investigation" yaml:"investigation"`
	Result        string        `json:"result" yaml:"result"`
}

// Scenario is the authored case content installed into the store at session
// start. It is immutable except for instructor-triggered evolution merges,
// dynamic VBG rewrites, and investigation fixes.
type Scenario struct {
	Title    string  `json:"title" yaml:"title"`
	Category string  `json:"category" yaml:"category"`
	AgeYears int     `json:"age_years" yaml:"age_years"`
	WeightKg float64 `json:"weight_kg,omitempty" yaml:"weight_kg,omitempty"`
	Profile  string  `json:"profile" yaml:"profile"`

	Vitals Vitals `json:"vitals" yaml:"vitals"`
	Rhythm Rhythm `json:"rhythm,omitempty" yaml:"rhythm,omitempty"`

	Evolution   *Evolution `json:"evolution,omitempty" yaml:"evolution,omitempty"`
	Stabilisers []string   `json:"stabilisers,omitempty" yaml:"stabilisers,omitempty"`

	VBG            *VBG           `json:"vbg,omitempty" yaml:"vbg,omitempty"`
	Investigations Investigations `json:"investigations,omitempty" yaml:"investigations,omitempty"`

	Deterioration      []TimedEvent       `json:"deterioration,omitempty" yaml:"deterioration,omitempty"`
	DoseTriggers       []DoseTrigger      `json:"dose_triggers,omitempty" yaml:"dose_triggers,omitempty"`
	InvestigationFixes []InvestigationFix `json:"investigation_fixes,omitempty" yaml:"investigation_fixes,omitempty"`

	RecommendedActions []string `json:"recommended_actions,omitempty" yaml:"recommended_actions,omitempty"`
}

// Clone returns a deep copy so reducer transitions never alias authored
// content between states.
func (s *Scenario) Clone() *Scenario {
	if s == nil {
		return nil
	}
	out := *s
	if s.Evolution != nil {
		ev := Evolution{}
		if s.Evolution.Improved != nil {
			b := *s.Evolution.Improved
			if b.Vitals != nil {
				v := *b.Vitals
				b.Vitals = &v
			}
			ev.Improved = &b
		}
		if s.Evolution.Deteriorated != nil {
			b := *s.Evolution.Deteriorated
			if b.Vitals != nil {
				v := *b.Vitals
				b.Vitals = &v
			}
			ev.Deteriorated = &b
		}
		out.Evolution = &ev
	}
	if s.VBG != nil {
		v := *s.VBG
		out.VBG = &v
	}
	out.Stabilisers = append([]string(nil), s.Stabilisers...)
	out.Deterioration = append([]TimedEvent(nil), s.Deterioration...)
	out.DoseTriggers = append([]DoseTrigger(nil), s.DoseTriggers...)
	out.InvestigationFixes = append([]InvestigationFix(nil), s.InvestigationFixes...)
	out.RecommendedActions = append([]string(nil), s.RecommendedActions...)
	return &out
}
