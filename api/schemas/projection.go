package schemas

import "time"

// Projection is the fixed subset of simulation state replicated from the
// controller to monitor displays. Each message is a full replacement, never
// a delta, so a monitor that misses or reorders messages converges on the
// next one it receives.
type Projection struct {
	SessionID string `json:"session_id"`

	Vitals Vitals `json:"vitals"`
	Rhythm Rhythm `json:"rhythm"`

	CPRInProgress      bool   `json:"cpr_in_progress"`
	CapnographyEnabled bool   `json:"capnography_enabled"`
	Flash              string `json:"flash,omitempty"`

	CycleRemaining int `json:"cycle_remaining"`

	ScenarioTitle string `json:"scenario_title"`
	Pathology     string `json:"pathology"`

	// ActiveInterventions is the in-memory set flattened to a sorted list
	// for the wire.
	ActiveInterventions []string `json:"active_interventions"`

	PublishedAt time.Time `json:"published_at"`
}
