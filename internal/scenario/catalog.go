package scenario

import "github.com/calmacil/vitalsim/api/schemas"

// Catalog is the intervention reference table: key -> effect descriptor.
// The engine consumes it read-only; unknown keys are silent no-ops at the
// command boundary.
type Catalog map[string]schemas.Intervention

// Lookup returns the descriptor for a key.
func (c Catalog) Lookup(key string) (schemas.Intervention, bool) {
	i, ok := c[key]
	return i, ok
}

func intPtr(v int) *int { return &v }

// DefaultCatalog returns the built-in intervention table. Scenario packs
// can override or extend it from a YAML file; see LoadCatalog.
func DefaultCatalog() Catalog {
	entries := []schemas.Intervention{
		{
			Key: "oxygen", Label: "High-flow Oxygen", Category: "airway",
			Type: schemas.Continuous, LogMessage: "High-flow oxygen applied",
			Effect: schemas.Effect{SpO2: 4, RR: -2},
		},
		{
			Key: "airway-adjunct", Label: "Airway Adjunct", Category: "airway",
			Type: schemas.Continuous, LogMessage: "Airway adjunct inserted",
			Effect: schemas.Effect{SpO2: 2},
		},
		{
			Key: "intubation", Label: "Intubation", Category: "airway",
			Type: schemas.Continuous, LogMessage: "Patient intubated and ventilated",
			Effect: schemas.Effect{SpO2: 6, RR: -4},
		},
		{
			Key: "nebuliser", Label: "Salbutamol Nebuliser", Category: "breathing",
			Type: schemas.OneShot, DurationSeconds: 300,
			LogMessage: "Salbutamol nebuliser given",
			Effect:     schemas.Effect{SpO2: 3, RR: -4, HR: 8},
		},
		{
			Key: "chest-drain", Label: "Chest Drain", Category: "breathing",
			Type: schemas.OneShot, LogMessage: "Chest drain inserted",
			Effect: schemas.Effect{SpO2: 6, RR: -6, BPSys: 10},
		},
		{
			Key: "iv-fluids", Label: "IV Fluid Bolus", Category: "circulation",
			Type: schemas.OneShot, DurationSeconds: 120,
			LogMessage: "IV fluid bolus started",
			Effect:     schemas.Effect{BPSys: 10, BPDia: 6, HR: -5},
		},
		{
			Key: "blood-transfusion", Label: "Blood Transfusion", Category: "circulation",
			Type: schemas.OneShot, DurationSeconds: 300,
			LogMessage: "Blood transfusion started",
			Effect:     schemas.Effect{BPSys: 15, BPDia: 8, HR: -10},
		},
		{
			Key: schemas.InterventionCPR, Label: "CPR", Category: "circulation",
			Type: schemas.Continuous, LogMessage: "CPR in progress",
		},
		{
			Key: "defib", Label: "Defibrillation", Category: "circulation",
			Type: schemas.OneShot, LogMessage: "Defibrillation attempted",
			Effect: schemas.Effect{ChangeRhythm: schemas.RhythmChangeDefib},
		},
		{
			Key: "adrenaline", Label: "Adrenaline (IV)", Category: "drugs",
			Type: schemas.OneShot, LogMessage: "Adrenaline given IV",
			Effect: schemas.Effect{HR: 15, BPSys: 12, BPDia: 6},
		},
		{
			Key: "amiodarone", Label: "Amiodarone", Category: "drugs",
			Type: schemas.OneShot, LogMessage: "Amiodarone given",
			Effect: schemas.Effect{HR: -10},
		},
		{
			Key: "adenosine", Label: "Adenosine", Category: "drugs",
			Type: schemas.OneShot, LogMessage: "Adenosine given",
			Effect: schemas.Effect{SetHR: intPtr(80), ChangeRhythm: string(schemas.RhythmSinus)},
		},
		{
			Key: "atropine", Label: "Atropine", Category: "drugs",
			Type: schemas.OneShot, LogMessage: "Atropine given",
			Effect: schemas.Effect{HR: 20},
		},
		{
			Key: "antibiotics", Label: "IV Antibiotics", Category: "drugs",
			Type: schemas.OneShot, LogMessage: "Broad-spectrum antibiotics given",
		},
		{
			Key: "glucose", Label: "IV Glucose", Category: "drugs",
			Type: schemas.OneShot, LogMessage: "IV glucose given",
			Effect: schemas.Effect{GCS: 3},
		},
		{
			Key: "analgesia", Label: "Analgesia", Category: "drugs",
			Type: schemas.OneShot, LogMessage: "Analgesia given",
			Effect: schemas.Effect{RR: -2, HR: -5},
		},
	}

	c := make(Catalog, len(entries))
	for _, e := range entries {
		c[e.Key] = e
	}
	return c
}
