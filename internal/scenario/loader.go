package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/calmacil/vitalsim/api/schemas"
)

// Load reads an authored scenario document from a YAML file and applies
// defaults. Scenario content is often hand-written, so validation prefers
// safe defaults over rejection; only a structurally unusable document
// errors out.
func Load(path string) (*schemas.Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc schemas.Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return Normalize(&sc)
}

// Normalize fills defaults and discards unusable authored fragments.
func Normalize(sc *schemas.Scenario) (*schemas.Scenario, error) {
	if sc.Title == "" {
		return nil, fmt.Errorf("scenario has no title")
	}
	if sc.Rhythm == "" {
		sc.Rhythm = schemas.RhythmSinus
	}
	if !sc.Rhythm.Valid() {
		// Unknown rhythm hint from a hand-authored file: fall back rather
		// than crash a live session.
		sc.Rhythm = schemas.RhythmSinus
	}
	for i, ev := range sc.Deterioration {
		if ev.ID == "" {
			sc.Deterioration[i].ID = fmt.Sprintf("%s-event-%d", sc.Title, i)
		}
	}
	out := make([]schemas.DoseTrigger, 0, len(sc.DoseTriggers))
	for _, dt := range sc.DoseTriggers {
		if dt.Intervention == "" || dt.Dose <= 0 {
			continue
		}
		out = append(out, dt)
	}
	sc.DoseTriggers = out
	return sc, nil
}

// LoadCatalog merges a YAML override file over the built-in intervention
// table. Entries are keyed replacements: an override entry fully replaces
// the built-in one with the same key.
func LoadCatalog(path string) (Catalog, error) {
	base := DefaultCatalog()
	if path == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var doc struct {
		Interventions []schemas.Intervention `yaml:"interventions"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for _, entry := range doc.Interventions {
		if entry.Key == "" {
			continue
		}
		if entry.Type == "" {
			entry.Type = schemas.OneShot
		}
		base[entry.Key] = entry
	}
	return base, nil
}
