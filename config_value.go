package customfit

import "github.com/google/go-cmp/cmp"

// ConfigValue is the per-flag record returned by the server, per §3.
// Variation is the value handed back to the application; the remaining
// fields are evaluation provenance threaded through to SummaryRecord.
type ConfigValue struct {
	Variation    Value  `json:"variation"`
	ExperienceID string `json:"experience_id,omitempty"`
	ConfigID     string `json:"config_id,omitempty"`
	RuleID       string `json:"rule_id,omitempty"`
	VariationID  string `json:"variation_id,omitempty"`
	Version      int    `json:"version,omitempty"`
}

// equalVariation reports whether two ConfigValues carry the same Variation
// by deep equality. Built on google/go-cmp rather than hand-rolling a
// second deep-equal walker alongside Value.DeepEqual: cmp.Equal on the
// Value.Raw() projection gives the same element/key-wise comparison.
func equalVariation(a, b ConfigValue) bool {
	return cmp.Equal(a.Variation.Raw(), b.Variation.Raw())
}

// ConfigMap maps flag key to ConfigValue. It is replaced wholesale on every
// successful fetch; readers always see either the old or the new map,
// never a partially-updated one, since Config Manager swaps the whole
// value under its mutex rather than mutating in place.
type ConfigMap map[string]ConfigValue

// diffConfigMaps computes the changed-key set per §4.I / §8: additions,
// removals, and entries whose variation differs. The quantified invariant
// in §8 requires changed ⊇ {k | variation differs} ∪ {k | exactly one side
// has k}; this implementation computes exactly that set, not a superset.
func diffConfigMaps(oldMap, newMap ConfigMap) []string {
	var changed []string
	for k, nv := range newMap {
		ov, existed := oldMap[k]
		if !existed || !equalVariation(ov, nv) {
			changed = append(changed, k)
		}
	}
	for k := range oldMap {
		if _, stillExists := newMap[k]; !stillExists {
			changed = append(changed, k)
		}
	}
	return changed
}
