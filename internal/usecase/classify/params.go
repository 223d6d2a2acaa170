package classify

import (
	"fmt"

	"github.com/victortong-git/opensoc-sub009/internal/domain/query"
)

// Params holds the scoring constants. The defaults are heuristics that need
// tuning against real query logs; every value is overridable from config.
type Params struct {
	SpecificWeight   float64 `yaml:"specific_weight"`
	StructuredWeight float64 `yaml:"structured_weight"`
	SemanticWeight   float64 `yaml:"semantic_weight"`
	HybridWeight     float64 `yaml:"hybrid_weight"`

	// StructuredBoost is added to structured_filter when time, severity or
	// status fields were extracted.
	StructuredBoost float64 `yaml:"structured_boost"`
	ScoreDivisor    float64 `yaml:"score_divisor"`
	ScoreCap        float64 `yaml:"score_cap"`
	// FieldBonus is added per distinct extracted field category.
	FieldBonus           float64 `yaml:"field_bonus"`
	IDOverrideConfidence float64 `yaml:"id_override_confidence"`
}

// DefaultParams returns the stock scoring constants.
func DefaultParams() Params {
	return Params{
		SpecificWeight:       1.5,
		StructuredWeight:     1.3,
		SemanticWeight:       1.0,
		HybridWeight:         1.2,
		StructuredBoost:      2,
		ScoreDivisor:         5,
		ScoreCap:             0.8,
		FieldBonus:           0.05,
		IDOverrideConfidence: 0.95,
	}
}

// Validate rejects parameter sets that would produce meaningless scores.
func (p Params) Validate() error {
	if p.ScoreDivisor <= 0 {
		return fmt.Errorf("score_divisor must be > 0")
	}
	for name, v := range map[string]float64{
		"specific_weight":   p.SpecificWeight,
		"structured_weight": p.StructuredWeight,
		"semantic_weight":   p.SemanticWeight,
		"hybrid_weight":     p.HybridWeight,
		"structured_boost":  p.StructuredBoost,
		"field_bonus":       p.FieldBonus,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	if p.ScoreCap < 0 || p.ScoreCap > 1 {
		return fmt.Errorf("score_cap must be between 0 and 1")
	}
	if p.IDOverrideConfidence < 0 || p.IDOverrideConfidence > 1 {
		return fmt.Errorf("id_override_confidence must be between 0 and 1")
	}
	return nil
}

func (p Params) weight(t query.Type) float64 {
	switch t {
	case query.SpecificRecord:
		return p.SpecificWeight
	case query.StructuredFilter:
		return p.StructuredWeight
	case query.Hybrid:
		return p.HybridWeight
	}
	return p.SemanticWeight
}
