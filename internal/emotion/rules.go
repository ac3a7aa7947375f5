package emotion

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/moodsense/internal/features"
)

// ErrInvalidRules is returned when a rule set fails validation.
var ErrInvalidRules = errors.New("invalid rules")

// Op is a strict comparison used by a Condition.
type Op string

const (
	// OpGreater holds when the feature value is strictly greater than the threshold.
	OpGreater Op = "gt"
	// OpLess holds when the feature value is strictly less than the threshold.
	OpLess Op = "lt"
)

// Condition compares one feature against a threshold.
type Condition struct {
	Feature features.Feature `yaml:"feature"`
	Op      Op               `yaml:"op"`
	Value   float64          `yaml:"value"`
}

// Holds reports whether the condition is met by rec.
func (c Condition) Holds(rec features.Record) bool {
	v := rec.Get(c.Feature)
	switch c.Op {
	case OpGreater:
		return v > c.Value
	case OpLess:
		return v < c.Value
	}
	return false
}

// Gate is a disjunction of conjunctions: it is open when every condition
// of at least one clause holds. An empty gate is always open.
type Gate [][]Condition

// Open reports whether the gate admits rec.
func (g Gate) Open(rec features.Record) bool {
	if len(g) == 0 {
		return true
	}
	for _, clause := range g {
		if allHold(clause, rec) {
			return true
		}
	}
	return false
}

func allHold(conds []Condition, rec features.Record) bool {
	for _, c := range conds {
		if !c.Holds(rec) {
			return false
		}
	}
	return true
}

// Term adds Weight times the feature value when the value exceeds Threshold.
type Term struct {
	Feature   features.Feature `yaml:"feature"`
	Threshold float64          `yaml:"threshold"`
	Weight    float64          `yaml:"weight"`
}

// Adjustment is a flat amount applied when all of its conditions hold.
type Adjustment struct {
	When   []Condition `yaml:"when"`
	Amount float64     `yaml:"amount"`
}

// Rule scores one category. Terms are accumulated first, then bonuses
// are added and penalties subtracted, in the order listed.
type Rule struct {
	Category  Category     `yaml:"category"`
	Gate      Gate         `yaml:"gate"`
	Terms     []Term       `yaml:"terms"`
	Bonuses   []Adjustment `yaml:"bonuses,omitempty"`
	Penalties []Adjustment `yaml:"penalties,omitempty"`
}

// Evaluate returns the rule's score for rec, or 0 when the gate is closed.
func (r Rule) Evaluate(rec features.Record) float64 {
	if !r.Gate.Open(rec) {
		return 0
	}

	var score float64
	for _, t := range r.Terms {
		if v := rec.Get(t.Feature); v > t.Threshold {
			score += v * t.Weight
		}
	}
	for _, b := range r.Bonuses {
		if allHold(b.When, rec) {
			score += b.Amount
		}
	}
	for _, p := range r.Penalties {
		if allHold(p.When, rec) {
			score -= p.Amount
		}
	}
	return score
}

// WeightedFeature is one contribution to total expressiveness.
type WeightedFeature struct {
	Feature features.Feature `yaml:"feature"`
	Weight  float64          `yaml:"weight"`
}

// NeutralRule scores neutral inversely to total expressiveness:
// max(0, Base - Scale*expr), plus StillnessBonus when expr < StillnessThreshold.
type NeutralRule struct {
	Expressiveness     []WeightedFeature `yaml:"expressiveness"`
	Base               float64           `yaml:"base"`
	Scale              float64           `yaml:"scale"`
	StillnessThreshold float64           `yaml:"stillness_threshold"`
	StillnessBonus     float64           `yaml:"stillness_bonus"`
}

// Total returns the weighted sum of expressive feature magnitudes.
func (n NeutralRule) Total(rec features.Record) float64 {
	var total float64
	for _, wf := range n.Expressiveness {
		total += rec.Get(wf.Feature) * wf.Weight
	}
	return total
}

// Evaluate returns the neutral score for rec.
func (n NeutralRule) Evaluate(rec features.Record) float64 {
	expr := n.Total(rec)
	score := n.Base - expr*n.Scale
	if score < 0 {
		score = 0
	}
	if expr < n.StillnessThreshold {
		score += n.StillnessBonus
	}
	return score
}

// RuleSet is the complete scoring table.
type RuleSet struct {
	// ConfidenceFloor is the minimum winning score; below it the result is neutral.
	ConfidenceFloor float64     `yaml:"confidence_floor"`
	Rules           []Rule      `yaml:"rules"`
	Neutral         NeutralRule `yaml:"neutral"`
}

// Validate checks that every expressive category has exactly one rule and
// that all features and operators are defined.
func (rs RuleSet) Validate() error {
	if rs.ConfidenceFloor <= 0 {
		return fmt.Errorf("%w: confidence_floor must be positive", ErrInvalidRules)
	}

	seen := make(map[Category]bool, len(rs.Rules))
	for i, r := range rs.Rules {
		if !r.Category.Valid() {
			return fmt.Errorf("%w: rule %d: unknown category %q", ErrInvalidRules, i, r.Category)
		}
		if r.Category == Neutral {
			return fmt.Errorf("%w: rule %d: neutral is scored by the neutral section", ErrInvalidRules, i)
		}
		if seen[r.Category] {
			return fmt.Errorf("%w: duplicate rule for %s", ErrInvalidRules, r.Category)
		}
		seen[r.Category] = true

		if err := r.validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRules, r.Category, err)
		}
	}

	for _, c := range Categories {
		if c != Neutral && !seen[c] {
			return fmt.Errorf("%w: missing rule for %s", ErrInvalidRules, c)
		}
	}

	if len(rs.Neutral.Expressiveness) == 0 {
		return fmt.Errorf("%w: neutral: no expressiveness features", ErrInvalidRules)
	}
	for _, wf := range rs.Neutral.Expressiveness {
		if !wf.Feature.Valid() {
			return fmt.Errorf("%w: neutral: undefined feature %d", ErrInvalidRules, int(wf.Feature))
		}
	}
	if rs.Neutral.Scale < 0 {
		return fmt.Errorf("%w: neutral: scale must not be negative", ErrInvalidRules)
	}

	return nil
}

func (r Rule) validate() error {
	for _, clause := range r.Gate {
		if len(clause) == 0 {
			return errors.New("empty gate clause")
		}
		if err := validateConditions(clause); err != nil {
			return fmt.Errorf("gate: %w", err)
		}
	}
	if len(r.Terms) == 0 {
		return errors.New("no terms")
	}
	for _, t := range r.Terms {
		if !t.Feature.Valid() {
			return fmt.Errorf("term: undefined feature %d", int(t.Feature))
		}
	}
	for _, adj := range append(append([]Adjustment(nil), r.Bonuses...), r.Penalties...) {
		if len(adj.When) == 0 {
			return errors.New("adjustment without conditions")
		}
		if err := validateConditions(adj.When); err != nil {
			return err
		}
	}
	return nil
}

func validateConditions(conds []Condition) error {
	for _, c := range conds {
		if !c.Feature.Valid() {
			return fmt.Errorf("undefined feature %d", int(c.Feature))
		}
		if c.Op != OpGreater && c.Op != OpLess {
			return fmt.Errorf("%s: unknown op %q", c.Feature, c.Op)
		}
	}
	return nil
}

// ParseRules decodes and validates a YAML rule set.
func ParseRules(data []byte) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return RuleSet{}, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if err := rs.Validate(); err != nil {
		return RuleSet{}, err
	}
	return rs, nil
}

// LoadRules reads a YAML rule set from path.
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// MarshalRules encodes a rule set as YAML.
func MarshalRules(rs RuleSet) ([]byte, error) {
	return yaml.Marshal(rs)
}
