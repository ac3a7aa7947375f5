package emotion

import (
	"fmt"

	"github.com/ayusman/moodsense/internal/features"
)

// Scorer classifies feature records with a fixed rule set.
// A Scorer holds no per-frame state and is safe for concurrent use.
type Scorer struct {
	rules RuleSet
}

// NewScorer validates rules and returns a scorer for them.
func NewScorer(rules RuleSet) (*Scorer, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{rules: rules}, nil
}

// DefaultScorer returns a scorer using DefaultRules.
func DefaultScorer() *Scorer {
	s, err := NewScorer(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("emotion: default rules invalid: %v", err))
	}
	return s
}

// Rules returns the rule set the scorer was built with.
func (s *Scorer) Rules() RuleSet {
	return s.rules
}

// Score returns the winning category for rec along with every category's score.
//
// Categories are visited in Categories order and the first strictly greater
// score wins, so ties go to the earlier category. If the best score is below
// the confidence floor the result is Neutral.
func (s *Scorer) Score(rec features.Record) (Category, Scores) {
	scores := make(Scores, len(Categories))
	for _, c := range Categories {
		scores[c] = 0
	}
	for _, r := range s.rules.Rules {
		scores[r.Category] = r.Evaluate(rec)
	}
	scores[Neutral] = s.rules.Neutral.Evaluate(rec)

	best, top := Neutral, 0.0
	for _, c := range Categories {
		if scores[c] > top {
			best, top = c, scores[c]
		}
	}
	if top < s.rules.ConfidenceFloor {
		return Neutral, scores
	}
	return best, scores
}
