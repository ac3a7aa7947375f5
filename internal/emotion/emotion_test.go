package emotion

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ayusman/moodsense/internal/detector"
	"github.com/ayusman/moodsense/internal/features"
)

const epsilon = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func rec(values map[features.Feature]float64) features.Record {
	return features.NewRecord(values)
}

func TestScore_EmptyRecordIsNeutral(t *testing.T) {
	scorer := DefaultScorer()

	got, scores := scorer.Score(features.Record{})
	if got != Neutral {
		t.Fatalf("Score(zero) = %s, want neutral", got)
	}
	if !approx(scores[Neutral], 4.0) {
		t.Errorf("neutral score = %f, want 4.0", scores[Neutral])
	}
	for _, c := range Categories {
		if c != Neutral && scores[c] != 0 {
			t.Errorf("%s score = %f, want 0", c, scores[c])
		}
	}
}

func TestScore_ReportsEveryCategory(t *testing.T) {
	scorer := DefaultScorer()
	inputs := []features.Record{
		{},
		rec(map[features.Feature]float64{features.Smile: 0.9}),
		rec(map[features.Feature]float64{features.EyeWide: 1, features.BrowInnerUp: 1, features.Frown: 1}),
		features.Extract(detector.AngryBlendshapes()),
	}
	for i, in := range inputs {
		got, scores := scorer.Score(in)
		if !got.Valid() {
			t.Errorf("input %d: category %q is not defined", i, got)
		}
		if len(scores) != len(Categories) {
			t.Errorf("input %d: %d scores, want %d", i, len(scores), len(Categories))
		}
	}
}

func TestScore_SmileGate(t *testing.T) {
	scorer := DefaultScorer()

	tests := []struct {
		name        string
		smile       float64
		want        Category
		wantHappy   float64
		wantNeutral float64
	}{
		{"above gate", 0.5, Happy, 1.5, 1.0},
		{"below gate", 0.2, Neutral, 0, 3.4},
		{"at gate", 0.3, Neutral, 0, 1.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, scores := scorer.Score(rec(map[features.Feature]float64{features.Smile: tt.smile}))
			if got != tt.want {
				t.Errorf("Score() = %s, want %s", got, tt.want)
			}
			if !approx(scores[Happy], tt.wantHappy) {
				t.Errorf("happy = %f, want %f", scores[Happy], tt.wantHappy)
			}
			if !approx(scores[Neutral], tt.wantNeutral) {
				t.Errorf("neutral = %f, want %f", scores[Neutral], tt.wantNeutral)
			}
		})
	}
}

func TestScore_Categories(t *testing.T) {
	scorer := DefaultScorer()

	tests := []struct {
		name  string
		in    map[features.Feature]float64
		want  Category
		score float64
	}{
		{
			name:  "smile with cheek raise",
			in:    map[features.Feature]float64{features.Smile: 0.5, features.CheekSquint: 0.2},
			want:  Happy,
			score: 1.9,
		},
		{
			name:  "raised inner brow with frown",
			in:    map[features.Feature]float64{features.BrowInnerUp: 0.5, features.Frown: 0.3},
			want:  Sad,
			score: 2.85,
		},
		{
			name:  "wide eyes with raised inner brow",
			in:    map[features.Feature]float64{features.BrowInnerUp: 0.45, features.EyeWide: 0.45, features.MouthStretch: 0.3},
			want:  Fearful,
			score: 3.475,
		},
		{
			name:  "upper lip raise with sneer",
			in:    map[features.Feature]float64{features.MouthUpperUp: 0.4, features.NoseSneer: 0.3},
			want:  Disgusted,
			score: 2.95,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, scores := scorer.Score(rec(tt.in))
			if got != tt.want {
				t.Fatalf("Score() = %s, want %s (scores %v)", got, tt.want, scores)
			}
			if !approx(scores[tt.want], tt.score) {
				t.Errorf("%s = %f, want %f", tt.want, scores[tt.want], tt.score)
			}
		})
	}
}

func TestScore_ConfidenceFloor(t *testing.T) {
	scorer := DefaultScorer()

	// Sad outscores neutral but stays under the floor.
	in := rec(map[features.Feature]float64{
		features.Frown:    0.21,
		features.EyeWide:  0.39,
		features.BrowDown: 0.2,
	})
	got, scores := scorer.Score(in)
	if got != Neutral {
		t.Errorf("Score() = %s, want neutral", got)
	}
	if !approx(scores[Sad], 0.42) {
		t.Errorf("sad = %f, want 0.42", scores[Sad])
	}
	if scores[Sad] <= scores[Neutral] {
		t.Errorf("expected sad (%f) above neutral (%f)", scores[Sad], scores[Neutral])
	}
}

func TestScore_TiesGoToEarlierCategory(t *testing.T) {
	rs := DefaultRules()
	// Every expressive rule scores 3*smile, listed in reverse order.
	rs.Rules = nil
	for i := len(Categories) - 1; i >= 0; i-- {
		if Categories[i] == Neutral {
			continue
		}
		rs.Rules = append(rs.Rules, Rule{
			Category: Categories[i],
			Gate:     Gate{{gt(features.Smile, 0.3)}},
			Terms:    []Term{term(features.Smile, 0, 3)},
		})
	}
	scorer, err := NewScorer(rs)
	if err != nil {
		t.Fatalf("NewScorer() error: %v", err)
	}

	got, scores := scorer.Score(rec(map[features.Feature]float64{features.Smile: 0.6}))
	if got != Happy {
		t.Errorf("Score() = %s, want happy (scores %v)", got, scores)
	}
}

func TestScore_PresetFixtures(t *testing.T) {
	scorer := DefaultScorer()

	tests := []struct {
		name  string
		raw   detector.Blendshapes
		want  Category
		score float64
	}{
		{"neutral", detector.NeutralBlendshapes(), Neutral, 4.0},
		{"happy", detector.HappyBlendshapes(), Happy, 3.125},
		{"sad", detector.SadBlendshapes(), Sad, 3.65},
		{"angry", detector.AngryBlendshapes(), Angry, 4.425},
		{"surprised", detector.SurprisedBlendshapes(), Surprised, 5.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, scores := scorer.Score(features.Extract(tt.raw))
			if got != tt.want {
				t.Fatalf("Score() = %s, want %s (scores %v)", got, tt.want, scores)
			}
			if !approx(scores[tt.want], tt.score) {
				t.Errorf("%s = %f, want %f", tt.want, scores[tt.want], tt.score)
			}
		})
	}
}

func TestNeutralRule_StillnessBonus(t *testing.T) {
	n := DefaultRules().Neutral

	still := rec(map[features.Feature]float64{features.JawOpen: 0.4})
	if e := n.Total(still); !approx(e, 0.2) {
		t.Fatalf("expressiveness = %f, want 0.2", e)
	}
	if got := n.Evaluate(still); !approx(got, 3.4) {
		t.Errorf("Evaluate() = %f, want 3.4", got)
	}

	busy := rec(map[features.Feature]float64{features.Smile: 1, features.Frown: 1})
	if got := n.Evaluate(busy); got != 0 {
		t.Errorf("Evaluate() = %f, want 0 (clamped)", got)
	}
}

func TestGate(t *testing.T) {
	g := Gate{
		{gt(features.EyeWide, 0.4)},
		{gt(features.BrowOuterUp, 0.3), gt(features.JawOpen, 0.3)},
	}

	tests := []struct {
		name string
		in   map[features.Feature]float64
		want bool
	}{
		{"first clause", map[features.Feature]float64{features.EyeWide: 0.5}, true},
		{"second clause", map[features.Feature]float64{features.BrowOuterUp: 0.4, features.JawOpen: 0.4}, true},
		{"second clause partial", map[features.Feature]float64{features.BrowOuterUp: 0.4}, false},
		{"nothing", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Open(rec(tt.in)); got != tt.want {
				t.Errorf("Open() = %v, want %v", got, tt.want)
			}
		})
	}

	if !(Gate{}).Open(features.Record{}) {
		t.Error("empty gate should be open")
	}
}

func TestRuleSet_Validate(t *testing.T) {
	if err := DefaultRules().Validate(); err != nil {
		t.Fatalf("default rules invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(rs *RuleSet)
	}{
		{"zero floor", func(rs *RuleSet) { rs.ConfidenceFloor = 0 }},
		{"missing category", func(rs *RuleSet) { rs.Rules = rs.Rules[1:] }},
		{"duplicate category", func(rs *RuleSet) { rs.Rules = append(rs.Rules, rs.Rules[0]) }},
		{"unknown category", func(rs *RuleSet) { rs.Rules[0].Category = "bored" }},
		{"neutral rule", func(rs *RuleSet) { rs.Rules[0].Category = Neutral }},
		{"bad op", func(rs *RuleSet) { rs.Rules[0].Gate[0][0].Op = "ge" }},
		{"undefined feature", func(rs *RuleSet) { rs.Rules[1].Terms[0].Feature = features.NumFeatures }},
		{"no terms", func(rs *RuleSet) { rs.Rules[2].Terms = nil }},
		{"empty adjustment", func(rs *RuleSet) { rs.Rules[1].Bonuses[0].When = nil }},
		{"no neutral features", func(rs *RuleSet) { rs.Neutral.Expressiveness = nil }},
		{"negative neutral scale", func(rs *RuleSet) { rs.Neutral.Scale = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := DefaultRules()
			tt.mutate(&rs)
			if err := rs.Validate(); !errors.Is(err, ErrInvalidRules) {
				t.Errorf("expected ErrInvalidRules, got %v", err)
			}
			if _, err := NewScorer(rs); err == nil {
				t.Error("NewScorer() should reject invalid rules")
			}
		})
	}
}

func TestRules_YAMLRoundTrip(t *testing.T) {
	data, err := MarshalRules(DefaultRules())
	if err != nil {
		t.Fatalf("MarshalRules() error: %v", err)
	}

	parsed, err := ParseRules(data)
	if err != nil {
		t.Fatalf("ParseRules() error: %v\n%s", err, data)
	}
	if !reflect.DeepEqual(parsed, DefaultRules()) {
		t.Errorf("round trip changed the rules:\n%s", data)
	}
}

func TestLoadRules(t *testing.T) {
	const custom = `
confidence_floor: 1.0
rules:
  - category: happy
    gate: [[{feature: smile, op: gt, value: 0.1}]]
    terms: [{feature: smile, threshold: 0, weight: 10}]
  - category: sad
    gate: [[{feature: frown, op: gt, value: 0.2}]]
    terms: [{feature: frown, threshold: 0, weight: 1}]
  - category: angry
    gate: [[{feature: browDown, op: gt, value: 0.2}]]
    terms: [{feature: browDown, threshold: 0, weight: 1}]
  - category: surprised
    gate: [[{feature: eyeWide, op: gt, value: 0.2}]]
    terms: [{feature: eyeWide, threshold: 0, weight: 1}]
  - category: fearful
    gate: [[{feature: browInnerUp, op: gt, value: 0.2}]]
    terms: [{feature: browInnerUp, threshold: 0, weight: 1}]
  - category: disgusted
    gate: [[{feature: noseSneer, op: gt, value: 0.2}]]
    terms: [{feature: noseSneer, threshold: 0, weight: 1}]
neutral:
  expressiveness: [{feature: smile, weight: 1}]
  base: 2.5
  scale: 3
  stillness_threshold: 0.3
  stillness_bonus: 0
`
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(custom), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	rs, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error: %v", err)
	}
	scorer, err := NewScorer(rs)
	if err != nil {
		t.Fatalf("NewScorer() error: %v", err)
	}

	// A weak smile is enough under the custom table: happy 10*0.2 beats
	// neutral 2.5-3*0.2. The default table scores the same smile as neutral.
	weak := rec(map[features.Feature]float64{features.Smile: 0.2})
	got, scores := scorer.Score(weak)
	if got != Happy {
		t.Errorf("Score() = %s, want happy (scores %v)", got, scores)
	}
	if !approx(scores[Happy], 2.0) || !approx(scores[Neutral], 1.9) {
		t.Errorf("scores = %v, want happy 2.0 and neutral 1.9", scores)
	}
	if got, _ := DefaultScorer().Score(weak); got != Neutral {
		t.Errorf("default Score() = %s, want neutral", got)
	}

	t.Run("unknown feature name", func(t *testing.T) {
		_, err := ParseRules([]byte("confidence_floor: 1\nrules:\n  - category: happy\n    terms: [{feature: grin, weight: 1}]\n"))
		if !errors.Is(err, ErrInvalidRules) {
			t.Errorf("expected ErrInvalidRules, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories {
		got, err := ParseCategory(string(c))
		if err != nil || got != c {
			t.Errorf("ParseCategory(%q) = %q, %v", c, got, err)
		}
	}
	if _, err := ParseCategory("bored"); err == nil {
		t.Error("expected error for unknown category")
	}
}
