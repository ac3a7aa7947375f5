package emotion

import "github.com/ayusman/moodsense/internal/features"

func gt(f features.Feature, v float64) Condition { return Condition{Feature: f, Op: OpGreater, Value: v} }
func lt(f features.Feature, v float64) Condition { return Condition{Feature: f, Op: OpLess, Value: v} }

func term(f features.Feature, threshold, weight float64) Term {
	return Term{Feature: f, Threshold: threshold, Weight: weight}
}

func when(amount float64, conds ...Condition) Adjustment {
	return Adjustment{When: conds, Amount: amount}
}

// DefaultRules returns the built-in scoring table. The constants were tuned by hand
// against MediaPipe face blendshapes and should be changed together.
func DefaultRules() RuleSet {
	return RuleSet{
		ConfidenceFloor: 1.0,
		Rules: []Rule{
			{
				Category: Happy,
				Gate:     Gate{{gt(features.Smile, 0.3)}},
				Terms: []Term{
					term(features.Smile, 0, 3),
					term(features.CheekSquint, 0.15, 2),
					term(features.EyeSquint, 0.1, 1.5),
				},
				Penalties: []Adjustment{
					when(0.5, gt(features.BrowDown, 0.2)),
					when(0.5, gt(features.Frown, 0.15)),
				},
			},
			{
				Category: Sad,
				Gate: Gate{
					{gt(features.BrowInnerUp, 0.3)},
					{gt(features.Frown, 0.2)},
				},
				Terms: []Term{
					term(features.BrowInnerUp, 0.3, 2.5),
					term(features.Frown, 0.15, 2),
				},
				Bonuses: []Adjustment{
					when(1.0, gt(features.BrowInnerUp, 0.4), gt(features.Frown, 0.2)),
					when(0.3, gt(features.JawOpen, 0.1), lt(features.JawOpen, 0.3)),
				},
				Penalties: []Adjustment{
					when(0.8, gt(features.Smile, 0.2)),
				},
			},
			{
				Category: Angry,
				Gate: Gate{
					{gt(features.BrowDown, 0.25)},
					{gt(features.EyeSquint, 0.3)},
					{gt(features.MouthPress, 0.3)},
				},
				Terms: []Term{
					term(features.BrowDown, 0.25, 3),
					term(features.EyeSquint, 0.2, 1.5),
					term(features.MouthClose, 0.3, 1.5),
					term(features.MouthPress, 0.3, 1.5),
				},
				Bonuses: []Adjustment{
					when(1.2, gt(features.BrowDown, 0.3), gt(features.MouthClose, 0.4)),
				},
				Penalties: []Adjustment{
					when(1.0, gt(features.Smile, 0.2)),
					when(0.5, gt(features.BrowInnerUp, 0.3)),
				},
			},
			{
				Category: Surprised,
				Gate: Gate{
					{gt(features.EyeWide, 0.4)},
					{gt(features.BrowOuterUp, 0.3), gt(features.JawOpen, 0.3)},
				},
				Terms: []Term{
					term(features.EyeWide, 0.4, 2.5),
					term(features.BrowInnerUp, 0.25, 1.5),
					term(features.BrowOuterUp, 0.25, 1.5),
					term(features.JawOpen, 0.25, 2),
				},
				Bonuses: []Adjustment{
					when(1.5, gt(features.EyeWide, 0.5), gt(features.BrowOuterUp, 0.3), gt(features.JawOpen, 0.3)),
				},
				Penalties: []Adjustment{
					when(1.0, gt(features.EyeSquint, 0.2)),
				},
			},
			{
				Category: Fearful,
				Gate:     Gate{{gt(features.BrowInnerUp, 0.35), gt(features.EyeWide, 0.3)}},
				Terms: []Term{
					term(features.BrowInnerUp, 0.35, 2.5),
					term(features.EyeWide, 0.3, 2),
					term(features.MouthStretch, 0.2, 1.5),
					term(features.MouthFunnel, 0.15, 1.2),
				},
				Bonuses: []Adjustment{
					when(1.0, gt(features.BrowInnerUp, 0.4), gt(features.EyeWide, 0.4)),
				},
				Penalties: []Adjustment{
					when(0.8, gt(features.Smile, 0.2)),
				},
			},
			{
				Category: Disgusted,
				Gate: Gate{
					{gt(features.MouthUpperUp, 0.25)},
					{gt(features.NoseSneer, 0.25)},
				},
				Terms: []Term{
					term(features.MouthUpperUp, 0.25, 3),
					term(features.NoseSneer, 0.25, 2.5),
					term(features.MouthAsymmetry, 0.3, 1.5),
					term(features.MouthPucker, 0.25, 1.2),
				},
				Bonuses: []Adjustment{
					when(1.0, gt(features.MouthUpperUp, 0.35), gt(features.NoseSneer, 0.2)),
				},
				Penalties: []Adjustment{
					when(0.8, gt(features.Smile, 0.2)),
				},
			},
		},
		Neutral: NeutralRule{
			Expressiveness: []WeightedFeature{
				{Feature: features.Smile, Weight: 1},
				{Feature: features.Frown, Weight: 1},
				{Feature: features.BrowDown, Weight: 1},
				{Feature: features.BrowInnerUp, Weight: 1},
				{Feature: features.EyeWide, Weight: 1},
				{Feature: features.EyeSquint, Weight: 1},
				{Feature: features.MouthUpperUp, Weight: 1},
				{Feature: features.JawOpen, Weight: 0.5},
			},
			Base:               2.5,
			Scale:              3,
			StillnessThreshold: 0.3,
			StillnessBonus:     1.5,
		},
	}
}
