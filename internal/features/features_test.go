package features

import (
	"math"
	"testing"

	"github.com/ayusman/moodsense/internal/detector"
)

const epsilon = 1e-9

func TestExtract_MissingKeysDefaultToZero(t *testing.T) {
	for _, raw := range []detector.Blendshapes{nil, {}} {
		rec := Extract(raw)
		for f := Feature(0); f < NumFeatures; f++ {
			if rec.Get(f) != 0 {
				t.Errorf("%s = %f, want 0", f, rec.Get(f))
			}
		}
	}
}

func TestExtract_BilateralMeans(t *testing.T) {
	raw := detector.Blendshapes{
		detector.MouthSmileLeft:   0.6,
		detector.MouthSmileRight:  0.2,
		detector.MouthFrownLeft:   0.3,
		detector.BrowDownLeft:     0.5,
		detector.BrowDownRight:    0.5,
		detector.EyeWideRight:     0.8,
		detector.CheekSquintLeft:  0.1,
		detector.CheekSquintRight: 0.3,
		detector.NoseSneerRight:   0.4,
	}
	rec := Extract(raw)

	tests := []struct {
		feature Feature
		want    float64
	}{
		{SmileLeft, 0.6},
		{SmileRight, 0.2},
		{Smile, 0.4},
		{FrownLeft, 0.3},
		{Frown, 0.15},
		{BrowDown, 0.5},
		{EyeWide, 0.4},
		{CheekSquint, 0.2},
		{NoseSneer, 0.2},
		{MouthUpperUp, 0},
	}
	for _, tt := range tests {
		if got := rec.Get(tt.feature); math.Abs(got-tt.want) > epsilon {
			t.Errorf("%s = %f, want %f", tt.feature, got, tt.want)
		}
	}
}

func TestExtract_MouthAsymmetryIsAbsoluteDifference(t *testing.T) {
	tests := []struct {
		name        string
		left, right float64
		want        float64
	}{
		{"left dominant", 0.7, 0.2, 0.5},
		{"right dominant", 0.1, 0.4, 0.3},
		{"symmetric", 0.3, 0.3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Extract(detector.Blendshapes{
				detector.MouthLeft:  tt.left,
				detector.MouthRight: tt.right,
			})
			if got := rec.Get(MouthAsymmetry); math.Abs(got-tt.want) > epsilon {
				t.Errorf("mouthAsymmetry = %f, want %f", got, tt.want)
			}
			if rec.Get(MouthLeft) != tt.left || rec.Get(MouthRight) != tt.right {
				t.Error("mouthLeft/mouthRight should be passed through")
			}
		})
	}
}

func TestExtract_MouthStretchIsLargerSide(t *testing.T) {
	rec := Extract(detector.Blendshapes{
		detector.MouthStretchLeft:  0.15,
		detector.MouthStretchRight: 0.35,
	})
	if rec.Get(MouthStretch) != 0.35 {
		t.Errorf("mouthStretch = %f, want 0.35", rec.Get(MouthStretch))
	}
}

func TestExtract_DirectLookups(t *testing.T) {
	raw := detector.Blendshapes{
		detector.BrowInnerUp:  0.45,
		detector.JawOpen:      0.2,
		detector.MouthClose:   0.35,
		detector.MouthPress:   0.25,
		detector.MouthPucker:  0.05,
		detector.MouthFunnel:  0.12,
		detector.CheekPuff:    0.3,
		detector.EyeBlinkLeft: 0.9,
	}
	rec := Extract(raw)

	checks := map[Feature]float64{
		BrowInnerUp:  0.45,
		JawOpen:      0.2,
		MouthClose:   0.35,
		MouthPress:   0.25,
		MouthPucker:  0.05,
		MouthFunnel:  0.12,
		CheekPuff:    0.3,
		EyeBlinkLeft: 0.9,
	}
	for f, want := range checks {
		if got := rec.Get(f); got != want {
			t.Errorf("%s = %f, want %f", f, got, want)
		}
	}
}

func TestExtract_DoesNotMutateInput(t *testing.T) {
	raw := detector.Blendshapes{detector.MouthSmileLeft: 0.5}
	Extract(raw)
	if len(raw) != 1 || raw[detector.MouthSmileLeft] != 0.5 {
		t.Errorf("input was modified: %v", raw)
	}
}

func TestParseFeature(t *testing.T) {
	for f := Feature(0); f < NumFeatures; f++ {
		parsed, err := ParseFeature(f.String())
		if err != nil {
			t.Errorf("ParseFeature(%q) error: %v", f.String(), err)
			continue
		}
		if parsed != f {
			t.Errorf("ParseFeature(%q) = %d, want %d", f.String(), parsed, f)
		}
	}

	if _, err := ParseFeature("mouthSmileLeft"); err == nil {
		t.Error("raw blendshape names are not feature names")
	}
}

func TestFeature_TextMarshaling(t *testing.T) {
	text, err := EyeWide.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText() error: %v", err)
	}
	if string(text) != "eyeWide" {
		t.Errorf("MarshalText() = %q, want eyeWide", text)
	}

	var f Feature
	if err := f.UnmarshalText([]byte("noseSneer")); err != nil {
		t.Fatalf("UnmarshalText() error: %v", err)
	}
	if f != NoseSneer {
		t.Errorf("UnmarshalText() = %s, want noseSneer", f)
	}

	if _, err := NumFeatures.MarshalText(); err == nil {
		t.Error("expected error marshaling an undefined feature")
	}
	if NumFeatures.String() == "" {
		t.Error("undefined feature should still have a printable name")
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(map[Feature]float64{
		Smile:       0.5,
		CheekSquint: 0.2,
		Feature(-1): 3,
	})

	if rec.Get(Smile) != 0.5 || rec.Get(CheekSquint) != 0.2 {
		t.Errorf("unexpected values: smile=%f cheekSquint=%f", rec.Get(Smile), rec.Get(CheekSquint))
	}
	if rec.Get(SmileLeft) != 0 {
		t.Error("parts of an aggregate should not be derived")
	}
	if rec.Get(Feature(-1)) != 0 {
		t.Error("undefined feature should read as 0")
	}

	values := rec.Values()
	if len(values) != int(NumFeatures) {
		t.Errorf("Values() has %d entries, want %d", len(values), NumFeatures)
	}
	if values["smile"] != 0.5 {
		t.Errorf(`Values()["smile"] = %f, want 0.5`, values["smile"])
	}
}
