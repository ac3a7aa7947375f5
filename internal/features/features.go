// Package features derives a fixed set of named facial features from raw blendshape scores.
package features

import (
	"fmt"
	"math"

	"github.com/ayusman/moodsense/internal/detector"
)

// Feature indexes a derived facial feature.
type Feature int

// Derived features. Bilateral aggregates are the mean of their left and right parts.
const (
	SmileLeft Feature = iota
	SmileRight
	Smile
	FrownLeft
	FrownRight
	Frown
	MouthUpperUpLeft
	MouthUpperUpRight
	MouthUpperUp
	BrowDownLeft
	BrowDownRight
	BrowDown
	BrowInnerUp
	BrowOuterUpLeft
	BrowOuterUpRight
	BrowOuterUp
	EyeWideLeft
	EyeWideRight
	EyeWide
	EyeSquintLeft
	EyeSquintRight
	EyeSquint
	EyeBlinkLeft
	EyeBlinkRight
	MouthPucker
	MouthFunnel
	JawOpen
	MouthClose
	MouthStretchLeft
	MouthStretchRight
	MouthStretch // larger of the two sides, not the mean
	MouthPress
	MouthLeft
	MouthRight
	MouthAsymmetry // |mouthLeft - mouthRight|
	CheekPuff
	CheekSquintLeft
	CheekSquintRight
	CheekSquint
	NoseSneerLeft
	NoseSneerRight
	NoseSneer
	NumFeatures
)

var featureNames = [NumFeatures]string{
	SmileLeft:         "smileLeft",
	SmileRight:        "smileRight",
	Smile:             "smile",
	FrownLeft:         "frownLeft",
	FrownRight:        "frownRight",
	Frown:             "frown",
	MouthUpperUpLeft:  "mouthUpperUpLeft",
	MouthUpperUpRight: "mouthUpperUpRight",
	MouthUpperUp:      "mouthUpperUp",
	BrowDownLeft:      "browDownLeft",
	BrowDownRight:     "browDownRight",
	BrowDown:          "browDown",
	BrowInnerUp:       "browInnerUp",
	BrowOuterUpLeft:   "browOuterUpLeft",
	BrowOuterUpRight:  "browOuterUpRight",
	BrowOuterUp:       "browOuterUp",
	EyeWideLeft:       "eyeWideLeft",
	EyeWideRight:      "eyeWideRight",
	EyeWide:           "eyeWide",
	EyeSquintLeft:     "eyeSquintLeft",
	EyeSquintRight:    "eyeSquintRight",
	EyeSquint:         "eyeSquint",
	EyeBlinkLeft:      "eyeBlinkLeft",
	EyeBlinkRight:     "eyeBlinkRight",
	MouthPucker:       "mouthPucker",
	MouthFunnel:       "mouthFunnel",
	JawOpen:           "jawOpen",
	MouthClose:        "mouthClose",
	MouthStretchLeft:  "mouthStretchLeft",
	MouthStretchRight: "mouthStretchRight",
	MouthStretch:      "mouthStretch",
	MouthPress:        "mouthPress",
	MouthLeft:         "mouthLeft",
	MouthRight:        "mouthRight",
	MouthAsymmetry:    "mouthAsymmetry",
	CheekPuff:         "cheekPuff",
	CheekSquintLeft:   "cheekSquintLeft",
	CheekSquintRight:  "cheekSquintRight",
	CheekSquint:       "cheekSquint",
	NoseSneerLeft:     "noseSneerLeft",
	NoseSneerRight:    "noseSneerRight",
	NoseSneer:         "noseSneer",
}

var featuresByName = func() map[string]Feature {
	m := make(map[string]Feature, NumFeatures)
	for f, name := range featureNames {
		m[name] = Feature(f)
	}
	return m
}()

// String returns the lowerCamel name used in rule files.
func (f Feature) String() string {
	if f < 0 || f >= NumFeatures {
		return fmt.Sprintf("Feature(%d)", int(f))
	}
	return featureNames[f]
}

// Valid reports whether f is one of the defined features.
func (f Feature) Valid() bool {
	return f >= 0 && f < NumFeatures
}

// ParseFeature returns the feature with the given lowerCamel name.
func ParseFeature(name string) (Feature, error) {
	f, ok := featuresByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown feature %q", name)
	}
	return f, nil
}

// MarshalText implements encoding.TextMarshaler.
func (f Feature) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid feature %d", int(f))
	}
	return []byte(featureNames[f]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Feature) UnmarshalText(text []byte) error {
	parsed, err := ParseFeature(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Record holds the derived features of one face for one frame.
// The zero value is a face with no expression.
type Record struct {
	values [NumFeatures]float64
}

// Get returns the value of feature f, or 0 for an undefined feature.
func (r Record) Get(f Feature) float64 {
	if !f.Valid() {
		return 0
	}
	return r.values[f]
}

// Values returns a copy of all feature values keyed by name.
func (r Record) Values() map[string]float64 {
	out := make(map[string]float64, NumFeatures)
	for f, v := range r.values {
		out[featureNames[f]] = v
	}
	return out
}

// NewRecord builds a record from feature-level values. Features not present are 0.
// Aggregates are taken as given and not recomputed from their parts.
func NewRecord(values map[Feature]float64) Record {
	var r Record
	for f, v := range values {
		if f.Valid() {
			r.values[f] = v
		}
	}
	return r
}

// Extract derives the feature record from raw blendshape scores.
// Missing names count as 0; Extract never fails.
func Extract(raw detector.Blendshapes) Record {
	var r Record
	set := func(f Feature, v float64) { r.values[f] = v }

	bilateral := func(left, right, mean Feature, leftName, rightName string) {
		l, rt := raw.Get(leftName), raw.Get(rightName)
		set(left, l)
		set(right, rt)
		set(mean, (l+rt)/2)
	}

	bilateral(SmileLeft, SmileRight, Smile, detector.MouthSmileLeft, detector.MouthSmileRight)
	bilateral(FrownLeft, FrownRight, Frown, detector.MouthFrownLeft, detector.MouthFrownRight)
	bilateral(MouthUpperUpLeft, MouthUpperUpRight, MouthUpperUp, detector.MouthUpperUpLeft, detector.MouthUpperUpRight)
	bilateral(BrowDownLeft, BrowDownRight, BrowDown, detector.BrowDownLeft, detector.BrowDownRight)
	bilateral(BrowOuterUpLeft, BrowOuterUpRight, BrowOuterUp, detector.BrowOuterUpLeft, detector.BrowOuterUpRight)
	bilateral(EyeWideLeft, EyeWideRight, EyeWide, detector.EyeWideLeft, detector.EyeWideRight)
	bilateral(EyeSquintLeft, EyeSquintRight, EyeSquint, detector.EyeSquintLeft, detector.EyeSquintRight)
	bilateral(CheekSquintLeft, CheekSquintRight, CheekSquint, detector.CheekSquintLeft, detector.CheekSquintRight)
	bilateral(NoseSneerLeft, NoseSneerRight, NoseSneer, detector.NoseSneerLeft, detector.NoseSneerRight)

	set(BrowInnerUp, raw.Get(detector.BrowInnerUp))
	set(EyeBlinkLeft, raw.Get(detector.EyeBlinkLeft))
	set(EyeBlinkRight, raw.Get(detector.EyeBlinkRight))
	set(MouthPucker, raw.Get(detector.MouthPucker))
	set(MouthFunnel, raw.Get(detector.MouthFunnel))
	set(JawOpen, raw.Get(detector.JawOpen))
	set(MouthClose, raw.Get(detector.MouthClose))
	set(MouthPress, raw.Get(detector.MouthPress))
	set(CheekPuff, raw.Get(detector.CheekPuff))

	stretchL, stretchR := raw.Get(detector.MouthStretchLeft), raw.Get(detector.MouthStretchRight)
	set(MouthStretchLeft, stretchL)
	set(MouthStretchRight, stretchR)
	set(MouthStretch, math.Max(stretchL, stretchR))

	left, right := raw.Get(detector.MouthLeft), raw.Get(detector.MouthRight)
	set(MouthLeft, left)
	set(MouthRight, right)
	set(MouthAsymmetry, math.Abs(left-right))

	return r
}
