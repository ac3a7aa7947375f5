// Package emotion scores facial feature records against a declarative rule table
// and selects a single emotion category per frame.
package emotion

import "fmt"

// Category is a discrete emotion label.
type Category string

const (
	Happy     Category = "happy"
	Sad       Category = "sad"
	Angry     Category = "angry"
	Surprised Category = "surprised"
	Fearful   Category = "fearful"
	Disgusted Category = "disgusted"
	Neutral   Category = "neutral"
)

// Categories lists every category in evaluation order.
// When two categories reach the same maximum score the earlier one wins.
var Categories = []Category{Happy, Sad, Angry, Surprised, Fearful, Disgusted, Neutral}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory returns the category with the given name.
func ParseCategory(name string) (Category, error) {
	c := Category(name)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", name)
	}
	return c, nil
}

// Scores holds a confidence score per category for one frame.
type Scores map[Category]float64
