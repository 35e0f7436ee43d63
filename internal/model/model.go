// Package model defines the feature-vector input, the prediction output, and
// the scoring model interface for the admission predictor.
package model

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is returned when a feature vector fails range validation.
var ErrInvalidInput = errors.New("invalid input")

// FeatureVector is the seven-field numeric input describing one admission
// candidate. Field ranges follow the training dataset.
type FeatureVector struct {
	GREScore         float64 `json:"gre_score"`
	TOEFLScore       float64 `json:"toefl_score"`
	UniversityRating float64 `json:"university_rating"`
	SOP              float64 `json:"sop"`
	LOR              float64 `json:"lor"`
	CGPA             float64 `json:"cgpa"`
	Research         int     `json:"research"`
}

// Validate checks every field against its documented range. It returns an
// error wrapping ErrInvalidInput naming the first offending field. A vector
// that fails validation must never reach a runner or a job.
func (v FeatureVector) Validate() error {
	checks := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"gre_score", v.GREScore, 0, 340},
		{"toefl_score", v.TOEFLScore, 0, 120},
		{"university_rating", v.UniversityRating, 1, 5},
		{"sop", v.SOP, 1, 5},
		{"lor", v.LOR, 1, 5},
		{"cgpa", v.CGPA, 0, 10},
		{"research", float64(v.Research), 0, 1},
	}

	for _, c := range checks {
		if c.value < c.min || c.value > c.max {
			return fmt.Errorf("%w: %s must be between %g and %g, got %g",
				ErrInvalidInput, c.name, c.min, c.max, c.value)
		}
	}
	return nil
}

// features returns the vector in training-column order.
func (v FeatureVector) features() [7]float64 {
	return [7]float64{
		v.GREScore,
		v.TOEFLScore,
		v.UniversityRating,
		v.SOP,
		v.LOR,
		v.CGPA,
		float64(v.Research),
	}
}

// PredictionResult is a single model output. Index preserves the position of
// the originating vector within its batch; it is not part of the wire format.
type PredictionResult struct {
	Index         int     `json:"-"`
	ChanceOfAdmit float64 `json:"chance_of_admit"`
}
