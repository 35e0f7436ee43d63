package model

import (
	"context"
	"errors"
)

// ErrScoringFault is returned when the underlying model cannot produce a
// prediction. Callers surface it as a failed job or a 500, never as a panic.
var ErrScoringFault = errors.New("scoring fault")

// Scorer produces one prediction per input vector, in input order. A Scorer
// must be safe for concurrent use; both runner instances share one model.
type Scorer interface {
	Score(ctx context.Context, vecs []FeatureVector) ([]float64, error)
}

// LinearScorer is an ordinary-least-squares regression over the seven
// features, trained offline on the graduate-admissions dataset. Outputs are
// clamped to [0,1].
type LinearScorer struct {
	Intercept    float64
	Coefficients [7]float64
}

// NewLinearScorer returns a scorer with the shipped model weights.
func NewLinearScorer() *LinearScorer {
	return &LinearScorer{
		Intercept: -1.2757,
		Coefficients: [7]float64{
			0.00186, // gre_score
			0.00278, // toefl_score
			0.00594, // university_rating
			0.00159, // sop
			0.01686, // lor
			0.11839, // cgpa
			0.02431, // research
		},
	}
}

// Score implements Scorer.
func (s *LinearScorer) Score(_ context.Context, vecs []FeatureVector) ([]float64, error) {
	out := make([]float64, len(vecs))
	for i, v := range vecs {
		sum := s.Intercept
		for j, f := range v.features() {
			sum += s.Coefficients[j] * f
		}
		out[i] = clamp01(sum)
	}
	return out, nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
