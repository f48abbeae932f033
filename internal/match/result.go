package match

import (
	"time"

	"github.com/fidlab/quadmatch/internal/common"
	"github.com/fidlab/quadmatch/internal/geometry"
)

// Correspondence pairs a reference point with the other set's point that
// landed on it, both by localization index.
type Correspondence struct {
	Ref   int `json:"ref"`
	Other int `json:"other"`
}

// Stats counts the work behind one match for logging and tuning.
type Stats struct {
	RefPoints   int           `json:"ref_points"`
	OtherPoints int           `json:"other_points"`
	RefQuads    int           `json:"ref_quads"`
	OtherQuads  int           `json:"other_quads"`
	Candidates  int           `json:"candidates"`  // code-index hits examined
	Degenerate  int           `json:"degenerate"`  // hypotheses the solver rejected
	Weak        int           `json:"weak"`        // hypotheses below the inlier floor
	Workers     int           `json:"workers"`     // probe goroutines used
	Duration    time.Duration `json:"duration_ns"` // wall time of the call
	Laps        []common.Lap  `json:"laps,omitempty"`
}

// Result is a verified and refined alignment of the other set onto the
// reference.
type Result struct {
	// Transform maps other-set coordinates into the reference frame.
	Transform geometry.Transform `json:"transform"`

	// Ratio is the log-odds score of the alignment against chance.
	Ratio float64 `json:"ratio"`

	// Correspondences lists the verified point pairs under Transform.
	Correspondences []Correspondence `json:"correspondences"`

	// MeanResidual is the mean distance in reference pixels between
	// transformed points and their matched reference points.
	MeanResidual float64 `json:"mean_residual"`

	Stats Stats `json:"stats"`
}

// Inliers returns the number of verified correspondences.
func (r *Result) Inliers() int { return len(r.Correspondences) }

// hypothesis is one candidate alignment during probing.
type hypothesis struct {
	transform geometry.Transform
	ratio     float64
	pairs     []Correspondence
	residual  float64
}

// betterHypothesis picks the stronger of two hypotheses: higher ratio,
// then more correspondences, then lower residual. Either may be nil; ties
// keep the first argument.
func betterHypothesis(a, b *hypothesis) *hypothesis {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.ratio != a.ratio {
		if b.ratio > a.ratio {
			return b
		}
		return a
	}
	if len(b.pairs) != len(a.pairs) {
		if len(b.pairs) > len(a.pairs) {
			return b
		}
		return a
	}
	if b.residual < a.residual {
		return b
	}
	return a
}
