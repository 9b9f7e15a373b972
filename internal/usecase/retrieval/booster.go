package retrieval

import (
	"github.com/kailas-cloud/layoutdex/internal/domain/candidate"
	"github.com/kailas-cloud/layoutdex/internal/domain/layout"
)

// maxComponentBoost caps the heuristic component-match reward.
const maxComponentBoost = 0.3

// boostCandidate fills the component-match fields from a single scan of the
// record's layout. Pure function of (record, required).
//
// boost = 0.3 * |required ∩ present| / |required|, 0 for an empty required
// set. HasRequiredComponents is true iff nothing is missing; an empty
// required set is vacuously satisfied.
func boostCandidate(rec layout.Record, required []layout.Kind, c *candidate.Candidate) {
	if len(required) == 0 {
		c.HasRequiredComponents = true
		c.MissingComponents = nil
		c.ComponentBoost = 0
		return
	}

	present := rec.ComponentKinds()
	presentCount := 0
	var missing []layout.Kind
	for _, kind := range required {
		if _, ok := present[kind]; ok {
			presentCount++
		} else {
			missing = append(missing, kind)
		}
	}

	c.MissingComponents = missing
	c.HasRequiredComponents = len(missing) == 0
	c.ComponentBoost = maxComponentBoost * float64(presentCount) / float64(len(required))
}
