package vector

import "math"

// MMR reorders candidates by maximal marginal relevance and returns at most k of them.
// Each step picks the candidate maximizing
//
//	lambda*sim(query, c) - (1-lambda)*max(sim(c, s) for s already selected)
//
// Candidates must be in relevance order; equal scores keep that order. vectorOf returns the
// normalized vector for a candidate ID, and candidates without a vector are skipped.
func MMR(query []float32, candidates []*Result, vectorOf func(id string) ([]float32, bool), k int, lambda float64) []*Result {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	type cand struct {
		res       *Result
		vec       []float32
		relevance float64
		maxSim    float64
	}
	pool := make([]*cand, 0, len(candidates))
	for _, c := range candidates {
		vec, ok := vectorOf(c.ID)
		if !ok {
			continue
		}
		pool = append(pool, &cand{res: c, vec: vec, relevance: Dot(query, vec), maxSim: math.Inf(-1)})
	}
	if k > len(pool) {
		k = len(pool)
	}

	selected := make([]*Result, 0, k)
	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range pool {
			if c == nil {
				continue
			}
			penalty := 0.0
			if len(selected) > 0 {
				penalty = c.maxSim
			}
			score := lambda*c.relevance - (1-lambda)*penalty
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}
		chosen := pool[best]
		pool[best] = nil
		selected = append(selected, chosen.res)
		for _, c := range pool {
			if c == nil {
				continue
			}
			if s := Dot(c.vec, chosen.vec); s > c.maxSim {
				c.maxSim = s
			}
		}
	}
	return selected
}
