package core

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// progressionProb is the probability of leaving a disease stage after
// timeline ticks: the standard normal CDF centred on the stage's mean length
// in ticks (period in days times the mobility interval), unit variance.
func progressionProb(periodDays float64, mobilityInterval, timeline int) float64 {
	stage := distuv.Normal{Mu: periodDays * float64(mobilityInterval), Sigma: 1}
	return stage.CDF(float64(timeline))
}

// bernoulli draws one independent trial with success probability p.
func bernoulli(rng *rand.Rand, p float64) bool {
	return rng.Float64() < p
}
