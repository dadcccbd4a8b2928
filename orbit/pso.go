package orbit

import (
	"math"
	"math/rand"

	"github.com/cpmech/smallbody/config"
)

// elementsDim is the dimensionality of the search vector: (a, e, i,
// Omega, Argp, M0, mu).
const elementsDim = 7

const (
	idxA = iota
	idxE
	idxI
	idxOmega
	idxArgp
	idxM0
	idxMu
)

// angular reports whether dimension d uses wrap-around boundaries
// (spec.md §4.7: i, Omega, Argp, M0 wrap; a, e, mu reflect).
func angular(d int) bool {
	return d == idxI || d == idxOmega || d == idxArgp || d == idxM0
}

// bounds holds the per-dimension search box.
type bounds struct {
	lo, hi [elementsDim]float64
}

// defaultBounds derives a search box around a user guess: a wide
// multiplicative range on the reflective dimensions, a full turn on the
// wrap-around ones.
func defaultBounds(guess Elements) bounds {
	var b bounds
	a := guess.A
	if a <= 0 {
		a = 1.0
	}
	mu := guess.Mu
	if mu <= 0 {
		mu = 1.0
	}
	b.lo[idxA], b.hi[idxA] = 0.1*a, 10*a
	b.lo[idxE], b.hi[idxE] = 0, 0.95
	b.lo[idxI], b.hi[idxI] = 0, 2*math.Pi
	b.lo[idxOmega], b.hi[idxOmega] = 0, 2*math.Pi
	b.lo[idxArgp], b.hi[idxArgp] = 0, 2*math.Pi
	b.lo[idxM0], b.hi[idxM0] = 0, 2*math.Pi
	b.lo[idxMu], b.hi[idxMu] = 0.1*mu, 10*mu
	return b
}

func toVector(el Elements) [elementsDim]float64 {
	return [elementsDim]float64{el.A, el.E, el.I, el.Omega, el.Argp, el.M0, el.Mu}
}

func fromVector(v [elementsDim]float64) Elements {
	return Elements{A: v[idxA], E: v[idxE], I: v[idxI], Omega: v[idxOmega], Argp: v[idxArgp], M0: v[idxM0], Mu: v[idxMu]}
}

// clampDim applies the boundary rule for dimension d: wrap-around for
// angles, a single reflection plus clamp for everything else.
func (b bounds) clampDim(d int, x float64) float64 {
	if angular(d) {
		return normalizeAngle(x)
	}
	lo, hi := b.lo[d], b.hi[d]
	if x < lo {
		x = lo + (lo - x)
	}
	if x > hi {
		x = hi - (x - hi)
	}
	if x < lo {
		x = lo
	}
	if x > hi {
		x = hi
	}
	return x
}

// particle is one swarm member.
type particle struct {
	pos, vel    [elementsDim]float64
	bestPos     [elementsDim]float64
	bestCost    float64
	currentCost float64
}

// runSwarm runs the particle-swarm search minimizing cost over bounds,
// seeding one particle with guess (spec.md §4.7 "a user-supplied initial
// guess seeds one particle").
func runSwarm(cfg config.IODConfig, b bounds, guess Elements, cost func(Elements) float64) (Elements, float64) {
	n := cfg.NumParticles
	if n <= 0 {
		n = 1
	}
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = 1
	}
	w, c1, c2 := cfg.InertiaW, cfg.CognitiveC1, cfg.SocialC2
	if w == 0 && c1 == 0 && c2 == 0 {
		w, c1, c2 = 0.7298, 1.49618, 1.49618
	}

	particles := make([]particle, n)
	guessVec := toVector(guess)
	var gBestPos [elementsDim]float64
	gBestCost := math.Inf(1)

	for i := range particles {
		var p particle
		if i == 0 {
			p.pos = guessVec
		} else {
			for d := 0; d < elementsDim; d++ {
				p.pos[d] = b.lo[d] + rand.Float64()*(b.hi[d]-b.lo[d])
			}
		}
		for d := 0; d < elementsDim; d++ {
			span := b.hi[d] - b.lo[d]
			p.vel[d] = (rand.Float64()*2 - 1) * span * 0.1
		}
		p.currentCost = cost(fromVector(p.pos))
		p.bestPos = p.pos
		p.bestCost = p.currentCost
		if p.bestCost < gBestCost {
			gBestCost = p.bestCost
			gBestPos = p.bestPos
		}
		particles[i] = p
	}

	for iter := 0; iter < iterations; iter++ {
		for i := range particles {
			p := &particles[i]
			for d := 0; d < elementsDim; d++ {
				r1, r2 := rand.Float64(), rand.Float64()
				p.vel[d] = w*p.vel[d] + c1*r1*(p.bestPos[d]-p.pos[d]) + c2*r2*(gBestPos[d]-p.pos[d])
				p.pos[d] = b.clampDim(d, p.pos[d]+p.vel[d])
			}
			p.currentCost = cost(fromVector(p.pos))
			if p.currentCost < p.bestCost {
				p.bestCost = p.currentCost
				p.bestPos = p.pos
			}
			if p.bestCost < gBestCost {
				gBestCost = p.bestCost
				gBestPos = p.bestPos
			}
		}
	}
	return fromVector(gBestPos), gBestCost
}
