package engine

import (
	"math"
	"math/rand/v2"
)

// Distribution draws the crash point for a new round.
type Distribution interface {
	Draw() Multiplier
}

type band struct {
	upTo   float64 // cumulative weight, exclusive
	lo, hi float64
}

// Cumulative weights out of 100. Anything past the last band falls back to
// 1.01, which makes it the single most likely crash point (23%).
var bands = []band{
	{upTo: 60, lo: 1, hi: 5},
	{upTo: 70, lo: 5, hi: 20},
	{upTo: 75, lo: 20, hi: 100},
	{upTo: 77, lo: 100, hi: 1000},
}

const fallbackCrashPoint = 1.01

// CrashPoint maps a roll r in [0,100) and a position u in [0,1) to a
// crash point rounded to two decimals.
func CrashPoint(r, u float64) float64 {
	for _, b := range bands {
		if r < b.upTo {
			v := math.Round((b.lo+u*(b.hi-b.lo))*100) / 100
			return math.Max(v, fallbackCrashPoint)
		}
	}
	return fallbackCrashPoint
}

// BandDistribution is the default crash point model backed by a local PRNG.
type BandDistribution struct {
	rng *rand.Rand
}

// NewDistribution uses rng, or a randomly seeded generator when rng is nil.
func NewDistribution(rng *rand.Rand) *BandDistribution {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &BandDistribution{rng: rng}
}

func (d *BandDistribution) Draw() Multiplier {
	r := d.rng.Float64() * 100
	u := d.rng.Float64()
	return MultiplierFromFloat(CrashPoint(r, u))
}

// Fixed always crashes at the same point. Useful for replays and tests.
type Fixed Multiplier

func (f Fixed) Draw() Multiplier { return Multiplier(f) }

// Sequence returns its points in order and then repeats the last one.
type Sequence struct {
	points []Multiplier
	i      int
}

func NewSequence(points ...Multiplier) *Sequence {
	return &Sequence{points: points}
}

func (s *Sequence) Draw() Multiplier {
	if len(s.points) == 0 {
		return MinCrashPoint
	}
	p := s.points[min(s.i, len(s.points)-1)]
	s.i++
	return p
}
