package engine

const DefaultHistorySize = 10

// History keeps the most recent crash points, oldest first.
type History struct {
	size   int
	points []Multiplier
}

func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size, points: make([]Multiplier, 0, size)}
}

func (h *History) Push(m Multiplier) {
	if len(h.points) >= h.size {
		copy(h.points, h.points[1:])
		h.points = h.points[:len(h.points)-1]
	}
	h.points = append(h.points, m)
}

// Values returns a copy; the newest point is last.
func (h *History) Values() []Multiplier {
	out := make([]Multiplier, len(h.points))
	copy(out, h.points)
	return out
}

func (h *History) Len() int { return len(h.points) }

type Tier string

const (
	TierRed       Tier = "red"
	TierGreen     Tier = "green"
	TierLightBlue Tier = "light-blue"
	TierYellow    Tier = "yellow"
)

// Classify buckets a crash point for the history bar.
func Classify(m Multiplier) Tier {
	switch {
	case m < 200:
		return TierRed
	case m < 1000:
		return TierGreen
	case m < 2000:
		return TierLightBlue
	default:
		return TierYellow
	}
}
