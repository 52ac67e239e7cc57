package region

import "time"

// DecisionKind says what to do with a region after its first page
type DecisionKind int

const (
	Accept DecisionKind = iota
	SplitSpatial
	SplitTemporal
)

func (k DecisionKind) String() string {
	switch k {
	case Accept:
		return "accept"
	case SplitSpatial:
		return "spatial"
	case SplitTemporal:
		return "temporal"
	default:
		return "unknown"
	}
}

// MinSplitDuration is the shortest interval that can still be halved. The
// search API resolves taken dates to the second.
const MinSplitDuration = 2 * time.Second

// Decision is the outcome of Partitioner.Decide
type Decision struct {
	Kind     DecisionKind
	Children []RegionClock
	// Saturated is set on an Accept for a region that still exceeds the page
	// cap but can no longer be split in space or time.
	Saturated bool
}

// Partitioner decides whether a region must be subdivided
type Partitioner struct {
	MaxPages  int
	Threshold float64
}

// NewPartitioner returns a partitioner for the given page cap and minimum
// spatial span in degrees.
func NewPartitioner(maxPages int, threshold float64) *Partitioner {
	return &Partitioner{MaxPages: maxPages, Threshold: threshold}
}

// Decide inspects the page count reported for r's first page. A region is
// quartered while both spans exceed the threshold; once either span is at or
// below it the time interval is halved instead.
func (p *Partitioner) Decide(r RegionClock, totalPages int) Decision {
	if totalPages <= p.MaxPages {
		return Decision{Kind: Accept}
	}

	if abs(r.LatSpan()) > p.Threshold && abs(r.LongSpan()) > p.Threshold {
		q := r.Quadrants()
		return Decision{Kind: SplitSpatial, Children: q[:]}
	}

	if r.Duration() < MinSplitDuration {
		return Decision{Kind: Accept, Saturated: true}
	}

	h := r.Halves()
	return Decision{Kind: SplitTemporal, Children: h[:]}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
