// Package region models the query units a harvest is decomposed into and
// the policy that decides when and how to subdivide them.
package region

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RegionClock is one query unit: a bounding box plus a closed time interval.
// Values are immutable once enqueued.
type RegionClock struct {
	West  float64   `json:"west"`
	South float64   `json:"south"`
	East  float64   `json:"east"`
	North float64   `json:"north"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// BBox renders the bounds as "west,south,east,north"
func (r RegionClock) BBox() string {
	parts := []string{
		formatDegrees(r.West),
		formatDegrees(r.South),
		formatDegrees(r.East),
		formatDegrees(r.North),
	}
	return strings.Join(parts, ",")
}

func (r RegionClock) String() string {
	return fmt.Sprintf("[%s] %s..%s", r.BBox(),
		r.Start.UTC().Format(time.RFC3339), r.End.UTC().Format(time.RFC3339))
}

// LatSpan is the north-south extent in degrees
func (r RegionClock) LatSpan() float64 { return r.North - r.South }

// LongSpan is the east-west extent in degrees
func (r RegionClock) LongSpan() float64 { return r.East - r.West }

// Duration is the length of the time interval
func (r RegionClock) Duration() time.Duration { return r.End.Sub(r.Start) }

// Quadrants splits the box at its midpoint. Order is north-west, north-east,
// south-east, south-west. Each child keeps the full time interval.
func (r RegionClock) Quadrants() [4]RegionClock {
	midLong := (r.East + r.West) / 2
	midLat := (r.North + r.South) / 2
	return [4]RegionClock{
		{West: r.West, South: midLat, East: midLong, North: r.North, Start: r.Start, End: r.End},
		{West: midLong, South: midLat, East: r.East, North: r.North, Start: r.Start, End: r.End},
		{West: midLong, South: r.South, East: r.East, North: midLat, Start: r.Start, End: r.End},
		{West: r.West, South: r.South, East: midLong, North: midLat, Start: r.Start, End: r.End},
	}
}

// Halves splits the time interval at its midpoint, keeping the box
func (r RegionClock) Halves() [2]RegionClock {
	mid := r.Start.Add(r.Duration() / 2)
	first, second := r, r
	first.End = mid
	second.Start = mid
	return [2]RegionClock{first, second}
}

// Contains reports whether a point taken at t falls inside the region.
// Bounds are inclusive on every side.
func (r RegionClock) Contains(lat, long float64, t time.Time) bool {
	return lat >= r.South && lat <= r.North &&
		long >= r.West && long <= r.East &&
		!t.Before(r.Start) && !t.After(r.End)
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
