package region

import (
	"testing"
	"time"

	errs "flickrharvest/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day0 = time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	day1 = day0.Add(24 * time.Hour)
)

func unitRegion() RegionClock {
	return RegionClock{West: 0, South: 0, East: 1, North: 1, Start: day0, End: day1}
}

func TestBBoxFormatting(t *testing.T) {
	r := RegionClock{West: -0.5, South: 51.25, East: 0.125, North: 52}
	assert.Equal(t, "-0.5,51.25,0.125,52", r.BBox())
}

func TestDecideAcceptsWithinPageCap(t *testing.T) {
	p := NewPartitioner(16, 1e-4)

	for _, pages := range []int{0, 1, 16} {
		d := p.Decide(unitRegion(), pages)
		assert.Equal(t, Accept, d.Kind, "pages=%d", pages)
		assert.Empty(t, d.Children)
		assert.False(t, d.Saturated)
	}
}

func TestDecideSplitsSpatially(t *testing.T) {
	p := NewPartitioner(16, 1e-4)
	d := p.Decide(unitRegion(), 20)

	require.Equal(t, SplitSpatial, d.Kind)
	require.Len(t, d.Children, 4)

	want := [][4]float64{
		{0, 0.5, 0.5, 1},
		{0.5, 0.5, 1, 1},
		{0.5, 0, 1, 0.5},
		{0, 0, 0.5, 0.5},
	}
	for i, c := range d.Children {
		assert.Equal(t, want[i], [4]float64{c.West, c.South, c.East, c.North}, "child %d", i)
		assert.InDelta(t, 0.5, c.LatSpan(), 1e-12)
		assert.InDelta(t, 0.5, c.LongSpan(), 1e-12)
		assert.Equal(t, day0, c.Start)
		assert.Equal(t, day1, c.End)
	}
}

func TestDecideSplitsTemporallyBelowThreshold(t *testing.T) {
	p := NewPartitioner(16, 1e-4)
	r := RegionClock{West: 10, South: 10, East: 10.00005, North: 10.00005, Start: day0, End: day1}

	d := p.Decide(r, 20)
	require.Equal(t, SplitTemporal, d.Kind)
	require.Len(t, d.Children, 2)

	mid := day0.Add(12 * time.Hour)
	assert.Equal(t, day0, d.Children[0].Start)
	assert.Equal(t, mid, d.Children[0].End)
	assert.Equal(t, mid, d.Children[1].Start)
	assert.Equal(t, day1, d.Children[1].End)
	for _, c := range d.Children {
		assert.Equal(t, r.BBox(), c.BBox())
	}
}

func TestDecideFallsBackToTimeWhenOneAxisIsThin(t *testing.T) {
	p := NewPartitioner(16, 1e-4)
	r := RegionClock{West: -10, South: 5, East: 10, North: 5.00001, Start: day0, End: day1}

	d := p.Decide(r, 40)
	assert.Equal(t, SplitTemporal, d.Kind)
}

func TestDecideSaturatesAtTimeFloor(t *testing.T) {
	p := NewPartitioner(16, 1e-4)
	r := RegionClock{West: 0, South: 0, East: 1e-5, North: 1e-5, Start: day0, End: day0.Add(time.Second)}

	d := p.Decide(r, 40)
	assert.Equal(t, Accept, d.Kind)
	assert.True(t, d.Saturated)
}

func TestRepeatedSplittingTerminates(t *testing.T) {
	p := NewPartitioner(16, 1e-4)
	queue := []RegionClock{{West: -180, South: -90, East: 180, North: 90, Start: day0, End: day0.AddDate(10, 0, 0)}}

	// Always report an overfull region so only the floors stop recursion
	// along one branch.
	steps := 0
	for len(queue) > 0 && steps < 10000 {
		r := queue[0]
		queue = queue[1:]
		steps++
		d := p.Decide(r, 1000)
		if d.Kind == Accept {
			assert.True(t, d.Saturated)
			return
		}
		// Follow only the first child so the walk stays linear.
		queue = append(queue, d.Children[0])
		if d.Kind == SplitSpatial {
			assert.Less(t, d.Children[0].LatSpan(), r.LatSpan())
		} else {
			assert.Less(t, d.Children[0].Duration(), r.Duration())
		}
	}
	t.Fatalf("partitioning did not terminate after %d steps", steps)
}

func TestNewHarvestRequestSwapsInvertedBounds(t *testing.T) {
	req, err := NewHarvestRequest(Params{
		West: 5, East: -5, South: 40, North: 30,
		Start: day0, End: day1, APIKey: " key ",
	})
	require.NoError(t, err)

	root := req.Root()
	assert.Equal(t, -5.0, root.West)
	assert.Equal(t, 5.0, root.East)
	assert.Equal(t, 30.0, root.South)
	assert.Equal(t, 40.0, root.North)
	assert.Equal(t, "key", req.APIKey())
	assert.True(t, req.Valid())
}

func TestNewHarvestRequestRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		substr string
	}{
		{"longitude out of range", Params{West: -200, East: 0, North: 1, Start: day0, End: day1, APIKey: "k"}, "west"},
		{"latitude out of range", Params{East: 1, North: 95, Start: day0, End: day1, APIKey: "k"}, "north"},
		{"start after end", Params{East: 1, North: 1, Start: day1, End: day0, APIKey: "k"}, "after"},
		{"missing dates", Params{East: 1, North: 1, APIKey: "k"}, "required"},
		{"missing key", Params{East: 1, North: 1, Start: day0, End: day1}, "api key"},
		{"download without dir", Params{East: 1, North: 1, Start: day0, End: day1, APIKey: "k", DownloadAssets: true}, "output directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHarvestRequest(tt.params)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.ErrorTypeValidation))
			assert.Contains(t, err.Error(), tt.substr)
		})
	}
}

func TestNewHarvestRequestAllowsSingleDay(t *testing.T) {
	req, err := NewHarvestRequest(Params{East: 1, North: 1, Start: day0, End: day0, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), req.Root().Duration())
}

func TestContainsIsInclusive(t *testing.T) {
	r := unitRegion()
	assert.True(t, r.Contains(0, 0, day0))
	assert.True(t, r.Contains(1, 1, day1))
	assert.False(t, r.Contains(1.1, 0.5, day0))
	assert.False(t, r.Contains(0.5, 0.5, day1.Add(time.Second)))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2021-03-04")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("2021-03-04T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 3, 4, 8, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("04/03/2021")
	assert.Error(t, err)
}
