package region

import (
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"time"

	errs "flickrharvest/pkg/errors"
)

// Params is the raw, unvalidated input for a harvest
type Params struct {
	West           float64   `json:"west" yaml:"west"`
	South          float64   `json:"south" yaml:"south"`
	East           float64   `json:"east" yaml:"east"`
	North          float64   `json:"north" yaml:"north"`
	Start          time.Time `json:"start" yaml:"start"`
	End            time.Time `json:"end" yaml:"end"`
	APIKey         string    `json:"api_key,omitempty" yaml:"api_key"`
	OutputDir      string    `json:"output_dir,omitempty" yaml:"output_dir"`
	DownloadAssets bool      `json:"download_assets" yaml:"download_assets"`
}

// HarvestRequest is a validated harvest input. The zero value is not usable;
// build one with NewHarvestRequest.
type HarvestRequest struct {
	root           RegionClock
	apiKey         string
	outputDir      string
	downloadAssets bool
}

// NewHarvestRequest normalises p and validates it. Inverted north/south or
// east/west pairs are swapped; every other violation is reported in a single
// joined validation error.
func NewHarvestRequest(p Params) (HarvestRequest, error) {
	if p.North < p.South {
		p.North, p.South = p.South, p.North
	}
	if p.East < p.West {
		p.East, p.West = p.West, p.East
	}

	var problems []error
	check := func(name string, v, limit float64) {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			problems = append(problems, fmt.Errorf("%s must be a finite number", name))
		case v < -limit || v > limit:
			problems = append(problems, fmt.Errorf("%s %v out of range [-%v, %v]", name, v, limit, limit))
		}
	}
	check("west", p.West, 180)
	check("east", p.East, 180)
	check("south", p.South, 90)
	check("north", p.North, 90)

	if p.Start.IsZero() || p.End.IsZero() {
		problems = append(problems, stderrors.New("start and end dates are required"))
	} else if p.Start.After(p.End) {
		problems = append(problems, fmt.Errorf("start date %s is after end date %s",
			p.Start.Format("2006-01-02"), p.End.Format("2006-01-02")))
	}

	if strings.TrimSpace(p.APIKey) == "" {
		problems = append(problems, stderrors.New("api key is required"))
	}
	if p.DownloadAssets && strings.TrimSpace(p.OutputDir) == "" {
		problems = append(problems, stderrors.New("output directory is required when downloading assets"))
	}

	if len(problems) > 0 {
		return HarvestRequest{}, errs.Wrap(errs.ErrorTypeValidation, stderrors.Join(problems...), "invalid harvest request")
	}

	return HarvestRequest{
		root: RegionClock{
			West: p.West, South: p.South, East: p.East, North: p.North,
			Start: p.Start, End: p.End,
		},
		apiKey:         strings.TrimSpace(p.APIKey),
		outputDir:      p.OutputDir,
		downloadAssets: p.DownloadAssets,
	}, nil
}

// Root is the region the harvest starts from
func (h HarvestRequest) Root() RegionClock { return h.root }

func (h HarvestRequest) APIKey() string { return h.apiKey }

func (h HarvestRequest) OutputDir() string { return h.outputDir }

func (h HarvestRequest) DownloadAssets() bool { return h.downloadAssets }

// Valid reports whether h came from NewHarvestRequest
func (h HarvestRequest) Valid() bool { return h.apiKey != "" }

// DateLayouts are the accepted spellings of a harvest boundary date
var DateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

// ParseDate reads a date in any of DateLayouts. Plain dates are midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}
