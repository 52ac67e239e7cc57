// Package dataset holds harvested records and the post-pass that turns an
// accumulator into the final dataset: deduplication by asset URL, owner
// enrichment, and the flat CSV table.
package dataset

import (
	"time"

	"flickrharvest/pkg/flickr"
)

// Record is a search result plus the fields derived while harvesting
type Record struct {
	ID            string    `json:"id"`
	Owner         string    `json:"owner"`
	Place         string    `json:"place,omitempty"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	TakenAt       time.Time `json:"taken_at"`
	Accuracy      int       `json:"accuracy"`
	Title         string    `json:"title"`
	Tags          string    `json:"tags"`
	OwnerName     string    `json:"owner_name"`
	AssetURL      string    `json:"asset_url"`
	LocalPath     string    `json:"local_path,omitempty"`
	OwnerHometown string    `json:"owner_hometown,omitempty"`
}

// FromPhoto converts a search result. An unparseable taken date leaves
// TakenAt zero.
func FromPhoto(p flickr.Photo, assetURL string) Record {
	taken, _ := p.TakenAt()
	return Record{
		ID:        p.ID,
		Owner:     p.Owner,
		Place:     p.PlaceID,
		Latitude:  float64(p.Latitude),
		Longitude: float64(p.Longitude),
		TakenAt:   taken,
		Accuracy:  int(p.Accuracy),
		Title:     p.Title,
		Tags:      p.Tags,
		OwnerName: p.OwnerName,
		AssetURL:  assetURL,
	}
}

// Dataset is the caller-owned result of a completed harvest
type Dataset struct {
	Records []Record `json:"records"`
	// Total is the match count announced for the root region
	Total int `json:"total"`
	// Harvested is the accumulator size before deduplication
	Harvested         int `json:"harvested"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}

// Len is the number of records in the dataset
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Dedupe keeps the first record for every asset URL, preserving order, and
// reports how many were dropped.
func Dedupe(records []Record) ([]Record, int) {
	seen := make(map[string]struct{}, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if _, dup := seen[r.AssetURL]; dup {
			continue
		}
		seen[r.AssetURL] = struct{}{}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}
